package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRubricSpecValidate(t *testing.T) {
	valid := rubric(
		RubricCategory{Name: "Backend", Importance: 5, Keywords: []string{"Go"}},
		RubricCategory{Name: "Cloud", Importance: 2},
	)
	assert.NoError(t, valid.Validate())

	assert.ErrorIs(t, rubric().Validate(), ErrInvalidRubric)
	assert.ErrorIs(t, rubric(RubricCategory{Name: "", Importance: 3}).Validate(), ErrInvalidRubric)
	assert.ErrorIs(t, rubric(RubricCategory{Name: "Backend", Importance: 0}).Validate(), ErrInvalidRubric)
	assert.ErrorIs(t, rubric(RubricCategory{Name: "Backend", Importance: -2}).Validate(), ErrInvalidRubric)
	assert.ErrorIs(t, rubric(
		RubricCategory{Name: "Backend", Importance: 3},
		RubricCategory{Name: "Backend", Importance: 1},
	).Validate(), ErrInvalidRubric)
}

func TestSetRubricReplacesWholesale(t *testing.T) {
	job := Job{}
	require.NoError(t, job.SetRubric(rubric(
		RubricCategory{Name: "Backend", Importance: 5},
		RubricCategory{Name: "Cloud", Importance: 2},
	)))

	require.NoError(t, job.SetRubric(rubric(
		RubricCategory{Name: "Frontend", Importance: 4},
	)))

	spec, err := job.RubricSpec()
	require.NoError(t, err)
	require.Len(t, spec.Categories, 1)
	assert.Equal(t, "Frontend", spec.Categories[0].Name)
}

func TestRubricSpecMissing(t *testing.T) {
	job := Job{ID: 7}
	_, err := job.RubricSpec()
	assert.ErrorIs(t, err, ErrInvalidRubric)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", TruncateRunes("abcdef", 3))
	assert.Equal(t, "abc", TruncateRunes("abc", 10))
	assert.Equal(t, "", TruncateRunes("abc", 0))

	// Cuts on rune boundaries, never mid-codepoint.
	assert.Equal(t, "hél", TruncateRunes("héllo", 3))
	assert.Equal(t, TruncateRunes("héllo", 3), TruncateRunes("héllo", 3))
}

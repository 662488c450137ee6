package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateGradesCompleteness(t *testing.T) {
	spec := rubric(
		RubricCategory{Name: "Go", Importance: 5},
		RubricCategory{Name: "SQL", Importance: 2},
	)

	tests := []struct {
		name   string
		grades []CategoryGrade
		ok     bool
	}{
		{
			name: "exact cover",
			grades: []CategoryGrade{
				{Category: "Go", Score: 70},
				{Category: "SQL", Score: 55},
			},
			ok: true,
		},
		{
			name:   "subset rejected",
			grades: []CategoryGrade{{Category: "Go", Score: 70}},
		},
		{
			name: "superset rejected",
			grades: []CategoryGrade{
				{Category: "Go", Score: 70},
				{Category: "SQL", Score: 55},
				{Category: "Docker", Score: 40},
			},
		},
		{
			name: "duplicate rejected",
			grades: []CategoryGrade{
				{Category: "Go", Score: 70},
				{Category: "Go", Score: 71},
				{Category: "SQL", Score: 55},
			},
		},
		{
			name: "case sensitive names",
			grades: []CategoryGrade{
				{Category: "go", Score: 70},
				{Category: "SQL", Score: 55},
			},
		},
		{
			name: "score above range",
			grades: []CategoryGrade{
				{Category: "Go", Score: 101},
				{Category: "SQL", Score: 55},
			},
		},
		{
			name: "negative score",
			grades: []CategoryGrade{
				{Category: "Go", Score: -1},
				{Category: "SQL", Score: 55},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGrades(tt.grades, spec)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidModelResponse)
			}
		})
	}
}

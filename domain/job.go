package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JobStatus tracks rubric generation for a job posting.
//
// pending -> processing -> completed | failed
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

type Job struct {
	ID          uint   `gorm:"primaryKey"`
	TenantID    string `gorm:"size:36;not null;index"`
	Title       string `gorm:"size:255;not null"`
	Description string `gorm:"type:text;not null"`

	// AI-generated scoring rubric, serialized RubricSpec. Empty until
	// generation completes; replaced wholesale on regeneration, never patched.
	Rubric string `gorm:"type:text"`

	Status      JobStatus `gorm:"type:varchar(20);default:'pending';not null"`
	ErrorDetail string    `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RubricCategory is one scored dimension of a job's rubric.
type RubricCategory struct {
	Name       string   `json:"name"`
	Importance int      `json:"importance"`
	Keywords   []string `json:"keywords"`
}

// RubricSpec is the structured output of rubric generation and the read-only
// input to scoring. Immutable once stored.
type RubricSpec struct {
	Categories []RubricCategory `json:"categories"`
}

// Validate enforces the generation contract: at least one category, unique
// names, strictly positive integer importances.
func (r RubricSpec) Validate() error {
	if len(r.Categories) == 0 {
		return fmt.Errorf("%w: no categories", ErrInvalidRubric)
	}
	seen := make(map[string]bool, len(r.Categories))
	for _, c := range r.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("%w: empty category name", ErrInvalidRubric)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidRubric, name)
		}
		seen[name] = true
		if c.Importance <= 0 {
			return fmt.Errorf("%w: category %q has importance %d", ErrInvalidRubric, name, c.Importance)
		}
	}
	return nil
}

// RubricSpec decodes the stored rubric. Returns ErrInvalidRubric when the job
// has none yet.
func (j *Job) RubricSpec() (RubricSpec, error) {
	if j.Rubric == "" {
		return RubricSpec{}, fmt.Errorf("%w: job %d has no rubric", ErrInvalidRubric, j.ID)
	}
	var spec RubricSpec
	if err := json.Unmarshal([]byte(j.Rubric), &spec); err != nil {
		return RubricSpec{}, fmt.Errorf("%w: %v", ErrInvalidRubric, err)
	}
	return spec, nil
}

// SetRubric stores a validated rubric, replacing any prior one.
func (j *Job) SetRubric(spec RubricSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	j.Rubric = string(raw)
	return nil
}

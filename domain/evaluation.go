package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// CategoryGrade is one AI-graded rubric category. Scores are integers on the
// fixed 0-100 scale; the aggregate is computed locally, never by the model.
type CategoryGrade struct {
	Category  string `json:"category"`
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// Evaluation is the durable scoring result, exactly one per candidate.
// Creating a new one fully supersedes the prior one.
type Evaluation struct {
	ID          uint `gorm:"primaryKey"`
	CandidateID uint `gorm:"not null;uniqueIndex"`
	JobID       uint `gorm:"not null;index"`

	// MatchScore is the canonical two-decimal rendering of the weighted
	// aggregate, recomputable byte-for-byte from Grades + RubricSnapshot.
	MatchScore string `gorm:"type:decimal(5,2);not null"`

	// Grades is the ordered CategoryGrade list, RubricSnapshot the RubricSpec
	// actually used, so the result stays reproducible if the job's rubric is
	// later regenerated.
	Grades         string `gorm:"type:json;not null"`
	RubricSnapshot string `gorm:"type:json;not null"`

	Summary string `gorm:"type:text;not null"`
	Pros    string `gorm:"type:json"`
	Cons    string `gorm:"type:json"`

	CreatedAt time.Time
}

func (e *Evaluation) GradeList() []CategoryGrade {
	var grades []CategoryGrade
	_ = json.Unmarshal([]byte(e.Grades), &grades)
	return grades
}

// ValidateGrades checks a scoring response against the rubric: every rubric
// category present exactly once (case-sensitive name match) and every score an
// integer in [0,100]. A subset, superset or duplicate is a contract violation,
// never a partial success.
func ValidateGrades(grades []CategoryGrade, rubric RubricSpec) error {
	want := make(map[string]bool, len(rubric.Categories))
	for _, c := range rubric.Categories {
		want[c.Name] = false
	}
	for _, g := range grades {
		covered, ok := want[g.Category]
		if !ok {
			return fmt.Errorf("%w: grade for unknown category %q", ErrInvalidModelResponse, g.Category)
		}
		if covered {
			return fmt.Errorf("%w: duplicate grade for category %q", ErrInvalidModelResponse, g.Category)
		}
		want[g.Category] = true
		if g.Score < 0 || g.Score > 100 {
			return fmt.Errorf("%w: score %d for category %q out of range", ErrInvalidModelResponse, g.Score, g.Category)
		}
	}
	for name, covered := range want {
		if !covered {
			return fmt.Errorf("%w: missing grade for category %q", ErrInvalidModelResponse, name)
		}
	}
	return nil
}

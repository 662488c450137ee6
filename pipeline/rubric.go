package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"resume-screener/domain"
)

// generateRubric turns a job description into a structured scoring rubric via
// one judgment-service call. Regeneration replaces any prior rubric wholesale;
// evaluations already computed against the old rubric are left untouched.
func (w *Worker) generateRubric(ctx context.Context, jobID uint) error {
	job, err := w.store.Job(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %d: %w", jobID, err)
	}

	job.Status = domain.JobProcessing
	job.ErrorDetail = ""
	if err := w.store.SaveJob(ctx, job); err != nil {
		return err
	}

	prompt := buildRubricPrompt(job.Title, job.Description)

	var spec domain.RubricSpec
	err = w.callJudge(ctx, prompt, func(raw string) error {
		parsed, perr := parseRubricResponse(raw)
		if perr != nil {
			return perr
		}
		spec = parsed
		return nil
	})
	if err != nil {
		w.markJobFailed(ctx, job, err)
		return err
	}

	if err := job.SetRubric(spec); err != nil {
		w.markJobFailed(ctx, job, err)
		return err
	}
	job.Status = domain.JobCompleted
	return w.store.SaveJob(ctx, job)
}

func buildRubricPrompt(title, description string) string {
	description = domain.TruncateRunes(description, domain.MaxJobDescriptionChars)

	return fmt.Sprintf(`You are an expert technical recruiter. Analyze the job posting below and break it down into a structured scoring rubric for a resume-screening algorithm.

INSTRUCTIONS:
1. Create 4-8 distinct skill categories (e.g. "Backend Development", "Cloud Platforms", "Database Management").
2. Assign each category an integer importance from 1 to 5:
   5 = critical / must-have
   4 = very important
   3 = important
   2 = nice to have
   1 = bonus
3. For each category list 3-8 concrete keywords a matching resume would contain.

JOB TITLE: %s

JOB DESCRIPTION:
%s

Return strict JSON with this exact structure:
{
  "categories": [
    {"name": "Backend Development", "importance": 5, "keywords": ["Go", "REST APIs", "microservices"]}
  ]
}

Return ONLY the raw JSON without markdown formatting, code blocks, or additional text.`, title, description)
}

func parseRubricResponse(raw string) (domain.RubricSpec, error) {
	cleaned := cleanJSONResponse(raw)

	var spec domain.RubricSpec
	if err := json.Unmarshal([]byte(cleaned), &spec); err != nil {
		return domain.RubricSpec{}, fmt.Errorf("%w: %v", domain.ErrInvalidModelResponse, err)
	}
	for i := range spec.Categories {
		spec.Categories[i].Name = strings.TrimSpace(spec.Categories[i].Name)
	}
	if err := spec.Validate(); err != nil {
		return domain.RubricSpec{}, err
	}
	return spec, nil
}

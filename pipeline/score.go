package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"resume-screener/domain"
)

// scoreReport is the structured contract the judgment service must satisfy for
// a scoring call. The aggregate score is deliberately absent: it is computed
// locally from the grades.
type scoreReport struct {
	Grades  []domain.CategoryGrade  `json:"grades"`
	Contact domain.ExtractedContact `json:"contact"`
	Summary string                  `json:"summary"`
	Pros    []string                `json:"pros"`
	Cons    []string                `json:"cons"`
}

const (
	maxReasoningChars = 2000
	maxSummaryChars   = 4000
	maxProsCons       = 10
)

// scoreCandidate is the second pipeline stage: grade the extracted resume
// against the job's rubric, aggregate deterministically, merge extracted
// contact fields, and replace any prior evaluation in one transaction.
func (w *Worker) scoreCandidate(ctx context.Context, candidateID uint) error {
	c, err := w.store.Candidate(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("load candidate %d: %w", candidateID, err)
	}
	job, err := w.store.Job(ctx, c.JobID)
	if err != nil {
		w.markCandidateFailed(ctx, c, "scoring", err)
		return err
	}
	rubric, err := job.RubricSpec()
	if err != nil {
		w.markCandidateFailed(ctx, c, "scoring", err)
		return err
	}

	prompt := buildScoringPrompt(c.ResumeText, rubric)

	var report scoreReport
	err = w.callJudge(ctx, prompt, func(raw string) error {
		parsed, perr := parseScoreResponse(raw, rubric)
		if perr != nil {
			return perr
		}
		report = parsed
		return nil
	})
	if err != nil {
		w.markCandidateFailed(ctx, c, "scoring", err)
		return err
	}

	aggregate, err := domain.AggregateScore(report.Grades, rubric)
	if err != nil {
		w.markCandidateFailed(ctx, c, "scoring", err)
		return err
	}

	grades, _ := json.Marshal(report.Grades)
	snapshot, _ := json.Marshal(rubric)
	pros, _ := json.Marshal(report.Pros)
	cons, _ := json.Marshal(report.Cons)

	eval := &domain.Evaluation{
		CandidateID:    c.ID,
		JobID:          job.ID,
		MatchScore:     aggregate,
		Grades:         string(grades),
		RubricSnapshot: string(snapshot),
		Summary:        report.Summary,
		Pros:           string(pros),
		Cons:           string(cons),
	}
	if err := w.store.ReplaceEvaluation(ctx, eval); err != nil {
		w.markCandidateFailed(ctx, c, "scoring", err)
		return err
	}

	c.MergeContact(report.Contact)
	c.Status = domain.CandidateScored
	c.ErrorDetail = ""
	if err := w.store.SaveCandidate(ctx, c); err != nil {
		return err
	}

	w.log.WithFields(logrus.Fields{
		"candidate_id": c.ID,
		"job_id":       job.ID,
		"match_score":  aggregate,
	}).Info("candidate scored")
	return nil
}

// buildScoringPrompt assembles the single judgment request: resume text,
// rubric categories with keywords, the fixed grading scale, and the required
// response shape. Low-randomness decoding is requested client-side; small
// run-to-run grade drift is tolerated.
func buildScoringPrompt(resumeText string, rubric domain.RubricSpec) string {
	var cats strings.Builder
	for _, c := range rubric.Categories {
		cats.WriteString("- ")
		cats.WriteString(c.Name)
		if len(c.Keywords) > 0 {
			cats.WriteString(" (evidence: ")
			cats.WriteString(strings.Join(c.Keywords, ", "))
			cats.WriteString(")")
		}
		cats.WriteString("\n")
	}

	return fmt.Sprintf(`You are an expert recruiter. Grade the resume below against each rubric category, extract contact details, and summarize the candidate's fit.

GRADING SCALE (integer 0-100 per category):
  0-20   no evidence of the skill
  21-50  skill named but never used
  51-75  competent, used in at least one project
  76-90  strong, multiple projects or years of use
  91-100 exceptional depth

RUBRIC CATEGORIES:
%s
RESUME:
%s

Return strict JSON with this exact structure:
{
  "grades": [
    {"category": "<rubric category name, verbatim>", "score": 0, "reasoning": "<one or two sentences>"}
  ],
  "contact": {
    "name": "", "email": "", "phone": "", "location": "",
    "linkedin_url": "", "github_url": "", "portfolio_url": "",
    "other_urls": []
  },
  "summary": "<executive summary>",
  "pros": ["<strength>"],
  "cons": ["<gap>"]
}

Rules: include exactly one grade per rubric category, copying category names verbatim. Use integer scores. Leave unknown contact fields empty. Do NOT compute any overall or aggregate score. Return ONLY the raw JSON without markdown formatting, code blocks, or additional text.`, cats.String(), resumeText)
}

// parseScoreResponse defensively parses and validates a scoring response.
// Any violation of the contract is ErrInvalidModelResponse: the service is
// asked again, never patched.
func parseScoreResponse(raw string, rubric domain.RubricSpec) (scoreReport, error) {
	cleaned := cleanJSONResponse(raw)

	var report scoreReport
	if err := json.Unmarshal([]byte(cleaned), &report); err != nil {
		return scoreReport{}, fmt.Errorf("%w: %v", domain.ErrInvalidModelResponse, err)
	}
	if err := domain.ValidateGrades(report.Grades, rubric); err != nil {
		return scoreReport{}, err
	}
	if strings.TrimSpace(report.Summary) == "" {
		return scoreReport{}, fmt.Errorf("%w: empty summary", domain.ErrInvalidModelResponse)
	}

	for i := range report.Grades {
		report.Grades[i].Reasoning = domain.TruncateRunes(report.Grades[i].Reasoning, maxReasoningChars)
	}
	report.Summary = domain.TruncateRunes(report.Summary, maxSummaryChars)
	if len(report.Pros) > maxProsCons {
		report.Pros = report.Pros[:maxProsCons]
	}
	if len(report.Cons) > maxProsCons {
		report.Cons = report.Cons[:maxProsCons]
	}
	return report, nil
}

// Package pipeline sequences the asynchronous evaluation stages: rubric
// generation for jobs, text extraction for uploaded resumes, and hybrid
// scoring chained after a successful extraction. The orchestrator only
// sequences and persists state; extraction and scoring are functions over
// their inputs plus the judgment service.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"resume-screener/domain"
)

type TaskKind string

const (
	TaskGenerateRubric TaskKind = "rubric.generate"
	TaskParseResume    TaskKind = "resume.parse"
	TaskScoreCandidate TaskKind = "candidate.score"
)

// TaskMessage is the JSON envelope published to the work queue. Delivery is
// at-least-once; every handler is safe to re-run and simply overwrites prior
// results. Attempt counts crash re-deliveries, not judge-call retries (those
// happen in-process).
type TaskMessage struct {
	Kind        TaskKind `json:"kind"`
	JobID       uint     `json:"job_id,omitempty"`
	CandidateID uint     `json:"candidate_id,omitempty"`
	Attempt     int      `json:"attempt"`
}

// Judge is the external judgment service: one bounded text prompt in, raw
// structured text out. Responses are never trusted to be well-formed.
type Judge interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Queue dispatches task messages to the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, msg TaskMessage) error
}

// BlobStore is the document-storage collaborator. The pipeline only reads.
type BlobStore interface {
	Get(key string) ([]byte, error)
}

// Extractor converts stored document bytes into bounded plain text.
type Extractor interface {
	Extract(data []byte, filename string) (domain.ExtractedDocument, error)
}

// Store is the persistence port for pipeline state. ReplaceEvaluation must
// atomically supersede any prior evaluation for the candidate.
type Store interface {
	Job(ctx context.Context, id uint) (*domain.Job, error)
	Candidate(ctx context.Context, id uint) (*domain.Candidate, error)
	SaveJob(ctx context.Context, job *domain.Job) error
	SaveCandidate(ctx context.Context, c *domain.Candidate) error
	ReplaceEvaluation(ctx context.Context, eval *domain.Evaluation) error
}

const (
	maxJudgeAttempts = 3
	judgeCallTimeout = 60 * time.Second
)

// Worker executes pipeline tasks. One Worker serves any number of queue
// consumers; it holds no per-task state.
type Worker struct {
	store   Store
	queue   Queue
	judge   Judge
	blobs   BlobStore
	extract Extractor
	log     *logrus.Logger

	// backoff between judge-call retries, replaced in tests.
	sleep func(time.Duration)
}

func NewWorker(store Store, queue Queue, judge Judge, blobs BlobStore, extract Extractor, log *logrus.Logger) *Worker {
	return &Worker{
		store:   store,
		queue:   queue,
		judge:   judge,
		blobs:   blobs,
		extract: extract,
		log:     log,
		sleep:   time.Sleep,
	}
}

// Handle runs one task to completion, including terminal-failure bookkeeping.
// The returned error is informational; the message is consumed either way.
func (w *Worker) Handle(ctx context.Context, msg TaskMessage) error {
	log := w.log.WithFields(logrus.Fields{
		"task":         string(msg.Kind),
		"job_id":       msg.JobID,
		"candidate_id": msg.CandidateID,
		"attempt":      msg.Attempt,
	})

	var err error
	switch msg.Kind {
	case TaskGenerateRubric:
		err = w.generateRubric(ctx, msg.JobID)
	case TaskParseResume:
		err = w.parseResume(ctx, msg.CandidateID)
	case TaskScoreCandidate:
		err = w.scoreCandidate(ctx, msg.CandidateID)
	default:
		err = fmt.Errorf("unknown task kind %q", msg.Kind)
	}
	if err != nil {
		log.WithError(err).Error("task failed")
		return err
	}
	log.Info("task completed")
	return nil
}

// callJudge asks the judgment service with bounded retries and exponential
// backoff (1s, 2s, 4s). Transient failures and contract violations are both
// re-asked; input errors never reach this path.
func (w *Worker) callJudge(ctx context.Context, prompt string, parse func(raw string) error) error {
	var lastErr error
	for attempt := 0; attempt < maxJudgeAttempts; attempt++ {
		if attempt > 0 {
			w.sleep(time.Duration(1<<(attempt-1)) * time.Second)
		}
		callCtx, cancel := context.WithTimeout(ctx, judgeCallTimeout)
		raw, err := w.judge.Complete(callCtx, prompt)
		cancel()
		if err != nil {
			lastErr = err
			if !domain.Retryable(err) {
				return err
			}
			continue
		}
		if err := parse(raw); err != nil {
			lastErr = err
			if !domain.Retryable(err) {
				return err
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("after %d attempts: %w", maxJudgeAttempts, lastErr)
}

// cleanJSONResponse strips markdown fences and any prose surrounding the
// outermost JSON object. Models occasionally wrap their output despite being
// told not to.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start != -1 && end != -1 && end > start {
		content = content[start : end+1]
	}
	return strings.TrimSpace(content)
}

// markJobFailed records a terminal rubric-generation failure.
func (w *Worker) markJobFailed(ctx context.Context, job *domain.Job, err error) {
	job.Status = domain.JobFailed
	job.ErrorDetail = domain.FailureDetail("rubric generation", err)
	if saveErr := w.store.SaveJob(ctx, job); saveErr != nil {
		w.log.WithError(saveErr).WithField("job_id", job.ID).Error("failed to record job failure")
	}
}

// markCandidateFailed records a terminal pipeline failure for a candidate and
// stops the chain. The stored detail is human-readable, never a raw provider
// error dump.
func (w *Worker) markCandidateFailed(ctx context.Context, c *domain.Candidate, stage string, err error) {
	c.Status = domain.CandidateFailed
	c.ErrorDetail = domain.FailureDetail(stage, err)
	if saveErr := w.store.SaveCandidate(ctx, c); saveErr != nil {
		w.log.WithError(saveErr).WithField("candidate_id", c.ID).Error("failed to record candidate failure")
	}
}

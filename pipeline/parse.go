package pipeline

import (
	"context"
	"fmt"

	"resume-screener/domain"
)

// parseResume is the first pipeline stage: fetch the stored document, extract
// bounded plain text, and chain scoring. Scoring is enqueued only after the
// parsed state is durably recorded, so a crash between the stages loses
// nothing and any worker can pick up the chain.
func (w *Worker) parseResume(ctx context.Context, candidateID uint) error {
	c, err := w.store.Candidate(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("load candidate %d: %w", candidateID, err)
	}

	c.Status = domain.CandidateProcessing
	c.ErrorDetail = ""
	if err := w.store.SaveCandidate(ctx, c); err != nil {
		return err
	}

	data, err := w.blobs.Get(c.FileKey)
	if err != nil {
		w.markCandidateFailed(ctx, c, "text extraction", err)
		return err
	}

	doc, err := w.extract.Extract(data, c.OriginalFilename)
	if err != nil {
		// Unsupported and corrupt input is deterministic: retrying the same
		// bytes cannot succeed, so the failure is terminal immediately.
		w.markCandidateFailed(ctx, c, "text extraction", err)
		return err
	}

	c.ResumeText = doc.Text
	c.SourceFormat = doc.Format
	c.Status = domain.CandidateParsed
	if err := w.store.SaveCandidate(ctx, c); err != nil {
		return err
	}

	return w.queue.Enqueue(ctx, TaskMessage{
		Kind:        TaskScoreCandidate,
		CandidateID: c.ID,
	})
}

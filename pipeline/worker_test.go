package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener/domain"
)

// In-memory fakes for the pipeline ports. The store hands out copies, like a
// real datastore: mutations only persist through Save.

type memStore struct {
	mu          sync.Mutex
	jobs        map[uint]*domain.Job
	candidates  map[uint]*domain.Candidate
	evals       map[uint]*domain.Evaluation
	evalInserts int
}

func newMemStore() *memStore {
	return &memStore{
		jobs:       make(map[uint]*domain.Job),
		candidates: make(map[uint]*domain.Candidate),
		evals:      make(map[uint]*domain.Evaluation),
	}
}

func (s *memStore) Job(_ context.Context, id uint) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	cp := *job
	return &cp, nil
}

func (s *memStore) Candidate(_ context.Context, id uint) (*domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok {
		return nil, errors.New("candidate not found")
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) SaveJob(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) SaveCandidate(_ context.Context, c *domain.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.candidates[c.ID] = &cp
	return nil
}

func (s *memStore) ReplaceEvaluation(_ context.Context, eval *domain.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *eval
	s.evals[eval.CandidateID] = &cp
	s.evalInserts++
	return nil
}

type memQueue struct {
	mu   sync.Mutex
	msgs []TaskMessage
}

func (q *memQueue) Enqueue(_ context.Context, msg TaskMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *memQueue) all() []TaskMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]TaskMessage(nil), q.msgs...)
}

// scriptJudge replays a fixed sequence of responses, then repeats the last.
type scriptJudge struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

func (j *scriptJudge) Complete(_ context.Context, _ string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	i := j.calls
	j.calls++
	if i >= len(j.responses) {
		i = len(j.responses) - 1
	}
	if j.errs != nil && j.errs[i] != nil {
		return "", j.errs[i]
	}
	return j.responses[i], nil
}

type memBlobs struct {
	data map[string][]byte
}

func (b *memBlobs) Get(key string) ([]byte, error) {
	d, ok := b.data[key]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return d, nil
}

type fakeExtractor struct {
	doc domain.ExtractedDocument
	err error
}

func (e *fakeExtractor) Extract([]byte, string) (domain.ExtractedDocument, error) {
	return e.doc, e.err
}

type fixture struct {
	store   *memStore
	queue   *memQueue
	judge   *scriptJudge
	blobs   *memBlobs
	extract *fakeExtractor
	worker  *Worker
}

func newFixture(judge *scriptJudge, extract *fakeExtractor) *fixture {
	f := &fixture{
		store:   newMemStore(),
		queue:   &memQueue{},
		judge:   judge,
		blobs:   &memBlobs{data: map[string][]byte{"resume.pdf": []byte("%PDF")}},
		extract: extract,
	}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	f.worker = NewWorker(f.store, f.queue, judge, f.blobs, extract, logger)
	f.worker.sleep = func(time.Duration) {}
	return f
}

func (f *fixture) seedJob(t *testing.T) *domain.Job {
	t.Helper()
	job := &domain.Job{ID: 1, TenantID: "t1", Title: "Backend Engineer", Description: "Go services"}
	require.NoError(t, job.SetRubric(domain.RubricSpec{Categories: []domain.RubricCategory{
		{Name: "Python", Importance: 5, Keywords: []string{"python"}},
		{Name: "Databases", Importance: 4, Keywords: []string{"sql"}},
	}}))
	job.Status = domain.JobCompleted
	f.store.jobs[job.ID] = job
	return job
}

func (f *fixture) seedCandidate(status domain.CandidateStatus, text string) *domain.Candidate {
	c := &domain.Candidate{
		ID:               10,
		TenantID:         "t1",
		JobID:            1,
		FileKey:          "resume.pdf",
		OriginalFilename: "resume.pdf",
		ResumeText:       text,
		Status:           status,
	}
	f.store.candidates[c.ID] = c
	return c
}

const validScoreJSON = `{
  "grades": [
    {"category": "Python", "score": 85, "reasoning": "several production projects"},
    {"category": "Databases", "score": 80, "reasoning": "schema design and tuning"}
  ],
  "contact": {
    "name": "Ada Lovelace",
    "email": "extracted@example.com",
    "phone": "",
    "location": "London",
    "linkedin_url": "https://linkedin.com/in/ada",
    "github_url": "",
    "portfolio_url": "",
    "other_urls": ["https://ada.dev", "https://ada.dev"]
  },
  "summary": "Strong backend candidate.",
  "pros": ["python depth"],
  "cons": ["no cloud experience"]
}`

func TestParseResumeChainsToScoring(t *testing.T) {
	f := newFixture(&scriptJudge{responses: []string{""}},
		&fakeExtractor{doc: domain.ExtractedDocument{Text: "resume body", Format: "pdf", Pages: 2}})
	f.seedJob(t)
	f.seedCandidate(domain.CandidateUploaded, "")

	require.NoError(t, f.worker.parseResume(context.Background(), 10))

	c := f.store.candidates[10]
	assert.Equal(t, domain.CandidateParsed, c.Status)
	assert.Equal(t, "resume body", c.ResumeText)
	assert.Equal(t, "pdf", c.SourceFormat)

	msgs := f.queue.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, TaskScoreCandidate, msgs[0].Kind)
	assert.Equal(t, uint(10), msgs[0].CandidateID)
}

func TestParseResumeFailureStopsChain(t *testing.T) {
	f := newFixture(&scriptJudge{responses: []string{""}},
		&fakeExtractor{err: domain.ErrUnsupportedFormat})
	f.seedJob(t)
	f.seedCandidate(domain.CandidateUploaded, "")

	err := f.worker.parseResume(context.Background(), 10)
	require.Error(t, err)

	c := f.store.candidates[10]
	assert.Equal(t, domain.CandidateFailed, c.Status)
	assert.Contains(t, c.ErrorDetail, "text extraction failed")
	assert.Empty(t, f.queue.all(), "scoring must never be enqueued after a failed extraction")
}

func TestScoreCandidateSuccess(t *testing.T) {
	f := newFixture(&scriptJudge{responses: []string{validScoreJSON}}, &fakeExtractor{})
	f.seedJob(t)
	c := f.seedCandidate(domain.CandidateParsed, "resume body")
	c.Email = "manual@example.com"

	require.NoError(t, f.worker.scoreCandidate(context.Background(), 10))

	got := f.store.candidates[10]
	assert.Equal(t, domain.CandidateScored, got.Status)
	assert.Equal(t, "manual@example.com", got.Email, "stored contact field must not be clobbered")
	assert.Equal(t, "https://linkedin.com/in/ada", got.LinkedInURL)
	assert.Equal(t, []string{"https://ada.dev"}, got.OtherURLList())

	eval := f.store.evals[10]
	require.NotNil(t, eval)
	assert.Equal(t, "82.78", eval.MatchScore)
	assert.Equal(t, "Strong backend candidate.", eval.Summary)
	require.Len(t, eval.GradeList(), 2)
}

func TestScoreCandidateRerunKeepsOneEvaluation(t *testing.T) {
	f := newFixture(&scriptJudge{responses: []string{validScoreJSON}}, &fakeExtractor{})
	f.seedJob(t)
	f.seedCandidate(domain.CandidateParsed, "resume body")

	require.NoError(t, f.worker.scoreCandidate(context.Background(), 10))
	require.NoError(t, f.worker.scoreCandidate(context.Background(), 10))

	assert.Len(t, f.store.evals, 1, "re-run must supersede, not duplicate")
	assert.Equal(t, 2, f.store.evalInserts)
	assert.Equal(t, "82.78", f.store.evals[10].MatchScore)
}

func TestScoreCandidateMarkdownFencedResponse(t *testing.T) {
	fenced := "```json\n" + validScoreJSON + "\n```"
	f := newFixture(&scriptJudge{responses: []string{fenced}}, &fakeExtractor{})
	f.seedJob(t)
	f.seedCandidate(domain.CandidateParsed, "resume body")

	require.NoError(t, f.worker.scoreCandidate(context.Background(), 10))
	assert.Equal(t, domain.CandidateScored, f.store.candidates[10].Status)
}

func TestScoreCandidateTransientThenSuccess(t *testing.T) {
	judge := &scriptJudge{
		responses: []string{"", "", validScoreJSON},
		errs:      []error{domain.ErrJudgeUnavailable, domain.ErrJudgeUnavailable, nil},
	}
	f := newFixture(judge, &fakeExtractor{})
	f.seedJob(t)
	f.seedCandidate(domain.CandidateParsed, "resume body")

	require.NoError(t, f.worker.scoreCandidate(context.Background(), 10))
	assert.Equal(t, 3, judge.calls)
	assert.Equal(t, domain.CandidateScored, f.store.candidates[10].Status)
}

func TestScoreCandidateInvalidResponseExhaustsRetries(t *testing.T) {
	// Missing the Databases grade on every attempt: a strict subset is a
	// contract violation, retried, then terminal.
	subset := `{"grades": [{"category": "Python", "score": 85, "reasoning": "x"}],
		"contact": {}, "summary": "s", "pros": [], "cons": []}`
	judge := &scriptJudge{responses: []string{subset}}
	f := newFixture(judge, &fakeExtractor{})
	f.seedJob(t)
	f.seedCandidate(domain.CandidateParsed, "resume body")

	err := f.worker.scoreCandidate(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, maxJudgeAttempts, judge.calls)

	c := f.store.candidates[10]
	assert.Equal(t, domain.CandidateFailed, c.Status)
	assert.Contains(t, c.ErrorDetail, "scoring failed")
	assert.Nil(t, f.store.evals[10], "no partial evaluation may be stored")
}

func TestGenerateRubricSuccess(t *testing.T) {
	judge := &scriptJudge{responses: []string{`{
		"categories": [
			{"name": "Backend Development", "importance": 5, "keywords": ["Go", "REST"]},
			{"name": "Cloud Platforms", "importance": 3, "keywords": ["AWS"]}
		]
	}`}}
	f := newFixture(judge, &fakeExtractor{})
	f.store.jobs[1] = &domain.Job{ID: 1, TenantID: "t1", Title: "Backend Engineer", Description: "Go services", Status: domain.JobPending}

	require.NoError(t, f.worker.generateRubric(context.Background(), 1))

	job := f.store.jobs[1]
	assert.Equal(t, domain.JobCompleted, job.Status)
	spec, err := job.RubricSpec()
	require.NoError(t, err)
	require.Len(t, spec.Categories, 2)
	assert.Equal(t, 5, spec.Categories[0].Importance)
}

func TestGenerateRubricReplacesWholesale(t *testing.T) {
	judge := &scriptJudge{responses: []string{`{
		"categories": [{"name": "Frontend", "importance": 4, "keywords": ["React"]}]
	}`}}
	f := newFixture(judge, &fakeExtractor{})
	f.seedJob(t) // seeds a two-category rubric

	require.NoError(t, f.worker.generateRubric(context.Background(), 1))

	spec, err := f.store.jobs[1].RubricSpec()
	require.NoError(t, err)
	require.Len(t, spec.Categories, 1)
	assert.Equal(t, "Frontend", spec.Categories[0].Name)
}

func TestGenerateRubricInvalidImportanceFails(t *testing.T) {
	judge := &scriptJudge{responses: []string{`{
		"categories": [{"name": "Backend", "importance": 0, "keywords": []}]
	}`}}
	f := newFixture(judge, &fakeExtractor{})
	f.store.jobs[1] = &domain.Job{ID: 1, TenantID: "t1", Title: "x", Description: "y", Status: domain.JobPending}

	err := f.worker.generateRubric(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, maxJudgeAttempts, judge.calls)
	assert.Equal(t, domain.JobFailed, f.store.jobs[1].Status)
	assert.Contains(t, f.store.jobs[1].ErrorDetail, "rubric generation failed")
}

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"Here is the result:\n{\"a\": 1}\nHope that helps!", `{"a": 1}`},
		{"  {\"a\": {\"b\": 2}}  ", `{"a": {"b": 2}}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanJSONResponse(tt.in))
	}
}

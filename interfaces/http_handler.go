package interfaces

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"resume-screener/domain"
	"resume-screener/infrastructure"
	"resume-screener/pipeline"
)

// Resume formats accepted at upload. Legacy .doc is rejected up front: the
// extraction unit cannot parse it and admission would burn quota for nothing.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".txt":  true,
}

const maxUploadBytes = 10 << 20 // 10 MiB

type HTTPHandler struct {
	DB    *gorm.DB
	Store *infrastructure.GormStore
	Queue pipeline.Queue
	Blobs infrastructure.BlobStore
	Gate  *pipeline.QuotaGate
	Log   *logrus.Logger
}

func NewHTTPHandler(router *gin.Engine, h *HTTPHandler) {
	authed := router.Group("/", h.resolveTenant)

	authed.POST("/jobs", h.CreateJob)
	authed.GET("/jobs/:id", h.GetJob)
	authed.POST("/jobs/:id/rubric", h.RegenerateRubric)
	authed.POST("/jobs/:id/candidates", h.UploadCandidate)
	authed.GET("/jobs/:id/candidates", h.ListCandidates)
	authed.GET("/candidates/:id", h.GetCandidate)
	authed.GET("/candidates/:id/evaluation", h.GetEvaluation)
	authed.POST("/candidates/:id/retry", h.RetryCandidate)
	authed.DELETE("/candidates/:id", h.DeleteCandidate)
	authed.GET("/usage", h.GetUsage)
}

// resolveTenant reads the tenant from the X-Tenant-ID header (session
// handling lives in the auth collaborator, outside this core) and provisions
// a trial subscription on first sight.
func (h *HTTPHandler) resolveTenant(c *gin.Context) {
	tenantID := strings.TrimSpace(c.GetHeader("X-Tenant-ID"))
	if tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "X-Tenant-ID header is required"})
		return
	}
	if err := h.ensureSubscription(tenantID); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve tenant"})
		return
	}
	c.Set("tenant_id", tenantID)
	c.Next()
}

func (h *HTTPHandler) ensureSubscription(tenantID string) error {
	sub := domain.Subscription{
		TenantID:              tenantID,
		Plan:                  domain.PlanFree,
		Status:                domain.SubscriptionTrialing,
		MonthlyCandidateLimit: domain.PlanFree.MonthlyLimit(),
	}
	return h.DB.Where(domain.Subscription{TenantID: tenantID}).FirstOrCreate(&sub).Error
}

func tenantID(c *gin.Context) string {
	return c.GetString("tenant_id")
}

// admissionStatus maps quota-gate errors to user-facing responses. These are
// never retried internally; the fix is external (upgrade plan, fix payment).
func admissionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSubscriptionInactive):
		return http.StatusForbidden, "subscription is not active; fix payment or upgrade to continue"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusForbidden, "monthly candidate quota exceeded; upgrade your plan to continue"
	default:
		return http.StatusInternalServerError, "admission check failed"
	}
}

// CreateJob stores a job posting and queues rubric generation.
func (h *HTTPHandler) CreateJob(c *gin.Context) {
	var req struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Gate.AdmitJobCreation(c.Request.Context(), tenantID(c)); err != nil {
		status, msg := admissionStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	job := domain.Job{
		TenantID:    tenantID(c),
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.JobPending,
	}
	if err := h.DB.Create(&job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	if err := h.Queue.Enqueue(c.Request.Context(), pipeline.TaskMessage{
		Kind:  pipeline.TaskGenerateRubric,
		JobID: job.ID,
	}); err != nil {
		h.DB.Model(&job).Updates(map[string]interface{}{
			"status":       domain.JobFailed,
			"error_detail": "failed to queue rubric generation",
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue rubric generation"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": job.ID, "status": job.Status})
}

func (h *HTTPHandler) GetJob(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	resp := gin.H{
		"id":         job.ID,
		"title":      job.Title,
		"status":     job.Status,
		"created_at": job.CreatedAt,
	}
	if job.Status == domain.JobFailed {
		resp["error"] = job.ErrorDetail
	}
	if spec, err := job.RubricSpec(); err == nil {
		resp["rubric"] = spec
	}
	c.JSON(http.StatusOK, resp)
}

// RegenerateRubric queues a fresh rubric for an existing job. The new rubric
// replaces the old one wholesale; evaluations computed against the old rubric
// keep their snapshot and are not invalidated.
func (h *HTTPHandler) RegenerateRubric(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	if err := h.Gate.AdmitJobCreation(c.Request.Context(), tenantID(c)); err != nil {
		status, msg := admissionStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	job.Status = domain.JobPending
	job.ErrorDetail = ""
	if err := h.DB.Save(job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update job"})
		return
	}

	if err := h.Queue.Enqueue(c.Request.Context(), pipeline.TaskMessage{
		Kind:  pipeline.TaskGenerateRubric,
		JobID: job.ID,
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue rubric generation"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": job.ID, "status": domain.JobPending})
}

// UploadCandidate admits a resume upload through the quota gate, stores the
// document, and queues text extraction. The quota slot stays consumed even if
// processing later fails.
func (h *HTTPHandler) UploadCandidate(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only PDF, DOCX, and TXT resumes are supported"})
		return
	}
	if header.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
		return
	}

	if err := h.Gate.AdmitCandidateUpload(c.Request.Context(), tenantID(c)); err != nil {
		status, msg := admissionStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	key, err := h.Blobs.Put(data, header.Filename)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	candidate := domain.Candidate{
		TenantID:         tenantID(c),
		JobID:            job.ID,
		FirstName:        c.PostForm("first_name"),
		LastName:         c.PostForm("last_name"),
		Email:            c.PostForm("email"),
		FileKey:          key,
		OriginalFilename: header.Filename,
		Status:           domain.CandidateUploaded,
	}
	if err := h.DB.Create(&candidate).Error; err != nil {
		_ = h.Blobs.Delete(key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create candidate"})
		return
	}

	if err := h.Queue.Enqueue(c.Request.Context(), pipeline.TaskMessage{
		Kind:        pipeline.TaskParseResume,
		CandidateID: candidate.ID,
	}); err != nil {
		h.DB.Model(&candidate).Updates(map[string]interface{}{
			"status":       domain.CandidateFailed,
			"error_detail": "failed to queue resume parsing",
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue resume parsing"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"candidate_id": candidate.ID,
		"job_id":       job.ID,
		"status":       candidate.Status,
	})
}

func (h *HTTPHandler) ListCandidates(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	var candidates []domain.Candidate
	if err := h.DB.Where("job_id = ?", job.ID).Order("id").Find(&candidates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list candidates"})
		return
	}

	out := make([]gin.H, 0, len(candidates))
	for i := range candidates {
		out = append(out, candidateResponse(&candidates[i]))
	}
	c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "candidates": out})
}

func (h *HTTPHandler) GetCandidate(c *gin.Context) {
	candidate, ok := h.loadCandidate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, candidateResponse(candidate))
}

func (h *HTTPHandler) GetEvaluation(c *gin.Context) {
	candidate, ok := h.loadCandidate(c)
	if !ok {
		return
	}

	eval, err := h.Store.Evaluation(c.Request.Context(), candidate.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no evaluation for this candidate"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load evaluation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"candidate_id": eval.CandidateID,
		"job_id":       eval.JobID,
		"match_score":  eval.MatchScore,
		"grades":       eval.GradeList(),
		"summary":      eval.Summary,
		"pros":         jsonRaw(eval.Pros),
		"cons":         jsonRaw(eval.Cons),
		"created_at":   eval.CreatedAt,
	})
}

// RetryCandidate re-queues a terminally failed candidate. It resets to its
// pre-failure state: parsed candidates retry scoring only, the rest re-run
// the whole chain. No quota is consumed; the original admission paid for it.
func (h *HTTPHandler) RetryCandidate(c *gin.Context) {
	candidate, ok := h.loadCandidate(c)
	if !ok {
		return
	}
	if candidate.Status != domain.CandidateFailed {
		c.JSON(http.StatusConflict, gin.H{"error": "only failed candidates can be retried"})
		return
	}

	candidate.Status = candidate.RetryStatus()
	candidate.ErrorDetail = ""
	if err := h.DB.Save(candidate).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update candidate"})
		return
	}

	kind := pipeline.TaskParseResume
	if candidate.Status == domain.CandidateParsed {
		kind = pipeline.TaskScoreCandidate
	}
	if err := h.Queue.Enqueue(c.Request.Context(), pipeline.TaskMessage{
		Kind:        kind,
		CandidateID: candidate.ID,
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue retry"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"candidate_id": candidate.ID, "status": candidate.Status})
}

// DeleteCandidate removes the candidate, its evaluation, and its stored
// document. Quota is deliberately not refunded. In-flight work for the
// candidate may still complete; its result is discarded with the record.
func (h *HTTPHandler) DeleteCandidate(c *gin.Context) {
	candidate, ok := h.loadCandidate(c)
	if !ok {
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("candidate_id = ?", candidate.ID).Delete(&domain.Evaluation{}).Error; err != nil {
			return err
		}
		return tx.Delete(candidate).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete candidate"})
		return
	}
	if err := h.Blobs.Delete(candidate.FileKey); err != nil {
		h.Log.WithError(err).WithField("file_key", candidate.FileKey).Warn("failed to delete stored resume")
	}

	c.JSON(http.StatusOK, gin.H{"deleted": candidate.ID})
}

// GetUsage reports the tenant's quota state for the current billing period.
func (h *HTTPHandler) GetUsage(c *gin.Context) {
	sub, err := h.Store.Subscription(c.Request.Context(), tenantID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plan":            sub.Plan,
		"status":          sub.Status,
		"monthly_limit":   sub.MonthlyCandidateLimit,
		"used_this_month": sub.CandidatesUsedThisMonth,
		"remaining":       sub.Remaining(),
	})
}

func (h *HTTPHandler) loadJob(c *gin.Context) (*domain.Job, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	var job domain.Job
	if err := h.DB.Where("tenant_id = ?", tenantID(c)).First(&job, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return nil, false
	}
	return &job, true
}

func (h *HTTPHandler) loadCandidate(c *gin.Context) (*domain.Candidate, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	var candidate domain.Candidate
	if err := h.DB.Where("tenant_id = ?", tenantID(c)).First(&candidate, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "candidate not found"})
		return nil, false
	}
	return &candidate, true
}

// candidateResponse keeps failed candidates visible with their stored reason;
// a failure never hides the record or blocks other candidates.
func candidateResponse(candidate *domain.Candidate) gin.H {
	resp := gin.H{
		"id":            candidate.ID,
		"job_id":        candidate.JobID,
		"first_name":    candidate.FirstName,
		"last_name":     candidate.LastName,
		"email":         candidate.Email,
		"phone":         candidate.Phone,
		"location":      candidate.Location,
		"linkedin_url":  candidate.LinkedInURL,
		"github_url":    candidate.GitHubURL,
		"portfolio_url": candidate.PortfolioURL,
		"other_urls":    candidate.OtherURLList(),
		"filename":      candidate.OriginalFilename,
		"status":        candidate.Status,
		"created_at":    candidate.CreatedAt,
	}
	if candidate.Status == domain.CandidateFailed {
		resp["error"] = candidate.ErrorDetail
	}
	return resp
}

// jsonRaw re-emits a stored JSON column without double encoding.
func jsonRaw(s string) interface{} {
	if s == "" {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return v
}

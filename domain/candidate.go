package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// CandidateStatus tracks the resume processing pipeline.
//
// uploaded -> processing -> parsed -> scored
//                  |           |
//                  +--> failed <+
//
// Transitions are strictly forward. A failed candidate can be re-queued, which
// resets it to its pre-failure state as a fresh attempt.
type CandidateStatus string

const (
	CandidateUploaded   CandidateStatus = "uploaded"
	CandidateProcessing CandidateStatus = "processing"
	CandidateParsed     CandidateStatus = "parsed"
	CandidateScored     CandidateStatus = "scored"
	CandidateFailed     CandidateStatus = "failed"
)

type Candidate struct {
	ID       uint   `gorm:"primaryKey"`
	TenantID string `gorm:"size:36;not null;index"`
	JobID    uint   `gorm:"not null;index"`

	// Contact fields are optional (blind screening) and may be filled in by
	// the scoring run's contact extraction. Manually entered values win.
	FirstName string `gorm:"size:255"`
	LastName  string `gorm:"size:255"`
	Email     string `gorm:"size:255"`
	Phone     string `gorm:"size:64"`
	Location  string `gorm:"size:255"`

	// Dedicated slots for known profile links; everything else lands in
	// OtherURLs as a deduplicated JSON array.
	LinkedInURL  string `gorm:"size:512"`
	GitHubURL    string `gorm:"size:512"`
	PortfolioURL string `gorm:"size:512"`
	OtherURLs    string `gorm:"type:text"`

	FileKey          string `gorm:"size:255;not null"`
	OriginalFilename string `gorm:"size:255;not null"`

	ResumeText   string `gorm:"type:longtext"`
	SourceFormat string `gorm:"size:16"`

	Status      CandidateStatus `gorm:"type:varchar(20);default:'uploaded';not null;index"`
	ErrorDetail string          `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExtractedContact is the opportunistic contact extraction returned alongside
// the category grades by a scoring run.
type ExtractedContact struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	Location     string   `json:"location"`
	LinkedInURL  string   `json:"linkedin_url"`
	GitHubURL    string   `json:"github_url"`
	PortfolioURL string   `json:"portfolio_url"`
	OtherURLs    []string `json:"other_urls"`
}

// MergeContact fills empty candidate fields from an extraction. Stored values,
// whether manually entered or extracted by an earlier run, are never
// overwritten by a later one.
func (c *Candidate) MergeContact(x ExtractedContact) {
	setIfEmpty(&c.FirstName, firstWord(x.Name))
	setIfEmpty(&c.LastName, restWords(x.Name))
	setIfEmpty(&c.Email, x.Email)
	setIfEmpty(&c.Phone, x.Phone)
	setIfEmpty(&c.Location, x.Location)
	setIfEmpty(&c.LinkedInURL, x.LinkedInURL)
	setIfEmpty(&c.GitHubURL, x.GitHubURL)
	setIfEmpty(&c.PortfolioURL, x.PortfolioURL)
	c.addOtherURLs(x.OtherURLs)
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func firstWord(s string) string {
	for i, r := range s {
		if r == ' ' {
			return s[:i]
		}
	}
	return s
}

func restWords(s string) string {
	for i, r := range s {
		if r == ' ' {
			return s[i+1:]
		}
	}
	return ""
}

// addOtherURLs merges discovered URLs into the stored set. The set is
// unordered; it is persisted sorted so the stored JSON is stable.
func (c *Candidate) addOtherURLs(urls []string) {
	if len(urls) == 0 {
		return
	}
	set := make(map[string]bool)
	for _, u := range c.OtherURLList() {
		set[u] = true
	}
	for _, u := range urls {
		if u != "" {
			set[u] = true
		}
	}
	merged := make([]string, 0, len(set))
	for u := range set {
		merged = append(merged, u)
	}
	sort.Strings(merged)
	raw, _ := json.Marshal(merged)
	c.OtherURLs = string(raw)
}

// OtherURLList decodes the stored URL set. A missing or malformed column
// reads as empty.
func (c *Candidate) OtherURLList() []string {
	if c.OtherURLs == "" {
		return nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(c.OtherURLs), &urls); err != nil {
		return nil
	}
	return urls
}

// RetryStatus is the pre-failure state a failed candidate resets to when
// explicitly re-queued: parsed when extracted text already survived (only
// scoring is re-run), uploaded otherwise (full re-run).
func (c *Candidate) RetryStatus() CandidateStatus {
	if c.ResumeText != "" {
		return CandidateParsed
	}
	return CandidateUploaded
}

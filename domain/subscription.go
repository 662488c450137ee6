package domain

import "time"

// SubscriptionStatus mirrors the billing provider's lifecycle states. Only
// trialing and active admit work into the pipeline.
type SubscriptionStatus string

const (
	SubscriptionTrialing   SubscriptionStatus = "trialing"
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
)

type SubscriptionPlan string

const (
	PlanFree          SubscriptionPlan = "free"
	PlanStarter       SubscriptionPlan = "starter"
	PlanSmallBusiness SubscriptionPlan = "small_business"
	PlanProfessional  SubscriptionPlan = "professional"
	PlanEnterprise    SubscriptionPlan = "enterprise"
)

// MonthlyLimit is the candidate allowance per billing period for each plan.
func (p SubscriptionPlan) MonthlyLimit() int {
	switch p {
	case PlanStarter:
		return 100
	case PlanSmallBusiness:
		return 1000
	case PlanProfessional, PlanEnterprise:
		return 5000
	default:
		return 10
	}
}

// Subscription is the per-tenant quota record. The usage counter is mutated
// only through the quota gate's conditional increment and reset only by the
// external billing-cycle event.
type Subscription struct {
	ID       uint   `gorm:"primaryKey"`
	TenantID string `gorm:"size:36;not null;uniqueIndex"`

	Plan   SubscriptionPlan   `gorm:"type:varchar(20);default:'free';not null"`
	Status SubscriptionStatus `gorm:"type:varchar(20);default:'trialing';not null;index"`

	MonthlyCandidateLimit   int `gorm:"not null"`
	CandidatesUsedThisMonth int `gorm:"default:0;not null"`

	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the subscription admits work at all.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionActive || s.Status == SubscriptionTrialing
}

// Remaining is the number of candidate uploads left this period.
func (s *Subscription) Remaining() int {
	r := s.MonthlyCandidateLimit - s.CandidatesUsedThisMonth
	if r < 0 {
		return 0
	}
	return r
}

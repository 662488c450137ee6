package pipeline

import (
	"context"
	"fmt"

	"resume-screener/domain"
)

// SubscriptionStore is the tenant/subscription collaborator exposed to the
// quota gate only. TryConsume must perform the under-limit check and the
// usage increment as one atomic datastore operation so that two concurrent
// uploads can never both pass when a single slot remains.
type SubscriptionStore interface {
	Subscription(ctx context.Context, tenantID string) (*domain.Subscription, error)
	TryConsume(ctx context.Context, tenantID string) (bool, error)
}

// QuotaGate is the stateless admission policy every entry point calls before
// work enters the pipeline. Consumed quota is never refunded, even when
// downstream processing fails or the candidate is later deleted.
type QuotaGate struct {
	subs SubscriptionStore
}

func NewQuotaGate(subs SubscriptionStore) *QuotaGate {
	return &QuotaGate{subs: subs}
}

// AdmitJobCreation admits job creation for tenants with an active or trialing
// subscription. No quota is consumed.
func (g *QuotaGate) AdmitJobCreation(ctx context.Context, tenantID string) error {
	sub, err := g.subs.Subscription(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load subscription for tenant %s: %w", tenantID, err)
	}
	if !sub.IsActive() {
		return domain.ErrSubscriptionInactive
	}
	return nil
}

// AdmitCandidateUpload admits a candidate upload and consumes one quota slot.
// The increment is part of the admission check itself; callers must not
// decrement on downstream failure.
func (g *QuotaGate) AdmitCandidateUpload(ctx context.Context, tenantID string) error {
	ok, err := g.subs.TryConsume(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("consume quota for tenant %s: %w", tenantID, err)
	}
	if ok {
		return nil
	}

	// Nothing was consumed; read the record once more to report why.
	sub, err := g.subs.Subscription(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load subscription for tenant %s: %w", tenantID, err)
	}
	if !sub.IsActive() {
		return domain.ErrSubscriptionInactive
	}
	return domain.ErrQuotaExceeded
}

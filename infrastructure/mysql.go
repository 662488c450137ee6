package infrastructure

import (
	"context"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"resume-screener/domain"
)

func NewMySQLConnection(dsn string) *gorm.DB {
	if dsn == "" {
		log.Fatal("DB_DSN is not set in environment")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	// Auto migrate schema
	err = db.AutoMigrate(
		&domain.Subscription{},
		&domain.Job{},
		&domain.Candidate{},
		&domain.Evaluation{},
	)
	if err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

// GormStore implements the pipeline and subscription persistence ports on
// MySQL.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Job(ctx context.Context, id uint) (*domain.Job, error) {
	var job domain.Job
	if err := s.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *GormStore) Candidate(ctx context.Context, id uint) (*domain.Candidate, error) {
	var c domain.Candidate
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GormStore) SaveJob(ctx context.Context, job *domain.Job) error {
	return s.db.WithContext(ctx).Save(job).Error
}

func (s *GormStore) SaveCandidate(ctx context.Context, c *domain.Candidate) error {
	return s.db.WithContext(ctx).Save(c).Error
}

// ReplaceEvaluation supersedes any prior evaluation for the candidate. Delete
// and insert run in one transaction so exactly one evaluation exists per
// candidate at any observable point.
func (s *GormStore) ReplaceEvaluation(ctx context.Context, eval *domain.Evaluation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("candidate_id = ?", eval.CandidateID).
			Delete(&domain.Evaluation{}).Error; err != nil {
			return err
		}
		return tx.Create(eval).Error
	})
}

func (s *GormStore) Evaluation(ctx context.Context, candidateID uint) (*domain.Evaluation, error) {
	var eval domain.Evaluation
	if err := s.db.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		First(&eval).Error; err != nil {
		return nil, err
	}
	return &eval, nil
}

func (s *GormStore) Subscription(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// TryConsume atomically admits one candidate upload: the under-limit check
// and the usage increment are a single conditional UPDATE, so concurrent
// admissions against the same tenant serialize at the datastore row.
func (s *GormStore) TryConsume(ctx context.Context, tenantID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("tenant_id = ?", tenantID).
		Where("status IN ?", []domain.SubscriptionStatus{domain.SubscriptionActive, domain.SubscriptionTrialing}).
		Where("candidates_used_this_month < monthly_candidate_limit").
		UpdateColumn("candidates_used_this_month", gorm.Expr("candidates_used_this_month + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ResetUsage starts a new billing period for the tenant. Called by the
// billing-cycle collaborator, never by the pipeline.
func (s *GormStore) ResetUsage(ctx context.Context, tenantID string) error {
	return s.db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("tenant_id = ?", tenantID).
		UpdateColumn("candidates_used_this_month", 0).Error
}

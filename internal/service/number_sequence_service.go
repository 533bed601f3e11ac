package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NumberSequenceService generates unique, formatted numbers for customers
// and services. Sequences are kept per entity type and per calendar day.
//
// Format: {PREFIX}-{YYYYMMDD}-{SEQUENCE}
// Example: CUST-20260831-001, SVC-20260831-042
type NumberSequenceService struct {
	repo   *repository.NumberSequenceRepository
	logger *zap.Logger
}

// NewNumberSequenceService creates a new NumberSequenceService
func NewNumberSequenceService(
	repo *repository.NumberSequenceRepository,
	logger *zap.Logger,
) *NumberSequenceService {
	return &NumberSequenceService{
		repo:   repo,
		logger: logger,
	}
}

// NextCustomerNumber issues the next customer number, e.g. "CUST-20260831-001"
func (s *NumberSequenceService) NextCustomerNumber(ctx context.Context, now time.Time) (string, error) {
	return s.generate(ctx, domain.SequenceEntityCustomer, "CUST", now)
}

// NextServiceNumber issues the next service number, e.g. "SVC-20260831-001"
func (s *NumberSequenceService) NextServiceNumber(ctx context.Context, now time.Time) (string, error) {
	return s.generate(ctx, domain.SequenceEntityService, "SVC", now)
}

// NextCustomerNumberInTx issues a customer number inside an existing
// transaction so the sequence row lock participates in the caller's commit.
func (s *NumberSequenceService) NextCustomerNumberInTx(tx *gorm.DB, now time.Time) (string, error) {
	seq, err := s.repo.NextInTx(tx, domain.SequenceEntityCustomer, now.Format("20060102"))
	if err != nil {
		return "", fmt.Errorf("failed to generate customer number: %w", err)
	}
	return formatNumber("CUST", now, seq), nil
}

// NextServiceNumberInTx issues a service number inside an existing transaction
func (s *NumberSequenceService) NextServiceNumberInTx(tx *gorm.DB, now time.Time) (string, error) {
	seq, err := s.repo.NextInTx(tx, domain.SequenceEntityService, now.Format("20060102"))
	if err != nil {
		return "", fmt.Errorf("failed to generate service number: %w", err)
	}
	return formatNumber("SVC", now, seq), nil
}

func (s *NumberSequenceService) generate(ctx context.Context, entityType domain.SequenceEntity, prefix string, now time.Time) (string, error) {
	seq, err := s.repo.GetNextNumber(ctx, entityType, now.Format("20060102"))
	if err != nil {
		s.logger.Error("failed to get next sequence number",
			zap.String("entityType", string(entityType)),
			zap.Error(err))
		return "", fmt.Errorf("failed to generate %s number: %w", entityType, err)
	}

	number := formatNumber(prefix, now, seq)
	s.logger.Info("generated number",
		zap.String("entityType", string(entityType)),
		zap.String("number", number))
	return number, nil
}

// formatNumber builds PREFIX-YYYYMMDD-NNN, zero-padded to 3 digits.
// Sequences past 999 keep growing without truncation.
func formatNumber(prefix string, date time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, date.Format("20060102"), seq)
}

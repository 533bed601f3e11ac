package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/auth"
	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/mapper"
	"github.com/nusalink-net/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ActivityService handles the event timeline shown on leads, deals and customers
type ActivityService struct {
	activityRepo *repository.ActivityRepository
	logger       *zap.Logger
}

// NewActivityService creates a new ActivityService
func NewActivityService(activityRepo *repository.ActivityRepository, logger *zap.Logger) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
		logger:       logger,
	}
}

// Create records an activity against a lead, deal or customer
func (s *ActivityService) Create(ctx context.Context, req *domain.CreateActivityRequest) (*domain.ActivityDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	switch req.TargetType {
	case domain.ActivityTargetLead, domain.ActivityTargetDeal, domain.ActivityTargetCustomer:
	default:
		return nil, fmt.Errorf("%w: invalid target type %q", ErrInvalidInput, req.TargetType)
	}

	occurredAt := time.Now()
	if req.OccurredAt != nil {
		parsed, err := time.Parse(time.RFC3339, *req.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid occurredAt timestamp", ErrInvalidInput)
		}
		occurredAt = parsed
	}

	activity := &domain.Activity{
		TargetType:  req.TargetType,
		TargetID:    req.TargetID,
		Title:       req.Title,
		Body:        req.Body,
		OccurredAt:  occurredAt,
		CreatorID:   userCtx.UserID,
		CreatorName: userCtx.DisplayName,
	}

	if err := s.activityRepo.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}

	dto := mapper.ToActivityDTO(activity)
	return &dto, nil
}

// ListByTarget returns the timeline of one entity, newest first
func (s *ActivityService) ListByTarget(ctx context.Context, targetType domain.ActivityTargetType, targetID uuid.UUID, page, pageSize int) ([]domain.ActivityDTO, int64, error) {
	activities, total, err := s.activityRepo.ListByTarget(ctx, targetType, targetID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}

	dtos := make([]domain.ActivityDTO, 0, len(activities))
	for i := range activities {
		dtos = append(dtos, mapper.ToActivityDTO(&activities[i]))
	}
	return dtos, total, nil
}

// Delete removes an activity. Only the creator or an admin may delete.
func (s *ActivityService) Delete(ctx context.Context, id uuid.UUID) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}

	activity, err := s.activityRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: activity %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to get activity: %w", err)
	}

	if activity.CreatorID != userCtx.UserID && !userCtx.IsAdmin() {
		return ErrForbidden
	}

	if err := s.activityRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	return nil
}

// LogEvent records a system-generated activity, used by other services.
// Failures are logged and swallowed so the primary operation is not affected.
func (s *ActivityService) LogEvent(ctx context.Context, targetType domain.ActivityTargetType, targetID uuid.UUID, title, body string) {
	activity := &domain.Activity{
		TargetType: targetType,
		TargetID:   targetID,
		Title:      title,
		Body:       body,
		OccurredAt: time.Now(),
	}
	if userCtx, ok := auth.FromContext(ctx); ok {
		activity.CreatorID = userCtx.UserID
		activity.CreatorName = userCtx.DisplayName
	}
	if err := s.activityRepo.Create(ctx, activity); err != nil {
		s.logger.Warn("failed to log activity",
			zap.String("targetType", string(targetType)),
			zap.String("targetID", targetID.String()),
			zap.Error(err))
	}
}

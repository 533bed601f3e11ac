package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/auth"
	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/mapper"
	"github.com/nusalink-net/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditLogService handles audit logging operations
type AuditLogService struct {
	auditRepo *repository.AuditLogRepository
	logger    *zap.Logger
}

// NewAuditLogService creates a new audit log service
func NewAuditLogService(auditRepo *repository.AuditLogRepository, logger *zap.Logger) *AuditLogService {
	return &AuditLogService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// LogEntry represents the input for creating an audit log entry
type LogEntry struct {
	Action     domain.AuditAction
	EntityType string
	EntityID   *uuid.UUID
	EntityName string
	NewValues  interface{}
	Metadata   map[string]interface{}
}

// Log creates an audit log entry from context and request. Submitted values
// and extra metadata are folded into the metadata jsonb column.
func (s *AuditLogService) Log(ctx context.Context, r *http.Request, entry LogEntry) error {
	auditLog := &domain.AuditLog{
		Action:      entry.Action,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		EntityName:  entry.EntityName,
		PerformedAt: time.Now(),
	}

	if userCtx, ok := auth.FromContext(ctx); ok && userCtx != nil {
		auditLog.UserID = userCtx.UserID
		auditLog.UserEmail = userCtx.Email
		auditLog.UserName = userCtx.DisplayName
	}

	if r != nil {
		auditLog.IPAddress = s.getClientIP(r)
		auditLog.RequestID = r.Header.Get("X-Request-ID")
	}

	metadata := make(map[string]interface{}, len(entry.Metadata)+1)
	for k, v := range entry.Metadata {
		metadata[k] = v
	}
	if entry.NewValues != nil {
		metadata["values"] = entry.NewValues
	}
	if len(metadata) > 0 {
		if metaJSON, err := json.Marshal(metadata); err == nil {
			auditLog.Metadata = string(metaJSON)
		} else {
			auditLog.Metadata = "null"
		}
	} else {
		auditLog.Metadata = "null"
	}

	if err := s.auditRepo.Create(ctx, auditLog); err != nil {
		s.logger.Error("failed to create audit log",
			zap.String("action", string(entry.Action)),
			zap.String("entity_type", entry.EntityType),
			zap.Error(err))
		return err
	}
	return nil
}

// LogAction is a convenience wrapper for service-level audit events that have
// no originating HTTP request body worth recording
func (s *AuditLogService) LogAction(ctx context.Context, action domain.AuditAction, entityType string, entityID uuid.UUID, entityName string) error {
	return s.Log(ctx, nil, LogEntry{
		Action:     action,
		EntityType: entityType,
		EntityID:   &entityID,
		EntityName: entityName,
	})
}

// GetByID returns a single audit entry. Admin surface only; the router gates it.
func (s *AuditLogService) GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditLogDTO, error) {
	log, err := s.auditRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: audit log %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}
	dto := mapper.ToAuditLogDTO(log)
	return &dto, nil
}

// List returns audit entries with pagination and optional filters
func (s *AuditLogService) List(ctx context.Context, filter *repository.AuditLogFilter, page, pageSize int) ([]domain.AuditLogDTO, int64, error) {
	logs, total, err := s.auditRepo.List(ctx, filter, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	dtos := make([]domain.AuditLogDTO, 0, len(logs))
	for i := range logs {
		dtos = append(dtos, mapper.ToAuditLogDTO(&logs[i]))
	}
	return dtos, total, nil
}

// ListByEntity returns the audit trail of one entity, newest first
func (s *AuditLogService) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]domain.AuditLogDTO, error) {
	logs, err := s.auditRepo.ListByEntity(ctx, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	dtos := make([]domain.AuditLogDTO, 0, len(logs))
	for i := range logs {
		dtos = append(dtos, mapper.ToAuditLogDTO(&logs[i]))
	}
	return dtos, nil
}

// getClientIP extracts the client IP, preferring proxy headers
func (s *AuditLogService) getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
		return r.RemoteAddr[:idx]
	}
	return r.RemoteAddr
}

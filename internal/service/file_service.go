package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/auth"
	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/mapper"
	"github.com/nusalink-net/crm-api/internal/repository"
	"github.com/nusalink-net/crm-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FileService handles deal attachments (contracts, survey forms).
// Bytes live in blob storage, metadata in the database.
type FileService struct {
	fileRepo *repository.FileRepository
	dealRepo *repository.DealRepository
	storage  storage.Storage
	logger   *zap.Logger
}

// NewFileService creates a new FileService
func NewFileService(
	fileRepo *repository.FileRepository,
	dealRepo *repository.DealRepository,
	store storage.Storage,
	logger *zap.Logger,
) *FileService {
	return &FileService{
		fileRepo: fileRepo,
		dealRepo: dealRepo,
		storage:  store,
		logger:   logger,
	}
}

// Upload stores an attachment against a deal
func (s *FileService) Upload(ctx context.Context, dealID uuid.UUID, filename, contentType string, data io.Reader) (*domain.FileDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	if _, err := s.dealRepo.GetByID(ctx, dealID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: deal %s", ErrNotFound, dealID)
		}
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}

	storagePath, size, err := s.storage.Upload(ctx, filename, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	file := &domain.File{
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		StoragePath: storagePath,
		DealID:      &dealID,
		UploadedBy:  userCtx.UserID,
	}
	if err := s.fileRepo.Create(ctx, file); err != nil {
		// Best effort cleanup of the orphaned blob
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn("failed to clean up orphaned blob",
				zap.String("storagePath", storagePath),
				zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to save file metadata: %w", err)
	}

	s.logger.Info("file uploaded",
		zap.String("fileID", file.ID.String()),
		zap.String("dealID", dealID.String()),
		zap.Int64("size", size))

	dto := mapper.ToFileDTO(file)
	return &dto, nil
}

// Download streams an attachment's bytes. The caller must close the reader.
func (s *FileService) Download(ctx context.Context, id uuid.UUID) (*domain.FileDTO, io.ReadCloser, error) {
	file, err := s.getFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	reader, err := s.storage.Download(ctx, file.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download file: %w", err)
	}

	dto := mapper.ToFileDTO(file)
	return &dto, reader, nil
}

// ListByDeal returns attachment metadata for a deal
func (s *FileService) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]domain.FileDTO, error) {
	if _, err := s.dealRepo.GetByID(ctx, dealID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: deal %s", ErrNotFound, dealID)
		}
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}

	files, err := s.fileRepo.ListByDeal(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	dtos := make([]domain.FileDTO, 0, len(files))
	for i := range files {
		dtos = append(dtos, mapper.ToFileDTO(&files[i]))
	}
	return dtos, nil
}

// Delete removes an attachment and its stored bytes
func (s *FileService) Delete(ctx context.Context, id uuid.UUID) error {
	file, err := s.getFile(ctx, id)
	if err != nil {
		return err
	}

	if err := s.fileRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete file metadata: %w", err)
	}

	if err := s.storage.Delete(ctx, file.StoragePath); err != nil {
		s.logger.Warn("failed to delete stored blob",
			zap.String("storagePath", file.StoragePath),
			zap.Error(err))
	}
	return nil
}

func (s *FileService) getFile(ctx context.Context, id uuid.UUID) (*domain.File, error) {
	file, err := s.fileRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return file, nil
}

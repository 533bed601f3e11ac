package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NumberSequenceRepository handles database operations for number sequences.
// Each entity type (customer, service) keeps its own per-day counter so that
// generated numbers restart at 001 every day.
type NumberSequenceRepository struct {
	db *gorm.DB
}

// NewNumberSequenceRepository creates a new NumberSequenceRepository
func NewNumberSequenceRepository(db *gorm.DB) *NumberSequenceRepository {
	return &NumberSequenceRepository{db: db}
}

// NextInTx atomically retrieves and increments the sequence for an entity type
// and date inside an existing transaction. Uses SELECT FOR UPDATE so that two
// concurrent conversions can never draw the same number.
// sequenceDate is the compact YYYYMMDD form used in generated numbers.
func (r *NumberSequenceRepository) NextInTx(tx *gorm.DB, entityType domain.SequenceEntity, sequenceDate string) (int, error) {
	var seq domain.NumberSequence

	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("entity_type = ? AND sequence_date = ?", entityType, sequenceDate).
		First(&seq)

	if result.Error == gorm.ErrRecordNotFound {
		seq = domain.NumberSequence{
			ID:           uuid.New(),
			EntityType:   entityType,
			SequenceDate: sequenceDate,
			LastSequence: 1,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if err := tx.Create(&seq).Error; err != nil {
			return 0, fmt.Errorf("failed to create number sequence: %w", err)
		}
		return 1, nil
	}
	if result.Error != nil {
		return 0, fmt.Errorf("failed to get number sequence: %w", result.Error)
	}

	nextSeq := seq.LastSequence + 1
	if err := tx.Model(&seq).Updates(map[string]interface{}{
		"last_sequence": nextSeq,
		"updated_at":    time.Now(),
	}).Error; err != nil {
		return 0, fmt.Errorf("failed to update number sequence: %w", err)
	}

	return nextSeq, nil
}

// GetNextNumber atomically retrieves and increments the sequence for an
// entity type and date in its own transaction.
func (r *NumberSequenceRepository) GetNextNumber(ctx context.Context, entityType domain.SequenceEntity, sequenceDate string) (int, error) {
	var nextSeq int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := r.NextInTx(tx, entityType, sequenceDate)
		if err != nil {
			return err
		}
		nextSeq = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	return nextSeq, nil
}

// GetCurrentSequence retrieves the current sequence value without incrementing.
// Returns 0 if no sequence exists for the entity type/date.
func (r *NumberSequenceRepository) GetCurrentSequence(ctx context.Context, entityType domain.SequenceEntity, sequenceDate string) (int, error) {
	var seq domain.NumberSequence
	result := r.db.WithContext(ctx).
		Where("entity_type = ? AND sequence_date = ?", entityType, sequenceDate).
		First(&seq)

	if result.Error == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if result.Error != nil {
		return 0, fmt.Errorf("failed to get number sequence: %w", result.Error)
	}

	return seq.LastSequence, nil
}

// ListSequences returns all sequences (useful for debugging/admin)
func (r *NumberSequenceRepository) ListSequences(ctx context.Context) ([]domain.NumberSequence, error) {
	var sequences []domain.NumberSequence
	err := r.db.WithContext(ctx).
		Order("entity_type ASC, sequence_date DESC").
		Find(&sequences).Error
	return sequences, err
}

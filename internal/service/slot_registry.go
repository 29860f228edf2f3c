package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-appointment-service/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrSlotUnavailable is returned when a claim races lost, or the slot is
	// already held/booked or does not exist. Callers may retry with another slot.
	ErrSlotUnavailable = errors.New("slot is not available")
	// ErrInvalidSlotState is returned when Commit finds the slot not HELD.
	ErrInvalidSlotState = errors.New("slot is not in a valid state for this transition")
	// ErrSlotNotFound is returned by lookups for unknown slot ids.
	ErrSlotNotFound = errors.New("slot not found")
)

// SlotRegistry owns slot occupancy. All mutation funnels through
// TryClaim/Commit/Release; nothing else in the system writes a slot's
// status field.
//
// The claim protocol: TryClaim moves FREE->HELD and is the exclusivity
// gate (of N concurrent claimants exactly one succeeds). Commit moves
// HELD->BOOKED once the surrounding operation has persisted its booking.
// Release moves HELD or BOOKED back to FREE and is idempotent.
type SlotRegistry interface {
	ListAvailable(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]entity.Slot, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]entity.Slot, error)
	Get(ctx context.Context, slotID int) (*entity.Slot, error)
	TryClaim(ctx context.Context, slotID int) error
	Commit(ctx context.Context, slotID int) error
	Release(ctx context.Context, slotID int) error
	CreateBatch(ctx context.Context, slots []entity.Slot) error
	DeleteIfFree(ctx context.Context, slotID int) (int64, error)
	// ReleaseStaleHolds frees slots left HELD longer than the threshold.
	// HELD is intra-operation state; a long-lived hold means a crashed
	// operation never ran its rollback.
	ReleaseStaleHolds(ctx context.Context, olderThan time.Time) (int64, error)
}

type slotRegistry struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewSlotRegistry(db *gorm.DB, log *logrus.Logger) SlotRegistry {
	return &slotRegistry{db: db, log: log}
}

func (s *slotRegistry) ListAvailable(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]entity.Slot, error) {
	var slots []entity.Slot
	err := s.db.WithContext(ctx).
		Where("doctor_id = ? AND status = ? AND start_time >= ?", doctorID, entity.SlotStatusFree, from).
		Order("start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *slotRegistry) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]entity.Slot, error) {
	var slots []entity.Slot
	err := s.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Order("start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *slotRegistry) Get(ctx context.Context, slotID int) (*entity.Slot, error) {
	var slot entity.Slot
	err := s.db.WithContext(ctx).Where("id = ?", slotID).First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &slot, nil
}

// TryClaim transitions a slot FREE->HELD. The conditional update is the
// linearization point: the database serializes writes to the row, so of N
// concurrent claimants exactly one sees RowsAffected == 1.
func (s *slotRegistry) TryClaim(ctx context.Context, slotID int) error {
	result := s.db.WithContext(ctx).Model(&entity.Slot{}).
		Where("id = ? AND status = ?", slotID, entity.SlotStatusFree).
		Update("status", entity.SlotStatusHeld)
	if result.Error != nil {
		return fmt.Errorf("claim slot %d: %w", slotID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

// Commit transitions HELD->BOOKED. Failing here means the engine logic
// broke the claim protocol, so it is surfaced loudly rather than absorbed.
func (s *slotRegistry) Commit(ctx context.Context, slotID int) error {
	result := s.db.WithContext(ctx).Model(&entity.Slot{}).
		Where("id = ? AND status = ?", slotID, entity.SlotStatusHeld).
		Update("status", entity.SlotStatusBooked)
	if result.Error != nil {
		return fmt.Errorf("commit slot %d: %w", slotID, result.Error)
	}
	if result.RowsAffected == 0 {
		s.log.Errorf("Commit on slot %d found it not HELD", slotID)
		return ErrInvalidSlotState
	}
	return nil
}

// Release transitions HELD or BOOKED back to FREE. Releasing an
// already-FREE slot is a no-op, so rollback paths can call it blindly.
func (s *slotRegistry) Release(ctx context.Context, slotID int) error {
	result := s.db.WithContext(ctx).Model(&entity.Slot{}).
		Where("id = ? AND status IN ?", slotID, []entity.SlotStatus{entity.SlotStatusHeld, entity.SlotStatusBooked}).
		Update("status", entity.SlotStatusFree)
	if result.Error != nil {
		return fmt.Errorf("release slot %d: %w", slotID, result.Error)
	}
	return nil
}

func (s *slotRegistry) CreateBatch(ctx context.Context, slots []entity.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&slots).Error
}

func (s *slotRegistry) DeleteIfFree(ctx context.Context, slotID int) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", slotID, entity.SlotStatusFree).
		Delete(&entity.Slot{})
	return result.RowsAffected, result.Error
}

func (s *slotRegistry) ReleaseStaleHolds(ctx context.Context, olderThan time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&entity.Slot{}).
		Where("status = ? AND updated_at < ?", entity.SlotStatusHeld, olderThan).
		Update("status", entity.SlotStatusFree)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		s.log.Warnf("Released %d stale held slots", result.RowsAffected)
	}
	return result.RowsAffected, result.Error
}

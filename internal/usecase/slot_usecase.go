package usecase

import (
	"context"
	"errors"
	"time"

	"clinic-appointment-service/internal/converter"
	"clinic-appointment-service/internal/delivery/dto"
	"clinic-appointment-service/internal/delivery/http/middleware"
	"clinic-appointment-service/internal/domain/entity"
	"clinic-appointment-service/internal/domain/repository"
	"clinic-appointment-service/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidSlotDate  = errors.New("invalid date format, use YYYY-MM-DD")
	ErrInvalidTimeRange = errors.New("invalid time range, use HH:MM with start before end")
	ErrSlotNotDeletable = errors.New("slot is not free or does not exist")
)

type SlotUsecase interface {
	GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, from time.Time) (*dto.SlotListResponse, error)
	CreateSlots(ctx context.Context, doctorID uuid.UUID, req *dto.CreateSlotsRequest) (*dto.SlotListResponse, error)
	GetSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) (*dto.SlotListResponse, error)
	DeleteSlot(ctx context.Context, slotID int) error
}

type slotUsecase struct {
	log        *logrus.Logger
	slots      service.SlotRegistry
	doctorRepo repository.DoctorRepository
	audit      service.AuditService
}

func NewSlotUsecase(
	log *logrus.Logger,
	slots service.SlotRegistry,
	doctorRepo repository.DoctorRepository,
	audit service.AuditService,
) SlotUsecase {
	return &slotUsecase{
		log:        log,
		slots:      slots,
		doctorRepo: doctorRepo,
		audit:      audit,
	}
}

// GetAvailableSlots returns the doctor's FREE slots starting at or after
// the given time, ordered ascending by start time.
func (u *slotUsecase) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, from time.Time) (*dto.SlotListResponse, error) {
	doctor, err := u.doctorRepo.FindByID(ctx, doctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", doctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, service.ErrDoctorNotFound
	}

	slots, err := u.slots.ListAvailable(ctx, doctorID, from)
	if err != nil {
		u.log.Warnf("Failed to list available slots for doctor %s: %+v", doctorID, err)
		return nil, err
	}

	return &dto.SlotListResponse{
		Slots: converter.SlotsToResponses(slots),
		Total: len(slots),
	}, nil
}

// CreateSlots generates a day's slots for a doctor by cutting the
// [start, end) window into fixed-length intervals. Schedule setup runs
// outside the booking engine; created slots start FREE.
func (u *slotUsecase) CreateSlots(ctx context.Context, doctorID uuid.UUID, req *dto.CreateSlotsRequest) (*dto.SlotListResponse, error) {
	doctor, err := u.doctorRepo.FindByID(ctx, doctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", doctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, service.ErrDoctorNotFound
	}

	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, ErrInvalidSlotDate
	}
	start, err := time.Parse("15:04", req.StartTime)
	if err != nil {
		return nil, ErrInvalidTimeRange
	}
	end, err := time.Parse("15:04", req.EndTime)
	if err != nil {
		return nil, ErrInvalidTimeRange
	}
	if !start.Before(end) {
		return nil, ErrInvalidTimeRange
	}

	windowStart := time.Date(day.Year(), day.Month(), day.Day(), start.Hour(), start.Minute(), 0, 0, time.UTC)
	windowEnd := time.Date(day.Year(), day.Month(), day.Day(), end.Hour(), end.Minute(), 0, 0, time.UTC)
	interval := time.Duration(req.SlotMinutes) * time.Minute

	var slots []entity.Slot
	for cursor := windowStart; !cursor.Add(interval).After(windowEnd); cursor = cursor.Add(interval) {
		slots = append(slots, entity.Slot{
			DoctorID:  doctorID,
			StartTime: cursor,
			EndTime:   cursor.Add(interval),
			Status:    entity.SlotStatusFree,
		})
	}
	if len(slots) == 0 {
		return nil, ErrInvalidTimeRange
	}

	if err := u.slots.CreateBatch(ctx, slots); err != nil {
		u.log.Warnf("Failed to create slots for doctor %s: %+v", doctorID, err)
		return nil, err
	}

	if adminID, ok := middleware.GetUserIDFromContext(ctx); ok {
		u.audit.Record(ctx, &adminID, entity.AuditActionSlotCreate, doctorID.String(), nil,
			map[string]interface{}{"date": req.Date, "count": len(slots)})
	}
	u.log.Infof("Created %d slots for doctor %s on %s", len(slots), doctorID, req.Date)

	return &dto.SlotListResponse{
		Slots: converter.SlotsToResponses(slots),
		Total: len(slots),
	}, nil
}

// GetSlotsByDoctor returns all of a doctor's slots regardless of status.
func (u *slotUsecase) GetSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) (*dto.SlotListResponse, error) {
	doctor, err := u.doctorRepo.FindByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor == nil {
		return nil, service.ErrDoctorNotFound
	}

	slots, err := u.slots.ListByDoctor(ctx, doctorID)
	if err != nil {
		u.log.Warnf("Failed to list slots for doctor %s: %+v", doctorID, err)
		return nil, err
	}

	return &dto.SlotListResponse{
		Slots: converter.SlotsToResponses(slots),
		Total: len(slots),
	}, nil
}

// DeleteSlot removes a slot only while it is FREE. A slot referenced by a
// live booking is never deleted.
func (u *slotUsecase) DeleteSlot(ctx context.Context, slotID int) error {
	affected, err := u.slots.DeleteIfFree(ctx, slotID)
	if err != nil {
		u.log.Warnf("Failed to delete slot %d: %+v", slotID, err)
		return err
	}
	if affected == 0 {
		return ErrSlotNotDeletable
	}

	if adminID, ok := middleware.GetUserIDFromContext(ctx); ok {
		u.audit.Record(ctx, &adminID, entity.AuditActionSlotDelete, "", map[string]interface{}{"slot_id": slotID}, nil)
	}
	return nil
}

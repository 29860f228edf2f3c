package repository

import (
	"context"
	"errors"
	"time"

	"clinic-appointment-service/internal/domain/entity"
	domainRepo "clinic-appointment-service/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) domainRepo.BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *bookingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Booking{}).Error
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	var booking entity.Booking
	err := r.db.WithContext(ctx).
		Preload("Slot").Preload("Doctor").
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByPatientID(ctx context.Context, patientID uuid.UUID) ([]entity.Booking, error) {
	var bookings []entity.Booking
	err := r.db.WithContext(ctx).
		Preload("Slot").Preload("Doctor").
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *bookingRepository) CancelIfActive(ctx context.Context, id uuid.UUID) (int, int64, error) {
	// RETURNING hands back the slot the row pointed at when the update
	// landed; the caller releases that slot, not its pre-read copy.
	booking := entity.Booking{ID: id}
	result := r.db.WithContext(ctx).Model(&booking).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "slot_id"}}}).
		Where("status != ?", entity.BookingStatusCancelled).
		Update("status", entity.BookingStatusCancelled)
	return booking.SlotID, result.RowsAffected, result.Error
}

func (r *bookingRepository) UpdatePayment(ctx context.Context, id uuid.UUID, status entity.BookingStatus, payment entity.PaymentStatus) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entity.Booking{}).
		Where("id = ? AND status != ?", id, entity.BookingStatusCancelled).
		Updates(map[string]interface{}{
			"status":         status,
			"payment_status": payment,
		})
	return result.RowsAffected, result.Error
}

func (r *bookingRepository) Repoint(ctx context.Context, id uuid.UUID, slotID int, doctorID uuid.UUID, day time.Time, queueNumber int) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entity.Booking{}).
		Where("id = ? AND status != ?", id, entity.BookingStatusCancelled).
		Updates(map[string]interface{}{
			"slot_id":         slotID,
			"doctor_id":       doctorID,
			"appointment_day": day,
			"queue_number":    queueNumber,
		})
	return result.RowsAffected, result.Error
}

func (r *bookingRepository) CountAhead(ctx context.Context, doctorID uuid.UUID, day time.Time, queueNumber int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Booking{}).
		Where("doctor_id = ? AND appointment_day = ? AND queue_number < ? AND status != ?",
			doctorID, day, queueNumber, entity.BookingStatusCancelled).
		Count(&count).Error
	return count, err
}

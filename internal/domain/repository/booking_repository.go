package repository

import (
	"context"
	"time"

	"clinic-appointment-service/internal/domain/entity"

	"github.com/google/uuid"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	// Delete removes a booking row that was never committed. It exists only
	// for rollback inside CreateBooking; cancelled bookings are kept forever.
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByPatientID(ctx context.Context, patientID uuid.UUID) ([]entity.Booking, error)
	// CancelIfActive atomically cancels a booking only if it is not already
	// cancelled. Returns the slot the row pointed at when the status
	// flipped plus affected rows: 1 = this caller flipped the status,
	// 0 = it was already cancelled (guards the double-cancel race). The
	// returned slot is the one the caller must release; the copy read
	// before the flip may be stale if a reschedule raced in between.
	CancelIfActive(ctx context.Context, id uuid.UUID) (int, int64, error)
	// UpdatePayment writes the payment outcome, skipping cancelled rows so
	// a racing cancel can never be overwritten. Affected rows 0 means the
	// booking was cancelled between the caller's read and this write.
	UpdatePayment(ctx context.Context, id uuid.UUID, status entity.BookingStatus, payment entity.PaymentStatus) (int64, error)
	// Repoint moves a booking to a different slot, refreshing the
	// denormalized doctor/day and the queue number in a single update.
	// Cancelled rows are skipped; affected rows 0 tells the caller a
	// concurrent cancel won.
	Repoint(ctx context.Context, id uuid.UUID, slotID int, doctorID uuid.UUID, day time.Time, queueNumber int) (int64, error)
	// CountAhead counts non-cancelled bookings for the same doctor and day
	// with a strictly smaller queue number.
	CountAhead(ctx context.Context, doctorID uuid.UUID, day time.Time, queueNumber int) (int64, error)
}

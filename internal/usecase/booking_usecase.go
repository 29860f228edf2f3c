package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
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
	ErrBookingNotFound         = errors.New("booking not found")
	ErrBookingNotOwned         = errors.New("booking does not belong to you")
	ErrBookingAlreadyCancelled = errors.New("booking is already cancelled")
	ErrEmptyReason             = errors.New("reason for visit must not be empty")
	ErrSlotDoctorMismatch      = errors.New("slot does not belong to this doctor")
	ErrSlotInPast              = errors.New("cannot book a slot in the past")
)

// BookingUsecase is the booking lifecycle engine: it is the sole mutator
// of booking state and (through the slot registry) of slot occupancy.
type BookingUsecase interface {
	CreateBooking(ctx context.Context, doctorID uuid.UUID, slotID int, req *dto.CreateBookingRequest) (*dto.BookingResponse, error)
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, success bool) (*dto.BookingResponse, error)
	CancelBooking(ctx context.Context, bookingID uuid.UUID) error
	RescheduleBooking(ctx context.Context, bookingID uuid.UUID, newSlotID int) (*dto.BookingResponse, error)
	GetMyBookings(ctx context.Context) (*dto.PatientBookingListResponse, error)
}

type bookingUsecase struct {
	log         *logrus.Logger
	bookingRepo repository.BookingRepository
	slots       service.SlotRegistry
	queue       service.QueueAllocator
	estimator   service.QueueEstimator
	audit       service.AuditService
}

func NewBookingUsecase(
	log *logrus.Logger,
	bookingRepo repository.BookingRepository,
	slots service.SlotRegistry,
	queue service.QueueAllocator,
	estimator service.QueueEstimator,
	audit service.AuditService,
) BookingUsecase {
	return &bookingUsecase{
		log:         log,
		bookingRepo: bookingRepo,
		slots:       slots,
		queue:       queue,
		estimator:   estimator,
		audit:       audit,
	}
}

// CreateBooking claims a slot for the logged-in patient.
//
// Flow:
// 1. Validate the reason text and the slot itself
// 2. TryClaim (FREE->HELD) - the exclusivity gate, at most one caller wins
// 3. Allocate the next queue number for (doctor, day)
// 4. Insert the booking (PENDING / payment PENDING)
// 5. Commit the slot (HELD->BOOKED)
// Any failure after step 2 compensates before returning: the booking row
// (if inserted) is removed and the slot is released, so no slot is ever
// left HELD past the call.
func (u *bookingUsecase) CreateBooking(ctx context.Context, doctorID uuid.UUID, slotID int, req *dto.CreateBookingRequest) (*dto.BookingResponse, error) {
	patientID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	// Step 1: validate input and slot
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}

	slot, err := u.slots.Get(ctx, slotID)
	if err != nil {
		if errors.Is(err, service.ErrSlotNotFound) {
			return nil, service.ErrSlotUnavailable
		}
		u.log.Warnf("Failed to find slot %d: %+v", slotID, err)
		return nil, err
	}
	if slot.DoctorID != doctorID {
		return nil, ErrSlotDoctorMismatch
	}
	if slot.StartTime.Before(time.Now()) {
		return nil, ErrSlotInPast
	}

	// Step 2: claim the slot. Losing the race surfaces ErrSlotUnavailable
	// and nothing has been written yet.
	if err := u.slots.TryClaim(ctx, slotID); err != nil {
		return nil, err
	}

	// Step 3: queue number for the doctor's day
	day := slot.Day()
	queueNumber, err := u.queue.Next(ctx, doctorID, day)
	if err != nil {
		u.rollbackClaim(ctx, slotID, uuid.Nil)
		return nil, err
	}

	// Step 4: persist the booking
	booking := &entity.Booking{
		ID:             uuid.New(),
		PatientID:      patientID,
		SlotID:         slotID,
		DoctorID:       doctorID,
		AppointmentDay: day,
		BookingCode:    generateBookingCode(slot.StartTime),
		Reason:         reason,
		QueueNumber:    queueNumber,
		Status:         entity.BookingStatusPending,
		PaymentStatus:  entity.PaymentStatusPending,
	}
	if err := u.bookingRepo.Create(ctx, booking); err != nil {
		u.log.Errorf("Failed to insert booking, rolling back slot claim: %+v", err)
		u.rollbackClaim(ctx, slotID, uuid.Nil)
		return nil, err
	}

	// Step 5: commit the slot
	if err := u.slots.Commit(ctx, slotID); err != nil {
		u.log.Errorf("Failed to commit slot %d, rolling back booking: %+v", slotID, err)
		u.rollbackClaim(ctx, slotID, booking.ID)
		return nil, err
	}

	u.audit.Record(ctx, &patientID, entity.AuditActionBookingCreate, booking.ID.String(), nil, booking)
	u.log.Infof("Booking created: id=%s, slot=%d, queue=%d, code=%s", booking.ID, slotID, queueNumber, booking.BookingCode)

	return converter.BookingToResponse(booking), nil
}

// rollbackClaim undoes a partially completed CreateBooking: removes the
// never-committed booking row when one exists, then frees the held slot.
func (u *bookingUsecase) rollbackClaim(ctx context.Context, slotID int, bookingID uuid.UUID) {
	if bookingID != uuid.Nil {
		if err := u.bookingRepo.Delete(ctx, bookingID); err != nil {
			u.log.Errorf("CRITICAL: failed to remove booking %s during rollback: %+v", bookingID, err)
		}
	}
	u.releaseOrLog(ctx, slotID)
}

func (u *bookingUsecase) releaseOrLog(ctx context.Context, slotID int) {
	if err := u.slots.Release(ctx, slotID); err != nil {
		u.log.Errorf("CRITICAL: failed to release slot %d during rollback: %+v", slotID, err)
	}
}

// ConfirmPayment applies the payment gateway's outcome to a booking.
// The gateway may retry the callback, so confirming an already-paid
// booking is a no-op returning the current state.
func (u *bookingUsecase) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, success bool) (*dto.BookingResponse, error) {
	booking, err := u.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		u.log.Warnf("Failed to find booking %s: %+v", bookingID, err)
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if booking.IsCancelled() {
		return nil, ErrBookingAlreadyCancelled
	}

	// Payment is terminal once PAID; retried callbacks (success or the
	// gateway flip-flopping to failure) no longer change anything.
	if booking.IsPaid() {
		return converter.BookingToResponse(booking), nil
	}

	if success {
		// The write skips cancelled rows: a cancel landing between the
		// read above and this update must not be overwritten.
		affected, err := u.bookingRepo.UpdatePayment(ctx, bookingID, entity.BookingStatusConfirmed, entity.PaymentStatusPaid)
		if err != nil {
			u.log.Warnf("Failed to confirm booking %s: %+v", bookingID, err)
			return nil, err
		}
		if affected == 0 {
			return nil, ErrBookingAlreadyCancelled
		}
		u.audit.Record(ctx, nil, entity.AuditActionBookingConfirm, bookingID.String(),
			map[string]interface{}{"status": booking.Status, "payment_status": booking.PaymentStatus},
			map[string]interface{}{"status": entity.BookingStatusConfirmed, "payment_status": entity.PaymentStatusPaid})
		booking.Status = entity.BookingStatusConfirmed
		booking.PaymentStatus = entity.PaymentStatusPaid
	} else {
		// The reservation itself is not at fault: the booking stays
		// PENDING on its BOOKED slot and the patient may retry payment.
		affected, err := u.bookingRepo.UpdatePayment(ctx, bookingID, booking.Status, entity.PaymentStatusFailed)
		if err != nil {
			u.log.Warnf("Failed to record payment failure for booking %s: %+v", bookingID, err)
			return nil, err
		}
		if affected == 0 {
			return nil, ErrBookingAlreadyCancelled
		}
		u.audit.Record(ctx, nil, entity.AuditActionPaymentFailed, bookingID.String(),
			map[string]interface{}{"payment_status": booking.PaymentStatus},
			map[string]interface{}{"payment_status": entity.PaymentStatusFailed})
		booking.PaymentStatus = entity.PaymentStatusFailed
	}

	u.log.Infof("Payment callback applied: booking=%s, success=%t", bookingID, success)
	return converter.BookingToResponse(booking), nil
}

// CancelBooking cancels a booking and frees its slot. Cancelling an
// already-cancelled booking is an idempotent no-op; the slot is released
// only by the caller that actually flips the status.
func (u *bookingUsecase) CancelBooking(ctx context.Context, bookingID uuid.UUID) error {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return errors.New("user not found in context")
	}

	booking, err := u.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		u.log.Warnf("Failed to find booking %s: %+v", bookingID, err)
		return err
	}
	if booking == nil {
		return ErrBookingNotFound
	}

	if err := u.authorize(ctx, booking, userID); err != nil {
		return err
	}

	if booking.IsCancelled() {
		return nil
	}

	// The conditional update guards the double-cancel race: affected rows
	// 0 means another request got there first and already freed the slot.
	// The update also returns the slot the row pointed at when it flipped;
	// releasing that slot (and not the copy read above) keeps a concurrent
	// reschedule from making us free a slot someone else now occupies.
	slotID, affected, err := u.bookingRepo.CancelIfActive(ctx, bookingID)
	if err != nil {
		u.log.Warnf("Failed to cancel booking %s: %+v", bookingID, err)
		return err
	}
	if affected == 0 {
		return nil
	}

	if err := u.slots.Release(ctx, slotID); err != nil {
		u.log.Errorf("CRITICAL: booking %s cancelled but slot %d not released: %+v", bookingID, slotID, err)
		return err
	}

	u.audit.Record(ctx, &userID, entity.AuditActionBookingCancel, bookingID.String(),
		map[string]interface{}{"status": booking.Status}, map[string]interface{}{"status": entity.BookingStatusCancelled})
	u.log.Infof("Booking cancelled: id=%s, slot=%d", bookingID, slotID)
	return nil
}

// RescheduleBooking moves a booking to a new slot. The new slot is
// claimed first; only after that claim succeeds is anything else touched,
// so a failed claim leaves the booking and both slots exactly as they
// were. The booking keeps its status and payment status and receives a
// fresh queue number for the new doctor/day.
func (u *bookingUsecase) RescheduleBooking(ctx context.Context, bookingID uuid.UUID, newSlotID int) (*dto.BookingResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	booking, err := u.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		u.log.Warnf("Failed to find booking %s: %+v", bookingID, err)
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}

	if err := u.authorize(ctx, booking, userID); err != nil {
		return nil, err
	}
	if booking.IsCancelled() {
		return nil, ErrBookingAlreadyCancelled
	}

	newSlot, err := u.slots.Get(ctx, newSlotID)
	if err != nil {
		return nil, err
	}
	if newSlot.StartTime.Before(time.Now()) {
		return nil, ErrSlotInPast
	}

	// Claim the new slot first. On failure nothing has changed: the old
	// slot stays BOOKED and the booking stays where it is.
	if err := u.slots.TryClaim(ctx, newSlotID); err != nil {
		return nil, err
	}

	oldSlotID := booking.SlotID
	newDay := newSlot.Day()
	queueNumber, err := u.queue.Next(ctx, newSlot.DoctorID, newDay)
	if err != nil {
		u.releaseOrLog(ctx, newSlotID)
		return nil, err
	}

	affected, err := u.bookingRepo.Repoint(ctx, bookingID, newSlotID, newSlot.DoctorID, newDay, queueNumber)
	if err != nil {
		u.log.Errorf("Failed to repoint booking %s, rolling back new slot claim: %+v", bookingID, err)
		u.releaseOrLog(ctx, newSlotID)
		return nil, err
	}
	if affected == 0 {
		// A concurrent cancel flipped the booking after our read and
		// already released the old slot; give the new claim back too.
		u.releaseOrLog(ctx, newSlotID)
		return nil, ErrBookingAlreadyCancelled
	}

	if err := u.slots.Commit(ctx, newSlotID); err != nil {
		// Restore the booking onto the old slot before giving up.
		u.log.Errorf("Failed to commit slot %d, restoring booking %s: %+v", newSlotID, bookingID, err)
		if _, restoreErr := u.bookingRepo.Repoint(ctx, bookingID, oldSlotID, booking.DoctorID, booking.AppointmentDay, booking.QueueNumber); restoreErr != nil {
			u.log.Errorf("CRITICAL: failed to restore booking %s onto slot %d: %+v", bookingID, oldSlotID, restoreErr)
		}
		u.releaseOrLog(ctx, newSlotID)
		return nil, err
	}

	if err := u.slots.Release(ctx, oldSlotID); err != nil {
		u.log.Errorf("CRITICAL: booking %s moved to slot %d but old slot %d not released: %+v", bookingID, newSlotID, oldSlotID, err)
	}

	u.audit.Record(ctx, &userID, entity.AuditActionBookingReschedule, bookingID.String(),
		map[string]interface{}{"slot_id": oldSlotID, "queue_number": booking.QueueNumber},
		map[string]interface{}{"slot_id": newSlotID, "queue_number": queueNumber})
	u.log.Infof("Booking rescheduled: id=%s, slot %d -> %d, queue=%d", bookingID, oldSlotID, newSlotID, queueNumber)

	updated, err := u.bookingRepo.FindByID(ctx, bookingID)
	if err != nil || updated == nil {
		// Reschedule itself succeeded; fall back to the stale copy.
		booking.SlotID = newSlotID
		booking.DoctorID = newSlot.DoctorID
		booking.AppointmentDay = newDay
		booking.QueueNumber = queueNumber
		return converter.BookingToResponse(booking), nil
	}
	return converter.BookingToResponse(updated), nil
}

// GetMyBookings returns the logged-in patient's bookings joined with the
// doctor, slot, and live queue position for each.
func (u *bookingUsecase) GetMyBookings(ctx context.Context) (*dto.PatientBookingListResponse, error) {
	patientID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	bookings, err := u.bookingRepo.FindByPatientID(ctx, patientID)
	if err != nil {
		u.log.Warnf("Failed to find bookings for patient %s: %+v", patientID, err)
		return nil, err
	}

	items := make([]dto.PatientBookingItem, 0, len(bookings))
	for i := range bookings {
		booking := &bookings[i]

		item := dto.PatientBookingItem{
			Booking: *converter.BookingToResponse(booking),
			Doctor:  *converter.DoctorToResponse(&booking.Doctor),
			Slot:    *converter.SlotToResponse(&booking.Slot),
		}

		// Queue position only means something for active bookings.
		if !booking.IsCancelled() {
			position, err := u.estimator.Position(ctx, booking.DoctorID, booking.AppointmentDay, booking.QueueNumber)
			if err != nil {
				u.log.Warnf("Failed to estimate queue position for booking %s: %+v", booking.ID, err)
				return nil, err
			}
			item.PeopleAhead = position.PeopleAhead
			item.EstimatedWaitMinutes = position.EstimatedWaitMinutes
		}

		items = append(items, item)
	}

	return &dto.PatientBookingListResponse{
		Bookings: items,
		Total:    len(items),
	}, nil
}

// authorize enforces the ownership rule shared by Cancel and Reschedule:
// the requester must be the booking's patient, or an administrator.
func (u *bookingUsecase) authorize(ctx context.Context, booking *entity.Booking, userID uuid.UUID) error {
	if booking.PatientID == userID {
		return nil
	}
	if role, ok := middleware.GetRoleFromContext(ctx); ok && role == entity.RoleAdmin {
		return nil
	}
	return ErrBookingNotOwned
}

// generateBookingCode generates a unique booking code: BK-YYYYMMDD-XXXXXX
func generateBookingCode(slotStart time.Time) string {
	dateStr := slotStart.UTC().Format("20060102")
	randomBytes := make([]byte, 3)
	rand.Read(randomBytes)
	return fmt.Sprintf("BK-%s-%06X", dateStr, randomBytes)
}

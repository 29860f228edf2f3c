package entity

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// PaymentStatus represents the payment leg of a booking
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// Booking represents a patient's claim on a slot.
//
// Lifecycle: PENDING -> CONFIRMED (on payment success) or CANCELLED (from
// either). CANCELLED is terminal and absorbing. Payment: PENDING -> PAID or
// FAILED; FAILED may retry back to PAID; PAID is terminal. Cancelled rows are
// never deleted, they remain as audit history.
type Booking struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	PatientID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"patient_id"`
	SlotID         int           `gorm:"not null;index" json:"slot_id"`
	DoctorID       uuid.UUID     `gorm:"type:uuid;not null;index:idx_bookings_doctor_day" json:"doctor_id"`
	AppointmentDay time.Time     `gorm:"type:date;not null;index:idx_bookings_doctor_day,priority:2" json:"appointment_day"`
	BookingCode    string        `gorm:"type:varchar(50);uniqueIndex;not null" json:"booking_code"`
	Reason         string        `gorm:"type:text;not null" json:"reason"`
	QueueNumber    int           `gorm:"not null" json:"queue_number"`
	Status         BookingStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	PaymentStatus  PaymentStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"payment_status"`
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Slot   Slot   `gorm:"foreignKey:SlotID" json:"slot,omitempty"`
	Doctor Doctor `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}

func (Booking) TableName() string {
	return "bookings"
}

// IsPending checks if booking is in pending status
func (b *Booking) IsPending() bool {
	return b.Status == BookingStatusPending
}

// IsConfirmed checks if booking is confirmed
func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingStatusConfirmed
}

// IsCancelled checks if booking is cancelled
func (b *Booking) IsCancelled() bool {
	return b.Status == BookingStatusCancelled
}

// IsPaid checks if the booking has been paid for
func (b *Booking) IsPaid() bool {
	return b.PaymentStatus == PaymentStatusPaid
}

// CanTransitionTo reports whether moving to the target status is allowed
// by the booking state machine. CANCELLED never transitions out;
// CONFIRMED may only move to CANCELLED.
func (b *Booking) CanTransitionTo(target BookingStatus) bool {
	switch b.Status {
	case BookingStatusPending:
		return target == BookingStatusConfirmed || target == BookingStatusCancelled
	case BookingStatusConfirmed:
		return target == BookingStatusCancelled
	default:
		return false
	}
}

// CanPay reports whether the payment leg may still change. Payment is
// terminal once PAID, and a cancelled booking can never become paid.
func (b *Booking) CanPay() bool {
	return !b.IsCancelled() && !b.IsPaid()
}

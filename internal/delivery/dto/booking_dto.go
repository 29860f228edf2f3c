package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type CreateBookingRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type RescheduleBookingRequest struct {
	NewSlotID int `json:"new_slot_id" validate:"required,min=1"`
}

// Response DTOs

type BookingResponse struct {
	ID             uuid.UUID       `json:"id"`
	PatientID      uuid.UUID       `json:"patient_id"`
	SlotID         int             `json:"slot_id"`
	DoctorID       uuid.UUID       `json:"doctor_id"`
	BookingCode    string          `json:"booking_code"`
	Reason         string          `json:"reason"`
	QueueNumber    int             `json:"queue_number"`
	Status         string          `json:"status"`
	PaymentStatus  string          `json:"payment_status"`
	AppointmentDay string          `json:"appointment_day"`
	Slot           *SlotResponse   `json:"slot,omitempty"`
	Doctor         *DoctorResponse `json:"doctor,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PatientBookingItem is one row of the patient dashboard: the booking,
// its doctor and slot, and the live queue position derived from the
// current booking set.
type PatientBookingItem struct {
	Booking              BookingResponse `json:"booking"`
	Doctor               DoctorResponse  `json:"doctor"`
	Slot                 SlotResponse    `json:"slot"`
	PeopleAhead          int             `json:"people_ahead"`
	EstimatedWaitMinutes int             `json:"estimated_wait_minutes"`
}

type PatientBookingListResponse struct {
	Bookings []PatientBookingItem `json:"bookings"`
	Total    int                  `json:"total"`
}

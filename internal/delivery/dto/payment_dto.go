package dto

import "github.com/google/uuid"

// PaymentCallbackRequest is the payload posted by the payment gateway
// once a payment attempt settles. The callback may be retried; confirming
// an already-paid booking is a no-op.
type PaymentCallbackRequest struct {
	BookingID uuid.UUID `json:"booking_id" validate:"required"`
	Success   *bool     `json:"success" validate:"required"`
}

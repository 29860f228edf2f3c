package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    BookingStatus
		to      BookingStatus
		allowed bool
	}{
		{"pending to confirmed", BookingStatusPending, BookingStatusConfirmed, true},
		{"pending to cancelled", BookingStatusPending, BookingStatusCancelled, true},
		{"confirmed to cancelled", BookingStatusConfirmed, BookingStatusCancelled, true},
		{"confirmed to pending", BookingStatusConfirmed, BookingStatusPending, false},
		{"cancelled to pending", BookingStatusCancelled, BookingStatusPending, false},
		{"cancelled to confirmed", BookingStatusCancelled, BookingStatusConfirmed, false},
		{"cancelled to cancelled", BookingStatusCancelled, BookingStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Booking{Status: tt.from}
			assert.Equal(t, tt.allowed, b.CanTransitionTo(tt.to))
		})
	}
}

func TestBookingCanPay(t *testing.T) {
	tests := []struct {
		name    string
		status  BookingStatus
		payment PaymentStatus
		canPay  bool
	}{
		{"pending unpaid", BookingStatusPending, PaymentStatusPending, true},
		{"pending after failed attempt", BookingStatusPending, PaymentStatusFailed, true},
		{"already paid", BookingStatusConfirmed, PaymentStatusPaid, false},
		{"cancelled", BookingStatusCancelled, PaymentStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Booking{Status: tt.status, PaymentStatus: tt.payment}
			assert.Equal(t, tt.canPay, b.CanPay())
		})
	}
}

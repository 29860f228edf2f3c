package converter

import (
	"clinic-appointment-service/internal/delivery/dto"
	"clinic-appointment-service/internal/domain/entity"

	"github.com/google/uuid"
)

// BookingToResponse converts a Booking entity to BookingResponse DTO
func BookingToResponse(booking *entity.Booking) *dto.BookingResponse {
	if booking == nil {
		return nil
	}

	response := &dto.BookingResponse{
		ID:             booking.ID,
		PatientID:      booking.PatientID,
		SlotID:         booking.SlotID,
		DoctorID:       booking.DoctorID,
		BookingCode:    booking.BookingCode,
		Reason:         booking.Reason,
		QueueNumber:    booking.QueueNumber,
		Status:         string(booking.Status),
		PaymentStatus:  string(booking.PaymentStatus),
		AppointmentDay: booking.AppointmentDay.Format("2006-01-02"),
		CreatedAt:      booking.CreatedAt,
		UpdatedAt:      booking.UpdatedAt,
	}

	// Include slot and doctor info if preloaded
	if booking.Slot.ID != 0 {
		response.Slot = SlotToResponse(&booking.Slot)
	}
	if booking.Doctor.ID != uuid.Nil {
		response.Doctor = DoctorToResponse(&booking.Doctor)
	}

	return response
}

package converter

import (
	"clinic-appointment-service/internal/delivery/dto"
	"clinic-appointment-service/internal/domain/entity"
)

// SlotToResponse converts a Slot entity to SlotResponse DTO
func SlotToResponse(slot *entity.Slot) *dto.SlotResponse {
	if slot == nil {
		return nil
	}

	return &dto.SlotResponse{
		ID:        slot.ID,
		DoctorID:  slot.DoctorID,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		Status:    string(slot.Status),
	}
}

// SlotsToResponses converts a slice of Slot entities to SlotResponse DTOs
func SlotsToResponses(slots []entity.Slot) []dto.SlotResponse {
	responses := make([]dto.SlotResponse, len(slots))
	for i, slot := range slots {
		responses[i] = *SlotToResponse(&slot)
	}
	return responses
}

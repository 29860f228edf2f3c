package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"clinic-appointment-service/internal/delivery/dto"
	"clinic-appointment-service/internal/service"
	"clinic-appointment-service/internal/usecase"
	"clinic-appointment-service/pkg/response"
	"clinic-appointment-service/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type SlotHandler struct {
	slotUsecase usecase.SlotUsecase
	validator   *validator.CustomValidator
}

func NewSlotHandler(slotUsecase usecase.SlotUsecase, validator *validator.CustomValidator) *SlotHandler {
	return &SlotHandler{
		slotUsecase: slotUsecase,
		validator:   validator,
	}
}

// GetAvailableSlots lists a doctor's FREE slots. An optional `from` query
// parameter (RFC 3339) moves the lower bound; it defaults to now.
func (h *SlotHandler) GetAvailableSlots(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	doctorID, err := uuid.Parse(vars["doctorId"])
	if err != nil {
		response.BadRequest(w, "Invalid doctor ID")
		return
	}

	from := time.Now()
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "Invalid 'from' parameter, use RFC 3339")
			return
		}
	}

	slots, err := h.slotUsecase.GetAvailableSlots(r.Context(), doctorID, from)
	if err != nil {
		switch err {
		case service.ErrDoctorNotFound:
			response.NotFound(w, "Doctor not found")
		default:
			response.InternalServerError(w, "Failed to get slots")
		}
		return
	}

	response.Success(w, http.StatusOK, "Slots retrieved successfully", slots)
}

func (h *SlotHandler) CreateSlots(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	doctorID, err := uuid.Parse(vars["doctorId"])
	if err != nil {
		response.BadRequest(w, "Invalid doctor ID")
		return
	}

	var req dto.CreateSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	slots, err := h.slotUsecase.CreateSlots(r.Context(), doctorID, &req)
	if err != nil {
		switch err {
		case service.ErrDoctorNotFound:
			response.NotFound(w, "Doctor not found")
		case usecase.ErrInvalidSlotDate:
			response.BadRequest(w, "Invalid date format, use YYYY-MM-DD")
		case usecase.ErrInvalidTimeRange:
			response.BadRequest(w, "Invalid time range")
		default:
			response.InternalServerError(w, "Failed to create slots")
		}
		return
	}

	response.Success(w, http.StatusCreated, "Slots created successfully", slots)
}

func (h *SlotHandler) GetSlotsByDoctor(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	doctorID, err := uuid.Parse(vars["doctorId"])
	if err != nil {
		response.BadRequest(w, "Invalid doctor ID")
		return
	}

	slots, err := h.slotUsecase.GetSlotsByDoctor(r.Context(), doctorID)
	if err != nil {
		switch err {
		case service.ErrDoctorNotFound:
			response.NotFound(w, "Doctor not found")
		default:
			response.InternalServerError(w, "Failed to get slots")
		}
		return
	}

	response.Success(w, http.StatusOK, "Slots retrieved successfully", slots)
}

func (h *SlotHandler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	slotID, err := strconv.Atoi(vars["slotId"])
	if err != nil || slotID < 1 {
		response.BadRequest(w, "Invalid slot ID")
		return
	}

	if err := h.slotUsecase.DeleteSlot(r.Context(), slotID); err != nil {
		switch err {
		case usecase.ErrSlotNotDeletable:
			response.Conflict(w, "Slot is not free or does not exist")
		default:
			response.InternalServerError(w, "Failed to delete slot")
		}
		return
	}

	response.Success(w, http.StatusOK, "Slot deleted successfully", nil)
}

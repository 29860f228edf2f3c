package handler

import (
	"encoding/json"
	"net/http"

	"clinic-appointment-service/internal/delivery/dto"
	"clinic-appointment-service/internal/usecase"
	"clinic-appointment-service/pkg/response"
	"clinic-appointment-service/pkg/validator"
)

type PaymentHandler struct {
	bookingUsecase usecase.BookingUsecase
	validator      *validator.CustomValidator
}

func NewPaymentHandler(bookingUsecase usecase.BookingUsecase, validator *validator.CustomValidator) *PaymentHandler {
	return &PaymentHandler{
		bookingUsecase: bookingUsecase,
		validator:      validator,
	}
}

// HandleCallback settles a payment attempt against its booking. A
// successful payment confirms the booking; a failed one leaves it
// PENDING so the patient can retry.
func (h *PaymentHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	var req dto.PaymentCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	booking, err := h.bookingUsecase.ConfirmPayment(r.Context(), req.BookingID, *req.Success)
	if err != nil {
		switch err {
		case usecase.ErrBookingNotFound:
			response.NotFound(w, "Booking not found")
		case usecase.ErrBookingAlreadyCancelled:
			response.Conflict(w, "Booking is cancelled and cannot be paid")
		default:
			response.InternalServerError(w, "Failed to process payment")
		}
		return
	}

	response.Success(w, http.StatusOK, "Payment processed successfully", booking)
}

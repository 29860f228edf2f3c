package dto

import "github.com/google/uuid"

// Request DTOs

type CreateDoctorRequest struct {
	Name             string   `json:"name" validate:"required,min=2,max=100"`
	Specialization   string   `json:"specialization" validate:"required,min=2,max=100"`
	City             string   `json:"city" validate:"required,min=2,max=100"`
	ConsultationType string   `json:"consultation_type" validate:"required,oneof=ONLINE IN_PERSON"`
	ConsultationFee  int      `json:"consultation_fee" validate:"gte=0"`
	Rating           *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
}

// Response DTOs

type DoctorResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Specialization   string    `json:"specialization"`
	City             string    `json:"city"`
	ConsultationType string    `json:"consultation_type"`
	ConsultationFee  int       `json:"consultation_fee"`
	Rating           *float64  `json:"rating"`
}

type DoctorListResponse struct {
	Doctors []DoctorResponse `json:"doctors"`
	Total   int              `json:"total"`
}

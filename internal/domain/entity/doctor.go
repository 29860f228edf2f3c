package entity

import (
	"time"

	"github.com/google/uuid"
)

// ConsultationType describes how a doctor consults patients
type ConsultationType string

const (
	ConsultationOnline   ConsultationType = "ONLINE"
	ConsultationInPerson ConsultationType = "IN_PERSON"
)

// Doctor represents a doctor offering bookable appointment slots
type Doctor struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name             string           `gorm:"type:varchar(100);not null" json:"name"`
	Specialization   string           `gorm:"type:varchar(100);not null;index" json:"specialization"`
	City             string           `gorm:"type:varchar(100);not null" json:"city"`
	ConsultationType ConsultationType `gorm:"type:varchar(20);not null;default:'IN_PERSON'" json:"consultation_type"`
	ConsultationFee  int              `gorm:"not null;default:0" json:"consultation_fee"`
	Rating           *float64         `gorm:"type:numeric(2,1)" json:"rating"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Slots []Slot `gorm:"foreignKey:DoctorID" json:"slots,omitempty"`
}

func (Doctor) TableName() string {
	return "doctors"
}

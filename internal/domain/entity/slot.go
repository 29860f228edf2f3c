package entity

import (
	"time"

	"github.com/google/uuid"
)

// SlotStatus represents the occupancy state of a slot
type SlotStatus string

const (
	// SlotStatusFree means the slot is open for claiming.
	SlotStatusFree SlotStatus = "FREE"
	// SlotStatusHeld is a transient intra-operation state: the slot is
	// provisionally locked by a booking operation until it is either
	// committed or released.
	SlotStatusHeld SlotStatus = "HELD"
	// SlotStatusBooked means exactly one active booking references the slot.
	SlotStatusBooked SlotStatus = "BOOKED"
)

// Slot represents one bookable interval for one doctor.
// Occupancy is only ever mutated through the slot registry's
// TryClaim/Commit/Release operations, never by direct field writes.
type Slot struct {
	ID        int        `gorm:"primaryKey;autoIncrement" json:"id"`
	DoctorID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_slots_doctor_status_start" json:"doctor_id"`
	StartTime time.Time  `gorm:"not null;index:idx_slots_doctor_status_start,priority:3" json:"start_time"`
	EndTime   time.Time  `gorm:"not null" json:"end_time"`
	Status    SlotStatus `gorm:"type:varchar(10);not null;default:'FREE';index:idx_slots_doctor_status_start,priority:2" json:"status"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Doctor Doctor `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}

func (Slot) TableName() string {
	return "slots"
}

// IsFree checks if the slot is open for claiming
func (s *Slot) IsFree() bool {
	return s.Status == SlotStatusFree
}

// IsBooked checks if the slot is occupied by an active booking
func (s *Slot) IsBooked() bool {
	return s.Status == SlotStatusBooked
}

// Day returns the calendar day of the slot's start, truncated in UTC.
// Queue numbers are scoped per (doctor, day).
func (s *Slot) Day() time.Time {
	return s.StartTime.UTC().Truncate(24 * time.Hour)
}

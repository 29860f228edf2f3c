package service

import (
	"context"
	"errors"
	"time"

	"clinic-appointment-service/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrDoctorNotFound is returned when a queue position is requested for an
// unknown doctor.
var ErrDoctorNotFound = errors.New("doctor not found")

// QueuePosition is derived on demand from the current booking set and
// never stored, so it cannot go stale.
type QueuePosition struct {
	PeopleAhead          int `json:"people_ahead"`
	EstimatedWaitMinutes int `json:"estimated_wait_minutes"`
}

// QueueEstimator computes a booking's position among the other
// non-cancelled bookings on the same doctor and calendar day.
type QueueEstimator interface {
	Position(ctx context.Context, doctorID uuid.UUID, day time.Time, queueNumber int) (QueuePosition, error)
}

type queueEstimator struct {
	log             *logrus.Logger
	doctorRepo      repository.DoctorRepository
	bookingRepo     repository.BookingRepository
	avgVisitMinutes int
}

func NewQueueEstimator(
	log *logrus.Logger,
	doctorRepo repository.DoctorRepository,
	bookingRepo repository.BookingRepository,
	avgVisitMinutes int,
) QueueEstimator {
	return &queueEstimator{
		log:             log,
		doctorRepo:      doctorRepo,
		bookingRepo:     bookingRepo,
		avgVisitMinutes: avgVisitMinutes,
	}
}

// Position counts the non-cancelled bookings for the doctor's day with a
// strictly smaller queue number. Ties cannot occur: queue numbers are a
// monotonic per-(doctor, day) counter.
func (e *queueEstimator) Position(ctx context.Context, doctorID uuid.UUID, day time.Time, queueNumber int) (QueuePosition, error) {
	doctor, err := e.doctorRepo.FindByID(ctx, doctorID)
	if err != nil {
		e.log.Warnf("Failed to find doctor %s: %+v", doctorID, err)
		return QueuePosition{}, err
	}
	if doctor == nil {
		return QueuePosition{}, ErrDoctorNotFound
	}

	ahead, err := e.bookingRepo.CountAhead(ctx, doctorID, day.UTC().Truncate(24*time.Hour), queueNumber)
	if err != nil {
		e.log.Warnf("Failed to count bookings ahead for doctor %s: %+v", doctorID, err)
		return QueuePosition{}, err
	}

	return QueuePosition{
		PeopleAhead:          int(ahead),
		EstimatedWaitMinutes: int(ahead) * e.avgVisitMinutes,
	}, nil
}

package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"clinic-appointment-service/internal/delivery/dto"
	"clinic-appointment-service/internal/delivery/http/middleware"
	"clinic-appointment-service/internal/domain/entity"
	"clinic-appointment-service/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory fakes implementing the engine's collaborator interfaces. The
// slot registry reproduces the compare-and-set semantics of the real
// conditional updates so concurrency tests exercise the actual protocol.

type fakeSlotRegistry struct {
	mu         sync.Mutex
	slots      map[int]*entity.Slot
	failCommit bool
}

func newFakeSlotRegistry() *fakeSlotRegistry {
	return &fakeSlotRegistry{slots: map[int]*entity.Slot{}}
}

func (f *fakeSlotRegistry) add(slot entity.Slot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := slot
	f.slots[s.ID] = &s
}

func (f *fakeSlotRegistry) status(id int) entity.SlotStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots[id].Status
}

func (f *fakeSlotRegistry) ListAvailable(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]entity.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Slot
	for _, s := range f.slots {
		if s.DoctorID == doctorID && s.Status == entity.SlotStatusFree && !s.StartTime.Before(from) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSlotRegistry) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]entity.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Slot
	for _, s := range f.slots {
		if s.DoctorID == doctorID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSlotRegistry) Get(ctx context.Context, slotID int) (*entity.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[slotID]
	if !ok {
		return nil, service.ErrSlotNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSlotRegistry) TryClaim(ctx context.Context, slotID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[slotID]
	if !ok || s.Status != entity.SlotStatusFree {
		return service.ErrSlotUnavailable
	}
	s.Status = entity.SlotStatusHeld
	return nil
}

func (f *fakeSlotRegistry) Commit(ctx context.Context, slotID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCommit {
		return errors.New("commit failed")
	}
	s, ok := f.slots[slotID]
	if !ok || s.Status != entity.SlotStatusHeld {
		return service.ErrInvalidSlotState
	}
	s.Status = entity.SlotStatusBooked
	return nil
}

func (f *fakeSlotRegistry) Release(ctx context.Context, slotID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.slots[slotID]; ok && s.Status != entity.SlotStatusFree {
		s.Status = entity.SlotStatusFree
	}
	return nil
}

func (f *fakeSlotRegistry) CreateBatch(ctx context.Context, slots []entity.Slot) error {
	for i := range slots {
		f.add(slots[i])
	}
	return nil
}

func (f *fakeSlotRegistry) DeleteIfFree(ctx context.Context, slotID int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.slots[slotID]; ok && s.Status == entity.SlotStatusFree {
		delete(f.slots, slotID)
		return 1, nil
	}
	return 0, nil
}

func (f *fakeSlotRegistry) ReleaseStaleHolds(ctx context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.slots {
		if s.Status == entity.SlotStatusHeld && s.UpdatedAt.Before(olderThan) {
			s.Status = entity.SlotStatusFree
			n++
		}
	}
	return n, nil
}

type fakeQueueAllocator struct {
	mu       sync.Mutex
	counters map[string]int
	failNext bool
}

func newFakeQueueAllocator() *fakeQueueAllocator {
	return &fakeQueueAllocator{counters: map[string]int{}}
}

func (f *fakeQueueAllocator) Next(ctx context.Context, doctorID uuid.UUID, day time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		return 0, errors.New("allocator down")
	}
	key := doctorID.String() + day.UTC().Format("2006-01-02")
	f.counters[key]++
	return f.counters[key], nil
}

type fakeBookingRepo struct {
	mu         sync.Mutex
	bookings   map[uuid.UUID]*entity.Booking
	failCreate bool

	// One-shot hooks firing just before the guarded updates, so tests can
	// interleave a concurrent operation between a caller's read and its
	// write. Each hook clears itself before running.
	beforeCancelFlip    func()
	beforeUpdatePayment func()
	beforeRepoint       func()
}

func (f *fakeBookingRepo) fire(hook *func()) {
	if h := *hook; h != nil {
		*hook = nil
		h()
	}
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: map[uuid.UUID]*entity.Booking{}}
}

func (f *fakeBookingRepo) get(id uuid.UUID) *entity.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		copied := *b
		return &copied
	}
	return nil
}

func (f *fakeBookingRepo) Create(ctx context.Context, booking *entity.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errors.New("insert failed")
	}
	copied := *booking
	f.bookings[booking.ID] = &copied
	return nil
}

func (f *fakeBookingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bookings, id)
	return nil
}

func (f *fakeBookingRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return f.get(id), nil
}

func (f *fakeBookingRepo) FindByPatientID(ctx context.Context, patientID uuid.UUID) ([]entity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Booking
	for _, b := range f.bookings {
		if b.PatientID == patientID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) CancelIfActive(ctx context.Context, id uuid.UUID) (int, int64, error) {
	f.fire(&f.beforeCancelFlip)
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.Status == entity.BookingStatusCancelled {
		return 0, 0, nil
	}
	b.Status = entity.BookingStatusCancelled
	// Mirrors the RETURNING clause: the slot at flip time, not a pre-read.
	return b.SlotID, 1, nil
}

func (f *fakeBookingRepo) UpdatePayment(ctx context.Context, id uuid.UUID, status entity.BookingStatus, payment entity.PaymentStatus) (int64, error) {
	f.fire(&f.beforeUpdatePayment)
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.Status == entity.BookingStatusCancelled {
		return 0, nil
	}
	b.Status = status
	b.PaymentStatus = payment
	return 1, nil
}

func (f *fakeBookingRepo) Repoint(ctx context.Context, id uuid.UUID, slotID int, doctorID uuid.UUID, day time.Time, queueNumber int) (int64, error) {
	f.fire(&f.beforeRepoint)
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.Status == entity.BookingStatusCancelled {
		return 0, nil
	}
	b.SlotID = slotID
	b.DoctorID = doctorID
	b.AppointmentDay = day
	b.QueueNumber = queueNumber
	return 1, nil
}

func (f *fakeBookingRepo) CountAhead(ctx context.Context, doctorID uuid.UUID, day time.Time, queueNumber int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, b := range f.bookings {
		if b.DoctorID == doctorID && b.AppointmentDay.Equal(day) &&
			b.QueueNumber < queueNumber && b.Status != entity.BookingStatusCancelled {
			count++
		}
	}
	return count, nil
}

type fakeDoctorRepo struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]*entity.Doctor
}

func newFakeDoctorRepo() *fakeDoctorRepo {
	return &fakeDoctorRepo{doctors: map[uuid.UUID]*entity.Doctor{}}
}

func (f *fakeDoctorRepo) Create(ctx context.Context, doctor *entity.Doctor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *doctor
	f.doctors[doctor.ID] = &copied
	return nil
}

func (f *fakeDoctorRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.doctors[id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeDoctorRepo) FindAll(ctx context.Context) ([]entity.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Doctor
	for _, d := range f.doctors {
		out = append(out, *d)
	}
	return out, nil
}

type noopAudit struct{}

func (noopAudit) Record(ctx context.Context, userID *uuid.UUID, action string, entityID string, oldValue, newValue interface{}) {
}

// Test harness

type engineFixture struct {
	usecase  BookingUsecase
	slots    *fakeSlotRegistry
	queue    *fakeQueueAllocator
	bookings *fakeBookingRepo
	doctors  *fakeDoctorRepo
	doctorID uuid.UUID
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	slots := newFakeSlotRegistry()
	queue := newFakeQueueAllocator()
	bookings := newFakeBookingRepo()
	doctors := newFakeDoctorRepo()

	doctorID := uuid.New()
	require.NoError(t, doctors.Create(context.Background(), &entity.Doctor{ID: doctorID, Name: "Dr. Ayu"}))

	estimator := service.NewQueueEstimator(log, doctors, bookings, 15)
	uc := NewBookingUsecase(log, bookings, slots, queue, estimator, noopAudit{})

	return &engineFixture{
		usecase:  uc,
		slots:    slots,
		queue:    queue,
		bookings: bookings,
		doctors:  doctors,
		doctorID: doctorID,
	}
}

func (fx *engineFixture) addFreeSlot(id int, start time.Time) {
	fx.slots.add(entity.Slot{
		ID:        id,
		DoctorID:  fx.doctorID,
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Status:    entity.SlotStatusFree,
	})
}

func patientCtx(patientID uuid.UUID) context.Context {
	ctx := context.WithValue(context.Background(), middleware.UserIDKey, patientID)
	return context.WithValue(ctx, middleware.RoleKey, entity.RolePatient)
}

func adminCtx(adminID uuid.UUID) context.Context {
	ctx := context.WithValue(context.Background(), middleware.UserIDKey, adminID)
	return context.WithValue(ctx, middleware.RoleKey, entity.RoleAdmin)
}

func tomorrowAt(hour int) time.Time {
	return time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1).Add(time.Duration(hour) * time.Hour)
}

func TestCreateBooking(t *testing.T) {
	t.Run("books a free slot", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.addFreeSlot(1, tomorrowAt(9))
		patientID := uuid.New()

		resp, err := fx.usecase.CreateBooking(patientCtx(patientID), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "Chest pain"})
		require.NoError(t, err)

		assert.Equal(t, string(entity.BookingStatusPending), resp.Status)
		assert.Equal(t, string(entity.PaymentStatusPending), resp.PaymentStatus)
		assert.Equal(t, 1, resp.QueueNumber)
		assert.Equal(t, patientID, resp.PatientID)
		assert.Regexp(t, `^BK-\d{8}-[0-9A-F]{6}$`, resp.BookingCode)
		assert.Equal(t, entity.SlotStatusBooked, fx.slots.status(1))
	})

	t.Run("rejects empty reason before touching the slot", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.addFreeSlot(1, tomorrowAt(9))

		_, err := fx.usecase.CreateBooking(patientCtx(uuid.New()), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "   "})
		assert.ErrorIs(t, err, ErrEmptyReason)
		assert.Equal(t, entity.SlotStatusFree, fx.slots.status(1))
	})

	t.Run("rejects slot belonging to another doctor", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.addFreeSlot(1, tomorrowAt(9))

		_, err := fx.usecase.CreateBooking(patientCtx(uuid.New()), uuid.New(), 1, &dto.CreateBookingRequest{Reason: "Checkup"})
		assert.ErrorIs(t, err, ErrSlotDoctorMismatch)
	})

	t.Run("rejects past slot", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.addFreeSlot(1, time.Now().Add(-time.Hour))

		_, err := fx.usecase.CreateBooking(patientCtx(uuid.New()), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "Checkup"})
		assert.ErrorIs(t, err, ErrSlotInPast)
	})

	t.Run("unknown slot reports unavailable", func(t *testing.T) {
		fx := newEngineFixture(t)

		_, err := fx.usecase.CreateBooking(patientCtx(uuid.New()), fx.doctorID, 42, &dto.CreateBookingRequest{Reason: "Checkup"})
		assert.ErrorIs(t, err, service.ErrSlotUnavailable)
	})

	t.Run("second booking on the same slot loses", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.addFreeSlot(1, tomorrowAt(9))

		_, err := fx.usecase.CreateBooking(patientCtx(uuid.New()), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "First"})
		require.NoError(t, err)

		_, err = fx.usecase.CreateBooking(patientCtx(uuid.New()), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "Second"})
		assert.ErrorIs(t, err, service.ErrSlotUnavailable)
		assert.Equal(t, entity.SlotStatusBooked, fx.slots.status(1))
	})

	t.Run("queue allocation failure frees the slot", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.addFreeSlot(1, tomorrowAt(9))
		fx.queue.failNext = true

		_, err := fx.usecase.CreateBooking(patientCtx(uuid.New()), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "Checkup"})
		require.Error(t, err)
		assert.Equal(t, entity.SlotStatusFree, fx.slots.status(1))
	})

	t.Run("insert failure frees the slot", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.addFreeSlot(1, tomorrowAt(9))
		fx.bookings.failCreate = true

		_, err := fx.usecase.CreateBooking(patientCtx(uuid.New()), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "Checkup"})
		require.Error(t, err)
		assert.Equal(t, entity.SlotStatusFree, fx.slots.status(1))
	})

	t.Run("commit failure removes the booking and frees the slot", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.addFreeSlot(1, tomorrowAt(9))
		fx.slots.failCommit = true

		_, err := fx.usecase.CreateBooking(patientCtx(uuid.New()), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "Checkup"})
		require.Error(t, err)
		assert.Equal(t, entity.SlotStatusFree, fx.slots.status(1))
		assert.Empty(t, fx.bookings.bookings)
	})

	t.Run("concurrent claims on one slot admit exactly one", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.addFreeSlot(1, tomorrowAt(9))

		const claimants = 50
		var wg sync.WaitGroup
		results := make(chan error, claimants)

		for i := 0; i < claimants; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := fx.usecase.CreateBooking(patientCtx(uuid.New()), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "Race"})
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		winners := 0
		for err := range results {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, service.ErrSlotUnavailable)
			}
		}
		assert.Equal(t, 1, winners)
		assert.Equal(t, entity.SlotStatusBooked, fx.slots.status(1))
		assert.Len(t, fx.bookings.bookings, 1)
	})

	t.Run("queue numbers increase per doctor day", func(t *testing.T) {
		fx := newEngineFixture(t)
		for i := 1; i <= 3; i++ {
			fx.addFreeSlot(i, tomorrowAt(8+i))
		}

		var numbers []int
		for i := 1; i <= 3; i++ {
			resp, err := fx.usecase.CreateBooking(patientCtx(uuid.New()), fx.doctorID, i, &dto.CreateBookingRequest{Reason: "Visit"})
			require.NoError(t, err)
			numbers = append(numbers, resp.QueueNumber)
		}
		assert.Equal(t, []int{1, 2, 3}, numbers)
	})
}

func TestConfirmPayment(t *testing.T) {
	makeBooking := func(t *testing.T, fx *engineFixture, patientID uuid.UUID) uuid.UUID {
		t.Helper()
		fx.addFreeSlot(1, tomorrowAt(9))
		resp, err := fx.usecase.CreateBooking(patientCtx(patientID), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "Visit"})
		require.NoError(t, err)
		return resp.ID
	}

	t.Run("success confirms the booking", func(t *testing.T) {
		fx := newEngineFixture(t)
		id := makeBooking(t, fx, uuid.New())

		resp, err := fx.usecase.ConfirmPayment(context.Background(), id, true)
		require.NoError(t, err)
		assert.Equal(t, string(entity.BookingStatusConfirmed), resp.Status)
		assert.Equal(t, string(entity.PaymentStatusPaid), resp.PaymentStatus)
	})

	t.Run("failure keeps the booking pending for retry", func(t *testing.T) {
		fx := newEngineFixture(t)
		id := makeBooking(t, fx, uuid.New())

		resp, err := fx.usecase.ConfirmPayment(context.Background(), id, false)
		require.NoError(t, err)
		assert.Equal(t, string(entity.BookingStatusPending), resp.Status)
		assert.Equal(t, string(entity.PaymentStatusFailed), resp.PaymentStatus)
		assert.Equal(t, entity.SlotStatusBooked, fx.slots.status(1))

		// Retry succeeds after a failure.
		resp, err = fx.usecase.ConfirmPayment(context.Background(), id, true)
		require.NoError(t, err)
		assert.Equal(t, string(entity.BookingStatusConfirmed), resp.Status)
		assert.Equal(t, string(entity.PaymentStatusPaid), resp.PaymentStatus)
	})

	t.Run("paid is terminal", func(t *testing.T) {
		fx := newEngineFixture(t)
		id := makeBooking(t, fx, uuid.New())

		_, err := fx.usecase.ConfirmPayment(context.Background(), id, true)
		require.NoError(t, err)

		// A late failure callback cannot undo a settled payment.
		resp, err := fx.usecase.ConfirmPayment(context.Background(), id, false)
		require.NoError(t, err)
		assert.Equal(t, string(entity.BookingStatusConfirmed), resp.Status)
		assert.Equal(t, string(entity.PaymentStatusPaid), resp.PaymentStatus)
	})

	t.Run("unknown booking", func(t *testing.T) {
		fx := newEngineFixture(t)
		_, err := fx.usecase.ConfirmPayment(context.Background(), uuid.New(), true)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("cancel racing the callback is not overwritten", func(t *testing.T) {
		fx := newEngineFixture(t)
		patientID := uuid.New()
		id := makeBooking(t, fx, patientID)

		// The cancel lands between the callback's read and its write.
		fx.bookings.beforeUpdatePayment = func() {
			require.NoError(t, fx.usecase.CancelBooking(patientCtx(patientID), id))
		}

		_, err := fx.usecase.ConfirmPayment(context.Background(), id, true)
		assert.ErrorIs(t, err, ErrBookingAlreadyCancelled)

		booking := fx.bookings.get(id)
		assert.Equal(t, entity.BookingStatusCancelled, booking.Status)
		assert.Equal(t, entity.PaymentStatusPending, booking.PaymentStatus)
		assert.Equal(t, entity.SlotStatusFree, fx.slots.status(1))
	})

	t.Run("cancelled booking cannot be paid", func(t *testing.T) {
		fx := newEngineFixture(t)
		patientID := uuid.New()
		id := makeBooking(t, fx, patientID)
		require.NoError(t, fx.usecase.CancelBooking(patientCtx(patientID), id))

		_, err := fx.usecase.ConfirmPayment(context.Background(), id, true)
		assert.ErrorIs(t, err, ErrBookingAlreadyCancelled)
	})
}

func TestCancelBooking(t *testing.T) {
	setup := func(t *testing.T) (*engineFixture, uuid.UUID, uuid.UUID) {
		t.Helper()
		fx := newEngineFixture(t)
		fx.addFreeSlot(1, tomorrowAt(9))
		patientID := uuid.New()
		resp, err := fx.usecase.CreateBooking(patientCtx(patientID), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "Visit"})
		require.NoError(t, err)
		return fx, patientID, resp.ID
	}

	t.Run("owner cancel frees the slot", func(t *testing.T) {
		fx, patientID, id := setup(t)

		require.NoError(t, fx.usecase.CancelBooking(patientCtx(patientID), id))
		assert.Equal(t, entity.SlotStatusFree, fx.slots.status(1))
		assert.Equal(t, entity.BookingStatusCancelled, fx.bookings.get(id).Status)
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		fx, patientID, id := setup(t)

		require.NoError(t, fx.usecase.CancelBooking(patientCtx(patientID), id))
		require.NoError(t, fx.usecase.CancelBooking(patientCtx(patientID), id))
		assert.Equal(t, entity.SlotStatusFree, fx.slots.status(1))
	})

	t.Run("cancelled slot can be rebooked with a fresh queue number", func(t *testing.T) {
		fx, patientID, id := setup(t)
		require.NoError(t, fx.usecase.CancelBooking(patientCtx(patientID), id))

		resp, err := fx.usecase.CreateBooking(patientCtx(uuid.New()), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "Visit"})
		require.NoError(t, err)
		// Numbers are never reused after a cancellation.
		assert.Equal(t, 2, resp.QueueNumber)
	})

	t.Run("another patient cannot cancel", func(t *testing.T) {
		fx, _, id := setup(t)

		err := fx.usecase.CancelBooking(patientCtx(uuid.New()), id)
		assert.ErrorIs(t, err, ErrBookingNotOwned)
		assert.Equal(t, entity.SlotStatusBooked, fx.slots.status(1))
	})

	t.Run("admin can cancel any booking", func(t *testing.T) {
		fx, _, id := setup(t)

		require.NoError(t, fx.usecase.CancelBooking(adminCtx(uuid.New()), id))
		assert.Equal(t, entity.SlotStatusFree, fx.slots.status(1))
	})

	t.Run("unknown booking", func(t *testing.T) {
		fx := newEngineFixture(t)
		err := fx.usecase.CancelBooking(patientCtx(uuid.New()), uuid.New())
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("reschedule racing the cancel moves the release target", func(t *testing.T) {
		fx, patientID, id := setup(t)
		fx.addFreeSlot(2, tomorrowAt(10))

		// Between cancel's read and its flip, the booking moves to slot 2
		// and the freed slot 1 is taken by another patient.
		fx.bookings.beforeCancelFlip = func() {
			_, err := fx.usecase.RescheduleBooking(patientCtx(patientID), id, 2)
			require.NoError(t, err)
			_, err = fx.usecase.CreateBooking(patientCtx(uuid.New()), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "Visit"})
			require.NoError(t, err)
		}

		require.NoError(t, fx.usecase.CancelBooking(patientCtx(patientID), id))

		// The cancel freed the slot the booking actually sat on; the other
		// patient's booking on slot 1 is untouched.
		assert.Equal(t, entity.SlotStatusBooked, fx.slots.status(1))
		assert.Equal(t, entity.SlotStatusFree, fx.slots.status(2))
		assert.Equal(t, entity.BookingStatusCancelled, fx.bookings.get(id).Status)
	})
}

func TestRescheduleBooking(t *testing.T) {
	setup := func(t *testing.T) (*engineFixture, uuid.UUID, uuid.UUID) {
		t.Helper()
		fx := newEngineFixture(t)
		fx.addFreeSlot(1, tomorrowAt(9))
		fx.addFreeSlot(2, tomorrowAt(10))
		patientID := uuid.New()
		resp, err := fx.usecase.CreateBooking(patientCtx(patientID), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "Visit"})
		require.NoError(t, err)
		return fx, patientID, resp.ID
	}

	t.Run("moves the booking and swaps slot states", func(t *testing.T) {
		fx, patientID, id := setup(t)

		resp, err := fx.usecase.RescheduleBooking(patientCtx(patientID), id, 2)
		require.NoError(t, err)

		assert.Equal(t, 2, resp.SlotID)
		assert.Equal(t, entity.SlotStatusFree, fx.slots.status(1))
		assert.Equal(t, entity.SlotStatusBooked, fx.slots.status(2))
		// Same-day reschedule joins the back of the queue.
		assert.Equal(t, 2, resp.QueueNumber)
	})

	t.Run("keeps status and payment across the move", func(t *testing.T) {
		fx, patientID, id := setup(t)
		_, err := fx.usecase.ConfirmPayment(context.Background(), id, true)
		require.NoError(t, err)

		resp, err := fx.usecase.RescheduleBooking(patientCtx(patientID), id, 2)
		require.NoError(t, err)
		assert.Equal(t, string(entity.BookingStatusConfirmed), resp.Status)
		assert.Equal(t, string(entity.PaymentStatusPaid), resp.PaymentStatus)
	})

	t.Run("taken target slot leaves everything unchanged", func(t *testing.T) {
		fx, patientID, id := setup(t)
		// Another patient takes slot 2 first.
		_, err := fx.usecase.CreateBooking(patientCtx(uuid.New()), fx.doctorID, 2, &dto.CreateBookingRequest{Reason: "Visit"})
		require.NoError(t, err)

		_, err = fx.usecase.RescheduleBooking(patientCtx(patientID), id, 2)
		assert.ErrorIs(t, err, service.ErrSlotUnavailable)

		booking := fx.bookings.get(id)
		assert.Equal(t, 1, booking.SlotID)
		assert.Equal(t, entity.SlotStatusBooked, fx.slots.status(1))
	})

	t.Run("commit failure restores the original placement", func(t *testing.T) {
		fx, patientID, id := setup(t)
		before := fx.bookings.get(id)
		fx.slots.failCommit = true

		_, err := fx.usecase.RescheduleBooking(patientCtx(patientID), id, 2)
		require.Error(t, err)

		after := fx.bookings.get(id)
		assert.Equal(t, before.SlotID, after.SlotID)
		assert.Equal(t, before.QueueNumber, after.QueueNumber)
		assert.Equal(t, entity.SlotStatusBooked, fx.slots.status(1))
		assert.Equal(t, entity.SlotStatusFree, fx.slots.status(2))
	})

	t.Run("cancel racing the reschedule frees the target slot", func(t *testing.T) {
		fx, patientID, id := setup(t)

		// The cancel lands after the new claim but before the repoint; it
		// flips the booking and releases slot 1.
		fx.bookings.beforeRepoint = func() {
			require.NoError(t, fx.usecase.CancelBooking(patientCtx(patientID), id))
		}

		_, err := fx.usecase.RescheduleBooking(patientCtx(patientID), id, 2)
		assert.ErrorIs(t, err, ErrBookingAlreadyCancelled)

		booking := fx.bookings.get(id)
		assert.Equal(t, entity.BookingStatusCancelled, booking.Status)
		assert.Equal(t, 1, booking.SlotID)
		assert.Equal(t, entity.SlotStatusFree, fx.slots.status(1))
		assert.Equal(t, entity.SlotStatusFree, fx.slots.status(2))
	})

	t.Run("cancelled booking cannot be rescheduled", func(t *testing.T) {
		fx, patientID, id := setup(t)
		require.NoError(t, fx.usecase.CancelBooking(patientCtx(patientID), id))

		_, err := fx.usecase.RescheduleBooking(patientCtx(patientID), id, 2)
		assert.ErrorIs(t, err, ErrBookingAlreadyCancelled)
		assert.Equal(t, entity.SlotStatusFree, fx.slots.status(2))
	})

	t.Run("another patient cannot reschedule", func(t *testing.T) {
		fx, _, id := setup(t)

		_, err := fx.usecase.RescheduleBooking(patientCtx(uuid.New()), id, 2)
		assert.ErrorIs(t, err, ErrBookingNotOwned)
	})

	t.Run("past target slot is rejected", func(t *testing.T) {
		fx, patientID, id := setup(t)
		fx.slots.add(entity.Slot{ID: 3, DoctorID: fx.doctorID, StartTime: time.Now().Add(-time.Hour), Status: entity.SlotStatusFree})

		_, err := fx.usecase.RescheduleBooking(patientCtx(patientID), id, 3)
		assert.ErrorIs(t, err, ErrSlotInPast)
	})
}

// TestBookingLifecycleWalk drives one booking through its whole life:
// book, pay, cancel, and rebook the freed slot by another patient.
func TestBookingLifecycleWalk(t *testing.T) {
	fx := newEngineFixture(t)
	fx.addFreeSlot(1, tomorrowAt(9))
	p1 := uuid.New()
	p2 := uuid.New()

	created, err := fx.usecase.CreateBooking(patientCtx(p1), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "checkup"})
	require.NoError(t, err)
	assert.Equal(t, string(entity.BookingStatusPending), created.Status)
	assert.Equal(t, string(entity.PaymentStatusPending), created.PaymentStatus)
	assert.Equal(t, 1, created.QueueNumber)
	assert.Equal(t, entity.SlotStatusBooked, fx.slots.status(1))

	confirmed, err := fx.usecase.ConfirmPayment(context.Background(), created.ID, true)
	require.NoError(t, err)
	assert.Equal(t, string(entity.BookingStatusConfirmed), confirmed.Status)
	assert.Equal(t, string(entity.PaymentStatusPaid), confirmed.PaymentStatus)

	require.NoError(t, fx.usecase.CancelBooking(patientCtx(p1), created.ID))
	assert.Equal(t, entity.SlotStatusFree, fx.slots.status(1))

	rebooked, err := fx.usecase.CreateBooking(patientCtx(p2), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "follow-up"})
	require.NoError(t, err)
	assert.Equal(t, p2, rebooked.PatientID)
	assert.Equal(t, 2, rebooked.QueueNumber)
	assert.Equal(t, entity.SlotStatusBooked, fx.slots.status(1))
}

func TestGetMyBookings(t *testing.T) {
	t.Run("returns bookings with live queue positions", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.addFreeSlot(1, tomorrowAt(9))
		fx.addFreeSlot(2, tomorrowAt(10))

		first := uuid.New()
		second := uuid.New()
		_, err := fx.usecase.CreateBooking(patientCtx(first), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "Visit"})
		require.NoError(t, err)
		_, err = fx.usecase.CreateBooking(patientCtx(second), fx.doctorID, 2, &dto.CreateBookingRequest{Reason: "Visit"})
		require.NoError(t, err)

		resp, err := fx.usecase.GetMyBookings(patientCtx(second))
		require.NoError(t, err)
		require.Equal(t, 1, resp.Total)
		assert.Equal(t, 1, resp.Bookings[0].PeopleAhead)
		assert.Equal(t, 15, resp.Bookings[0].EstimatedWaitMinutes)
	})

	t.Run("cancellation ahead shrinks the queue", func(t *testing.T) {
		fx := newEngineFixture(t)
		fx.addFreeSlot(1, tomorrowAt(9))
		fx.addFreeSlot(2, tomorrowAt(10))

		first := uuid.New()
		second := uuid.New()
		firstResp, err := fx.usecase.CreateBooking(patientCtx(first), fx.doctorID, 1, &dto.CreateBookingRequest{Reason: "Visit"})
		require.NoError(t, err)
		_, err = fx.usecase.CreateBooking(patientCtx(second), fx.doctorID, 2, &dto.CreateBookingRequest{Reason: "Visit"})
		require.NoError(t, err)

		require.NoError(t, fx.usecase.CancelBooking(patientCtx(first), firstResp.ID))

		resp, err := fx.usecase.GetMyBookings(patientCtx(second))
		require.NoError(t, err)
		require.Equal(t, 1, resp.Total)
		assert.Equal(t, 0, resp.Bookings[0].PeopleAhead)
		assert.Equal(t, 0, resp.Bookings[0].EstimatedWaitMinutes)
	})

	t.Run("empty list for a patient with no bookings", func(t *testing.T) {
		fx := newEngineFixture(t)
		resp, err := fx.usecase.GetMyBookings(patientCtx(uuid.New()))
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Total)
		assert.Empty(t, resp.Bookings)
	})
}

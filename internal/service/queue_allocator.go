package service

import (
	"context"
	"fmt"
	"time"

	"clinic-appointment-service/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// incrQueueScript is a package-level Lua script. The Redis Go client
// automatically switches to EVALSHA after the first call, so under load
// only the script hash travels over the wire.
//
// Logic:
// 1. INCR the per-(doctor, day) counter
// 2. On the first increment, attach the TTL so stale days expire
var incrQueueScript = redis.NewScript(`
	local queue = redis.call('INCR', KEYS[1])
	if queue == 1 then
		redis.call('EXPIRE', KEYS[1], ARGV[1])
	end
	return queue
`)

const (
	// Redis key prefix for per-(doctor, day) queue counters
	redisQueueKeyPrefix = "booking:queue:"

	// Batch size for startup sync - process 500 rows at a time so the
	// pipeline never accumulates unbounded memory
	queueSyncBatchSize = 500
)

// QueueAllocator hands out queue numbers for bookings. Numbers are
// monotonically increasing per (doctor, calendar day), gap-tolerant, and
// never reused after cancellation.
type QueueAllocator interface {
	Next(ctx context.Context, doctorID uuid.UUID, day time.Time) (int, error)
}

// redisQueueAllocator keeps the counters in Redis so concurrent
// CreateBooking calls for the same doctor/day never collide: INCR is
// atomic inside Redis, no application-level lock is needed.
type redisQueueAllocator struct {
	db          *gorm.DB
	redisClient *redis.Client
	log         *logrus.Logger
}

func NewRedisQueueAllocator(db *gorm.DB, redisClient *redis.Client, log *logrus.Logger) *redisQueueAllocator {
	return &redisQueueAllocator{
		db:          db,
		redisClient: redisClient,
		log:         log,
	}
}

// Next reserves the next queue number for the doctor's day.
func (a *redisQueueAllocator) Next(ctx context.Context, doctorID uuid.UUID, day time.Time) (int, error) {
	key := queueKey(doctorID, day)
	ttl := queueTTL(day)

	result, err := incrQueueScript.Run(ctx, a.redisClient, []string{key}, int(ttl.Seconds())).Int()
	if err != nil {
		a.log.Warnf("Failed to allocate queue number for %s: %+v", key, err)
		return 0, fmt.Errorf("allocate queue number for %s: %w", key, err)
	}

	a.log.Debugf("Allocated queue number %d for %s", result, key)
	return result, nil
}

// SyncOnStartup seeds the Redis counters from MAX(queue_number) in
// Postgres for every upcoming doctor/day, so a Redis restart can never
// hand out a number that is already taken.
//
// Should be called BEFORE accepting traffic.
func (a *redisQueueAllocator) SyncOnStartup(ctx context.Context) error {
	a.log.Info("Seeding queue counters from database...")
	startTime := time.Now()

	if err := a.redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	type maxQueueRow struct {
		DoctorID       uuid.UUID
		AppointmentDay time.Time
		MaxQueueNumber int
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	offset := 0
	totalSeeded := 0

	for {
		var rows []maxQueueRow

		err := a.db.WithContext(ctx).Model(&entity.Booking{}).
			Select("doctor_id, appointment_day, MAX(queue_number) as max_queue_number").
			Where("appointment_day >= ?", today).
			Group("doctor_id, appointment_day").
			Order("doctor_id, appointment_day").
			Limit(queueSyncBatchSize).
			Offset(offset).
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("query queue counters at offset %d: %w", offset, err)
		}

		if len(rows) == 0 {
			break
		}

		// New pipeline per batch, executed before the next batch is loaded
		pipe := a.redisClient.TxPipeline()
		for _, row := range rows {
			key := queueKey(row.DoctorID, row.AppointmentDay)
			pipe.Set(ctx, key, row.MaxQueueNumber, queueTTL(row.AppointmentDay))
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("pipeline exec at offset %d: %w", offset, err)
		}

		totalSeeded += len(rows)
		if len(rows) < queueSyncBatchSize {
			break
		}
		offset += queueSyncBatchSize

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	a.log.Infof("Queue counter seeding completed: %d counters in %v", totalSeeded, time.Since(startTime))
	return nil
}

func queueKey(doctorID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("%s%s:%s", redisQueueKeyPrefix, doctorID, day.UTC().Format("2006-01-02"))
}

// queueTTL keeps a counter alive through the end of the day after its
// day so late bookings and restarts within the day still see it.
func queueTTL(day time.Time) time.Duration {
	expireAt := day.UTC().Truncate(24*time.Hour).AddDate(0, 0, 2)
	ttl := time.Until(expireAt)
	if ttl <= 0 {
		return time.Minute
	}
	return ttl
}

package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// HoldJanitor periodically frees slots stuck in HELD. Holds are scoped to
// a single operation and rolled back in-band on failure; the sweep only
// matters when a process died between claim and commit/release.
type HoldJanitor struct {
	registry   SlotRegistry
	log        *logrus.Logger
	staleAfter time.Duration
	cron       *cron.Cron
}

func NewHoldJanitor(registry SlotRegistry, log *logrus.Logger, staleAfter time.Duration) *HoldJanitor {
	return &HoldJanitor{
		registry:   registry,
		log:        log,
		staleAfter: staleAfter,
		cron:       cron.New(),
	}
}

// Start schedules the sweep. Returns an error only for an invalid spec.
func (j *HoldJanitor) Start(spec string) error {
	_, err := j.cron.AddFunc(spec, j.sweep)
	if err != nil {
		return err
	}
	j.cron.Start()
	j.log.Infof("Hold janitor started: spec=%q, stale after %v", spec, j.staleAfter)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *HoldJanitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *HoldJanitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-j.staleAfter)
	released, err := j.registry.ReleaseStaleHolds(ctx, cutoff)
	if err != nil {
		j.log.Errorf("Hold sweep failed: %+v", err)
		return
	}
	if released > 0 {
		j.log.Infof("Hold sweep released %d slots held since before %s", released, cutoff.Format(time.RFC3339))
	}
}

/*
scheduler.go - Nightly penalty sweep

PURPOSE:
  Periodically walks obligations that still owe a penalty resolution and
  finalizes the automatic overdue penalty once the underlying fee has
  settled in the external ledger.

DESIGN:
  - cron-driven (default: 02:00 every night)
  - Each obligation is first projected without finalizing; a penalty is
    frozen only when the accrual window has closed, i.e. the ledger showed
    the fee settled on a day before today
  - Obligations whose ledger pull fails are skipped and retried on the next
    sweep

USAGE:
  sweeper := NewSweeper(store, service, log)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: FinalizeOverduePenalty (manual finalization)
  - penalty/service.go: the calculation sequence the sweep drives
*/
package api

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/warp/penalty-engine/engine"
	"github.com/warp/penalty-engine/penalty"
)

// DefaultSweepSchedule runs the sweep nightly at 02:00.
const DefaultSweepSchedule = "0 2 * * *"

// Sweeper finalizes settled overdue penalties on a schedule.
type Sweeper struct {
	Store    Store
	Service  *penalty.CalculationService
	Schedule string
	Log      *logrus.Logger

	cron *cron.Cron
}

// NewSweeper creates a sweeper with the default nightly schedule.
func NewSweeper(store Store, service *penalty.CalculationService, log *logrus.Logger) *Sweeper {
	if log == nil {
		log = logrus.New()
	}
	return &Sweeper{
		Store:    store,
		Service:  service,
		Schedule: DefaultSweepSchedule,
		Log:      log,
	}
}

// Start schedules the sweep. Returns an error only for an invalid schedule.
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.Schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.Log.WithField("schedule", s.Schedule).Info("penalty sweep scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.Log.Info("penalty sweep stopped")
	}
}

// RunOnce executes one full sweep. Exposed for manual triggering and tests.
func (s *Sweeper) RunOnce(ctx context.Context) {
	obs, err := s.Store.ListUnpaidObligations(ctx)
	if err != nil {
		s.Log.WithError(err).Error("sweep: listing obligations failed")
		return
	}

	today := engine.Today()
	finalized := 0
	skipped := 0

	for i := range obs {
		ob := &obs[i]
		if ob.PenaltyStatus != penalty.StatusNone {
			skipped++
			continue
		}

		// Project first. An accrual window ending before today means the
		// ledger showed the fee settled, so the amount will not grow further.
		res, err := s.Service.CalculateOverdue(ctx, ob.ID, penalty.Options{})
		if err != nil {
			s.Log.WithError(err).WithField("obligation", ob.ID).
				Warn("sweep: projection failed, will retry next run")
			continue
		}
		if res == nil || !res.AccrualFinal.Before(today) {
			skipped++
			continue
		}

		if _, err := s.Service.CalculateOverdue(ctx, ob.ID, penalty.Options{Finalize: true}); err != nil {
			s.Log.WithError(err).WithField("obligation", ob.ID).
				Error("sweep: finalization failed")
			continue
		}
		finalized++
	}

	if finalized > 0 || skipped > 0 {
		s.Log.WithFields(logrus.Fields{
			"finalized": finalized,
			"skipped":   skipped,
		}).Info("penalty sweep completed")
	}
}

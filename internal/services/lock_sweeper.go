package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/shiftfill/outreach/internal/logger"
	log "github.com/sirupsen/logrus"
)

type LockSweepRepository interface {
	Sweep(ctx context.Context) (int64, error)
}

// LockSweeper deactivates processing locks whose holder never released them.
type LockSweeper struct {
	locks LockSweepRepository
	cron  *cron.Cron
}

func NewLockSweeper(locks LockSweepRepository, schedule string) (*LockSweeper, error) {
	ls := &LockSweeper{
		locks: locks,
		cron:  cron.New(),
	}

	if _, err := ls.cron.AddFunc(schedule, ls.sweep); err != nil {
		return nil, errors.Wrapf(err, "invalid sweep schedule %q", schedule)
	}

	ls.cron.Start()
	log.Infof("lock sweeper started with schedule %q", schedule)
	return ls, nil
}

func (ls *LockSweeper) Stop() {
	<-ls.cron.Stop().Done()
}

func (ls *LockSweeper) sweep() {
	swept, err := ls.locks.Sweep(context.Background())
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeLock).Errorf("failed to sweep expired locks: %v", err)
		return
	}
	if swept > 0 {
		log.Infof("expired locks swept: %d", swept)
	}
}

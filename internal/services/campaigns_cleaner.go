package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/shiftfill/outreach/internal/logger"
	log "github.com/sirupsen/logrus"
)

type CampaignCleanupRepository interface {
	RemoveFinishedBefore(ctx context.Context, expirationTime time.Time) (int64, error)
}

// CampaignsCleaner drops finished campaign records older than the retention period.
type CampaignsCleaner struct {
	campaigns     CampaignCleanupRepository
	cron          *cron.Cron
	retentionDays int
}

func NewCampaignsCleaner(campaigns CampaignCleanupRepository, retentionDays int, schedule string) (*CampaignsCleaner, error) {

	if retentionDays <= 0 {
		return nil, errors.New("retention in days must be greater than zero")
	}

	cc := &CampaignsCleaner{
		campaigns:     campaigns,
		cron:          cron.New(),
		retentionDays: retentionDays,
	}

	_, err := cc.cron.AddFunc(schedule, cc.cleanFinishedCampaigns)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid cleanup schedule %q", schedule)
	}

	cc.cron.Start()
	log.Infof("campaigns cleaner started, retention in days: %d", cc.retentionDays)
	return cc, nil
}

func (cc *CampaignsCleaner) Stop() {
	<-cc.cron.Stop().Done()
}

func (cc *CampaignsCleaner) cleanFinishedCampaigns() {
	expirationTime := time.Now().Add(-time.Duration(cc.retentionDays) * 24 * time.Hour)
	rowsAffected, err := cc.campaigns.RemoveFinishedBefore(context.Background(), expirationTime)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeSchedule).
			Errorf("failed to clean finished campaigns: %v", err)
	} else {
		log.Infof("finished campaigns were cleaned at %v, affected rows: %v", time.Now(), rowsAffected)
	}
}

package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/shiftfill/outreach/internal/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Campaigns struct {
	db *gorm.DB
}

func NewCampaignsRepository(db *gorm.DB) *Campaigns {
	return &Campaigns{db: db}
}

// Save upserts the campaign snapshot together with all of its attempts.
func (repo *Campaigns) Save(ctx context.Context, record entities.CampaignRecord) error {
	attempts := record.Attempts
	record.Attempts = nil

	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error; err != nil {
			return err
		}
		if len(attempts) == 0 {
			return nil
		}
		for i := range attempts {
			attempts[i].CampaignID = record.ID
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&attempts).Error
	})
}

func (repo *Campaigns) GetByID(ctx context.Context, id string) (*entities.CampaignRecord, error) {
	var record entities.CampaignRecord
	err := repo.db.WithContext(ctx).Preload("Attempts").First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (repo *Campaigns) GetByOpening(ctx context.Context, openingID string) ([]entities.CampaignRecord, error) {
	var records []entities.CampaignRecord
	if err := repo.db.WithContext(ctx).Preload("Attempts").
		Order("created_at").Find(&records, "opening_id = ?", openingID).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// RemoveFinishedBefore deletes archived campaigns (and their attempts) finished before expirationTime.
func (repo *Campaigns) RemoveFinishedBefore(ctx context.Context, expirationTime time.Time) (int64, error) {
	var ids []string
	if err := repo.db.WithContext(ctx).Model(&entities.CampaignRecord{}).
		Where("finished_at IS NOT NULL AND finished_at < ?", expirationTime).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var removed int64
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&entities.AttemptRecord{}, "campaign_id IN ?", ids).Error; err != nil {
			return err
		}
		res := tx.Delete(&entities.CampaignRecord{}, "id IN ?", ids)
		removed = res.RowsAffected
		return res.Error
	})
	return removed, err
}

package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/shiftfill/outreach/internal/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Locks stores processing locks keyed by opening id. The primary key is what makes concurrent
// acquires safe: the insert is ON CONFLICT DO NOTHING and takeovers are conditional updates.
type Locks struct {
	db *gorm.DB
}

func NewLocksRepository(db *gorm.DB) *Locks {
	return &Locks{db: db}
}

func (repo *Locks) Create(ctx context.Context, lock entities.ProcessingLock) (bool, error) {
	res := repo.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (repo *Locks) TakeOver(ctx context.Context, lock entities.ProcessingLock, now time.Time) (bool, error) {
	res := repo.db.WithContext(ctx).Model(&entities.ProcessingLock{}).
		Where("opening_id = ? AND (active = ? OR expires_at <= ? OR holder_id = ?)",
			lock.OpeningID, false, now, lock.HolderID).
		Updates(map[string]any{
			"holder_id":   lock.HolderID,
			"reason":      lock.Reason,
			"token":       lock.Token,
			"acquired_at": lock.AcquiredAt,
			"expires_at":  lock.ExpiresAt,
			"active":      true,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (repo *Locks) Get(ctx context.Context, openingID string) (*entities.ProcessingLock, error) {
	var lock entities.ProcessingLock
	err := repo.db.WithContext(ctx).First(&lock, "opening_id = ?", openingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lock, nil
}

func (repo *Locks) Deactivate(ctx context.Context, openingID, token string) error {
	return repo.db.WithContext(ctx).Model(&entities.ProcessingLock{}).
		Where("opening_id = ? AND token = ? AND active = ?", openingID, token, true).
		Update("active", false).Error
}

func (repo *Locks) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := repo.db.WithContext(ctx).Model(&entities.ProcessingLock{}).
		Where("active = ? AND expires_at <= ?", true, now).
		Update("active", false)
	return res.RowsAffected, res.Error
}

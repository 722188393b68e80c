package database

import (
	"context"

	"lottery/database/model"

	"gorm.io/gorm"
)

const maxDrawHistory = 10

// AddDrawHistory inserts record and trims the table to the most recent maxDrawHistory
// draws in one transaction.
func AddDrawHistory(ctx context.Context, record *model.DrawHistory) error {
	if db == nil {
		return errNotInitialized
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.DrawHistory{}).Count(&count).Error; err != nil {
			return err
		}
		if count <= maxDrawHistory {
			return nil
		}

		var stale []model.DrawHistory
		if err := tx.Order("id asc").Limit(int(count) - maxDrawHistory).Find(&stale).Error; err != nil {
			return err
		}
		if len(stale) > 0 {
			return tx.Delete(&stale).Error
		}
		return nil
	})
}

// GetDrawHistory returns the retained draws, newest first.
func GetDrawHistory(ctx context.Context) ([]*model.DrawHistory, error) {
	if db == nil {
		return nil, errNotInitialized
	}
	var histories []*model.DrawHistory
	if err := db.WithContext(ctx).Order("id desc").Limit(maxDrawHistory).Find(&histories).Error; err != nil {
		return nil, err
	}
	return histories, nil
}

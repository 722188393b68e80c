package database

import (
	"context"
	"errors"

	"lottery/database/model"

	"gorm.io/gorm"
)

var errNotInitialized = errors.New("database not initialized")

// AppendBets inserts bets in one transaction: either every record is stored or none is.
// Insertion order is the scan order.
func AppendBets(ctx context.Context, bets []model.Bet) error {
	if db == nil {
		return errNotInitialized
	}
	if len(bets) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range bets {
			// insert a copy so the caller's slice keeps a zero ID
			row := bets[i]
			row.ID = 0
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ScanBets returns the bets of one draw cycle in append order.
func ScanBets(ctx context.Context, cycleID string) ([]model.Bet, error) {
	if db == nil {
		return nil, errNotInitialized
	}
	var bets []model.Bet
	if err := db.WithContext(ctx).Where("cycle_id = ?", cycleID).Order("id asc").Find(&bets).Error; err != nil {
		return nil, err
	}
	return bets, nil
}

func CountBets(ctx context.Context, cycleID string) (int64, error) {
	if db == nil {
		return 0, errNotInitialized
	}
	var count int64
	err := db.WithContext(ctx).Model(&model.Bet{}).Where("cycle_id = ?", cycleID).Count(&count).Error
	return count, err
}

package database

import (
	"context"
	"time"

	"lottery/database/model"

	"gorm.io/gorm"
)

// SaveWinners stores the winners of one draw cycle atomically.
func SaveWinners(ctx context.Context, cycleID string, winners map[uint8][]model.Bet) error {
	if db == nil {
		return errNotInitialized
	}
	now := time.Now()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for agency, bets := range winners {
			for _, bet := range bets {
				win := &model.LotteryWin{
					CycleID:  cycleID,
					Agency:   agency,
					Document: bet.Document,
					Number:   bet.Number,
					WinDate:  now,
				}
				if err := tx.Create(win).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// GetWinners returns the recorded winners of a cycle ordered by agency then insertion.
func GetWinners(ctx context.Context, cycleID string) ([]*model.LotteryWin, error) {
	if db == nil {
		return nil, errNotInitialized
	}
	var wins []*model.LotteryWin
	err := db.WithContext(ctx).Where("cycle_id = ?", cycleID).Order("agency asc, id asc").Find(&wins).Error
	if err != nil {
		return nil, err
	}
	return wins, nil
}

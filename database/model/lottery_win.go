package model

import "time"

// LotteryWin records one winning bet of a finished draw cycle.
type LotteryWin struct {
	ID       int64     `gorm:"primaryKey"`
	CycleID  string    `gorm:"type:varchar(36);index;not null"`
	Agency   uint8     `gorm:"index;not null"`
	Document uint32    `gorm:"not null"`
	Number   uint32    `gorm:"not null"`
	WinDate  time.Time `gorm:"not null"`
}

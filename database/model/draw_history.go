package model

import "time"

// DrawHistory summarizes one draw cycle, successful or not.
type DrawHistory struct {
	ID        int64     `gorm:"primaryKey" json:"-"`
	CycleID   string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"cycleId"`
	Agencies  int       `gorm:"not null" json:"agencies"`
	Winners   int       `gorm:"not null" json:"winners"`
	Failed    bool      `gorm:"not null" json:"failed"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

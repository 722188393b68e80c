package model

type BetStatus uint8

const (
	Rejected BetStatus = 0
	Accepted BetStatus = 1
)

// Bet is one wager as received from an agency. CycleID scopes the stored row to the draw
// cycle it was submitted in. Neither CycleID nor Status is part of the wire record, and
// Status is never persisted.
type Bet struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	CycleID   string    `gorm:"type:varchar(36);index;not null;default:''" json:"-"`
	Agency    uint8     `gorm:"index;not null" json:"agency"`
	FirstName string    `gorm:"type:varchar(30);not null" json:"firstName"`
	LastName  string    `gorm:"type:varchar(30);not null" json:"lastName"`
	Document  uint32    `gorm:"not null" json:"document"`
	BirthDate string    `gorm:"type:varchar(10);not null" json:"birthDate"`
	Number    uint32    `gorm:"not null" json:"number"`
	Status    BetStatus `gorm:"-" json:"-"`
}

func (Bet) TableName() string {
	return "bets"
}

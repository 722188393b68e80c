package service

import (
	"context"
	"errors"
	"sync"

	"lottery/database/model"
)

// memoryStore is an in-process BetStore for tests.
type memoryStore struct {
	mu      sync.Mutex
	bets    []model.Bet
	appends int
	failAt  int
	scanErr error
}

func (m *memoryStore) Append(_ context.Context, bets []model.Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	if m.failAt > 0 && m.appends == m.failAt {
		return errors.New("disk full")
	}
	m.bets = append(m.bets, bets...)
	return nil
}

func (m *memoryStore) ScanAll(_ context.Context, cycleID string) ([]model.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	var out []model.Bet
	for _, b := range m.bets {
		if b.CycleID == cycleID {
			out = append(out, b)
		}
	}
	return out, nil
}

func bet(agency uint8, document, number uint32) model.Bet {
	return model.Bet{Agency: agency, FirstName: "N", LastName: "L", Document: document, BirthDate: "2000-01-01", Number: number}
}

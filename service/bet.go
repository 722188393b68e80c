package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lottery/database"
	"lottery/database/model"
	"lottery/logger"
)

var ErrStorageFailure = errors.New("storage failure")

// BetStore is the append/scan log bets are kept in. ScanAll returns only the bets stamped
// with cycleID.
type BetStore interface {
	Append(ctx context.Context, bets []model.Bet) error
	ScanAll(ctx context.Context, cycleID string) ([]model.Bet, error)
}

// DatabaseStore is the BetStore backed by the database package.
type DatabaseStore struct{}

func (DatabaseStore) Append(ctx context.Context, bets []model.Bet) error {
	return database.AppendBets(ctx, bets)
}

func (DatabaseStore) ScanAll(ctx context.Context, cycleID string) ([]model.Bet, error) {
	return database.ScanBets(ctx, cycleID)
}

// BetService serializes every append made by concurrent sessions: only one writer
// touches the store at a time. Every bet it stores belongs to cycleID and only that cycle
// is scanned back.
type BetService struct {
	store   BetStore
	cycleID string
	lock    sync.Mutex
}

func NewBetService(store BetStore, cycleID string) *BetService {
	if store == nil {
		store = DatabaseStore{}
	}
	return &BetService{store: store, cycleID: cycleID}
}

func (s *BetService) CycleID() string {
	return s.cycleID
}

// Store appends bets one record per call, in order, marking each accepted once stored.
// The first failure stops the batch and is returned wrapped in ErrStorageFailure.
func (s *BetService) Store(ctx context.Context, bets []model.Bet) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for i := range bets {
		bets[i].CycleID = s.cycleID
		if err := s.store.Append(ctx, bets[i:i+1]); err != nil {
			return fmt.Errorf("%w: %w", ErrStorageFailure, err)
		}
		bets[i].Status = model.Accepted
		logger.Debugf("action: apuesta_almacenada | result: success | dni: %v | numero: %v", bets[i].Document, bets[i].Number)
	}
	return nil
}

func (s *BetService) ScanAll(ctx context.Context) ([]model.Bet, error) {
	bets, err := s.store.ScanAll(ctx, s.cycleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	return bets, nil
}

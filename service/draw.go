package service

import (
	"context"
	"time"

	"lottery/database"
	"lottery/database/model"
	"lottery/logger"
)

// WinnerSet maps an agency to its winning bets in store order.
type WinnerSet map[uint8][]model.Bet

// Documents returns the winning documents of agency in order.
func (w WinnerSet) Documents(agency uint8) []uint32 {
	docs := make([]uint32, 0, len(w[agency]))
	for _, bet := range w[agency] {
		docs = append(docs, bet.Document)
	}
	return docs
}

func (w WinnerSet) Count() int {
	n := 0
	for _, bets := range w {
		n += len(bets)
	}
	return n
}

// WinnerPredicate decides whether a single bet won.
type WinnerPredicate func(bet model.Bet) bool

// WinningNumber is the predicate of the reference lottery: a bet wins when its number is n.
func WinningNumber(n uint32) WinnerPredicate {
	return func(bet model.Bet) bool {
		return bet.Number == n
	}
}

type DrawService struct {
	bets   *BetService
	hasWon WinnerPredicate
}

func NewDrawService(bets *BetService, hasWon WinnerPredicate) *DrawService {
	return &DrawService{bets: bets, hasWon: hasWon}
}

// ComputeWinners partitions bets by agency and keeps the winners of each, preserving the
// order they were encountered in. Every agency with at least one bet gets an entry.
func (s *DrawService) ComputeWinners(bets []model.Bet) WinnerSet {
	winners := make(WinnerSet)
	for _, bet := range bets {
		if _, ok := winners[bet.Agency]; !ok {
			winners[bet.Agency] = []model.Bet{}
		}
		if s.hasWon(bet) {
			winners[bet.Agency] = append(winners[bet.Agency], bet)
		}
	}
	return winners
}

// Draw scans the whole store and computes the winner set.
func (s *DrawService) Draw(ctx context.Context) (WinnerSet, error) {
	bets, err := s.bets.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.ComputeWinners(bets), nil
}

// RecordDraw is a draw hook that stores the winners of a successful draw and appends the
// cycle to the draw history.
func RecordDraw(result DrawResult) {
	ctx := context.Background()
	history := &model.DrawHistory{
		CycleID:   result.CycleID,
		Agencies:  len(result.Winners),
		Winners:   result.Winners.Count(),
		CreatedAt: time.Now(),
	}
	if result.Err != nil {
		history.Failed = true
		history.Error = result.Err.Error()
	} else if err := database.SaveWinners(ctx, result.CycleID, result.Winners); err != nil {
		logger.Warningf("action: guardar_ganadores | result: fail | cycle_id: %s | error: %v", result.CycleID, err)
	}
	if err := database.AddDrawHistory(ctx, history); err != nil {
		logger.Warningf("action: guardar_historial | result: fail | cycle_id: %s | error: %v", result.CycleID, err)
		return
	}
	logger.Debugf("action: guardar_historial | result: success | cycle_id: %s | ganadores: %d", result.CycleID, history.Winners)
}

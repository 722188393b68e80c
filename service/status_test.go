package service

import (
	"context"
	"testing"

	"lottery/database"
	"lottery/database/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSessions int32

func (f fixedSessions) ActiveSessions() int32 { return int32(f) }

func TestGetStatus(t *testing.T) {
	require.NoError(t, database.InitDB(":memory:"))
	defer database.CloseDB()
	bets := NewBetService(nil, "cycle-1")
	require.NoError(t, bets.Store(context.Background(), []model.Bet{bet(1, 1, 1), bet(2, 2, 2)}))
	require.NoError(t, NewBetService(nil, "cycle-0").Store(context.Background(), []model.Bet{bet(1, 3, 3)}))

	c := NewCoordinator(bets.CycleID(), 2, NewDrawService(bets, WinningNumber(7574)))
	require.NoError(t, c.Register(1))

	s := NewStatusService(c, fixedSessions(3))
	status := s.GetStatus(nil)
	assert.Equal(t, int64(2), status.Bets)
	assert.Equal(t, int32(3), status.Sessions)
	assert.Equal(t, 2, status.Draw.Expected)
	assert.Equal(t, []uint8{1}, status.Draw.Active)
	assert.False(t, status.Draw.Drawn)
	assert.NotZero(t, status.AppStats.Threads)
}

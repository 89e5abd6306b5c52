package tournament

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/bluffhouse/coup-server/internal/bot"
	"github.com/bluffhouse/coup-server/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newLeague(t *testing.T, entrants, rounds, seats int, seed int64) (*Manager, *Tournament) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	m := NewManager(game.NewManager(logger), logger)
	tour := m.CreateTournament("league", rounds, seats, seed)

	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < entrants; i++ {
		name := fmt.Sprintf("Bot-%d", i+1)
		require.NoError(t, tour.AddPlayer(name, bot.NewAgent(name, bot.RandomPersonality(rng), rng, nil)))
	}
	return m, tour
}

func TestTournamentStateString(t *testing.T) {
	assert.Equal(t, "WAITING", TournamentStateWaiting.String())
	assert.Equal(t, "IN_PROGRESS", TournamentStateInProgress.String())
	assert.Equal(t, "FINISHED", TournamentStateFinished.String())
	assert.Equal(t, "UNKNOWN", TournamentState(9).String())
}

func TestNewTournamentClampsSeats(t *testing.T) {
	assert.Equal(t, game.MaxPlayers, NewTournament("big", 1, 10, 1).SeatsPerGame)
	assert.Equal(t, game.MinPlayers, NewTournament("small", 1, 1, 1).SeatsPerGame)
}

func TestAddPlayerRejectsDuplicates(t *testing.T) {
	tour := NewTournament("dup", 1, 2, 1)
	require.NoError(t, tour.AddPlayer("A", nil))
	assert.ErrorIs(t, tour.AddPlayer("A", nil), ErrDuplicatePlayer)
	assert.Equal(t, 1, tour.GetPlayerCount())
}

func TestSeatingRotates(t *testing.T) {
	tour := NewTournament("rot", 3, 3, 1)
	for _, name := range []string{"A", "B", "C", "D"} {
		require.NoError(t, tour.AddPlayer(name, nil))
	}
	assert.Equal(t, []string{"A", "B", "C"}, tour.seating(0))
	assert.Equal(t, []string{"B", "C", "D"}, tour.seating(1))
	assert.Equal(t, []string{"D", "A", "B"}, tour.seating(3))
}

func TestRecordResultScoresPlacement(t *testing.T) {
	tour := NewTournament("score", 1, 3, 1)
	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, tour.AddPlayer(name, nil))
	}
	round := tour.nextRound()
	tour.recordResult(round, &game.Result{Winner: "C", EliminationOrder: []string{"A", "B"}, Turns: 12})

	standings := tour.Standings()
	require.Len(t, standings, 3)
	assert.Equal(t, PlayerSnapshot{Name: "C", Points: 2, Wins: 1, Games: 1}, standings[0])
	assert.Equal(t, PlayerSnapshot{Name: "B", Points: 1, Games: 1}, standings[1])
	assert.Equal(t, PlayerSnapshot{Name: "A", Points: 0, Games: 1}, standings[2])
	assert.True(t, tour.Snapshot().Rounds[0].Finished)
}

func TestRunPlaysEveryRound(t *testing.T) {
	const entrants, rounds, seats = 5, 6, 4
	m, tour := newLeague(t, entrants, rounds, seats, 17)
	require.NoError(t, m.Run(context.Background(), tour.ID))

	snap := tour.Snapshot()
	assert.Equal(t, TournamentStateFinished, snap.State)
	require.Len(t, snap.Rounds, rounds)
	require.NotNil(t, snap.StartTime)
	require.NotNil(t, snap.EndTime)

	games, points := 0, 0
	for _, p := range snap.Players {
		games += p.Games
		points += p.Points
	}
	assert.Equal(t, rounds*seats, games)
	// Each game hands out 0+1+...+(seats-1) points.
	assert.Equal(t, rounds*seats*(seats-1)/2, points)

	assert.Equal(t, tour.Standings()[0].Name, snap.Winner)
	assert.Zero(t, m.GetActiveTournamentCount())
	assert.Zero(t, m.games.ActiveGameCount())
}

func TestRunIsReproducible(t *testing.T) {
	run := func() []PlayerSnapshot {
		m, tour := newLeague(t, 4, 3, 3, 5)
		require.NoError(t, m.Run(context.Background(), tour.ID))
		return tour.Standings()
	}
	assert.Equal(t, run(), run())
}

func TestRunErrors(t *testing.T) {
	m, tour := newLeague(t, 1, 1, 2, 1)
	assert.ErrorIs(t, m.Run(context.Background(), "missing"), ErrTournamentNotFound)
	assert.ErrorIs(t, m.Run(context.Background(), tour.ID), ErrNotEnoughPlayers)

	m, tour = newLeague(t, 3, 2, 3, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Run(ctx, tour.ID), context.Canceled)
	assert.ErrorIs(t, m.Run(context.Background(), tour.ID), ErrAlreadyStarted)
}

func TestManagerRemoveTournament(t *testing.T) {
	m, tour := newLeague(t, 2, 1, 2, 1)
	assert.Equal(t, 1, m.GetActiveTournamentCount())
	_, ok := m.GetTournament(tour.ID)
	assert.True(t, ok)

	m.RemoveTournament(tour.ID)
	_, ok = m.GetTournament(tour.ID)
	assert.False(t, ok)
	assert.Zero(t, m.GetActiveTournamentCount())
}

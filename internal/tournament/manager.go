// Package tournament runs leagues of bot-played games and keeps standings.
package tournament

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bluffhouse/coup-server/internal/bot"
	"github.com/bluffhouse/coup-server/internal/game"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxDecisionsPerGame bounds a single game; bots never come close.
const maxDecisionsPerGame = 10000

var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrAlreadyStarted     = errors.New("tournament already started")
	ErrNotEnoughPlayers   = errors.New("not enough players")
	ErrDuplicatePlayer    = errors.New("player already entered")
)

// TournamentState represents the state of a tournament
type TournamentState int

const (
	TournamentStateWaiting TournamentState = iota
	TournamentStateInProgress
	TournamentStateFinished
)

func (s TournamentState) String() string {
	switch s {
	case TournamentStateWaiting:
		return "WAITING"
	case TournamentStateInProgress:
		return "IN_PROGRESS"
	case TournamentStateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Player is a league entrant. Points accumulate by placement: the first
// player out of a game scores 0 and the winner scores seats-1.
type Player struct {
	Name   string
	Brain  bot.Brain
	Points int
	Wins   int
	Games  int
}

// Round is one game of the league.
type Round struct {
	Number   int
	GameID   string
	Seats    []string
	Winner   string
	Turns    int
	Finished bool
}

// PlayerSnapshot captures tournament player data for external use.
type PlayerSnapshot struct {
	Name   string
	Points int
	Wins   int
	Games  int
}

// RoundSnapshot captures round data for external use.
type RoundSnapshot struct {
	Number   int
	GameID   string
	Seats    []string
	Winner   string
	Turns    int
	Finished bool
}

// TournamentSnapshot captures a consistent view of a tournament.
type TournamentSnapshot struct {
	ID           string
	Name         string
	State        TournamentState
	Players      []PlayerSnapshot
	Rounds       []RoundSnapshot
	NumRounds    int
	SeatsPerGame int
	Seed         int64
	Winner       string
	CreateTime   time.Time
	StartTime    *time.Time
	EndTime      *time.Time
}

// Tournament is a fixed number of games between the same entrants. Seating
// rotates every round.
type Tournament struct {
	ID           string
	Name         string
	State        TournamentState
	Players      map[string]*Player
	PlayerOrder  []string // Maintains insertion order
	Rounds       []*Round
	NumRounds    int
	SeatsPerGame int
	Seed         int64
	Winner       string
	CreateTime   time.Time
	StartTime    *time.Time
	EndTime      *time.Time
	mu           sync.RWMutex
}

// NewTournament creates a waiting tournament. seatsPerGame is clamped to the
// engine's player range.
func NewTournament(name string, numRounds, seatsPerGame int, seed int64) *Tournament {
	seatsPerGame = max(game.MinPlayers, min(game.MaxPlayers, seatsPerGame))
	return &Tournament{
		ID:           uuid.New().String(),
		Name:         name,
		State:        TournamentStateWaiting,
		Players:      make(map[string]*Player),
		PlayerOrder:  make([]string, 0),
		Rounds:       make([]*Round, 0, numRounds),
		NumRounds:    numRounds,
		SeatsPerGame: seatsPerGame,
		Seed:         seed,
		CreateTime:   time.Now(),
	}
}

// AddPlayer enters a bot.
func (t *Tournament) AddPlayer(name string, brain bot.Brain) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State != TournamentStateWaiting {
		return ErrAlreadyStarted
	}
	if _, exists := t.Players[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePlayer, name)
	}
	t.Players[name] = &Player{Name: name, Brain: brain}
	t.PlayerOrder = append(t.PlayerOrder, name)
	return nil
}

// GetPlayerCount returns the number of entrants.
func (t *Tournament) GetPlayerCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.PlayerOrder)
}

// GetState returns the current state.
func (t *Tournament) GetState() TournamentState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.State
}

// seating rotates the entrants so every player sits in every position over
// the course of the league. Callers hold t.mu.
func (t *Tournament) seating(round int) []string {
	n := len(t.PlayerOrder)
	seats := min(t.SeatsPerGame, n)
	out := make([]string, seats)
	for i := range out {
		out[i] = t.PlayerOrder[(round+i)%n]
	}
	return out
}

func (t *Tournament) start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State != TournamentStateWaiting {
		return ErrAlreadyStarted
	}
	if len(t.Players) < game.MinPlayers {
		return fmt.Errorf("%w: need %d, have %d", ErrNotEnoughPlayers, game.MinPlayers, len(t.Players))
	}
	now := time.Now()
	t.StartTime = &now
	t.State = TournamentStateInProgress
	return nil
}

func (t *Tournament) nextRound() *Round {
	t.mu.Lock()
	defer t.mu.Unlock()

	number := len(t.Rounds)
	round := &Round{
		Number: number + 1,
		GameID: uuid.New().String(),
		Seats:  t.seating(number),
	}
	t.Rounds = append(t.Rounds, round)
	return round
}

// recordResult scores a finished game.
func (t *Tournament) recordResult(round *Round, result *game.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	round.Winner = result.Winner
	round.Turns = result.Turns
	round.Finished = true

	for place, name := range result.EliminationOrder {
		if p, ok := t.Players[name]; ok {
			p.Points += place
			p.Games++
		}
	}
	if p, ok := t.Players[result.Winner]; ok {
		p.Points += len(round.Seats) - 1
		p.Wins++
		p.Games++
	}
}

func (t *Tournament) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.EndTime = &now
	t.State = TournamentStateFinished
	if standings := t.standings(); len(standings) > 0 {
		t.Winner = standings[0].Name
	}
}

// Standings ranks players by points, then wins, then name.
func (t *Tournament) Standings() []PlayerSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.standings()
}

func (t *Tournament) standings() []PlayerSnapshot {
	out := t.players()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (t *Tournament) players() []PlayerSnapshot {
	players := make([]PlayerSnapshot, 0, len(t.PlayerOrder))
	for _, name := range t.PlayerOrder {
		if player, ok := t.Players[name]; ok {
			players = append(players, PlayerSnapshot{
				Name:   player.Name,
				Points: player.Points,
				Wins:   player.Wins,
				Games:  player.Games,
			})
		}
	}
	return players
}

// Snapshot returns a consistent copy of the tournament state.
func (t *Tournament) Snapshot() TournamentSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rounds := make([]RoundSnapshot, 0, len(t.Rounds))
	for _, r := range t.Rounds {
		rounds = append(rounds, RoundSnapshot{
			Number:   r.Number,
			GameID:   r.GameID,
			Seats:    append([]string(nil), r.Seats...),
			Winner:   r.Winner,
			Turns:    r.Turns,
			Finished: r.Finished,
		})
	}

	return TournamentSnapshot{
		ID:           t.ID,
		Name:         t.Name,
		State:        t.State,
		Players:      t.players(),
		Rounds:       rounds,
		NumRounds:    t.NumRounds,
		SeatsPerGame: t.SeatsPerGame,
		Seed:         t.Seed,
		Winner:       t.Winner,
		CreateTime:   t.CreateTime,
		StartTime:    cloneTime(t.StartTime),
		EndTime:      cloneTime(t.EndTime),
	}
}

func cloneTime(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	cp := *src
	return &cp
}

// Manager manages tournaments
type Manager struct {
	tournaments map[string]*Tournament
	games       *game.Manager
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewManager creates a tournament manager hosting its games on games.
func NewManager(games *game.Manager, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		tournaments: make(map[string]*Tournament),
		games:       games,
		logger:      logger,
	}
}

// CreateTournament creates a new tournament
func (m *Manager) CreateTournament(name string, numRounds, seatsPerGame int, seed int64) *Tournament {
	tournament := NewTournament(name, numRounds, seatsPerGame, seed)

	m.mu.Lock()
	m.tournaments[tournament.ID] = tournament
	m.mu.Unlock()

	m.logger.Info("tournament created",
		zap.String("tournament_id", tournament.ID),
		zap.String("name", name),
		zap.Int("rounds", numRounds),
		zap.Int("seats_per_game", tournament.SeatsPerGame),
	)
	return tournament
}

// GetTournament retrieves a tournament by ID
func (m *Manager) GetTournament(tournamentID string) (*Tournament, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tournament, ok := m.tournaments[tournamentID]
	return tournament, ok
}

// RemoveTournament removes a tournament
func (m *Manager) RemoveTournament(tournamentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tournaments, tournamentID)

	m.logger.Info("tournament removed", zap.String("tournament_id", tournamentID))
}

// GetActiveTournamentCount returns the count of active tournaments
func (m *Manager) GetActiveTournamentCount() int {
	m.mu.RLock()
	tournaments := make([]*Tournament, 0, len(m.tournaments))
	for _, t := range m.tournaments {
		tournaments = append(tournaments, t)
	}
	m.mu.RUnlock()

	count := 0
	for _, t := range tournaments {
		if t.GetState() != TournamentStateFinished {
			count++
		}
	}
	return count
}

// Run plays every round of the tournament. Round r is dealt from Seed+r.
func (m *Manager) Run(ctx context.Context, tournamentID string) error {
	t, ok := m.GetTournament(tournamentID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTournamentNotFound, tournamentID)
	}
	if err := t.start(); err != nil {
		return err
	}

	for i := 0; i < t.NumRounds; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		round := t.nextRound()
		result, err := m.playRound(ctx, t, round, t.Seed+int64(i))
		if err != nil {
			return fmt.Errorf("round %d: %w", round.Number, err)
		}
		t.recordResult(round, result)

		m.logger.Info("tournament round finished",
			zap.String("tournament_id", t.ID),
			zap.Int("round", round.Number),
			zap.String("game_id", round.GameID),
			zap.String("winner", result.Winner),
			zap.Int("turns", result.Turns),
		)
	}

	t.finish()
	m.logger.Info("tournament finished",
		zap.String("tournament_id", t.ID),
		zap.String("winner", t.Snapshot().Winner),
	)
	return nil
}

func (m *Manager) playRound(ctx context.Context, t *Tournament, round *Round, seed int64) (*game.Result, error) {
	if err := m.games.StartGame(round.GameID, round.Seats, seed); err != nil {
		return nil, err
	}
	defer func() { _ = m.games.EndGame(round.GameID) }()

	t.mu.RLock()
	brains := make([]bot.Brain, len(round.Seats))
	for i, name := range round.Seats {
		brains[i] = t.Players[name].Brain
	}
	t.mu.RUnlock()

	for step := 0; step < maxDecisionsPerGame; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, ok, err := m.games.PendingDecision(round.GameID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return m.games.Result(round.GameID)
		}
		view, err := m.games.GetGameView(round.GameID, d.PlayerIndex)
		if err != nil {
			return nil, err
		}
		if err := m.games.Submit(round.GameID, d.PlayerIndex, brains[d.PlayerIndex].Decide(view, d)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("game %s did not finish after %d decisions", round.GameID, maxDecisionsPerGame)
}

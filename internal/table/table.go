// Package table implements lobby tables: players gather, empty seats are
// filled with bots and a game is hosted on the game manager.
package table

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bluffhouse/coup-server/internal/bot"
	"github.com/bluffhouse/coup-server/internal/game"
	"github.com/bluffhouse/coup-server/internal/random"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MaxNameLength caps player names.
const MaxNameLength = 20

// DefaultPlayerName replaces an empty name.
const DefaultPlayerName = "Player"

// maxBotSteps bounds a single bot run; a game never needs this many.
const maxBotSteps = 10000

// State is the lifecycle of a table.
type State int

const (
	StateWaiting State = iota
	StateInProgress
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrTableNotFound  = errors.New("table not found")
	ErrAlreadyStarted = errors.New("game already started")
	ErrLobbyFull      = errors.New("lobby is full")
	ErrNameTaken      = errors.New("name already taken")
	ErrWrongPassword  = errors.New("wrong table password")
	ErrNotSeated      = errors.New("player is not seated at this table")
	ErrNotStarted     = errors.New("game has not started")
	ErrNotController  = errors.New("only the table controller can do that")
	ErrNoHumans       = errors.New("at least one human player is required")
)

// ResultStore persists finished games.
type ResultStore interface {
	SaveResult(ctx context.Context, result game.Result) error
}

// Options configures every table created by a Manager.
type Options struct {
	MinPlayers int
	MaxPlayers int
	BotNames   []string
	// Seed fixes the shuffle of every game; 0 draws a fresh seed per game.
	Seed int64
}

// DefaultOptions seats four to six players.
func DefaultOptions() Options {
	return Options{
		MinPlayers: 4,
		MaxPlayers: game.MaxPlayers,
		BotNames:   []string{"Bot-Alpha", "Bot-Beta", "Bot-Gamma", "Bot-Delta", "Bot-Epsilon"},
	}
}

// Seat is one place at the table.
type Seat struct {
	Name string
	Bot  bool
}

// Ticket is handed to a human when they sit down. Remote callers present
// the token to act as that seat.
type Ticket struct {
	Name  string
	Token string
}

// Snapshot is a consistent copy of a table for listings.
type Snapshot struct {
	ID          string
	Name        string
	Controller  string
	State       State
	Seats       []Seat
	GameID      string
	HasPassword bool
	CreateTime  time.Time
	StartTime   *time.Time
	EndTime     *time.Time
	Winner      string
}

// Table is a lobby that turns into a game when started.
type Table struct {
	ID           string
	Name         string
	Controller   string
	State        State
	Seats        []Seat
	GameID       string
	CreateTime   time.Time
	StartTime    *time.Time
	EndTime      *time.Time
	Winner       string
	passwordHash []byte
	tokens       map[string]string // token -> seat name

	opts   Options
	games  *game.Manager
	store  ResultStore
	agents map[int]bot.Brain
	logger *zap.Logger
	mu     sync.Mutex
}

func newTable(name, controller, password string, opts Options, games *game.Manager, store ResultStore, logger *zap.Logger) (*Table, error) {
	t := &Table{
		ID:         uuid.New().String(),
		Name:       strings.TrimSpace(name),
		Controller: controller,
		State:      StateWaiting,
		Seats:      make([]Seat, 0, opts.MaxPlayers),
		CreateTime: time.Now(),
		opts:       opts,
		games:      games,
		store:      store,
		agents:     make(map[int]bot.Brain),
		tokens:     make(map[string]string),
		logger:     logger,
	}
	if t.Name == "" {
		t.Name = "Table " + t.ID[:8]
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash table password: %w", err)
		}
		t.passwordHash = hash
	}
	return t, nil
}

// CleanName trims a requested name, caps it at MaxNameLength and falls back
// to DefaultPlayerName.
func CleanName(name string) string {
	runes := []rune(name)
	if len(runes) > MaxNameLength {
		runes = runes[:MaxNameLength]
	}
	cleaned := strings.TrimSpace(string(runes))
	if cleaned == "" {
		return DefaultPlayerName
	}
	return cleaned
}

// Join seats a human. It returns the cleaned name actually used.
func (t *Table) Join(name, password string) (string, error) {
	ticket, err := t.Sit(name, password)
	return ticket.Name, err
}

// Sit seats a human and issues the seat token.
func (t *Table) Sit(name, password string) (Ticket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State != StateWaiting {
		return Ticket{}, ErrAlreadyStarted
	}
	if len(t.passwordHash) > 0 {
		if err := bcrypt.CompareHashAndPassword(t.passwordHash, []byte(password)); err != nil {
			return Ticket{}, ErrWrongPassword
		}
	}
	if len(t.Seats) >= t.opts.MaxPlayers {
		return Ticket{}, ErrLobbyFull
	}
	name = CleanName(name)
	if t.seatOf(name) >= 0 {
		return Ticket{}, fmt.Errorf("%w: %s", ErrNameTaken, name)
	}

	t.Seats = append(t.Seats, Seat{Name: name})
	if t.Controller == "" {
		t.Controller = name
	}
	token := uuid.NewString()
	t.tokens[token] = name

	t.logger.Info("player joined table",
		zap.String("table_id", t.ID),
		zap.String("player", name),
		zap.Int("seats", len(t.Seats)),
	)
	return Ticket{Name: name, Token: token}, nil
}

// Authenticate resolves a seat token to the human seated with it.
func (t *Table) Authenticate(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	name, ok := t.tokens[token]
	if !ok {
		return "", false
	}
	idx := t.seatOf(name)
	if idx < 0 || t.Seats[idx].Bot {
		return "", false
	}
	return name, true
}

// revoke drops every token issued to name. Callers hold t.mu.
func (t *Table) revoke(name string) {
	for token, seated := range t.tokens {
		if seated == name {
			delete(t.tokens, token)
		}
	}
}

// Leave removes a waiting player. Once the game is running the seat is
// handed to a bot so the game can continue.
func (t *Table) Leave(ctx context.Context, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.seatOf(name)
	if idx < 0 {
		return ErrNotSeated
	}
	t.revoke(name)

	switch t.State {
	case StateWaiting:
		t.Seats = append(t.Seats[:idx], t.Seats[idx+1:]...)
		if t.Controller == name {
			t.Controller = ""
			if len(t.Seats) > 0 {
				t.Controller = t.Seats[0].Name
			}
		}
	case StateInProgress:
		t.Seats[idx].Bot = true
		t.agents[idx] = t.newAgent(idx)
		t.logger.Info("bot took over seat",
			zap.String("table_id", t.ID),
			zap.String("player", name),
			zap.Int("seat", idx),
		)
		return t.runBots(ctx)
	}
	return nil
}

// Start deals the game. Empty seats up to the minimum are filled with bots.
// Bots then play until a human owns the pending decision.
func (t *Table) Start(ctx context.Context, requester string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State != StateWaiting {
		return ErrAlreadyStarted
	}
	if requester != "" && requester != t.Controller {
		return ErrNotController
	}
	if len(t.Seats) == 0 {
		return ErrNoHumans
	}

	humans := len(t.Seats)
	for i := 0; len(t.Seats) < t.opts.MinPlayers && i < len(t.opts.BotNames); i++ {
		name := t.opts.BotNames[i]
		if t.seatOf(name) >= 0 {
			continue
		}
		t.Seats = append(t.Seats, Seat{Name: name, Bot: true})
	}

	seed, err := random.ResolveSeed(t.opts.Seed)
	if err != nil {
		t.Seats = t.Seats[:humans]
		return err
	}

	names := make([]string, len(t.Seats))
	for i, s := range t.Seats {
		names[i] = s.Name
	}
	gameID := uuid.New().String()
	if err := t.games.StartGame(gameID, names, seed); err != nil {
		t.Seats = t.Seats[:humans]
		return fmt.Errorf("start game: %w", err)
	}

	for i, s := range t.Seats {
		if s.Bot {
			t.agents[i] = t.newAgentSeeded(i, seed)
		}
	}

	now := time.Now()
	t.GameID = gameID
	t.State = StateInProgress
	t.StartTime = &now

	t.logger.Info("table started",
		zap.String("table_id", t.ID),
		zap.String("game_id", gameID),
		zap.Int("humans", humans),
		zap.Int("bots", len(t.Seats)-humans),
		zap.Int64("seed", seed),
	)
	return t.runBots(ctx)
}

func (t *Table) newAgent(seat int) *bot.Agent {
	seed, err := random.NewSeed()
	if err != nil {
		seed = time.Now().UnixNano()
	}
	return t.newAgentSeeded(seat, seed)
}

func (t *Table) newAgentSeeded(seat int, seed int64) *bot.Agent {
	rng := random.NewRand(seed + int64(seat))
	return bot.NewAgent(t.Seats[seat].Name, bot.RandomPersonality(rng), rng,
		t.logger.With(zap.String("table_id", t.ID)))
}

// Submit answers the pending decision for the named human. raw is the wire
// value: a string or a number depending on the decision kind.
func (t *Table) Submit(ctx context.Context, name string, raw any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State == StateWaiting {
		return ErrNotStarted
	}
	idx := t.seatOf(name)
	if idx < 0 || t.Seats[idx].Bot {
		return ErrNotSeated
	}

	d, ok, err := t.games.PendingDecision(t.GameID)
	if err != nil {
		return err
	}
	if !ok {
		return game.ErrNoPendingDecision
	}
	if d.PlayerIndex != idx {
		return fmt.Errorf("%w: waiting on %s", game.ErrNotYourDecision, t.Seats[d.PlayerIndex].Name)
	}
	choice, err := game.ParseChoice(d.Kind, raw)
	if err != nil {
		return fmt.Errorf("%w: %v", game.ErrIllegalChoice, err)
	}
	if err := t.games.Submit(t.GameID, idx, choice); err != nil {
		return err
	}
	return t.runBots(ctx)
}

// runBots lets bots answer until a human is asked or the game ends.
// Callers hold t.mu.
func (t *Table) runBots(ctx context.Context) error {
	for step := 0; step < maxBotSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, ok, err := t.games.PendingDecision(t.GameID)
		if err != nil {
			return err
		}
		if !ok {
			t.finish(ctx)
			return nil
		}
		agent, isBot := t.agents[d.PlayerIndex]
		if !isBot {
			return nil
		}
		view, err := t.games.GetGameView(t.GameID, d.PlayerIndex)
		if err != nil {
			return err
		}
		if err := t.games.Submit(t.GameID, d.PlayerIndex, agent.Decide(view, d)); err != nil {
			return fmt.Errorf("bot %s: %w", t.Seats[d.PlayerIndex].Name, err)
		}
	}
	return fmt.Errorf("table %s: bots did not yield after %d decisions", t.ID, maxBotSteps)
}

func (t *Table) finish(ctx context.Context) {
	if t.State == StateFinished {
		return
	}
	now := time.Now()
	t.State = StateFinished
	t.EndTime = &now

	result, err := t.games.Result(t.GameID)
	if err != nil {
		t.logger.Error("finished game has no result",
			zap.String("table_id", t.ID),
			zap.String("game_id", t.GameID),
			zap.Error(err),
		)
		return
	}
	t.Winner = result.Winner
	t.logger.Info("table finished",
		zap.String("table_id", t.ID),
		zap.String("game_id", t.GameID),
		zap.String("winner", result.Winner),
		zap.Int("turns", result.Turns),
	)

	if t.store == nil {
		return
	}
	if err := t.store.SaveResult(ctx, *result); err != nil {
		t.logger.Warn("failed to save game result",
			zap.String("game_id", t.GameID),
			zap.Error(err),
		)
	}
}

// SeatOf returns the seat index of name, or -1.
func (t *Table) SeatOf(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seatOf(name)
}

func (t *Table) seatOf(name string) int {
	for i, s := range t.Seats {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// View renders the running game for name. Unknown names get a spectator
// view.
func (t *Table) View(name string) (*game.GameView, error) {
	t.mu.Lock()
	gameID := t.GameID
	idx := t.seatOf(name)
	t.mu.Unlock()

	if gameID == "" {
		return nil, ErrNotStarted
	}
	if idx < 0 {
		idx = game.SpectatorIndex
	}
	return t.games.GetGameView(gameID, idx)
}

// Spectate renders the running game with every hand hidden.
func (t *Table) Spectate() (*game.GameView, error) {
	t.mu.Lock()
	gameID := t.GameID
	t.mu.Unlock()

	if gameID == "" {
		return nil, ErrNotStarted
	}
	return t.games.GetGameView(gameID, game.SpectatorIndex)
}

// Snapshot returns a consistent copy of the table.
func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Snapshot{
		ID:          t.ID,
		Name:        t.Name,
		Controller:  t.Controller,
		State:       t.State,
		Seats:       append([]Seat(nil), t.Seats...),
		GameID:      t.GameID,
		HasPassword: len(t.passwordHash) > 0,
		CreateTime:  t.CreateTime,
		StartTime:   cloneTime(t.StartTime),
		EndTime:     cloneTime(t.EndTime),
		Winner:      t.Winner,
	}
}

// PlayerNames lists seated names in seat order.
func (s Snapshot) PlayerNames() []string {
	names := make([]string, len(s.Seats))
	for i, seat := range s.Seats {
		names[i] = seat.Name
	}
	return names
}

func cloneTime(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	cp := *src
	return &cp
}

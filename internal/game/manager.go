package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/bluffhouse/coup-server/internal/game/rules"
	"go.uber.org/zap"
)

// Notification types emitted by the Manager.
const (
	NotificationStateChanged    = "STATE_CHANGED"
	NotificationDecisionPending = "DECISION_PENDING"
	NotificationGameOver        = "GAME_OVER"
	NotificationGameEvent       = "GAME_EVENT"
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrGameExists      = errors.New("game already exists")
	ErrNotYourDecision = errors.New("decision belongs to another player")
	ErrGameNotFinished = errors.New("game is still in progress")
)

// GameNotification is pushed to UI/websocket layers whenever a hosted game
// changes. PlayerIndex is the seat the notification concerns, or -1 for a
// broadcast.
type GameNotification struct {
	Type        string
	GameID      string
	PlayerIndex int
	Timestamp   time.Time
	Data        map[string]interface{}
}

// NotificationHandler receives notifications. It is called on its own
// goroutine and may call back into the Manager.
type NotificationHandler func(notification GameNotification)

type hostedGame struct {
	id         string
	engine     *Engine
	names      []string
	seed       int64
	startedAt  time.Time
	finishedAt time.Time
	eliminated []string
	mu         sync.Mutex
}

// Manager hosts many games keyed by id. Submits to the same game are
// serialised by a per-game mutex; different games proceed in parallel.
type Manager struct {
	logger              *zap.Logger
	mu                  sync.RWMutex
	games               map[string]*hostedGame
	notificationHandler NotificationHandler
	recorder            *ReplayRecorder
}

// NewManager creates an empty game manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger: logger,
		games:  make(map[string]*hostedGame),
	}
}

// SetNotificationHandler installs the handler for game notifications.
func (m *Manager) SetNotificationHandler(handler NotificationHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notificationHandler = handler
}

// SetReplayRecorder records a snapshot of every hosted game after each
// accepted decision.
func (m *Manager) SetReplayRecorder(recorder *ReplayRecorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorder = recorder
}

func (m *Manager) emit(n GameNotification) {
	m.mu.RLock()
	handler := m.notificationHandler
	m.mu.RUnlock()

	if handler != nil {
		go handler(n)
	}
}

func (m *Manager) notify(kind, gameID string, player int, data map[string]interface{}) {
	m.emit(GameNotification{
		Type:        kind,
		GameID:      gameID,
		PlayerIndex: player,
		Timestamp:   time.Now(),
		Data:        data,
	})
}

// StartGame deals a new game for names, shuffled from seed, and hosts it
// under gameID.
func (m *Manager) StartGame(gameID string, names []string, seed int64) error {
	if gameID == "" {
		return fmt.Errorf("gameID is required")
	}

	gameLogger := m.logger.With(zap.String("game_id", gameID))
	engine, err := NewGame(names, rand.New(rand.NewSource(seed)), WithLogger(gameLogger))
	if err != nil {
		return err
	}

	g := &hostedGame{
		id:        gameID,
		engine:    engine,
		names:     append([]string(nil), names...),
		seed:      seed,
		startedAt: time.Now(),
	}

	m.mu.Lock()
	if _, exists := m.games[gameID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGameExists, gameID)
	}
	m.games[gameID] = g
	recorder := m.recorder
	m.mu.Unlock()

	engine.Events().Subscribe(func(evt rules.Event) {
		if evt.Type == rules.EventPlayerEliminated {
			g.eliminated = append(g.eliminated, g.names[evt.Player])
		}
		m.notify(NotificationGameEvent, gameID, -1, eventData(evt))
	})

	if recorder != nil {
		recorder.StartRecording(gameID, seed, names)
		recorder.RecordState(gameID, engine.Snapshot(gameID))
	}

	m.logger.Info("game started",
		zap.String("game_id", gameID),
		zap.Strings("players", names),
		zap.Int64("seed", seed),
	)

	if d, ok := engine.PendingDecision(); ok {
		m.notify(NotificationDecisionPending, gameID, d.PlayerIndex, map[string]interface{}{
			"decision_type": string(d.Kind),
		})
	}
	return nil
}

func (m *Manager) lookup(gameID string) (*hostedGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return g, nil
}

// Submit answers the pending decision of gameID on behalf of playerIndex.
func (m *Manager) Submit(gameID string, playerIndex int, choice Choice) error {
	g, err := m.lookup(gameID)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	d, ok := g.engine.PendingDecision()
	if !ok {
		return fmt.Errorf("game %s: %w", gameID, ErrNoPendingDecision)
	}
	if d.PlayerIndex != playerIndex {
		return fmt.Errorf("game %s: %w: waiting on seat %d, got seat %d", gameID, ErrNotYourDecision, d.PlayerIndex, playerIndex)
	}
	if err := g.engine.Submit(choice); err != nil {
		m.logger.Debug("rejected decision",
			zap.String("game_id", gameID),
			zap.Int("seat", playerIndex),
			zap.String("decision_type", string(d.Kind)),
			zap.Error(err),
		)
		return fmt.Errorf("game %s: %w", gameID, err)
	}

	m.mu.RLock()
	recorder := m.recorder
	m.mu.RUnlock()
	if recorder != nil {
		recorder.RecordState(gameID, g.engine.Snapshot(gameID))
	}

	m.notify(NotificationStateChanged, gameID, -1, map[string]interface{}{
		"turn_number": g.engine.TurnNumber(),
		"phase":       g.engine.Phase().String(),
	})

	if g.engine.IsGameOver() {
		g.finishedAt = time.Now()
		winner, _ := g.engine.Winner()
		m.logger.Info("game finished",
			zap.String("game_id", gameID),
			zap.String("winner", g.names[winner]),
			zap.Int("turns", g.engine.TurnNumber()),
			zap.Duration("duration", g.finishedAt.Sub(g.startedAt)),
		)
		m.notify(NotificationGameOver, gameID, winner, map[string]interface{}{
			"winner":      winner,
			"winner_name": g.names[winner],
		})
		return nil
	}

	next, _ := g.engine.PendingDecision()
	m.notify(NotificationDecisionPending, gameID, next.PlayerIndex, map[string]interface{}{
		"decision_type": string(next.Kind),
	})
	return nil
}

// PendingDecision returns the decision gameID is waiting on. ok is false once
// the game is over.
func (m *Manager) PendingDecision(gameID string) (d PendingDecision, ok bool, err error) {
	g, err := m.lookup(gameID)
	if err != nil {
		return PendingDecision{}, false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok = g.engine.PendingDecision()
	return d, ok, nil
}

// GetGameView renders gameID for viewer. Viewers outside the seating get a
// spectator view.
func (m *Manager) GetGameView(gameID string, viewer int) (*GameView, error) {
	g, err := m.lookup(gameID)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.ViewAs(viewer), nil
}

// Snapshot returns the unredacted state of gameID.
func (m *Manager) Snapshot(gameID string) (*Snapshot, error) {
	g, err := m.lookup(gameID)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.Snapshot(gameID), nil
}

// Result summarises a finished game.
func (m *Manager) Result(gameID string) (*Result, error) {
	g, err := m.lookup(gameID)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	winner, ok := g.engine.Winner()
	if !ok {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrGameNotFinished)
	}
	return &Result{
		GameID:           gameID,
		Winner:           g.names[winner],
		WinnerIndex:      winner,
		Players:          append([]string(nil), g.names...),
		EliminationOrder: append([]string(nil), g.eliminated...),
		Turns:            g.engine.TurnNumber(),
		Seed:             g.seed,
		StartedAt:        g.startedAt,
		FinishedAt:       g.finishedAt,
	}, nil
}

// EndGame stops hosting gameID. A recorded replay is flushed to disk.
func (m *Manager) EndGame(gameID string) error {
	m.mu.Lock()
	g, ok := m.games[gameID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	delete(m.games, gameID)
	recorder := m.recorder
	m.mu.Unlock()

	if recorder != nil && recorder.IsRecording(gameID) {
		if err := recorder.SaveReplay(gameID); err != nil {
			m.logger.Warn("failed to save replay",
				zap.String("game_id", gameID),
				zap.Error(err),
			)
		}
	}

	g.mu.Lock()
	finished := g.engine.IsGameOver()
	g.mu.Unlock()

	m.logger.Info("game ended",
		zap.String("game_id", gameID),
		zap.Bool("finished", finished),
	)
	return nil
}

// GameIDs lists hosted games in lexical order.
func (m *Manager) GameIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.games))
	for id := range m.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActiveGameCount counts hosted games that are not over yet.
func (m *Manager) ActiveGameCount() int {
	m.mu.RLock()
	games := make([]*hostedGame, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, g)
	}
	m.mu.RUnlock()

	count := 0
	for _, g := range games {
		g.mu.Lock()
		if !g.engine.IsGameOver() {
			count++
		}
		g.mu.Unlock()
	}
	return count
}

func eventData(evt rules.Event) map[string]interface{} {
	data := map[string]interface{}{
		"event":  string(evt.Type),
		"turn":   evt.Turn,
		"player": evt.Player,
	}
	if evt.Target != rules.NoPlayer {
		data["target"] = evt.Target
	}
	if evt.Action.Valid() {
		data["action"] = evt.Action.String()
	}
	if evt.Card.Valid() {
		data["card"] = evt.Card.String()
	}
	if evt.Amount != 0 {
		data["amount"] = evt.Amount
	}
	return data
}

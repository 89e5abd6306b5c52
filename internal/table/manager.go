package table

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bluffhouse/coup-server/internal/game"
	"go.uber.org/zap"
)

// Manager owns every table on the server.
type Manager struct {
	tables map[string]*Table
	games  *game.Manager
	store  ResultStore
	opts   Options
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewManager creates a table manager hosting games on games. store may be
// nil, in which case results are not persisted.
func NewManager(games *game.Manager, store ResultStore, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxPlayers == 0 {
		opts = DefaultOptions()
	}
	return &Manager{
		tables: make(map[string]*Table),
		games:  games,
		store:  store,
		opts:   opts,
		logger: logger,
	}
}

// CreateTable opens a new lobby. An empty password makes the table public.
func (m *Manager) CreateTable(name, controller, password string) (*Table, error) {
	t, err := newTable(name, controller, password, m.opts, m.games, m.store, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.tables[t.ID] = t
	m.mu.Unlock()

	m.logger.Info("table created",
		zap.String("table_id", t.ID),
		zap.String("name", t.Name),
		zap.String("controller", controller),
		zap.Bool("password", password != ""),
	)
	return t, nil
}

// GetTable looks a table up by id.
func (m *Manager) GetTable(tableID string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[tableID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableID)
	}
	return t, nil
}

// FindByGame returns the table hosting gameID.
func (m *Manager) FindByGame(gameID string) (*Table, bool) {
	m.mu.RLock()
	tables := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	m.mu.RUnlock()

	for _, t := range tables {
		if t.Snapshot().GameID == gameID {
			return t, true
		}
	}
	return nil, false
}

// RemoveTable closes a table and stops hosting its game.
func (m *Manager) RemoveTable(tableID string) error {
	m.mu.Lock()
	t, ok := m.tables[tableID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTableNotFound, tableID)
	}
	delete(m.tables, tableID)
	m.mu.Unlock()

	if gameID := t.Snapshot().GameID; gameID != "" {
		if err := m.games.EndGame(gameID); err != nil {
			m.logger.Warn("failed to end table game",
				zap.String("table_id", tableID),
				zap.String("game_id", gameID),
				zap.Error(err),
			)
		}
	}
	m.logger.Info("table removed", zap.String("table_id", tableID))
	return nil
}

// ListTables returns snapshots of every table, oldest first.
func (m *Manager) ListTables() []Snapshot {
	m.mu.RLock()
	tables := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	m.mu.RUnlock()

	snaps := make([]Snapshot, len(tables))
	for i, t := range tables {
		snaps[i] = t.Snapshot()
	}
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreateTime.Equal(snaps[j].CreateTime) {
			return snaps[i].ID < snaps[j].ID
		}
		return snaps[i].CreateTime.Before(snaps[j].CreateTime)
	})
	return snaps
}

// ActiveTableCount counts tables that have not finished.
func (m *Manager) ActiveTableCount() int {
	count := 0
	for _, s := range m.ListTables() {
		if s.State != StateFinished {
			count++
		}
	}
	return count
}

// CleanupFinished removes tables that finished more than ttl ago, checking
// every interval until ctx is done.
func (m *Manager) CleanupFinished(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := m.removeFinishedBefore(now.Add(-ttl)); removed > 0 {
				m.logger.Debug("removed finished tables", zap.Int("count", removed))
			}
		}
	}
}

func (m *Manager) removeFinishedBefore(cutoff time.Time) int {
	removed := 0
	for _, s := range m.ListTables() {
		if s.State != StateFinished || s.EndTime == nil || s.EndTime.After(cutoff) {
			continue
		}
		if err := m.RemoveTable(s.ID); err == nil {
			removed++
		}
	}
	return removed
}

package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const replayVersion = 1

// Replay is the sequence of snapshots of one game, one per accepted
// decision, with a cursor for stepping through them.
type Replay struct {
	GameID  string
	Seed    int64
	Players []string
	States  []*Snapshot
	cursor  int
	mu      sync.RWMutex
}

// NewReplay creates an empty replay.
func NewReplay(gameID string, seed int64, players []string) *Replay {
	return &Replay{
		GameID:  gameID,
		Seed:    seed,
		Players: append([]string(nil), players...),
		States:  make([]*Snapshot, 0, 64),
	}
}

// RecordState appends a snapshot.
func (r *Replay) RecordState(s *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States = append(r.States, s)
}

// Start rewinds the cursor.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor = 0
}

// Next returns the snapshot under the cursor and advances it, or nil at
// the end.
func (r *Replay) Next() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor >= len(r.States) {
		return nil
	}
	s := r.States[r.cursor]
	r.cursor++
	return s
}

// Skip moves the cursor by count, clamped to the recorded range, and returns
// the snapshot Next will yield.
func (r *Replay) Skip(count int) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.States) == 0 {
		return nil
	}
	idx := r.cursor + count
	if idx >= len(r.States) {
		idx = len(r.States) - 1
	}
	if idx < 0 {
		idx = 0
	}
	r.cursor = idx
	return r.States[idx]
}

// Size returns the number of recorded snapshots.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.States)
}

// GetStateAt returns the snapshot at index, or nil.
func (r *Replay) GetStateAt(index int) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.States) {
		return nil
	}
	return r.States[index]
}

// Final returns the last recorded snapshot, or nil.
func (r *Replay) Final() *Snapshot {
	return r.GetStateAt(r.Size() - 1)
}

type replayHeader struct {
	Version    int
	GameID     string
	Seed       int64
	Players    []string
	SavedAt    time.Time
	StateCount int
}

func replayPath(directory, gameID string) string {
	return filepath.Join(directory, gameID+".replay")
}

// SaveToFile writes the replay as a gzip-compressed gob stream named
// <game id>.replay inside directory.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create replay directory: %w", err)
	}
	f, err := os.Create(replayPath(directory, r.GameID))
	if err != nil {
		return fmt.Errorf("failed to create replay file: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	enc := gob.NewEncoder(zw)
	header := replayHeader{
		Version:    replayVersion,
		GameID:     r.GameID,
		Seed:       r.Seed,
		Players:    r.Players,
		SavedAt:    time.Now(),
		StateCount: len(r.States),
	}
	if err := enc.Encode(&header); err != nil {
		return fmt.Errorf("failed to encode replay header: %w", err)
	}
	for i, s := range r.States {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode state %d: %w", i, err)
		}
	}
	return zw.Close()
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, gameID string) (*Replay, error) {
	f, err := os.Open(replayPath(directory, gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to open replay: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var header replayHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("failed to decode replay header: %w", err)
	}
	if header.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", header.Version)
	}

	replay := NewReplay(header.GameID, header.Seed, header.Players)
	for i := 0; i < header.StateCount; i++ {
		var s Snapshot
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to decode state %d: %w", i, err)
		}
		replay.States = append(replay.States, &s)
	}
	return replay, nil
}

// ReplayRecorder keeps in-memory replays for hosted games and flushes them
// to saveDir when a game is ended.
type ReplayRecorder struct {
	logger  *zap.Logger
	saveDir string
	mu      sync.RWMutex
	replays map[string]*Replay
	enabled map[string]bool
}

// NewReplayRecorder creates a recorder writing to saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		saveDir: saveDir,
		replays: make(map[string]*Replay),
		enabled: make(map[string]bool),
	}
}

// StartRecording opens a fresh replay for gameID.
func (rr *ReplayRecorder) StartRecording(gameID string, seed int64, players []string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.replays[gameID] = NewReplay(gameID, seed, players)
	rr.enabled[gameID] = true
	rr.logger.Debug("started replay recording", zap.String("game_id", gameID))
}

// StopRecording keeps the replay but ignores further snapshots.
func (rr *ReplayRecorder) StopRecording(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.enabled[gameID] = false
}

// IsRecording reports whether snapshots for gameID are being kept.
func (rr *ReplayRecorder) IsRecording(gameID string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return rr.enabled[gameID]
}

// RecordState appends s to gameID's replay when recording.
func (rr *ReplayRecorder) RecordState(gameID string, s *Snapshot) {
	rr.mu.RLock()
	enabled := rr.enabled[gameID]
	replay := rr.replays[gameID]
	rr.mu.RUnlock()

	if !enabled || replay == nil {
		return
	}
	replay.RecordState(s)
}

// GetReplay returns the in-memory replay for gameID.
func (rr *ReplayRecorder) GetReplay(gameID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	replay, ok := rr.replays[gameID]
	return replay, ok
}

// SaveReplay writes gameID's replay to disk and forgets it.
func (rr *ReplayRecorder) SaveReplay(gameID string) error {
	rr.mu.Lock()
	replay, ok := rr.replays[gameID]
	if !ok {
		rr.mu.Unlock()
		return fmt.Errorf("no replay found for game %s", gameID)
	}
	delete(rr.replays, gameID)
	delete(rr.enabled, gameID)
	rr.mu.Unlock()

	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return err
	}
	rr.logger.Info("saved replay",
		zap.String("game_id", gameID),
		zap.Int("state_count", replay.Size()),
		zap.String("directory", rr.saveDir),
	)
	return nil
}

// LoadReplay reads a saved replay from the recorder's directory.
func (rr *ReplayRecorder) LoadReplay(gameID string) (*Replay, error) {
	return LoadReplayFromFile(rr.saveDir, gameID)
}

// ClearReplay drops gameID's replay without saving it.
func (rr *ReplayRecorder) ClearReplay(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.replays, gameID)
	delete(rr.enabled, gameID)
}

package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Snapshot is the full, unredacted state of one game at a point in time.
// It is what replays store and what checksums are computed over.
type Snapshot struct {
	GameID      string
	TurnNumber  int
	CurrentTurn int
	Phase       string
	Players     []PlayerSnapshot
	Deck        []string

	PendingPlayer  int
	PendingKind    string
	PendingOptions []string

	Timestamp time.Time
}

// PlayerSnapshot is one seat inside a Snapshot.
type PlayerSnapshot struct {
	Name     string
	Coins    int
	Hand     []string
	Discards []string
}

// Snapshot captures the engine state under gameID.
func (e *Engine) Snapshot(gameID string) *Snapshot {
	s := &Snapshot{
		GameID:        gameID,
		TurnNumber:    e.turnNumber,
		CurrentTurn:   e.turn,
		Phase:         e.Phase().String(),
		Players:       make([]PlayerSnapshot, len(e.players)),
		Deck:          cardNames(e.deck.Cards()),
		PendingPlayer: -1,
		Timestamp:     time.Now(),
	}
	for i, p := range e.players {
		s.Players[i] = PlayerSnapshot{
			Name:     p.Name,
			Coins:    p.Coins,
			Hand:     cardNames(p.Hand),
			Discards: cardNames(p.Discards),
		}
	}
	if d, ok := e.PendingDecision(); ok {
		s.PendingPlayer = d.PlayerIndex
		s.PendingKind = string(d.Kind)
		for _, v := range d.OptionValues() {
			s.PendingOptions = append(s.PendingOptions, fmt.Sprint(v))
		}
	}
	return s
}

// SerializationChecksum identifies a snapshot's game state independent of
// when it was taken.
type SerializationChecksum struct {
	Hash      string
	Timestamp string
	Version   int
}

// ComputeChecksum hashes the canonical form of the snapshot with SHA-256.
// The timestamp is not part of the hash.
func (s *Snapshot) ComputeChecksum() (*SerializationChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(s.canonical())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &SerializationChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: s.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Version:   1,
	}, nil
}

// VerifyChecksum reports whether the snapshot still hashes to expected.
func (s *Snapshot) VerifyChecksum(expected *SerializationChecksum) (bool, error) {
	computed, err := s.ComputeChecksum()
	if err != nil {
		return false, err
	}
	return computed.Hash == expected.Hash, nil
}

// canonical renders every state field in a fixed order. Seat, hand and deck
// order are meaningful, so nothing is sorted.
func (s *Snapshot) canonical() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "GAME:%s|%d|%d|%s\n", s.GameID, s.TurnNumber, s.CurrentTurn, s.Phase)
	for i, p := range s.Players {
		fmt.Fprintf(&buf, "PLAYER:%d|%s|%d|%s|%s\n", i, p.Name, p.Coins,
			strings.Join(p.Hand, ","), strings.Join(p.Discards, ","))
	}
	fmt.Fprintf(&buf, "DECK:%s\n", strings.Join(s.Deck, ","))
	fmt.Fprintf(&buf, "PENDING:%d|%s|%s\n", s.PendingPlayer, s.PendingKind, strings.Join(s.PendingOptions, ","))
	return buf.String()
}

// SerializeToBytes gob-encodes the snapshot.
func (s *Snapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeSnapshot decodes a snapshot produced by SerializeToBytes.
func DeserializeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}

// ValidateSerializationRoundtrip checks that encoding and decoding s keeps
// its checksum.
func ValidateSerializationRoundtrip(s *Snapshot) error {
	before, err := s.ComputeChecksum()
	if err != nil {
		return err
	}
	data, err := s.SerializeToBytes()
	if err != nil {
		return err
	}
	decoded, err := DeserializeSnapshot(data)
	if err != nil {
		return err
	}
	after, err := decoded.ComputeChecksum()
	if err != nil {
		return err
	}
	if before.Hash != after.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, deserialized=%s", before.Hash, after.Hash)
	}
	return nil
}

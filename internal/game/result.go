package game

import "time"

// Result is the summary of a finished game handed to persistence.
type Result struct {
	GameID           string
	Winner           string
	WinnerIndex      int
	Players          []string
	EliminationOrder []string
	Turns            int
	Seed             int64
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Duration is the wall-clock length of the game.
func (r Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

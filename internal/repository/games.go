package repository

import (
	"context"
	"fmt"

	"github.com/bluffhouse/coup-server/internal/game"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// DefaultRecentLimit is used when a caller asks for a non-positive limit.
const DefaultRecentLimit = 20

// WinCount is the number of games a player has won.
type WinCount struct {
	Player string
	Wins   int
}

// GameRepository stores game results.
type GameRepository struct {
	db     *DB
	logger *zap.Logger
}

func NewGameRepository(db *DB) *GameRepository {
	return &GameRepository{db: db, logger: db.logger}
}

// SaveResult inserts result. Saving the same game twice is a no-op.
func (r *GameRepository) SaveResult(ctx context.Context, result game.Result) error {
	tag, err := r.db.pool.Exec(ctx, `
		INSERT INTO game_results
			(game_id, winner, winner_index, players, elimination_order, turns, seed, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (game_id) DO NOTHING`,
		result.GameID,
		result.Winner,
		result.WinnerIndex,
		nonNil(result.Players),
		nonNil(result.EliminationOrder),
		result.Turns,
		result.Seed,
		result.StartedAt,
		result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save result %s: %w", result.GameID, err)
	}
	r.logger.Debug("game result saved",
		zap.String("game_id", result.GameID),
		zap.Bool("inserted", tag.RowsAffected() == 1),
	)
	return nil
}

// RecentResults returns the latest finished games, newest first.
func (r *GameRepository) RecentResults(ctx context.Context, limit int) ([]game.Result, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := r.db.pool.Query(ctx, `
		SELECT game_id, winner, winner_index, players, elimination_order, turns, seed, started_at, finished_at
		FROM game_results
		ORDER BY finished_at DESC, game_id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent results: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.Result, error) {
		var res game.Result
		err := row.Scan(
			&res.GameID,
			&res.Winner,
			&res.WinnerIndex,
			&res.Players,
			&res.EliminationOrder,
			&res.Turns,
			&res.Seed,
			&res.StartedAt,
			&res.FinishedAt,
		)
		return res, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan recent results: %w", err)
	}
	return results, nil
}

// WinsByPlayer ranks winners by number of wins.
func (r *GameRepository) WinsByPlayer(ctx context.Context) ([]WinCount, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT winner, COUNT(*)
		FROM game_results
		GROUP BY winner
		ORDER BY COUNT(*) DESC, winner`)
	if err != nil {
		return nil, fmt.Errorf("query wins: %w", err)
	}
	defer rows.Close()

	var counts []WinCount
	for rows.Next() {
		var wc WinCount
		if err := rows.Scan(&wc.Player, &wc.Wins); err != nil {
			return nil, fmt.Errorf("scan wins: %w", err)
		}
		counts = append(counts, wc)
	}
	return counts, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Command selfplay pits bots against each other and reports the outcomes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/bluffhouse/coup-server/internal/bot"
	"github.com/bluffhouse/coup-server/internal/game"
	"github.com/bluffhouse/coup-server/internal/random"
	"github.com/bluffhouse/coup-server/internal/tournament"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	games     = flag.Int("games", 100, "number of games to play")
	players   = flag.Int("players", 4, "players per game (2-6)")
	seed      = flag.Int64("seed", 0, "base seed; 0 picks one at random")
	replayDir = flag.String("replays", "", "directory to write replays to")
	verbose   = flag.Bool("v", false, "log every bot decision")
	league    = flag.Int("league", 0, "league entrants; when set, -games rounds are played as a league with rotating seats")
	replayID  = flag.String("replay", "", "walk the saved replay of this game id from -replays instead of playing")
	replayAt  = flag.Int("from", 0, "first replay state to show")
)

// summary aggregates finished games.
type summary struct {
	games int
	turns int
	wins  map[string]int
}

func (s *summary) add(r *game.Result) {
	s.games++
	s.turns += r.Turns
	s.wins[r.Winner]++
}

func main() {
	flag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *replayID != "" {
		if _, err := walkReplay(*replayDir, *replayID, *replayAt, logger); err != nil {
			logger.Fatal("failed to read replay", zap.String("game_id", *replayID), zap.Error(err))
		}
		return
	}

	if *players < game.MinPlayers || *players > game.MaxPlayers {
		logger.Fatal("invalid player count",
			zap.Int("players", *players),
			zap.Int("min", game.MinPlayers),
			zap.Int("max", game.MaxPlayers),
		)
	}

	base, err := random.ResolveSeed(*seed)
	if err != nil {
		logger.Fatal("failed to draw seed", zap.Error(err))
	}
	logger.Info("self-play starting",
		zap.Int("games", *games),
		zap.Int("players", *players),
		zap.Int64("seed", base),
	)

	mgr := game.NewManager(logger)
	if *replayDir != "" {
		mgr.SetReplayRecorder(game.NewReplayRecorder(logger, *replayDir))
	}

	if *league > 0 {
		if err := runLeague(context.Background(), mgr, *league, *players, *games, base, logger); err != nil {
			logger.Fatal("league failed", zap.Error(err))
		}
		return
	}

	names := botNames(*players)

	sum := &summary{wins: make(map[string]int)}
	for i := 0; i < *games; i++ {
		result, err := playGame(mgr, names, base+int64(i), logger)
		if err != nil {
			logger.Error("game failed", zap.Int("game", i), zap.Error(err))
			continue
		}
		sum.add(result)
		logger.Info("game finished",
			zap.String("game_id", result.GameID),
			zap.String("winner", result.Winner),
			zap.Int("turns", result.Turns),
			zap.Strings("elimination_order", result.EliminationOrder),
			zap.Int64("seed", result.Seed),
		)
	}

	report(sum, names, logger)
}

func playGame(mgr *game.Manager, names []string, gameSeed int64, logger *zap.Logger) (*game.Result, error) {
	gameID := uuid.NewString()
	if err := mgr.StartGame(gameID, names, gameSeed); err != nil {
		return nil, err
	}
	defer func() { _ = mgr.EndGame(gameID) }()

	rng := random.NewRand(gameSeed)
	agents := make([]bot.Brain, len(names))
	for i, name := range names {
		personality := bot.RandomPersonality(rng)
		agents[i] = bot.NewAgent(name, personality, rng, logger)
		logger.Debug("bot personality", zap.String("bot", name), zap.Object("personality", personality))
	}

	for {
		d, ok, err := mgr.PendingDecision(gameID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return mgr.Result(gameID)
		}
		view, err := mgr.GetGameView(gameID, d.PlayerIndex)
		if err != nil {
			return nil, err
		}
		if err := mgr.Submit(gameID, d.PlayerIndex, agents[d.PlayerIndex].Decide(view, d)); err != nil {
			return nil, err
		}
	}
}

// walkReplay logs every recorded state of a saved game starting at index
// from and returns how many were shown. Turn numbers never go back in a
// well-formed replay.
func walkReplay(dir, gameID string, from int, logger *zap.Logger) (int, error) {
	replay, err := game.LoadReplayFromFile(dir, gameID)
	if err != nil {
		return 0, err
	}
	logger.Info("replay loaded",
		zap.String("game_id", replay.GameID),
		zap.Int64("seed", replay.Seed),
		zap.Strings("players", replay.Players),
		zap.Int("states", replay.Size()),
	)

	replay.Start()
	if from > 0 {
		replay.Skip(from)
	}
	shown, lastTurn := 0, 0
	for s := replay.Next(); s != nil; s = replay.Next() {
		if s.TurnNumber < lastTurn {
			return shown, fmt.Errorf("replay %s: turn goes back from %d to %d", gameID, lastTurn, s.TurnNumber)
		}
		lastTurn = s.TurnNumber

		sum, err := s.ComputeChecksum()
		if err != nil {
			return shown, err
		}
		coins := make([]int, len(s.Players))
		for i, p := range s.Players {
			coins[i] = p.Coins
		}
		logger.Info("replay state",
			zap.Int("turn", s.TurnNumber),
			zap.Int("current_turn", s.CurrentTurn),
			zap.String("phase", s.Phase),
			zap.Ints("coins", coins),
			zap.Int("pending_player", s.PendingPlayer),
			zap.String("pending", s.PendingKind),
			zap.String("checksum", sum.Hash),
		)
		shown++
	}
	return shown, nil
}

func botNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("Bot-%d", i+1)
	}
	return names
}

// runLeague enters entrants bots with fixed personalities and plays rounds
// games of seats players each.
func runLeague(ctx context.Context, mgr *game.Manager, entrants, seats, rounds int, base int64, logger *zap.Logger) error {
	tm := tournament.NewManager(mgr, logger)
	t := tm.CreateTournament("selfplay", rounds, seats, base)

	rng := random.NewRand(base)
	for _, name := range botNames(entrants) {
		personality := bot.RandomPersonality(rng)
		logger.Info("league entrant", zap.String("bot", name), zap.Object("personality", personality))
		if err := t.AddPlayer(name, bot.NewAgent(name, personality, rng, logger)); err != nil {
			return err
		}
	}

	if err := tm.Run(ctx, t.ID); err != nil {
		return err
	}
	for rank, p := range t.Standings() {
		logger.Info("league standing",
			zap.Int("rank", rank+1),
			zap.String("bot", p.Name),
			zap.Int("points", p.Points),
			zap.Int("wins", p.Wins),
			zap.Int("games", p.Games),
		)
	}
	return nil
}

func report(sum *summary, names []string, logger *zap.Logger) {
	if sum.games == 0 {
		logger.Warn("no games finished")
		return
	}
	sorted := append([]string(nil), names...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sum.wins[sorted[i]] > sum.wins[sorted[j]]
	})

	for _, name := range sorted {
		logger.Info("seat record",
			zap.String("bot", name),
			zap.Int("wins", sum.wins[name]),
			zap.Float64("win_rate", float64(sum.wins[name])/float64(sum.games)),
		)
	}
	logger.Info("self-play finished",
		zap.Int("games", sum.games),
		zap.Float64("avg_turns", float64(sum.turns)/float64(sum.games)),
	)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

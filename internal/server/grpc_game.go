package server

import (
	"context"
	"strconv"
	"time"

	"github.com/bluffhouse/coup-server/internal/game"
	"github.com/bluffhouse/coup-server/internal/repository"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GetView renders the running game for the seat holding token. A missing
// or unknown token gets a spectator view. Request: {table_id, token}.
// Response: {view}.
func (s *CoupService) GetView(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tbl, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	var view *game.GameView
	if name, ok := tbl.Authenticate(stringField(req, "token")); ok {
		view, err = tbl.View(name)
	} else {
		view, err = tbl.Spectate()
	}
	if err != nil {
		return nil, statusFromError(err)
	}
	doc, err := toStruct(view)
	if err != nil {
		return nil, err
	}
	return withField(&structpb.Struct{}, "view", doc), nil
}

// SubmitDecision answers the caller's pending decision. choice is the wire
// value of one option: a string, or a number for targets and discards.
// Request: {table_id, token, choice}. Response: {view}.
func (s *CoupService) SubmitDecision(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tbl, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	name, err := seatFor(tbl, req)
	if err != nil {
		return nil, err
	}
	choice, ok := req.GetFields()["choice"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "choice is required")
	}

	if err := tbl.Submit(ctx, name, choice.AsInterface()); err != nil {
		s.logger.Debug("decision rejected",
			zap.String("table_id", tbl.ID),
			zap.String("player", name),
			zap.Error(err),
		)
		return nil, statusFromError(err)
	}
	return s.GetView(ctx, req)
}

// RecentResults lists persisted games. Request: {limit}. Response:
// {results: [...]}.
func (s *CoupService) RecentResults(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.results == nil {
		return nil, status.Error(codes.Unavailable, "result storage is not configured")
	}
	limit := int(req.GetFields()["limit"].GetNumberValue())
	if limit <= 0 {
		limit = repository.DefaultRecentLimit
	}

	results, err := s.results.RecentResults(ctx, limit)
	if err != nil {
		s.logger.Error("failed to load results", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to load results")
	}

	type resultView struct {
		GameID           string   `json:"game_id"`
		Winner           string   `json:"winner"`
		Players          []string `json:"players"`
		EliminationOrder []string `json:"elimination_order"`
		Turns            int      `json:"turns"`
		Seed             string   `json:"seed"`
		FinishedAt       string   `json:"finished_at"`
		DurationSeconds  float64  `json:"duration_seconds"`
	}
	views := make([]resultView, len(results))
	for i, r := range results {
		views[i] = resultView{
			GameID:           r.GameID,
			Winner:           r.Winner,
			Players:          r.Players,
			EliminationOrder: r.EliminationOrder,
			Turns:            r.Turns,
			Seed:             strconv.FormatInt(r.Seed, 10),
			FinishedAt:       r.FinishedAt.UTC().Format(time.RFC3339),
			DurationSeconds:  r.Duration().Seconds(),
		}
	}
	return toStruct(map[string]any{"results": views})
}

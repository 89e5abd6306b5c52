package server

import (
	"context"

	"github.com/bluffhouse/coup-server/internal/table"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

// CreateTable opens a table and seats the requester as its controller.
// Request: {table_name, name, password}. Response: {name, token, table}.
func (s *CoupService) CreateTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tbl, err := s.tables.CreateTable(stringField(req, "table_name"), "", req.GetFields()["password"].GetStringValue())
	if err != nil {
		return nil, statusFromError(err)
	}
	ticket, err := tbl.Sit(stringField(req, "name"), req.GetFields()["password"].GetStringValue())
	if err != nil {
		_ = s.tables.RemoveTable(tbl.ID)
		return nil, statusFromError(err)
	}

	s.logger.Info("table created over gRPC",
		zap.String("table_id", tbl.ID),
		zap.String("controller", ticket.Name),
		zap.String("host", extractHostFromContext(ctx)),
	)
	return s.seatResponse(ticket, tbl)
}

// JoinTable seats a player. Request: {table_id, name, password}.
// Response: {name, token, table}.
func (s *CoupService) JoinTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tbl, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	ticket, err := tbl.Sit(stringField(req, "name"), req.GetFields()["password"].GetStringValue())
	if err != nil {
		return nil, statusFromError(err)
	}
	return s.seatResponse(ticket, tbl)
}

// StartTable deals the game. Request: {table_id, token}. Response: {table}.
func (s *CoupService) StartTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tbl, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	name, err := seatFor(tbl, req)
	if err != nil {
		return nil, err
	}
	if err := tbl.Start(ctx, name); err != nil {
		return nil, statusFromError(err)
	}
	lobby, err := lobbyStruct(tbl)
	if err != nil {
		return nil, err
	}
	return withField(&structpb.Struct{}, "table", lobby), nil
}

// ListTables returns {tables: [...]}, oldest first.
func (s *CoupService) ListTables(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	snaps := s.tables.ListTables()
	views := make([]LobbyView, len(snaps))
	for i, snap := range snaps {
		views[i] = lobbyView(snap)
	}
	return toStruct(map[string]any{"tables": views, "server_version": s.version})
}

func (s *CoupService) seatResponse(ticket table.Ticket, tbl *table.Table) (*structpb.Struct, error) {
	lobby, err := lobbyStruct(tbl)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":  structpb.NewStringValue(ticket.Name),
		"token": structpb.NewStringValue(ticket.Token),
	}}
	return withField(out, "table", lobby), nil
}

// seatFor resolves the request's seat token. Bot seats never hold one.
func seatFor(tbl *table.Table, req *structpb.Struct) (string, error) {
	token, err := requireField(req, "token")
	if err != nil {
		return "", err
	}
	name, ok := tbl.Authenticate(token)
	if !ok {
		return "", statusFromError(table.ErrNotSeated)
	}
	return name, nil
}

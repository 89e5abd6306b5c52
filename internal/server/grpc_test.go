package server

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/bluffhouse/coup-server/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type stubResults struct {
	results []game.Result
	err     error
}

func (s stubResults) RecentResults(context.Context, int) ([]game.Result, error) {
	return s.results, s.err
}

func newTestClient(t *testing.T, results ResultLister) *CoupClient {
	t.Helper()
	logger := zaptest.NewLogger(t)
	tables, _ := newTestTables(t)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(ChainUnaryInterceptors(
		RecoveryInterceptor(logger),
		LoggingInterceptor(logger),
	)))
	RegisterCoupServer(srv, NewCoupService(tables, results, "test", logger))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewCoupClient(conn)
}

func TestGRPCTableLifecycle(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	created, err := client.Call(ctx, "CreateTable", map[string]any{"name": "alice", "table_name": "grpc"})
	require.NoError(t, err)
	assert.Equal(t, "alice", created.Fields["name"].GetStringValue())
	aliceToken := created.Fields["token"].GetStringValue()
	require.NotEmpty(t, aliceToken)
	tableID := created.Fields["table"].GetStructValue().Fields["id"].GetStringValue()
	require.NotEmpty(t, tableID)

	_, err = client.Call(ctx, "JoinTable", map[string]any{"table_id": "missing", "name": "bob"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	joined, err := client.Call(ctx, "JoinTable", map[string]any{"table_id": tableID, "name": "bob"})
	require.NoError(t, err)
	bobToken := joined.Fields["token"].GetStringValue()
	assert.NotEqual(t, aliceToken, bobToken)

	_, err = client.Call(ctx, "StartTable", map[string]any{"table_id": tableID, "token": bobToken})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = client.Call(ctx, "StartTable", map[string]any{"table_id": tableID, "name": "alice"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err), "a bare name is not enough")

	_, err = client.Call(ctx, "StartTable", map[string]any{"table_id": tableID, "token": "forged"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	started, err := client.Call(ctx, "StartTable", map[string]any{"table_id": tableID, "token": aliceToken})
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", started.Fields["table"].GetStructValue().Fields["state"].GetStringValue())

	_, err = client.Call(ctx, "JoinTable", map[string]any{"table_id": tableID, "name": "carol"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	listed, err := client.Call(ctx, "ListTables", map[string]any{})
	require.NoError(t, err)
	assert.Len(t, listed.Fields["tables"].GetListValue().GetValues(), 1)
}

func TestGRPCViewAndDecision(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	created, err := client.Call(ctx, "CreateTable", map[string]any{"name": "alice"})
	require.NoError(t, err)
	tableID := created.Fields["table"].GetStructValue().Fields["id"].GetStringValue()
	token := created.Fields["token"].GetStringValue()

	_, err = client.Call(ctx, "GetView", map[string]any{"table_id": tableID, "token": token})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.Call(ctx, "StartTable", map[string]any{"table_id": tableID, "token": token})
	require.NoError(t, err)

	resp, err := client.Call(ctx, "GetView", map[string]any{"table_id": tableID, "token": token})
	require.NoError(t, err)
	view := resp.Fields["view"].GetStructValue().Fields
	assert.Equal(t, 0.0, view["viewer_index"].GetNumberValue())
	pending := view["pending_decision"].GetStructValue().Fields
	assert.Equal(t, "pick_action", pending["decision_type"].GetStringValue())

	_, err = client.Call(ctx, "SubmitDecision", map[string]any{"table_id": tableID, "token": token, "choice": "juggle"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Call(ctx, "SubmitDecision", map[string]any{"table_id": tableID, "token": token})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Call(ctx, "SubmitDecision", map[string]any{"table_id": tableID, "name": "alice", "choice": "income"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err), "a bare name is not enough")

	_, err = client.Call(ctx, "SubmitDecision", map[string]any{"table_id": tableID, "token": "forged", "choice": "income"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	resp, err = client.Call(ctx, "SubmitDecision", map[string]any{"table_id": tableID, "token": token, "choice": "income"})
	require.NoError(t, err)
	players := resp.Fields["view"].GetStructValue().Fields["players"].GetListValue().GetValues()
	require.Len(t, players, 4)

	spectator, err := client.Call(ctx, "GetView", map[string]any{"table_id": tableID})
	require.NoError(t, err)
	assert.Equal(t, -1.0, spectator.Fields["view"].GetStructValue().Fields["viewer_index"].GetNumberValue())
}

func TestGRPCViewHidesHandsFromStrangers(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	created, err := client.Call(ctx, "CreateTable", map[string]any{"name": "alice"})
	require.NoError(t, err)
	tableID := created.Fields["table"].GetStructValue().Fields["id"].GetStringValue()
	_, err = client.Call(ctx, "StartTable", map[string]any{"table_id": tableID, "token": created.Fields["token"].GetStringValue()})
	require.NoError(t, err)

	requests := []map[string]any{
		{"table_id": tableID, "name": "alice"},
		{"table_id": tableID, "name": "Bot-Alpha"},
		{"table_id": tableID, "token": "Bot-Alpha"},
		{"table_id": tableID, "token": "not-a-token"},
	}
	for _, req := range requests {
		resp, err := client.Call(ctx, "GetView", req)
		require.NoError(t, err)
		view := resp.Fields["view"].GetStructValue().Fields
		assert.Equal(t, -1.0, view["viewer_index"].GetNumberValue(), "request %v", req)
		for _, p := range view["players"].GetListValue().GetValues() {
			fields := p.GetStructValue().Fields
			assert.Empty(t, fields["influences"].GetListValue().GetValues(),
				"request %v sees the hand of %s", req, fields["name"].GetStringValue())
		}
	}
}

func TestGRPCRecentResults(t *testing.T) {
	_, err := newTestClient(t, nil).Call(context.Background(), "RecentResults", map[string]any{})
	assert.Equal(t, codes.Unavailable, status.Code(err))

	client := newTestClient(t, stubResults{results: []game.Result{{
		GameID:  "g1",
		Winner:  "alice",
		Players: []string{"alice", "bob"},
		Seed:    9007199254740993,
	}}})
	resp, err := client.Call(context.Background(), "RecentResults", map[string]any{"limit": 5})
	require.NoError(t, err)
	results := resp.Fields["results"].GetListValue().GetValues()
	require.Len(t, results, 1)
	first := results[0].GetStructValue().Fields
	assert.Equal(t, "alice", first["winner"].GetStringValue())
	assert.Equal(t, "9007199254740993", first["seed"].GetStringValue())

	failing := newTestClient(t, stubResults{err: errors.New("db down")})
	_, err = failing.Call(context.Background(), "RecentResults", map[string]any{})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/coup.v1.CoupService/GetView"}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestChainUnaryInterceptorsOrder(t *testing.T) {
	var calls []string
	record := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			calls = append(calls, name)
			return handler(ctx, req)
		}
	}
	chain := ChainUnaryInterceptors(record("outer"), record("inner"))
	resp, err := chain(context.Background(), "req", &grpc.UnaryServerInfo{}, func(_ context.Context, req any) (any, error) {
		calls = append(calls, "handler")
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)
	assert.Equal(t, []string{"outer", "inner", "handler"}, calls)
}

func TestStatusFromError(t *testing.T) {
	assert.Equal(t, codes.InvalidArgument, status.Code(statusFromError(game.ErrIllegalChoice)))
	assert.Equal(t, codes.NotFound, status.Code(statusFromError(game.ErrGameNotFound)))
	assert.Equal(t, codes.Internal, status.Code(statusFromError(errors.New("other"))))
	assert.NoError(t, statusFromError(nil))
}

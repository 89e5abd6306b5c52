package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bluffhouse/coup-server/internal/config"
	"github.com/bluffhouse/coup-server/internal/game"
	"github.com/bluffhouse/coup-server/internal/table"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type received struct {
	Type    string          `json:"type"`
	TableID string          `json:"table_id"`
	Data    json.RawMessage `json:"data"`
}

func newTestTables(t *testing.T) (*table.Manager, *game.Manager) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	games := game.NewManager(logger)
	opts := table.DefaultOptions()
	opts.Seed = 11
	return table.NewManager(games, nil, opts, logger), games
}

func startHub(t *testing.T, cfg config.WebSocketConfig) (*httptest.Server, *Hub) {
	t.Helper()
	tables, games := newTestTables(t)
	hub := NewHub(tables, cfg, zaptest.NewLogger(t))
	games.SetNotificationHandler(hub.HandleNotification)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendMsg(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil reads frames until one of type kind satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, kind string, match func(received) bool) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	for {
		var msg received
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == kind && (match == nil || match(msg)) {
			return msg
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := startHub(t, config.WebSocketConfig{})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 0.0, body["tables"])
}

func TestOriginAllowlist(t *testing.T) {
	srv, _ := startHub(t, config.WebSocketConfig{AllowedOrigins: []string{"https://coup.example"}})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://coup.example"}})
	require.NoError(t, err)
	conn.Close()
}

func TestLobbyFlow(t *testing.T) {
	srv, _ := startHub(t, config.WebSocketConfig{})
	alice := dial(t, srv)
	bob := dial(t, srv)

	sendMsg(t, alice, map[string]any{"type": MsgCreateTable, "name": "alice", "table_name": "friday"})
	msg := readUntil(t, alice, MsgLobbyState, nil)
	var lobby LobbyView
	require.NoError(t, json.Unmarshal(msg.Data, &lobby))
	assert.Equal(t, "alice", lobby.Controller)
	assert.Equal(t, "WAITING", lobby.State)

	sendMsg(t, bob, map[string]any{"type": MsgLobbyJoin, "table_id": lobby.ID, "name": "alice"})
	errMsg := readUntil(t, bob, MsgError, nil)
	assert.Contains(t, string(errMsg.Data), "name already taken")

	sendMsg(t, bob, map[string]any{"type": MsgLobbyJoin, "table_id": lobby.ID, "name": "bob"})
	readUntil(t, alice, MsgLobbyState, func(m received) bool {
		return strings.Contains(string(m.Data), `"bob"`)
	})

	sendMsg(t, bob, map[string]any{"type": MsgStart})
	errMsg = readUntil(t, bob, MsgError, nil)
	assert.Contains(t, string(errMsg.Data), "controller")

	sendMsg(t, bob, map[string]any{"type": MsgListTables})
	tables := readUntil(t, bob, MsgTables, nil)
	assert.Contains(t, string(tables.Data), "friday")
}

func TestOneSeatPerConnection(t *testing.T) {
	srv, hub := startHub(t, config.WebSocketConfig{})
	alice := dial(t, srv)

	sendMsg(t, alice, map[string]any{"type": MsgCreateTable, "name": "alice", "table_name": "first"})
	var first LobbyView
	require.NoError(t, json.Unmarshal(readUntil(t, alice, MsgLobbyState, nil).Data, &first))

	sendMsg(t, alice, map[string]any{"type": MsgCreateTable, "name": "alice", "table_name": "second"})
	errMsg := readUntil(t, alice, MsgError, nil)
	assert.Contains(t, string(errMsg.Data), "already seated")

	sendMsg(t, alice, map[string]any{"type": MsgLobbyJoin, "table_id": first.ID, "name": "alice2"})
	errMsg = readUntil(t, alice, MsgError, nil)
	assert.Contains(t, string(errMsg.Data), "already seated")

	tables := hub.tables.ListTables()
	require.Len(t, tables, 1, "the rejected create_table must not open a table")
	assert.Equal(t, []string{"alice"}, tables[0].PlayerNames())

	sendMsg(t, alice, map[string]any{"type": MsgLeave})
	sendMsg(t, alice, map[string]any{"type": MsgCreateTable, "name": "alice", "table_name": "second"})
	readUntil(t, alice, MsgLobbyState, func(m received) bool {
		return strings.Contains(string(m.Data), `"second"`)
	})
	tables = hub.tables.ListTables()
	require.Len(t, tables, 1, "the emptied first table is removed")
	assert.Equal(t, "second", tables[0].Name)

	require.NoError(t, alice.Close())
	assert.Eventually(t, func() bool {
		return len(hub.tables.ListTables()) == 0
	}, 5*time.Second, 10*time.Millisecond, "disconnecting leaves no stale seat behind")
}

func TestUnknownAndOutOfOrderMessages(t *testing.T) {
	srv, _ := startHub(t, config.WebSocketConfig{})
	conn := dial(t, srv)

	sendMsg(t, conn, map[string]any{"type": "dance"})
	msg := readUntil(t, conn, MsgError, nil)
	assert.Contains(t, string(msg.Data), "unknown message type")

	sendMsg(t, conn, map[string]any{"type": MsgDecision, "data": "income"})
	msg = readUntil(t, conn, MsgError, nil)
	assert.Contains(t, string(msg.Data), "join a table first")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg = readUntil(t, conn, MsgError, nil)
	assert.Contains(t, string(msg.Data), "malformed")
}

func TestPlayAgainstBotsOverWebSocket(t *testing.T) {
	srv, _ := startHub(t, config.WebSocketConfig{SendBuffer: 4096})
	conn := dial(t, srv)

	sendMsg(t, conn, map[string]any{"type": MsgCreateTable, "name": "alice"})
	readUntil(t, conn, MsgLobbyState, nil)

	sendMsg(t, conn, map[string]any{"type": MsgDecision, "data": "income"})
	msg := readUntil(t, conn, MsgError, nil)
	assert.Contains(t, string(msg.Data), "not started")

	sendMsg(t, conn, map[string]any{"type": MsgStart})

	for i := 0; ; i++ {
		require.Less(t, i, 20000, "game did not finish")
		msg := readUntil(t, conn, MsgState, nil)

		var view game.GameView
		require.NoError(t, json.Unmarshal(msg.Data, &view))
		assert.Equal(t, 0, view.ViewerIndex)
		for idx, p := range view.Players {
			if idx != 0 {
				assert.Empty(t, p.Influences, "opponent hands are hidden")
			}
		}
		if view.GameOver {
			require.NotNil(t, view.Winner)
			return
		}
		if pd := view.PendingDecision; pd != nil && pd.PlayerIndex == 0 {
			sendMsg(t, conn, map[string]any{"type": MsgDecision, "data": pd.Options[0]})
		}
	}
}

func TestBotTurnsArriveAsEvents(t *testing.T) {
	srv, _ := startHub(t, config.WebSocketConfig{SendBuffer: 4096})
	conn := dial(t, srv)

	sendMsg(t, conn, map[string]any{"type": MsgCreateTable, "name": "alice"})
	readUntil(t, conn, MsgLobbyState, nil)
	sendMsg(t, conn, map[string]any{"type": MsgStart})
	readUntil(t, conn, MsgState, func(m received) bool {
		var view game.GameView
		require.NoError(t, json.Unmarshal(m.Data, &view))
		return view.PendingDecision != nil && view.PendingDecision.PlayerIndex == 0
	})

	sendMsg(t, conn, map[string]any{"type": MsgDecision, "data": "income"})
	msg := readUntil(t, conn, MsgEvent, func(m received) bool {
		var evt struct {
			Event  string `json:"event"`
			Player int    `json:"player"`
		}
		require.NoError(t, json.Unmarshal(m.Data, &evt))
		return evt.Event == "ACTION_DECLARED" && evt.Player == 1
	})
	assert.NotEmpty(t, msg.TableID)
}

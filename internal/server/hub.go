package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bluffhouse/coup-server/internal/config"
	"github.com/bluffhouse/coup-server/internal/game"
	"github.com/bluffhouse/coup-server/internal/table"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	commandTimeout = 30 * time.Second
)

// Client → server message types.
const (
	MsgListTables  = "list_tables"
	MsgCreateTable = "create_table"
	MsgLobbyJoin   = "lobby_join"
	MsgStart       = "start"
	MsgDecision    = "decision"
	MsgLeave       = "leave"
)

// Server → client message types.
const (
	MsgTables     = "tables"
	MsgLobbyState = "lobby_state"
	MsgState      = "state"
	MsgEvent      = "event"
	MsgError      = "error"
)

// WSMessage is the envelope for every websocket frame. Data carries the
// decision value on the way in and the payload on the way out.
type WSMessage struct {
	Type      string          `json:"type"`
	TableID   string          `json:"table_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	TableName string          `json:"table_name,omitempty"`
	Password  string          `json:"password,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type outMessage struct {
	Type    string `json:"type"`
	TableID string `json:"table_id,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// SeatView is a seat in a lobby_state message.
type SeatView struct {
	Name string `json:"name"`
	Bot  bool   `json:"bot"`
}

// LobbyView is the payload of lobby_state and tables messages.
type LobbyView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Controller  string     `json:"controller"`
	State       string     `json:"state"`
	Seats       []SeatView `json:"seats"`
	HasPassword bool       `json:"has_password"`
	Winner      string     `json:"winner,omitempty"`
}

func lobbyView(s table.Snapshot) LobbyView {
	seats := make([]SeatView, len(s.Seats))
	for i, seat := range s.Seats {
		seats[i] = SeatView{Name: seat.Name, Bot: seat.Bot}
	}
	return LobbyView{
		ID:          s.ID,
		Name:        s.Name,
		Controller:  s.Controller,
		State:       s.State.String(),
		Seats:       seats,
		HasPassword: s.HasPassword,
		Winner:      s.Winner,
	}
}

// Client is one websocket connection. tableID and name are guarded by the
// hub mutex.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	tableID string
	name    string
}

// Hub connects websocket clients to tables.
type Hub struct {
	tables     *table.Manager
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	upgrader   websocket.Upgrader
	allowAll   bool
	origins    map[string]bool
	sendBuffer int
	logger     *zap.Logger
}

// NewHub creates a hub. An empty origin list, or one containing "*", accepts
// every origin.
func NewHub(tables *table.Manager, cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		tables:     tables,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		allowAll:   len(cfg.AllowedOrigins) == 0,
		origins:    make(map[string]bool, len(cfg.AllowedOrigins)),
		sendBuffer: cfg.SendBuffer,
		logger:     logger,
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			h.allowAll = true
		}
		h.origins[origin] = true
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = 32
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || h.allowAll || h.origins[origin]
}

// Run processes registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("client_id", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			tableID, name := client.tableID, client.name
			if ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			if !ok {
				continue
			}
			h.logger.Debug("client unregistered", zap.String("client_id", client.id))
			if tableID != "" {
				go h.leaveTable(tableID, name)
			}
		}
	}
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler serves /ws and /health.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/health", h.serveHealth)
	return mux
}

func (h *Hub) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"tables":  h.tables.ActiveTableCount(),
		"clients": h.ClientCount(),
	})
}

// ServeWS upgrades the request and starts the client pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(c, "", "malformed message")
			continue
		}
		h.handleMessage(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) handleMessage(c *Client, msg WSMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	h.logger.Debug("websocket message",
		zap.String("client_id", c.id),
		zap.String("type", msg.Type),
		zap.String("table_id", msg.TableID),
	)

	switch msg.Type {
	case MsgListTables:
		tables := h.tables.ListTables()
		views := make([]LobbyView, len(tables))
		for i, s := range tables {
			views[i] = lobbyView(s)
		}
		h.send(c, outMessage{Type: MsgTables, Data: views})

	case MsgCreateTable:
		if !h.unseated(c) {
			return
		}
		tbl, err := h.tables.CreateTable(msg.TableName, "", msg.Password)
		if err != nil {
			h.sendError(c, "", err.Error())
			return
		}
		h.join(c, tbl, msg.Name, msg.Password)

	case MsgLobbyJoin:
		if !h.unseated(c) {
			return
		}
		tbl, err := h.tables.GetTable(msg.TableID)
		if err != nil {
			h.sendError(c, msg.TableID, err.Error())
			return
		}
		h.join(c, tbl, msg.Name, msg.Password)

	case MsgStart:
		tbl, name, ok := h.seated(c)
		if !ok {
			return
		}
		if err := tbl.Start(ctx, name); err != nil {
			h.sendError(c, tbl.ID, err.Error())
			return
		}
		h.broadcastLobby(tbl)
		h.broadcastState(tbl)

	case MsgDecision:
		tbl, name, ok := h.seated(c)
		if !ok {
			return
		}
		if len(msg.Data) == 0 {
			h.sendError(c, tbl.ID, "decision requires data")
			return
		}
		if err := tbl.Submit(ctx, name, msg.Data); err != nil {
			h.sendError(c, tbl.ID, err.Error())
			return
		}
		h.broadcastState(tbl)

	case MsgLeave:
		tbl, name, ok := h.seated(c)
		if !ok {
			return
		}
		h.mu.Lock()
		c.tableID, c.name = "", ""
		h.mu.Unlock()
		h.leaveTable(tbl.ID, name)

	default:
		h.sendError(c, msg.TableID, "unknown message type "+msg.Type)
	}
}

// unseated reports whether c is free to sit down. A connection holds at most
// one seat; it has to leave before taking another.
func (h *Hub) unseated(c *Client) bool {
	h.mu.RLock()
	tableID := c.tableID
	h.mu.RUnlock()

	if tableID != "" {
		h.sendError(c, tableID, "already seated at a table; leave it first")
		return false
	}
	return true
}

func (h *Hub) join(c *Client, tbl *table.Table, name, password string) {
	name, err := tbl.Join(name, password)
	if err != nil {
		h.sendError(c, tbl.ID, err.Error())
		return
	}
	h.mu.Lock()
	c.tableID, c.name = tbl.ID, name
	h.mu.Unlock()
	h.broadcastLobby(tbl)
}

func (h *Hub) seated(c *Client) (*table.Table, string, bool) {
	h.mu.RLock()
	tableID, name := c.tableID, c.name
	h.mu.RUnlock()

	if tableID == "" {
		h.sendError(c, "", "join a table first")
		return nil, "", false
	}
	tbl, err := h.tables.GetTable(tableID)
	if err != nil {
		h.sendError(c, tableID, err.Error())
		return nil, "", false
	}
	return tbl, name, true
}

func (h *Hub) leaveTable(tableID, name string) {
	tbl, err := h.tables.GetTable(tableID)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := tbl.Leave(ctx, name); err != nil && !errors.Is(err, table.ErrNotSeated) {
		h.logger.Warn("failed to leave table",
			zap.String("table_id", tableID),
			zap.String("player", name),
			zap.Error(err),
		)
	}
	snap := tbl.Snapshot()
	h.broadcastLobby(tbl)
	if snap.GameID != "" {
		h.broadcastState(tbl)
	}
	if snap.State == table.StateWaiting && len(snap.Seats) == 0 {
		_ = h.tables.RemoveTable(tableID)
	}
}

// HandleNotification forwards game manager notifications to the clients of
// the table hosting the game.
func (h *Hub) HandleNotification(n game.GameNotification) {
	tbl, ok := h.tables.FindByGame(n.GameID)
	if !ok {
		return
	}
	switch n.Type {
	case game.NotificationGameEvent:
		h.broadcast(tbl.ID, outMessage{Type: MsgEvent, TableID: tbl.ID, Data: n.Data})
	case game.NotificationStateChanged, game.NotificationGameOver:
		h.broadcastState(tbl)
	}
}

func (h *Hub) broadcastLobby(tbl *table.Table) {
	h.broadcast(tbl.ID, outMessage{Type: MsgLobbyState, TableID: tbl.ID, Data: lobbyView(tbl.Snapshot())})
}

// broadcastState sends every client at tbl its own redacted view.
func (h *Hub) broadcastState(tbl *table.Table) {
	for _, c := range h.clientsAt(tbl.ID) {
		h.mu.RLock()
		name := c.name
		h.mu.RUnlock()

		view, err := tbl.View(name)
		if err != nil {
			continue
		}
		h.send(c, outMessage{Type: MsgState, TableID: tbl.ID, Data: view})
	}
}

func (h *Hub) broadcast(tableID string, msg outMessage) {
	for _, c := range h.clientsAt(tableID) {
		h.send(c, msg)
	}
}

func (h *Hub) clientsAt(tableID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Client
	for c := range h.clients {
		if c.tableID == tableID {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) sendError(c *Client, tableID, message string) {
	h.send(c, outMessage{Type: MsgError, TableID: tableID, Data: map[string]string{"message": message}})
}

// send queues msg for c, dropping it when the client is gone or too slow.
func (h *Hub) send(c *Client, msg outMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode websocket message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- payload:
	default:
		h.logger.Warn("dropping message for slow client",
			zap.String("client_id", c.id),
			zap.String("type", msg.Type),
		)
	}
}

// StartWebSocketServer serves the hub on cfg.Address until ctx is done.
func StartWebSocketServer(ctx context.Context, cfg config.WebSocketConfig, hub *Hub, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           hub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting WebSocket server", zap.String("address", cfg.Address))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

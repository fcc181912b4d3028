package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"wowserver/internal/config"
	"wowserver/internal/logger"
	"wowserver/internal/metrics"
	"wowserver/internal/models"
	"wowserver/internal/services/sessions"
	"wowserver/internal/services/throttle"
	msgtypes "wowserver/internal/types"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait     = 10 * time.Second
	opTimeout     = 15 * time.Second
	sweepInterval = time.Minute
	limiterIdle   = 30 * time.Minute
)

// Store is the data-access layer the hub executes operations against.
type Store interface {
	CreateAccount(ctx context.Context, name, password string, isAdmin bool) error
	Login(ctx context.Context, name, password string) (models.PlayerData, bool, error)
	AccountCharacters(ctx context.Context, account string) ([]models.Character, error)
	AllCharacters(ctx context.Context) ([]models.Character, error)
	AddCharacter(ctx context.Context, account string, c models.Character) error
	UpdateCharacters(ctx context.Context, pd models.PlayerData) error
	UpdateCharacterLevels(ctx context.Context, chars []models.Character) error
	DeleteCharacter(ctx context.Context, account, name string) error
}

type Hub struct {
	clients   map[string]*Client
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader

	// heartbeats
	hbInterval   time.Duration
	maxHBNoReply time.Duration

	store    Store
	sessions *sessions.Manager
	limiter  *throttle.Limiter
	ops      map[msgtypes.Op]operation
}

func NewHub(cfg *config.Config, store Store, sm *sessions.Manager) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		hbInterval:   cfg.HeartbeatInterval,
		maxHBNoReply: cfg.HeartbeatTimeout,
		store:        store,
		sessions:     sm,
		limiter:      throttle.New(cfg.LoginRate, cfg.LoginBurst),
	}
	if h.hbInterval <= 0 {
		h.hbInterval = 30 * time.Second
	}
	if h.maxHBNoReply <= 0 {
		h.maxHBNoReply = 3 * time.Minute
	}
	h.ops = h.operations()
	return h
}

// Run sweeps idle login limiters until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := h.limiter.Sweep(limiterIdle); n > 0 {
				logger.Connection().WithField("peers", n).Debug("login limiters swept")
			}
		}
	}
}

func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Connection().WithError(err).WithField("remote", r.RemoteAddr).Warn("websocket upgrade failed")
		return
	}

	c := newClient(h.newClientID(), peerHost(r.RemoteAddr), conn)
	h.clientsMu.Lock()
	h.clients[c.ID] = c
	total := len(h.clients)
	h.clientsMu.Unlock()
	metrics.SetConnections(total)
	logger.Connection().WithFields(logrus.Fields{"client_id": c.ID, "remote": r.RemoteAddr, "total": total}).Info("connected")

	ack := msgtypes.ConnectionAck{Code: 200, Message: "OK", Type: msgtypes.MsgTypeConnectionAck, ClientID: c.ID}
	if err := c.SafeWrite(mustJSON(ack)); err != nil {
		h.disconnect(c)
		return
	}

	go h.writer(c)
	go h.reader(c)
	go h.heartbeatSender(c)
}

func (h *Hub) newClientID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return id[:8] + "-" + id[8:12]
}

func peerHost(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}

func (h *Hub) reader(c *Client) {
	defer h.disconnect(c)
	c.Conn.SetReadLimit(1 << 20)
	for {
		mt, data, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		h.handleMessage(c, data)
	}
}

func (h *Hub) writer(c *Client) {
	defer h.disconnect(c)
	for {
		select {
		case <-c.Done():
			return
		case msg := <-c.Send:
			if err := c.SafeWrite(msg); err != nil {
				return
			}
		}
	}
}

func (h *Hub) disconnect(c *Client) {
	if !c.close() {
		return
	}

	h.clientsMu.Lock()
	delete(h.clients, c.ID)
	total := len(h.clients)
	h.clientsMu.Unlock()

	h.sessions.RemoveClient(c.ID)
	metrics.SetConnections(total)
	metrics.SetSessions(h.sessions.Count())
	logger.Connection().WithFields(logrus.Fields{"client_id": c.ID, "total": total}).Info("disconnected")
}

func (h *Hub) heartbeatSender(c *Client) {
	t := time.NewTicker(h.hbInterval)
	defer t.Stop()
	for {
		select {
		case <-c.Done():
			return
		case <-t.C:
		}
		hb := msgtypes.Heartbeat{Type: msgtypes.MsgTypeHeartbeat, ClientID: c.ID}
		select {
		case c.Send <- mustJSON(hb):
		default:
		}
		if c.sinceHeartbeat() > h.maxHBNoReply {
			logger.Connection().WithField("client_id", c.ID).Warn("heartbeat timeout; closing")
			h.disconnect(c)
			return
		}
	}
}

func (h *Hub) handleMessage(c *Client, data []byte) {
	var base struct {
		Type msgtypes.MsgType `json:"type"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		logger.Connection().WithError(err).WithField("client_id", c.ID).Warn("undecodable message")
		return
	}
	switch base.Type {
	case msgtypes.MsgTypeHeartbeatResponse:
		c.touch()
	case msgtypes.MsgTypeRequest:
		var req msgtypes.Request
		if err := json.Unmarshal(data, &req); err != nil {
			h.reply(c, msgtypes.Response{Type: msgtypes.MsgTypeResponse, Code: msgtypes.CodeInvalidArgument, Error: "malformed request"})
			return
		}
		h.reply(c, h.handleRequest(c, req))
	default:
		logger.Connection().WithFields(logrus.Fields{"client_id": c.ID, "type": base.Type}).Debug("ignored message")
	}
}

// reply queues v for the client, waiting while the connection is alive.
func (h *Hub) reply(c *Client, v any) {
	select {
	case c.Send <- mustJSON(v):
	case <-c.Done():
	}
}

// ClientCount is the number of open connections.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Close drops every connection.
func (h *Hub) Close() {
	h.clientsMu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	h.clientsMu.RUnlock()
	for _, c := range all {
		h.disconnect(c)
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Connection().WithError(err).Error("marshal outbound message")
		return []byte(`{}`)
	}
	return b
}

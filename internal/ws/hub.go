// Package ws pushes live evaluation results to dashboard clients over
// websocket. Clients subscribe to accounts or groups; slow consumers are
// dropped rather than allowed to back-pressure the evaluation path.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/propgate/propgate/internal/model"
	"github.com/propgate/propgate/internal/pkg/logger"
)

const (
	PingPeriod     = 15 * time.Second
	WriteWait      = 10 * time.Second
	SendBufferSize = 64
)

// Message types pushed to clients.
const (
	MsgAccountState = "account_state_update"
	MsgGroupRisk    = "group_risk_update"
)

type Envelope struct {
	Type      string      `json:"type"`
	AccountID string      `json:"account_id,omitempty"`
	GroupID   string      `json:"group_id,omitempty"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	// empty filter set means "everything"
	accounts map[string]struct{}
	groups   map[string]struct{}
}

func (c *client) wants(env *Envelope) bool {
	if len(c.accounts) == 0 && len(c.groups) == 0 {
		return true
	}
	if env.AccountID != "" {
		_, ok := c.accounts[env.AccountID]
		return ok
	}
	if env.GroupID != "" {
		_, ok := c.groups[env.GroupID]
		return ok
	}
	return false
}

// Hub 管理所有 websocket 客户端并广播评估结果。
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle upgrades an HTTP request to a websocket subscription. Query params
// "accounts" and "groups" are comma-free repeatable filters.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:     conn,
		send:     make(chan []byte, SendBufferSize),
		accounts: toSet(r.URL.Query()["accounts"]),
		groups:   toSet(r.URL.Query()["groups"]),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	logger.Info("websocket client connected", "remote", conn.RemoteAddr().String())

	go h.writeLoop(c)
	go h.readLoop(c)
}

// BroadcastAccountState implements service.Broadcaster.
func (h *Hub) BroadcastAccountState(accountID string, result *model.RuleEvaluationResult) {
	h.broadcast(&Envelope{
		Type:      MsgAccountState,
		AccountID: accountID,
		Payload:   result,
		Timestamp: time.Now().UTC(),
	})
}

// BroadcastGroupRisk implements service.Broadcaster.
func (h *Hub) BroadcastGroupRisk(eval *model.GroupRiskEvaluation) {
	h.broadcast(&Envelope{
		Type:      MsgGroupRisk,
		GroupID:   eval.GroupID,
		Payload:   eval,
		Timestamp: time.Now().UTC(),
	})
}

func (h *Hub) broadcast(env *Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(env) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// Slow client: close it, the read loop handles removal.
			go c.conn.Close()
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.send)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ClientCount 当前连接数，仅用于状态接口。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

package websocket

import (
	"encoding/json"
	"sync"
)

// BalanceUpdate is the frame pushed to watchers of an account. Cause is the
// entry type that moved the balance ("snapshot" for the frame sent on connect).
type BalanceUpdate struct {
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
	Currency  string `json:"currency"`
	Cause     string `json:"cause"`
	CauseID   string `json:"causeId,omitempty"`
}

const CauseSnapshot = "snapshot"

// Hub fans committed balance changes out to clients watching an account.
type Hub struct {
	mu      sync.RWMutex
	closed  bool
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

// Register reports false once the hub is closed; the caller must then drop the client.
func (h *Hub) Register(accountID string, client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	watchers := h.clients[accountID]
	if watchers == nil {
		watchers = make(map[*Client]struct{})
		h.clients[accountID] = watchers
	}
	watchers[client] = struct{}{}
	return true
}

func (h *Hub) Unregister(accountID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	watchers, ok := h.clients[accountID]
	if !ok {
		return
	}
	delete(watchers, client)
	if len(watchers) == 0 {
		delete(h.clients, accountID)
	}
}

// BroadcastBalance never blocks; slow clients miss updates.
func (h *Hub) BroadcastBalance(update BalanceUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[update.AccountID] {
		client.offer(payload)
	}
}

// Close ends every stream with a close frame. http.Server.Shutdown does not
// track hijacked connections, so the server calls this on the way out.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for accountID, watchers := range h.clients {
		for client := range watchers {
			close(client.send)
		}
		delete(h.clients, accountID)
	}
}

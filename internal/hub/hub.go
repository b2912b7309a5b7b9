package hub

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"eva/internal/logging"
	"eva/internal/protocol"
	"eva/internal/session"
)

// Hub upgrades websocket clients, groups them by meeting, and fans lane
// events back out. It implements session.Broadcaster.
type Hub struct {
	logger   *slog.Logger
	manager  *session.Manager
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]map[*client]struct{}
	closed  bool
}

// New builds the hub and registers it as the manager's broadcaster.
func New(manager *session.Manager, logger *slog.Logger) *Hub {
	h := &Hub{
		logger:  logging.NewComponentLogger(logger, "hub"),
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from arbitrary origins; auth happens
			// at the network boundary, not per origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]map[*client]struct{}),
	}
	manager.SetBroadcaster(h)
	return h
}

// ServeHTTP handles GET /ws/eva?meetingId=<id>.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	meetingID := r.URL.Query().Get("meetingId")
	if meetingID == "" {
		http.Error(w, "meetingId query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}

	meeting := h.manager.Attach(meetingID)
	if meeting == nil {
		_ = conn.Close()
		return
	}

	c := newClient(h, conn, meeting)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.manager.Detach(meeting)
		_ = conn.Close()
		return
	}
	set, ok := h.clients[meetingID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[meetingID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("client attached", logging.String(logging.FieldMeetingID, meetingID))

	go c.writePump()
	go c.readPump()

	meeting.SendState(c)
}

// Broadcast delivers one payload to every client attached to the meeting.
// Called serially from the meeting's lane, so every client observes events
// in the same order.
func (h *Hub) Broadcast(meetingID string, payload any) {
	data := protocol.Marshal(payload)
	if data == nil {
		return
	}
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients[meetingID]))
	for c := range h.clients[meetingID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.enqueue(data)
	}
}

// Close detaches every client.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	set, ok := h.clients[c.meeting.ID()]
	if ok {
		if _, present := set[c]; present {
			delete(set, c)
			if len(set) == 0 {
				delete(h.clients, c.meeting.ID())
			}
			h.mu.Unlock()
			h.manager.Detach(c.meeting)
			return
		}
	}
	h.mu.Unlock()
}

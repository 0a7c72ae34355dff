package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"piezo-writer/logger"
	"piezo-writer/pipeline"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WebRequest struct {
	Command string    `json:"command"` // "SET", "STATUS"
	Vector  []float64 `json:"vector,omitempty"`
}

type WebResponse struct {
	Status  string      `json:"status"` // "success", "error", "state"
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// StatusSource is what the handler reports on STATUS
type StatusSource interface {
	Status() pipeline.StatusInfo
}

// client serializes writes; gorilla connections allow one writer at a time
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(status, message string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(WebResponse{Status: status, Message: message, Data: data}); err != nil {
		logger.Debug("WebSocket write failed: %v", err)
	}
}

type Handler struct {
	Feed   *pipeline.Feed
	Source StatusSource

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHandler(feed *pipeline.Feed, source StatusSource) *Handler {
	return &Handler{
		Feed:    feed,
		Source:  source,
		clients: make(map[*client]struct{}),
	}
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}
	c := &client{conn: conn}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		conn.Close()
	}()

	logger.Debug("WebSocket client connected: %s", r.RemoteAddr)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var req WebRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			c.send("error", "Invalid JSON", nil)
			continue
		}

		h.handleRequest(c, req)
	}
}

func (h *Handler) handleRequest(c *client, req WebRequest) {
	switch strings.ToUpper(req.Command) {
	case "SET":
		if err := h.Feed.Set(req.Vector); err != nil {
			c.send("error", err.Error(), nil)
			return
		}
		logger.Debug("Input vector set to %v", req.Vector)
		c.send("success", "Vector accepted", h.Source.Status())
	case "STATUS":
		c.send("success", "Loop status", h.Source.Status())
	default:
		c.send("error", "Unknown Command", nil)
	}
}

// Broadcast pushes a lifecycle change to every connected client. It fits
// pipeline.StateChangeCallback.
func (h *Handler) Broadcast(info pipeline.StatusInfo) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.send("state", info.Message, info)
	}
}

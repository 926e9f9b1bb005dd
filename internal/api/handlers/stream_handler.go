package handlers

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/marketscout/backend/internal/storage/models"
	"github.com/marketscout/backend/pkg/logger"
)

// StreamHandler pushes signal-created events to connected clients.
// Each connection subscribes to a single tenant's stream. It
// implements ingestion.Alerter.
type StreamHandler struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]chan streamEvent
}

type streamEvent struct {
	Type       string  `json:"type"`
	SignalID   string  `json:"signal_id"`
	SignalType string  `json:"signal_type"`
	Source     string  `json:"source"`
	Strength   string  `json:"strength"`
	Confidence float64 `json:"confidence"`
}

func NewStreamHandler() *StreamHandler {
	return &StreamHandler{
		conns: make(map[string]map[*websocket.Conn]chan streamEvent),
	}
}

// SignalCreated fans the event out to every connection subscribed to
// the tenant. Slow consumers are skipped, never waited on.
func (h *StreamHandler) SignalCreated(tenantID string, s *models.Signal) {
	event := streamEvent{
		Type:       "signal_created",
		SignalID:   s.ID,
		SignalType: string(s.Type),
		Source:     s.Source,
		Strength:   string(s.Strength),
		Confidence: s.Confidence,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.conns[tenantID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *StreamHandler) HandleConnection(c *websocket.Conn) {
	tenant, _ := c.Locals("tenant_id").(string)
	if tenant == "" {
		c.WriteJSON(map[string]interface{}{
			"type":  "error",
			"error": "missing tenant id",
		})
		c.Close()
		return
	}

	events := h.subscribe(tenant, c)
	logger.Info("Stream connection established", zap.String("tenant_id", tenant))

	defer func() {
		h.unsubscribe(tenant, c)
		c.Close()
		logger.Info("Stream connection closed", zap.String("tenant_id", tenant))
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-events:
			if err := c.WriteJSON(event); err != nil {
				logger.Error("Failed to write stream event", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}

func (h *StreamHandler) subscribe(tenantID string, c *websocket.Conn) chan streamEvent {
	ch := make(chan streamEvent, 32)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[tenantID] == nil {
		h.conns[tenantID] = make(map[*websocket.Conn]chan streamEvent)
	}
	h.conns[tenantID][c] = ch
	return ch
}

func (h *StreamHandler) unsubscribe(tenantID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns[tenantID], c)
	if len(h.conns[tenantID]) == 0 {
		delete(h.conns, tenantID)
	}
}

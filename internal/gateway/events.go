package gateway

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/clewhq/clew/internal/agent"
)

// wsEvent is the wire shape of one agent event on /ws/events.
type wsEvent struct {
	Type    string      `json:"type"`
	Text    string      `json:"text,omitempty"`
	IsError bool        `json:"is_error,omitempty"`
	Error   string      `json:"error,omitempty"`
	Tool    *wsToolCall `json:"tool_call,omitempty"`
}

type wsToolCall struct {
	Status        string `json:"status"`
	Name          string `json:"name"`
	CallID        string `json:"call_id"`
	ResultDisplay string `json:"result_display,omitempty"`
}

// EventHub fans agent events out to websocket subscribers. Slow
// subscribers drop events rather than stalling the publisher.
type EventHub struct {
	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	closed bool
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan []byte]struct{})}
}

// Publish broadcasts one agent event to every subscriber.
func (h *EventHub) Publish(ev agent.Event) {
	msg := wsEvent{Type: string(ev.Type), Text: ev.Text, IsError: ev.IsError}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	if ev.ToolCall != nil {
		msg.Tool = &wsToolCall{
			Status:        string(ev.ToolCall.Status),
			Name:          ev.ToolCall.Call.Name,
			CallID:        ev.ToolCall.Call.ID,
			ResultDisplay: ev.ToolCall.ResultDisplay,
		}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (h *EventHub) subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

func (h *EventHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *EventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// handleEvents upgrades to a websocket and streams hub events until the
// client disconnects or the hub closes.
func (g *Gateway) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Debug("websocket accept failed", "error", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		// CloseRead keeps control frames flowing and cancels the context
		// when the peer goes away.
		ctx := conn.CloseRead(r.Context())

		ch := g.hub.subscribe()
		defer g.hub.unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
					return
				}
			}
		}
	}
}

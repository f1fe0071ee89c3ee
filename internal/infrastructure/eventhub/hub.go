package eventhub

import (
	"sync"
	"time"

	"github.com/zono819/token-seller/internal/adapter/sink"
	"github.com/zono819/token-seller/internal/domain/entity"
)

// Retained log history bounds: past maxLogLines the oldest trimChunk
// lines are discarded at once.
const (
	maxLogLines = 1000
	trimChunk   = 100
)

// Event is the wire envelope fanned out to subscribers
type Event struct {
	Type   string       `json:"type"`
	Status *StatusEvent `json:"status,omitempty"`
	Log    *LogEvent    `json:"log,omitempty"`
}

// StatusEvent mirrors entity.TaskStatus for display consumers
type StatusEvent struct {
	TaskID        string  `json:"taskId"`
	ExchangeKey   string  `json:"exchangeKey"`
	Symbol        string  `json:"symbol"`
	DisplayPrice  string  `json:"displayPrice"`
	AmountInOrder float64 `json:"amountInOrder"`
	Phase         string  `json:"phase"`
}

// LogEvent carries one timestamp-prefixed log line
type LogEvent struct {
	Line string `json:"line"`
}

// Subscription receives broadcast events over a buffered channel
type Subscription struct {
	ch chan Event
}

// C returns the subscription's event channel
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Hub implements sink.EventSink by broadcasting events to subscribers and
// retaining a bounded log history. Slow subscribers drop events rather
// than block producers.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	history []string

	now func() time.Time
}

// Ensure Hub implements EventSink
var _ sink.EventSink = (*Hub)(nil)

// New creates an event hub
func New() *Hub {
	return &Hub{
		subs: make(map[*Subscription]struct{}),
		now:  time.Now,
	}
}

// Subscribe registers a subscriber with the given channel buffer
func (h *Hub) Subscribe(buffer int) *Subscription {
	sub := &Subscription{ch: make(chan Event, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

// PublishStatus broadcasts a task status update
func (h *Hub) PublishStatus(status entity.TaskStatus) {
	h.broadcast(Event{
		Type: "status",
		Status: &StatusEvent{
			TaskID:        status.TaskID,
			ExchangeKey:   status.ExchangeKey,
			Symbol:        status.Symbol,
			DisplayPrice:  status.DisplayPrice,
			AmountInOrder: status.AmountInOrder.InexactFloat64(),
			Phase:         string(status.Phase),
		},
	})
}

// PublishLog timestamps a log line, records it in the bounded history and
// broadcasts it
func (h *Hub) PublishLog(line string) {
	formatted := "[" + h.now().Format("15:04:05") + "] " + line

	h.mu.Lock()
	h.history = append(h.history, formatted)
	if len(h.history) > maxLogLines {
		h.history = append(h.history[:0:0], h.history[trimChunk:]...)
	}
	h.mu.Unlock()

	h.broadcast(Event{Type: "log", Log: &LogEvent{Line: formatted}})
}

// History returns a copy of the retained log lines
func (h *Hub) History() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.history))
	copy(out, h.history)
	return out
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

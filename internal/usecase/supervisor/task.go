package supervisor

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/zono819/token-seller/internal/adapter/gateway"
	"github.com/zono819/token-seller/internal/domain/entity"
)

// Task is the mutable record of one registered (exchange, symbol) intent.
// The lifecycle loop owns it; external mutation goes through the
// supervisor and is serialized by the record's own mutex.
type Task struct {
	ID          string
	ExchangeKey string
	Symbol      string

	creds gateway.Credentials
	proxy *gateway.Proxy

	mu          sync.Mutex
	targetPrice decimal.Decimal
	openOrderID string
	runState    entity.RunState
	cancel      context.CancelFunc
	done        chan struct{}
}

// TargetPrice returns the current target price
func (t *Task) TargetPrice() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.targetPrice
}

func (t *Task) setTargetPrice(p decimal.Decimal) {
	t.mu.Lock()
	t.targetPrice = p
	t.mu.Unlock()
}

// OpenOrderID returns the resting order id, empty if none is believed open
func (t *Task) OpenOrderID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openOrderID
}

func (t *Task) setOpenOrderID(id string) {
	t.mu.Lock()
	t.openOrderID = id
	t.mu.Unlock()
}

// clearOpenOrderID clears the resting order id only if it still matches
// the observed one, so a concurrent replacement is not lost.
func (t *Task) clearOpenOrderID(observed string) {
	t.mu.Lock()
	if t.openOrderID == observed {
		t.openOrderID = ""
	}
	t.mu.Unlock()
}

// RunState returns whether a loop is currently active for the record
func (t *Task) RunState() entity.RunState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runState
}

func (t *Task) running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runState == entity.RunStateRunning
}

// loopLive reports whether a loop goroutine is still alive for this
// record, including one that was signalled to stop but has not yet
// exited. Resume must wait for it to drain.
func (t *Task) loopLive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.runState == entity.RunStateRunning {
		return true
	}
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Info is a read-only snapshot of a task for listing surfaces
type Info struct {
	ID           string          `json:"id"`
	ExchangeKey  string          `json:"exchangeKey"`
	Symbol       string          `json:"symbol"`
	DisplayPrice string          `json:"displayPrice"`
	OpenOrderID  string          `json:"openOrderId,omitempty"`
	RunState     entity.RunState `json:"runState"`
}

func (t *Task) info() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Info{
		ID:           t.ID,
		ExchangeKey:  t.ExchangeKey,
		Symbol:       t.Symbol,
		DisplayPrice: entity.FormatPrice(t.targetPrice),
		OpenOrderID:  t.openOrderID,
		RunState:     t.runState,
	}
}

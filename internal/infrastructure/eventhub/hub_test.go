package eventhub

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zono819/token-seller/internal/domain/entity"
)

func TestPublishLogBoundsHistory(t *testing.T) {
	h := New()
	h.now = func() time.Time { return time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC) }

	for i := 0; i < maxLogLines+1; i++ {
		h.PublishLog(fmt.Sprintf("line %d", i))
	}

	history := h.History()
	assert.Len(t, history, maxLogLines+1-trimChunk)
	// Oldest chunk dropped, newest line retained.
	assert.Equal(t, "[10:30:00] line 100", history[0])
	assert.Equal(t, fmt.Sprintf("[10:30:00] line %d", maxLogLines), history[len(history)-1])
}

func TestSubscribeReceivesEvents(t *testing.T) {
	h := New()
	sub := h.Subscribe(4)
	defer h.Unsubscribe(sub)

	h.PublishStatus(entity.TaskStatus{
		TaskID:        "t1",
		ExchangeKey:   "binance",
		Symbol:        "PEPE/USDT",
		DisplayPrice:  "0.02",
		AmountInOrder: decimal.NewFromInt(100),
		Phase:         entity.PhaseOrderPlaced,
	})
	h.PublishLog("hello")

	ev := <-sub.C()
	require.Equal(t, "status", ev.Type)
	require.NotNil(t, ev.Status)
	assert.Equal(t, "order_placed", ev.Status.Phase)
	assert.Equal(t, 100.0, ev.Status.AmountInOrder)
	assert.Equal(t, "0.02", ev.Status.DisplayPrice)

	ev = <-sub.C()
	require.Equal(t, "log", ev.Type)
	assert.Contains(t, ev.Log.Line, "hello")
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := New()
	sub := h.Subscribe(1)
	defer h.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.PublishLog("burst")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
}

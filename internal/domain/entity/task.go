package entity

import "github.com/shopspring/decimal"

// RunState represents whether a task's lifecycle loop is active
type RunState string

const (
	RunStateNotStarted RunState = "not_started"
	RunStateRunning    RunState = "running"
	RunStateStopped    RunState = "stopped"
)

// Phase represents what a task's loop observed in its last cycle
type Phase string

const (
	PhaseInitializing      Phase = "initializing"
	PhaseRunning           Phase = "running"
	PhaseOrderPlaced       Phase = "order_placed"
	PhaseOrderPending      Phase = "order_pending"
	PhaseOrderFilled       Phase = "order_filled"
	PhaseNoOrder           Phase = "no_order"
	PhaseInsufficientFunds Phase = "insufficient_funds"
	PhaseOrderCreateFailed Phase = "order_create_failed"
	PhaseReconnecting      Phase = "reconnecting_after_error"
	PhaseCancelled         Phase = "cancelled"
)

// TaskStatus is a transient view of one task, re-derived every poll cycle
// and emitted as an event. It is never persisted.
type TaskStatus struct {
	TaskID        string
	ExchangeKey   string
	Symbol        string
	DisplayPrice  string
	AmountInOrder decimal.Decimal
	Phase         Phase
}

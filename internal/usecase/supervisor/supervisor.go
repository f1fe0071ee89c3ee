package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zono819/token-seller/internal/adapter/gateway"
	"github.com/zono819/token-seller/internal/adapter/sink"
	"github.com/zono819/token-seller/internal/domain/entity"
	"github.com/zono819/token-seller/internal/infrastructure/config"
	"github.com/zono819/token-seller/internal/infrastructure/logger"
	"github.com/zono819/token-seller/internal/observability"
)

// Options for creating a Supervisor.
type Options struct {
	Registry gateway.Registry
	Keystore *config.Keystore
	Sink     sink.EventSink
	Logger   *logger.Logger

	PollInterval    time.Duration
	BackoffInterval time.Duration
	CallTimeout     time.Duration
}

// Supervisor is the registry of all task records and their running loops.
// It is the only component that mutates the shared task map; every
// user-facing operation goes through it.
type Supervisor struct {
	registry gateway.Registry
	keystore *config.Keystore
	sink     sink.EventSink
	log      *logger.Logger

	pollInterval    time.Duration
	backoffInterval time.Duration
	callTimeout     time.Duration

	mu      sync.Mutex
	tasks   map[string]*Task
	markets map[string]map[string]*entity.Market
}

// New creates a Supervisor
func New(opts Options) *Supervisor {
	if opts.Sink == nil {
		opts.Sink = sink.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.BackoffInterval <= 0 {
		opts.BackoffInterval = 10 * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	return &Supervisor{
		registry:        opts.Registry,
		keystore:        opts.Keystore,
		sink:            opts.Sink,
		log:             opts.Logger.WithField("component", "supervisor"),
		pollInterval:    opts.PollInterval,
		backoffInterval: opts.BackoffInterval,
		callTimeout:     opts.CallTimeout,
		tasks:           make(map[string]*Task),
		markets:         make(map[string]map[string]*entity.Market),
	}
}

// LoadMarkets warms the market metadata cache for every exchange that has
// both credentials and a registered driver. Per-exchange failures are
// logged and skipped.
func (s *Supervisor) LoadMarkets(ctx context.Context) {
	for _, exchangeKey := range s.keystore.Exchanges() {
		creds, _ := s.keystore.Credentials(exchangeKey)
		gw, ok := s.registry.New(exchangeKey, creds, s.keystore.Proxy())
		if !ok {
			continue
		}

		markets, err := s.loadExchangeMarkets(ctx, gw)
		if err != nil {
			s.log.Error("load markets for %s: %v", exchangeKey, err)
			s.sink.PublishLog(fmt.Sprintf("failed to load markets for %s: %v", exchangeKey, err))
			continue
		}

		s.mu.Lock()
		s.markets[exchangeKey] = markets
		s.mu.Unlock()
		s.sink.PublishLog(fmt.Sprintf("loaded %d symbols for %s", len(markets), exchangeKey))
	}
}

func (s *Supervisor) loadExchangeMarkets(ctx context.Context, gw gateway.ExchangeGateway) (map[string]*entity.Market, error) {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	defer gw.Close(cctx)
	return gw.LoadMarkets(cctx)
}

// Market returns cached metadata for one symbol, nil when unknown
func (s *Supervisor) Market(exchangeKey, symbol string) *entity.Market {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markets[exchangeKey][symbol]
}

// Create validates and registers a new task and starts its lifecycle loop
func (s *Supervisor) Create(exchangeKey, symbol string, targetPrice decimal.Decimal) (string, error) {
	symbol = entity.NormalizeSymbol(symbol)

	creds, ok := s.keystore.Credentials(exchangeKey)
	if !ok {
		return "", fmt.Errorf("%w for %s", ErrMissingCredentials, exchangeKey)
	}
	if _, ok := s.registry[exchangeKey]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownExchange, exchangeKey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markets[exchangeKey][symbol] == nil {
		return "", fmt.Errorf("%w: %s on %s", ErrUnknownSymbol, symbol, exchangeKey)
	}

	task := &Task{
		ID:          uuid.NewString(),
		ExchangeKey: exchangeKey,
		Symbol:      symbol,
		creds:       creds,
		proxy:       s.keystore.Proxy(),
		targetPrice: targetPrice,
		runState:    entity.RunStateNotStarted,
	}
	s.tasks[task.ID] = task
	s.startLoopLocked(task)

	s.log.Info("task %s created: %s %s @ %s", task.ID, exchangeKey, symbol, entity.FormatPrice(targetPrice))
	return task.ID, nil
}

// Resume starts a fresh lifecycle loop for a stopped task, reusing the
// existing record including any still-open order
func (s *Supervisor) Resume(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if task.loopLive() {
		return ErrAlreadyRunning
	}

	s.startLoopLocked(task)
	s.sink.PublishLog(fmt.Sprintf("task %s resumed", taskID))
	return nil
}

// Cancel signals the task's loop to stop and issues a best-effort cancel
// of any resting order; cancel failures are logged, not surfaced
func (s *Supervisor) Cancel(taskID string) error {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return ErrTaskNotFound
	}

	s.stopLoop(task)
	go s.cancelRestingOrder(task)

	s.sink.PublishLog(fmt.Sprintf("task %s cancelled", taskID))
	return nil
}

// Delete cancels the task and removes the record from the registry
func (s *Supervisor) Delete(taskID string) error {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	if ok {
		delete(s.tasks, taskID)
	}
	s.mu.Unlock()
	if !ok {
		return ErrTaskNotFound
	}

	s.stopLoop(task)
	go s.cancelRestingOrder(task)

	s.sink.PublishLog(fmt.Sprintf("task %s deleted", taskID))
	return nil
}

// AmendPrice updates the target price, visible to the loop's next cycle,
// and replaces the remaining quantity of any resting order at the new
// price. On cancellation failure the old order is left untouched and the
// error is returned.
func (s *Supervisor) AmendPrice(ctx context.Context, taskID string, newPrice decimal.Decimal) error {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return ErrTaskNotFound
	}

	task.setTargetPrice(newPrice)
	s.sink.PublishLog(fmt.Sprintf("task %s price changed to %s", taskID, entity.FormatPrice(newPrice)))

	orderID := task.OpenOrderID()
	if orderID == "" {
		return nil
	}

	if err := s.replaceOrder(ctx, task, orderID, newPrice); err != nil {
		s.log.Error("task %s: replace order at new price: %v", taskID, err)
		s.sink.PublishLog(fmt.Sprintf("[%s] failed to move order %s: %v", task.ExchangeKey, orderID, err))
		return err
	}
	return nil
}

// replaceOrder re-places the unfilled remainder of a resting order at the
// new price on a fresh session. The old order is cancelled first; if that
// fails nothing else is attempted.
func (s *Supervisor) replaceOrder(ctx context.Context, task *Task, orderID string, newPrice decimal.Decimal) error {
	gw, err := s.openSession(ctx, task)
	if err != nil {
		return err
	}
	defer gw.Close(ctx)

	order, err := gw.FetchOrder(ctx, orderID, task.Symbol)
	if err != nil {
		if gateway.IsNotFound(err) {
			// Nothing resting to move; the loop re-derives state next cycle.
			task.clearOpenOrderID(orderID)
			return nil
		}
		// Transient failure: the order may still be resting, keep the id.
		return fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	if !order.Remaining.IsPositive() {
		task.clearOpenOrderID(orderID)
		return nil
	}

	if err := gw.CancelOrder(ctx, orderID, task.Symbol); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	observability.RecordOrderCancelled(task.ExchangeKey)

	replacement, err := gw.CreateLimitSellOrder(ctx, task.Symbol, order.Remaining, newPrice)
	if err != nil {
		// The old order is gone; clear the id so the loop re-places.
		task.clearOpenOrderID(orderID)
		return fmt.Errorf("re-place order: %w", err)
	}

	task.setOpenOrderID(replacement.ID)
	s.sink.PublishLog(fmt.Sprintf("[%s] order %s re-placed as %s at price %s",
		task.ExchangeKey, orderID, replacement.ID, entity.FormatPrice(newPrice)))
	return nil
}

// cancelRestingOrder best-effort cancels the task's resting order on a
// fresh session; openOrderID is cleared only on confirmed cancellation
func (s *Supervisor) cancelRestingOrder(task *Task) {
	orderID := task.OpenOrderID()
	if orderID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()

	gw, err := s.openSession(ctx, task)
	if err != nil {
		s.sink.PublishLog(fmt.Sprintf("[%s] failed to cancel order %s: %v", task.ExchangeKey, orderID, err))
		return
	}
	defer gw.Close(ctx)

	if err := gw.CancelOrder(ctx, orderID, task.Symbol); err != nil && !gateway.IsNotFound(err) {
		s.sink.PublishLog(fmt.Sprintf("[%s] failed to cancel order %s: %v", task.ExchangeKey, orderID, err))
		return
	}

	task.clearOpenOrderID(orderID)
	observability.RecordOrderCancelled(task.ExchangeKey)
	s.sink.PublishLog(fmt.Sprintf("[%s] order %s cancelled", task.ExchangeKey, orderID))
}

func (s *Supervisor) openSession(ctx context.Context, task *Task) (gateway.ExchangeGateway, error) {
	gw, ok := s.registry.New(task.ExchangeKey, task.creds, task.proxy)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, task.ExchangeKey)
	}
	if err := gw.Connect(ctx); err != nil {
		return nil, err
	}
	return gw, nil
}

// Tasks lists snapshots of all registered tasks, ordered by id
func (s *Supervisor) Tasks() []Info {
	s.mu.Lock()
	records := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		records = append(records, t)
	}
	s.mu.Unlock()

	infos := make([]Info, 0, len(records))
	for _, t := range records {
		infos = append(infos, t.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Shutdown stops all running loops and waits for them to exit, bounded by
// the context
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.mu.Lock()
	records := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		records = append(records, t)
	}
	s.mu.Unlock()

	for _, t := range records {
		s.stopLoop(t)
	}
	for _, t := range records {
		t.mu.Lock()
		done := t.done
		t.mu.Unlock()
		if done == nil {
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

// startLoopLocked spawns the task's lifecycle loop; the caller holds s.mu
// and has verified no loop is active for the record
func (s *Supervisor) startLoopLocked(task *Task) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	task.mu.Lock()
	task.runState = entity.RunStateRunning
	task.cancel = cancel
	task.done = done
	task.mu.Unlock()

	loop := &lifecycleLoop{
		task:   task,
		market: s.markets[task.ExchangeKey][task.Symbol],
		newGateway: func() gateway.ExchangeGateway {
			gw, _ := s.registry.New(task.ExchangeKey, task.creds, task.proxy)
			return gw
		},
		sink:            s.sink,
		log:             s.log,
		pollInterval:    s.pollInterval,
		backoffInterval: s.backoffInterval,
		callTimeout:     s.callTimeout,
	}

	go func() {
		defer close(done)
		loop.run(ctx)

		task.mu.Lock()
		if task.runState == entity.RunStateRunning {
			task.runState = entity.RunStateStopped
		}
		task.mu.Unlock()
		s.updateActiveGauge()
	}()

	s.updateActiveGaugeLocked()
}

func (s *Supervisor) stopLoop(task *Task) {
	task.mu.Lock()
	cancel := task.cancel
	if task.runState == entity.RunStateRunning {
		task.runState = entity.RunStateStopped
	}
	task.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Supervisor) updateActiveGauge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateActiveGaugeLocked()
}

func (s *Supervisor) updateActiveGaugeLocked() {
	n := 0
	for _, t := range s.tasks {
		if t.running() {
			n++
		}
	}
	observability.SetActiveTasks(n)
}

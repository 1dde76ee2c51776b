package messaging

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/pkg/logger"
	"github.com/campus-connect/campus-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher routes events from a bus to named handlers. Each handler runs
// through the middleware chain and is retried with backoff; handlers that
// exhaust their attempts land in the dead letter queue.
type Dispatcher struct {
	eventBus    shared.EventSubscriber
	handlers    map[shared.EventType][]HandlerRegistration
	middlewares []Middleware
	retryConfig RetryConfig
	deadLetterQ *DeadLetterQueue
	log         *logger.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	workerPool  chan struct{}
	metrics     *DispatcherMetrics
}

// HandlerRegistration contains handler metadata.
type HandlerRegistration struct {
	Name        string
	Handler     shared.EventHandler
	MaxAttempts int
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	EventBus shared.EventSubscriber

	// WorkerPoolSize bounds concurrent handler executions.
	WorkerPoolSize int

	RetryConfig RetryConfig

	EnableDeadLetterQueue bool
	DeadLetterQueueSize   int

	Logger *logger.Logger
}

// RetryConfig contains retry configuration.
type RetryConfig struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns 3 attempts starting at 100ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// DefaultDispatcherConfig returns defaults for the worker process.
func DefaultDispatcherConfig(eventBus shared.EventSubscriber) DispatcherConfig {
	return DispatcherConfig{
		EventBus:              eventBus,
		WorkerPoolSize:        4,
		RetryConfig:           DefaultRetryConfig(),
		EnableDeadLetterQueue: true,
		DeadLetterQueueSize:   1000,
	}
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 4
	}
	if config.RetryConfig.MaxAttempts <= 0 {
		config.RetryConfig = DefaultRetryConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		eventBus:    config.EventBus,
		handlers:    make(map[shared.EventType][]HandlerRegistration),
		retryConfig: config.RetryConfig,
		log:         config.Logger.With(logger.Component("dispatcher")),
		ctx:         ctx,
		cancel:      cancel,
		workerPool:  make(chan struct{}, config.WorkerPoolSize),
		metrics:     NewDispatcherMetrics(),
	}
	if config.EnableDeadLetterQueue {
		d.deadLetterQ = NewDeadLetterQueue(config.DeadLetterQueueSize)
	}
	return d
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// RegisterHandler registers a handler for an event type.
func (d *Dispatcher) RegisterHandler(eventType shared.EventType, reg HandlerRegistration) error {
	if reg.Handler == nil {
		return errors.New("handler cannot be nil")
	}
	if reg.Name == "" {
		return errors.New("handler name is required")
	}
	if reg.MaxAttempts <= 0 {
		reg.MaxAttempts = d.retryConfig.MaxAttempts
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], reg)
	d.log.Debug("registered handler",
		logger.String("event_type", string(eventType)),
		logger.String("handler", reg.Name),
	)
	return nil
}

// Register registers a handler with the default retry budget.
func (d *Dispatcher) Register(eventType shared.EventType, name string, handler shared.EventHandler) error {
	return d.RegisterHandler(eventType, HandlerRegistration{Name: name, Handler: handler})
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// Use adds middleware. The first added is the outermost.
func (d *Dispatcher) Use(middleware Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, middleware)
}

// RecoveryMiddleware turns a handler panic into an error.
func RecoveryMiddleware(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("handler panic recovered",
						logger.String("event_type", string(event.EventType())),
						logger.Any("panic", r),
						logger.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				}
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs every handler execution.
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)
			fields := []logger.Field{
				logger.String("event_type", string(event.EventType())),
				logger.String("aggregate_id", event.AggregateID()),
				logger.Latency(time.Since(start)),
			}
			if err != nil {
				log.Warn("handler failed", append(fields, logger.Err(err))...)
			} else {
				log.Debug("handler completed", fields...)
			}
			return err
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT DISPATCHING
// ══════════════════════════════════════════════════════════════════════════════

// Start subscribes the dispatcher to every event on the bus.
func (d *Dispatcher) Start() error {
	if d.eventBus == nil {
		return errors.New("dispatcher has no event bus")
	}
	return d.eventBus.SubscribeAll(d.Dispatch)
}

// Dispatch runs every handler registered for the event's type and returns
// the joined errors of those that exhausted their attempts.
func (d *Dispatcher) Dispatch(event shared.Event) error {
	d.mu.RLock()
	handlers := d.handlers[event.EventType()]
	middlewares := d.middlewares
	d.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}
	d.metrics.RecordDispatch(event.EventType())

	var errs []error
	for _, reg := range handlers {
		if err := d.executeHandler(event, reg, middlewares); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) executeHandler(event shared.Event, reg HandlerRegistration, middlewares []Middleware) error {
	select {
	case d.workerPool <- struct{}{}:
		defer func() { <-d.workerPool }()
	case <-d.ctx.Done():
		return d.ctx.Err()
	}

	handler := reg.Handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	attempts := 0
	err := retry.Do(d.ctx, func(context.Context) error {
		attempts++
		start := time.Now()
		err := handler(event)
		d.metrics.RecordExecution(event.EventType(), time.Since(start), err == nil)
		if err != nil && shared.IsValidation(err) {
			return retry.Permanent(err)
		}
		return err
	},
		retry.WithMaxAttempts(reg.MaxAttempts),
		retry.WithDelays(d.retryConfig.InitialBackoff, d.retryConfig.MaxBackoff),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			d.metrics.RecordRetry()
			d.log.Debug("retrying handler",
				logger.String("handler", reg.Name),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", delay),
				logger.Err(err),
			)
		}),
	)
	if err == nil {
		return nil
	}

	if d.deadLetterQ != nil {
		d.deadLetterQ.Add(DeadLetterEntry{
			Event:       event,
			HandlerName: reg.Name,
			Error:       err,
			Attempts:    attempts,
			FailedAt:    time.Now(),
		})
	}
	d.metrics.RecordFailure()
	return fmt.Errorf("handler %s failed after %d attempts: %w", reg.Name, attempts, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Stop cancels pending retries. Handlers already running finish.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.log.Info("dispatcher stopped")
}

// Metrics returns dispatcher metrics.
func (d *Dispatcher) Metrics() *DispatcherMetrics {
	return d.metrics
}

// DeadLetterQueue returns the dead letter queue, nil when disabled.
func (d *Dispatcher) DeadLetterQueue() *DeadLetterQueue {
	return d.deadLetterQ
}

// DefaultDeadLetterWindow is how long a dead letter keeps CheckDeadLetters
// failing.
const DefaultDeadLetterWindow = 15 * time.Minute

// CheckDeadLetters returns a health check that fails while any handler
// exhausted its attempts within window. It passes when the queue is disabled.
func (d *Dispatcher) CheckDeadLetters(window time.Duration) func(ctx context.Context) error {
	if window <= 0 {
		window = DefaultDeadLetterWindow
	}
	return func(context.Context) error {
		if d.deadLetterQ == nil {
			return nil
		}
		cutoff := time.Now().Add(-window)
		var recent []DeadLetterEntry
		for _, e := range d.deadLetterQ.Entries() {
			if e.FailedAt.After(cutoff) {
				recent = append(recent, e)
			}
		}
		if len(recent) == 0 {
			return nil
		}
		last := recent[len(recent)-1]
		return fmt.Errorf("%d dead letters in the last %s (%d queued), latest %s: %v",
			len(recent), window, d.deadLetterQ.Size(), last.HandlerName, last.Error)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry represents a failed event.
type DeadLetterEntry struct {
	Event       shared.Event
	HandlerName string
	Error       error
	Attempts    int
	FailedAt    time.Time
}

// DeadLetterQueue is a bounded FIFO of failed deliveries.
type DeadLetterQueue struct {
	mu      sync.RWMutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a new dead letter queue.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add appends an entry, dropping the oldest at capacity.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns all entries.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	result := make([]DeadLetterEntry, len(q.entries))
	copy(result, q.entries)
	return result
}

// Size returns the current queue size.
func (q *DeadLetterQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER METRICS
// ══════════════════════════════════════════════════════════════════════════════

// DispatcherMetrics tracks dispatcher counters.
type DispatcherMetrics struct {
	mu sync.RWMutex

	DispatchedTotal map[shared.EventType]int64
	ExecutionsTotal int64
	SuccessTotal    int64
	FailuresTotal   int64
	RetriesTotal    int64
	TotalDuration   time.Duration
	LastReset       time.Time
}

// NewDispatcherMetrics creates new dispatcher metrics.
func NewDispatcherMetrics() *DispatcherMetrics {
	return &DispatcherMetrics{
		DispatchedTotal: make(map[shared.EventType]int64),
		LastReset:       time.Now(),
	}
}

// RecordDispatch records an event dispatch.
func (m *DispatcherMetrics) RecordDispatch(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DispatchedTotal[eventType]++
}

// RecordExecution records one handler attempt.
func (m *DispatcherMetrics) RecordExecution(_ shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExecutionsTotal++
	m.TotalDuration += duration
	if success {
		m.SuccessTotal++
	}
}

// RecordRetry records a scheduled retry.
func (m *DispatcherMetrics) RecordRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RetriesTotal++
}

// RecordFailure records a handler that exhausted its attempts.
func (m *DispatcherMetrics) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailuresTotal++
}

// Snapshot returns a point-in-time snapshot.
func (m *DispatcherMetrics) Snapshot() DispatcherMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	avg := time.Duration(0)
	rate := 1.0
	if m.ExecutionsTotal > 0 {
		avg = m.TotalDuration / time.Duration(m.ExecutionsTotal)
		rate = float64(m.SuccessTotal) / float64(m.ExecutionsTotal)
	}
	var dispatched int64
	for _, v := range m.DispatchedTotal {
		dispatched += v
	}
	return DispatcherMetricsSnapshot{
		TotalDispatched: dispatched,
		TotalExecutions: m.ExecutionsTotal,
		TotalFailures:   m.FailuresTotal,
		TotalRetries:    m.RetriesTotal,
		SuccessRate:     rate,
		AverageDuration: avg,
		LastReset:       m.LastReset,
	}
}

// DispatcherMetricsSnapshot is a point-in-time snapshot.
type DispatcherMetricsSnapshot struct {
	TotalDispatched int64         `json:"totalDispatched"`
	TotalExecutions int64         `json:"totalExecutions"`
	TotalFailures   int64         `json:"totalFailures"`
	TotalRetries    int64         `json:"totalRetries"`
	SuccessRate     float64       `json:"successRate"`
	AverageDuration time.Duration `json:"averageDuration"`
	LastReset       time.Time     `json:"lastReset"`
}

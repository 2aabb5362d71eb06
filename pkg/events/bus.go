// Package events is an in-process publish/subscribe bus. Each subscriber gets
// its own delivery of every event on its topic, processed by a worker pool
// with bounded retries.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Topics published by the console.
const (
	TopicRecordSaved   = "record.saved"
	TopicRecordCreated = "record.created"
	TopicRecordDeleted = "record.deleted"
)

// Event is a fact about a school record.
type Event struct {
	ID        string
	Topic     string
	Entity    string
	RecordID  string
	RequestID string
	Payload   interface{}
	Published time.Time
}

// Handler processes one event for one subscriber.
type Handler func(context.Context, Event) error

// Config configures worker pool behaviour.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

type subscription struct {
	name    string
	handler Handler
}

type delivery struct {
	event   Event
	sub     subscription
	attempt int
}

// Bus fans events out to subscribers.
type Bus struct {
	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	subsMu sync.RWMutex
	subs   map[string][]subscription

	deliveries chan delivery
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	started    bool
}

// NewBus builds a bus. Call Start before publishing.
func NewBus(cfg Config) *Bus {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Bus{
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		subs:       make(map[string][]subscription),
		deliveries: make(chan delivery, cfg.BufferSize),
	}
}

// Subscribe registers handler for topic under a name used in logs.
func (b *Bus) Subscribe(topic, name string, handler Handler) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	b.subs[topic] = append(b.subs[topic], subscription{name: name, handler: handler})
}

// Start launches the workers. Safe to call once.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.ctx, b.cancel = context.WithCancel(ctx)
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	b.started = true
	b.logger.Sugar().Infow("event bus started", "workers", b.workers)
}

// Stop cancels workers and waits for them to exit.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.cancel()
	b.mu.Unlock()
	b.wg.Wait()
	b.logger.Sugar().Infow("event bus stopped")
}

// Publish queues one delivery per subscriber of the event's topic.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.mu.Lock()
	busCtx := b.ctx
	started := b.started
	b.mu.Unlock()
	if !started {
		return fmt.Errorf("event bus not started")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Published.IsZero() {
		event.Published = time.Now().UTC()
	}

	b.subsMu.RLock()
	subs := append([]subscription(nil), b.subs[event.Topic]...)
	b.subsMu.RUnlock()

	for _, sub := range subs {
		select {
		case <-busCtx.Done():
			return fmt.Errorf("event bus stopped: %w", busCtx.Err())
		case <-ctx.Done():
			return ctx.Err()
		case b.deliveries <- delivery{event: event, sub: sub}:
		}
	}
	return nil
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case d := <-b.deliveries:
			if err := d.sub.handler(b.ctx, d.event); err != nil {
				b.handleFailure(d, err)
			}
		}
	}
}

func (b *Bus) handleFailure(d delivery, err error) {
	d.attempt++
	fields := []interface{}{"topic", d.event.Topic, "event_id", d.event.ID, "subscriber", d.sub.name, "error", err}
	if d.attempt > b.maxRetries {
		b.logger.Sugar().Errorw("event delivery exceeded retries", fields...)
		return
	}
	b.logger.Sugar().Warnw("event delivery failed, retrying", append(fields, "attempt", d.attempt)...)

	go func(d delivery) {
		timer := time.NewTimer(b.retryDelay)
		defer timer.Stop()
		select {
		case <-b.ctx.Done():
			return
		case <-timer.C:
			select {
			case <-b.ctx.Done():
			case b.deliveries <- d:
			}
		}
	}(d)
}

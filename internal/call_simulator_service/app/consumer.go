package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/callmask/golang_services/internal/masking_service/domain"
	"github.com/nats-io/nats.go"
)

type Subscriber interface {
	SubscribeToSubjectWithQueue(ctx context.Context, subject, queueGroup string, handler func(msg *nats.Msg)) error
}

// ProgressConsumer feeds allocated calls from NATS into the simulator.
// At most maxConcurrent walks run at once; calls beyond that are dropped.
// Once StartConsuming has returned from the subscription, late deliveries
// are dropped as well.
type ProgressConsumer struct {
	subscriber Subscriber
	simulator  *CallSimulator
	logger     *slog.Logger

	slots chan struct{}

	mu       sync.Mutex // guards stopping and wg.Add
	stopping bool
	wg       sync.WaitGroup
}

func NewProgressConsumer(subscriber Subscriber, simulator *CallSimulator, maxConcurrent int, logger *slog.Logger) *ProgressConsumer {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &ProgressConsumer{
		subscriber: subscriber,
		simulator:  simulator,
		logger:     logger,
		slots:      make(chan struct{}, maxConcurrent),
	}
}

// StartConsuming blocks until ctx is cancelled, then waits for running walks.
func (c *ProgressConsumer) StartConsuming(ctx context.Context, subject, queueGroup string) error {
	c.logger.InfoContext(ctx, "Starting call progress subscription", "subject", subject, "queue_group", queueGroup)
	err := c.subscriber.SubscribeToSubjectWithQueue(ctx, subject, queueGroup, func(msg *nats.Msg) {
		c.HandleMessage(ctx, msg.Data)
	})
	c.mu.Lock()
	c.stopping = true
	c.mu.Unlock()
	c.wg.Wait()
	if err != nil {
		c.logger.ErrorContext(ctx, "Call progress subscription failed", "error", err, "subject", subject)
		return err
	}
	c.logger.InfoContext(ctx, "Call progress subscription ended", "subject", subject)
	return nil
}

// HandleMessage decodes one allocated-call event and starts its walk.
func (c *ProgressConsumer) HandleMessage(ctx context.Context, data []byte) {
	var event domain.CallAllocatedEvent
	if err := json.Unmarshal(data, &event); err != nil || event.CallID == "" {
		simulatedCallsCounter.WithLabelValues("invalid").Inc()
		c.logger.ErrorContext(ctx, "Discarding malformed call allocated event", "error", err, "data_len", len(data))
		return
	}

	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		simulatedCallsCounter.WithLabelValues("dropped").Inc()
		c.logger.WarnContext(ctx, "Consumer stopping, dropping call", "call_id", event.CallID)
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	select {
	case c.slots <- struct{}{}:
	default:
		c.wg.Done()
		simulatedCallsCounter.WithLabelValues("dropped").Inc()
		c.logger.WarnContext(ctx, "Simulator saturated, dropping call", "call_id", event.CallID)
		return
	}

	inflightGauge.Inc()
	go func() {
		defer func() {
			inflightGauge.Dec()
			<-c.slots
			c.wg.Done()
		}()
		if _, err := c.simulator.Simulate(ctx, event); err != nil {
			c.logger.InfoContext(ctx, "Simulation stopped", "call_id", event.CallID, "error", err)
		}
	}()
}

// Wait blocks until every started walk has finished.
func (c *ProgressConsumer) Wait() {
	c.wg.Wait()
}

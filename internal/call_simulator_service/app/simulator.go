package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/callmask/golang_services/internal/masking_service/domain"
)

// callWalk is the fixed order of simulated states once a proxy is assigned.
var callWalk = []domain.CallState{domain.CallStateRinging, domain.CallStateAnswered, domain.CallStateHangup}

type StatePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

type SimulatorConfig struct {
	StateSubject string
	MinDelay     time.Duration
	MaxDelay     time.Duration
	FailureRate  float64
	// Rand returns a float in [0,1). Defaults to a locked math/rand source.
	Rand func() float64
	// Sleep waits d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// CallSimulator walks an allocated call through RINGING, ANSWERED and HANGUP
// with random delays. Any step can fail as busy, which ends the walk.
type CallSimulator struct {
	publisher StatePublisher
	config    SimulatorConfig
	logger    *slog.Logger
}

func NewCallSimulator(publisher StatePublisher, cfg SimulatorConfig, logger *slog.Logger) *CallSimulator {
	if cfg.MinDelay < 0 {
		cfg.MinDelay = 0
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	if cfg.Rand == nil {
		var mu sync.Mutex
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		cfg.Rand = func() float64 {
			mu.Lock()
			defer mu.Unlock()
			return rnd.Float64()
		}
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CallSimulator{publisher: publisher, config: cfg, logger: logger.With("component", "call_simulator")}
}

// Simulate runs the walk for one call and returns the states it produced.
// Publish failures are logged and do not stop the walk.
func (s *CallSimulator) Simulate(ctx context.Context, call domain.CallAllocatedEvent) ([]domain.CallProgressEvent, error) {
	var produced []domain.CallProgressEvent
	for _, state := range callWalk {
		if err := s.config.Sleep(ctx, s.delay()); err != nil {
			simulatedCallsCounter.WithLabelValues("cancelled").Inc()
			return produced, err
		}

		ev := domain.CallProgressEvent{
			CallID:      call.CallID,
			ProxyNumber: call.ProxyNumber,
			State:       state,
			Outcome:     domain.OutcomeSuccess,
			OccurredAt:  s.config.Now().UTC(),
		}
		if s.config.Rand() < s.config.FailureRate {
			ev.Outcome = domain.OutcomeFailed
			ev.Reason = "busy"
		}
		produced = append(produced, ev)
		s.publish(ctx, ev)

		if ev.Outcome == domain.OutcomeFailed {
			simulatedCallsCounter.WithLabelValues("failed").Inc()
			return produced, nil
		}
	}
	simulatedCallsCounter.WithLabelValues("completed").Inc()
	return produced, nil
}

func (s *CallSimulator) delay() time.Duration {
	span := s.config.MaxDelay - s.config.MinDelay
	return s.config.MinDelay + time.Duration(s.config.Rand()*float64(span))
}

func (s *CallSimulator) publish(ctx context.Context, ev domain.CallProgressEvent) {
	statesPublishedCounter.WithLabelValues(string(ev.State), string(ev.Outcome)).Inc()
	s.logger.InfoContext(ctx, "Simulated call state", "call_id", ev.CallID, "state", ev.State, "outcome", ev.Outcome)

	if s.publisher == nil || s.config.StateSubject == "" {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal call progress event", "error", err, "call_id", ev.CallID)
		return
	}
	if err := s.publisher.Publish(ctx, s.config.StateSubject, payload); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish call progress event", "error", err, "call_id", ev.CallID, "subject", s.config.StateSubject)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("simulation interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

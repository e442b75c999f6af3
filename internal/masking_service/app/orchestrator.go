package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	authdomain "github.com/callmask/golang_services/internal/auth_service/domain"
	mappingvault "github.com/callmask/golang_services/internal/mapping_vault"
	"github.com/callmask/golang_services/internal/masking_service/domain"
	pooldomain "github.com/callmask/golang_services/internal/proxy_pool_service/domain"
	"github.com/google/uuid"
)

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*authdomain.Claims, error)
}

type ProxyAllocator interface {
	Allocate(ctx context.Context, callID string, m mappingvault.Mapping) (*pooldomain.CallSession, error)
}

// ProgressNotifier delivers call-progress events to the simulator side channel.
type ProgressNotifier interface {
	NotifyAllocated(ctx context.Context, event domain.CallAllocatedEvent) error
}

type OrchestratorConfig struct {
	NotifyTimeout time.Duration
	NewCallID     func() string    // defaults to uuid.NewString
	Now           func() time.Time // defaults to time.Now
}

// Orchestrator turns a validated, authorized mask request into a proxy assignment.
type Orchestrator struct {
	verifier  TokenVerifier
	allocator ProxyAllocator
	notifier  ProgressNotifier
	config    OrchestratorConfig
	logger    *slog.Logger

	inflight sync.WaitGroup
}

func NewOrchestrator(
	verifier TokenVerifier,
	allocator ProxyAllocator,
	notifier ProgressNotifier,
	cfg OrchestratorConfig,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 2 * time.Second
	}
	if cfg.NewCallID == nil {
		cfg.NewCallID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		verifier:  verifier,
		allocator: allocator,
		notifier:  notifier,
		config:    cfg,
		logger:    logger.With("component", "orchestrator"),
	}
}

// MaskCall validates the request shape, then the token, then allocates a proxy
// number. The progress notification is sent in the background and can never
// fail the request.
func (o *Orchestrator) MaskCall(ctx context.Context, token string, req domain.MaskRequest) (*domain.MaskedCall, error) {
	if err := req.Validate(); err != nil {
		maskRequestsCounter.WithLabelValues("invalid").Inc()
		return nil, err
	}

	claims, err := o.verifier.Verify(ctx, token)
	if err != nil {
		maskRequestsCounter.WithLabelValues("unauthorized").Inc()
		return nil, err
	}

	callID := o.config.NewCallID()
	session, err := o.allocator.Allocate(ctx, callID, mappingvault.Mapping{
		CallerReal: req.CallerReal,
		CalleeReal: req.CalleeReal,
	})
	if err != nil {
		if errors.Is(err, pooldomain.ErrPoolExhausted) {
			maskRequestsCounter.WithLabelValues("exhausted").Inc()
			return nil, err
		}
		maskRequestsCounter.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("allocating proxy for call %s: %w", callID, err)
	}

	maskRequestsCounter.WithLabelValues("masked").Inc()
	o.logger.InfoContext(ctx, "Call masked", "call_id", callID, "proxy_number", session.ProxyNumber, "subject", claims.Subject)

	o.notifyAsync(ctx, domain.CallAllocatedEvent{
		CallID:      callID,
		ProxyNumber: session.ProxyNumber,
		Subject:     claims.Subject,
		ExpiresAt:   session.ExpiresAt,
		OccurredAt:  o.config.Now().UTC(),
	})

	return &domain.MaskedCall{
		CallID:      callID,
		ProxyNumber: session.ProxyNumber,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

func (o *Orchestrator) notifyAsync(ctx context.Context, event domain.CallAllocatedEvent) {
	if o.notifier == nil {
		return
	}
	// Detached from the request so the response does not cancel delivery.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.NotifyTimeout)

	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				progressNotificationsCounter.WithLabelValues("failed").Inc()
				o.logger.ErrorContext(notifyCtx, "Progress notifier panicked", "call_id", event.CallID, "panic", r)
			}
		}()

		if err := o.notifier.NotifyAllocated(notifyCtx, event); err != nil {
			progressNotificationsCounter.WithLabelValues("failed").Inc()
			o.logger.WarnContext(notifyCtx, "Progress notification dropped", "call_id", event.CallID, "error", err)
			return
		}
		progressNotificationsCounter.WithLabelValues("sent").Inc()
	}()
}

// Wait blocks until background notifications have finished. Used at shutdown.
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

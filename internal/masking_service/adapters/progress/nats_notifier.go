package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/callmask/golang_services/internal/masking_service/domain"
)

// Publisher is the subset of the NATS client the notifier uses.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NatsNotifier publishes call-progress events on NATS.
type NatsNotifier struct {
	publisher Publisher
	subject   string
	logger    *slog.Logger
}

func NewNatsNotifier(publisher Publisher, subject string, logger *slog.Logger) *NatsNotifier {
	return &NatsNotifier{publisher: publisher, subject: subject, logger: logger}
}

func (n *NatsNotifier) NotifyAllocated(ctx context.Context, event domain.CallAllocatedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal call allocated event: %w", err)
	}
	if err := n.publisher.Publish(ctx, n.subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	n.logger.DebugContext(ctx, "Published call allocated event", "subject", n.subject, "call_id", event.CallID)
	return nil
}

// LogNotifier only logs. Used when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyAllocated(ctx context.Context, event domain.CallAllocatedEvent) error {
	n.logger.InfoContext(ctx, "Call allocated (no broker configured)", "call_id", event.CallID, "proxy_number", event.ProxyNumber)
	return nil
}

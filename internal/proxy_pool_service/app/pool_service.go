package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mappingvault "github.com/callmask/golang_services/internal/mapping_vault"
	"github.com/callmask/golang_services/internal/proxy_pool_service/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// MappingSealer is the part of the mapping vault the pool needs.
type MappingSealer interface {
	Encrypt(m mappingvault.Mapping) (string, error)
	Decrypt(blob string) (mappingvault.Mapping, error)
}

// PoolConfig holds configuration specific to the PoolService.
type PoolConfig struct {
	AssignmentTTL        time.Duration
	MaxAllocateAttempts  int
	MaxSynthesisAttempts int
	Now                  func() time.Time // defaults to time.Now
}

// PoolService owns every state change of the proxy pool.
type PoolService struct {
	repo    domain.ProxyNumberRepository
	sealer  MappingSealer
	numbers NumberSource
	config  PoolConfig
	logger  *slog.Logger
}

func NewPoolService(
	repo domain.ProxyNumberRepository,
	sealer MappingSealer,
	numbers NumberSource,
	cfg PoolConfig,
	logger *slog.Logger,
) *PoolService {
	if cfg.AssignmentTTL <= 0 {
		cfg.AssignmentTTL = 24 * time.Hour
	}
	if cfg.MaxAllocateAttempts <= 0 {
		cfg.MaxAllocateAttempts = 5
	}
	if cfg.MaxSynthesisAttempts <= 0 {
		cfg.MaxSynthesisAttempts = 10
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PoolService{
		repo:    repo,
		sealer:  sealer,
		numbers: numbers,
		config:  cfg,
		logger:  logger.With("component", "proxy_pool"),
	}
}

// Allocate binds a proxy number to callID and stores the sealed mapping with it.
// A random available number is preferred; when none is free a new number is
// synthesized and claimed. ErrPoolExhausted when every bounded attempt fails.
func (s *PoolService) Allocate(ctx context.Context, callID string, m mappingvault.Mapping) (*domain.CallSession, error) {
	timer := prometheus.NewTimer(allocationDurationHist)
	defer timer.ObserveDuration()

	blob, err := s.sealer.Encrypt(m)
	if err != nil {
		allocationsCounter.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("sealing mapping: %w", err)
	}

	now := s.config.Now().UTC()
	a := domain.Assignment{
		CallID:           callID,
		EncryptedMapping: blob,
		AssignedAt:       now,
		ExpiresAt:        now.Add(s.config.AssignmentTTL),
	}

	for attempt := 1; attempt <= s.config.MaxAllocateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			allocationsCounter.WithLabelValues("error").Inc()
			return nil, err
		}

		pn, err := s.repo.ClaimRandomAvailable(ctx, a)
		if err == nil {
			allocationsCounter.WithLabelValues("claimed").Inc()
			s.logger.InfoContext(ctx, "Proxy number allocated", "call_id", callID, "proxy_number", pn.Number, "attempt", attempt)
			return s.session(pn.Number, a), nil
		}
		if !errors.Is(err, domain.ErrNoCandidate) {
			allocationsCounter.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("claiming proxy number: %w", err)
		}

		number, err := s.claimSynthesized(ctx, a)
		switch {
		case err == nil:
			allocationsCounter.WithLabelValues("synthesized").Inc()
			s.logger.InfoContext(ctx, "Synthesized proxy number allocated", "call_id", callID, "proxy_number", number, "attempt", attempt)
			return s.session(number, a), nil
		case errors.Is(err, domain.ErrAlreadyClaimed):
			claimRetriesCounter.Inc()
			s.logger.DebugContext(ctx, "Synthesized number taken by a concurrent allocation, retrying", "call_id", callID, "attempt", attempt)
		case errors.Is(err, domain.ErrPoolExhausted):
			allocationsCounter.WithLabelValues("exhausted").Inc()
			s.logger.WarnContext(ctx, "Proxy pool exhausted", "call_id", callID, "reason", "synthesis_failed")
			return nil, err
		default:
			allocationsCounter.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	allocationsCounter.WithLabelValues("exhausted").Inc()
	s.logger.WarnContext(ctx, "Proxy pool exhausted", "call_id", callID, "attempts", s.config.MaxAllocateAttempts)
	return nil, domain.ErrPoolExhausted
}

// claimSynthesized inserts a fresh unique number and claims it.
func (s *PoolService) claimSynthesized(ctx context.Context, a domain.Assignment) (string, error) {
	number, err := s.synthesize(ctx)
	if err != nil {
		return "", err
	}
	if _, err := s.repo.ClaimNumber(ctx, number, a); err != nil {
		return "", err
	}
	return number, nil
}

// synthesize adds one new available number to the pool. Uniqueness is
// decided by the insert itself, so concurrent synthesizers cannot collide.
func (s *PoolService) synthesize(ctx context.Context) (string, error) {
	for i := 0; i < s.config.MaxSynthesisAttempts; i++ {
		number, err := s.numbers.Next()
		if err != nil {
			return "", err
		}
		inserted, err := s.repo.Insert(ctx, number)
		if err != nil {
			return "", fmt.Errorf("inserting synthesized number: %w", err)
		}
		if inserted {
			return number, nil
		}
	}
	return "", domain.ErrPoolExhausted
}

func (s *PoolService) session(number string, a domain.Assignment) *domain.CallSession {
	return &domain.CallSession{
		CallID:      a.CallID,
		ProxyNumber: number,
		CreatedAt:   a.AssignedAt,
		ExpiresAt:   a.ExpiresAt,
	}
}

// Release returns number to the pool. Releasing an available or unknown number is a no-op.
func (s *PoolService) Release(ctx context.Context, number string) error {
	released, err := s.repo.Release(ctx, number)
	if err != nil {
		return fmt.Errorf("releasing %s: %w", number, err)
	}
	if released {
		releasesCounter.Inc()
		s.logger.InfoContext(ctx, "Proxy number released", "proxy_number", number)
	}
	return nil
}

// Reap releases every assignment that expired at or before now and purges
// its mapping. It returns how many numbers went back to the pool.
func (s *PoolService) Reap(ctx context.Context, now time.Time) (int, error) {
	numbers, err := s.repo.ReapExpired(ctx, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("reaping expired assignments: %w", err)
	}
	if len(numbers) > 0 {
		reapedCounter.Add(float64(len(numbers)))
		s.logger.InfoContext(ctx, "Expired assignments reaped", "count", len(numbers))
	}
	return len(numbers), nil
}

func (s *PoolService) Stats(ctx context.Context) (domain.PoolStats, error) {
	stats, err := s.repo.Counts(ctx)
	if err != nil {
		return domain.PoolStats{}, fmt.Errorf("counting pool: %w", err)
	}
	poolSizeGauge.WithLabelValues("total").Set(float64(stats.Total))
	poolSizeGauge.WithLabelValues("available").Set(float64(stats.Available))
	return stats, nil
}

// Lookup opens the mapping of a live assignment. Expired assignments are
// treated as absent even before the reaper has run.
func (s *PoolService) Lookup(ctx context.Context, number string) (mappingvault.Mapping, *domain.CallSession, error) {
	pn, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, domain.ErrNumberNotFound) {
			return mappingvault.Mapping{}, nil, domain.ErrAssignmentNotFound
		}
		return mappingvault.Mapping{}, nil, fmt.Errorf("loading %s: %w", number, err)
	}
	if pn.Status != domain.StatusAssigned || pn.Assignment == nil || !pn.Assignment.ExpiresAt.After(s.config.Now()) {
		return mappingvault.Mapping{}, nil, domain.ErrAssignmentNotFound
	}

	m, err := s.sealer.Decrypt(pn.Assignment.EncryptedMapping)
	if err != nil {
		s.logger.ErrorContext(ctx, "Stored mapping failed to decrypt", "proxy_number", number, "error", err)
		return mappingvault.Mapping{}, nil, err
	}
	return m, s.session(pn.Number, *pn.Assignment), nil
}

// Seed adds up to n new available numbers and returns how many were inserted.
// Collisions with existing numbers are skipped.
func (s *PoolService) Seed(ctx context.Context, n int) (int, error) {
	inserted := 0
	budget := n * s.config.MaxSynthesisAttempts
	for tries := 0; inserted < n && tries < budget; tries++ {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		number, err := s.numbers.Next()
		if err != nil {
			return inserted, err
		}
		ok, err := s.repo.Insert(ctx, number)
		if err != nil {
			return inserted, fmt.Errorf("seeding %s: %w", number, err)
		}
		if ok {
			inserted++
		}
	}
	s.logger.InfoContext(ctx, "Pool seeded", "requested", n, "inserted", inserted)
	return inserted, nil
}

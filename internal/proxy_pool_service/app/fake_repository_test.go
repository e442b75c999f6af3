package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/callmask/golang_services/internal/proxy_pool_service/domain"
)

// memoryRepository is an in-memory ProxyNumberRepository with the same
// conditional-update semantics as the SQL implementation.
type memoryRepository struct {
	mu   sync.Mutex
	rows map[string]*domain.ProxyNumber
	rnd  *rand.Rand
}

func newMemoryRepository(numbers ...string) *memoryRepository {
	r := &memoryRepository{rows: make(map[string]*domain.ProxyNumber), rnd: rand.New(rand.NewSource(1))}
	for _, n := range numbers {
		r.rows[n] = &domain.ProxyNumber{Number: n, Status: domain.StatusAvailable}
	}
	return r
}

func (r *memoryRepository) ClaimRandomAvailable(_ context.Context, a domain.Assignment) (*domain.ProxyNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var free []*domain.ProxyNumber
	for _, pn := range r.rows {
		if pn.Status == domain.StatusAvailable {
			free = append(free, pn)
		}
	}
	if len(free) == 0 {
		return nil, domain.ErrNoCandidate
	}
	pn := free[r.rnd.Intn(len(free))]
	r.assign(pn, a)
	c := *pn
	return &c, nil
}

func (r *memoryRepository) ClaimNumber(_ context.Context, number string, a domain.Assignment) (*domain.ProxyNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pn, ok := r.rows[number]
	if !ok || pn.Status != domain.StatusAvailable {
		return nil, domain.ErrAlreadyClaimed
	}
	r.assign(pn, a)
	c := *pn
	return &c, nil
}

func (r *memoryRepository) assign(pn *domain.ProxyNumber, a domain.Assignment) {
	cp := a
	pn.Status = domain.StatusAssigned
	pn.Assignment = &cp
}

func (r *memoryRepository) Insert(_ context.Context, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[number]; ok {
		return false, nil
	}
	r.rows[number] = &domain.ProxyNumber{Number: number, Status: domain.StatusAvailable}
	return true, nil
}

func (r *memoryRepository) Release(_ context.Context, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pn, ok := r.rows[number]
	if !ok || pn.Status == domain.StatusAvailable {
		return false, nil
	}
	pn.Status = domain.StatusAvailable
	pn.Assignment = nil
	return true, nil
}

func (r *memoryRepository) ReapExpired(_ context.Context, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var reaped []string
	for _, pn := range r.rows {
		due := pn.Status == domain.StatusAssigned && !pn.Assignment.ExpiresAt.After(now)
		if due || pn.Status == domain.StatusExpired {
			pn.Status = domain.StatusAvailable
			pn.Assignment = nil
			reaped = append(reaped, pn.Number)
		}
	}
	return reaped, nil
}

func (r *memoryRepository) Counts(_ context.Context) (domain.PoolStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := domain.PoolStats{Total: len(r.rows)}
	for _, pn := range r.rows {
		if pn.Status == domain.StatusAvailable {
			stats.Available++
		}
	}
	return stats, nil
}

func (r *memoryRepository) GetByNumber(_ context.Context, number string) (*domain.ProxyNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pn, ok := r.rows[number]
	if !ok {
		return nil, domain.ErrNumberNotFound
	}
	c := *pn
	if pn.Assignment != nil {
		a := *pn.Assignment
		c.Assignment = &a
	}
	return &c, nil
}

// sequenceSource hands out numbers from a fixed list, repeating the last one.
type sequenceSource struct {
	mu      sync.Mutex
	numbers []string
}

func (s *sequenceSource) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.numbers[0]
	if len(s.numbers) > 1 {
		s.numbers = s.numbers[1:]
	}
	return n, nil
}

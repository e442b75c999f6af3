package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/callmask/golang_services/internal/platform/database"
	"github.com/callmask/golang_services/internal/proxy_pool_service/domain"
	"github.com/jackc/pgx/v5"
)

type PgProxyNumberRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgProxyNumberRepository(db database.Querier, logger *slog.Logger) *PgProxyNumberRepository {
	return &PgProxyNumberRepository{db: db, logger: logger}
}

var _ domain.ProxyNumberRepository = (*PgProxyNumberRepository)(nil)

func (r *PgProxyNumberRepository) ClaimRandomAvailable(ctx context.Context, a domain.Assignment) (*domain.ProxyNumber, error) {
	query := `
		WITH candidate AS (
			SELECT id
			FROM proxy_pool
			WHERE status = $1
			ORDER BY random()
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE proxy_pool p
		SET status = $2, assigned_to = $3, call_id = $4, assigned_at = $5, expires_at = $6, updated_at = $5
		FROM candidate c
		WHERE p.id = c.id AND p.status = $1
		RETURNING p.id, p.proxy_number, p.created_at, p.updated_at;
	`
	// $1 = StatusAvailable, $2 = StatusAssigned, $3 = sealed mapping, $4 = call id, $5 = assigned at, $6 = expires at
	pn := &domain.ProxyNumber{Status: domain.StatusAssigned, Assignment: &a}
	err := r.db.QueryRow(ctx, query,
		string(domain.StatusAvailable), string(domain.StatusAssigned),
		a.EncryptedMapping, a.CallID, a.AssignedAt, a.ExpiresAt,
	).Scan(&pn.ID, &pn.Number, &pn.CreatedAt, &pn.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoCandidate
		}
		r.logger.ErrorContext(ctx, "Error claiming random proxy number", "error", err, "call_id", a.CallID)
		return nil, err
	}
	return pn, nil
}

func (r *PgProxyNumberRepository) ClaimNumber(ctx context.Context, number string, a domain.Assignment) (*domain.ProxyNumber, error) {
	query := `
		UPDATE proxy_pool
		SET status = $1, assigned_to = $2, call_id = $3, assigned_at = $4, expires_at = $5, updated_at = $4
		WHERE proxy_number = $6 AND status = $7
	`
	cmdTag, err := r.db.Exec(ctx, query,
		string(domain.StatusAssigned), a.EncryptedMapping, a.CallID, a.AssignedAt, a.ExpiresAt,
		number, string(domain.StatusAvailable),
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error claiming proxy number", "error", err, "proxy_number", number)
		return nil, err
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, domain.ErrAlreadyClaimed
	}
	return &domain.ProxyNumber{
		Number:     number,
		Status:     domain.StatusAssigned,
		Assignment: &a,
		UpdatedAt:  a.AssignedAt,
	}, nil
}

func (r *PgProxyNumberRepository) Insert(ctx context.Context, number string) (bool, error) {
	query := `
		INSERT INTO proxy_pool (proxy_number, status)
		VALUES ($1, $2)
		ON CONFLICT (proxy_number) DO NOTHING
	`
	cmdTag, err := r.db.Exec(ctx, query, number, string(domain.StatusAvailable))
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting proxy number", "error", err, "proxy_number", number)
		return false, err
	}
	return cmdTag.RowsAffected() == 1, nil
}

func (r *PgProxyNumberRepository) Release(ctx context.Context, number string) (bool, error) {
	query := `
		UPDATE proxy_pool
		SET status = $1, assigned_to = NULL, call_id = NULL, assigned_at = NULL, expires_at = NULL, updated_at = NOW()
		WHERE proxy_number = $2 AND status <> $1
	`
	cmdTag, err := r.db.Exec(ctx, query, string(domain.StatusAvailable), number)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error releasing proxy number", "error", err, "proxy_number", number)
		return false, err
	}
	return cmdTag.RowsAffected() > 0, nil
}

func (r *PgProxyNumberRepository) ReapExpired(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		WITH due AS (
			SELECT id
			FROM proxy_pool
			WHERE (status = $1 AND expires_at <= $2) OR status = $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE proxy_pool p
		SET status = $4, assigned_to = NULL, call_id = NULL, assigned_at = NULL, expires_at = NULL, updated_at = $2
		FROM due d
		WHERE p.id = d.id
		RETURNING p.proxy_number;
	`
	// $1 = StatusAssigned, $2 = now, $3 = StatusExpired, $4 = StatusAvailable
	rows, err := r.db.Query(ctx, query,
		string(domain.StatusAssigned), now, string(domain.StatusExpired), string(domain.StatusAvailable),
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error reaping expired assignments", "error", err)
		return nil, err
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scanning reaped number: %w", err)
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return numbers, nil
}

func (r *PgProxyNumberRepository) Counts(ctx context.Context) (domain.PoolStats, error) {
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE status = $1) FROM proxy_pool`
	var stats domain.PoolStats
	if err := r.db.QueryRow(ctx, query, string(domain.StatusAvailable)).Scan(&stats.Total, &stats.Available); err != nil {
		r.logger.ErrorContext(ctx, "Error counting proxy pool", "error", err)
		return domain.PoolStats{}, err
	}
	return stats, nil
}

func (r *PgProxyNumberRepository) GetByNumber(ctx context.Context, number string) (*domain.ProxyNumber, error) {
	query := `
		SELECT id, proxy_number, status, assigned_to, call_id::text, assigned_at, expires_at, created_at, updated_at
		FROM proxy_pool
		WHERE proxy_number = $1
	`
	var (
		pn         domain.ProxyNumber
		status     string
		mapping    *string
		callID     *string
		assignedAt *time.Time
		expiresAt  *time.Time
	)
	err := r.db.QueryRow(ctx, query, number).Scan(
		&pn.ID, &pn.Number, &status, &mapping, &callID, &assignedAt, &expiresAt, &pn.CreatedAt, &pn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNumberNotFound
		}
		return nil, err
	}
	pn.Status = domain.Status(status)
	if pn.Status == domain.StatusAssigned && mapping != nil && callID != nil && assignedAt != nil && expiresAt != nil {
		pn.Assignment = &domain.Assignment{
			CallID:           *callID,
			EncryptedMapping: *mapping,
			AssignedAt:       *assignedAt,
			ExpiresAt:        *expiresAt,
		}
	}
	return &pn, nil
}

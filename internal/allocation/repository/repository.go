package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"yaadmarket_backend/internal/allocation/domain"
)

var (
	ErrNotFound = errors.New("request not found")

	// ErrNotAssignable is returned when the conditional assignment update
	// matched no row: the request was taken, released, or closed between
	// the read and the write.
	ErrNotAssignable = errors.New("request is not assignable")

	// ErrNotReleasable mirrors ErrNotAssignable for the release update.
	ErrNotReleasable = errors.New("request is not releasable")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AllocationRequest is the slice of a service request the allocator needs.
type AllocationRequest struct {
	ID              uuid.UUID
	Parish          string
	Status          string
	AssignedAgentID *uuid.UUID
	AssignedAt      *time.Time
	ReleasedCount   int
	CreatedAt       time.Time
}

// GetRequest loads the allocation view of a single request.
func (r *Repository) GetRequest(ctx context.Context, id uuid.UUID) (AllocationRequest, error) {
	var req AllocationRequest
	err := r.pool.QueryRow(ctx, `
		SELECT id, parish, status, assigned_agent_id, assigned_at, released_count, created_at
		FROM service_requests WHERE id = $1
	`, id).Scan(
		&req.ID, &req.Parish, &req.Status, &req.AssignedAgentID, &req.AssignedAt, &req.ReleasedCount, &req.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return AllocationRequest{}, ErrNotFound
	}
	return req, err
}

// ListCandidates returns every approved agent with the fields the ranking
// engine needs. Payment and expiry checks are left to the engine so the
// eligibility rules live in one place.
func (r *Repository) ListCandidates(ctx context.Context) ([]domain.Agent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, verification_status, payment_status, access_expiry, last_request_assigned_at
		FROM agents
		WHERE verification_status = $1 AND deleted_at IS NULL
	`, domain.VerificationApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := make([]domain.Agent, 0)
	for rows.Next() {
		var a domain.Agent
		if err := rows.Scan(&a.ID, &a.UserID, &a.VerificationStatus, &a.PaymentStatus, &a.AccessExpiry, &a.LastRequestAssignedAt); err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return agents, nil
}

// Assign hands the request to the agent. The update only matches a request
// that is still open and unassigned, so two concurrent assigners cannot both
// win; the loser gets ErrNotAssignable.
func (r *Repository) Assign(ctx context.Context, requestID uuid.UUID, agentID uuid.UUID, now time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE service_requests
		SET status = 'assigned', assigned_agent_id = $2, assigned_at = $3, updated_at = now()
		WHERE id = $1 AND status = 'open' AND assigned_agent_id IS NULL
	`, requestID, agentID, now)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotAssignable
	}
	return nil
}

// TouchAgentAssigned stamps the agent's queue position after a successful
// assignment, sending them to the back of the rotation.
func (r *Repository) TouchAgentAssigned(ctx context.Context, agentID uuid.UUID, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE agents SET last_request_assigned_at = $2, updated_at = now()
		WHERE id = $1
	`, agentID, now)
	return err
}

// Release puts an assigned request back in the pool. Only a request
// currently held by an agent matches; terminal and open requests do not.
func (r *Repository) Release(ctx context.Context, requestID uuid.UUID) (AllocationRequest, error) {
	var req AllocationRequest
	err := r.pool.QueryRow(ctx, `
		UPDATE service_requests
		SET status = 'open', assigned_agent_id = NULL, assigned_at = NULL,
			released_count = released_count + 1, updated_at = now()
		WHERE id = $1 AND status IN ('assigned', 'in_progress')
		RETURNING id, parish, status, assigned_agent_id, assigned_at, released_count, created_at
	`, requestID).Scan(
		&req.ID, &req.Parish, &req.Status, &req.AssignedAgentID, &req.AssignedAt, &req.ReleasedCount, &req.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return AllocationRequest{}, ErrNotReleasable
	}
	return req, err
}

// ListUnassignedOpen returns open requests with no agent, oldest first.
// The scheduler sweep works through these in batches.
func (r *Repository) ListUnassignedOpen(ctx context.Context, limit int) ([]AllocationRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, parish, status, assigned_agent_id, assigned_at, released_count, created_at
		FROM service_requests
		WHERE status = 'open' AND assigned_agent_id IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]AllocationRequest, 0)
	for rows.Next() {
		var req AllocationRequest
		if err := rows.Scan(&req.ID, &req.Parish, &req.Status, &req.AssignedAgentID, &req.AssignedAt, &req.ReleasedCount, &req.CreatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return requests, nil
}

// DashboardStats aggregates the allocation overview for the admin console.
type DashboardStats struct {
	TotalRequests    int
	OpenUnassigned   int
	Assigned         int
	InProgress       int
	Completed        int
	Cancelled        int
	EligibleAgents   int
	TotalReleases    int
	OldestUnassigned *time.Time
	AssignedLast24h  int
}

// GetDashboardStats computes request and agent counts in a single pass each.
func (r *Repository) GetDashboardStats(ctx context.Context, now time.Time) (DashboardStats, error) {
	var stats DashboardStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'open' AND assigned_agent_id IS NULL),
			COUNT(*) FILTER (WHERE status = 'assigned'),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COALESCE(SUM(released_count), 0),
			MIN(created_at) FILTER (WHERE status = 'open' AND assigned_agent_id IS NULL),
			COUNT(*) FILTER (WHERE assigned_at >= $1)
		FROM service_requests
	`, now.Add(-24*time.Hour)).Scan(
		&stats.TotalRequests, &stats.OpenUnassigned, &stats.Assigned, &stats.InProgress,
		&stats.Completed, &stats.Cancelled, &stats.TotalReleases,
		&stats.OldestUnassigned, &stats.AssignedLast24h,
	)
	if err != nil {
		return DashboardStats{}, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM agents
		WHERE verification_status = $1
		  AND payment_status IN ('7-day', '30-day', '90-day')
		  AND (access_expiry IS NULL OR access_expiry >= $2)
		  AND deleted_at IS NULL
	`, domain.VerificationApproved, now).Scan(&stats.EligibleAgents)
	if err != nil {
		return DashboardStats{}, err
	}

	return stats, nil
}

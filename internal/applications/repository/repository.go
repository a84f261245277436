// Package repository provides PostgreSQL persistence for agent request
// applications.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when an application does not exist.
	ErrNotFound = errors.New("application not found")
	// ErrAlreadyApplied is returned when an agent applies twice for the
	// same request.
	ErrAlreadyApplied = errors.New("application already exists for this request")
	// ErrAlreadyReviewed is returned when reviewing a non-pending application.
	ErrAlreadyReviewed = errors.New("application has already been reviewed")
)

// Application represents a row in agent_request_applications.
type Application struct {
	ID         uuid.UUID
	AgentID    uuid.UUID
	RequestID  uuid.UUID
	Status     string
	Message    *string
	AppliedAt  time.Time
	ReviewedAt *time.Time
	ReviewedBy *uuid.UUID
}

// RequestState is the slice of a service request needed to validate an
// application.
type RequestState struct {
	Status          string
	Parish          string
	AssignedAgentID *uuid.UUID
}

// ListParams filters the admin application listing.
type ListParams struct {
	Status   string
	Page     int
	PageSize int
}

// Repository provides data access for applications.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new applications repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const applicationColumns = `id, agent_id, request_id, status, message, applied_at, reviewed_at, reviewed_by`

func scanApplication(row pgx.Row) (Application, error) {
	var a Application
	err := row.Scan(
		&a.ID, &a.AgentID, &a.RequestID, &a.Status, &a.Message,
		&a.AppliedAt, &a.ReviewedAt, &a.ReviewedBy,
	)
	return a, err
}

// Create inserts a pending application.
func (r *Repository) Create(ctx context.Context, agentID, requestID uuid.UUID, message *string) (Application, error) {
	query := `
		INSERT INTO agent_request_applications (id, agent_id, request_id, status, message, applied_at)
		VALUES ($1, $2, $3, 'pending', $4, now())
		RETURNING ` + applicationColumns

	app, err := scanApplication(r.pool.QueryRow(ctx, query, uuid.New(), agentID, requestID, message))
	if err != nil {
		if strings.Contains(err.Error(), "agent_request_applications_agent_id_request_id_key") {
			return Application{}, ErrAlreadyApplied
		}
		return Application{}, fmt.Errorf("create application: %w", err)
	}
	return app, nil
}

// GetByID fetches a single application.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM agent_request_applications WHERE id = $1`

	app, err := scanApplication(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, ErrNotFound
		}
		return Application{}, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

// ListByAgent returns an agent's applications, newest first.
func (r *Repository) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM agent_request_applications
		WHERE agent_id = $1
		ORDER BY applied_at DESC`

	rows, err := r.pool.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("list agent applications: %w", err)
	}
	defer rows.Close()

	return collectApplications(rows)
}

// List returns applications for admin review with optional status filter.
func (r *Repository) List(ctx context.Context, params ListParams) ([]Application, int, error) {
	where := ""
	args := []interface{}{}
	if params.Status != "" {
		where = "WHERE status = $1"
		args = append(args, params.Status)
	}

	countQuery := fmt.Sprintf(`SELECT count(*) FROM agent_request_applications %s`, where)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM agent_request_applications
		%s
		ORDER BY applied_at DESC
		LIMIT $%d OFFSET $%d`,
		applicationColumns, where, len(args)+1, len(args)+2)
	args = append(args, params.PageSize, (params.Page-1)*params.PageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	apps, err := collectApplications(rows)
	if err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

// Review records an admin decision. Only pending applications can be
// reviewed; a second decision returns ErrAlreadyReviewed.
func (r *Repository) Review(ctx context.Context, id uuid.UUID, status string, reviewedBy uuid.UUID, reviewedAt time.Time) (Application, error) {
	query := `
		UPDATE agent_request_applications
		SET status = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + applicationColumns

	app, err := scanApplication(r.pool.QueryRow(ctx, query, id, status, reviewedBy, reviewedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return Application{}, getErr
			}
			return Application{}, ErrAlreadyReviewed
		}
		return Application{}, fmt.Errorf("review application: %w", err)
	}
	return app, nil
}

// GetRequestState looks up the request an application targets.
func (r *Repository) GetRequestState(ctx context.Context, requestID uuid.UUID) (RequestState, error) {
	query := `SELECT status, parish, assigned_agent_id FROM service_requests WHERE id = $1`

	var state RequestState
	err := r.pool.QueryRow(ctx, query, requestID).Scan(&state.Status, &state.Parish, &state.AssignedAgentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RequestState{}, ErrNotFound
		}
		return RequestState{}, fmt.Errorf("get request state: %w", err)
	}
	return state, nil
}

func collectApplications(rows pgx.Rows) ([]Application, error) {
	apps := []Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return apps, nil
}

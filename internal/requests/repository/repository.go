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
	ErrNotFound = errors.New("request not found")

	// ErrInvalidTransition is returned when a conditional status update
	// matched no row because the request moved on in the meantime.
	ErrInvalidTransition = errors.New("request status does not allow this action")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Request struct {
	ID               uuid.UUID
	RequesterName    string
	RequesterPhone   string
	RequesterEmail   *string
	RequestType      string
	Parish           string
	PropertyType     string
	BudgetMin        *int64
	BudgetMax        *int64
	Bedrooms         *int
	Urgency          string
	Description      *string
	Status           string
	AssignedAgentID  *uuid.UUID
	AssignedAt       *time.Time
	IsContacted      bool
	Comment          *string
	CommentUpdatedAt *time.Time
	CompletedAt      *time.Time
	ReleasedCount    int
	RemovedReason    *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const requestColumns = `id, requester_name, requester_phone, requester_email, request_type, parish,
	property_type, budget_min, budget_max, bedrooms, urgency, description, status,
	assigned_agent_id, assigned_at, is_contacted, comment, comment_updated_at, completed_at,
	released_count, removed_reason, created_at, updated_at`

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(
		&req.ID, &req.RequesterName, &req.RequesterPhone, &req.RequesterEmail, &req.RequestType, &req.Parish,
		&req.PropertyType, &req.BudgetMin, &req.BudgetMax, &req.Bedrooms, &req.Urgency, &req.Description, &req.Status,
		&req.AssignedAgentID, &req.AssignedAt, &req.IsContacted, &req.Comment, &req.CommentUpdatedAt, &req.CompletedAt,
		&req.ReleasedCount, &req.RemovedReason, &req.CreatedAt, &req.UpdatedAt,
	)
	return req, err
}

type CreateParams struct {
	RequesterName  string
	RequesterPhone string
	RequesterEmail *string
	RequestType    string
	Parish         string
	PropertyType   string
	BudgetMin      *int64
	BudgetMax      *int64
	Bedrooms       *int
	Urgency        string
	Description    *string
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (Request, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO service_requests (
			requester_name, requester_phone, requester_email, request_type, parish,
			property_type, budget_min, budget_max, bedrooms, urgency, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING %s
	`, requestColumns),
		params.RequesterName, params.RequesterPhone, params.RequesterEmail, params.RequestType, params.Parish,
		params.PropertyType, params.BudgetMin, params.BudgetMax, params.Bedrooms, params.Urgency, params.Description,
	)
	return scanRequest(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Request, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM service_requests WHERE id = $1
	`, requestColumns), id)

	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	return req, err
}

// ToggleContacted flips the contacted flag. Only the holding agent can do
// this, and only while the request is still being worked.
func (r *Repository) ToggleContacted(ctx context.Context, id uuid.UUID, agentID uuid.UUID) (Request, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE service_requests
		SET is_contacted = NOT is_contacted, updated_at = now()
		WHERE id = $1 AND assigned_agent_id = $2 AND status IN ('assigned', 'in_progress')
		RETURNING %s
	`, requestColumns), id, agentID)

	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrInvalidTransition
	}
	return req, err
}

// StartProgress moves a freshly assigned request into in_progress.
func (r *Repository) StartProgress(ctx context.Context, id uuid.UUID, agentID uuid.UUID) (Request, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE service_requests
		SET status = 'in_progress', updated_at = now()
		WHERE id = $1 AND assigned_agent_id = $2 AND status = 'assigned'
		RETURNING %s
	`, requestColumns), id, agentID)

	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrInvalidTransition
	}
	return req, err
}

// Complete closes the request. The holding agent may complete from either
// assigned or in_progress.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, agentID uuid.UUID) (Request, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE service_requests
		SET status = 'completed', completed_at = now(), updated_at = now()
		WHERE id = $1 AND assigned_agent_id = $2 AND status IN ('assigned', 'in_progress')
		RETURNING %s
	`, requestColumns), id, agentID)

	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrInvalidTransition
	}
	return req, err
}

// SetComment stores the holding agent's note, replacing any previous one.
// Like ToggleContacted, it only matches while the request is still being
// worked, so completed or cancelled requests keep their final note.
func (r *Repository) SetComment(ctx context.Context, id uuid.UUID, agentID uuid.UUID, comment string) (Request, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE service_requests
		SET comment = $3, comment_updated_at = now(), updated_at = now()
		WHERE id = $1 AND assigned_agent_id = $2 AND status IN ('assigned', 'in_progress')
		RETURNING %s
	`, requestColumns), id, agentID, comment)

	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrInvalidTransition
	}
	return req, err
}

// Remove cancels a request and pulls it out of circulation. Terminal
// requests do not match.
func (r *Repository) Remove(ctx context.Context, id uuid.UUID, reason *string) (Request, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE service_requests
		SET status = 'cancelled', removed_reason = $2, assigned_agent_id = NULL, updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled')
		RETURNING %s
	`, requestColumns), id, reason)

	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrInvalidTransition
	}
	return req, err
}

type ListParams struct {
	Status    *string
	Parish    *string
	Type      *string
	Search    string
	AgentID   *uuid.UUID
	Offset    int
	Limit     int
	SortBy    string
	SortOrder string
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Request, int, error) {
	whereClauses := []string{"1=1"}
	args := []interface{}{}
	argIdx := 1

	if params.Status != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Parish != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("parish = $%d", argIdx))
		args = append(args, *params.Parish)
		argIdx++
	}
	if params.Type != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("request_type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}
	if params.AgentID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("assigned_agent_id = $%d", argIdx))
		args = append(args, *params.AgentID)
		argIdx++
	}
	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(requester_name ILIKE $%d OR requester_phone ILIKE $%d OR parish ILIKE $%d OR description ILIKE $%d)",
			argIdx, argIdx, argIdx, argIdx,
		))
		args = append(args, pattern)
		argIdx++
	}

	whereClause := strings.Join(whereClauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM service_requests WHERE %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortColumn := mapSortColumn(params.SortBy)
	sortOrder := "DESC"
	if params.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT %s FROM service_requests
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, requestColumns, whereClause, sortColumn, sortOrder, argIdx, argIdx+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	requests := make([]Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, req)
	}

	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return requests, total, nil
}

func mapSortColumn(sortBy string) string {
	switch sortBy {
	case "parish":
		return "parish"
	case "status":
		return "status"
	case "urgency":
		return "urgency"
	case "assignedAt":
		return "assigned_at"
	default:
		return "created_at"
	}
}

// ListParishFeed returns open, not-yet-contacted requests in a parish,
// newest first.
func (r *Repository) ListParishFeed(ctx context.Context, parish string, limit int, offset int) ([]Request, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM service_requests
		WHERE parish = $1 AND status = 'open' AND assigned_agent_id IS NULL AND is_contacted = FALSE
	`, parish).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM service_requests
		WHERE parish = $1 AND status = 'open' AND assigned_agent_id IS NULL AND is_contacted = FALSE
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, requestColumns), parish, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	requests := make([]Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, req)
	}

	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return requests, total, nil
}

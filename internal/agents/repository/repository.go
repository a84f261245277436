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
	ErrNotFound = errors.New("agent not found")

	// ErrAlreadyRegistered is returned when the user already has an agent profile.
	ErrAlreadyRegistered = errors.New("agent profile already exists for this user")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Agent struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	FullName              string
	Phone                 string
	Parish                string
	LicenseNumber         *string
	Bio                   *string
	VerificationStatus    string
	VerificationDocKey    *string
	VerificationNotes     *string
	VerifiedBy            *uuid.UUID
	VerifiedAt            *time.Time
	PaymentStatus         string
	AccessExpiry          *time.Time
	PaymentProofKey       *string
	LastRequestAssignedAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

const agentColumns = `id, user_id, full_name, phone, parish, license_number, bio,
	verification_status, verification_doc_key, verification_notes, verified_by, verified_at,
	payment_status, access_expiry, payment_proof_key, last_request_assigned_at,
	created_at, updated_at`

func scanAgent(row pgx.Row) (Agent, error) {
	var a Agent
	err := row.Scan(
		&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Parish, &a.LicenseNumber, &a.Bio,
		&a.VerificationStatus, &a.VerificationDocKey, &a.VerificationNotes, &a.VerifiedBy, &a.VerifiedAt,
		&a.PaymentStatus, &a.AccessExpiry, &a.PaymentProofKey, &a.LastRequestAssignedAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

type CreateParams struct {
	UserID        uuid.UUID
	FullName      string
	Phone         string
	Parish        string
	LicenseNumber *string
	Bio           *string
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (Agent, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO agents (user_id, full_name, phone, parish, license_number, bio)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s
	`, agentColumns),
		params.UserID, params.FullName, params.Phone, params.Parish, params.LicenseNumber, params.Bio,
	)

	agent, err := scanAgent(row)
	if err != nil && strings.Contains(err.Error(), "agents_user_id_key") {
		return Agent{}, ErrAlreadyRegistered
	}
	return agent, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Agent, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM agents WHERE id = $1 AND deleted_at IS NULL
	`, agentColumns), id)

	agent, err := scanAgent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return agent, err
}

func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (Agent, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM agents WHERE user_id = $1 AND deleted_at IS NULL
	`, agentColumns), userID)

	agent, err := scanAgent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return agent, err
}

// SetVerificationDoc stores the uploaded document key and resets the agent
// to pending review.
func (r *Repository) SetVerificationDoc(ctx context.Context, id uuid.UUID, fileKey string) (Agent, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE agents
		SET verification_doc_key = $2, verification_status = 'pending', updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING %s
	`, agentColumns), id, fileKey)

	agent, err := scanAgent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return agent, err
}

// ReviewVerification records an admin's approve/reject decision.
func (r *Repository) ReviewVerification(ctx context.Context, id uuid.UUID, status string, notes *string, reviewedBy uuid.UUID) (Agent, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE agents
		SET verification_status = $2, verification_notes = $3, verified_by = $4, verified_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING %s
	`, agentColumns), id, status, notes, reviewedBy)

	agent, err := scanAgent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return agent, err
}

// SetPaymentProof stores an agent's uploaded transfer proof key.
func (r *Repository) SetPaymentProof(ctx context.Context, id uuid.UUID, fileKey string) (Agent, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE agents
		SET payment_proof_key = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING %s
	`, agentColumns), id, fileKey)

	agent, err := scanAgent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return agent, err
}

// RecordPayment grants a tier and its access window.
func (r *Repository) RecordPayment(ctx context.Context, id uuid.UUID, tier string, accessExpiry *time.Time) (Agent, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE agents
		SET payment_status = $2, access_expiry = $3, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING %s
	`, agentColumns), id, tier, accessExpiry)

	agent, err := scanAgent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return agent, err
}

type ListParams struct {
	VerificationStatus *string
	PaymentStatus      *string
	Parish             *string
	Search             string
	Offset             int
	Limit              int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Agent, int, error) {
	whereClauses := []string{"deleted_at IS NULL"}
	args := []interface{}{}
	argIdx := 1

	if params.VerificationStatus != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("verification_status = $%d", argIdx))
		args = append(args, *params.VerificationStatus)
		argIdx++
	}
	if params.PaymentStatus != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("payment_status = $%d", argIdx))
		args = append(args, *params.PaymentStatus)
		argIdx++
	}
	if params.Parish != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("parish = $%d", argIdx))
		args = append(args, *params.Parish)
		argIdx++
	}
	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(full_name ILIKE $%d OR phone ILIKE $%d OR license_number ILIKE $%d)",
			argIdx, argIdx, argIdx,
		))
		args = append(args, pattern)
		argIdx++
	}

	whereClause := strings.Join(whereClauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM agents WHERE %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT %s FROM agents
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, agentColumns, whereClause, argIdx, argIdx+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	agents := make([]Agent, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, 0, err
		}
		agents = append(agents, agent)
	}

	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return agents, total, nil
}

// Delete soft-deletes an agent, removing them from every candidate query.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE agents SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

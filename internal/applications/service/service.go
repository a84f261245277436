// Package service implements the application workflow: agents volunteer for
// open parish requests and admins approve or reject those applications.
// Approval hands the request to the applicant through the allocation engine
// so the usual assignment guards and fairness stamping still apply.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	allocdomain "yaadmarket_backend/internal/allocation/domain"
	alloctransport "yaadmarket_backend/internal/allocation/transport"
	"yaadmarket_backend/internal/applications/repository"
	"yaadmarket_backend/internal/applications/transport"
	"yaadmarket_backend/internal/events"
	reqdomain "yaadmarket_backend/internal/requests/domain"
	"yaadmarket_backend/platform/apperr"
	"yaadmarket_backend/platform/logger"
)

// Store is the persistence surface for applications.
type Store interface {
	Create(ctx context.Context, agentID, requestID uuid.UUID, message *string) (repository.Application, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Application, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]repository.Application, error)
	List(ctx context.Context, params repository.ListParams) ([]repository.Application, int, error)
	Review(ctx context.Context, id uuid.UUID, status string, reviewedBy uuid.UUID, reviewedAt time.Time) (repository.Application, error)
	GetRequestState(ctx context.Context, requestID uuid.UUID) (repository.RequestState, error)
}

// Assigner is the slice of the allocation engine approvals need.
type Assigner interface {
	ManualAssign(ctx context.Context, requestID uuid.UUID, agentID uuid.UUID) (alloctransport.AssignmentResponse, error)
}

// AgentDirectory resolves agents either from the acting user or by agent ID.
type AgentDirectory interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (allocdomain.Agent, error)
	GetAgent(ctx context.Context, agentID uuid.UUID) (allocdomain.Agent, error)
}

var _ Store = (*repository.Repository)(nil)

// Application statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Service provides business logic for request applications.
type Service struct {
	repo     Store
	assigner Assigner
	agents   AgentDirectory
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time
}

// New creates a new applications service.
func New(repo Store, assigner Assigner, agents AgentDirectory, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, assigner: assigner, agents: agents, bus: bus, log: log, now: time.Now}
}

// Apply submits an application for an open request on behalf of the acting
// user's agent profile.
func (s *Service) Apply(ctx context.Context, userID uuid.UUID, requestID uuid.UUID, req transport.ApplyRequest) (transport.ApplicationResponse, error) {
	agent, err := s.resolveAgent(ctx, userID)
	if err != nil {
		return transport.ApplicationResponse{}, err
	}
	if !allocdomain.Eligible(agent, s.now().UTC()) {
		return transport.ApplicationResponse{}, apperr.Forbidden("active paid access required to apply for requests")
	}

	state, err := s.repo.GetRequestState(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ApplicationResponse{}, apperr.NotFound("request not found")
		}
		return transport.ApplicationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load request", err)
	}
	if state.Status != reqdomain.StatusOpen {
		return transport.ApplicationResponse{}, apperr.Conflict("request is not open for applications")
	}

	app, err := s.repo.Create(ctx, agent.ID, requestID, req.Message)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyApplied) {
			return transport.ApplicationResponse{}, apperr.Conflict("you have already applied for this request")
		}
		return transport.ApplicationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create application", err)
	}

	s.bus.Publish(ctx, events.ApplicationSubmitted{
		BaseEvent:     events.NewBaseEvent(),
		ApplicationID: app.ID,
		AgentID:       agent.ID,
		RequestID:     requestID,
	})

	return toResponse(app), nil
}

// ListMine returns the acting agent's applications.
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]transport.ApplicationResponse, error) {
	agent, err := s.resolveAgent(ctx, userID)
	if err != nil {
		return nil, err
	}

	apps, err := s.repo.ListByAgent(ctx, agent.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list applications", err)
	}

	out := make([]transport.ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, toResponse(app))
	}
	return out, nil
}

// List returns applications for admin review.
func (s *Service) List(ctx context.Context, req transport.ListApplicationsRequest) (transport.ApplicationListResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)

	apps, total, err := s.repo.List(ctx, repository.ListParams{
		Status:   req.Status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return transport.ApplicationListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list applications", err)
	}

	items := make([]transport.ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		items = append(items, toResponse(app))
	}
	return transport.ApplicationListResponse{
		Applications: items,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
	}, nil
}

// Review records an admin decision. Approval attempts to assign the request
// to the applicant; an assignment that cannot land (request taken in the
// meantime, agent's access lapsed) does not undo the recorded decision and
// is reported in the response instead.
func (s *Service) Review(ctx context.Context, id uuid.UUID, adminID uuid.UUID, req transport.ReviewApplicationRequest) (transport.ReviewApplicationResponse, error) {
	app, err := s.repo.Review(ctx, id, req.Status, adminID, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return transport.ReviewApplicationResponse{}, apperr.NotFound("application not found")
		case errors.Is(err, repository.ErrAlreadyReviewed):
			return transport.ReviewApplicationResponse{}, apperr.Conflict("application has already been reviewed")
		default:
			return transport.ReviewApplicationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to review application", err)
		}
	}

	result := transport.ReviewApplicationResponse{Application: toResponse(app)}

	if req.Status == StatusApproved {
		assignment, assignErr := s.assigner.ManualAssign(ctx, app.RequestID, app.AgentID)
		switch {
		case assignErr != nil:
			s.log.Warn("approved application could not be assigned",
				"applicationId", app.ID, "requestId", app.RequestID, "error", assignErr)
			result.Reason = "approval recorded but assignment failed"
		case !assignment.Assigned:
			result.Reason = assignment.Reason
		default:
			result.Assigned = true
		}
	}

	var agentUserID uuid.UUID
	if agent, dirErr := s.agents.GetAgent(ctx, app.AgentID); dirErr == nil {
		agentUserID = agent.UserID
	} else {
		s.log.Warn("agent lookup failed for application event",
			"applicationId", app.ID, "agentId", app.AgentID, "error", dirErr)
	}
	s.bus.Publish(ctx, events.ApplicationReviewed{
		BaseEvent:     events.NewBaseEvent(),
		ApplicationID: app.ID,
		AgentID:       app.AgentID,
		AgentUserID:   agentUserID,
		RequestID:     app.RequestID,
		NewStatus:     app.Status,
	})

	return result, nil
}

func (s *Service) resolveAgent(ctx context.Context, userID uuid.UUID) (allocdomain.Agent, error) {
	agent, err := s.agents.GetByUserID(ctx, userID)
	if err != nil {
		return allocdomain.Agent{}, apperr.Forbidden("agent profile required")
	}
	return agent, nil
}

func toResponse(app repository.Application) transport.ApplicationResponse {
	return transport.ApplicationResponse{
		ID:         app.ID,
		AgentID:    app.AgentID,
		RequestID:  app.RequestID,
		Status:     app.Status,
		Message:    app.Message,
		AppliedAt:  app.AppliedAt,
		ReviewedAt: app.ReviewedAt,
		ReviewedBy: app.ReviewedBy,
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

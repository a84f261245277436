// Package service implements the service request lifecycle: public intake,
// the agent marketplace feed, agent actions, and admin management.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	allocdomain "yaadmarket_backend/internal/allocation/domain"
	alloctransport "yaadmarket_backend/internal/allocation/transport"
	"yaadmarket_backend/internal/events"
	"yaadmarket_backend/internal/requests/repository"
	"yaadmarket_backend/internal/requests/transport"
	"yaadmarket_backend/platform/apperr"
	"yaadmarket_backend/platform/logger"
	"yaadmarket_backend/platform/phone"
)

// Store is the persistence surface for service requests.
type Store interface {
	Create(ctx context.Context, params repository.CreateParams) (repository.Request, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Request, error)
	List(ctx context.Context, params repository.ListParams) ([]repository.Request, int, error)
	ListParishFeed(ctx context.Context, parish string, limit int, offset int) ([]repository.Request, int, error)
	ToggleContacted(ctx context.Context, id uuid.UUID, agentID uuid.UUID) (repository.Request, error)
	StartProgress(ctx context.Context, id uuid.UUID, agentID uuid.UUID) (repository.Request, error)
	Complete(ctx context.Context, id uuid.UUID, agentID uuid.UUID) (repository.Request, error)
	SetComment(ctx context.Context, id uuid.UUID, agentID uuid.UUID, comment string) (repository.Request, error)
	Remove(ctx context.Context, id uuid.UUID, reason *string) (repository.Request, error)
}

// Allocator is the slice of the allocation engine the request lifecycle
// needs: assignment on intake and release back into circulation.
type Allocator interface {
	AutoAssign(ctx context.Context, requestID uuid.UUID) (alloctransport.AssignmentResponse, error)
	Release(ctx context.Context, requestID uuid.UUID, releasedBy *uuid.UUID) (alloctransport.ReleaseResponse, error)
}

// AgentDirectory resolves the acting user to their agent profile.
type AgentDirectory interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (allocdomain.Agent, error)
}

var _ Store = (*repository.Repository)(nil)

// Service provides business logic for service requests.
type Service struct {
	repo      Store
	allocator Allocator
	agents    AgentDirectory
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

// New creates a new requests service.
func New(repo Store, allocator Allocator, agents AgentDirectory, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, allocator: allocator, agents: agents, bus: bus, log: log, now: time.Now}
}

// Create takes a public intake submission, stores it, and immediately tries
// to hand it to the next agent in the rotation. Allocation failure never
// fails intake; the request stays open for the sweep.
func (s *Service) Create(ctx context.Context, req transport.CreateRequestRequest) (transport.CreateRequestResponse, error) {
	normalized, err := phone.NormalizeE164(req.RequesterPhone)
	if err != nil {
		return transport.CreateRequestResponse{}, apperr.Validation("invalid phone number")
	}

	if req.BudgetMin != nil && req.BudgetMax != nil && *req.BudgetMin > *req.BudgetMax {
		return transport.CreateRequestResponse{}, apperr.Validation("budgetMin cannot exceed budgetMax")
	}

	urgency := req.Urgency
	if urgency == "" {
		urgency = "normal"
	}

	created, err := s.repo.Create(ctx, repository.CreateParams{
		RequesterName:  req.RequesterName,
		RequesterPhone: normalized,
		RequesterEmail: req.RequesterEmail,
		RequestType:    req.RequestType,
		Parish:         req.Parish,
		PropertyType:   req.PropertyType,
		BudgetMin:      req.BudgetMin,
		BudgetMax:      req.BudgetMax,
		Bedrooms:       req.Bedrooms,
		Urgency:        urgency,
		Description:    req.Description,
	})
	if err != nil {
		return transport.CreateRequestResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create request", err)
	}

	s.log.Info("service request created", "request_id", created.ID, "parish", created.Parish, "type", created.RequestType)

	s.bus.Publish(ctx, events.RequestCreated{
		BaseEvent:   events.NewBaseEvent(),
		RequestID:   created.ID,
		RequestType: created.RequestType,
		Parish:      created.Parish,
		Urgency:     created.Urgency,
	})

	assignment, err := s.allocator.AutoAssign(ctx, created.ID)
	if err != nil {
		s.log.Warn("auto-assign on intake failed", "request_id", created.ID, "error", err)
	}

	// Reload so the response reflects the assignment outcome.
	current, err := s.repo.GetByID(ctx, created.ID)
	if err != nil {
		current = created
	}

	return transport.CreateRequestResponse{
		Request:  toResponse(current),
		Assigned: assignment.Assigned,
	}, nil
}

// GetByID returns a request for an admin or the agent currently holding it.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.RequestResponse, error) {
	req, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.RequestResponse{}, apperr.NotFound("request not found")
	}
	if err != nil {
		return transport.RequestResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load request", err)
	}
	return toResponse(req), nil
}

// GetForAgent returns a request only if the acting agent holds it.
func (s *Service) GetForAgent(ctx context.Context, userID uuid.UUID, id uuid.UUID) (transport.RequestResponse, error) {
	agent, err := s.resolveAgent(ctx, userID)
	if err != nil {
		return transport.RequestResponse{}, err
	}

	req, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.RequestResponse{}, apperr.NotFound("request not found")
	}
	if err != nil {
		return transport.RequestResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load request", err)
	}
	if req.AssignedAgentID == nil || *req.AssignedAgentID != agent.ID {
		return transport.RequestResponse{}, apperr.Forbidden("request is not assigned to you")
	}
	return toResponse(req), nil
}

// ListAdmin returns the filtered admin request list.
func (s *Service) ListAdmin(ctx context.Context, req transport.ListRequestsRequest) (transport.RequestListResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)

	items, total, err := s.repo.List(ctx, repository.ListParams{
		Status:    req.Status,
		Parish:    req.Parish,
		Type:      req.Type,
		Search:    req.Search,
		Offset:    (page - 1) * pageSize,
		Limit:     pageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		return transport.RequestListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list requests", err)
	}

	return toListResponse(items, total, page, pageSize), nil
}

// ListMine returns the acting agent's assigned requests.
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID, req transport.AgentListRequest) (transport.RequestListResponse, error) {
	agent, err := s.resolveAgent(ctx, userID)
	if err != nil {
		return transport.RequestListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)

	items, total, err := s.repo.List(ctx, repository.ListParams{
		Status:  req.Status,
		AgentID: &agent.ID,
		Offset:  (page - 1) * pageSize,
		Limit:   pageSize,
	})
	if err != nil {
		return transport.RequestListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list requests", err)
	}

	return toListResponse(items, total, page, pageSize), nil
}

// Feed returns the open marketplace requests for a parish. Only agents with
// active paid access may browse the feed, and requester contact details are
// withheld.
func (s *Service) Feed(ctx context.Context, userID uuid.UUID, req transport.FeedRequest) (transport.FeedResponse, error) {
	agent, err := s.resolveAgent(ctx, userID)
	if err != nil {
		return transport.FeedResponse{}, err
	}

	if !allocdomain.Eligible(agent, s.now().UTC()) {
		return transport.FeedResponse{}, apperr.Forbidden("active paid access required to browse the marketplace")
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)

	items, total, err := s.repo.ListParishFeed(ctx, req.Parish, pageSize, (page-1)*pageSize)
	if err != nil {
		return transport.FeedResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load feed", err)
	}

	feed := make([]transport.FeedItemResponse, 0, len(items))
	for _, item := range items {
		feed = append(feed, transport.FeedItemResponse{
			ID:           item.ID,
			RequestType:  item.RequestType,
			Parish:       item.Parish,
			PropertyType: item.PropertyType,
			BudgetMin:    item.BudgetMin,
			BudgetMax:    item.BudgetMax,
			Bedrooms:     item.Bedrooms,
			Urgency:      item.Urgency,
			Description:  item.Description,
			CreatedAt:    item.CreatedAt,
		})
	}

	return transport.FeedResponse{Requests: feed, Total: total, Page: page, PageSize: pageSize}, nil
}

// ToggleContacted flips the contacted flag for the holding agent.
func (s *Service) ToggleContacted(ctx context.Context, userID uuid.UUID, requestID uuid.UUID) (transport.RequestResponse, error) {
	agent, err := s.resolveAgent(ctx, userID)
	if err != nil {
		return transport.RequestResponse{}, err
	}

	req, err := s.repo.ToggleContacted(ctx, requestID, agent.ID)
	if errors.Is(err, repository.ErrInvalidTransition) {
		return transport.RequestResponse{}, apperr.Conflict("request cannot be marked contacted")
	}
	if err != nil {
		return transport.RequestResponse{}, apperr.Wrap(apperr.KindInternal, "failed to update request", err)
	}
	return toResponse(req), nil
}

// StartProgress marks the request as actively being worked.
func (s *Service) StartProgress(ctx context.Context, userID uuid.UUID, requestID uuid.UUID) (transport.RequestResponse, error) {
	agent, err := s.resolveAgent(ctx, userID)
	if err != nil {
		return transport.RequestResponse{}, err
	}

	req, err := s.repo.StartProgress(ctx, requestID, agent.ID)
	if errors.Is(err, repository.ErrInvalidTransition) {
		return transport.RequestResponse{}, apperr.Conflict("request cannot be moved to in progress")
	}
	if err != nil {
		return transport.RequestResponse{}, apperr.Wrap(apperr.KindInternal, "failed to update request", err)
	}
	return toResponse(req), nil
}

// Complete closes the request on behalf of the holding agent.
func (s *Service) Complete(ctx context.Context, userID uuid.UUID, requestID uuid.UUID) (transport.RequestResponse, error) {
	agent, err := s.resolveAgent(ctx, userID)
	if err != nil {
		return transport.RequestResponse{}, err
	}

	req, err := s.repo.Complete(ctx, requestID, agent.ID)
	if errors.Is(err, repository.ErrInvalidTransition) {
		return transport.RequestResponse{}, apperr.Conflict("request cannot be completed")
	}
	if err != nil {
		return transport.RequestResponse{}, apperr.Wrap(apperr.KindInternal, "failed to update request", err)
	}

	s.bus.Publish(ctx, events.RequestCompleted{
		BaseEvent: events.NewBaseEvent(),
		RequestID: requestID,
		AgentID:   agent.ID,
	})

	return toResponse(req), nil
}

// Release gives the request back to the pool and re-circulates it.
func (s *Service) Release(ctx context.Context, userID uuid.UUID, requestID uuid.UUID) (alloctransport.ReleaseResponse, error) {
	agent, err := s.resolveAgent(ctx, userID)
	if err != nil {
		return alloctransport.ReleaseResponse{}, err
	}
	return s.allocator.Release(ctx, requestID, &agent.ID)
}

// Comment stores the holding agent's note on the request, replacing any
// previous note.
func (s *Service) Comment(ctx context.Context, userID uuid.UUID, requestID uuid.UUID, req transport.CommentRequest) (transport.RequestResponse, error) {
	agent, err := s.resolveAgent(ctx, userID)
	if err != nil {
		return transport.RequestResponse{}, err
	}

	updated, err := s.repo.SetComment(ctx, requestID, agent.ID, req.Comment)
	if errors.Is(err, repository.ErrInvalidTransition) {
		// The update matches nothing for a missing request, a request held
		// by someone else, or a request that is already closed. Re-fetch to
		// tell the caller which one it was.
		current, getErr := s.repo.GetByID(ctx, requestID)
		if errors.Is(getErr, repository.ErrNotFound) {
			return transport.RequestResponse{}, apperr.NotFound("request not found")
		}
		if getErr != nil {
			return transport.RequestResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load request", getErr)
		}
		if current.AssignedAgentID == nil || *current.AssignedAgentID != agent.ID {
			return transport.RequestResponse{}, apperr.Forbidden("request is not assigned to you")
		}
		return transport.RequestResponse{}, apperr.Conflict("request is no longer being worked")
	}
	if err != nil {
		return transport.RequestResponse{}, apperr.Wrap(apperr.KindInternal, "failed to save comment", err)
	}
	return toResponse(updated), nil
}

// Remove cancels the request and pulls it from circulation (admin).
func (s *Service) Remove(ctx context.Context, requestID uuid.UUID, req transport.RemoveRequestRequest) (transport.RequestResponse, error) {
	removed, err := s.repo.Remove(ctx, requestID, req.Reason)
	if errors.Is(err, repository.ErrInvalidTransition) {
		return transport.RequestResponse{}, apperr.Conflict("request is already closed")
	}
	if err != nil {
		return transport.RequestResponse{}, apperr.Wrap(apperr.KindInternal, "failed to remove request", err)
	}

	s.log.Info("service request removed", "request_id", requestID)
	return toResponse(removed), nil
}

func (s *Service) resolveAgent(ctx context.Context, userID uuid.UUID) (allocdomain.Agent, error) {
	agent, err := s.agents.GetByUserID(ctx, userID)
	if err != nil {
		return allocdomain.Agent{}, apperr.Forbidden("agent profile required")
	}
	return agent, nil
}

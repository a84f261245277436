// Package service implements the lead allocation engine: round-robin
// assignment of open service requests to eligible agents, and release back
// into circulation.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"yaadmarket_backend/internal/allocation/domain"
	"yaadmarket_backend/internal/allocation/repository"
	"yaadmarket_backend/internal/allocation/transport"
	"yaadmarket_backend/internal/events"
	reqdomain "yaadmarket_backend/internal/requests/domain"
	"yaadmarket_backend/platform/apperr"
	"yaadmarket_backend/platform/logger"
)

// Store is the persistence surface the allocator needs.
type Store interface {
	GetRequest(ctx context.Context, id uuid.UUID) (repository.AllocationRequest, error)
	ListCandidates(ctx context.Context) ([]domain.Agent, error)
	Assign(ctx context.Context, requestID uuid.UUID, agentID uuid.UUID, now time.Time) error
	TouchAgentAssigned(ctx context.Context, agentID uuid.UUID, now time.Time) error
	Release(ctx context.Context, requestID uuid.UUID) (repository.AllocationRequest, error)
	ListUnassignedOpen(ctx context.Context, limit int) ([]repository.AllocationRequest, error)
	GetDashboardStats(ctx context.Context, now time.Time) (repository.DashboardStats, error)
}

// Allocator runs the assignment and release flows.
type Allocator struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

func New(store Store, bus events.Bus, log *logger.Logger) *Allocator {
	return &Allocator{store: store, bus: bus, log: log, now: time.Now}
}

var _ Store = (*repository.Repository)(nil)

const (
	reasonNoEligibleAgents = "no eligible agents"
	reasonLostRace         = "request taken by concurrent assignment"
)

// AutoAssign picks the next agent in the rotation and hands them the request.
// A request with no eligible agent stays open and is reported, not failed;
// the scheduler sweep retries it later.
func (a *Allocator) AutoAssign(ctx context.Context, requestID uuid.UUID) (transport.AssignmentResponse, error) {
	return a.assign(ctx, requestID, false)
}

func (a *Allocator) assign(ctx context.Context, requestID uuid.UUID, reassigned bool) (transport.AssignmentResponse, error) {
	req, err := a.store.GetRequest(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.AssignmentResponse{}, apperr.NotFound("request not found")
	}
	if err != nil {
		return transport.AssignmentResponse{}, apperr.Wrap(apperr.KindInternal, "allocation failed", err)
	}

	if reqdomain.IsTerminal(req.Status) {
		return transport.AssignmentResponse{}, apperr.Conflict("request is closed")
	}
	if req.AssignedAgentID != nil || !reqdomain.CanAssign(req.Status) {
		return transport.AssignmentResponse{}, apperr.Conflict("request is already assigned")
	}

	candidates, err := a.store.ListCandidates(ctx)
	if err != nil {
		return transport.AssignmentResponse{}, apperr.Wrap(apperr.KindInternal, "allocation failed", err)
	}

	now := a.now().UTC()
	next, ok := domain.NextInQueue(candidates, now)
	if !ok {
		a.log.AllocationEvent("no_eligible_agents", requestID.String(), "")
		return transport.AssignmentResponse{
			RequestID: requestID,
			Assigned:  false,
			Reason:    reasonNoEligibleAgents,
		}, nil
	}

	return a.commitAssignment(ctx, requestID, next, now, reassigned)
}

// ManualAssign lets an admin hand the request to a chosen agent, bypassing
// the rotation order but not the eligibility rules.
func (a *Allocator) ManualAssign(ctx context.Context, requestID uuid.UUID, agentID uuid.UUID) (transport.AssignmentResponse, error) {
	req, err := a.store.GetRequest(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.AssignmentResponse{}, apperr.NotFound("request not found")
	}
	if err != nil {
		return transport.AssignmentResponse{}, apperr.Wrap(apperr.KindInternal, "allocation failed", err)
	}

	if reqdomain.IsTerminal(req.Status) {
		return transport.AssignmentResponse{}, apperr.Conflict("request is closed")
	}
	if req.AssignedAgentID != nil || !reqdomain.CanAssign(req.Status) {
		return transport.AssignmentResponse{}, apperr.Conflict("request is already assigned")
	}

	candidates, err := a.store.ListCandidates(ctx)
	if err != nil {
		return transport.AssignmentResponse{}, apperr.Wrap(apperr.KindInternal, "allocation failed", err)
	}

	now := a.now().UTC()
	var chosen *domain.Agent
	for i := range candidates {
		if candidates[i].ID == agentID {
			chosen = &candidates[i]
			break
		}
	}
	if chosen == nil || !domain.Eligible(*chosen, now) {
		return transport.AssignmentResponse{}, apperr.Validation("agent is not eligible for assignment")
	}

	return a.commitAssignment(ctx, requestID, *chosen, now, false)
}

func (a *Allocator) commitAssignment(ctx context.Context, requestID uuid.UUID, agent domain.Agent, now time.Time, reassigned bool) (transport.AssignmentResponse, error) {
	if err := a.store.Assign(ctx, requestID, agent.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotAssignable) {
			return transport.AssignmentResponse{}, apperr.Conflict(reasonLostRace)
		}
		return transport.AssignmentResponse{}, apperr.Wrap(apperr.KindInternal, "allocation failed", err)
	}

	// The assignment is committed. A failed stamp only costs queue fairness,
	// so log it and keep the assignment.
	if err := a.store.TouchAgentAssigned(ctx, agent.ID, now); err != nil {
		a.log.Error("failed to stamp agent queue position", "agent_id", agent.ID, "error", err)
	}

	a.log.AllocationEvent("assigned", requestID.String(), agent.ID.String())

	a.bus.Publish(ctx, events.RequestAssigned{
		BaseEvent:   events.NewBaseEvent(),
		RequestID:   requestID,
		AgentID:     agent.ID,
		AgentUserID: agent.UserID,
		Reassigned:  reassigned,
	})

	return transport.AssignmentResponse{
		RequestID:  requestID,
		Assigned:   true,
		AgentID:    &agent.ID,
		AssignedAt: &now,
	}, nil
}

// Release returns a held request to the pool and immediately tries to pass
// it to the next agent in the rotation. When releasedBy is set, only the
// agent currently holding the request may release it.
func (a *Allocator) Release(ctx context.Context, requestID uuid.UUID, releasedBy *uuid.UUID) (transport.ReleaseResponse, error) {
	req, err := a.store.GetRequest(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ReleaseResponse{}, apperr.NotFound("request not found")
	}
	if err != nil {
		return transport.ReleaseResponse{}, apperr.Wrap(apperr.KindInternal, "release failed", err)
	}

	if reqdomain.IsTerminal(req.Status) {
		return transport.ReleaseResponse{}, apperr.Conflict("request is closed")
	}
	if req.AssignedAgentID == nil {
		return transport.ReleaseResponse{}, apperr.Conflict("request is not assigned")
	}
	if releasedBy != nil && *req.AssignedAgentID != *releasedBy {
		return transport.ReleaseResponse{}, apperr.Forbidden("request is assigned to another agent")
	}

	holder := *req.AssignedAgentID
	released, err := a.store.Release(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotReleasable) {
			return transport.ReleaseResponse{}, apperr.Conflict("request is no longer releasable")
		}
		return transport.ReleaseResponse{}, apperr.Wrap(apperr.KindInternal, "release failed", err)
	}

	a.log.AllocationEvent("released", requestID.String(), holder.String())

	a.bus.Publish(ctx, events.RequestReleased{
		BaseEvent: events.NewBaseEvent(),
		RequestID: requestID,
		AgentID:   holder,
	})

	resp := transport.ReleaseResponse{
		RequestID:     requestID,
		Released:      true,
		ReleasedCount: released.ReleasedCount,
	}

	// Re-circulation is best effort. The releasing agent is back in the
	// rotation and may legitimately win again if the queue puts them first.
	assignment, err := a.assign(ctx, requestID, true)
	if err != nil {
		a.log.Warn("reassignment after release failed", "request_id", requestID, "error", err)
		return resp, nil
	}
	if assignment.Assigned {
		resp.Reassigned = true
		resp.NewAgentID = assignment.AgentID
	}

	return resp, nil
}

// SweepUnassigned walks the unassigned backlog oldest first and assigns what
// it can. A pass with no eligible agents stops early since every remaining
// request would fail the same way.
func (a *Allocator) SweepUnassigned(ctx context.Context, batch int) (transport.SweepResponse, error) {
	if batch <= 0 {
		batch = 50
	}

	pending, err := a.store.ListUnassignedOpen(ctx, batch)
	if err != nil {
		return transport.SweepResponse{}, apperr.Wrap(apperr.KindInternal, "sweep failed", err)
	}

	resp := transport.SweepResponse{Scanned: len(pending)}
	for _, req := range pending {
		assignment, err := a.assign(ctx, req.ID, false)
		if err != nil {
			// Racing assignments and freshly closed requests are expected
			// here; skip and move on.
			if apperr.GetKind(err) == apperr.KindConflict || apperr.GetKind(err) == apperr.KindNotFound {
				resp.Skipped++
				continue
			}
			return resp, err
		}
		if !assignment.Assigned {
			resp.Skipped += len(pending) - resp.Assigned - resp.Skipped
			break
		}
		resp.Assigned++
	}

	return resp, nil
}

// Queue returns the current ranked rotation of eligible agents.
func (a *Allocator) Queue(ctx context.Context) (transport.QueueResponse, error) {
	candidates, err := a.store.ListCandidates(ctx)
	if err != nil {
		return transport.QueueResponse{}, apperr.Wrap(apperr.KindInternal, "queue lookup failed", err)
	}

	now := a.now().UTC()
	ranked := domain.RankQueue(domain.EligibleAgents(candidates, now))

	agents := make([]transport.QueueAgentResponse, 0, len(ranked))
	for i, agent := range ranked {
		agents = append(agents, transport.QueueAgentResponse{
			AgentID:               agent.ID,
			UserID:                agent.UserID,
			Position:              i + 1,
			PaymentStatus:         agent.PaymentStatus,
			AccessExpiry:          agent.AccessExpiry,
			LastRequestAssignedAt: agent.LastRequestAssignedAt,
		})
	}

	return transport.QueueResponse{Agents: agents, Total: len(agents)}, nil
}

// Dashboard returns the admin allocation overview.
func (a *Allocator) Dashboard(ctx context.Context) (transport.DashboardResponse, error) {
	stats, err := a.store.GetDashboardStats(ctx, a.now().UTC())
	if err != nil {
		return transport.DashboardResponse{}, apperr.Wrap(apperr.KindInternal, "dashboard stats failed", err)
	}

	return transport.DashboardResponse{
		TotalRequests:    stats.TotalRequests,
		OpenUnassigned:   stats.OpenUnassigned,
		Assigned:         stats.Assigned,
		InProgress:       stats.InProgress,
		Completed:        stats.Completed,
		Cancelled:        stats.Cancelled,
		EligibleAgents:   stats.EligibleAgents,
		TotalReleases:    stats.TotalReleases,
		OldestUnassigned: stats.OldestUnassigned,
		AssignedLast24h:  stats.AssignedLast24h,
	}, nil
}

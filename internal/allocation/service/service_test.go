package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"yaadmarket_backend/internal/allocation/domain"
	"yaadmarket_backend/internal/allocation/repository"
	"yaadmarket_backend/internal/events"
	reqdomain "yaadmarket_backend/internal/requests/domain"
	"yaadmarket_backend/platform/apperr"
	"yaadmarket_backend/platform/logger"
)

// fakeStore is an in-memory Store that mirrors the conditional update
// semantics of the SQL repository.
type fakeStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]repository.AllocationRequest
	agents   []domain.Agent
}

func newFakeStore() *fakeStore {
	return &fakeStore{requests: make(map[uuid.UUID]repository.AllocationRequest)}
}

func (f *fakeStore) GetRequest(_ context.Context, id uuid.UUID) (repository.AllocationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return repository.AllocationRequest{}, repository.ErrNotFound
	}
	return req, nil
}

func (f *fakeStore) ListCandidates(_ context.Context) ([]domain.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Agent, len(f.agents))
	copy(out, f.agents)
	return out, nil
}

func (f *fakeStore) Assign(_ context.Context, requestID uuid.UUID, agentID uuid.UUID, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[requestID]
	if !ok || req.Status != reqdomain.StatusOpen || req.AssignedAgentID != nil {
		return repository.ErrNotAssignable
	}
	req.Status = reqdomain.StatusAssigned
	req.AssignedAgentID = &agentID
	req.AssignedAt = &now
	f.requests[requestID] = req
	return nil
}

func (f *fakeStore) TouchAgentAssigned(_ context.Context, agentID uuid.UUID, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.agents {
		if f.agents[i].ID == agentID {
			stamp := now
			f.agents[i].LastRequestAssignedAt = &stamp
		}
	}
	return nil
}

func (f *fakeStore) Release(_ context.Context, requestID uuid.UUID) (repository.AllocationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[requestID]
	if !ok || (req.Status != reqdomain.StatusAssigned && req.Status != reqdomain.StatusInProgress) {
		return repository.AllocationRequest{}, repository.ErrNotReleasable
	}
	req.Status = reqdomain.StatusOpen
	req.AssignedAgentID = nil
	req.AssignedAt = nil
	req.ReleasedCount++
	f.requests[requestID] = req
	return req, nil
}

func (f *fakeStore) ListUnassignedOpen(_ context.Context, limit int) ([]repository.AllocationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.AllocationRequest, 0)
	for _, req := range f.requests {
		if req.Status == reqdomain.StatusOpen && req.AssignedAgentID == nil {
			out = append(out, req)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) GetDashboardStats(_ context.Context, _ time.Time) (repository.DashboardStats, error) {
	return repository.DashboardStats{}, nil
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) published() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Event, len(b.events))
	copy(out, b.events)
	return out
}

func newAllocator(store *fakeStore, bus *recordingBus, now time.Time) *Allocator {
	a := New(store, bus, logger.New("development"))
	a.now = func() time.Time { return now }
	return a
}

func approvedAgent(tier string, lastAssigned *time.Time) domain.Agent {
	return domain.Agent{
		ID:                    uuid.New(),
		UserID:                uuid.New(),
		VerificationStatus:    domain.VerificationApproved,
		PaymentStatus:         tier,
		LastRequestAssignedAt: lastAssigned,
	}
}

func openRequest() repository.AllocationRequest {
	return repository.AllocationRequest{
		ID:        uuid.New(),
		Parish:    "St. Andrew",
		Status:    reqdomain.StatusOpen,
		CreatedAt: time.Now().Add(-time.Hour),
	}
}

func TestAutoAssignPicksHeadOfQueueAndStampsAgent(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	bus := &recordingBus{}

	served := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := approvedAgent(domain.Tier30Day, nil)
	veteran := approvedAgent(domain.Tier30Day, &served)
	store.agents = []domain.Agent{veteran, fresh}

	req := openRequest()
	store.requests[req.ID] = req

	allocator := newAllocator(store, bus, now)
	resp, err := allocator.AutoAssign(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("AutoAssign: %v", err)
	}
	if !resp.Assigned || resp.AgentID == nil || *resp.AgentID != fresh.ID {
		t.Fatalf("expected never-served agent to win, got %+v", resp)
	}

	got := store.requests[req.ID]
	if got.Status != reqdomain.StatusAssigned || got.AssignedAgentID == nil || *got.AssignedAgentID != fresh.ID {
		t.Errorf("request not transitioned to assigned: %+v", got)
	}

	// Winner goes to the back of the rotation.
	for _, a := range store.agents {
		if a.ID == fresh.ID {
			if a.LastRequestAssignedAt == nil || !a.LastRequestAssignedAt.Equal(now) {
				t.Errorf("winner must be stamped with assignment time")
			}
		}
	}

	published := bus.published()
	if len(published) != 1 {
		t.Fatalf("expected one event, got %d", len(published))
	}
	assigned, ok := published[0].(events.RequestAssigned)
	if !ok || assigned.AgentID != fresh.ID || assigned.Reassigned {
		t.Errorf("unexpected event: %+v", published[0])
	}
}

func TestAutoAssignNoEligibleAgentsLeavesRequestOpen(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	bus := &recordingBus{}

	store.agents = []domain.Agent{
		approvedAgent(domain.TierFree, nil),
		{ID: uuid.New(), VerificationStatus: domain.VerificationPending, PaymentStatus: domain.Tier30Day},
	}

	req := openRequest()
	store.requests[req.ID] = req

	allocator := newAllocator(store, bus, now)
	resp, err := allocator.AutoAssign(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("no eligible agents must not be an error: %v", err)
	}
	if resp.Assigned || resp.Reason == "" {
		t.Errorf("expected unassigned outcome with reason, got %+v", resp)
	}

	got := store.requests[req.ID]
	if got.Status != reqdomain.StatusOpen || got.AssignedAgentID != nil {
		t.Errorf("request must stay open and unassigned: %+v", got)
	}
	if len(bus.published()) != 0 {
		t.Errorf("no event must be published when nothing was assigned")
	}
}

func TestAutoAssignGuards(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name   string
		mutate func(*repository.AllocationRequest)
		kind   apperr.Kind
	}{
		{"completed request", func(r *repository.AllocationRequest) { r.Status = reqdomain.StatusCompleted }, apperr.KindConflict},
		{"cancelled request", func(r *repository.AllocationRequest) { r.Status = reqdomain.StatusCancelled }, apperr.KindConflict},
		{"already assigned", func(r *repository.AllocationRequest) {
			id := uuid.New()
			r.Status = reqdomain.StatusAssigned
			r.AssignedAgentID = &id
		}, apperr.KindConflict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			store.agents = []domain.Agent{approvedAgent(domain.Tier30Day, nil)}
			req := openRequest()
			tc.mutate(&req)
			store.requests[req.ID] = req

			allocator := newAllocator(store, &recordingBus{}, now)
			_, err := allocator.AutoAssign(context.Background(), req.ID)
			if apperr.GetKind(err) != tc.kind {
				t.Errorf("expected kind %v, got %v (err=%v)", tc.kind, apperr.GetKind(err), err)
			}
		})
	}

	t.Run("missing request", func(t *testing.T) {
		allocator := newAllocator(newFakeStore(), &recordingBus{}, now)
		_, err := allocator.AutoAssign(context.Background(), uuid.New())
		if apperr.GetKind(err) != apperr.KindNotFound {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestManualAssignRejectsIneligibleAgent(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	pending := domain.Agent{ID: uuid.New(), UserID: uuid.New(), VerificationStatus: domain.VerificationPending, PaymentStatus: domain.Tier30Day}
	store.agents = []domain.Agent{pending}

	req := openRequest()
	store.requests[req.ID] = req

	allocator := newAllocator(store, &recordingBus{}, now)
	_, err := allocator.ManualAssign(context.Background(), req.ID, pending.ID)
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Errorf("expected validation error for ineligible agent, got %v", err)
	}

	_, err = allocator.ManualAssign(context.Background(), req.ID, uuid.New())
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Errorf("expected validation error for unknown agent, got %v", err)
	}
}

func TestReleaseRecirculatesToNextAgent(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	bus := &recordingBus{}

	holder := approvedAgent(domain.Tier30Day, nil)
	next := approvedAgent(domain.Tier30Day, nil)
	store.agents = []domain.Agent{holder, next}

	req := openRequest()
	store.requests[req.ID] = req

	allocator := newAllocator(store, bus, now)

	// First allocation goes to whichever of the two the tie-break picks.
	first, err := allocator.AutoAssign(context.Background(), req.ID)
	if err != nil || !first.Assigned {
		t.Fatalf("setup assignment failed: %v", err)
	}
	firstAgent := *first.AgentID

	resp, err := allocator.Release(context.Background(), req.ID, &firstAgent)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !resp.Released || resp.ReleasedCount != 1 {
		t.Errorf("expected released with count 1, got %+v", resp)
	}
	if !resp.Reassigned || resp.NewAgentID == nil {
		t.Fatalf("expected immediate re-circulation, got %+v", resp)
	}
	if *resp.NewAgentID == firstAgent {
		t.Errorf("releasing agent was just stamped and must not win again over a never-served agent")
	}

	var sawReleased, sawReassigned bool
	for _, e := range bus.published() {
		switch ev := e.(type) {
		case events.RequestReleased:
			sawReleased = ev.AgentID == firstAgent
		case events.RequestAssigned:
			if ev.Reassigned {
				sawReassigned = true
			}
		}
	}
	if !sawReleased || !sawReassigned {
		t.Errorf("expected release and reassignment events")
	}
}

func TestReleaseByWrongAgentIsForbidden(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()

	holder := approvedAgent(domain.Tier30Day, nil)
	store.agents = []domain.Agent{holder}

	req := openRequest()
	req.Status = reqdomain.StatusAssigned
	req.AssignedAgentID = &holder.ID
	store.requests[req.ID] = req

	allocator := newAllocator(store, &recordingBus{}, now)

	other := uuid.New()
	_, err := allocator.Release(context.Background(), req.ID, &other)
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestReleaseGuards(t *testing.T) {
	now := time.Now().UTC()

	t.Run("terminal request", func(t *testing.T) {
		store := newFakeStore()
		req := openRequest()
		req.Status = reqdomain.StatusCompleted
		store.requests[req.ID] = req

		allocator := newAllocator(store, &recordingBus{}, now)
		_, err := allocator.Release(context.Background(), req.ID, nil)
		if apperr.GetKind(err) != apperr.KindConflict {
			t.Errorf("expected conflict for terminal request, got %v", err)
		}
	})

	t.Run("unassigned request", func(t *testing.T) {
		store := newFakeStore()
		req := openRequest()
		store.requests[req.ID] = req

		allocator := newAllocator(store, &recordingBus{}, now)
		_, err := allocator.Release(context.Background(), req.ID, nil)
		if apperr.GetKind(err) != apperr.KindConflict {
			t.Errorf("expected conflict for unassigned request, got %v", err)
		}
	})
}

func TestReleaseSoleAgentWinsAgain(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()

	only := approvedAgent(domain.Tier30Day, nil)
	store.agents = []domain.Agent{only}

	req := openRequest()
	store.requests[req.ID] = req

	allocator := newAllocator(store, &recordingBus{}, now)
	if _, err := allocator.AutoAssign(context.Background(), req.ID); err != nil {
		t.Fatalf("setup assignment failed: %v", err)
	}

	resp, err := allocator.Release(context.Background(), req.ID, &only.ID)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !resp.Reassigned || resp.NewAgentID == nil || *resp.NewAgentID != only.ID {
		t.Errorf("a sole eligible agent must receive the released request back, got %+v", resp)
	}
}

func TestSweepAssignsBacklog(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()

	store.agents = []domain.Agent{
		approvedAgent(domain.Tier30Day, nil),
		approvedAgent(domain.Tier90Day, nil),
	}

	for i := 0; i < 3; i++ {
		req := openRequest()
		store.requests[req.ID] = req
	}

	allocator := newAllocator(store, &recordingBus{}, now)
	resp, err := allocator.SweepUnassigned(context.Background(), 10)
	if err != nil {
		t.Fatalf("SweepUnassigned: %v", err)
	}
	if resp.Scanned != 3 || resp.Assigned != 3 {
		t.Errorf("expected all 3 assigned, got %+v", resp)
	}

	for id, req := range store.requests {
		if req.Status != reqdomain.StatusAssigned {
			t.Errorf("request %s not assigned after sweep", id)
		}
	}
}

func TestQueueRanksEligibleAgents(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()

	served := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	veteran := approvedAgent(domain.Tier30Day, &served)
	fresh := approvedAgent(domain.Tier7Day, nil)
	free := approvedAgent(domain.TierFree, nil)
	store.agents = []domain.Agent{veteran, fresh, free}

	allocator := newAllocator(store, &recordingBus{}, now)
	resp, err := allocator.Queue(context.Background())
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("free tier agent must not appear in the queue, got %d entries", resp.Total)
	}
	if resp.Agents[0].AgentID != fresh.ID || resp.Agents[0].Position != 1 {
		t.Errorf("never-served agent must be first, got %+v", resp.Agents[0])
	}
	if resp.Agents[1].AgentID != veteran.ID || resp.Agents[1].Position != 2 {
		t.Errorf("served agent must be second, got %+v", resp.Agents[1])
	}
}

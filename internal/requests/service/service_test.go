package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	allocdomain "yaadmarket_backend/internal/allocation/domain"
	alloctransport "yaadmarket_backend/internal/allocation/transport"
	"yaadmarket_backend/internal/events"
	reqdomain "yaadmarket_backend/internal/requests/domain"
	"yaadmarket_backend/internal/requests/repository"
	"yaadmarket_backend/internal/requests/transport"
	"yaadmarket_backend/platform/apperr"
	"yaadmarket_backend/platform/logger"
)

type fakeStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]repository.Request
}

func newFakeStore() *fakeStore {
	return &fakeStore{requests: map[uuid.UUID]repository.Request{}}
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateParams) (repository.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req := repository.Request{
		ID:             uuid.New(),
		RequesterName:  params.RequesterName,
		RequesterPhone: params.RequesterPhone,
		RequesterEmail: params.RequesterEmail,
		RequestType:    params.RequestType,
		Parish:         params.Parish,
		PropertyType:   params.PropertyType,
		BudgetMin:      params.BudgetMin,
		BudgetMax:      params.BudgetMax,
		Bedrooms:       params.Bedrooms,
		Urgency:        params.Urgency,
		Description:    params.Description,
		Status:         reqdomain.StatusOpen,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	f.requests[req.ID] = req
	return req, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return repository.Request{}, repository.ErrNotFound
	}
	return req, nil
}

func (f *fakeStore) List(_ context.Context, params repository.ListParams) ([]repository.Request, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.Request{}
	for _, req := range f.requests {
		if params.Status != nil && req.Status != *params.Status {
			continue
		}
		if params.AgentID != nil && (req.AssignedAgentID == nil || *req.AssignedAgentID != *params.AgentID) {
			continue
		}
		out = append(out, req)
	}
	return out, len(out), nil
}

func (f *fakeStore) ListParishFeed(_ context.Context, parish string, _ int, _ int) ([]repository.Request, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.Request{}
	for _, req := range f.requests {
		if req.Parish == parish && req.Status == reqdomain.StatusOpen && req.AssignedAgentID == nil && !req.IsContacted {
			out = append(out, req)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) ToggleContacted(_ context.Context, id uuid.UUID, agentID uuid.UUID) (repository.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.AssignedAgentID == nil || *req.AssignedAgentID != agentID || !reqdomain.Held(req.Status) {
		return repository.Request{}, repository.ErrInvalidTransition
	}
	req.IsContacted = !req.IsContacted
	f.requests[id] = req
	return req, nil
}

func (f *fakeStore) StartProgress(_ context.Context, id uuid.UUID, agentID uuid.UUID) (repository.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.AssignedAgentID == nil || *req.AssignedAgentID != agentID || req.Status != reqdomain.StatusAssigned {
		return repository.Request{}, repository.ErrInvalidTransition
	}
	req.Status = reqdomain.StatusInProgress
	f.requests[id] = req
	return req, nil
}

func (f *fakeStore) Complete(_ context.Context, id uuid.UUID, agentID uuid.UUID) (repository.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.AssignedAgentID == nil || *req.AssignedAgentID != agentID || !reqdomain.Held(req.Status) {
		return repository.Request{}, repository.ErrInvalidTransition
	}
	now := time.Now().UTC()
	req.Status = reqdomain.StatusCompleted
	req.CompletedAt = &now
	f.requests[id] = req
	return req, nil
}

func (f *fakeStore) SetComment(_ context.Context, id uuid.UUID, agentID uuid.UUID, comment string) (repository.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.AssignedAgentID == nil || *req.AssignedAgentID != agentID || !reqdomain.Held(req.Status) {
		return repository.Request{}, repository.ErrInvalidTransition
	}
	now := time.Now().UTC()
	req.Comment = &comment
	req.CommentUpdatedAt = &now
	f.requests[id] = req
	return req, nil
}

func (f *fakeStore) Remove(_ context.Context, id uuid.UUID, reason *string) (repository.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || reqdomain.IsTerminal(req.Status) {
		return repository.Request{}, repository.ErrInvalidTransition
	}
	req.Status = reqdomain.StatusCancelled
	req.RemovedReason = reason
	req.AssignedAgentID = nil
	f.requests[id] = req
	return req, nil
}

// fakeAllocator optionally binds the request to agentID on AutoAssign,
// mutating the shared store the way the real engine would.
type fakeAllocator struct {
	store   *fakeStore
	agentID *uuid.UUID
	calls   int
}

func (f *fakeAllocator) AutoAssign(_ context.Context, requestID uuid.UUID) (alloctransport.AssignmentResponse, error) {
	f.calls++
	if f.agentID == nil {
		return alloctransport.AssignmentResponse{RequestID: requestID, Reason: "no eligible agents"}, nil
	}

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	req := f.store.requests[requestID]
	now := time.Now().UTC()
	req.Status = reqdomain.StatusAssigned
	req.AssignedAgentID = f.agentID
	req.AssignedAt = &now
	f.store.requests[requestID] = req

	return alloctransport.AssignmentResponse{RequestID: requestID, Assigned: true, AgentID: f.agentID, AssignedAt: &now}, nil
}

func (f *fakeAllocator) Release(_ context.Context, requestID uuid.UUID, _ *uuid.UUID) (alloctransport.ReleaseResponse, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	req, ok := f.store.requests[requestID]
	if !ok || !reqdomain.CanRelease(req.Status) {
		return alloctransport.ReleaseResponse{}, apperr.Conflict("request cannot be released")
	}
	req.Status = reqdomain.StatusOpen
	req.AssignedAgentID = nil
	req.ReleasedCount++
	f.store.requests[requestID] = req
	return alloctransport.ReleaseResponse{RequestID: requestID, Released: true, ReleasedCount: req.ReleasedCount}, nil
}

type fakeDirectory struct {
	byUser map[uuid.UUID]allocdomain.Agent
}

func (f *fakeDirectory) GetByUserID(_ context.Context, userID uuid.UUID) (allocdomain.Agent, error) {
	agent, ok := f.byUser[userID]
	if !ok {
		return allocdomain.Agent{}, repository.ErrNotFound
	}
	return agent, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(_ context.Context, event events.Event) error {
	b.Publish(context.Background(), event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventName())
	}
	return out
}

func paidAgent(userID uuid.UUID) allocdomain.Agent {
	return allocdomain.Agent{
		ID:                 uuid.New(),
		UserID:             userID,
		VerificationStatus: allocdomain.VerificationApproved,
		PaymentStatus:      allocdomain.Tier30Day,
	}
}

func intake() transport.CreateRequestRequest {
	return transport.CreateRequestRequest{
		RequesterName:  "Marcia Brown",
		RequesterPhone: "876-555-0143",
		RequestType:    "buy",
		Parish:         "St. Andrew",
		PropertyType:   "house",
	}
}

func TestCreateAssignsWhenAgentAvailable(t *testing.T) {
	store := newFakeStore()
	agentID := uuid.New()
	allocator := &fakeAllocator{store: store, agentID: &agentID}
	bus := &recordingBus{}
	svc := New(store, allocator, &fakeDirectory{}, bus, logger.New("development"))

	result, err := svc.Create(context.Background(), intake())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !result.Assigned {
		t.Errorf("Assigned = false, want true")
	}
	if result.Request.Status != reqdomain.StatusAssigned {
		t.Errorf("Status = %q, want %q", result.Request.Status, reqdomain.StatusAssigned)
	}
	if result.Request.RequesterPhone != "+18765550143" {
		t.Errorf("RequesterPhone = %q, want E.164", result.Request.RequesterPhone)
	}
	if result.Request.Urgency != "normal" {
		t.Errorf("Urgency = %q, want default normal", result.Request.Urgency)
	}
	if allocator.calls != 1 {
		t.Errorf("AutoAssign calls = %d, want 1", allocator.calls)
	}
	if got := bus.names(); len(got) != 1 || got[0] != (events.RequestCreated{}).EventName() {
		t.Errorf("published events = %v", got)
	}
}

func TestCreateStaysOpenWithoutEligibleAgents(t *testing.T) {
	store := newFakeStore()
	allocator := &fakeAllocator{store: store}
	svc := New(store, allocator, &fakeDirectory{}, &recordingBus{}, logger.New("development"))

	result, err := svc.Create(context.Background(), intake())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if result.Assigned {
		t.Errorf("Assigned = true, want false")
	}
	if result.Request.Status != reqdomain.StatusOpen {
		t.Errorf("Status = %q, want %q", result.Request.Status, reqdomain.StatusOpen)
	}
}

func TestCreateRejectsInvalidPhone(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeAllocator{store: store}, &fakeDirectory{}, &recordingBus{}, logger.New("development"))

	req := intake()
	req.RequesterPhone = "not-a-number"
	if _, err := svc.Create(context.Background(), req); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("Create() error = %v, want validation", err)
	}
}

func TestCreateRejectsInvertedBudget(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeAllocator{store: store}, &fakeDirectory{}, &recordingBus{}, logger.New("development"))

	req := intake()
	low, high := int64(5_000_000), int64(10_000_000)
	req.BudgetMin = &high
	req.BudgetMax = &low
	if _, err := svc.Create(context.Background(), req); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("Create() error = %v, want validation", err)
	}
}

// seedAssigned creates a request already bound to the given agent.
func seedAssigned(store *fakeStore, agentID uuid.UUID) uuid.UUID {
	now := time.Now().UTC()
	req := repository.Request{
		ID:              uuid.New(),
		RequesterName:   "Marcia Brown",
		RequesterPhone:  "+18765550143",
		RequestType:     "buy",
		Parish:          "St. Andrew",
		PropertyType:    "house",
		Urgency:         "normal",
		Status:          reqdomain.StatusAssigned,
		AssignedAgentID: &agentID,
		AssignedAt:      &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	store.requests[req.ID] = req
	return req.ID
}

func TestAgentLifecycleActions(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	agent := paidAgent(userID)
	dir := &fakeDirectory{byUser: map[uuid.UUID]allocdomain.Agent{userID: agent}}
	bus := &recordingBus{}
	svc := New(store, &fakeAllocator{store: store}, dir, bus, logger.New("development"))

	requestID := seedAssigned(store, agent.ID)

	contacted, err := svc.ToggleContacted(context.Background(), userID, requestID)
	if err != nil {
		t.Fatalf("ToggleContacted() error = %v", err)
	}
	if !contacted.IsContacted {
		t.Errorf("IsContacted = false after toggle")
	}

	progressed, err := svc.StartProgress(context.Background(), userID, requestID)
	if err != nil {
		t.Fatalf("StartProgress() error = %v", err)
	}
	if progressed.Status != reqdomain.StatusInProgress {
		t.Errorf("Status = %q, want %q", progressed.Status, reqdomain.StatusInProgress)
	}

	commented, err := svc.Comment(context.Background(), userID, requestID, transport.CommentRequest{Comment: "viewing booked for Friday"})
	if err != nil {
		t.Fatalf("Comment() error = %v", err)
	}
	if commented.Comment == nil || *commented.Comment != "viewing booked for Friday" {
		t.Errorf("Comment = %v, want saved note", commented.Comment)
	}
	if commented.CommentUpdatedAt == nil {
		t.Errorf("CommentUpdatedAt not set")
	}

	completed, err := svc.Complete(context.Background(), userID, requestID)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if completed.Status != reqdomain.StatusCompleted {
		t.Errorf("Status = %q, want %q", completed.Status, reqdomain.StatusCompleted)
	}

	want := (events.RequestCompleted{}).EventName()
	found := false
	for _, name := range bus.names() {
		if name == want {
			found = true
		}
	}
	if !found {
		t.Errorf("RequestCompleted event not published, got %v", bus.names())
	}
}

func TestActionsRequireHoldingAgent(t *testing.T) {
	store := newFakeStore()
	holderID, intruderID := uuid.New(), uuid.New()
	holder := paidAgent(holderID)
	intruder := paidAgent(intruderID)
	dir := &fakeDirectory{byUser: map[uuid.UUID]allocdomain.Agent{
		holderID:   holder,
		intruderID: intruder,
	}}
	svc := New(store, &fakeAllocator{store: store}, dir, &recordingBus{}, logger.New("development"))

	requestID := seedAssigned(store, holder.ID)

	if _, err := svc.Complete(context.Background(), intruderID, requestID); apperr.GetKind(err) != apperr.KindConflict {
		t.Errorf("Complete() by non-holder error = %v, want conflict", err)
	}
	if _, err := svc.Comment(context.Background(), intruderID, requestID, transport.CommentRequest{Comment: "hi"}); apperr.GetKind(err) != apperr.KindForbidden {
		t.Errorf("Comment() by non-holder error = %v, want forbidden", err)
	}
	if _, err := svc.GetForAgent(context.Background(), intruderID, requestID); apperr.GetKind(err) != apperr.KindForbidden {
		t.Errorf("GetForAgent() by non-holder error = %v, want forbidden", err)
	}
}

func TestCompletedRequestRejectsFurtherActions(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	agent := paidAgent(userID)
	dir := &fakeDirectory{byUser: map[uuid.UUID]allocdomain.Agent{userID: agent}}
	svc := New(store, &fakeAllocator{store: store}, dir, &recordingBus{}, logger.New("development"))

	requestID := seedAssigned(store, agent.ID)
	if _, err := svc.Complete(context.Background(), userID, requestID); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if _, err := svc.ToggleContacted(context.Background(), userID, requestID); apperr.GetKind(err) != apperr.KindConflict {
		t.Errorf("ToggleContacted() on completed error = %v, want conflict", err)
	}
	if _, err := svc.Comment(context.Background(), userID, requestID, transport.CommentRequest{Comment: "still in touch"}); apperr.GetKind(err) != apperr.KindConflict {
		t.Errorf("Comment() on completed error = %v, want conflict", err)
	}
	if _, err := svc.Release(context.Background(), userID, requestID); apperr.GetKind(err) != apperr.KindConflict {
		t.Errorf("Release() on completed error = %v, want conflict", err)
	}
}

func TestFeedRequiresActivePaidAccess(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	free := paidAgent(userID)
	free.PaymentStatus = allocdomain.TierFree
	dir := &fakeDirectory{byUser: map[uuid.UUID]allocdomain.Agent{userID: free}}
	svc := New(store, &fakeAllocator{store: store}, dir, &recordingBus{}, logger.New("development"))

	_, err := svc.Feed(context.Background(), userID, transport.FeedRequest{Parish: "St. Andrew"})
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("Feed() error = %v, want forbidden", err)
	}
}

func TestFeedWithholdsContactedRequests(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	agent := paidAgent(userID)
	dir := &fakeDirectory{byUser: map[uuid.UUID]allocdomain.Agent{userID: agent}}
	svc := New(store, &fakeAllocator{store: store}, dir, &recordingBus{}, logger.New("development"))

	open := repository.Request{
		ID: uuid.New(), RequesterName: "A", RequesterPhone: "+18765550143",
		RequestType: "rent", Parish: "Kingston", PropertyType: "apartment",
		Urgency: "normal", Status: reqdomain.StatusOpen,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	contacted := open
	contacted.ID = uuid.New()
	contacted.IsContacted = true
	store.requests[open.ID] = open
	store.requests[contacted.ID] = contacted

	feed, err := svc.Feed(context.Background(), userID, transport.FeedRequest{Parish: "Kingston"})
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(feed.Requests) != 1 || feed.Requests[0].ID != open.ID {
		t.Errorf("feed = %+v, want only the uncontacted open request", feed.Requests)
	}
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	allocdomain "yaadmarket_backend/internal/allocation/domain"
	alloctransport "yaadmarket_backend/internal/allocation/transport"
	"yaadmarket_backend/internal/applications/repository"
	"yaadmarket_backend/internal/applications/transport"
	"yaadmarket_backend/internal/events"
	"yaadmarket_backend/platform/apperr"
	"yaadmarket_backend/platform/logger"
)

type fakeStore struct {
	mu       sync.Mutex
	apps     map[uuid.UUID]repository.Application
	requests map[uuid.UUID]repository.RequestState
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		apps:     map[uuid.UUID]repository.Application{},
		requests: map[uuid.UUID]repository.RequestState{},
	}
}

func (f *fakeStore) Create(_ context.Context, agentID, requestID uuid.UUID, message *string) (repository.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, app := range f.apps {
		if app.AgentID == agentID && app.RequestID == requestID {
			return repository.Application{}, repository.ErrAlreadyApplied
		}
	}
	app := repository.Application{
		ID:        uuid.New(),
		AgentID:   agentID,
		RequestID: requestID,
		Status:    StatusPending,
		Message:   message,
		AppliedAt: time.Now().UTC(),
	}
	f.apps[app.ID] = app
	return app, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return repository.Application{}, repository.ErrNotFound
	}
	return app, nil
}

func (f *fakeStore) ListByAgent(_ context.Context, agentID uuid.UUID) ([]repository.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.Application{}
	for _, app := range f.apps {
		if app.AgentID == agentID {
			out = append(out, app)
		}
	}
	return out, nil
}

func (f *fakeStore) List(_ context.Context, params repository.ListParams) ([]repository.Application, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.Application{}
	for _, app := range f.apps {
		if params.Status == "" || app.Status == params.Status {
			out = append(out, app)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) Review(_ context.Context, id uuid.UUID, status string, reviewedBy uuid.UUID, reviewedAt time.Time) (repository.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return repository.Application{}, repository.ErrNotFound
	}
	if app.Status != StatusPending {
		return repository.Application{}, repository.ErrAlreadyReviewed
	}
	app.Status = status
	app.ReviewedBy = &reviewedBy
	app.ReviewedAt = &reviewedAt
	f.apps[id] = app
	return app, nil
}

func (f *fakeStore) GetRequestState(_ context.Context, requestID uuid.UUID) (repository.RequestState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.requests[requestID]
	if !ok {
		return repository.RequestState{}, repository.ErrNotFound
	}
	return state, nil
}

type fakeAssigner struct {
	calls []uuid.UUID
	resp  alloctransport.AssignmentResponse
	err   error
}

func (f *fakeAssigner) ManualAssign(_ context.Context, requestID uuid.UUID, agentID uuid.UUID) (alloctransport.AssignmentResponse, error) {
	f.calls = append(f.calls, requestID)
	if f.err != nil {
		return alloctransport.AssignmentResponse{}, f.err
	}
	resp := f.resp
	resp.RequestID = requestID
	resp.AgentID = &agentID
	return resp, nil
}

type fakeDirectory struct {
	byUser map[uuid.UUID]allocdomain.Agent
	byID   map[uuid.UUID]allocdomain.Agent
}

func (f *fakeDirectory) GetByUserID(_ context.Context, userID uuid.UUID) (allocdomain.Agent, error) {
	agent, ok := f.byUser[userID]
	if !ok {
		return allocdomain.Agent{}, repository.ErrNotFound
	}
	return agent, nil
}

func (f *fakeDirectory) GetAgent(_ context.Context, agentID uuid.UUID) (allocdomain.Agent, error) {
	agent, ok := f.byID[agentID]
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

func newService(store *fakeStore, assigner *fakeAssigner, dir *fakeDirectory, bus *recordingBus) *Service {
	return New(store, assigner, dir, bus, logger.New("development"))
}

func TestApplyCreatesPendingApplication(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	agent := paidAgent(userID)
	dir := &fakeDirectory{
		byUser: map[uuid.UUID]allocdomain.Agent{userID: agent},
		byID:   map[uuid.UUID]allocdomain.Agent{agent.ID: agent},
	}
	bus := &recordingBus{}
	svc := newService(store, &fakeAssigner{}, dir, bus)

	requestID := uuid.New()
	store.requests[requestID] = repository.RequestState{Status: "open", Parish: "St. Andrew"}

	app, err := svc.Apply(context.Background(), userID, requestID, transport.ApplyRequest{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if app.Status != StatusPending {
		t.Errorf("status = %q, want %q", app.Status, StatusPending)
	}
	if app.AgentID != agent.ID {
		t.Errorf("agentId = %v, want %v", app.AgentID, agent.ID)
	}

	names := bus.names()
	if len(names) != 1 || names[0] != "applications.submitted" {
		t.Errorf("published events = %v, want [applications.submitted]", names)
	}
}

func TestApplyRejectsDuplicate(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	agent := paidAgent(userID)
	dir := &fakeDirectory{
		byUser: map[uuid.UUID]allocdomain.Agent{userID: agent},
		byID:   map[uuid.UUID]allocdomain.Agent{agent.ID: agent},
	}
	svc := newService(store, &fakeAssigner{}, dir, &recordingBus{})

	requestID := uuid.New()
	store.requests[requestID] = repository.RequestState{Status: "open"}

	if _, err := svc.Apply(context.Background(), userID, requestID, transport.ApplyRequest{}); err != nil {
		t.Fatalf("first Apply() error = %v", err)
	}
	_, err := svc.Apply(context.Background(), userID, requestID, transport.ApplyRequest{})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Errorf("second Apply() kind = %v, want conflict", apperr.GetKind(err))
	}
}

func TestApplyGuards(t *testing.T) {
	userID := uuid.New()
	agent := paidAgent(userID)

	freeUserID := uuid.New()
	freeAgent := paidAgent(freeUserID)
	freeAgent.PaymentStatus = allocdomain.TierFree

	openID := uuid.New()
	assignedID := uuid.New()

	tests := []struct {
		name      string
		userID    uuid.UUID
		requestID uuid.UUID
		wantKind  apperr.Kind
	}{
		{"no agent profile", uuid.New(), openID, apperr.KindForbidden},
		{"free tier agent", freeUserID, openID, apperr.KindForbidden},
		{"unknown request", userID, uuid.New(), apperr.KindNotFound},
		{"request not open", userID, assignedID, apperr.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.requests[openID] = repository.RequestState{Status: "open"}
			store.requests[assignedID] = repository.RequestState{Status: "assigned"}
			dir := &fakeDirectory{
				byUser: map[uuid.UUID]allocdomain.Agent{
					userID:     agent,
					freeUserID: freeAgent,
				},
				byID: map[uuid.UUID]allocdomain.Agent{agent.ID: agent},
			}
			svc := newService(store, &fakeAssigner{}, dir, &recordingBus{})

			_, err := svc.Apply(context.Background(), tt.userID, tt.requestID, transport.ApplyRequest{})
			if apperr.GetKind(err) != tt.wantKind {
				t.Errorf("Apply() kind = %v, want %v", apperr.GetKind(err), tt.wantKind)
			}
		})
	}
}

func TestReviewApprovalAssignsRequest(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	agent := paidAgent(userID)
	dir := &fakeDirectory{
		byUser: map[uuid.UUID]allocdomain.Agent{userID: agent},
		byID:   map[uuid.UUID]allocdomain.Agent{agent.ID: agent},
	}
	assigner := &fakeAssigner{resp: alloctransport.AssignmentResponse{Assigned: true}}
	bus := &recordingBus{}
	svc := newService(store, assigner, dir, bus)

	requestID := uuid.New()
	store.requests[requestID] = repository.RequestState{Status: "open"}
	app, err := svc.Apply(context.Background(), userID, requestID, transport.ApplyRequest{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	result, err := svc.Review(context.Background(), app.ID, uuid.New(), transport.ReviewApplicationRequest{Status: StatusApproved})
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if !result.Assigned {
		t.Error("Assigned = false, want true")
	}
	if result.Application.Status != StatusApproved {
		t.Errorf("status = %q, want %q", result.Application.Status, StatusApproved)
	}
	if len(assigner.calls) != 1 || assigner.calls[0] != requestID {
		t.Errorf("ManualAssign calls = %v, want [%v]", assigner.calls, requestID)
	}

	names := bus.names()
	if len(names) != 2 || names[1] != "applications.reviewed" {
		t.Errorf("published events = %v, want submitted then reviewed", names)
	}
}

func TestReviewRejectionDoesNotAssign(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	agent := paidAgent(userID)
	dir := &fakeDirectory{
		byUser: map[uuid.UUID]allocdomain.Agent{userID: agent},
		byID:   map[uuid.UUID]allocdomain.Agent{agent.ID: agent},
	}
	assigner := &fakeAssigner{}
	svc := newService(store, assigner, dir, &recordingBus{})

	requestID := uuid.New()
	store.requests[requestID] = repository.RequestState{Status: "open"}
	app, _ := svc.Apply(context.Background(), userID, requestID, transport.ApplyRequest{})

	result, err := svc.Review(context.Background(), app.ID, uuid.New(), transport.ReviewApplicationRequest{Status: StatusRejected})
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if result.Assigned {
		t.Error("Assigned = true, want false")
	}
	if len(assigner.calls) != 0 {
		t.Errorf("ManualAssign calls = %v, want none", assigner.calls)
	}
}

func TestReviewTwiceConflicts(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	agent := paidAgent(userID)
	dir := &fakeDirectory{
		byUser: map[uuid.UUID]allocdomain.Agent{userID: agent},
		byID:   map[uuid.UUID]allocdomain.Agent{agent.ID: agent},
	}
	svc := newService(store, &fakeAssigner{}, dir, &recordingBus{})

	requestID := uuid.New()
	store.requests[requestID] = repository.RequestState{Status: "open"}
	app, _ := svc.Apply(context.Background(), userID, requestID, transport.ApplyRequest{})

	if _, err := svc.Review(context.Background(), app.ID, uuid.New(), transport.ReviewApplicationRequest{Status: StatusRejected}); err != nil {
		t.Fatalf("first Review() error = %v", err)
	}
	_, err := svc.Review(context.Background(), app.ID, uuid.New(), transport.ReviewApplicationRequest{Status: StatusApproved})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Errorf("second Review() kind = %v, want conflict", apperr.GetKind(err))
	}
}

func TestReviewApprovalSurvivesAssignmentFailure(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	agent := paidAgent(userID)
	dir := &fakeDirectory{
		byUser: map[uuid.UUID]allocdomain.Agent{userID: agent},
		byID:   map[uuid.UUID]allocdomain.Agent{agent.ID: agent},
	}
	assigner := &fakeAssigner{err: apperr.Conflict("request is already assigned")}
	svc := newService(store, assigner, dir, &recordingBus{})

	requestID := uuid.New()
	store.requests[requestID] = repository.RequestState{Status: "open"}
	app, _ := svc.Apply(context.Background(), userID, requestID, transport.ApplyRequest{})

	result, err := svc.Review(context.Background(), app.ID, uuid.New(), transport.ReviewApplicationRequest{Status: StatusApproved})
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if result.Assigned {
		t.Error("Assigned = true, want false")
	}
	if result.Application.Status != StatusApproved {
		t.Errorf("status = %q, want approved despite assignment failure", result.Application.Status)
	}
	if result.Reason == "" {
		t.Error("Reason is empty, want failure explanation")
	}
}

package sse

import (
	"sync"
	"testing"

	"github.com/google/uuid"

	"yaadmarket_backend/platform/logger"
)

func newTestService() *Service {
	return New(logger.New("development"))
}

func TestPublishDeliversToAllUserConnections(t *testing.T) {
	svc := newTestService()
	userID := uuid.New()

	first := &client{userID: userID, events: make(chan Event, 32)}
	second := &client{userID: userID, events: make(chan Event, 32)}
	svc.addClient(first)
	svc.addClient(second)

	svc.Publish(userID, Event{Type: EventRequestAssigned, Message: "lead"})

	for i, cl := range []*client{first, second} {
		select {
		case got := <-cl.events:
			if got.Type != EventRequestAssigned {
				t.Errorf("client %d event type = %q, want %q", i, got.Type, EventRequestAssigned)
			}
		default:
			t.Errorf("client %d received no event", i)
		}
	}
}

func TestPublishToOtherUserIsNotDelivered(t *testing.T) {
	svc := newTestService()
	cl := &client{userID: uuid.New(), events: make(chan Event, 32)}
	svc.addClient(cl)

	svc.Publish(uuid.New(), Event{Type: EventRequestAssigned})

	select {
	case got := <-cl.events:
		t.Errorf("unexpected event delivered: %+v", got)
	default:
	}
}

func TestPublishDoesNotBlockOnFullBuffer(t *testing.T) {
	svc := newTestService()
	userID := uuid.New()
	cl := &client{userID: userID, events: make(chan Event, 1)}
	svc.addClient(cl)

	svc.Publish(userID, Event{Type: EventRequestAssigned})
	// Buffer is now full; this must drop instead of blocking.
	svc.Publish(userID, Event{Type: EventRequestReleased})

	if got := <-cl.events; got.Type != EventRequestAssigned {
		t.Errorf("first event type = %q, want %q", got.Type, EventRequestAssigned)
	}
	select {
	case got := <-cl.events:
		t.Errorf("second event should have been dropped, got %+v", got)
	default:
	}
}

func TestRemoveClientDropsEmptyUsers(t *testing.T) {
	svc := newTestService()
	userID := uuid.New()
	cl := &client{userID: userID, events: make(chan Event, 1)}
	svc.addClient(cl)

	if got := svc.ConnectedUsers(); got != 1 {
		t.Fatalf("ConnectedUsers() = %d, want 1", got)
	}

	svc.removeClient(cl)

	if got := svc.ConnectedUsers(); got != 0 {
		t.Errorf("ConnectedUsers() after remove = %d, want 0", got)
	}
	if _, open := <-cl.events; open {
		t.Error("client channel still open after remove")
	}
}

func TestPublishDuringDisconnectDoesNotPanic(t *testing.T) {
	svc := newTestService()
	userID := uuid.New()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				svc.Publish(userID, Event{Type: EventRequestAssigned})
			}
		}
	}()

	for i := 0; i < 200; i++ {
		cl := &client{userID: userID, events: make(chan Event, 1)}
		svc.addClient(cl)
		svc.removeClient(cl)
	}

	close(done)
	wg.Wait()

	if got := svc.ConnectedUsers(); got != 0 {
		t.Errorf("ConnectedUsers() = %d, want 0", got)
	}
}

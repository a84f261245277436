// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"yaadmarket_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Auth Domain Events
// =============================================================================

// UserSignedUp is published when a new user successfully registers.
type UserSignedUp struct {
	BaseEvent
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

func (e UserSignedUp) EventName() string { return "auth.user.signed_up" }

// =============================================================================
// Agent Domain Events
// =============================================================================

// AgentRegistered is published when a user completes agent onboarding.
type AgentRegistered struct {
	BaseEvent
	AgentID  uuid.UUID `json:"agentId"`
	UserID   uuid.UUID `json:"userId"`
	FullName string    `json:"fullName"`
	Parish   string    `json:"parish"`
}

func (e AgentRegistered) EventName() string { return "agents.registered" }

// AgentVerificationReviewed is published when an admin approves or rejects
// an agent's verification documents.
type AgentVerificationReviewed struct {
	BaseEvent
	AgentID   uuid.UUID `json:"agentId"`
	UserID    uuid.UUID `json:"userId"`
	Email     string    `json:"email"`
	NewStatus string    `json:"newStatus"`
}

func (e AgentVerificationReviewed) EventName() string { return "agents.verification.reviewed" }

// AgentPaymentRecorded is published when an admin grants a payment tier after
// verifying a bank transfer proof.
type AgentPaymentRecorded struct {
	BaseEvent
	AgentID      uuid.UUID  `json:"agentId"`
	UserID       uuid.UUID  `json:"userId"`
	Tier         string     `json:"tier"`
	AccessExpiry *string    `json:"accessExpiry,omitempty"`
	ProofKey     *string    `json:"proofKey,omitempty"`
	GrantedBy    *uuid.UUID `json:"grantedBy,omitempty"`
}

func (e AgentPaymentRecorded) EventName() string { return "agents.payment.recorded" }

// =============================================================================
// Request Domain Events
// =============================================================================

// RequestCreated is published when a visitor submits a new service request.
type RequestCreated struct {
	BaseEvent
	RequestID   uuid.UUID `json:"requestId"`
	RequestType string    `json:"requestType"`
	Parish      string    `json:"parish"`
	Urgency     string    `json:"urgency"`
}

func (e RequestCreated) EventName() string { return "requests.created" }

// RequestAssigned is published when the allocation engine binds a request
// to an agent.
type RequestAssigned struct {
	BaseEvent
	RequestID   uuid.UUID `json:"requestId"`
	AgentID     uuid.UUID `json:"agentId"`
	AgentUserID uuid.UUID `json:"agentUserId"`
	Reassigned  bool      `json:"reassigned"`
}

func (e RequestAssigned) EventName() string { return "requests.assigned" }

// RequestReleased is published when an agent gives a request back to the queue.
type RequestReleased struct {
	BaseEvent
	RequestID uuid.UUID `json:"requestId"`
	AgentID   uuid.UUID `json:"agentId"`
}

func (e RequestReleased) EventName() string { return "requests.released" }

// RequestCompleted is published when an agent marks a request completed.
type RequestCompleted struct {
	BaseEvent
	RequestID uuid.UUID `json:"requestId"`
	AgentID   uuid.UUID `json:"agentId"`
}

func (e RequestCompleted) EventName() string { return "requests.completed" }

// =============================================================================
// Application Domain Events
// =============================================================================

// ApplicationSubmitted is published when an agent applies for a parish request.
type ApplicationSubmitted struct {
	BaseEvent
	ApplicationID uuid.UUID `json:"applicationId"`
	AgentID       uuid.UUID `json:"agentId"`
	RequestID     uuid.UUID `json:"requestId"`
}

func (e ApplicationSubmitted) EventName() string { return "applications.submitted" }

// ApplicationReviewed is published when an admin approves or rejects an
// agent's request application.
type ApplicationReviewed struct {
	BaseEvent
	ApplicationID uuid.UUID `json:"applicationId"`
	AgentID       uuid.UUID `json:"agentId"`
	AgentUserID   uuid.UUID `json:"agentUserId"`
	RequestID     uuid.UUID `json:"requestId"`
	NewStatus     string    `json:"newStatus"`
}

func (e ApplicationReviewed) EventName() string { return "applications.reviewed" }

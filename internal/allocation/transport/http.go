// Package transport defines the wire types for the allocation module.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// ManualAssignRequest is the admin payload for assigning a specific agent.
type ManualAssignRequest struct {
	AgentID string `json:"agentId" validate:"required,uuid"`
}

// AssignmentResponse reports the outcome of an allocation attempt.
type AssignmentResponse struct {
	RequestID  uuid.UUID  `json:"requestId"`
	Assigned   bool       `json:"assigned"`
	AgentID    *uuid.UUID `json:"agentId,omitempty"`
	AssignedAt *time.Time `json:"assignedAt,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// ReleaseResponse reports a release and the follow-up reassignment, if any.
type ReleaseResponse struct {
	RequestID     uuid.UUID  `json:"requestId"`
	Released      bool       `json:"released"`
	ReleasedCount int        `json:"releasedCount"`
	Reassigned    bool       `json:"reassigned"`
	NewAgentID    *uuid.UUID `json:"newAgentId,omitempty"`
}

// QueueAgentResponse is one row of the admin queue snapshot.
type QueueAgentResponse struct {
	AgentID               uuid.UUID  `json:"agentId"`
	UserID                uuid.UUID  `json:"userId"`
	Position              int        `json:"position"`
	PaymentStatus         string     `json:"paymentStatus"`
	AccessExpiry          *time.Time `json:"accessExpiry,omitempty"`
	LastRequestAssignedAt *time.Time `json:"lastRequestAssignedAt,omitempty"`
}

// QueueResponse is the ranked rotation of agents currently eligible for leads.
type QueueResponse struct {
	Agents []QueueAgentResponse `json:"agents"`
	Total  int                  `json:"total"`
}

// DashboardResponse is the admin allocation overview.
type DashboardResponse struct {
	TotalRequests    int        `json:"totalRequests"`
	OpenUnassigned   int        `json:"openUnassigned"`
	Assigned         int        `json:"assigned"`
	InProgress       int        `json:"inProgress"`
	Completed        int        `json:"completed"`
	Cancelled        int        `json:"cancelled"`
	EligibleAgents   int        `json:"eligibleAgents"`
	TotalReleases    int        `json:"totalReleases"`
	OldestUnassigned *time.Time `json:"oldestUnassigned,omitempty"`
	AssignedLast24h  int        `json:"assignedLast24h"`
}

// SweepResponse summarizes one pass over the unassigned backlog.
type SweepResponse struct {
	Scanned  int `json:"scanned"`
	Assigned int `json:"assigned"`
	Skipped  int `json:"skipped"`
}

// Package transport defines request/response DTOs for the applications API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// ApplyRequest is the body for an agent applying for an open request.
type ApplyRequest struct {
	Message *string `json:"message" validate:"omitempty,max=1000"`
}

// ReviewApplicationRequest is the admin review decision.
type ReviewApplicationRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

// ListApplicationsRequest carries admin list filters.
type ListApplicationsRequest struct {
	Status   string `form:"status" validate:"omitempty,oneof=pending approved rejected"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ApplicationResponse is the API representation of an application.
type ApplicationResponse struct {
	ID         uuid.UUID  `json:"id"`
	AgentID    uuid.UUID  `json:"agentId"`
	RequestID  uuid.UUID  `json:"requestId"`
	Status     string     `json:"status"`
	Message    *string    `json:"message,omitempty"`
	AppliedAt  time.Time  `json:"appliedAt"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
	ReviewedBy *uuid.UUID `json:"reviewedBy,omitempty"`
}

// ApplicationListResponse is a paginated list of applications.
type ApplicationListResponse struct {
	Applications []ApplicationResponse `json:"applications"`
	Total        int                   `json:"total"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"pageSize"`
}

// ReviewApplicationResponse reports the review outcome. Assigned is set when
// an approval handed the request to the applicant.
type ReviewApplicationResponse struct {
	Application ApplicationResponse `json:"application"`
	Assigned    bool                `json:"assigned"`
	Reason      string              `json:"reason,omitempty"`
}

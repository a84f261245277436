// Package transport defines the wire types for the requests module.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateRequestRequest is the public intake payload for a new service request.
type CreateRequestRequest struct {
	RequesterName  string  `json:"requesterName" validate:"required,min=2,max=120"`
	RequesterPhone string  `json:"requesterPhone" validate:"required,min=7,max=32"`
	RequesterEmail *string `json:"requesterEmail" validate:"omitempty,email"`
	RequestType    string  `json:"requestType" validate:"required,oneof=buy rent sell lease valuation"`
	Parish         string  `json:"parish" validate:"required,min=2,max=64"`
	PropertyType   string  `json:"propertyType" validate:"required,oneof=house apartment townhouse land commercial"`
	BudgetMin      *int64  `json:"budgetMin" validate:"omitempty,min=0"`
	BudgetMax      *int64  `json:"budgetMax" validate:"omitempty,min=0"`
	Bedrooms       *int    `json:"bedrooms" validate:"omitempty,min=0,max=20"`
	Urgency        string  `json:"urgency" validate:"omitempty,oneof=low normal high urgent"`
	Description    *string `json:"description" validate:"omitempty,max=2000"`
}

// ListRequestsRequest carries admin list filters via query params.
type ListRequestsRequest struct {
	Status    *string `form:"status"`
	Parish    *string `form:"parish"`
	Type      *string `form:"type"`
	Search    string  `form:"search"`
	Page      int     `form:"page"`
	PageSize  int     `form:"pageSize"`
	SortBy    string  `form:"sortBy"`
	SortOrder string  `form:"sortOrder"`
}

// AgentListRequest carries the filters for an agent's own request list.
type AgentListRequest struct {
	Status   *string `form:"status"`
	Page     int     `form:"page"`
	PageSize int     `form:"pageSize"`
}

// FeedRequest carries the marketplace feed filters.
type FeedRequest struct {
	Parish   string `form:"parish" validate:"required"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

// CommentRequest is an agent's note on one of their requests.
type CommentRequest struct {
	Comment string `json:"comment" validate:"required,min=1,max=2000"`
}

// RemoveRequestRequest is the admin payload for pulling a request.
type RemoveRequestRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

// RequestResponse is the full request representation for admins and the
// assigned agent.
type RequestResponse struct {
	ID               uuid.UUID  `json:"id"`
	RequesterName    string     `json:"requesterName"`
	RequesterPhone   string     `json:"requesterPhone"`
	RequesterEmail   *string    `json:"requesterEmail,omitempty"`
	RequestType      string     `json:"requestType"`
	Parish           string     `json:"parish"`
	PropertyType     string     `json:"propertyType"`
	BudgetMin        *int64     `json:"budgetMin,omitempty"`
	BudgetMax        *int64     `json:"budgetMax,omitempty"`
	Bedrooms         *int       `json:"bedrooms,omitempty"`
	Urgency          string     `json:"urgency"`
	Description      *string    `json:"description,omitempty"`
	Status           string     `json:"status"`
	AssignedAgentID  *uuid.UUID `json:"assignedAgentId,omitempty"`
	AssignedAt       *time.Time `json:"assignedAt,omitempty"`
	IsContacted      bool       `json:"isContacted"`
	Comment          *string    `json:"comment,omitempty"`
	CommentUpdatedAt *time.Time `json:"commentUpdatedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	ReleasedCount    int        `json:"releasedCount"`
	RemovedReason    *string    `json:"removedReason,omitempty"`
	WhatsAppLink     string     `json:"whatsappLink,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// FeedItemResponse is the marketplace view of an open request. Requester
// contact details are withheld until the request is assigned.
type FeedItemResponse struct {
	ID           uuid.UUID `json:"id"`
	RequestType  string    `json:"requestType"`
	Parish       string    `json:"parish"`
	PropertyType string    `json:"propertyType"`
	BudgetMin    *int64    `json:"budgetMin,omitempty"`
	BudgetMax    *int64    `json:"budgetMax,omitempty"`
	Bedrooms     *int      `json:"bedrooms,omitempty"`
	Urgency      string    `json:"urgency"`
	Description  *string   `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RequestListResponse is a paginated list of requests.
type RequestListResponse struct {
	Requests []RequestResponse `json:"requests"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

// FeedResponse is a paginated marketplace feed.
type FeedResponse struct {
	Requests []FeedItemResponse `json:"requests"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
}

// CreateRequestResponse acknowledges intake and reports whether an agent
// was available right away.
type CreateRequestResponse struct {
	Request  RequestResponse `json:"request"`
	Assigned bool            `json:"assigned"`
}

package service

import (
	reqdomain "yaadmarket_backend/internal/requests/domain"
	"yaadmarket_backend/internal/requests/repository"
	"yaadmarket_backend/internal/requests/transport"
	"yaadmarket_backend/internal/whatsapp"
)

func toResponse(req repository.Request) transport.RequestResponse {
	resp := transport.RequestResponse{
		ID:               req.ID,
		RequesterName:    req.RequesterName,
		RequesterPhone:   req.RequesterPhone,
		RequesterEmail:   req.RequesterEmail,
		RequestType:      req.RequestType,
		Parish:           req.Parish,
		PropertyType:     req.PropertyType,
		BudgetMin:        req.BudgetMin,
		BudgetMax:        req.BudgetMax,
		Bedrooms:         req.Bedrooms,
		Urgency:          req.Urgency,
		Description:      req.Description,
		Status:           req.Status,
		AssignedAgentID:  req.AssignedAgentID,
		AssignedAt:       req.AssignedAt,
		IsContacted:      req.IsContacted,
		Comment:          req.Comment,
		CommentUpdatedAt: req.CommentUpdatedAt,
		CompletedAt:      req.CompletedAt,
		ReleasedCount:    req.ReleasedCount,
		RemovedReason:    req.RemovedReason,
		CreatedAt:        req.CreatedAt,
		UpdatedAt:        req.UpdatedAt,
	}

	// A held request gets a one-tap contact link for the agent.
	if reqdomain.Held(req.Status) {
		resp.WhatsAppLink = whatsapp.ContactLink(req.RequesterPhone, whatsapp.RequesterGreeting(req.RequesterName, req.Parish))
	}

	return resp
}

func toListResponse(items []repository.Request, total int, page int, pageSize int) transport.RequestListResponse {
	requests := make([]transport.RequestResponse, 0, len(items))
	for _, item := range items {
		requests = append(requests, toResponse(item))
	}
	return transport.RequestListResponse{
		Requests: requests,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
}

func normalizePage(page int, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

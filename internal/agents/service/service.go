// Package service implements agent onboarding, verification review, and
// paid access management.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"yaadmarket_backend/internal/adapters/storage"
	"yaadmarket_backend/internal/agents/domain"
	"yaadmarket_backend/internal/agents/repository"
	"yaadmarket_backend/internal/agents/transport"
	allocdomain "yaadmarket_backend/internal/allocation/domain"
	"yaadmarket_backend/internal/events"
	"yaadmarket_backend/internal/whatsapp"
	"yaadmarket_backend/platform/apperr"
	"yaadmarket_backend/platform/config"
	"yaadmarket_backend/platform/logger"
	"yaadmarket_backend/platform/phone"
)

// Store is the persistence surface for agents.
type Store interface {
	Create(ctx context.Context, params repository.CreateParams) (repository.Agent, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Agent, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (repository.Agent, error)
	SetVerificationDoc(ctx context.Context, id uuid.UUID, fileKey string) (repository.Agent, error)
	ReviewVerification(ctx context.Context, id uuid.UUID, status string, notes *string, reviewedBy uuid.UUID) (repository.Agent, error)
	SetPaymentProof(ctx context.Context, id uuid.UUID, fileKey string) (repository.Agent, error)
	RecordPayment(ctx context.Context, id uuid.UUID, tier string, accessExpiry *time.Time) (repository.Agent, error)
	List(ctx context.Context, params repository.ListParams) ([]repository.Agent, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserDirectory resolves user IDs to contact details for notifications.
type UserDirectory interface {
	GetEmailByID(ctx context.Context, userID uuid.UUID) (string, error)
}

// StorageConfig is the slice of configuration the agents service needs for
// uploads and payment instructions.
type StorageConfig interface {
	config.MinIOConfig
	config.PaymentConfig
}

var _ Store = (*repository.Repository)(nil)

// Service provides business logic for agents.
type Service struct {
	repo    Store
	storage storage.Service
	users   UserDirectory
	cfg     StorageConfig
	bus     events.Bus
	log     *logger.Logger
	now     func() time.Time
}

// New creates a new agents service. storage may be nil when MinIO is not
// configured; upload endpoints then return an error.
func New(repo Store, store storage.Service, users UserDirectory, cfg StorageConfig, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, storage: store, users: users, cfg: cfg, bus: bus, log: log, now: time.Now}
}

// Register creates the agent profile for a signed-in user.
func (s *Service) Register(ctx context.Context, userID uuid.UUID, req transport.RegisterAgentRequest) (transport.AgentResponse, error) {
	if !domain.ValidParish(req.Parish) {
		return transport.AgentResponse{}, apperr.Validation("unknown parish")
	}

	normalized, err := phone.NormalizeE164(req.Phone)
	if err != nil {
		return transport.AgentResponse{}, apperr.Validation("invalid phone number")
	}

	agent, err := s.repo.Create(ctx, repository.CreateParams{
		UserID:        userID,
		FullName:      req.FullName,
		Phone:         normalized,
		Parish:        req.Parish,
		LicenseNumber: req.LicenseNumber,
		Bio:           req.Bio,
	})
	if errors.Is(err, repository.ErrAlreadyRegistered) {
		return transport.AgentResponse{}, apperr.Conflict("agent profile already exists")
	}
	if err != nil {
		return transport.AgentResponse{}, apperr.Wrap(apperr.KindInternal, "failed to register agent", err)
	}

	s.log.Info("agent registered", "agent_id", agent.ID, "parish", agent.Parish)

	s.bus.Publish(ctx, events.AgentRegistered{
		BaseEvent: events.NewBaseEvent(),
		AgentID:   agent.ID,
		UserID:    userID,
		FullName:  agent.FullName,
		Parish:    agent.Parish,
	})

	return toResponse(agent), nil
}

// GetMe returns the acting user's agent profile.
func (s *Service) GetMe(ctx context.Context, userID uuid.UUID) (transport.AgentResponse, error) {
	agent, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.AgentResponse{}, apperr.NotFound("agent profile not found")
	}
	if err != nil {
		return transport.AgentResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load agent", err)
	}
	return toResponse(agent), nil
}

// GetByUserID resolves a user to the allocation view of their agent record.
// This is the directory other modules use.
func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (allocdomain.Agent, error) {
	agent, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return allocdomain.Agent{}, err
	}
	return allocdomain.Agent{
		ID:                    agent.ID,
		UserID:                agent.UserID,
		VerificationStatus:    agent.VerificationStatus,
		PaymentStatus:         agent.PaymentStatus,
		AccessExpiry:          agent.AccessExpiry,
		LastRequestAssignedAt: agent.LastRequestAssignedAt,
	}, nil
}

// GetAgent resolves an agent ID to the allocation view of the record.
func (s *Service) GetAgent(ctx context.Context, agentID uuid.UUID) (allocdomain.Agent, error) {
	agent, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		return allocdomain.Agent{}, err
	}
	return allocdomain.Agent{
		ID:                    agent.ID,
		UserID:                agent.UserID,
		VerificationStatus:    agent.VerificationStatus,
		PaymentStatus:         agent.PaymentStatus,
		AccessExpiry:          agent.AccessExpiry,
		LastRequestAssignedAt: agent.LastRequestAssignedAt,
	}, nil
}

// Plans returns the public pricing tiers.
func (s *Service) Plans() transport.PlanListResponse {
	plans := domain.Plans()
	out := make([]transport.PlanResponse, 0, len(plans))
	for _, plan := range plans {
		out = append(out, transport.PlanResponse{
			ID:           plan.ID,
			Name:         plan.Name,
			DurationDays: plan.DurationDays,
			PriceJMD:     plan.PriceJMD,
			Description:  plan.Description,
		})
	}
	return transport.PlanListResponse{Plans: out}
}

// PaymentInstructions builds the bank transfer details for a tier, with a
// WhatsApp deep link and QR code for submitting the proof.
func (s *Service) PaymentInstructions(ctx context.Context, userID uuid.UUID, tier string) (transport.PaymentInstructionsResponse, error) {
	if !domain.ValidTier(tier) || !allocdomain.IsPaidTier(tier) {
		return transport.PaymentInstructionsResponse{}, apperr.Validation("unknown or free tier")
	}

	agent, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.PaymentInstructionsResponse{}, apperr.NotFound("agent profile not found")
	}
	if err != nil {
		return transport.PaymentInstructionsResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load agent", err)
	}

	link := whatsapp.ContactLink(s.cfg.GetWhatsAppBusinessNumber(), whatsapp.PaymentMessage(agent.FullName, tier))

	var qrBase64 string
	if link != "" {
		png, err := qrcode.Encode(link, qrcode.Medium, 256)
		if err != nil {
			s.log.Warn("failed to render payment QR code", "error", err)
		} else {
			qrBase64 = base64.StdEncoding.EncodeToString(png)
		}
	}

	return transport.PaymentInstructionsResponse{
		Tier:              tier,
		PriceJMD:          domain.TierPriceJMD(tier),
		BankName:          s.cfg.GetBankName(),
		BankAccountName:   s.cfg.GetBankAccountName(),
		BankAccountNumber: s.cfg.GetBankAccountNumber(),
		WhatsAppNumber:    s.cfg.GetWhatsAppBusinessNumber(),
		WhatsAppLink:      link,
		WhatsAppQRCode:    qrBase64,
	}, nil
}

// RequestVerificationUpload returns a presigned slot for a verification document.
func (s *Service) RequestVerificationUpload(ctx context.Context, userID uuid.UUID, req transport.VerificationUploadRequest) (transport.UploadURLResponse, error) {
	agent, err := s.resolveOwn(ctx, userID)
	if err != nil {
		return transport.UploadURLResponse{}, err
	}
	return s.presignUpload(ctx, s.cfg.GetMinioBucketVerificationDocs(), agent.ID.String()+"/docs", req.FileName, req.ContentType, req.SizeBytes)
}

// ConfirmVerificationDoc records the uploaded document and queues the agent
// for review.
func (s *Service) ConfirmVerificationDoc(ctx context.Context, userID uuid.UUID, req transport.ConfirmVerificationDocRequest) (transport.AgentResponse, error) {
	agent, err := s.resolveOwn(ctx, userID)
	if err != nil {
		return transport.AgentResponse{}, err
	}

	updated, err := s.repo.SetVerificationDoc(ctx, agent.ID, req.FileKey)
	if err != nil {
		return transport.AgentResponse{}, apperr.Wrap(apperr.KindInternal, "failed to record document", err)
	}
	return toResponse(updated), nil
}

// RequestPaymentProofUpload returns a presigned slot for a transfer proof.
func (s *Service) RequestPaymentProofUpload(ctx context.Context, userID uuid.UUID, req transport.PaymentProofUploadRequest) (transport.UploadURLResponse, error) {
	agent, err := s.resolveOwn(ctx, userID)
	if err != nil {
		return transport.UploadURLResponse{}, err
	}
	return s.presignUpload(ctx, s.cfg.GetMinioBucketPaymentProofs(), agent.ID.String()+"/proofs", req.FileName, req.ContentType, req.SizeBytes)
}

// ConfirmPaymentProof records the uploaded proof key for admin review.
func (s *Service) ConfirmPaymentProof(ctx context.Context, userID uuid.UUID, req transport.ConfirmVerificationDocRequest) (transport.AgentResponse, error) {
	agent, err := s.resolveOwn(ctx, userID)
	if err != nil {
		return transport.AgentResponse{}, err
	}

	updated, err := s.repo.SetPaymentProof(ctx, agent.ID, req.FileKey)
	if err != nil {
		return transport.AgentResponse{}, apperr.Wrap(apperr.KindInternal, "failed to record proof", err)
	}
	return toResponse(updated), nil
}

// ReviewVerification records an admin's approve/reject decision.
func (s *Service) ReviewVerification(ctx context.Context, adminID uuid.UUID, agentID uuid.UUID, req transport.ReviewVerificationRequest) (transport.AgentResponse, error) {
	agent, err := s.repo.ReviewVerification(ctx, agentID, req.Status, req.Notes, adminID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.AgentResponse{}, apperr.NotFound("agent not found")
	}
	if err != nil {
		return transport.AgentResponse{}, apperr.Wrap(apperr.KindInternal, "failed to review verification", err)
	}

	s.log.Info("agent verification reviewed", "agent_id", agentID, "status", req.Status, "reviewed_by", adminID)

	email, err := s.users.GetEmailByID(ctx, agent.UserID)
	if err != nil {
		s.log.Warn("failed to resolve agent email", "agent_id", agentID, "error", err)
	}

	s.bus.Publish(ctx, events.AgentVerificationReviewed{
		BaseEvent: events.NewBaseEvent(),
		AgentID:   agentID,
		UserID:    agent.UserID,
		Email:     email,
		NewStatus: req.Status,
	})

	return toResponse(agent), nil
}

// RecordPayment grants a tier after the admin has checked the transfer
// proof. The access window starts now.
func (s *Service) RecordPayment(ctx context.Context, adminID uuid.UUID, agentID uuid.UUID, req transport.RecordPaymentRequest) (transport.AgentResponse, error) {
	now := s.now().UTC()
	accessExpiry := domain.AccessExpiryFor(req.Tier, now)

	agent, err := s.repo.RecordPayment(ctx, agentID, req.Tier, accessExpiry)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.AgentResponse{}, apperr.NotFound("agent not found")
	}
	if err != nil {
		return transport.AgentResponse{}, apperr.Wrap(apperr.KindInternal, "failed to record payment", err)
	}

	s.log.Info("agent payment recorded", "agent_id", agentID, "tier", req.Tier, "granted_by", adminID)

	var expiryStr *string
	if accessExpiry != nil {
		formatted := accessExpiry.Format(time.RFC3339)
		expiryStr = &formatted
	}

	s.bus.Publish(ctx, events.AgentPaymentRecorded{
		BaseEvent:    events.NewBaseEvent(),
		AgentID:      agentID,
		UserID:       agent.UserID,
		Tier:         req.Tier,
		AccessExpiry: expiryStr,
		ProofKey:     req.ProofKey,
		GrantedBy:    &adminID,
	})

	return toResponse(agent), nil
}

// List returns the filtered admin agent list.
func (s *Service) List(ctx context.Context, req transport.ListAgentsRequest) (transport.AgentListResponse, error) {
	page := req.Page
	pageSize := req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	agents, total, err := s.repo.List(ctx, repository.ListParams{
		VerificationStatus: req.VerificationStatus,
		PaymentStatus:      req.PaymentStatus,
		Parish:             req.Parish,
		Search:             req.Search,
		Offset:             (page - 1) * pageSize,
		Limit:              pageSize,
	})
	if err != nil {
		return transport.AgentListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list agents", err)
	}

	out := make([]transport.AgentResponse, 0, len(agents))
	for _, agent := range agents {
		out = append(out, toResponse(agent))
	}

	return transport.AgentListResponse{Agents: out, Total: total, Page: page, PageSize: pageSize}, nil
}

// GetByID returns one agent (admin).
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.AgentResponse, error) {
	agent, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.AgentResponse{}, apperr.NotFound("agent not found")
	}
	if err != nil {
		return transport.AgentResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load agent", err)
	}
	return toResponse(agent), nil
}

// DocumentURL returns a presigned download link for an agent's verification
// document (admin).
func (s *Service) DocumentURL(ctx context.Context, agentID uuid.UUID) (transport.UploadURLResponse, error) {
	if s.storage == nil {
		return transport.UploadURLResponse{}, apperr.Internal("file storage is not configured")
	}

	agent, err := s.repo.GetByID(ctx, agentID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.UploadURLResponse{}, apperr.NotFound("agent not found")
	}
	if err != nil {
		return transport.UploadURLResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load agent", err)
	}
	if agent.VerificationDocKey == nil {
		return transport.UploadURLResponse{}, apperr.NotFound("agent has no verification document")
	}

	presigned, err := s.storage.GenerateDownloadURL(ctx, s.cfg.GetMinioBucketVerificationDocs(), *agent.VerificationDocKey)
	if err != nil {
		return transport.UploadURLResponse{}, apperr.Wrap(apperr.KindInternal, "failed to presign download", err)
	}

	return transport.UploadURLResponse{URL: presigned.URL, FileKey: presigned.FileKey, ExpiresAt: presigned.ExpiresAt}, nil
}

// Remove soft-deletes an agent (admin). Their assigned requests go back to
// the pool through the allocation engine, not here.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("agent not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to remove agent", err)
	}

	s.log.Info("agent removed", "agent_id", id)
	return nil
}

func (s *Service) resolveOwn(ctx context.Context, userID uuid.UUID) (repository.Agent, error) {
	agent, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Agent{}, apperr.NotFound("agent profile not found")
	}
	if err != nil {
		return repository.Agent{}, apperr.Wrap(apperr.KindInternal, "failed to load agent", err)
	}
	return agent, nil
}

func (s *Service) presignUpload(ctx context.Context, bucket, folder, fileName, contentType string, sizeBytes int64) (transport.UploadURLResponse, error) {
	if s.storage == nil {
		return transport.UploadURLResponse{}, apperr.Internal("file storage is not configured")
	}

	presigned, err := s.storage.GenerateUploadURL(ctx, bucket, folder, fileName, contentType, sizeBytes)
	if err != nil {
		return transport.UploadURLResponse{}, apperr.Validation(err.Error())
	}

	return transport.UploadURLResponse{URL: presigned.URL, FileKey: presigned.FileKey, ExpiresAt: presigned.ExpiresAt}, nil
}

func toResponse(agent repository.Agent) transport.AgentResponse {
	return transport.AgentResponse{
		ID:                    agent.ID,
		UserID:                agent.UserID,
		FullName:              agent.FullName,
		Phone:                 agent.Phone,
		Parish:                agent.Parish,
		LicenseNumber:         agent.LicenseNumber,
		Bio:                   agent.Bio,
		VerificationStatus:    agent.VerificationStatus,
		VerificationDocKey:    agent.VerificationDocKey,
		VerificationNotes:     agent.VerificationNotes,
		PaymentStatus:         agent.PaymentStatus,
		AccessExpiry:          agent.AccessExpiry,
		LastRequestAssignedAt: agent.LastRequestAssignedAt,
		CreatedAt:             agent.CreatedAt,
		UpdatedAt:             agent.UpdatedAt,
	}
}

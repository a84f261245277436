// Package transport defines the wire types for the agents module.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// RegisterAgentRequest is the onboarding payload for a signed-in user.
type RegisterAgentRequest struct {
	FullName      string  `json:"fullName" validate:"required,min=2,max=120"`
	Phone         string  `json:"phone" validate:"required,min=7,max=32"`
	Parish        string  `json:"parish" validate:"required"`
	LicenseNumber *string `json:"licenseNumber" validate:"omitempty,max=64"`
	Bio           *string `json:"bio" validate:"omitempty,max=2000"`
}

// VerificationUploadRequest asks for a presigned URL for a verification document.
type VerificationUploadRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required"`
	SizeBytes   int64  `json:"sizeBytes" validate:"required,min=1"`
}

// ConfirmVerificationDocRequest records the uploaded document key.
type ConfirmVerificationDocRequest struct {
	FileKey string `json:"fileKey" validate:"required,max=512"`
}

// ReviewVerificationRequest is the admin approve/reject decision.
type ReviewVerificationRequest struct {
	Status string  `json:"status" validate:"required,oneof=approved rejected"`
	Notes  *string `json:"notes" validate:"omitempty,max=1000"`
}

// RecordPaymentRequest is the admin payload for granting a paid tier after
// verifying a bank transfer.
type RecordPaymentRequest struct {
	Tier     string  `json:"tier" validate:"required,oneof=free 7-day 30-day 90-day"`
	ProofKey *string `json:"proofKey" validate:"omitempty,max=512"`
}

// PaymentProofUploadRequest asks for a presigned URL for a transfer proof.
type PaymentProofUploadRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required"`
	SizeBytes   int64  `json:"sizeBytes" validate:"required,min=1"`
}

// ListAgentsRequest carries admin list filters via query params.
type ListAgentsRequest struct {
	VerificationStatus *string `form:"verificationStatus"`
	PaymentStatus      *string `form:"paymentStatus"`
	Parish             *string `form:"parish"`
	Search             string  `form:"search"`
	Page               int     `form:"page"`
	PageSize           int     `form:"pageSize"`
}

// AgentResponse is the full agent representation.
type AgentResponse struct {
	ID                    uuid.UUID  `json:"id"`
	UserID                uuid.UUID  `json:"userId"`
	FullName              string     `json:"fullName"`
	Phone                 string     `json:"phone"`
	Parish                string     `json:"parish"`
	LicenseNumber         *string    `json:"licenseNumber,omitempty"`
	Bio                   *string    `json:"bio,omitempty"`
	VerificationStatus    string     `json:"verificationStatus"`
	VerificationDocKey    *string    `json:"verificationDocKey,omitempty"`
	VerificationNotes     *string    `json:"verificationNotes,omitempty"`
	PaymentStatus         string     `json:"paymentStatus"`
	AccessExpiry          *time.Time `json:"accessExpiry,omitempty"`
	LastRequestAssignedAt *time.Time `json:"lastRequestAssignedAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// AgentListResponse is a paginated list of agents.
type AgentListResponse struct {
	Agents   []AgentResponse `json:"agents"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

// PlanResponse is one advertised access tier.
type PlanResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DurationDays int    `json:"durationDays"`
	PriceJMD     int64  `json:"priceJmd"`
	Description  string `json:"description"`
}

// PlanListResponse is the public pricing page payload.
type PlanListResponse struct {
	Plans []PlanResponse `json:"plans"`
}

// PaymentInstructionsResponse tells an agent how to pay for a tier: bank
// transfer details plus a WhatsApp deep link (and QR render of it) for
// submitting the proof.
type PaymentInstructionsResponse struct {
	Tier              string `json:"tier"`
	PriceJMD          int64  `json:"priceJmd"`
	BankName          string `json:"bankName"`
	BankAccountName   string `json:"bankAccountName"`
	BankAccountNumber string `json:"bankAccountNumber"`
	WhatsAppNumber    string `json:"whatsappNumber"`
	WhatsAppLink      string `json:"whatsappLink"`
	WhatsAppQRCode    string `json:"whatsappQrCode"` // base64-encoded PNG
}

// UploadURLResponse returns a presigned upload slot.
type UploadURLResponse struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

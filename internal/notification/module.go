// Package notification reacts to domain events by notifying the people who
// care: in-app rows for the bell icon, SSE pushes to open sessions, email
// for the slower channel, and WhatsApp alerts to the business number.
// Publishing modules never talk to a delivery channel directly.
package notification

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"yaadmarket_backend/internal/email"
	"yaadmarket_backend/internal/events"
	apphttp "yaadmarket_backend/internal/http"
	"yaadmarket_backend/internal/notification/handler"
	"yaadmarket_backend/internal/notification/inapp"
	"yaadmarket_backend/internal/notification/sse"
	"yaadmarket_backend/internal/whatsapp"
	"yaadmarket_backend/platform/config"
	"yaadmarket_backend/platform/httpkit"
	"yaadmarket_backend/platform/logger"
)

// Module wires the notification bounded context.
type Module struct {
	pool         *pgxpool.Pool
	sender       email.Sender
	wa           *whatsapp.Client
	cfg          config.WhatsAppConfig
	inAppService *inapp.Service
	sseService   *sse.Service
	handler      *handler.HTTPHandler
	log          *logger.Logger
}

var _ apphttp.Module = (*Module)(nil)
var _ events.Handler = (*Module)(nil)

// New constructs the notification module. sender must not be nil; pass
// email.NoopSender when delivery is disabled. wa may be nil.
func New(pool *pgxpool.Pool, sender email.Sender, wa *whatsapp.Client, cfg config.WhatsAppConfig, log *logger.Logger) *Module {
	sseService := sse.New(log)
	inAppService := inapp.NewService(inapp.NewRepository(pool), sseService, log)

	return &Module{
		pool:         pool,
		sender:       sender,
		wa:           wa,
		cfg:          cfg,
		inAppService: inAppService,
		sseService:   sseService,
		handler:      handler.NewHTTPHandler(inAppService),
		log:          log,
	}
}

// Name returns the module name.
func (m *Module) Name() string { return "notification" }

// InAppService exposes in-app delivery for direct use by other modules.
func (m *Module) InAppService() *inapp.Service { return m.inAppService }

// SSE exposes the stream service, mainly for graceful shutdown.
func (m *Module) SSE() *sse.Service { return m.sseService }

// RegisterRoutes mounts the notification endpoints and the SSE stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	grp := ctx.Protected.Group("/notifications")
	m.handler.RegisterRoutes(grp)
	grp.GET("/stream", m.sseService.Handler(func(c *gin.Context) (uuid.UUID, bool) {
		identity := httpkit.GetIdentity(c)
		if !identity.IsAuthenticated() {
			return uuid.Nil, false
		}
		return identity.UserID(), true
	}))
}

// RegisterHandlers subscribes the module to the domain events it reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.UserSignedUp{}.EventName(), m)
	bus.Subscribe(events.RequestCreated{}.EventName(), m)
	bus.Subscribe(events.RequestAssigned{}.EventName(), m)
	bus.Subscribe(events.RequestReleased{}.EventName(), m)
	bus.Subscribe(events.AgentVerificationReviewed{}.EventName(), m)
	bus.Subscribe(events.AgentPaymentRecorded{}.EventName(), m)
	bus.Subscribe(events.ApplicationSubmitted{}.EventName(), m)
	bus.Subscribe(events.ApplicationReviewed{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.UserSignedUp:
		return m.handleUserSignedUp(ctx, e)
	case events.RequestCreated:
		return m.handleRequestCreated(ctx, e)
	case events.RequestAssigned:
		return m.handleRequestAssigned(ctx, e)
	case events.RequestReleased:
		return m.handleRequestReleased(ctx, e)
	case events.AgentVerificationReviewed:
		return m.handleVerificationReviewed(ctx, e)
	case events.AgentPaymentRecorded:
		return m.handlePaymentRecorded(ctx, e)
	case events.ApplicationSubmitted:
		return m.handleApplicationSubmitted(ctx, e)
	case events.ApplicationReviewed:
		return m.handleApplicationReviewed(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleUserSignedUp(ctx context.Context, e events.UserSignedUp) error {
	if err := m.sender.SendWelcomeEmail(ctx, e.Email); err != nil {
		m.log.Error("welcome email failed", "error", err, "userId", e.UserID)
	}
	return nil
}

func (m *Module) handleRequestCreated(ctx context.Context, e events.RequestCreated) error {
	m.notifyAdmins(ctx, inapp.SendParams{
		Title:        "New client request",
		Content:      fmt.Sprintf("New %s request in %s (%s urgency).", e.RequestType, e.Parish, e.Urgency),
		ResourceID:   &e.RequestID,
		ResourceType: "request",
	})

	if m.wa != nil && m.cfg.GetWhatsAppBusinessNumber() != "" {
		msg := fmt.Sprintf("YaadMarket: new %s request in %s (%s urgency).", e.RequestType, e.Parish, e.Urgency)
		if err := m.wa.SendMessage(ctx, m.cfg.GetWhatsAppBusinessNumber(), msg); err != nil {
			m.log.Warn("business whatsapp alert failed", "error", err, "requestId", e.RequestID)
		}
	}
	return nil
}

func (m *Module) handleRequestAssigned(ctx context.Context, e events.RequestAssigned) error {
	summary := m.requestSummary(ctx, e.RequestID)

	title := "New request assigned to you"
	if e.Reassigned {
		title = "A released request was assigned to you"
	}

	_ = m.inAppService.Send(ctx, inapp.SendParams{
		UserID:       e.AgentUserID,
		Title:        title,
		Content:      fmt.Sprintf("A %s request in %s is waiting for you.", summary.requestType, summary.parish),
		ResourceID:   &e.RequestID,
		ResourceType: "request",
		Category:     "success",
	})

	m.sseService.Publish(e.AgentUserID, sse.Event{
		Type:      sse.EventRequestAssigned,
		RequestID: e.RequestID,
		Message:   title,
	})

	if addr := m.userEmail(ctx, e.AgentUserID); addr != "" {
		if err := m.sender.SendRequestAssignedEmail(ctx, addr, summary.parish, summary.requestType); err != nil {
			m.log.Error("assignment email failed", "error", err, "requestId", e.RequestID)
		}
	}

	if m.wa != nil {
		if phoneNumber := m.agentPhone(ctx, e.AgentID); phoneNumber != "" {
			msg := fmt.Sprintf("YaadMarket: a %s request in %s has been assigned to you. Log in to view the client's details.",
				summary.requestType, summary.parish)
			if err := m.wa.SendMessage(ctx, phoneNumber, msg); err != nil {
				m.log.Warn("agent whatsapp alert failed", "error", err, "agentId", e.AgentID)
			}
		}
	}
	return nil
}

func (m *Module) handleRequestReleased(ctx context.Context, e events.RequestReleased) error {
	m.notifyAdmins(ctx, inapp.SendParams{
		Title:        "Request released",
		Content:      "An agent released a request back into the queue.",
		ResourceID:   &e.RequestID,
		ResourceType: "request",
		Category:     "warning",
	})
	return nil
}

func (m *Module) handleVerificationReviewed(ctx context.Context, e events.AgentVerificationReviewed) error {
	approved := e.NewStatus == "approved"

	title := "Verification approved"
	content := "You are verified. Pick an access plan to start receiving client requests."
	category := "success"
	if !approved {
		title = "Verification rejected"
		content = "Your verification documents were not approved. Upload a new document to try again."
		category = "error"
	}

	_ = m.inAppService.Send(ctx, inapp.SendParams{
		UserID:       e.UserID,
		Title:        title,
		Content:      content,
		ResourceID:   &e.AgentID,
		ResourceType: "agent",
		Category:     category,
	})

	m.sseService.Publish(e.UserID, sse.Event{
		Type:    sse.EventVerificationReviewed,
		Message: title,
	})

	if e.Email != "" {
		if err := m.sender.SendVerificationReviewedEmail(ctx, e.Email, e.NewStatus, ""); err != nil {
			m.log.Error("verification email failed", "error", err, "agentId", e.AgentID)
		}
	}
	return nil
}

func (m *Module) handlePaymentRecorded(ctx context.Context, e events.AgentPaymentRecorded) error {
	expiry := ""
	if e.AccessExpiry != nil {
		expiry = *e.AccessExpiry
	}

	_ = m.inAppService.Send(ctx, inapp.SendParams{
		UserID:       e.UserID,
		Title:        "Payment confirmed",
		Content:      fmt.Sprintf("Your %s plan is active. You are now in the rotation for new requests.", e.Tier),
		ResourceID:   &e.AgentID,
		ResourceType: "agent",
		Category:     "success",
	})

	m.sseService.Publish(e.UserID, sse.Event{
		Type:    sse.EventPaymentRecorded,
		Message: "Payment confirmed",
	})

	if addr := m.userEmail(ctx, e.UserID); addr != "" {
		if err := m.sender.SendPaymentConfirmationEmail(ctx, addr, e.Tier, expiry); err != nil {
			m.log.Error("payment email failed", "error", err, "agentId", e.AgentID)
		}
	}
	return nil
}

func (m *Module) handleApplicationSubmitted(ctx context.Context, e events.ApplicationSubmitted) error {
	m.notifyAdmins(ctx, inapp.SendParams{
		Title:        "New request application",
		Content:      "An agent applied for an open request and is waiting for review.",
		ResourceID:   &e.ApplicationID,
		ResourceType: "application",
	})
	return nil
}

func (m *Module) handleApplicationReviewed(ctx context.Context, e events.ApplicationReviewed) error {
	if e.AgentUserID == uuid.Nil {
		return nil
	}

	title := "Application approved"
	content := "Your application was approved. Check your assigned requests."
	category := "success"
	if e.NewStatus != "approved" {
		title = "Application rejected"
		content = "Your application was not approved this time."
		category = "warning"
	}

	_ = m.inAppService.Send(ctx, inapp.SendParams{
		UserID:       e.AgentUserID,
		Title:        title,
		Content:      content,
		ResourceID:   &e.ApplicationID,
		ResourceType: "application",
		Category:     category,
	})

	m.sseService.Publish(e.AgentUserID, sse.Event{
		Type:      sse.EventApplicationReviewed,
		RequestID: e.RequestID,
		Message:   title,
	})
	return nil
}

type requestSummary struct {
	parish      string
	requestType string
}

// requestSummary fetches the few request fields notifications mention.
// Lookups are best-effort; a notification with blanks beats no notification.
func (m *Module) requestSummary(ctx context.Context, requestID uuid.UUID) requestSummary {
	var s requestSummary
	err := m.pool.QueryRow(ctx,
		`SELECT parish, request_type FROM service_requests WHERE id = $1`,
		requestID).Scan(&s.parish, &s.requestType)
	if err != nil {
		m.log.Warn("request summary lookup failed", "error", err, "requestId", requestID)
	}
	return s
}

func (m *Module) userEmail(ctx context.Context, userID uuid.UUID) string {
	var addr string
	err := m.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&addr)
	if err != nil {
		m.log.Warn("user email lookup failed", "error", err, "userId", userID)
		return ""
	}
	return addr
}

func (m *Module) agentPhone(ctx context.Context, agentID uuid.UUID) string {
	var phoneNumber string
	err := m.pool.QueryRow(ctx,
		`SELECT phone FROM agents WHERE id = $1 AND deleted_at IS NULL`,
		agentID).Scan(&phoneNumber)
	if err != nil {
		m.log.Warn("agent phone lookup failed", "error", err, "agentId", agentID)
		return ""
	}
	return phoneNumber
}

// notifyAdmins fans out one in-app notification per admin. Sends run in
// parallel with a small bound so a large admin list cannot hog the pool.
func (m *Module) notifyAdmins(ctx context.Context, params inapp.SendParams) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, adminID := range m.adminUserIDs(ctx) {
		p := params
		p.UserID = adminID
		g.Go(func() error {
			if err := m.inAppService.Send(gctx, p); err != nil {
				m.log.Warn("admin notification failed", "error", err, "userId", p.UserID)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Module) adminUserIDs(ctx context.Context) []uuid.UUID {
	rows, err := m.pool.Query(ctx, `SELECT id FROM users WHERE role = 'admin'`)
	if err != nil {
		m.log.Warn("admin lookup failed", "error", err)
		return nil
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			m.log.Warn("admin scan failed", "error", err)
			return ids
		}
		ids = append(ids, id)
	}
	return ids
}

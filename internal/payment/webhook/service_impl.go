package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/launchkitlabs/launchkit/internal/clock"
	"github.com/launchkitlabs/launchkit/internal/config"
	"github.com/launchkitlabs/launchkit/internal/observability"
	"github.com/launchkitlabs/launchkit/internal/payment/domain"
	subscriptiondomain "github.com/launchkitlabs/launchkit/internal/subscription/domain"
)

const signatureHeader = "Webhook-Signature"

type Service struct {
	log   *zap.Logger
	cfg   config.Config
	clock clock.Clock

	subscriptionSvc subscriptiondomain.Service
	cache           *redis.Client
	metrics         *observability.Metrics
}

type Params struct {
	fx.In

	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock

	SubscriptionSvc subscriptiondomain.Service
	Cache           *redis.Client `optional:"true"`
	Metrics         *observability.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		log:   p.Log.Named("payment.webhook"),
		cfg:   p.Cfg,
		clock: p.Clock,

		subscriptionSvc: p.SubscriptionSvc,
		cache:           p.Cache,
		metrics:         p.Metrics,
	}
}

// Ingest verifies, parses, and dispatches one webhook delivery. The ledger
// append inside each subscription mutation is the idempotency gate; the redis
// seen-cache in front of it only saves a transaction on hot redeliveries.
func (s *Service) Ingest(ctx context.Context, payload []byte, headers http.Header) error {
	if err := s.verify(ctx, payload, headers); err != nil {
		// The event type is unreadable before verification passes.
		s.metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		return err
	}

	var envelope domain.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return domain.ErrInvalidPayload
	}
	if strings.TrimSpace(envelope.ID) == "" || strings.TrimSpace(envelope.Type) == "" {
		return domain.ErrInvalidEvent
	}

	if s.seenRecently(ctx, envelope.ID) {
		s.metrics.WebhookEvents.WithLabelValues(envelope.Type, "duplicate").Inc()
		s.log.Debug("webhook event already processed",
			zap.String("event_id", envelope.ID),
			zap.String("event_type", envelope.Type))
		return nil
	}

	err := s.dispatch(ctx, envelope)
	switch {
	case err == nil:
		s.metrics.WebhookEvents.WithLabelValues(envelope.Type, "processed").Inc()
		s.markSeen(ctx, envelope.ID)
		return nil
	case errors.Is(err, domain.ErrEventIgnored):
		s.metrics.WebhookEvents.WithLabelValues(envelope.Type, "ignored").Inc()
		s.log.Info("webhook event ignored",
			zap.String("event_id", envelope.ID),
			zap.String("event_type", envelope.Type))
		return nil
	case errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound):
		// The referenced record may not exist yet (out-of-order delivery) or
		// may belong to another environment. Acknowledge so the provider
		// stops retrying.
		s.metrics.WebhookEvents.WithLabelValues(envelope.Type, "ignored").Inc()
		s.log.Warn("webhook event for unknown subscription",
			zap.String("event_id", envelope.ID),
			zap.String("event_type", envelope.Type))
		return nil
	default:
		s.metrics.WebhookEvents.WithLabelValues(envelope.Type, "failed").Inc()
		s.log.Error("webhook processing failed",
			zap.String("event_id", envelope.ID),
			zap.String("event_type", envelope.Type),
			zap.Error(err))
		return err
	}
}

func (s *Service) verify(ctx context.Context, payload []byte, headers http.Header) error {
	secret := s.cfg.Webhook.SigningSecret
	if secret == "" {
		return domain.ErrInvalidSignature
	}

	sigHeader := strings.TrimSpace(headers.Get(signatureHeader))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	if tolerance := s.cfg.Webhook.SignatureTolerance; tolerance > 0 {
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return domain.ErrInvalidSignature
		}
		now := s.clock.Now(ctx)
		drift := now.Sub(time.Unix(ts, 0))
		if drift > tolerance || drift < -tolerance {
			return domain.ErrInvalidSignature
		}
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

// parseSignatureHeader reads the "t=<unix>,v1=<hex>[,v1=<hex>...]" scheme.
func parseSignatureHeader(header string) (string, []string, error) {
	var timestamp string
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return "", nil, domain.ErrInvalidSignature
	}
	return timestamp, signatures, nil
}

// dispatch is a closed mapping from event type to handler; adding a type
// means adding a case here.
func (s *Service) dispatch(ctx context.Context, envelope domain.Envelope) error {
	switch strings.TrimSpace(envelope.Type) {
	case domain.EventTypeCheckoutSessionCompleted:
		return s.handleCheckoutCompleted(ctx, envelope)
	case domain.EventTypeSubscriptionCreated:
		return s.handleSubscriptionCreated(ctx, envelope)
	case domain.EventTypeSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, envelope)
	case domain.EventTypeSubscriptionDeleted:
		return s.subscriptionSvc.MarkDeleted(ctx, s.subscriptionRef(envelope), envelope.ID)
	case domain.EventTypeScheduleCreated:
		return s.handleScheduleCreated(ctx, envelope)
	case domain.EventTypeInvoicePaymentSucceeded:
		return s.handleInvoicePayment(ctx, envelope, true)
	case domain.EventTypeInvoicePaymentFailed:
		return s.handleInvoicePayment(ctx, envelope, false)
	default:
		return domain.ErrEventIgnored
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, envelope domain.Envelope) error {
	var session domain.CheckoutSessionPayload
	if err := json.Unmarshal(envelope.Data.Object, &session); err != nil {
		return domain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.Subscription) == "" {
		return domain.ErrEventIgnored
	}

	orgID, err := parseOrgID(session.ClientReferenceID, session.Metadata)
	if err != nil {
		return err
	}

	amount := session.AmountTotal
	_, err = s.subscriptionSvc.CreateFromProvider(ctx, subscriptiondomain.CreateFromProviderRequest{
		OrgID:             orgID,
		CustomerRef:       session.Customer,
		SubscriptionRef:   session.Subscription,
		Tier:              tierFromMetadata(session.Metadata),
		Interval:          intervalFromMetadata(session.Metadata),
		SeatsIncluded:     seatsFromMetadata(session.Metadata),
		Amount:            &amount,
		Currency:          session.Currency,
		TriggeringFeature: session.Metadata["triggering_feature"],
		ExternalEventID:   envelope.ID,
	})
	return err
}

func (s *Service) handleSubscriptionCreated(ctx context.Context, envelope domain.Envelope) error {
	var sub domain.SubscriptionPayload
	if err := json.Unmarshal(envelope.Data.Object, &sub); err != nil {
		return domain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return domain.ErrInvalidEvent
	}

	orgID, err := parseOrgID("", sub.Metadata)
	if err != nil {
		return err
	}

	req := subscriptiondomain.CreateFromProviderRequest{
		OrgID:             orgID,
		CustomerRef:       sub.Customer,
		SubscriptionRef:   sub.ID,
		Tier:              parseTier(sub.Plan.Tier),
		Interval:          parseInterval(sub.Plan.Interval),
		SeatsIncluded:     sub.Plan.Seats,
		TriggeringFeature: sub.Metadata["triggering_feature"],
		ExternalEventID:   envelope.ID,
	}
	if sub.CurrentPeriodStart > 0 {
		start := time.Unix(sub.CurrentPeriodStart, 0).UTC()
		req.PeriodStart = &start
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		req.PeriodEnd = &end
	}

	_, err = s.subscriptionSvc.CreateFromProvider(ctx, req)
	return err
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, envelope domain.Envelope) error {
	var sub domain.SubscriptionPayload
	if err := json.Unmarshal(envelope.Data.Object, &sub); err != nil {
		return domain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return domain.ErrInvalidEvent
	}

	req := subscriptiondomain.ApplyProviderStatusRequest{
		SubscriptionRef:   sub.ID,
		Status:            parseBillingStatus(sub.Status),
		CancelAtPeriodEnd: &sub.CancelAtPeriodEnd,
		ExternalEventID:   envelope.ID,
	}
	if tier := parseTier(sub.Plan.Tier); sub.Plan.Tier != "" {
		req.Tier = &tier
	}
	if interval := parseInterval(sub.Plan.Interval); sub.Plan.Interval != "" {
		req.Interval = &interval
	}
	if sub.CurrentPeriodStart > 0 {
		start := time.Unix(sub.CurrentPeriodStart, 0).UTC()
		req.PeriodStart = &start
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		req.PeriodEnd = &end
	}

	return s.subscriptionSvc.ApplyProviderStatus(ctx, req)
}

func (s *Service) handleScheduleCreated(ctx context.Context, envelope domain.Envelope) error {
	var schedule domain.SchedulePayload
	if err := json.Unmarshal(envelope.Data.Object, &schedule); err != nil {
		return domain.ErrInvalidPayload
	}
	if strings.TrimSpace(schedule.Subscription) == "" || len(schedule.Phases) == 0 {
		return domain.ErrEventIgnored
	}

	// The last phase carries the tier the subscription lands on.
	phase := schedule.Phases[len(schedule.Phases)-1]
	if phase.StartDate <= 0 {
		return domain.ErrEventIgnored
	}

	return s.subscriptionSvc.SetPendingDowngrade(ctx, subscriptiondomain.SetPendingDowngradeRequest{
		SubscriptionRef: schedule.Subscription,
		TargetTier:      parseTier(phase.Tier),
		EffectiveAt:     time.Unix(phase.StartDate, 0).UTC(),
		ExternalEventID: envelope.ID,
	})
}

func (s *Service) handleInvoicePayment(ctx context.Context, envelope domain.Envelope, succeeded bool) error {
	var invoice domain.InvoicePayload
	if err := json.Unmarshal(envelope.Data.Object, &invoice); err != nil {
		return domain.ErrInvalidPayload
	}
	if strings.TrimSpace(invoice.Subscription) == "" {
		return domain.ErrEventIgnored
	}

	req := subscriptiondomain.PaymentEventRequest{
		SubscriptionRef: invoice.Subscription,
		ExternalEventID: envelope.ID,
		Currency:        invoice.Currency,
	}
	if succeeded {
		amount := invoice.AmountPaid
		req.Amount = &amount
		req.Description = "invoice payment succeeded"
		return s.subscriptionSvc.RecordPaymentSucceeded(ctx, req)
	}
	amount := invoice.AmountDue
	req.Amount = &amount
	req.Description = "invoice payment failed"
	return s.subscriptionSvc.RecordPaymentFailed(ctx, req)
}

func (s *Service) subscriptionRef(envelope domain.Envelope) string {
	var sub domain.SubscriptionPayload
	if err := json.Unmarshal(envelope.Data.Object, &sub); err != nil {
		return ""
	}
	return sub.ID
}

func (s *Service) seenRecently(ctx context.Context, eventID string) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Exists(ctx, seenKey(eventID)).Result()
	if err != nil {
		return false
	}
	return ok > 0
}

func (s *Service) markSeen(ctx context.Context, eventID string) {
	if s.cache == nil {
		return
	}
	ttl := s.cfg.Webhook.SeenCacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.cache.Set(ctx, seenKey(eventID), 1, ttl).Err(); err != nil {
		s.log.Debug("seen-cache write failed", zap.Error(err))
	}
}

func seenKey(eventID string) string {
	return "webhook:seen:" + eventID
}

func parseOrgID(clientReference string, metadata map[string]string) (snowflake.ID, error) {
	raw := strings.TrimSpace(clientReference)
	if raw == "" {
		raw = strings.TrimSpace(metadata["organization_id"])
	}
	if raw == "" {
		return 0, domain.ErrInvalidEvent
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, domain.ErrInvalidEvent
	}
	return id, nil
}

func parseTier(raw string) subscriptiondomain.Tier {
	tier := subscriptiondomain.Tier(strings.ToLower(strings.TrimSpace(raw)))
	if !tier.Valid() {
		return subscriptiondomain.TierStarter
	}
	return tier
}

func tierFromMetadata(metadata map[string]string) subscriptiondomain.Tier {
	return parseTier(metadata["tier"])
}

func parseInterval(raw string) subscriptiondomain.BillingInterval {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "annual", "year", "yearly":
		return subscriptiondomain.BillingIntervalAnnual
	default:
		return subscriptiondomain.BillingIntervalMonthly
	}
}

func intervalFromMetadata(metadata map[string]string) subscriptiondomain.BillingInterval {
	return parseInterval(metadata["interval"])
}

func seatsFromMetadata(metadata map[string]string) int {
	raw := strings.TrimSpace(metadata["seats"])
	if raw == "" {
		return 0
	}
	seats, err := strconv.Atoi(raw)
	if err != nil || seats < 0 {
		return 0
	}
	return seats
}

func parseBillingStatus(raw string) subscriptiondomain.BillingStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active":
		return subscriptiondomain.BillingStatusActive
	case "past_due":
		return subscriptiondomain.BillingStatusPastDue
	case "canceled", "unpaid":
		return subscriptiondomain.BillingStatusCanceled
	case "trialing":
		return subscriptiondomain.BillingStatusTrialing
	case "paused":
		return subscriptiondomain.BillingStatusPaused
	case "incomplete":
		return subscriptiondomain.BillingStatusIncomplete
	case "incomplete_expired":
		return subscriptiondomain.BillingStatusIncompleteExpired
	default:
		return subscriptiondomain.BillingStatus(strings.ToLower(strings.TrimSpace(raw)))
	}
}

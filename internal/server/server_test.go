package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/launchkitlabs/launchkit/internal/config"
	ledgerdomain "github.com/launchkitlabs/launchkit/internal/ledger/domain"
	ledgerrepository "github.com/launchkitlabs/launchkit/internal/ledger/repository"
	memberdomain "github.com/launchkitlabs/launchkit/internal/member/domain"
	memberservice "github.com/launchkitlabs/launchkit/internal/member/service"
	"github.com/launchkitlabs/launchkit/internal/observability"
	"github.com/launchkitlabs/launchkit/internal/payment/webhook"
	"github.com/launchkitlabs/launchkit/internal/scheduler"
	seatservice "github.com/launchkitlabs/launchkit/internal/seat/service"
	subscriptiondomain "github.com/launchkitlabs/launchkit/internal/subscription/domain"
	subscriptionrepository "github.com/launchkitlabs/launchkit/internal/subscription/repository"
	subscriptionservice "github.com/launchkitlabs/launchkit/internal/subscription/service"
)

const testSecret = "whsec_server_test"

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now(context.Context) time.Time { return c.now }

type serverEnv struct {
	server          *Server
	subscriptionSvc subscriptiondomain.Service
	clk             *stubClock
}

func newTestServer(t *testing.T) *serverEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&subscriptiondomain.Subscription{},
		&ledgerdomain.BillingEvent{},
		&memberdomain.Member{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := &stubClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	log := zap.NewNop()
	cfg := config.Config{
		Mode:     "release",
		HTTPAddr: ":0",
		Webhook: config.WebhookConfig{
			SigningSecret:      testSecret,
			SignatureTolerance: 5 * time.Minute,
		},
		Billing:   config.BillingConfig{Currency: "USD", GracePeriodDays: 28, FreeSeatsIncluded: 3},
		Scheduler: config.SchedulerConfig{SweepHourUTC: 3},
	}

	subscriptionRepo := subscriptionrepository.Provide()
	ledgerRepo := ledgerrepository.Provide()
	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)

	subscriptionSvc := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      clk,
		Cfg:        cfg,
		Repo:       subscriptionRepo,
		LedgerRepo: ledgerRepo,
	})
	reconciler := seatservice.NewReconciler(seatservice.ReconcilerParam{DB: db, Log: log, Clock: clk, Repo: subscriptionRepo})
	memberSvc := memberservice.NewService(memberservice.ServiceParam{
		DB:              db,
		Log:             log,
		GenID:           node,
		Clock:           clk,
		SubscriptionSvc: subscriptionSvc,
		Reconciler:      reconciler,
	})
	webhookSvc := webhook.NewService(webhook.Params{
		Log:             log,
		Cfg:             cfg,
		Clock:           clk,
		SubscriptionSvc: subscriptionSvc,
		Metrics:         metrics,
	})
	sched := scheduler.New(scheduler.Params{
		DB:               db,
		Log:              log,
		Cfg:              cfg,
		Clock:            clk,
		SubscriptionSvc:  subscriptionSvc,
		SubscriptionRepo: subscriptionRepo,
		LedgerRepo:       ledgerRepo,
		Metrics:          metrics,
	})

	tel, err := observability.NewTelemetry(cfg, log)
	require.NoError(t, err)

	srv := NewServer(Params{
		Cfg:             cfg,
		Log:             log,
		Engine:          NewEngine(cfg, log, tel),
		DB:              db,
		SubscriptionSvc: subscriptionSvc,
		MemberSvc:       memberSvc,
		WebhookSvc:      webhookSvc,
		Scheduler:       sched,
		Registry:        registry,
	})
	srv.RegisterRoutes()
	return &serverEnv{server: srv, subscriptionSvc: subscriptionSvc, clk: clk}
}

func (e *serverEnv) do(method, path string, body []byte, headers http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	rec := httptest.NewRecorder()
	e.server.engine.ServeHTTP(rec, req)
	return rec
}

func (e *serverEnv) sign(payload []byte) http.Header {
	ts := fmt.Sprintf("%d", e.clk.now.Unix())
	mac := hmac.New(sha256.New, []byte(testSecret))
	_, _ = mac.Write([]byte(ts + "." + string(payload)))

	headers := http.Header{}
	headers.Set("Webhook-Signature", fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return headers
}

func TestWebhookEndpoint_MethodNotAllowed(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(http.MethodGet, "/webhooks/payment", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebhookEndpoint_BadSignature(t *testing.T) {
	env := newTestServer(t)

	headers := http.Header{}
	headers.Set("Webhook-Signature", "t=1,v1=bad")
	rec := env.do(http.MethodPost, "/webhooks/payment", []byte(`{"id":"evt_1","type":"x"}`), headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_signature")
}

func TestWebhookEndpoint_EmptyBody(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(http.MethodPost, "/webhooks/payment", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookEndpoint_ProcessesAndAcksDuplicates(t *testing.T) {
	env := newTestServer(t)
	orgID := snowflake.ID(5001)

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_http_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"customer": "cus_http",
			"subscription": "sub_http",
			"client_reference_id": "%d",
			"amount_total": 2900,
			"currency": "usd",
			"metadata": {"tier": "starter"}
		}}
	}`, orgID))
	headers := env.sign(payload)

	rec := env.do(http.MethodPost, "/webhooks/payment", payload, headers)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Redelivery gets the same 200 ack.
	rec = env.do(http.MethodPost, "/webhooks/payment", payload, headers)
	assert.Equal(t, http.StatusOK, rec.Code)

	sub, err := env.subscriptionSvc.GetByOrganization(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.TierStarter, sub.Tier)
}

func TestGetSubscription(t *testing.T) {
	env := newTestServer(t)
	orgID := snowflake.ID(5002)

	rec := env.do(http.MethodGet, fmt.Sprintf("/api/organizations/%d/subscription", orgID), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := env.subscriptionSvc.EnsureFreeTier(context.Background(), orgID)
	require.NoError(t, err)

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/organizations/%d/subscription", orgID), nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data subscriptiondomain.Subscription `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, subscriptiondomain.TierFree, body.Data.Tier)
}

func TestGetSubscription_InvalidOrgID(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(http.MethodGet, "/api/organizations/not-a-snowflake/subscription", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluateAccessEndpoint(t *testing.T) {
	env := newTestServer(t)
	orgID := snowflake.ID(5003)

	// No subscription on record: allowed.
	rec := env.do(http.MethodGet, fmt.Sprintf("/api/organizations/%d/subscription/access?path=/dashboard", orgID), nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "no_subscription")

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/organizations/%d/subscription/access", orgID), nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSeatEndpoints(t *testing.T) {
	env := newTestServer(t)
	orgID := snowflake.ID(5004)

	_, err := env.subscriptionSvc.EnsureFreeTier(context.Background(), orgID)
	require.NoError(t, err)

	rec := env.do(http.MethodPost, fmt.Sprintf("/api/organizations/%d/seats/add", orgID),
		[]byte(`{"count": 2}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data subscriptiondomain.Subscription `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Data.SeatsTotal)

	rec = env.do(http.MethodPost, fmt.Sprintf("/api/organizations/%d/seats/remove", orgID),
		[]byte(`{"count": 0}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemberEndpoints(t *testing.T) {
	env := newTestServer(t)
	orgID := snowflake.ID(5005)

	rec := env.do(http.MethodPost, fmt.Sprintf("/api/organizations/%d/members", orgID),
		[]byte(`{"email": "alice@example.com", "display_name": "Alice"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Data memberdomain.Member `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.do(http.MethodPost, fmt.Sprintf("/api/members/%s/deactivate", created.Data.ID), nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	stats := env.do(http.MethodGet, fmt.Sprintf("/api/organizations/%d/subscription/stats", orgID), nil, nil)
	assert.Equal(t, http.StatusOK, stats.Code)
	assert.True(t, strings.Contains(stats.Body.String(), `"seats_active":0`))
}

func TestSweepJobEndpoint(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(http.MethodPost, "/internal/jobs/grace-period-sweep", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(http.MethodGet, "/healthz", nil, nil)
	id := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	headers := http.Header{}
	headers.Set("X-Request-ID", "req-123")
	rec = env.do(http.MethodGet, "/healthz", nil, headers)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

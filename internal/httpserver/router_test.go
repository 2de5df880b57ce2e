package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"outreach/internal/model"
	"outreach/internal/repository"
	"outreach/internal/service"
	"outreach/internal/util"
)

const testJWTSecret = "router-test-secret"

// Minimal in-memory stores, enough to drive the webhook path end to end.

type memMessages struct {
	byID map[int64]*model.OutboundMessage
}

func (m *memMessages) Claim(_ context.Context, msg *model.OutboundMessage) (*model.OutboundMessage, bool, error) {
	return msg, true, nil
}

func (m *memMessages) FindByID(_ context.Context, tenantID, id int64) (*model.OutboundMessage, error) {
	msg, ok := m.byID[id]
	if !ok || msg.TenantID != tenantID {
		return nil, nil
	}
	return msg, nil
}

func (m *memMessages) MarkSent(context.Context, int64, string) error   { return nil }
func (m *memMessages) MarkFailed(context.Context, int64, string) error { return nil }
func (m *memMessages) DeleteQueued(context.Context, int64) error       { return nil }

type memEvents struct {
	nextID int64
}

func (m *memEvents) Insert(_ context.Context, e *model.MessageEvent) error {
	m.nextID++
	e.ID = m.nextID
	return nil
}

func (m *memEvents) Exists(context.Context, int64, int64, string) (bool, error) {
	return false, nil
}

type memCampaigns struct {
	campaign *model.ContactCampaign
}

func (m *memCampaigns) Create(_ context.Context, c *model.ContactCampaign) error {
	c.ID = 11
	m.campaign = c
	return nil
}

func (m *memCampaigns) FindByID(_ context.Context, tenantID, id int64) (*model.ContactCampaign, error) {
	if m.campaign == nil || m.campaign.ID != id || m.campaign.TenantID != tenantID {
		return nil, nil
	}
	return m.campaign, nil
}

func (m *memCampaigns) UpdateCurrentNode(_ context.Context, _, _ int64, nodeID string) error {
	m.campaign.CurrentNodeID = nodeID
	return nil
}

func (m *memCampaigns) MarkCompleted(context.Context, int64, int64) error { return nil }

type memActions struct {
	pending []model.ScheduledAction
}

func (m *memActions) InTx(_ context.Context, fn func(w repository.ActionWriter) error) error {
	return fn(actionWriterFunc(func(ctx context.Context, a *model.ScheduledAction) error {
		m.pending = append(m.pending, *a)
		return nil
	}))
}

func (m *memActions) MarkStatus(context.Context, string, string) error { return nil }

func (m *memActions) ListPendingForCampaign(_ context.Context, tenantID, campaignID int64) ([]model.ScheduledAction, error) {
	return m.pending, nil
}

type actionWriterFunc func(ctx context.Context, a *model.ScheduledAction) error

func (f actionWriterFunc) Insert(ctx context.Context, a *model.ScheduledAction) error {
	return f(ctx, a)
}

type memQueue struct{}

func (memQueue) Publish(string, any) error { return nil }
func (memQueue) PublishDelayed(context.Context, string, string, any, time.Duration) error {
	return nil
}

func newTestRouter(t *testing.T) (*Router, *memCampaigns) {
	t.Helper()
	eventHandler, campaignHandler, campaigns := buildHandlers(t)
	return NewRouter(eventHandler, campaignHandler, func() bool { return true }, testJWTSecret), campaigns
}

func buildHandlers(t *testing.T) (*EventHandler, *CampaignHandler, *memCampaigns) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	plan := model.Plan{
		StartNodeID: "N1",
		Nodes: []model.Node{
			{
				ID: "N1", Channel: "email", Action: model.ActionSend,
				Subject: "Hi", Body: "<p>Hi</p>",
				Transitions: []model.Transition{{On: "opened", To: "N2"}},
			},
			{ID: "N2", Action: model.ActionWait},
		},
	}
	planJSON, err := json.Marshal(plan)
	require.NoError(t, err)

	campaigns := &memCampaigns{campaign: &model.ContactCampaign{
		ID: 10, TenantID: 42, ContactID: 7,
		PlanJSON: planJSON, CurrentNodeID: "N1", Status: "active",
	}}
	messages := &memMessages{byID: map[int64]*model.OutboundMessage{
		55: {ID: 55, TenantID: 42, CampaignID: 10, ContactID: 7, NodeID: "N1", State: model.MessageSent},
	}}

	actions := &memActions{}
	engine := service.NewTransitionEngine(campaigns, memQueue{}, log)
	ingest := service.NewEventIngest(messages, &memEvents{}, campaigns, engine, log)
	campaignSvc := service.NewCampaignService(campaigns, actions, memQueue{}, log)

	eventHandler := NewEventHandler(ingest, log)
	campaignHandler := NewCampaignHandler(campaignSvc, log)
	return eventHandler, campaignHandler, campaigns
}

func postEvent(t *testing.T, r *Router, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mq":"connected"`)
}

func TestHealthzDegradedWhenMQDown(t *testing.T) {
	eventHandler, campaignHandler, _ := buildHandlers(t)
	r := NewRouter(eventHandler, campaignHandler, func() bool { return false }, testJWTSecret)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"mq":"disconnected"`)
}

func TestStartCampaignEndpoint(t *testing.T) {
	r, campaigns := newTestRouter(t)
	token, err := util.GenerateWebhookToken(42, testJWTSecret)
	require.NoError(t, err)

	body := `{"contact_id": 7, "plan": {
		"startNodeId": "N1",
		"nodes": [
			{"id": "N1", "channel": "email", "action": "send", "subject": "Hi", "body": "<p>Hi</p>",
			 "transitions": [{"on": "no_open", "to": "N2", "after": "PT10M"}]},
			{"id": "N2", "action": "wait", "transitions": []}
		]
	}}`
	req := httptest.NewRequest(http.MethodPost, "/campaigns", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		CampaignID  int64  `json:"campaign_id"`
		CurrentNode string `json:"current_node"`
		Status      string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(11), resp.CampaignID)
	assert.Equal(t, "N1", resp.CurrentNode)
	assert.Equal(t, "active", resp.Status)
	assert.Equal(t, int64(42), campaigns.campaign.TenantID)
}

func TestStartCampaignRejectsInvalidPlan(t *testing.T) {
	r, _ := newTestRouter(t)
	token, err := util.GenerateWebhookToken(42, testJWTSecret)
	require.NoError(t, err)

	body := `{"contact_id": 7, "plan": {"startNodeId": "N9", "nodes": [{"id": "N1", "action": "wait", "transitions": []}]}}`
	req := httptest.NewRequest(http.MethodPost, "/campaigns", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "not found")
}

func TestStartCampaignRequiresToken(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/campaigns", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetCampaignEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	token, err := util.GenerateWebhookToken(42, testJWTSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/campaigns/10", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"current_node":"N1"`)
	assert.Contains(t, w.Body.String(), `"pending_actions"`)
}

func TestGetCampaignNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	token, err := util.GenerateWebhookToken(42, testJWTSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/campaigns/999", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngestEventMovesCampaign(t *testing.T) {
	r, campaigns := newTestRouter(t)
	token, err := util.GenerateWebhookToken(42, testJWTSecret)
	require.NoError(t, err)

	w := postEvent(t, r, token, `{"message_id": 55, "type": "open"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Status string `json:"status"`
		Moved  bool   `json:"moved"`
		To     string `json:"to"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "recorded", resp.Status)
	assert.True(t, resp.Moved)
	assert.Equal(t, "N2", resp.To)
	assert.Equal(t, "N2", campaigns.campaign.CurrentNodeID)
}

func TestIngestEventRequiresToken(t *testing.T) {
	r, _ := newTestRouter(t)

	w := postEvent(t, r, "", `{"message_id": 55, "type": "open"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIngestEventRejectsBadToken(t *testing.T) {
	r, _ := newTestRouter(t)
	token, err := util.GenerateWebhookToken(42, "some-other-secret")
	require.NoError(t, err)

	w := postEvent(t, r, token, `{"message_id": 55, "type": "open"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIngestEventScopesToTokenTenant(t *testing.T) {
	r, _ := newTestRouter(t)
	// Valid token for a different tenant: the message lookup misses.
	token, err := util.GenerateWebhookToken(99, testJWTSecret)
	require.NoError(t, err)

	w := postEvent(t, r, token, `{"message_id": 55, "type": "open"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestIngestEventRejectsBadPayload(t *testing.T) {
	r, _ := newTestRouter(t)
	token, err := util.GenerateWebhookToken(42, testJWTSecret)
	require.NoError(t, err)

	for _, body := range []string{`{}`, `{"message_id": 55}`, `not json`} {
		w := postEvent(t, r, token, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}
}

func TestIngestEventRejectsTimeoutType(t *testing.T) {
	r, _ := newTestRouter(t)
	token, err := util.GenerateWebhookToken(42, testJWTSecret)
	require.NoError(t, err)

	w := postEvent(t, r, token, `{"message_id": 55, "type": "no_open"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	contracts "outreach/contracts/mq"
	"outreach/internal/model"
)

func newCampaignService(h *harness) *CampaignService {
	return NewCampaignService(h.campaigns, h.actions, h.queue, zap.NewNop())
}

func TestStartCampaignEnqueuesFirstSend(t *testing.T) {
	h := newHarness(t, testPlan(t))
	svc := newCampaignService(h)

	campaign, warnings, err := svc.StartCampaign(context.Background(), testTenantID, testContactID, testPlan(t))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.NotZero(t, campaign.ID)
	assert.Equal(t, "N1", campaign.CurrentNodeID)
	assert.Equal(t, "active", campaign.Status)

	require.Len(t, h.queue.published, 1)
	job, ok := h.queue.published[0].payload.(contracts.SendJobPayload)
	require.True(t, ok)
	assert.Equal(t, contracts.SendRoutingKey, h.queue.published[0].routingKey)
	assert.Equal(t, campaign.ID, job.CampaignID)
	assert.Equal(t, testContactID, job.ContactID)
	assert.Equal(t, "N1", job.NodeID)
}

func TestStartCampaignNonSendStartNode(t *testing.T) {
	h := newHarness(t, testPlan(t))
	svc := newCampaignService(h)

	p := model.Plan{
		StartNodeID: "W1",
		Nodes: []model.Node{
			{ID: "W1", Action: model.ActionWait},
		},
	}
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	campaign, _, err := svc.StartCampaign(context.Background(), testTenantID, testContactID, raw)
	require.NoError(t, err)
	assert.Equal(t, "W1", campaign.CurrentNodeID)
	assert.Empty(t, h.queue.published)
}

func TestStartCampaignRejectsInvalidPlan(t *testing.T) {
	h := newHarness(t, testPlan(t))
	svc := newCampaignService(h)

	p := model.Plan{
		StartNodeID: "N9",
		Nodes:       []model.Node{{ID: "N1", Action: model.ActionWait}},
	}
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	_, _, err = svc.StartCampaign(context.Background(), testTenantID, testContactID, raw)
	require.Error(t, err)
	assert.True(t, IsTerminal(err))
	assert.Empty(t, h.queue.published)
}

func TestStartCampaignSurfacesWarnings(t *testing.T) {
	h := newHarness(t, testPlan(t))
	svc := newCampaignService(h)

	var p model.Plan
	require.NoError(t, json.Unmarshal(testPlan(t), &p))
	p.Nodes[0].Transitions = append(p.Nodes[0].Transitions, model.Transition{On: "no_open", To: "N3"})
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	campaign, warnings, err := svc.StartCampaign(context.Background(), testTenantID, testContactID, raw)
	require.NoError(t, err)
	assert.NotZero(t, campaign.ID)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "first declared wins")
}

func TestStartCampaignQueueFailureSurfaces(t *testing.T) {
	h := newHarness(t, testPlan(t))
	h.queue.failPublish = errQueueDown
	svc := newCampaignService(h)

	campaign, _, err := svc.StartCampaign(context.Background(), testTenantID, testContactID, testPlan(t))
	require.Error(t, err)
	assert.False(t, IsTerminal(err))
	// The enrollment itself stands; only the first hop needs requeueing.
	assert.NotZero(t, campaign.ID)
}

func TestGetCampaignReturnsPendingActions(t *testing.T) {
	h := newHarness(t, testPlan(t))
	svc := newCampaignService(h)
	ctx := context.Background()

	sent, err := h.dispatcher.Dispatch(ctx, sendJob("N1"))
	require.NoError(t, err)
	require.True(t, sent.Success)

	campaign, pending, err := svc.GetCampaign(ctx, testTenantID, testCampaignID)
	require.NoError(t, err)
	require.NotNil(t, campaign)
	require.Len(t, pending, 1)
	assert.Equal(t, "timeout", pending[0].ActionType)
	assert.Equal(t, "no_open", pending[0].Payload.EventType)

	// A fired timeout drops out of the pending list.
	require.NoError(t, h.actions.MarkStatus(ctx, pending[0].JobID, model.ActionFired))
	_, pending, err = svc.GetCampaign(ctx, testTenantID, testCampaignID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGetCampaignUnknownID(t *testing.T) {
	h := newHarness(t, testPlan(t))
	svc := newCampaignService(h)

	campaign, pending, err := svc.GetCampaign(context.Background(), testTenantID, 999)
	require.NoError(t, err)
	assert.Nil(t, campaign)
	assert.Nil(t, pending)
}

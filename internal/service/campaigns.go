package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	contracts "outreach/contracts/mq"
	"outreach/internal/model"
	"outreach/internal/plan"
)

// CampaignService is the management surface: it validates plan documents,
// enrolls contacts, and exposes campaign state for auditing.
type CampaignService struct {
	campaigns ContactCampaignStore
	actions   ScheduledActionStore
	queue     Queue
	logger    *zap.Logger
}

func NewCampaignService(campaigns ContactCampaignStore, actions ScheduledActionStore, queue Queue, logger *zap.Logger) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		actions:   actions,
		queue:     queue,
		logger:    logger,
	}
}

// StartCampaign validates the plan, enrolls the contact at the start node,
// and enqueues the first send job when the start node sends. Validation
// warnings (dead duplicate transitions) are returned to the caller.
func (s *CampaignService) StartCampaign(ctx context.Context, tenantID, contactID int64, planRaw json.RawMessage) (*model.ContactCampaign, []string, error) {
	p, warnings, err := plan.Parse(planRaw)
	if err != nil {
		return nil, warnings, &EngineError{Kind: KindValidation, Msg: "plan rejected", Err: err}
	}

	campaign := &model.ContactCampaign{
		TenantID:      tenantID,
		ContactID:     contactID,
		PlanJSON:      planRaw,
		CurrentNodeID: p.StartNodeID,
		Status:        "active",
	}
	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, warnings, err
	}

	log := s.logger.With(
		zap.Int64("tenant_id", tenantID),
		zap.Int64("campaign_id", campaign.ID),
		zap.Int64("contact_id", contactID),
	)
	log.Info("Campaign started", zap.String("start_node_id", p.StartNodeID))

	start := p.FindNode(p.StartNodeID)
	if start.Action == model.ActionSend {
		err := s.queue.Publish(contracts.SendRoutingKey, contracts.SendJobPayload{
			TenantID:   tenantID,
			CampaignID: campaign.ID,
			ContactID:  contactID,
			NodeID:     start.ID,
			ActionType: string(model.ActionSend),
		})
		if err != nil {
			// The campaign row exists; a later re-enroll attempt or manual
			// requeue picks it up. Surface the failure.
			log.Error("Failed to enqueue first send job", zap.Error(err))
			return campaign, warnings, err
		}
		log.Info("First send job enqueued", zap.String("node_id", start.ID))
	}

	return campaign, warnings, nil
}

// GetCampaign returns a campaign with its pending scheduled actions, or
// (nil, nil, nil) when the id does not exist for the tenant.
func (s *CampaignService) GetCampaign(ctx context.Context, tenantID, campaignID int64) (*model.ContactCampaign, []model.ScheduledAction, error) {
	campaign, err := s.campaigns.FindByID(ctx, tenantID, campaignID)
	if err != nil {
		return nil, nil, err
	}
	if campaign == nil {
		return nil, nil, nil
	}

	pending, err := s.actions.ListPendingForCampaign(ctx, tenantID, campaignID)
	if err != nil {
		return nil, nil, err
	}
	return campaign, pending, nil
}

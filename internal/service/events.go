package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"outreach/internal/model"
)

// EventIngest records real provider events (opens, clicks, replies) and feeds
// them into the transition engine. It is the inbound half of the single
// ProcessTransition seam.
type EventIngest struct {
	messages  OutboundMessageStore
	events    MessageEventStore
	campaigns ContactCampaignStore
	engine    *TransitionEngine
	logger    *zap.Logger
}

func NewEventIngest(
	messages OutboundMessageStore,
	events MessageEventStore,
	campaigns ContactCampaignStore,
	engine *TransitionEngine,
	logger *zap.Logger,
) *EventIngest {
	return &EventIngest{
		messages:  messages,
		events:    events,
		campaigns: campaigns,
		engine:    engine,
		logger:    logger,
	}
}

// RecordEvent appends a real event for a message and advances its campaign.
func (s *EventIngest) RecordEvent(ctx context.Context, tenantID, messageID int64, eventType string, at time.Time) (*TransitionResult, error) {
	normalized := model.NormalizeEventType(eventType)
	if model.IsTimeoutEvent(normalized) || !model.KnownEventType(normalized) {
		return nil, validationError("%q is not a real event type", eventType)
	}

	msg, err := s.messages.FindByID(ctx, tenantID, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, validationError("message %d not found", messageID)
	}

	event := &model.MessageEvent{
		TenantID:  tenantID,
		MessageID: messageID,
		Type:      normalized,
		EventAt:   at,
	}
	if err := s.events.Insert(ctx, event); err != nil {
		return nil, err
	}
	s.logger.Info("Real event recorded",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("message_id", messageID),
		zap.String("type", normalized),
	)

	campaign, err := s.campaigns.FindByID(ctx, tenantID, msg.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, stateIntegrityError("campaign %d not found for message %d", msg.CampaignID, messageID)
	}

	var p model.Plan
	if err := json.Unmarshal(campaign.PlanJSON, &p); err != nil {
		return nil, stateIntegrityError("campaign %d has unreadable plan", campaign.ID)
	}

	return s.engine.ProcessTransition(ctx, tenantID, campaign.ID, normalized, campaign.CurrentNodeID, &p, event.ID)
}

package service

import (
	"context"

	"go.uber.org/zap"

	contracts "outreach/contracts/mq"
	"outreach/internal/model"
	"outreach/pkg/metrics"
)

// TransitionResult reports what the engine did with one event.
type TransitionResult struct {
	Moved    bool   `json:"moved"`
	FromNode string `json:"from_node"`
	ToNode   string `json:"to_node,omitempty"`
	EventRef int64  `json:"event_ref,omitempty"`
}

// TransitionEngine advances contact campaigns through their plans. It is the
// single seam shared by the real-event ingestion path and the timeout worker.
type TransitionEngine struct {
	campaigns ContactCampaignStore
	queue     Queue
	logger    *zap.Logger
}

func NewTransitionEngine(campaigns ContactCampaignStore, queue Queue, logger *zap.Logger) *TransitionEngine {
	return &TransitionEngine{
		campaigns: campaigns,
		queue:     queue,
		logger:    logger,
	}
}

// ProcessTransition applies one event (real or synthetic) to the campaign's
// current node. Events with no matching transition are absorbed: a contact
// may click long after a timeout already moved them on, and that is not an
// error. eventRef is the triggering MessageEvent id, kept for audit.
func (e *TransitionEngine) ProcessTransition(ctx context.Context, tenantID, campaignID int64, eventType, currentNodeID string, p *model.Plan, eventRef int64) (*TransitionResult, error) {
	log := e.logger.With(
		zap.Int64("tenant_id", tenantID),
		zap.Int64("campaign_id", campaignID),
		zap.String("event_type", eventType),
		zap.String("current_node_id", currentNodeID),
	)

	node := p.FindNode(currentNodeID)
	if node == nil {
		metrics.IncrementTransition("error")
		return nil, stateIntegrityError("current node %q not in plan of campaign %d", currentNodeID, campaignID)
	}

	target := matchTransition(node, eventType)
	if target == nil {
		log.Info("Event absorbed, no matching transition")
		metrics.IncrementTransition("absorbed")
		return &TransitionResult{Moved: false, FromNode: currentNodeID, EventRef: eventRef}, nil
	}

	next := p.FindNode(target.To)
	if next == nil {
		metrics.IncrementTransition("error")
		return nil, stateIntegrityError("transition target %q not in plan of campaign %d", target.To, campaignID)
	}

	if err := e.campaigns.UpdateCurrentNode(ctx, tenantID, campaignID, next.ID); err != nil {
		return nil, err
	}
	log.Info("Campaign advanced",
		zap.String("to_node_id", next.ID),
		zap.Int64("event_ref", eventRef),
	)
	metrics.IncrementTransition("moved")

	if next.Action == model.ActionSend {
		// Re-enter the dispatcher through the queue so the hop is its own
		// at-least-once job, like every other step.
		campaign, err := e.campaigns.FindByID(ctx, tenantID, campaignID)
		if err != nil {
			return nil, err
		}
		if campaign == nil {
			return nil, stateIntegrityError("campaign %d vanished during transition", campaignID)
		}
		err = e.queue.Publish(contracts.SendRoutingKey, contracts.SendJobPayload{
			TenantID:   tenantID,
			CampaignID: campaignID,
			ContactID:  campaign.ContactID,
			NodeID:     next.ID,
			ActionType: string(model.ActionSend),
		})
		if err != nil {
			return nil, err
		}
	} else if len(next.Transitions) == 0 {
		// Terminal node: nothing to send, nothing to wait for.
		if err := e.campaigns.MarkCompleted(ctx, tenantID, campaignID); err != nil {
			return nil, err
		}
		log.Info("Campaign completed", zap.String("terminal_node_id", next.ID))
	}

	return &TransitionResult{
		Moved:    true,
		FromNode: currentNodeID,
		ToNode:   next.ID,
		EventRef: eventRef,
	}, nil
}

// matchTransition returns the first transition on node triggered by
// eventType, comparing under normalization so "opened" triggers match "open"
// events. First declared wins.
func matchTransition(node *model.Node, eventType string) *model.Transition {
	want := model.NormalizeEventType(eventType)
	for i := range node.Transitions {
		if model.NormalizeEventType(node.Transitions[i].On) == want {
			return &node.Transitions[i]
		}
	}
	return nil
}

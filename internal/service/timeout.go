package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	contracts "outreach/contracts/mq"
	"outreach/internal/model"
	"outreach/pkg/metrics"
)

// TimeoutResult reports what a fired timeout job turned into.
type TimeoutResult struct {
	Skipped    bool              `json:"skipped"`
	SkipReason string            `json:"skip_reason,omitempty"`
	EventID    int64             `json:"event_id,omitempty"`
	Transition *TransitionResult `json:"transition,omitempty"`
}

// TimeoutWorker consumes fired delayed jobs and, when the guarded real event
// never happened, synthesizes the timeout event and advances the campaign.
type TimeoutWorker struct {
	events    MessageEventStore
	campaigns ContactCampaignStore
	actions   ScheduledActionStore
	engine    *TransitionEngine
	logger    *zap.Logger
}

func NewTimeoutWorker(
	events MessageEventStore,
	campaigns ContactCampaignStore,
	actions ScheduledActionStore,
	engine *TransitionEngine,
	logger *zap.Logger,
) *TimeoutWorker {
	return &TimeoutWorker{
		events:    events,
		campaigns: campaigns,
		actions:   actions,
		engine:    engine,
		logger:    logger,
	}
}

// HandleTimeout processes one fired timeout job. Re-running is safe: once the
// synthetic event exists it supersedes itself on the next delivery.
func (w *TimeoutWorker) HandleTimeout(ctx context.Context, job contracts.TimeoutJobPayload, firedAt time.Time) (*TimeoutResult, error) {
	jobID := TimeoutJobID(job.CampaignID, job.NodeID, job.EventType, job.MessageID)
	log := w.logger.With(
		zap.Int64("tenant_id", job.TenantID),
		zap.Int64("campaign_id", job.CampaignID),
		zap.Int64("message_id", job.MessageID),
		zap.String("event_type", job.EventType),
		zap.String("job_id", jobID),
	)

	realType := model.RealCounterpart(job.EventType)
	if realType == "" {
		metrics.IncrementTimeoutFired("error")
		return nil, validationError("%q is not a timeout event type", job.EventType)
	}

	// Supersession: a timeout must never fire after the outcome it was
	// guarding against has already happened.
	exists, err := w.events.Exists(ctx, job.TenantID, job.MessageID, realType)
	if err != nil {
		return nil, err
	}
	if exists {
		log.Info("Real event exists, timeout superseded", zap.String("real_type", realType))
		if err := w.actions.MarkStatus(ctx, jobID, model.ActionSuperseded); err != nil {
			log.Error("Failed to mark action superseded", zap.Error(err))
		}
		metrics.IncrementTimeoutFired("superseded")
		return &TimeoutResult{Skipped: true, SkipReason: SkipRealEventExists}, nil
	}

	// A duplicate delivery of this job after the synthetic event was
	// written must also be a no-op.
	already, err := w.events.Exists(ctx, job.TenantID, job.MessageID, job.EventType)
	if err != nil {
		return nil, err
	}
	if already {
		log.Info("Synthetic event already recorded, duplicate firing")
		metrics.IncrementTimeoutFired("superseded")
		return &TimeoutResult{Skipped: true, SkipReason: SkipRealEventExists}, nil
	}

	scheduledAt := job.ScheduledAt
	event := &model.MessageEvent{
		TenantID:  job.TenantID,
		MessageID: job.MessageID,
		Type:      job.EventType,
		EventAt:   firedAt,
		Data: model.EventData{
			Synthetic:     true,
			TriggeredBy:   jobID,
			ScheduledAt:   &scheduledAt,
			ActualFiredAt: &firedAt,
		},
	}
	if err := w.events.Insert(ctx, event); err != nil {
		return nil, err
	}
	metrics.RecordTimeoutDrift(firedAt.Sub(scheduledAt))
	metrics.IncrementTimeoutFired("synthesized")

	if err := w.actions.MarkStatus(ctx, jobID, model.ActionFired); err != nil {
		log.Error("Failed to mark action fired", zap.Error(err))
	}

	campaign, err := w.campaigns.FindByID(ctx, job.TenantID, job.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, stateIntegrityError("campaign %d not found for fired timeout", job.CampaignID)
	}

	var p model.Plan
	if err := json.Unmarshal(campaign.PlanJSON, &p); err != nil {
		return nil, stateIntegrityError("campaign %d has unreadable plan", job.CampaignID)
	}

	tr, err := w.engine.ProcessTransition(ctx, job.TenantID, job.CampaignID, job.EventType, campaign.CurrentNodeID, &p, event.ID)
	if err != nil {
		return nil, err
	}

	log.Info("Synthetic event processed",
		zap.Int64("event_id", event.ID),
		zap.Bool("moved", tr.Moved),
	)
	return &TimeoutResult{EventID: event.ID, Transition: tr}, nil
}

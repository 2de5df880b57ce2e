package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	contracts "outreach/contracts/mq"
	"outreach/internal/model"
	"outreach/internal/plan"
	"outreach/internal/repository"
	"outreach/pkg/metrics"
	"outreach/pkg/mq"
)

// Scheduler turns a just-sent node into delayed timeout jobs: one per
// distinct timeout event type actually referenced by the node's transitions.
type Scheduler struct {
	actions  ScheduledActionStore
	queue    Queue
	defaults map[string]string // system fallback timers, "<event>_after" -> ISO duration
	logger   *zap.Logger
}

func NewScheduler(actions ScheduledActionStore, queue Queue, defaults map[string]string, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		actions:  actions,
		queue:    queue,
		defaults: defaults,
		logger:   logger,
	}
}

// ScheduleTimeouts schedules one delayed job per timeout event type present
// on node's transitions. Returns the job ids actually scheduled. Failures are
// isolated per timeout type; the joined error reports any that were skipped.
func (s *Scheduler) ScheduleTimeouts(ctx context.Context, tenantID, campaignID int64, node *model.Node, messageID int64, p *model.Plan, now time.Time) ([]string, error) {
	log := s.logger.With(
		zap.Int64("tenant_id", tenantID),
		zap.Int64("campaign_id", campaignID),
		zap.String("node_id", node.ID),
		zap.Int64("message_id", messageID),
	)

	var scheduled []string
	var errs []error

	for _, t := range timeoutTransitions(node) {
		delay, err := s.resolveDelay(t, p)
		if err != nil {
			// One bad duration must not block sibling timeouts.
			log.Warn("Skipping unparseable timeout duration",
				zap.String("event_type", t.On),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}

		if delay <= 0 {
			// A non-positive delay is a clock or plan anomaly, not a
			// "fire now" signal.
			log.Warn("Skipping non-positive timeout delay",
				zap.String("event_type", t.On),
				zap.Duration("delay", delay),
			)
			continue
		}

		jobID := TimeoutJobID(campaignID, node.ID, t.On, messageID)
		scheduledAt := now.Add(delay)

		err = s.scheduleOne(ctx, &model.ScheduledAction{
			TenantID:    tenantID,
			CampaignID:  campaignID,
			ActionType:  "timeout",
			ScheduledAt: scheduledAt,
			JobID:       jobID,
			Payload: model.ScheduledActionDetail{
				NodeID:    node.ID,
				MessageID: messageID,
				EventType: t.On,
			},
		}, delay)

		if errors.Is(err, mq.ErrJobExists) {
			// A previous run already scheduled this job. Benign.
			log.Info("Timeout job already enqueued", zap.String("job_id", jobID))
			scheduled = append(scheduled, jobID)
			continue
		}
		if err != nil {
			log.Error("Failed to schedule timeout",
				zap.String("event_type", t.On),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("schedule %s: %w", t.On, err))
			continue
		}

		log.Info("Timeout scheduled",
			zap.String("job_id", jobID),
			zap.String("event_type", t.On),
			zap.Time("scheduled_at", scheduledAt),
		)
		metrics.IncrementTimeoutScheduled(t.On)
		scheduled = append(scheduled, jobID)
	}

	return scheduled, errors.Join(errs...)
}

// scheduleOne writes the durable record and enqueues the delayed job as one
// logical unit: the insert happens inside a transaction that rolls back when
// the enqueue fails.
func (s *Scheduler) scheduleOne(ctx context.Context, action *model.ScheduledAction, delay time.Duration) error {
	return s.actions.InTx(ctx, func(w repository.ActionWriter) error {
		if err := w.Insert(ctx, action); err != nil {
			return err
		}
		return s.queue.PublishDelayed(ctx, action.JobID, contracts.TimeoutRoutingKey, contracts.TimeoutJobPayload{
			TenantID:    action.TenantID,
			CampaignID:  action.CampaignID,
			NodeID:      action.Payload.NodeID,
			MessageID:   action.Payload.MessageID,
			EventType:   action.Payload.EventType,
			ScheduledAt: action.ScheduledAt,
		}, delay)
	})
}

// resolveDelay picks the duration for a timeout transition: its explicit
// `after`, else the plan default timer, else the system default.
func (s *Scheduler) resolveDelay(t model.Transition, p *model.Plan) (time.Duration, error) {
	if t.After != "" {
		return plan.ParseDuration(t.After)
	}

	key := t.On + "_after"
	if v, ok := p.Defaults.Timers[key]; ok && v != "" {
		return plan.ParseDuration(v)
	}
	if v, ok := s.defaults[key]; ok && v != "" {
		return plan.ParseDuration(v)
	}
	return 0, fmt.Errorf("no duration configured for %s", t.On)
}

// timeoutTransitions returns the node's timeout transitions, one per event
// type. The first declared transition of a type wins; later duplicates are
// already flagged by plan validation.
func timeoutTransitions(node *model.Node) []model.Transition {
	var out []model.Transition
	seen := make(map[string]bool)
	for _, t := range node.Transitions {
		if !model.IsTimeoutEvent(t.On) {
			continue
		}
		if seen[t.On] {
			continue
		}
		seen[t.On] = true
		out = append(out, t)
	}
	return out
}

package mqhandler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	contracts "outreach/contracts/mq"
	"outreach/internal/service"
	"outreach/pkg/logger"
)

type TimeoutJobHandler struct {
	worker *service.TimeoutWorker
	logger *zap.Logger
}

func NewTimeoutJobHandler(worker *service.TimeoutWorker, logger *zap.Logger) *TimeoutJobHandler {
	return &TimeoutJobHandler{
		worker: worker,
		logger: logger,
	}
}

// HandleTimeoutJob processes one fired delayed job. State-integrity failures
// are returned as non-retryable errors so the consumer parks them in the DLQ
// instead of redelivering forever.
func (h *TimeoutJobHandler) HandleTimeoutJob(ctx context.Context, raw json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var job contracts.TimeoutJobPayload
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error("Failed to unmarshal timeout job payload", zap.Error(err))
		return err
	}

	result, err := h.worker.HandleTimeout(ctx, job, time.Now())
	if err != nil {
		return err
	}

	log.Info("Timeout job processed",
		zap.Int64("campaign_id", job.CampaignID),
		zap.Int64("message_id", job.MessageID),
		zap.String("event_type", job.EventType),
		zap.Bool("skipped", result.Skipped),
		zap.String("skip_reason", result.SkipReason),
	)
	return nil
}

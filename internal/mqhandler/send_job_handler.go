package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	contracts "outreach/contracts/mq"
	"outreach/internal/service"
	"outreach/pkg/logger"
)

type SendJobHandler struct {
	dispatcher *service.Dispatcher
	logger     *zap.Logger
}

func NewSendJobHandler(dispatcher *service.Dispatcher, logger *zap.Logger) *SendJobHandler {
	return &SendJobHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleSendJob executes one send node job. Only infrastructure errors are
// returned (and retried by the queue); terminal outcomes are logged and acked.
func (h *SendJobHandler) HandleSendJob(ctx context.Context, raw json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var job contracts.SendJobPayload
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error("Failed to unmarshal send job payload", zap.Error(err))
		return err
	}

	result, err := h.dispatcher.Dispatch(ctx, job)
	if err != nil {
		if service.IsTerminal(err) {
			log.Error("Send job failed terminally, not retrying",
				zap.Int64("campaign_id", job.CampaignID),
				zap.String("node_id", job.NodeID),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	log.Info("Send job processed",
		zap.Int64("campaign_id", job.CampaignID),
		zap.String("node_id", job.NodeID),
		zap.Bool("success", result.Success),
		zap.Bool("skipped", result.Skipped),
		zap.String("skip_reason", result.SkipReason),
		zap.String("error", result.Error),
	)
	return nil
}

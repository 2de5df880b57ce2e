package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	contracts "outreach/contracts/mq"
	"outreach/internal/model"
	"outreach/internal/transport"
	"outreach/pkg/circuitbreaker"
	"outreach/pkg/metrics"
)

// Skip reasons surfaced in DispatchResult.
const (
	SkipUnsubscribed    = "unsubscribed"
	SkipAlreadyInFlight = "already_in_flight"
	SkipRealEventExists = "real_event_exists"
)

// DispatchResult is the structured outcome of executing a send node. Terminal
// failures live here, not in the returned error, so the queue layer retries
// only on infrastructure trouble.
type DispatchResult struct {
	Success           bool   `json:"success"`
	Skipped           bool   `json:"skipped"`
	SkipReason        string `json:"skip_reason,omitempty"`
	Error             string `json:"error,omitempty"`
	MessageID         int64  `json:"message_id,omitempty"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	SchedulingError   string `json:"scheduling_error,omitempty"`
}

// Dispatcher executes send nodes: suppression, identity, dedupe, transport,
// and the follow-up timeout scheduling.
type Dispatcher struct {
	messages     OutboundMessageStore
	campaigns    ContactCampaignStore
	contacts     ContactStore
	identities   SenderIdentityStore
	suppressions SuppressionStore
	transport    transport.Transport
	scheduler    *Scheduler
	breaker      *circuitbreaker.CircuitBreaker
	logger       *zap.Logger
}

func NewDispatcher(
	messages OutboundMessageStore,
	campaigns ContactCampaignStore,
	contacts ContactStore,
	identities SenderIdentityStore,
	suppressions SuppressionStore,
	tr transport.Transport,
	scheduler *Scheduler,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		messages:     messages,
		campaigns:    campaigns,
		contacts:     contacts,
		identities:   identities,
		suppressions: suppressions,
		transport:    tr,
		scheduler:    scheduler,
		breaker:      circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:       logger,
	}
}

// Dispatch executes the send node named by the job. Safe to re-run: the
// dedupe claim collapses duplicate deliveries onto the first outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, job contracts.SendJobPayload) (*DispatchResult, error) {
	log := d.logger.With(
		zap.Int64("tenant_id", job.TenantID),
		zap.Int64("campaign_id", job.CampaignID),
		zap.Int64("contact_id", job.ContactID),
		zap.String("node_id", job.NodeID),
	)

	campaign, err := d.campaigns.FindByID(ctx, job.TenantID, job.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, stateIntegrityError("campaign %d not found", job.CampaignID)
	}

	var p model.Plan
	if err := json.Unmarshal(campaign.PlanJSON, &p); err != nil {
		return nil, stateIntegrityError("campaign %d has unreadable plan", job.CampaignID)
	}

	node := p.FindNode(job.NodeID)
	if node == nil {
		return nil, stateIntegrityError("node %q not in plan of campaign %d", job.NodeID, job.CampaignID)
	}

	result, err := d.executeSend(ctx, job, &p, node, log)
	if err != nil {
		if IsTerminal(err) {
			log.Error("Dispatch failed terminally", zap.Error(err))
			metrics.IncrementSend("failed")
			return &DispatchResult{Error: err.Error()}, nil
		}
		return nil, err
	}
	return result, nil
}

func (d *Dispatcher) executeSend(ctx context.Context, job contracts.SendJobPayload, p *model.Plan, node *model.Node, log *zap.Logger) (*DispatchResult, error) {
	// 1. Validate the node is actually sendable.
	if node.Action != model.ActionSend {
		return nil, validationError("node %q is %q, not a send node", node.ID, node.Action)
	}
	if node.Channel != "email" {
		// Other channels are stubbed out for now.
		return nil, validationError("channel %q is not supported", node.Channel)
	}
	if node.Subject == "" || node.Body == "" {
		return nil, validationError("node %q missing subject or body", node.ID)
	}

	contact, err := d.contacts.FindByID(ctx, job.TenantID, job.ContactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, validationError("contact %d not found", job.ContactID)
	}
	address := contact.Address(node.Channel)
	if address == "" {
		return nil, validationError("contact %d has no %s address", job.ContactID, node.Channel)
	}

	// 2. Suppression short-circuits before any transport work.
	suppressed, err := d.suppressions.IsUnsubscribed(ctx, job.TenantID, node.Channel, address)
	if err != nil {
		return nil, err
	}
	if suppressed {
		log.Info("Recipient unsubscribed, skipping send")
		metrics.IncrementSend("skipped")
		return &DispatchResult{Skipped: true, SkipReason: SkipUnsubscribed}, nil
	}

	// 3. A missing verified identity cannot be fixed by retrying.
	identity, err := d.identities.FindVerified(ctx, job.TenantID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, configurationError("tenant %d has no verified sender identity", job.TenantID)
	}

	// 4. Dedupe guard.
	dedupeKey := BuildDedupeKey(job.TenantID, job.CampaignID, job.ContactID, node.ID, node.Channel)
	msg, claimed, err := d.messages.Claim(ctx, &model.OutboundMessage{
		TenantID:   job.TenantID,
		CampaignID: job.CampaignID,
		ContactID:  job.ContactID,
		NodeID:     node.ID,
		Channel:    node.Channel,
		DedupeKey:  dedupeKey,
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		result := d.replayOutcome(msg, log)
		if msg.State == model.MessageSent {
			// A redelivery is also the retry path for timeouts that were
			// lost to a crash or enqueue failure after the send. Scheduling
			// is idempotent, so re-running it here is safe.
			if _, err := d.scheduler.ScheduleTimeouts(ctx, job.TenantID, job.CampaignID, node, msg.ID, p, time.Now()); err != nil {
				log.Error("Timeout scheduling failed on replay", zap.Error(err))
				result.SchedulingError = err.Error()
			}
		}
		return result, nil
	}

	// 5. External send, correlated by the dedupe key so provider-side
	// retries stay idempotent too.
	start := time.Now()
	var providerID string
	sendErr := d.breaker.Execute(func() error {
		var err error
		providerID, err = d.transport.Send(ctx, identity.Email, address, node.Subject, node.Body, dedupeKey)
		return err
	})

	if errors.Is(sendErr, circuitbreaker.ErrCircuitBreakerOpen) {
		// The breaker rejected the call before anything reached the
		// provider. Surrender the claim so a later redelivery can send
		// once the breaker closes, and let the queue retry.
		if err := d.messages.DeleteQueued(ctx, msg.ID); err != nil {
			log.Error("Failed to release send claim", zap.Error(err))
		}
		log.Warn("Transport circuit open, deferring send")
		return nil, fmt.Errorf("transport unavailable: %w", sendErr)
	}
	if sendErr != nil {
		metrics.RecordTransportCall("error", time.Since(start))
		// 7. Terminal for this node/contact pair; retry policy belongs to
		// the caller.
		if err := d.messages.MarkFailed(ctx, msg.ID, sendErr.Error()); err != nil {
			log.Error("Failed to record send failure", zap.Error(err))
		}
		log.Error("Transport send failed", zap.Error(sendErr))
		metrics.IncrementSend("failed")
		return &DispatchResult{
			Error:     transportError(sendErr).Error(),
			MessageID: msg.ID,
		}, nil
	}
	metrics.RecordTransportCall("ok", time.Since(start))

	// 6. Persist the outcome.
	if err := d.messages.MarkSent(ctx, msg.ID, providerID); err != nil {
		return nil, err
	}
	log.Info("Message sent",
		zap.Int64("message_id", msg.ID),
		zap.String("provider_message_id", providerID),
	)
	metrics.IncrementSend("sent")

	result := &DispatchResult{
		Success:           true,
		MessageID:         msg.ID,
		ProviderMessageID: providerID,
	}

	// 8. Timeout scheduling runs only after a successful send, and its
	// failure never unwinds the send.
	if _, err := d.scheduler.ScheduleTimeouts(ctx, job.TenantID, job.CampaignID, node, msg.ID, p, time.Now()); err != nil {
		log.Error("Timeout scheduling failed after send", zap.Error(err))
		result.SchedulingError = err.Error()
	}

	return result, nil
}

// replayOutcome maps a previously claimed message onto the dispatch result a
// fresh send would have produced.
func (d *Dispatcher) replayOutcome(msg *model.OutboundMessage, log *zap.Logger) *DispatchResult {
	switch msg.State {
	case model.MessageSent:
		log.Info("Duplicate dispatch, replaying sent outcome", zap.Int64("message_id", msg.ID))
		metrics.IncrementSend("deduped")
		return &DispatchResult{
			Success:           true,
			MessageID:         msg.ID,
			ProviderMessageID: msg.ProviderMessageID,
		}
	case model.MessageFailed:
		metrics.IncrementSend("deduped")
		return &DispatchResult{
			Error:     msg.LastError,
			MessageID: msg.ID,
		}
	default:
		// Another dispatch holds the claim and has not finished yet.
		log.Info("Send already in flight", zap.Int64("message_id", msg.ID))
		metrics.IncrementSend("deduped")
		return &DispatchResult{
			Skipped:    true,
			SkipReason: SkipAlreadyInFlight,
			MessageID:  msg.ID,
		}
	}
}

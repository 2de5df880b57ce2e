package service

import (
	"context"
	"time"

	"outreach/internal/model"
	"outreach/internal/repository"
)

// Store interfaces consumed by the engine services. The pgx repositories in
// internal/repository satisfy them; tests substitute in-memory fakes.

type OutboundMessageStore interface {
	Claim(ctx context.Context, m *model.OutboundMessage) (*model.OutboundMessage, bool, error)
	FindByID(ctx context.Context, tenantID, id int64) (*model.OutboundMessage, error)
	MarkSent(ctx context.Context, id int64, providerMessageID string) error
	MarkFailed(ctx context.Context, id int64, sendErr string) error
	DeleteQueued(ctx context.Context, id int64) error
}

type MessageEventStore interface {
	Insert(ctx context.Context, e *model.MessageEvent) error
	Exists(ctx context.Context, tenantID, messageID int64, eventType string) (bool, error)
}

type ContactCampaignStore interface {
	Create(ctx context.Context, c *model.ContactCampaign) error
	FindByID(ctx context.Context, tenantID, id int64) (*model.ContactCampaign, error)
	UpdateCurrentNode(ctx context.Context, tenantID, id int64, nodeID string) error
	MarkCompleted(ctx context.Context, tenantID, id int64) error
}

type ScheduledActionStore interface {
	InTx(ctx context.Context, fn func(w repository.ActionWriter) error) error
	MarkStatus(ctx context.Context, jobID, status string) error
	ListPendingForCampaign(ctx context.Context, tenantID, campaignID int64) ([]model.ScheduledAction, error)
}

type ContactStore interface {
	FindByID(ctx context.Context, tenantID, id int64) (*model.Contact, error)
}

type SenderIdentityStore interface {
	FindVerified(ctx context.Context, tenantID int64) (*model.SenderIdentity, error)
}

type SuppressionStore interface {
	IsUnsubscribed(ctx context.Context, tenantID int64, channel, address string) (bool, error)
}

// Queue is the at-least-once job queue consumed by the engine.
type Queue interface {
	Publish(routingKey string, payload any) error
	PublishDelayed(ctx context.Context, jobID, routingKey string, payload any, delay time.Duration) error
}

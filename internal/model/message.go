package model

import "time"

// Outbound message states.
const (
	MessageQueued = "queued"
	MessageSent   = "sent"
	MessageFailed = "failed"
)

// OutboundMessage is one attempted send. The (tenant_id, dedupe_key) pair is
// unique, which is what makes dispatch idempotent across retries and crashes.
type OutboundMessage struct {
	ID                int64      `json:"id"`
	TenantID          int64      `json:"tenant_id"`
	CampaignID        int64      `json:"campaign_id"`
	ContactID         int64      `json:"contact_id"`
	NodeID            string     `json:"node_id"`
	Channel           string     `json:"channel"`
	DedupeKey         string     `json:"dedupe_key"`
	State             string     `json:"state"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	LastError         string     `json:"last_error,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// SenderIdentity is a verified sending address owned by a tenant.
type SenderIdentity struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenant_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Status   string `json:"status"` // pending, verified, failed
}

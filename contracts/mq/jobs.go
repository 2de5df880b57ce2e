package mq

import "time"

// Routing keys and queue names for the engine's job flows.
const (
	SendRoutingKey    = "campaign.send"
	TimeoutRoutingKey = "campaign.timeout"

	SendQueue    = "campaign.send.q"
	TimeoutQueue = "campaign.timeout.q"
)

// SendJobPayload asks the worker to execute a send node for one contact.
type SendJobPayload struct {
	TenantID   int64             `json:"tenant_id"`
	CampaignID int64             `json:"campaign_id"`
	ContactID  int64             `json:"contact_id"`
	NodeID     string            `json:"node_id"`
	ActionType string            `json:"action_type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// TimeoutJobPayload is a fired delayed job guarding one timeout transition.
type TimeoutJobPayload struct {
	TenantID    int64     `json:"tenant_id"`
	CampaignID  int64     `json:"campaign_id"`
	NodeID      string    `json:"node_id"`
	MessageID   int64     `json:"message_id"`
	EventType   string    `json:"event_type"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

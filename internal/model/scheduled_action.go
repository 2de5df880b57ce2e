package model

import "time"

// Scheduled action lifecycle.
const (
	ActionPending    = "pending"
	ActionFired      = "fired"
	ActionSuperseded = "superseded"
	ActionError      = "error"
)

// ScheduledAction is the durable record paired 1:1 with a delayed queue job.
// It is created in the same transaction that enqueues the job, so an enqueue
// failure leaves no orphan row behind.
type ScheduledAction struct {
	ID          int64                 `json:"id"`
	TenantID    int64                 `json:"tenant_id"`
	CampaignID  int64                 `json:"campaign_id"`
	ActionType  string                `json:"action_type"` // timeout
	ScheduledAt time.Time             `json:"scheduled_at"`
	Payload     ScheduledActionDetail `json:"payload"`
	JobID       string                `json:"job_id"`
	Status      string                `json:"status"`
	CreatedAt   time.Time             `json:"created_at"`
}

type ScheduledActionDetail struct {
	NodeID    string `json:"node_id"`
	MessageID int64  `json:"message_id"`
	EventType string `json:"event_type"`
}

package model

import "time"

// MessageEvent is an append-only record of something that happened (or
// definitively did not happen) to an outbound message. Real events come from
// provider webhooks; synthetic ones are manufactured by the timeout worker.
type MessageEvent struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	MessageID int64     `json:"message_id"`
	Type      string    `json:"type"`
	EventAt   time.Time `json:"event_at"`
	Data      EventData `json:"data"`
}

type EventData struct {
	Synthetic     bool       `json:"synthetic"`
	TriggeredBy   string     `json:"triggered_by,omitempty"` // job id for synthetic events
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	ActualFiredAt *time.Time `json:"actual_fired_at,omitempty"`
}

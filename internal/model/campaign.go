package model

import (
	"encoding/json"
	"time"
)

// ContactCampaign tracks one contact's position in a campaign plan.
// Only the transition engine mutates CurrentNodeID.
type ContactCampaign struct {
	ID            int64           `json:"id"`
	TenantID      int64           `json:"tenant_id"`
	ContactID     int64           `json:"contact_id"`
	PlanJSON      json.RawMessage `json:"plan_json"`
	CurrentNodeID string          `json:"current_node_id"`
	Status        string          `json:"status"` // active, completed
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`
}

type Contact struct {
	ID        int64  `json:"id"`
	TenantID  int64  `json:"tenant_id"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Address returns the contact's address for a channel, or "".
func (c *Contact) Address(channel string) string {
	switch channel {
	case "email":
		return c.Email
	case "sms":
		return c.Phone
	}
	return ""
}

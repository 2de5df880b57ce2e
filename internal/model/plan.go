package model

import "strings"

// Action is the closed set of node actions.
type Action string

const (
	ActionSend    Action = "send"
	ActionWait    Action = "wait"
	ActionTimeout Action = "timeout"
)

// Timeout event types, the only ones that may pair with an `after` duration.
const (
	EventNoOpen  = "no_open"
	EventNoClick = "no_click"
	EventNoReply = "no_reply"
)

// Real event types recorded from provider webhooks.
const (
	EventOpen  = "open"
	EventClick = "click"
	EventReply = "reply"
)

// Plan is the externally supplied outreach sequence for one campaign.
// Immutable once attached to a contact campaign.
type Plan struct {
	Version     string       `json:"version"`
	Timezone    string       `json:"timezone"`
	StartNodeID string       `json:"startNodeId"`
	Defaults    PlanDefaults `json:"defaults"`
	Nodes       []Node       `json:"nodes"`
}

type PlanDefaults struct {
	// Timers maps "<timeout_event>_after" to an ISO-8601 duration,
	// e.g. "no_open_after": "P2D".
	Timers map[string]string `json:"timers"`
}

type Node struct {
	ID          string       `json:"id"`
	Channel     string       `json:"channel"`
	Action      Action       `json:"action"`
	Subject     string       `json:"subject,omitempty"`
	Body        string       `json:"body,omitempty"`
	Schedule    *Schedule    `json:"schedule,omitempty"`
	Transitions []Transition `json:"transitions"`
}

type Schedule struct {
	Delay string `json:"delay,omitempty"`
}

// Transition maps an event on a node to a target node. Exactly one of After
// (a timeout that gets scheduled) or Within (a real-event deadline) is set.
type Transition struct {
	On     string `json:"on"`
	To     string `json:"to"`
	After  string `json:"after,omitempty"`
	Within string `json:"within,omitempty"`
}

// FindNode returns the node with the given id, or nil.
func (p *Plan) FindNode(id string) *Node {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			return &p.Nodes[i]
		}
	}
	return nil
}

// IsTimeoutEvent reports whether t belongs to the closed set of timeout
// event types.
func IsTimeoutEvent(t string) bool {
	switch t {
	case EventNoOpen, EventNoClick, EventNoReply:
		return true
	}
	return false
}

// RealCounterpart returns the real event a timeout guards against
// (no_open -> open). Returns "" if t is not a timeout event.
func RealCounterpart(t string) string {
	if !IsTimeoutEvent(t) {
		return ""
	}
	return strings.TrimPrefix(t, "no_")
}

// NormalizeEventType maps the past-tense trigger names used in plan
// transitions onto the recorded event types ("opened" -> "open"). Timeout
// event types pass through unchanged.
func NormalizeEventType(t string) string {
	switch t {
	case "opened":
		return EventOpen
	case "clicked":
		return EventClick
	case "replied":
		return EventReply
	}
	return t
}

// KnownEventType reports whether t (after normalization) is an event type the
// engine understands. Unknown types are rejected at plan validation.
func KnownEventType(t string) bool {
	switch NormalizeEventType(t) {
	case EventOpen, EventClick, EventReply, EventNoOpen, EventNoClick, EventNoReply:
		return true
	}
	return false
}

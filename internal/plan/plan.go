// Package plan parses and validates campaign plan documents. A plan that
// passes Validate can be executed without the engine having to re-check node
// references or transition shapes at every hop.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"outreach/internal/model"
)

// ValidationError carries every problem found in a plan document.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid plan: %s", strings.Join(e.Issues, "; "))
}

// Parse unmarshals and validates a plan document. Duplicate-event-type
// warnings are returned separately; they do not fail the plan.
func Parse(raw json.RawMessage) (*model.Plan, []string, error) {
	var p model.Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	warnings, err := Validate(&p)
	if err != nil {
		return nil, warnings, err
	}
	return &p, warnings, nil
}

// Validate checks the structural invariants of a plan. It rejects unknown
// transition event types and malformed transitions outright rather than
// silently ignoring them at execution time.
func Validate(p *model.Plan) ([]string, error) {
	var issues []string
	var warnings []string

	if len(p.Nodes) == 0 {
		issues = append(issues, "plan has no nodes")
	}

	nodeIDs := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if n.ID == "" {
			issues = append(issues, "node with empty id")
			continue
		}
		if nodeIDs[n.ID] {
			issues = append(issues, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		nodeIDs[n.ID] = true
	}

	if p.StartNodeID == "" {
		issues = append(issues, "startNodeId is empty")
	} else if !nodeIDs[p.StartNodeID] {
		issues = append(issues, fmt.Sprintf("startNodeId %q not found", p.StartNodeID))
	}

	for _, n := range p.Nodes {
		issues = append(issues, validateNode(&n, nodeIDs)...)
		warnings = append(warnings, duplicateTriggerWarnings(&n)...)
	}

	for key, val := range p.Defaults.Timers {
		if _, err := ParseDuration(val); err != nil {
			issues = append(issues, fmt.Sprintf("default timer %q: %v", key, err))
		}
	}

	if len(issues) > 0 {
		return warnings, &ValidationError{Issues: issues}
	}
	return warnings, nil
}

func validateNode(n *model.Node, nodeIDs map[string]bool) []string {
	var issues []string

	switch n.Action {
	case model.ActionSend, model.ActionWait, model.ActionTimeout:
	default:
		issues = append(issues, fmt.Sprintf("node %q: unknown action %q", n.ID, n.Action))
	}

	if n.Action == model.ActionSend {
		if n.Channel == "" {
			issues = append(issues, fmt.Sprintf("node %q: send node missing channel", n.ID))
		}
		if n.Subject == "" {
			issues = append(issues, fmt.Sprintf("node %q: send node missing subject", n.ID))
		}
		if n.Body == "" {
			issues = append(issues, fmt.Sprintf("node %q: send node missing body", n.ID))
		}
		if n.Schedule != nil && n.Schedule.Delay != "" {
			if _, err := ParseDuration(n.Schedule.Delay); err != nil {
				issues = append(issues, fmt.Sprintf("node %q: schedule delay: %v", n.ID, err))
			}
		}
	}

	for i, t := range n.Transitions {
		where := fmt.Sprintf("node %q transition %d", n.ID, i)

		if !model.KnownEventType(t.On) {
			issues = append(issues, fmt.Sprintf("%s: unknown event type %q", where, t.On))
		}
		if t.To == "" {
			issues = append(issues, fmt.Sprintf("%s: empty target", where))
		} else if !nodeIDs[t.To] {
			issues = append(issues, fmt.Sprintf("%s: target %q not found", where, t.To))
		}

		hasAfter := t.After != ""
		hasWithin := t.Within != ""
		if hasAfter && hasWithin {
			issues = append(issues, fmt.Sprintf("%s: after and within are mutually exclusive", where))
		}
		if hasAfter {
			if !model.IsTimeoutEvent(t.On) {
				issues = append(issues, fmt.Sprintf("%s: after requires a timeout event type, got %q", where, t.On))
			}
			if _, err := ParseDuration(t.After); err != nil {
				issues = append(issues, fmt.Sprintf("%s: %v", where, err))
			}
		}
		if hasWithin {
			if model.IsTimeoutEvent(t.On) {
				issues = append(issues, fmt.Sprintf("%s: within cannot pair with timeout event %q", where, t.On))
			}
			if _, err := ParseDuration(t.Within); err != nil {
				issues = append(issues, fmt.Sprintf("%s: %v", where, err))
			}
		}
		// Timeout transitions may omit after entirely; the scheduler then
		// falls back to plan default timers or system defaults.
	}

	return issues
}

// duplicateTriggerWarnings flags repeated event types on one node. Execution
// honors the first declared transition; the rest are dead.
func duplicateTriggerWarnings(n *model.Node) []string {
	var warnings []string
	seen := make(map[string]bool)
	for _, t := range n.Transitions {
		on := model.NormalizeEventType(t.On)
		if seen[on] {
			warnings = append(warnings, fmt.Sprintf("node %q: duplicate transition for %q, first declared wins", n.ID, t.On))
		}
		seen[on] = true
	}
	return warnings
}

package service

import (
	"fmt"
	"hash/fnv"
)

// BuildDedupeKey produces the deterministic key identifying one logical send:
// the same (tenant, campaign, contact, node, channel) tuple always yields the
// same key, and distinct tuples cannot collide because ids never contain ':'.
func BuildDedupeKey(tenantID, campaignID, contactID int64, nodeID, channel string) string {
	return fmt.Sprintf("%d:%d:%d:%s:%s", tenantID, campaignID, contactID, nodeID, channel)
}

// TimeoutJobID produces the deterministic queue job id for a timeout. Being a
// pure function of the tuple, re-running the scheduling step yields the same
// id and the queue's existing-job check turns the duplicate into a no-op.
func TimeoutJobID(campaignID int64, nodeID, eventType string, messageID int64) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%d|%s|%s|%d", campaignID, nodeID, eventType, messageID)
	return fmt.Sprintf("timeout_%d_%s_%s_%d_%08x", campaignID, nodeID, eventType, messageID, h.Sum32())
}

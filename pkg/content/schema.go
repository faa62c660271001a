package content

import "fmt"

// Redis channel helpers
//
// Content channels are namespaced by instance name so several loft instances
// can share one Redis server.
//
// Channel pattern: loft:{instance_name}:{purpose}

// InboundChannel returns the channel remote peers publish raw content payloads to.
// Pattern: loft:{instance_name}:content_inbound
func InboundChannel(instanceName string) string {
	return fmt.Sprintf("loft:%s:content_inbound", instanceName)
}

// BroadcastChannel returns the channel carrying payloads rebroadcast to all participants.
// Pattern: loft:{instance_name}:content_events
func BroadcastChannel(instanceName string) string {
	return fmt.Sprintf("loft:%s:content_events", instanceName)
}

// ParticipantChannel returns the direct channel for a single participant.
// Pattern: loft:{instance_name}:participant:{participant_id}:events
func ParticipantChannel(instanceName string, participantID int) string {
	return fmt.Sprintf("loft:%s:participant:%d:events", instanceName, participantID)
}

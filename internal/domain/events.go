package domain

// Event type constants used across the application for event bus subscriptions
// and metrics tracking.
//
// Event types follow the pattern: <entity>.<action> (e.g., "group.finalized")
const (
	// EventTypeGroupCreated is published when the challenge contract originates a group
	EventTypeGroupCreated = "group.created"

	// EventTypeGroupMemberJoined is published when a participant joins a forming group
	EventTypeGroupMemberJoined = "group.member_joined"

	// EventTypeGroupMemberLeft is published when a participant leaves a forming group
	EventTypeGroupMemberLeft = "group.member_left"

	// EventTypeGroupFinalized is published when the creator reserves the group
	EventTypeGroupFinalized = "group.finalized"

	// EventTypeGroupActivated is published when the challenge contract activates the group
	EventTypeGroupActivated = "group.activated"

	// EventTypeGroupCompleted is published when an active group finishes its attempt
	EventTypeGroupCompleted = "group.completed"

	// EventTypeGroupDisbanded is published when the creator disbands a forming group
	EventTypeGroupDisbanded = "group.disbanded"
)

// GroupEventTypes lists every group lifecycle event
func GroupEventTypes() []string {
	return []string{
		EventTypeGroupCreated,
		EventTypeGroupMemberJoined,
		EventTypeGroupMemberLeft,
		EventTypeGroupFinalized,
		EventTypeGroupActivated,
		EventTypeGroupCompleted,
		EventTypeGroupDisbanded,
	}
}

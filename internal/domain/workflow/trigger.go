package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerStart    Trigger = "START"
	TriggerComplete Trigger = "COMPLETE"
	TriggerCancel   Trigger = "CANCEL"
	TriggerApprove  Trigger = "APPROVE"
	TriggerReject   Trigger = "REJECT"
	TriggerResolve  Trigger = "RESOLVE"
	TriggerClose    Trigger = "CLOSE"
	TriggerEscalate Trigger = "ESCALATE"
	TriggerExpire   Trigger = "EXPIRE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

package workflow

// Trigger is an engine operation that appends a transition record
type Trigger string

const (
	TriggerAdvance  Trigger = "ADVANCE"  // follow next_step_id
	TriggerJump     Trigger = "JUMP"     // explicit step target
	TriggerReassign Trigger = "REASSIGN" // holder change on the current step
	TriggerEscalate Trigger = "ESCALATE" // SLA breach handover
	TriggerClose    Trigger = "CLOSE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

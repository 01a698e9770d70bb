// Package session models the multi-step booking dialog as an explicit
// per-user finite state machine. The state itself is persisted through
// a repository.StateRepository, so a dialog survives restarts and
// expires instead of accumulating in an unbounded map.
package session

// Step is a stage of the booking dialog.
type Step string

const (
	StepIdle        Step = "idle"
	StepAskPhone    Step = "ask_phone"
	StepChooseDate  Step = "choose_date"
	StepChooseTime  Step = "choose_time"
	StepAskGuests   Step = "ask_guests"
	StepAskReminder Step = "ask_reminder"
	StepComplete    Step = "complete"
	StepCanceled    Step = "canceled"
)

// Temp data keys used across the dialog.
const (
	KeyDate        = "date"
	KeySlotID      = "slot_id"
	KeyGuests      = "guests"
	KeyReminderHrs = "reminder_hours"
)

// FSM holds the allowed dialog transitions.
type FSM struct {
	transitions map[Step][]Step
}

// NewFSM creates the booking dialog FSM.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[Step][]Step{
			StepIdle:        {StepAskPhone, StepChooseDate},
			StepAskPhone:    {StepChooseDate, StepCanceled},
			StepChooseDate:  {StepChooseTime, StepCanceled},
			StepChooseTime:  {StepAskGuests, StepChooseDate, StepCanceled},
			StepAskGuests:   {StepAskReminder, StepChooseTime, StepCanceled},
			StepAskReminder: {StepComplete, StepAskGuests, StepChooseTime, StepCanceled},
			StepComplete:    {StepIdle},
			StepCanceled:    {StepIdle},
		},
	}
}

// CanTransition checks whether moving from one step to another is
// allowed.
func (f *FSM) CanTransition(from, to Step) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

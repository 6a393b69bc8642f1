package campaigns

import "fmt"

// Action is an explicit operator transition.
type Action string

const (
	ActionSchedule Action = "schedule"
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionCancel   Action = "cancel"
)

var transitions = map[Action]map[Status]Status{
	ActionSchedule: {StatusDraft: StatusAwaiting},
	ActionStart:    {StatusAwaiting: StatusActive},
	ActionPause:    {StatusActive: StatusPaused},
	ActionResume:   {StatusPaused: StatusActive},
	ActionCancel: {
		StatusDraft:    StatusCancelled,
		StatusAwaiting: StatusCancelled,
		StatusActive:   StatusCancelled,
		StatusPaused:   StatusCancelled,
	},
}

// Transition returns the status reached by applying action to from.
// Completion is not an action: the dispatcher applies it when the queue drains.
func Transition(from Status, action Action) (Status, error) {
	to, ok := transitions[action][from]
	if !ok {
		return from, fmt.Errorf("%w: cannot %s a %s campaign", ErrInvalidTransition, action, from)
	}
	return to, nil
}

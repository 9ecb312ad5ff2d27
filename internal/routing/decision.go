package routing

import "call-screener/internal/calls"

// Decision is the pure output of the routing policy: where the call goes and
// which side effects must follow the transition.
type Decision struct {
	Action  Action           `json:"action"`
	Target  calls.CallStatus `json:"target"`
	Effects []Effect         `json:"effects,omitempty"`
}

// Has reports whether the decision requires effect e.
func (d Decision) Has(e Effect) bool {
	for _, x := range d.Effects {
		if x == e {
			return true
		}
	}
	return false
}

// Action is a caller- or policy-initiated routing request. The set is closed.
type Action string

const (
	ActionAccept           Action = "accept"
	ActionDecline          Action = "decline"
	ActionVoicemail        Action = "voicemail"
	ActionScheduleCallback Action = "schedule_callback"
	ActionBlock            Action = "block"
)

// Actions lists every routing action in a stable order.
var Actions = []Action{ActionAccept, ActionDecline, ActionVoicemail, ActionScheduleCallback, ActionBlock}

// Effect is a side effect the executor performs after the transition.
type Effect string

const (
	EffectScheduleCallback Effect = "schedule_callback"
)

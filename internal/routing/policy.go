package routing

import (
	"strings"

	"call-screener/internal/apperrors"
	"call-screener/internal/calls"
	"call-screener/internal/screening"
)

// Route maps an action to its target status and side effects. It performs no I/O
// and returns a fresh Decision on every call.
//
//	accept            -> in_progress
//	decline           -> missed
//	voicemail         -> in_progress (voicemail capture later ends the call as completed)
//	schedule_callback -> missed + schedule a callback
//	block             -> blocked
func Route(a Action) (Decision, error) {
	switch a {
	case ActionAccept:
		return Decision{Action: a, Target: calls.CallStatusInProgress}, nil
	case ActionDecline:
		return Decision{Action: a, Target: calls.CallStatusMissed}, nil
	case ActionVoicemail:
		return Decision{Action: a, Target: calls.CallStatusInProgress}, nil
	case ActionScheduleCallback:
		return Decision{Action: a, Target: calls.CallStatusMissed, Effects: []Effect{EffectScheduleCallback}}, nil
	case ActionBlock:
		return Decision{Action: a, Target: calls.CallStatusBlocked}, nil
	default:
		return Decision{}, apperrors.New(apperrors.ErrInvalidAction, "routing.route", "unknown action %q", a)
	}
}

// ParseAction accepts the wire spellings of an action ("schedule_callback",
// "ScheduleCallback", "schedule-callback") and rejects everything else.
func ParseAction(s string) (Action, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "", "_", "", " ", "").Replace(norm)
	for _, a := range Actions {
		if strings.ReplaceAll(string(a), "_", "") == norm {
			return a, nil
		}
	}
	return "", apperrors.New(apperrors.ErrValidation, "routing.parse_action", "unknown action %q", s)
}

// ActionForRecommendation turns a classifier recommendation into a routing action.
func ActionForRecommendation(r screening.Recommendation) (Action, error) {
	switch r {
	case screening.RecommendForward:
		return ActionAccept, nil
	case screening.RecommendTakeMessage:
		return ActionVoicemail, nil
	case screening.RecommendOfferCallback:
		return ActionScheduleCallback, nil
	case screening.RecommendBlockCaller:
		return ActionBlock, nil
	default:
		return "", apperrors.New(apperrors.ErrInvalidAction, "routing.recommendation", "unknown recommendation %q", r)
	}
}

package routing

import (
	"reflect"
	"testing"

	"call-screener/internal/apperrors"
	"call-screener/internal/calls"
	"call-screener/internal/screening"
)

func TestRoute_Table(t *testing.T) {
	cases := []struct {
		action  Action
		target  calls.CallStatus
		effects []Effect
	}{
		{ActionAccept, calls.CallStatusInProgress, nil},
		{ActionDecline, calls.CallStatusMissed, nil},
		{ActionVoicemail, calls.CallStatusInProgress, nil},
		{ActionScheduleCallback, calls.CallStatusMissed, []Effect{EffectScheduleCallback}},
		{ActionBlock, calls.CallStatusBlocked, nil},
	}
	for _, tc := range cases {
		for i := 0; i < 3; i++ {
			d, err := Route(tc.action)
			if err != nil {
				t.Fatalf("%s: %v", tc.action, err)
			}
			if d.Target != tc.target || !reflect.DeepEqual(d.Effects, tc.effects) {
				t.Fatalf("%s: got %+v", tc.action, d)
			}
		}
	}
}

func TestRoute_DecisionsAreIndependent(t *testing.T) {
	a, _ := Route(ActionScheduleCallback)
	a.Effects[0] = "tampered"
	b, _ := Route(ActionScheduleCallback)
	if !b.Has(EffectScheduleCallback) {
		t.Fatalf("decisions share state")
	}
}

func TestRoute_UnknownAction(t *testing.T) {
	if _, err := Route(Action("transfer")); !isInvalidAction(err) {
		t.Fatalf("expected invalid action, got %v", err)
	}
}

func isInvalidAction(err error) bool {
	return apperrors.KindOf(err) == apperrors.ErrInvalidAction
}

func TestParseAction(t *testing.T) {
	cases := map[string]Action{
		"accept":            ActionAccept,
		"Decline":           ActionDecline,
		"VoiceMail":         ActionVoicemail,
		"ScheduleCallback":  ActionScheduleCallback,
		"schedule_callback": ActionScheduleCallback,
		" block ":           ActionBlock,
	}
	for in, want := range cases {
		got, err := ParseAction(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %q, %v", in, got, err)
		}
	}
	if _, err := ParseAction("hangup"); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestActionForRecommendation(t *testing.T) {
	cases := map[screening.Recommendation]Action{
		screening.RecommendForward:       ActionAccept,
		screening.RecommendTakeMessage:   ActionVoicemail,
		screening.RecommendOfferCallback: ActionScheduleCallback,
		screening.RecommendBlockCaller:   ActionBlock,
	}
	for rec, want := range cases {
		got, err := ActionForRecommendation(rec)
		if err != nil || got != want {
			t.Fatalf("%s: got %s, %v", rec, got, err)
		}
	}
	if _, err := ActionForRecommendation("Escalate"); err == nil {
		t.Fatalf("expected error")
	}
}

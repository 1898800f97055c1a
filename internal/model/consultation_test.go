package model

import "testing"

func TestNextStatus_LegalEdges(t *testing.T) {
	cases := []struct {
		from  ConsultationStatus
		event TransitionEvent
		to    ConsultationStatus
	}{
		{StatusPending, EventConfirm, StatusConfirmed},
		{StatusPending, EventReject, StatusRejected},
		{StatusPending, EventCancel, StatusCancelled},
		{StatusConfirmed, EventStart, StatusInProgress},
		{StatusConfirmed, EventCancel, StatusCancelled},
		{StatusConfirmed, EventNoShow, StatusNoShow},
		{StatusInProgress, EventComplete, StatusCompleted},
	}
	for _, c := range cases {
		next, ok := NextStatus(c.from, c.event)
		if !ok {
			t.Fatalf("%s --%s--> should be legal", c.from, c.event)
		}
		if next != c.to {
			t.Fatalf("%s --%s--> got %s, want %s", c.from, c.event, next, c.to)
		}
	}
}

func TestNextStatus_IllegalEverywhereElse(t *testing.T) {
	legal := map[ConsultationStatus]map[TransitionEvent]bool{
		StatusPending:    {EventConfirm: true, EventReject: true, EventCancel: true},
		StatusConfirmed:  {EventStart: true, EventCancel: true, EventNoShow: true},
		StatusInProgress: {EventComplete: true},
	}
	statuses := []ConsultationStatus{
		StatusPending, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusRejected, StatusCancelled, StatusNoShow,
	}
	events := []TransitionEvent{
		EventConfirm, EventReject, EventCancel, EventStart, EventComplete, EventNoShow,
	}
	for _, s := range statuses {
		for _, e := range events {
			_, ok := NextStatus(s, e)
			if ok != legal[s][e] {
				t.Fatalf("%s --%s-->: legal=%v, want %v", s, e, ok, legal[s][e])
			}
		}
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	for _, s := range []ConsultationStatus{StatusCompleted, StatusRejected, StatusCancelled, StatusNoShow} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
		for _, e := range []TransitionEvent{EventConfirm, EventReject, EventCancel, EventStart, EventComplete, EventNoShow} {
			if _, ok := NextStatus(s, e); ok {
				t.Fatalf("terminal status %s must not allow %s", s, e)
			}
		}
	}
}

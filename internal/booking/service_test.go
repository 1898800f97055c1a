package booking

import (
	"testing"

	"github.com/mindgrid/psyconsult/internal/model"
	"github.com/mindgrid/psyconsult/internal/outbox"
	"github.com/mindgrid/psyconsult/libs/auth"
)

func TestAuthorizeTransition(t *testing.T) {
	c := model.Consultation{ProviderID: "prov-1", ClientID: "cli-1"}

	cases := []struct {
		name   string
		event  model.TransitionEvent
		caller *auth.Claims
		ok     bool
	}{
		{"nil caller", model.EventConfirm, nil, false},
		{"admin may do anything", model.EventComplete, &auth.Claims{Sub: "root", Role: auth.RoleAdmin}, true},
		{"provider confirms own", model.EventConfirm, &auth.Claims{Sub: "prov-1", Role: auth.RoleProvider}, true},
		{"other provider confirms", model.EventConfirm, &auth.Claims{Sub: "prov-2", Role: auth.RoleProvider}, false},
		{"client cannot confirm", model.EventConfirm, &auth.Claims{Sub: "cli-1", Role: auth.RoleClient}, false},
		{"client cancels own", model.EventCancel, &auth.Claims{Sub: "cli-1", Role: auth.RoleClient}, true},
		{"provider cancels own", model.EventCancel, &auth.Claims{Sub: "prov-1", Role: auth.RoleProvider}, true},
		{"stranger cancels", model.EventCancel, &auth.Claims{Sub: "cli-2", Role: auth.RoleClient}, false},
		{"client cannot mark no-show", model.EventNoShow, &auth.Claims{Sub: "cli-1", Role: auth.RoleClient}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := authorizeTransition(c, tc.event, tc.caller)
			if tc.ok && err != nil {
				t.Fatalf("expected allowed, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected ErrForbidden")
			}
		})
	}
}

func TestNotificationFor(t *testing.T) {
	cases := map[model.TransitionEvent]string{
		model.EventConfirm:  outbox.EventConsultationConfirmed,
		model.EventCancel:   outbox.EventConsultationCancelled,
		model.EventComplete: outbox.EventConsultationCompleted,
		model.EventReject:   "",
		model.EventStart:    "",
		model.EventNoShow:   "",
	}
	for event, want := range cases {
		if got := notificationFor(event); got != want {
			t.Fatalf("notificationFor(%s) = %q, want %q", event, got, want)
		}
	}
}

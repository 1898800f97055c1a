package payments

import "testing"

func TestParseSettlement(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"paid", `{"consultation_id":"c-1","payment_status":"paid"}`, false},
		{"refunded", `{"consultation_id":"c-1","payment_status":"refunded"}`, false},
		{"unpaid is not a settlement outcome", `{"consultation_id":"c-1","payment_status":"unpaid"}`, true},
		{"unknown status", `{"consultation_id":"c-1","payment_status":"settled"}`, true},
		{"missing id", `{"payment_status":"paid"}`, true},
		{"not json", `paid`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := parseSettlement([]byte(tc.payload))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.ConsultationID != "c-1" {
				t.Fatalf("unexpected payload: %+v", p)
			}
		})
	}
}

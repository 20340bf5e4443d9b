package calls

import "testing"

func TestBilledMinutes_RoundsUpToWholeMinute(t *testing.T) {
	cases := []struct {
		seconds int
		want    int
	}{
		{0, 0},
		{1, 1},
		{59, 1},
		{60, 1},
		{61, 2},
		{119, 2},
		{120, 2},
		{121, 3},
		{3600, 60},
	}
	for _, tc := range cases {
		if got := BilledMinutes(tc.seconds); got != tc.want {
			t.Fatalf("BilledMinutes(%d) = %d, want %d", tc.seconds, got, tc.want)
		}
	}
}

func TestCallStatus_Terminal(t *testing.T) {
	if CallStatusActive.Terminal() {
		t.Fatalf("active must not be terminal")
	}
	for _, s := range []CallStatus{CallStatusCompleted, CallStatusFailed, CallStatusCancelled} {
		if !s.Terminal() {
			t.Fatalf("expected %q terminal", s)
		}
	}
}

func TestValidCallType(t *testing.T) {
	for _, ct := range []CallType{CallTypeLocal, CallTypeNational, CallTypeInternational} {
		if !ValidCallType(ct) {
			t.Fatalf("expected %q valid", ct)
		}
	}
	if ValidCallType("premium") {
		t.Fatalf("unexpected call type accepted")
	}
}

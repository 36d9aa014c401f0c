package buckets

import "testing"

func intPtr(v int) *int { return &v }

func TestLabel(t *testing.T) {
	cases := []struct {
		minutes *int
		want    string
	}{
		{intPtr(-5), "~15 mins"},
		{intPtr(0), "~15 mins"},
		{intPtr(10), "~15 mins"},
		{intPtr(15), "~15 mins"},
		{intPtr(16), "~30 mins"},
		{intPtr(20), "~30 mins"},
		{intPtr(30), "~30 mins"},
		{intPtr(45), "~1 hour"},
		{intPtr(60), "~1 hour"},
		{intPtr(90), "~2 hours"},
		{intPtr(120), "~2 hours"},
		{intPtr(150), "~½ day"},
		{intPtr(180), "~½ day"},
		{intPtr(240), "~1 day"},
		{intPtr(360), "~1 day"},
		{intPtr(361), "> 1 day"},
		{intPtr(400), "> 1 day"},
	}
	for _, tc := range cases {
		got := Label(tc.minutes)
		if got == nil || *got != tc.want {
			t.Errorf("Label(%d) = %v, want %q", *tc.minutes, got, tc.want)
		}
	}
}

func TestLabelNil(t *testing.T) {
	if got := Label(nil); got != nil {
		t.Errorf("Label(nil) = %q, want nil", *got)
	}
}

func TestTotalLabel(t *testing.T) {
	if got := TotalLabel(0); got != "~15 mins" {
		t.Errorf("TotalLabel(0) = %q, want ~15 mins", got)
	}
	if got := TotalLabel(100); got != "~2 hours" {
		t.Errorf("TotalLabel(100) = %q, want ~2 hours", got)
	}
}

func TestRecoveryTotalLabel(t *testing.T) {
	if got := RecoveryTotalLabel(0); got != "~0 mins" {
		t.Errorf("RecoveryTotalLabel(0) = %q, want ~0 mins", got)
	}
	if got := RecoveryTotalLabel(20); got != "~30 mins" {
		t.Errorf("RecoveryTotalLabel(20) = %q, want ~30 mins", got)
	}
}

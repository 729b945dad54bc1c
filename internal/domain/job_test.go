package domain

import "testing"

func TestParseJobType(t *testing.T) {
	for _, jt := range JobTypes() {
		got, ok := ParseJobType(string(jt))
		if !ok || got != jt {
			t.Fatalf("ParseJobType(%q) = %q, %v", jt, got, ok)
		}
	}
	if _, ok := ParseJobType("video"); ok {
		t.Fatal("unknown type accepted")
	}
	if _, ok := ParseJobType(""); ok {
		t.Fatal("empty type accepted")
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusPending, false},
		{JobStatusProcessing, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
		{JobStatusCancelled, true},
	}
	for _, tc := range tests {
		if got := tc.status.Terminal(); got != tc.want {
			t.Fatalf("%s.Terminal() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestClampProgress(t *testing.T) {
	tests := []struct{ in, want int }{
		{-10, 0},
		{0, 0},
		{55, 55},
		{100, 100},
		{250, 100},
	}
	for _, tc := range tests {
		if got := ClampProgress(tc.in); got != tc.want {
			t.Fatalf("ClampProgress(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestJobStats(t *testing.T) {
	stats := JobStats{Total: 10, Pending: 2, Processing: 1, Completed: 6, Failed: 1}
	if got := stats.QueueDepth(); got != 3 {
		t.Fatalf("QueueDepth() = %d, want 3", got)
	}
	want := 100 * 6.0 / 7.0
	if got := stats.SuccessRate(); got < want-0.01 || got > want+0.01 {
		t.Fatalf("SuccessRate() = %.2f, want %.2f", got, want)
	}

	// Nothing settled yet reads as fully successful, not as zero.
	empty := JobStats{Total: 4, Pending: 4}
	if got := empty.SuccessRate(); got != 100 {
		t.Fatalf("SuccessRate() with nothing settled = %.1f, want 100", got)
	}
}

package scheduler

import "testing"

func TestDailySpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		preferredTime string
		offsetSeconds int
		want          string
	}{
		{"09:30", 0, "30 9 * * *"},
		{"09:30", 2 * 3600, "30 7 * * *"},  // UTC+2 local morning
		{"01:00", 3 * 3600, "0 22 * * *"},  // wraps to previous UTC day
		{"23:00", -2 * 3600, "0 1 * * *"},  // wraps to next UTC day
		{"00:00", 0, "0 0 * * *"},
	}
	for _, tt := range tests {
		got, err := dailySpec(tt.preferredTime, tt.offsetSeconds)
		if err != nil {
			t.Fatalf("dailySpec(%q, %d) error: %v", tt.preferredTime, tt.offsetSeconds, err)
		}
		if got != tt.want {
			t.Fatalf("dailySpec(%q, %d) = %q, want %q", tt.preferredTime, tt.offsetSeconds, got, tt.want)
		}
	}
}

func TestDailySpec_InvalidTime(t *testing.T) {
	t.Parallel()

	if _, err := dailySpec("25:99", 0); err == nil {
		t.Fatal("expected error for invalid time")
	}
}

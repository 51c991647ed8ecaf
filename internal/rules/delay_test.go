package rules

import (
	"testing"
	"time"

	"ordercast/internal/types"
)

func TestToSeconds(t *testing.T) {
	cases := []struct {
		name  string
		value int64
		unit  types.DelayUnit
		want  int64
	}{
		{"minutes", 90, types.UnitMinutes, 5400},
		{"hours", 2, types.UnitHours, 7200},
		{"days", 1, types.UnitDays, 86400},
		{"zero", 0, types.UnitHours, 0},
		{"unknown unit is identity", 7200, "seconds", 7200},
		{"empty unit is identity", 30, "", 30},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ToSeconds(tc.value, tc.unit); got != tc.want {
				t.Errorf("ToSeconds(%d, %q) = %d, want %d", tc.value, tc.unit, got, tc.want)
			}
		})
	}
}

func TestToSeconds_Idempotent(t *testing.T) {
	// A normalized value passed back through with an unrecognized unit
	// must not be scaled again.
	once := ToSeconds(3, types.UnitDays)
	twice := ToSeconds(once, "")
	if once != twice {
		t.Errorf("re-normalizing changed the value: %d -> %d", once, twice)
	}
}

func TestDelay(t *testing.T) {
	r := &types.NotificationRule{DelaySeconds: 7200}
	if got := Delay(r); got != 2*time.Hour {
		t.Errorf("Delay = %s, want 2h", got)
	}
}

func TestRelativeDelay(t *testing.T) {
	cases := []struct {
		name string
		rule int64
		base int64
		want time.Duration
	}{
		{"first rule anchors at zero", 86400, 86400, 0},
		{"spacing preserved", 172800, 86400, 24 * time.Hour},
		{"clamped at zero", 3600, 86400, 0},
		{"zero base", 7200, 0, 2 * time.Hour},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RelativeDelay(tc.rule, tc.base); got != tc.want {
				t.Errorf("RelativeDelay(%d, %d) = %s, want %s", tc.rule, tc.base, got, tc.want)
			}
		})
	}
}

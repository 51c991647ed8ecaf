package rules

import (
	"time"

	"ordercast/internal/types"
)

// ToSeconds converts a delay value in the given unit to seconds. An
// unrecognized unit is treated as seconds (identity), so a stored,
// already-normalized value passed back through is unchanged.
func ToSeconds(value int64, unit types.DelayUnit) int64 {
	switch unit {
	case types.UnitMinutes:
		return value * 60
	case types.UnitHours:
		return value * 3600
	case types.UnitDays:
		return value * 86400
	default:
		return value
	}
}

// Delay returns a rule's normalized delay as a time.Duration.
func Delay(r *types.NotificationRule) time.Duration {
	return time.Duration(r.DelaySeconds) * time.Second
}

// RelativeDelay returns the offset of ruleDelay from baseDelay, clamped at
// zero. Backfill uses this to preserve the relative spacing of a rule
// sequence while anchoring the whole sequence to "now" instead of to an
// original trigger time that no longer exists.
func RelativeDelay(ruleDelaySeconds, baseDelaySeconds int64) time.Duration {
	rel := ruleDelaySeconds - baseDelaySeconds
	if rel < 0 {
		rel = 0
	}
	return time.Duration(rel) * time.Second
}

package authkit

import "time"

// IsWithinThresholdPeriod checks if the given time is within the threshold
func IsWithinThresholdPeriod(t time.Time, threshold time.Duration) bool {
	return t.After(time.Now().Add(-threshold))
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(t time.Time, threshold time.Duration) bool {
	return !IsWithinThresholdPeriod(t, threshold)
}

// RemainingCooldown returns how long until the cooldown that started at t
// elapses, zero when it already has.
func RemainingCooldown(t time.Time, cooldown time.Duration) time.Duration {
	remaining := time.Until(t.Add(cooldown))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Package telemetry provides no-op telemetry hooks. Nothing leaves the
// device without explicit user opt-in, so every function here does nothing
// by default; an opt-in implementation can be swapped in via build tags.
package telemetry

import "time"

// IsEnabled reports whether telemetry collection is active. Always false
// until the user explicitly opts in.
func IsEnabled() bool {
	return false
}

// RecordCount records a counter increment. No-op without opt-in.
func RecordCount(name string, delta int, tags map[string]string) {
}

// RecordTiming records an operation duration. No-op without opt-in.
func RecordTiming(name string, duration time.Duration, tags map[string]string) {
}

// TrackError records an error occurrence. No-op without opt-in.
func TrackError(err error, context map[string]string) {
}

// Package ratelimit tracks the upstream API's error budget and gates requests.
// It reads the X-RateLimit-Remaining and X-RateLimit-Reset headers and shares
// the resulting state between processes through Redis.
package ratelimit

import (
	"time"
)

// Response headers carrying the error budget.
const (
	// HeaderRemaining holds the number of errors left in the current window.
	HeaderRemaining = "X-RateLimit-Remaining"

	// HeaderReset holds the number of seconds until the window resets.
	HeaderReset = "X-RateLimit-Reset"
)

// Thresholds for gating decisions.
const (
	// ThresholdCritical blocks all requests below this many remaining errors.
	ThresholdCritical = 5

	// ThresholdWarning throttles requests below this many remaining errors.
	ThresholdWarning = 20

	// ThresholdHealthy marks the budget healthy at or above this value.
	ThresholdHealthy = 50
)

// defaultRemaining is assumed until the first response reports a budget.
const defaultRemaining = 100

// State is the error budget shared by every client instance.
type State struct {
	// Remaining is the number of errors left before the API blocks requests.
	Remaining int `json:"remaining"`

	// ResetAt is when the budget window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was last written.
	LastUpdate time.Time `json:"last_update"`

	// Healthy is true when Remaining >= ThresholdHealthy.
	Healthy bool `json:"healthy"`
}

// DefaultState is the optimistic state used before any headers were seen.
func DefaultState() *State {
	now := time.Now()
	s := &State{
		Remaining:  defaultRemaining,
		ResetAt:    now.Add(time.Minute),
		LastUpdate: now,
	}
	s.UpdateHealth()
	return s
}

// IsStale reports whether the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// WindowExpired reports whether the reset time has passed, in which case the
// recorded budget no longer applies.
func (s *State) WindowExpired() bool {
	return !s.ResetAt.IsZero() && !time.Now().Before(s.ResetAt)
}

// NeedsCriticalBlock reports whether requests must be refused.
func (s *State) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical && !s.WindowExpired()
}

// NeedsThrottling reports whether requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && s.Remaining >= ThresholdCritical && !s.WindowExpired()
}

// TimeUntilReset returns the time left in the window, never negative.
func (s *State) TimeUntilReset() time.Duration {
	if d := time.Until(s.ResetAt); d > 0 {
		return d
	}
	return 0
}

// UpdateHealth recomputes Healthy from Remaining.
func (s *State) UpdateHealth() {
	s.Healthy = s.Remaining >= ThresholdHealthy
}

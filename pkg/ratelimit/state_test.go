package ratelimit

import (
	"testing"
	"time"
)

func TestState_IsStale(t *testing.T) {
	tests := []struct {
		name       string
		lastUpdate time.Time
		maxAge     time.Duration
		want       bool
	}{
		{name: "fresh", lastUpdate: time.Now(), maxAge: 5 * time.Minute, want: false},
		{name: "stale", lastUpdate: time.Now().Add(-10 * time.Minute), maxAge: 5 * time.Minute, want: true},
		{name: "just under max age", lastUpdate: time.Now().Add(-4 * time.Minute), maxAge: 5 * time.Minute, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{LastUpdate: tt.lastUpdate}
			if got := s.IsStale(tt.maxAge); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState_Gating(t *testing.T) {
	future := time.Now().Add(time.Minute)
	past := time.Now().Add(-time.Minute)

	tests := []struct {
		name         string
		remaining    int
		resetAt      time.Time
		wantBlock    bool
		wantThrottle bool
	}{
		{name: "healthy", remaining: 100, resetAt: future},
		{name: "at healthy threshold", remaining: ThresholdHealthy, resetAt: future},
		{name: "at warning threshold", remaining: ThresholdWarning, resetAt: future},
		{name: "below warning", remaining: ThresholdWarning - 1, resetAt: future, wantThrottle: true},
		{name: "at critical threshold", remaining: ThresholdCritical, resetAt: future, wantThrottle: true},
		{name: "below critical", remaining: ThresholdCritical - 1, resetAt: future, wantBlock: true},
		{name: "zero remaining", remaining: 0, resetAt: future, wantBlock: true},
		{name: "critical but window reset", remaining: 0, resetAt: past},
		{name: "warning but window reset", remaining: 10, resetAt: past},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{Remaining: tt.remaining, ResetAt: tt.resetAt}
			if got := s.NeedsCriticalBlock(); got != tt.wantBlock {
				t.Errorf("NeedsCriticalBlock() = %v, want %v (remaining=%d)", got, tt.wantBlock, tt.remaining)
			}
			if got := s.NeedsThrottling(); got != tt.wantThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v (remaining=%d)", got, tt.wantThrottle, tt.remaining)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	s := &State{ResetAt: time.Now().Add(5 * time.Minute)}
	if d := s.TimeUntilReset(); d < 5*time.Minute-time.Second || d > 5*time.Minute {
		t.Errorf("TimeUntilReset() = %v, want about 5m", d)
	}

	s = &State{ResetAt: time.Now().Add(-5 * time.Minute)}
	if d := s.TimeUntilReset(); d != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0 for past reset time", d)
	}
}

func TestState_UpdateHealth(t *testing.T) {
	tests := []struct {
		remaining int
		want      bool
	}{
		{remaining: 100, want: true},
		{remaining: ThresholdHealthy, want: true},
		{remaining: ThresholdHealthy - 1, want: false},
		{remaining: 15, want: false},
		{remaining: 3, want: false},
	}

	for _, tt := range tests {
		s := &State{Remaining: tt.remaining}
		s.UpdateHealth()
		if s.Healthy != tt.want {
			t.Errorf("UpdateHealth() with remaining=%d set Healthy = %v, want %v", tt.remaining, s.Healthy, tt.want)
		}
	}
}

func TestDefaultState(t *testing.T) {
	s := DefaultState()
	if !s.Healthy || s.NeedsCriticalBlock() || s.NeedsThrottling() {
		t.Errorf("DefaultState() = %+v, want healthy", s)
	}
}

func TestThresholdOrdering(t *testing.T) {
	if ThresholdCritical >= ThresholdWarning {
		t.Errorf("ThresholdCritical (%d) must be less than ThresholdWarning (%d)", ThresholdCritical, ThresholdWarning)
	}
	if ThresholdWarning >= ThresholdHealthy {
		t.Errorf("ThresholdWarning (%d) must be less than ThresholdHealthy (%d)", ThresholdWarning, ThresholdHealthy)
	}
}

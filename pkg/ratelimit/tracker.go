package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultKey is the Redis hash holding the shared state.
const DefaultKey = "pagedlist:ratelimit"

// DefaultThrottleDelay is how long a request waits in the warning state.
const DefaultThrottleDelay = time.Second

// Hash fields.
const (
	fieldRemaining  = "remaining"
	fieldResetAt    = "reset_at"
	fieldLastUpdate = "last_update"
)

// Tracker keeps the error budget in Redis and gates requests on it.
type Tracker struct {
	redis         redis.UniversalClient
	logger        zerolog.Logger
	key           string
	throttleDelay time.Duration
	critical      int
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithKey stores the state under a different Redis key.
func WithKey(key string) TrackerOption {
	return func(t *Tracker) {
		t.key = key
	}
}

// WithThrottleDelay sets the wait applied in the warning state.
func WithThrottleDelay(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.throttleDelay = d
	}
}

// WithCriticalThreshold blocks requests below n remaining errors. Values
// under ThresholdCritical are ignored.
func WithCriticalThreshold(n int) TrackerOption {
	return func(t *Tracker) {
		if n > ThresholdCritical {
			t.critical = n
		}
	}
}

// NewTracker creates a tracker backed by redisClient.
func NewTracker(redisClient redis.UniversalClient, logger zerolog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		redis:         redisClient,
		logger:        logger,
		key:           DefaultKey,
		throttleDelay: DefaultThrottleDelay,
		critical:      ThresholdCritical,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GetState loads the shared state. A missing key yields DefaultState.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	fields, err := t.redis.HGetAll(ctx, t.key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load rate limit state: %w", err)
	}
	if len(fields) == 0 {
		t.logger.Debug().Msg("No rate limit state stored, assuming healthy")
		return DefaultState(), nil
	}

	remaining, err := strconv.Atoi(fields[fieldRemaining])
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fieldRemaining, err)
	}
	resetAt, err := strconv.ParseInt(fields[fieldResetAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fieldResetAt, err)
	}

	state := &State{
		Remaining: remaining,
		ResetAt:   time.Unix(resetAt, 0),
	}
	if raw := fields[fieldLastUpdate]; raw != "" {
		lastUpdate, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", fieldLastUpdate, err)
		}
		state.LastUpdate = lastUpdate
	}
	state.UpdateHealth()

	return state, nil
}

// UpdateFromHeaders records the budget reported by a response. Responses
// without HeaderRemaining are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainRaw := headers.Get(HeaderRemaining)
	if remainRaw == "" {
		return nil
	}
	remaining, err := strconv.Atoi(remainRaw)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetRaw := headers.Get(HeaderReset)
	if resetRaw == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}
	resetSeconds, err := strconv.Atoi(resetRaw)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	now := time.Now()
	state := &State{
		Remaining:  remaining,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}
	state.UpdateHealth()

	pipe := t.redis.TxPipeline()
	pipe.HSet(ctx, t.key,
		fieldRemaining, remaining,
		fieldResetAt, state.ResetAt.Unix(),
		fieldLastUpdate, now.Format(time.RFC3339Nano),
	)
	// Keep the hash a little past the window so stale budgets disappear.
	pipe.Expire(ctx, t.key, time.Duration(resetSeconds)*time.Second+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state: %w", err)
	}

	Remaining.Set(float64(remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", remaining).
			Time("reset_at", state.ResetAt).
			Msg("Error budget critical, requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", remaining).
			Time("reset_at", state.ResetAt).
			Msg("Error budget low, requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remaining).
			Time("reset_at", state.ResetAt).
			Bool("healthy", state.Healthy).
			Msg("Error budget updated")
	}

	return nil
}

// ShouldAllowRequest returns false when the budget is below the critical
// threshold. In the
// warning state it waits the throttle delay first; if ctx ends during that
// wait it returns false with the context error.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.Remaining < t.critical && !state.WindowExpired() {
		Blocks.Inc()
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait", state.TimeUntilReset()).
			Msg("Error budget critical, blocking request")
		return false, nil
	}

	if state.NeedsThrottling() && t.throttleDelay > 0 {
		Throttles.Inc()
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("delay", t.throttleDelay).
			Msg("Error budget low, throttling request")

		timer := time.NewTimer(t.throttleDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	return true, nil
}

package pagination

import (
	"context"
	"strconv"
)

// inflight tracks one shared fetch and the callers waiting on it.
// It is guarded by the owning model's mutex.
type inflight struct {
	active  bool
	gen     uint64
	waiters int
	cancel  context.CancelFunc
	call    func() (any, error)
}

// start begins a new fetch generation. The fetch context keeps the values of
// ctx but not its cancellation; only finish or the last leave cancels it.
func (f *inflight) start(ctx context.Context, run func(ctx context.Context, gen uint64) (any, error)) uint64 {
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	f.gen++
	gen := f.gen
	f.active = true
	f.waiters = 0
	f.cancel = cancel
	f.call = func() (any, error) {
		return run(fetchCtx, gen)
	}
	return gen
}

// current reports whether gen is the running fetch.
func (f *inflight) current(gen uint64) bool {
	return f.active && f.gen == gen
}

// finish clears the fetch state and releases the fetch context.
func (f *inflight) finish() {
	if f.cancel != nil {
		f.cancel()
	}
	f.active = false
	f.waiters = 0
	f.cancel = nil
	f.call = nil
}

// leave removes one waiter from gen. It returns true when that was the last
// waiter and the fetch got cancelled.
func (f *inflight) leave(gen uint64) bool {
	if !f.current(gen) {
		return false
	}
	f.waiters--
	if f.waiters > 0 {
		return false
	}
	f.finish()
	return true
}

func flightKey(prefix string, gen uint64) string {
	return prefix + "/" + strconv.FormatUint(gen, 10)
}

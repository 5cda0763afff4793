package filter

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the quiet period applied to query changes.
const DefaultDebounceWindow = 300 * time.Millisecond

// Debouncer coalesces bursts of Notify calls into one fire per quiet window.
type Debouncer struct {
	window  time.Duration
	fire    func()
	mutex   sync.Mutex
	timer   *time.Timer
	pending uint64
	stopped bool
}

// NewDebouncer returns a Debouncer that calls fire once window has elapsed
// without a further Notify. A non-positive window uses DefaultDebounceWindow.
func NewDebouncer(window time.Duration, fire func()) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{window: window, fire: fire}
}

// Notify restarts the quiet window.
func (debouncer *Debouncer) Notify() {
	debouncer.mutex.Lock()
	defer debouncer.mutex.Unlock()
	if debouncer.stopped {
		return
	}
	if debouncer.timer != nil {
		debouncer.timer.Stop()
	}
	debouncer.pending++
	generation := debouncer.pending
	debouncer.timer = time.AfterFunc(debouncer.window, func() { debouncer.trigger(generation) })
}

// Stop cancels a pending fire. Later Notify calls are ignored.
func (debouncer *Debouncer) Stop() {
	debouncer.mutex.Lock()
	defer debouncer.mutex.Unlock()
	debouncer.stopped = true
	if debouncer.timer != nil {
		debouncer.timer.Stop()
		debouncer.timer = nil
	}
}

// trigger ignores timers superseded by a later Notify that fired before Stop took effect.
func (debouncer *Debouncer) trigger(generation uint64) {
	debouncer.mutex.Lock()
	if debouncer.stopped || generation != debouncer.pending {
		debouncer.mutex.Unlock()
		return
	}
	debouncer.timer = nil
	debouncer.mutex.Unlock()
	debouncer.fire()
}

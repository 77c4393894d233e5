package usecase

import (
	"sync"
	"time"
)

const DefaultTypingTimeout = 2 * time.Second

// TypingIndicator holds the peer-is-typing flag for one room. Each typing
// event re-arms a timer; the flag clears when the timer fires, when the peer
// sends a message, or when the room closes.
type TypingIndicator struct {
	timeout  time.Duration
	onChange func(bool)

	mu         sync.Mutex
	typing     bool
	timer      *time.Timer
	generation uint64
	stopped    bool
}

func NewTypingIndicator(timeout time.Duration, onChange func(bool)) *TypingIndicator {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &TypingIndicator{timeout: timeout, onChange: onChange}
}

func (t *TypingIndicator) PeerTyped() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.generation++
	gen := t.generation
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.timeout, func() { t.expire(gen) })
	changed := !t.typing
	t.typing = true
	t.mu.Unlock()

	if changed {
		t.onChange(true)
	}
}

func (t *TypingIndicator) PeerStopped() {
	t.mu.Lock()
	changed := t.clearLocked()
	t.mu.Unlock()

	if changed {
		t.onChange(false)
	}
}

func (t *TypingIndicator) IsTyping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

// Stop cancels the timer for good. Later events are ignored.
func (t *TypingIndicator) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.clearLocked()
	t.mu.Unlock()
}

func (t *TypingIndicator) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.generation || t.stopped {
		t.mu.Unlock()
		return
	}
	changed := t.clearLocked()
	t.mu.Unlock()

	if changed {
		t.onChange(false)
	}
}

func (t *TypingIndicator) clearLocked() bool {
	t.generation++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	changed := t.typing
	t.typing = false
	return changed
}

package scan

import (
	"sync"
	"time"
)

const (
	DefaultDebounce     = 3 * time.Second
	DefaultDebounceSame = 10 * time.Second
	defaultMaxSessions  = 1024
)

// Debouncer absorbs a camera's continuous decode stream for one scanning
// session. A capture is suppressed when it arrives within window of the
// previously admitted capture, where window is longer when the token repeats.
type Debouncer struct {
	mu        sync.Mutex
	window    time.Duration
	sameToken time.Duration
	lastToken string
	lastAt    time.Time
	seen      bool
}

func NewDebouncer(window, sameToken time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	if sameToken <= 0 {
		sameToken = DefaultDebounceSame
	}
	return &Debouncer{window: window, sameToken: sameToken}
}

// Allow reports whether the capture of token at now should be processed, and
// records it when it is.
func (d *Debouncer) Allow(token string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen {
		window := d.window
		if token == d.lastToken {
			window = d.sameToken
		}
		if now.Sub(d.lastAt) < window {
			return false
		}
	}
	d.lastToken = token
	d.lastAt = now
	d.seen = true
	return true
}

func (d *Debouncer) last() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastAt
}

// Sessions holds one Debouncer per scanning device, bounded to max sessions.
type Sessions struct {
	mu        sync.Mutex
	window    time.Duration
	sameToken time.Duration
	max       int
	byDevice  map[string]*Debouncer
}

func NewSessions(window, sameToken time.Duration, max int) *Sessions {
	if max <= 0 {
		max = defaultMaxSessions
	}
	return &Sessions{
		window:    window,
		sameToken: sameToken,
		max:       max,
		byDevice:  make(map[string]*Debouncer),
	}
}

// For returns the device's debouncer, creating it on first use.
func (s *Sessions) For(deviceID string) *Debouncer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.byDevice[deviceID]; ok {
		return d
	}
	if len(s.byDevice) >= s.max {
		s.evictOldest()
	}
	d := NewDebouncer(s.window, s.sameToken)
	s.byDevice[deviceID] = d
	return d
}

func (s *Sessions) evictOldest() {
	var oldest string
	var oldestAt time.Time
	first := true
	for id, d := range s.byDevice {
		at := d.last()
		if first || at.Before(oldestAt) {
			oldest, oldestAt, first = id, at, false
		}
	}
	if !first {
		delete(s.byDevice, oldest)
	}
}

package scan

import (
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	DefaultSameTokenCooldown = 15 * time.Second
	DefaultAnyTokenCooldown  = 5 * time.Second
	DefaultCooldownCapacity  = 1024
)

// Cooldown throttles verifications per scope (a scanning device). It is
// local to one process and gives no cross-process guarantee.
//
// A verification is refused while another one for the same scope is in
// flight, within sameToken of the last verification of the same token, or
// within anyToken of the last verification of any token. Both maps are
// bounded by capacity; stale entries are evicted first, then the oldest.
type Cooldown struct {
	mu        sync.Mutex
	sameToken time.Duration
	anyToken  time.Duration
	capacity  int
	tokens    map[tokenKey]time.Time
	scopes    map[string]*scopeState
}

type tokenKey struct {
	scope string
	token string
}

type scopeState struct {
	lastAt   time.Time
	inFlight int
}

func NewCooldown(sameToken, anyToken time.Duration, capacity int) *Cooldown {
	if sameToken <= 0 {
		sameToken = DefaultSameTokenCooldown
	}
	if anyToken <= 0 {
		anyToken = DefaultAnyTokenCooldown
	}
	if capacity <= 0 {
		capacity = DefaultCooldownCapacity
	}
	return &Cooldown{
		sameToken: sameToken,
		anyToken:  anyToken,
		capacity:  capacity,
		tokens:    make(map[tokenKey]time.Time),
		scopes:    make(map[string]*scopeState),
	}
}

// Acquire admits one verification of token for scope at now. On success the
// caller must call release when the verification finishes.
func (c *Cooldown) Acquire(scope, token string, now time.Time) (release func(), rejected *Rejected) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.scopes[scope]
	if st != nil && st.inFlight > 0 {
		r := reject(ReasonRateLimited)
		r.Message = "A scan is already being processed"
		return nil, r
	}
	key := tokenKey{scope: scope, token: token}
	if last, ok := c.tokens[key]; ok {
		if wait := c.sameToken - now.Sub(last); wait > 0 {
			return nil, waitRejection(wait, "Please wait %ds before scanning the same QR code again")
		}
	}
	if st != nil {
		if wait := c.anyToken - now.Sub(st.lastAt); wait > 0 {
			return nil, waitRejection(wait, "Please wait %ds before scanning another QR code")
		}
	}

	if st == nil {
		c.evictScopes(now)
		st = &scopeState{}
		c.scopes[scope] = st
	}
	if _, ok := c.tokens[key]; !ok {
		c.evictTokens(now)
	}
	st.lastAt = now
	st.inFlight++
	c.tokens[key] = now

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if s, ok := c.scopes[scope]; ok && s.inFlight > 0 {
				s.inFlight--
			}
		})
	}, nil
}

// Len reports the number of tracked tokens.
func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tokens)
}

func (c *Cooldown) evictTokens(now time.Time) {
	if len(c.tokens) < c.capacity {
		return
	}
	var oldestKey tokenKey
	var oldestAt time.Time
	first := true
	for k, at := range c.tokens {
		if now.Sub(at) >= c.sameToken {
			delete(c.tokens, k)
			continue
		}
		if first || at.Before(oldestAt) {
			oldestKey, oldestAt, first = k, at, false
		}
	}
	if len(c.tokens) >= c.capacity && !first {
		delete(c.tokens, oldestKey)
	}
}

// evictScopes never drops a scope with a verification in flight.
func (c *Cooldown) evictScopes(now time.Time) {
	if len(c.scopes) < c.capacity {
		return
	}
	var oldestScope string
	var oldestAt time.Time
	found := false
	for scope, st := range c.scopes {
		if st.inFlight > 0 {
			continue
		}
		if now.Sub(st.lastAt) >= c.anyToken {
			delete(c.scopes, scope)
			continue
		}
		if !found || st.lastAt.Before(oldestAt) {
			oldestScope, oldestAt, found = scope, st.lastAt, true
		}
	}
	if len(c.scopes) >= c.capacity && found {
		delete(c.scopes, oldestScope)
	}
}

func waitRejection(wait time.Duration, format string) *Rejected {
	r := reject(ReasonRateLimited)
	r.RetryAfter = wait
	r.Message = fmt.Sprintf(format, int(math.Ceil(wait.Seconds())))
	return r
}

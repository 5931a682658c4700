// Package devotp is the dev backend's stand-in for an email outbox: it remembers the last
// step-up code "sent" to each address so a developer or a test can read it back.
// It is only wired when the backend runs with OTP_AUTOFILL.
package devotp

import (
	"sync"
	"time"
)

// Message is one dispatched code.
type Message struct {
	Email     string
	Code      string
	SentAt    time.Time
	ExpiresAt time.Time
}

// Remaining is how long the code stays usable at now, never negative.
func (m Message) Remaining(now time.Time) time.Duration {
	return max(m.ExpiresAt.Sub(now), 0)
}

// Outbox keeps the latest live Message per email.
type Outbox struct {
	mu   sync.Mutex
	last map[string]Message
	now  func() time.Time
}

// NewOutbox returns an empty outbox. A nil now uses the wall clock.
func NewOutbox(now func() time.Time) *Outbox {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Outbox{last: make(map[string]Message), now: now}
}

// Record replaces any earlier message for m.Email and drops every expired one.
func (o *Outbox) Record(m Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sweepLocked()
	o.last[m.Email] = m
}

// Latest returns the live message for email.
func (o *Outbox) Latest(email string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.last[email]
	if !ok {
		return Message{}, false
	}
	if !m.ExpiresAt.After(o.now()) {
		delete(o.last, email)
		return Message{}, false
	}
	return m, true
}

// Consume forgets the message for email once its code has been used.
func (o *Outbox) Consume(email string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.last, email)
}

// Len counts messages held, live or not yet swept.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.last)
}

func (o *Outbox) sweepLocked() {
	now := o.now()
	for email, m := range o.last {
		if !m.ExpiresAt.After(now) {
			delete(o.last, email)
		}
	}
}

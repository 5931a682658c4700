package devbackend

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an email's limiter survives without sign-in attempts.
const idleLimiterTTL = 10 * time.Minute

type emailLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SignInLimiter throttles password sign-in attempts per email, the way the identity provider
// answers TOO_MANY_ATTEMPTS_TRY_LATER.
type SignInLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*emailLimiter
	rate      rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewSignInLimiter allows perSecond attempts per email with the given burst.
func NewSignInLimiter(perSecond float64, burst int) *SignInLimiter {
	if burst < 1 {
		burst = 1
	}
	return &SignInLimiter{
		limiters: make(map[string]*emailLimiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether another attempt for email may proceed now.
func (l *SignInLimiter) Allow(email string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > idleLimiterTTL {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > idleLimiterTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.limiters[email]
	if !ok {
		e = &emailLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[email] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

package stepup

import "time"

// Clock creates the tickers that drive the resend cooldown.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of *time.Ticker the flow uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock uses time.NewTicker.
type SystemClock struct{}

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

package session

import "time"

// Clock is the replaceable time source behind every time-based session rule.
// Injecting it keeps idle/absolute expiry and reauth windows deterministic in tests.
type Clock interface {
	NowUTC() time.Time
}

// SystemClock reads the system clock.
type SystemClock struct{}

// NowUTC returns the current time in UTC.
func (SystemClock) NowUTC() time.Time { return time.Now().UTC() }

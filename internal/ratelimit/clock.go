// Package ratelimit holds the in-process fixed-window limiter and the
// per-route policy table used by the HTTP middleware.
package ratelimit

import "time"

// Clock abstracts time so tests can drive window boundaries.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

package main

import "time"

// Clock allows injecting time into the calendar and session store.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystemClock returns a clock backed by time.Now.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

// fixedClock returns the same instant until advanced.
type fixedClock struct {
	now time.Time
}

func (f *fixedClock) Now() time.Time {
	return f.now
}

// Advance moves the fixed clock forward.
func (f *fixedClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

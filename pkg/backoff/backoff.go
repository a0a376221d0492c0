// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package backoff computes the wait between retry attempts. Delays grow
// exponentially with the attempt number and are randomized per attempt so
// that concurrent callers do not retry in lockstep.
package backoff

import (
	"math/rand"
	"time"
)

const (
	// DefaultBaseDelay is the expected delay before the second attempt.
	DefaultBaseDelay = 1 * time.Second
	// DefaultThreshold caps the un-jittered delay growth.
	DefaultThreshold = 30 * time.Second
)

// Backoff yields the wait duration before re-attempting a request.
type Backoff interface {
	// Delay returns the wait before attempt number attempt (1-based: the
	// delay returned for attempt 1 precedes the first retry).
	Delay(attempt uint) time.Duration
}

// Exponential doubles a base delay per attempt up to a threshold and
// randomizes each result to 50-100% of the computed value.
type Exponential struct {
	base      time.Duration
	threshold time.Duration
	rand      *rand.Rand
}

// NewExponential returns an Exponential backoff. Non-positive arguments use
// the package defaults.
func NewExponential(base, threshold time.Duration) *Exponential {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Exponential{base: base, threshold: threshold}
}

// WithRand pins the random source. Intended for deterministic tests; the
// pinned source is not synchronized for concurrent use.
func (e *Exponential) WithRand(r *rand.Rand) *Exponential {
	e.rand = r
	return e
}

// Delay implements Backoff.
func (e *Exponential) Delay(attempt uint) time.Duration {
	if attempt == 0 {
		attempt = 1
	}
	delay := e.base
	for i := uint(1); i < attempt && delay < e.threshold; i++ {
		delay *= 2
	}
	if delay > e.threshold {
		delay = e.threshold
	}
	// 50-100% of the computed delay.
	half := delay / 2
	return half + time.Duration(e.int63n(int64(delay-half)+1))
}

func (e *Exponential) int63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	if e.rand != nil {
		return e.rand.Int63n(n)
	}
	return rand.Int63n(n)
}

// Fixed always waits the same duration, handy for deterministic tests and
// for callers that want no growth.
type Fixed struct {
	Wait time.Duration
}

// Delay implements Backoff.
func (f Fixed) Delay(uint) time.Duration {
	return f.Wait
}

// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"
	"sync"
	"time"

	qserrors "github.com/quarkstor/quarkstor-go-sdk/pkg/errors"
)

// RetryStats accumulates per-kind attempt counts and the time a logical
// request spent retrying. It is safe for concurrent use; the concurrent
// scheduler feeds one instance from many workers.
type RetryStats struct {
	mutex         sync.Mutex
	attempts      map[qserrors.Kind]uint
	totalAttempts uint
	waitTime      time.Duration
	elapsed       time.Duration
}

// NewRetryStats returns an empty RetryStats.
func NewRetryStats() *RetryStats {
	return &RetryStats{attempts: make(map[qserrors.Kind]uint)}
}

func (s *RetryStats) recordAttempt(kind qserrors.Kind) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.attempts[kind]++
	s.totalAttempts++
}

func (s *RetryStats) recordWait(d time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.waitTime += d
}

func (s *RetryStats) recordElapsed(d time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.elapsed += d
}

// Attempts returns the number of failed attempts recorded for the kind.
func (s *RetryStats) Attempts(kind qserrors.Kind) uint {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.attempts[kind]
}

// TotalAttempts returns the number of failed attempts across all kinds.
func (s *RetryStats) TotalAttempts() uint {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.totalAttempts
}

// WaitTime returns the cumulative backoff wait.
func (s *RetryStats) WaitTime() time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.waitTime
}

// Elapsed returns the cumulative wall time spent inside the dispatch loop.
func (s *RetryStats) Elapsed() time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.elapsed
}

// String renders the stats for logs and terminal errors.
func (s *RetryStats) String() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return fmt.Sprintf("attempts=%d (transient=%d host=%d region=%d fatal=%d) wait=%s elapsed=%s",
		s.totalAttempts,
		s.attempts[qserrors.KindTransient],
		s.attempts[qserrors.KindHostUnretryable],
		s.attempts[qserrors.KindRegionUnretryable],
		s.attempts[qserrors.KindFatal],
		s.waitTime, s.elapsed)
}

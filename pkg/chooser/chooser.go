// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package chooser orders candidate network addresses by recent health.
// Addresses that recently failed are frozen for a configurable duration and
// only served again once the freeze lapses, or as a degraded fallback when
// every known candidate is frozen.
package chooser

import (
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/metrics"
)

// DefaultFreezeDuration is how long a failed address stays frozen.
const DefaultFreezeDuration = 10 * time.Minute

// Chooser filters and orders resolved addresses and accepts health feedback
// from the dispatch loop. Implementations must be safe for concurrent use.
type Chooser interface {
	// Choose returns the candidates worth trying, in order.
	Choose(candidates []string) []string
	// MarkFailed freezes the address after an observed failure.
	MarkFailed(addr string, reason error)
	// MarkSucceeded clears any freeze on the address.
	MarkSucceeded(addr string)
}

type frozenEntry struct {
	until      time.Time
	frozenAt   time.Time
	lastReason error
}

// FreezeChooser is the default Chooser backed by an in-process freeze table.
// The table is shared state: construct one per client, or share one
// deliberately to pool health observations.
type FreezeChooser struct {
	clock          clock.Clock
	freezeDuration time.Duration

	mutex  sync.Mutex
	frozen map[string]frozenEntry
}

// NewFreezeChooser returns a FreezeChooser with the given freeze duration;
// zero means DefaultFreezeDuration.
func NewFreezeChooser(cl clock.Clock, freezeDuration time.Duration) *FreezeChooser {
	if freezeDuration <= 0 {
		freezeDuration = DefaultFreezeDuration
	}
	return &FreezeChooser{
		clock:          cl,
		freezeDuration: freezeDuration,
		frozen:         make(map[string]frozenEntry),
	}
}

// Choose implements Chooser. Healthy addresses keep their original order.
// When every candidate is frozen the full set is returned ordered by least
// recently frozen, availability over strict health.
func (c *FreezeChooser) Choose(candidates []string) []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.clock.Now()
	healthy := make([]string, 0, len(candidates))
	frozen := make([]string, 0)
	for _, addr := range candidates {
		entry, ok := c.frozen[addr]
		if !ok || !now.Before(entry.until) {
			if ok {
				delete(c.frozen, addr)
			}
			healthy = append(healthy, addr)
			continue
		}
		frozen = append(frozen, addr)
	}

	c.publishFrozenLocked(now)
	if len(healthy) == 0 {
		sort.SliceStable(frozen, func(i, j int) bool {
			return c.frozen[frozen[i]].frozenAt.Before(c.frozen[frozen[j]].frozenAt)
		})
		return frozen
	}
	return append(healthy, frozen...)
}

// MarkFailed implements Chooser.
func (c *FreezeChooser) MarkFailed(addr string, reason error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.clock.Now()
	c.frozen[addr] = frozenEntry{
		until:      now.Add(c.freezeDuration),
		frozenAt:   now,
		lastReason: reason,
	}
	c.publishFrozenLocked(now)
}

// MarkSucceeded implements Chooser.
func (c *FreezeChooser) MarkSucceeded(addr string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.frozen, addr)
	c.publishFrozenLocked(c.clock.Now())
}

// FrozenCount returns the number of currently frozen addresses.
func (c *FreezeChooser) FrozenCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.frozenLocked(c.clock.Now())
}

func (c *FreezeChooser) frozenLocked(now time.Time) int {
	count := 0
	for _, entry := range c.frozen {
		if now.Before(entry.until) {
			count++
		}
	}
	return count
}

// publishFrozenLocked mirrors the active freeze count into the gauge. With
// several choosers in one process the gauge reflects whichever mutated last.
func (c *FreezeChooser) publishFrozenLocked(now time.Time) {
	metrics.FrozenEndpoints.Set(float64(c.frozenLocked(now)))
}

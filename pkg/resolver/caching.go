// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// NewCachingResolver returns a Resolver that delegates to the given backend
// and caches successful lookups for the given ttl. An expired entry triggers
// a fresh lookup, but if that lookup fails the stale addresses are served
// rather than failing the caller.
func NewCachingResolver(backend Resolver, cl clock.Clock, ttl time.Duration) Resolver {
	return &cachingResolver{
		backend: backend,
		clock:   cl,
		ttl:     ttl,
		entries: make(map[string]*cacheEntry),
	}
}

type cachingResolver struct {
	backend Resolver
	clock   clock.Clock
	ttl     time.Duration

	mutex   sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	addrs      []string
	resolvedAt time.Time
}

// Resolve implements Resolver.
func (r *cachingResolver) Resolve(ctx context.Context, host string) ([]string, error) {
	r.mutex.Lock()
	entry, ok := r.entries[host]
	if ok && r.clock.Now().Before(entry.resolvedAt.Add(r.ttl)) {
		addrs := entry.addrs
		r.mutex.Unlock()
		return addrs, nil
	}
	r.mutex.Unlock()

	// Lookup outside the lock; concurrent callers may race to refresh the
	// same host, last write wins.
	addrs, err := r.backend.Resolve(ctx, host)
	if err != nil {
		if ok {
			// Stale beats unavailable.
			return entry.addrs, nil
		}
		return nil, err
	}
	if ctx.Err() != nil {
		return addrs, ctx.Err()
	}

	r.mutex.Lock()
	r.entries[host] = &cacheEntry{addrs: addrs, resolvedAt: r.clock.Now()}
	r.mutex.Unlock()
	return addrs, nil
}

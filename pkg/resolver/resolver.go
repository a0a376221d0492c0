// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package resolver turns endpoint host names into IP addresses through a
// pluggable lookup backend, with a time-bounded in-process cache.
package resolver

import (
	"context"
	"fmt"
	"net"
)

// Resolver looks up the addresses behind a host name, in preference order.
type Resolver interface {
	Resolve(ctx context.Context, host string) ([]string, error)
}

// NetResolver is the default backend using the standard library resolver.
type NetResolver struct {
	resolver *net.Resolver
}

// NewNetResolver returns a NetResolver. A nil argument uses the default
// system resolver.
func NewNetResolver(r *net.Resolver) *NetResolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &NetResolver{resolver: r}
}

// Resolve implements Resolver.
func (r *NetResolver) Resolve(ctx context.Context, host string) ([]string, error) {
	addrs, err := r.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", host, err)
	}
	return addrs, nil
}

// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package types holds the flag-backed configuration structs consumed by the
// SDK components.
package types

import (
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/wrappers"
)

const (
	// DefaultRetryCount is the bound on transient retries per host.
	DefaultRetryCount = 3
	// DefaultBaseBackoffDelay is the expected delay before the first retry.
	DefaultBaseBackoffDelay = time.Second
	// DefaultBackoffThreshold caps backoff growth.
	DefaultBackoffThreshold = 30 * time.Second
	// DefaultHostFreezeDuration is how long a failed host stays frozen.
	DefaultHostFreezeDuration = 10 * time.Minute
	// DefaultResolverCacheTTL bounds the resolver cache entries.
	DefaultResolverCacheTTL = time.Hour
	// DefaultRegionCycles walks the region chain once before giving up.
	DefaultRegionCycles = 1
)

// DispatchConfig configures the request dispatch layer: retry bounds,
// backoff shape, host freezing and resolver caching.
type DispatchConfig struct {
	RetryCount         uint              `json:"retryCount,omitempty"`
	BaseBackoffDelay   wrappers.Duration `json:"baseBackoffDelay,omitempty"`
	BackoffThreshold   wrappers.Duration `json:"backoffThreshold,omitempty"`
	HostFreezeDuration wrappers.Duration `json:"hostFreezeDuration,omitempty"`
	ResolverCacheTTL   wrappers.Duration `json:"resolverCacheTTL,omitempty"`
	// RegionCycles is how many times the whole region chain may be walked
	// within one logical call before the dispatcher reports exhaustion.
	RegionCycles uint `json:"regionCycles,omitempty"`
}

// NewDispatchConfig returns a DispatchConfig with defaults.
func NewDispatchConfig() *DispatchConfig {
	return &DispatchConfig{
		RetryCount:         DefaultRetryCount,
		BaseBackoffDelay:   wrappers.Duration{Duration: DefaultBaseBackoffDelay},
		BackoffThreshold:   wrappers.Duration{Duration: DefaultBackoffThreshold},
		HostFreezeDuration: wrappers.Duration{Duration: DefaultHostFreezeDuration},
		ResolverCacheTTL:   wrappers.Duration{Duration: DefaultResolverCacheTTL},
		RegionCycles:       DefaultRegionCycles,
	}
}

// AddFlags adds the flags to flagset.
func (c *DispatchConfig) AddFlags(fs *flag.FlagSet) {
	fs.UintVar(&c.RetryCount, "retry-count", c.RetryCount, "maximum transient retries against a single host")
	fs.DurationVar(&c.BaseBackoffDelay.Duration, "base-backoff-delay", c.BaseBackoffDelay.Duration, "expected delay before the first retry")
	fs.DurationVar(&c.BackoffThreshold.Duration, "backoff-threshold", c.BackoffThreshold.Duration, "upper bound on the backoff delay")
	fs.DurationVar(&c.HostFreezeDuration.Duration, "host-freeze-duration", c.HostFreezeDuration.Duration, "duration a failed host is excluded from selection")
	fs.DurationVar(&c.ResolverCacheTTL.Duration, "resolver-cache-ttl", c.ResolverCacheTTL.Duration, "lifetime of cached host name resolutions")
	fs.UintVar(&c.RegionCycles, "region-cycles", c.RegionCycles, "times the region chain may be walked before giving up")
}

// Validate validates the config.
func (c *DispatchConfig) Validate() error {
	if c.RetryCount == 0 {
		return fmt.Errorf("retry count must be at least 1")
	}
	if c.BaseBackoffDelay.Duration <= 0 {
		return fmt.Errorf("base backoff delay must be positive")
	}
	if c.BackoffThreshold.Duration < c.BaseBackoffDelay.Duration {
		return fmt.Errorf("backoff threshold must not be below the base delay")
	}
	if c.RegionCycles == 0 {
		return fmt.Errorf("region cycles must be at least 1")
	}
	return nil
}

// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package dispatch drives one logical request across the region chain. It
// resolves endpoint hosts, orders the resolved addresses by health, attempts
// the request through the transport and reacts to the error classification:
// retry the same host after a backoff, skip to the next host immediately,
// abandon the region, or give up.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/backoff"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/chooser"
	qserrors "github.com/quarkstor/quarkstor-go-sdk/pkg/errors"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/region"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/resolver"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/transport"
)

// AttemptErrorFunc observes every failed attempt. It may be invoked
// concurrently from multiple scheduler workers.
type AttemptErrorFunc func(host, addr string, err error)

// Options carries the collaborators and bounds for a Dispatcher.
type Options struct {
	Transport transport.Transport
	Resolver  resolver.Resolver
	Chooser   chooser.Chooser
	Backoff   backoff.Backoff
	// RetryCount bounds transient retries per address, minimum 1.
	RetryCount uint
	// RegionCycles is how many times the region chain may be walked.
	RegionCycles uint
	Logger       *logrus.Entry
	// OnAttemptError, when set, is called synchronously after each failed
	// attempt.
	OnAttemptError AttemptErrorFunc
}

// Dispatcher executes requests with retry, host failover and region
// failover. It is safe for concurrent use.
type Dispatcher struct {
	transport      transport.Transport
	resolver       resolver.Resolver
	chooser        chooser.Chooser
	backoff        backoff.Backoff
	retryCount     uint
	regionCycles   uint
	logger         *logrus.Entry
	onAttemptError AttemptErrorFunc

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher builds a Dispatcher from options.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.RetryCount == 0 {
		opts.RetryCount = 3
	}
	if opts.RegionCycles == 0 {
		opts.RegionCycles = 1
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.New())
	}
	return &Dispatcher{
		transport:      opts.Transport,
		resolver:       opts.Resolver,
		chooser:        opts.Chooser,
		backoff:        opts.Backoff,
		retryCount:     opts.RetryCount,
		regionCycles:   opts.RegionCycles,
		logger:         opts.Logger,
		onAttemptError: opts.OnAttemptError,
		sleep:          sleepContext,
	}
}

// WithSleep overrides the wait primitive, for tests.
func (d *Dispatcher) WithSleep(sleep func(ctx context.Context, wait time.Duration) error) *Dispatcher {
	d.sleep = sleep
	return d
}

// Do dispatches the request across the region chain and reports the
// response together with the retry statistics accumulated on the way. The
// returned stats are valid on both success and failure.
func (d *Dispatcher) Do(ctx context.Context, op string, targets region.Targets, req *transport.Request) (*transport.Response, *RetryStats, error) {
	stats := NewRetryStats()
	resp, err := d.DoWithStats(ctx, op, targets, req, stats)
	return resp, stats, err
}

// DoWithStats is Do accumulating into caller-owned stats, so that one
// logical upload can aggregate across many part requests.
func (d *Dispatcher) DoWithStats(ctx context.Context, op string, targets region.Targets, req *transport.Request, stats *RetryStats) (*transport.Response, error) {
	start := time.Now()
	defer func() { stats.recordElapsed(time.Since(start)) }()

	var lastErr error
	for cycle := uint(0); cycle < d.regionCycles; cycle++ {
		for _, reg := range targets.Regions() {
			if ctx.Err() != nil {
				return nil, qserrors.NewRequestError(qserrors.KindFatal, op, "", ctx.Err())
			}
			resp, err := d.tryRegion(ctx, op, reg, req, stats)
			if err == nil {
				return resp, nil
			}
			if qserrors.IsFatal(err) {
				return nil, err
			}
			d.logger.Warnf("Region %s exhausted for %s: %v", reg.Name, op, err)
			lastErr = err
		}
	}
	return nil, qserrors.NewRequestError(qserrors.KindRegionUnretryable, op, "",
		fmt.Errorf("all regions exhausted (%s): %w", stats, lastErr))
}

// tryRegion walks the region's hosts in health order. A nil error means the
// request succeeded; a non-fatal error means the region is exhausted.
func (d *Dispatcher) tryRegion(ctx context.Context, op string, reg region.Region, req *transport.Request, stats *RetryStats) (*transport.Response, error) {
	var lastErr error
	for _, host := range reg.Up.Hosts() {
		addrs, err := d.resolver.Resolve(ctx, host)
		if err != nil {
			// Resolution failure rules out the host, not the region.
			rerr := qserrors.NewRequestError(qserrors.KindHostUnretryable, op, host, err)
			stats.recordAttempt(qserrors.KindHostUnretryable)
			d.notifyAttemptError(host, "", rerr)
			lastErr = rerr
			continue
		}
		for _, addr := range d.chooser.Choose(addrs) {
			resp, err := d.tryAddr(ctx, op, host, addr, req, stats)
			if err == nil {
				return resp, nil
			}
			switch qserrors.KindOf(err) {
			case qserrors.KindFatal:
				return nil, err
			case qserrors.KindRegionUnretryable:
				return nil, err
			}
			// Host ruled out; continue with the next address, no delay.
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = qserrors.NewRequestError(qserrors.KindRegionUnretryable, op, "",
			fmt.Errorf("region %s has no usable hosts", reg.Name))
	}
	return nil, lastErr
}

// tryAddr attempts the request against one resolved address, retrying
// transient failures in place up to the retry bound.
func (d *Dispatcher) tryAddr(ctx context.Context, op, host, addr string, req *transport.Request, stats *RetryStats) (*transport.Response, error) {
	var lastErr error
	for attempt := uint(1); attempt <= d.retryCount; attempt++ {
		if ctx.Err() != nil {
			return nil, qserrors.NewRequestError(qserrors.KindFatal, op, host, ctx.Err())
		}

		req.Host = host
		req.Addr = addr
		// Cancellation stops new attempts (checked above) but lets a
		// dispatched exchange run to completion, so a part that lands
		// after cancel can still be recorded. Backends carry their own
		// timeouts.
		resp, err := d.transport.RoundTrip(context.WithoutCancel(ctx), req)
		rerr := classify(op, host, resp, err)
		if rerr == nil {
			d.chooser.MarkSucceeded(addr)
			return resp, nil
		}

		stats.recordAttempt(rerr.Kind)
		d.notifyAttemptError(host, addr, rerr)
		lastErr = rerr

		switch rerr.Kind {
		case qserrors.KindTransient:
			if attempt == d.retryCount {
				break
			}
			wait := d.backoff.Delay(attempt)
			d.logger.Debugf("Transient failure on %s (%s), attempt %d/%d, retrying after %s: %v",
				host, addr, attempt, d.retryCount, wait, rerr)
			stats.recordWait(wait)
			if err := d.sleep(ctx, wait); err != nil {
				return nil, qserrors.NewRequestError(qserrors.KindFatal, op, host, err)
			}
			continue
		case qserrors.KindHostUnretryable:
			d.chooser.MarkFailed(addr, rerr)
			return nil, rerr
		default:
			return nil, rerr
		}
	}
	// Transient retries exhausted; the host earned a freeze.
	d.chooser.MarkFailed(addr, lastErr)
	return nil, qserrors.NewRequestError(qserrors.KindHostUnretryable, op, host,
		fmt.Errorf("retries exhausted: %w", lastErr))
}

func (d *Dispatcher) notifyAttemptError(host, addr string, err error) {
	if d.onAttemptError != nil {
		d.onAttemptError(host, addr, err)
	}
}

// classify turns a transport outcome into a RequestError, or nil on
// success.
func classify(op, host string, resp *transport.Response, err error) *qserrors.RequestError {
	if err != nil {
		return qserrors.ClassifyNetError(op, host, err)
	}
	if resp.StatusCode < 300 {
		return nil
	}
	return qserrors.NewStatusError(op, host, resp.StatusCode,
		fmt.Errorf("%s (reqid %s)", serviceMessage(resp.Body), resp.RequestID))
}

// serviceMessage extracts the error field the service returns in JSON
// bodies.
func serviceMessage(body []byte) string {
	var msg struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &msg); err == nil && msg.Error != "" {
		return msg.Error
	}
	return "request rejected"
}

func sleepContext(ctx context.Context, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package errors categorizes upload request failures into retry kinds. The
// kind decides how far the dispatch loop backs away from the failing
// component: same host, next host, next region, or not at all.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Kind classifies a failed attempt for the dispatch loop.
type Kind int

const (
	// KindTransient means the same host may succeed on a later attempt.
	KindTransient Kind = iota
	// KindHostUnretryable means this host is not worth retrying; another
	// host in the same region may still succeed.
	KindHostUnretryable
	// KindRegionUnretryable means the whole region should be abandoned in
	// favor of the next configured one.
	KindRegionUnretryable
	// KindFatal means no retry anywhere can help; surface to the caller.
	KindFatal
)

// String returns the kind name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindHostUnretryable:
		return "host_unretryable"
	case KindRegionUnretryable:
		return "region_unretryable"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// RequestError is the error the dispatch layer reports for one failed
// request, carrying its retry classification.
type RequestError struct {
	Kind       Kind
	StatusCode int
	Host       string
	Op         string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s against %s failed: status %d: %v", e.Op, e.Host, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s against %s failed: %v", e.Op, e.Host, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError builds a RequestError with an explicit kind.
func NewRequestError(kind Kind, op, host string, err error) *RequestError {
	return &RequestError{Kind: kind, Op: op, Host: host, Err: err}
}

// NewStatusError builds a RequestError from an HTTP status code, classifying
// it via ClassifyStatus.
func NewStatusError(op, host string, statusCode int, err error) *RequestError {
	return &RequestError{
		Kind:       ClassifyStatus(statusCode),
		StatusCode: statusCode,
		Op:         op,
		Host:       host,
		Err:        err,
	}
}

// KindOf extracts the retry kind from an error chain. Errors that are not
// RequestErrors are treated as fatal.
func KindOf(err error) Kind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return KindFatal
}

// IsFatal reports whether the error chain is classified fatal.
func IsFatal(err error) bool {
	return KindOf(err) == KindFatal
}

// ClassifyStatus maps an HTTP status code from the storage service to a
// retry kind. Codes above 599 are QuarkStor service extensions.
func ClassifyStatus(statusCode int) Kind {
	switch statusCode {
	case 502, 503, 504:
		// The host is up but cannot serve; its siblings may.
		return KindHostUnretryable
	case 571, 573:
		// Throttled; the same host will recover.
		return KindTransient
	case 501, 579, 599:
		return KindFatal
	case 612, 614, 630, 631:
		// Missing resource, resource exists, bucket state conflicts.
		return KindFatal
	}
	switch {
	case statusCode >= 400 && statusCode < 500:
		// Authorization failures, malformed requests, policy rejections.
		return KindFatal
	case statusCode >= 500 && statusCode < 600:
		return KindTransient
	case statusCode >= 600:
		return KindRegionUnretryable
	}
	return KindFatal
}

// ClassifyNetError maps a transport-level error (no HTTP response at all) to
// a retry kind. Context cancellation is never retried.
func ClassifyNetError(op, host string, err error) *RequestError {
	kind := KindHostUnretryable
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindFatal
	case isTimeout(err):
		kind = KindTransient
	case isDNSFailure(err), errors.Is(err, syscall.ECONNREFUSED):
		kind = KindHostUnretryable
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		kind = KindTransient
	}
	return NewRequestError(kind, op, host, err)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isDNSFailure(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

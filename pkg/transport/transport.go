// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package transport defines the pluggable HTTP backend the dispatch layer
// sends requests through. The SDK never talks to the network directly; it
// builds a Request, hands it to a Transport and classifies the outcome.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

const (
	// HeaderRequestID carries the client generated request id.
	HeaderRequestID = "X-Request-Id"
	// HeaderAuthorization carries the upload credential.
	HeaderAuthorization = "Authorization"
)

// Request is one HTTP exchange to be performed against a single host. The
// host is filled in by the dispatch loop, not by the request builder.
type Request struct {
	Method string
	Host   string
	// Addr is the resolved address selected for this attempt. NetTransport
	// dials it directly while keeping the Host header and SNI on the host
	// name; an empty Addr falls back to the OS resolver.
	Addr   string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// NewRequest returns a request with initialized header and query maps and a
// fresh request id.
func NewRequest(method, path string, body []byte) *Request {
	req := &Request{
		Method: method,
		Path:   path,
		Query:  url.Values{},
		Header: http.Header{},
		Body:   body,
	}
	req.Header.Set(HeaderRequestID, uuid.NewString())
	return req
}

// Response is the outcome of one HTTP exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

// Transport performs a single HTTP exchange. Implementations must be safe
// for concurrent use; the concurrent scheduler calls RoundTrip from many
// goroutines.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// NetTransport is the default Transport backed by net/http.
type NetTransport struct {
	client *http.Client
	scheme string
}

// pinnedAddrKey carries the resolved address for one exchange down to the
// dialer.
type pinnedAddrKey struct{}

// NewNetTransport returns a NetTransport. A nil client gets a transport
// whose dialer connects to the pinned resolved address of each request; a
// caller-supplied client owns its own dialing and ignores Request.Addr.
func NewNetTransport(client *http.Client) *NetTransport {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:       http.ProxyFromEnvironment,
				DialContext: dialPinned,
				// The pool keys connections by host name, which would
				// hand an attempt against one pinned address a connection
				// to another.
				DisableKeepAlives:   true,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return &NetTransport{client: client, scheme: "https"}
}

// dialPinned dials the address pinned on the context instead of the target
// host name, keeping the target's port.
func dialPinned(ctx context.Context, network, target string) (net.Conn, error) {
	if addr, ok := ctx.Value(pinnedAddrKey{}).(string); ok && addr != "" {
		if _, port, err := net.SplitHostPort(target); err == nil {
			if _, _, err := net.SplitHostPort(addr); err != nil {
				addr = net.JoinHostPort(addr, port)
			}
			target = addr
		}
	}
	var d net.Dialer
	return d.DialContext(ctx, network, target)
}

// RoundTrip implements Transport.
func (t *NetTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	if req.Addr != "" {
		ctx = context.WithValue(ctx, pinnedAddrKey{}, req.Addr)
	}
	u := url.URL{
		Scheme:   t.scheme,
		Host:     req.Host,
		Path:     req.Path,
		RawQuery: req.Query.Encode(),
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.ContentLength = int64(len(req.Body))

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		RequestID:  httpResp.Header.Get(HeaderRequestID),
	}, nil
}

// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package uploader implements the wire-level upload operations of the two
// QuarkStor upload protocol generations, plus the single-shot form upload.
// Every operation goes through the dispatch layer, so retry, host failover
// and region failover apply uniformly.
package uploader

import (
	"context"
	"sync"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/dispatch"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/partition"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/region"
)

// Target names the object an upload produces.
type Target struct {
	Bucket string
	Key    string
}

// PartToken is the server-issued proof that one part was accepted. Tokens
// are time-limited; see the recorder's part lifetime.
type PartToken struct {
	Index int
	Token string
	Size  int64
}

// Result is the outcome of a completed upload.
type Result struct {
	Bucket    string
	Key       string
	Hash      string
	Size      int64
	RequestID string
}

// Session is one logical multipart upload. For the v2 protocol the ID is
// the server-issued upload id; for v1 it is a client-local identifier. The
// completed result is cached on the session so a repeated finalize returns
// it without another network round trip.
type Session struct {
	ID        string
	Target    Target
	TotalSize int64

	mutex  sync.Mutex
	result *Result
}

func (s *Session) completedResult() *Result {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.result
}

func (s *Session) storeResult(result *Result) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.result = result
}

// MultipartUploader is one protocol generation. Implementations must be
// safe for concurrent UploadPart calls on the same session.
type MultipartUploader interface {
	// InitSession opens a new upload session against the given regions.
	InitSession(ctx context.Context, target Target, totalSize int64, targets region.Targets, stats *dispatch.RetryStats) (*Session, error)
	// Reattach rebuilds a session recorded by an earlier process.
	Reattach(target Target, totalSize int64, sessionID string) *Session
	// UploadPart transfers one partition and returns its token.
	UploadPart(ctx context.Context, session *Session, part partition.Partition, data []byte, targets region.Targets, stats *dispatch.RetryStats) (PartToken, error)
	// Finalize merges the parts into the visible object. It is idempotent
	// per session: finalizing an already completed session returns the
	// same result.
	Finalize(ctx context.Context, session *Session, tokens []PartToken, targets region.Targets, stats *dispatch.RetryStats) (*Result, error)
}

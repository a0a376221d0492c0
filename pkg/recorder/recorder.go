// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package recorder persists multipart upload progress so an interrupted
// transfer resumes from the last confirmed part instead of restarting.
// Records are keyed by the source fingerprint and live until the upload is
// finalized.
package recorder

import (
	"time"
)

// Metadata describes the upload session a record belongs to. A record whose
// metadata no longer matches the live source or target is discarded.
type Metadata struct {
	Bucket     string    `json:"bucket"`
	Key        string    `json:"key"`
	SourceSize int64     `json:"sourceSize"`
	SessionID  string    `json:"sessionID,omitempty"`
	Region     string    `json:"region,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PartRecord is one confirmed part upload.
type PartRecord struct {
	Index      int       `json:"index"`
	Token      string    `json:"token"`
	Size       int64     `json:"size"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Expired reports whether the part token has outlived the given lifetime.
// An expired part is treated as not yet uploaded and redone.
func (p PartRecord) Expired(now time.Time, lifetime time.Duration) bool {
	return now.After(p.RecordedAt.Add(lifetime))
}

// Record is the full resumable state for one fingerprint.
type Record struct {
	Metadata Metadata
	Parts    []PartRecord
}

// Part returns the recorded part with the given index, if any.
func (r *Record) Part(index int) (PartRecord, bool) {
	for _, p := range r.Parts {
		if p.Index == index {
			return p, true
		}
	}
	return PartRecord{}, false
}

// Recorder persists and reloads per-part completion records. Load drops
// expired parts and returns nil (no error) when no usable record exists.
// Concurrent readers across processes are supported; concurrent writers to
// one fingerprint are not — the scheduler owns mutation for the duration of
// an upload.
type Recorder interface {
	Load(fingerprint string, sourceSize int64, lifetime time.Duration) (*Record, error)
	Start(fingerprint string, meta Metadata) error
	RecordPart(fingerprint string, part PartRecord) error
	Finalize(fingerprint string) error
}

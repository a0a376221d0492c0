// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package source provides the data sources an upload reads from. A source
// knows its size, whether it can be re-read from an arbitrary offset, and a
// stable fingerprint under which resumable progress is recorded.
package source

// Source is the data supply for one upload.
type Source interface {
	// Size returns the total number of bytes.
	Size() int64
	// Seekable reports whether ReadSlice accepts arbitrary offsets.
	Seekable() bool
	// ReadSlice returns the bytes in [offset, offset+size). Unseekable
	// sources only accept in-order offsets, plus a re-read of the most
	// recently returned slice for same-part retry.
	ReadSlice(offset, size int64) ([]byte, error)
	// Fingerprint is the stable identity resumable records are keyed by.
	Fingerprint() string
}

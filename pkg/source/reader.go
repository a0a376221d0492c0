// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"fmt"
	"io"
	"sync"
)

// ReaderSource adapts a plain io.Reader of known size. The stream is read
// strictly once, in order; the most recent slice is kept so a failed part
// can be retried without rewinding the stream.
type ReaderSource struct {
	mutex       sync.Mutex
	reader      io.Reader
	size        int64
	fingerprint string

	pos        int64
	lastOffset int64
	lastSlice  []byte
}

// NewReaderSource wraps reader. The key must be stable across process
// restarts for resumption to work; an empty key disables resumption.
func NewReaderSource(reader io.Reader, size int64, key string) *ReaderSource {
	return &ReaderSource{reader: reader, size: size, fingerprint: key, lastOffset: -1}
}

// Size implements Source.
func (s *ReaderSource) Size() int64 {
	return s.size
}

// Seekable implements Source.
func (s *ReaderSource) Seekable() bool {
	return false
}

// ReadSlice implements Source. Offsets must arrive in order; re-reading the
// most recently returned slice is the one permitted rewind.
func (s *ReaderSource) ReadSlice(offset, size int64) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if offset == s.lastOffset {
		return s.lastSlice, nil
	}
	if offset != s.pos {
		return nil, fmt.Errorf("unseekable source: want offset %d, stream is at %d", offset, s.pos)
	}
	buf := make([]byte, size)
	n, err := io.ReadFull(s.reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read stream at %d: %w", offset, err)
	}
	s.pos += int64(n)
	s.lastOffset = offset
	s.lastSlice = buf[:n]
	return s.lastSlice, nil
}

// Fingerprint implements Source.
func (s *ReaderSource) Fingerprint() string {
	return s.fingerprint
}

// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package recorder

import (
	"bufio"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// FileRecorder stores one append-only record file per fingerprint under a
// base directory. The first line holds the session metadata, every further
// line one confirmed part. Appends happen under an advisory file lock held
// for the single write only, so two processes can safely read while one
// appends.
type FileRecorder struct {
	dir    string
	clock  clock.Clock
	logger *logrus.Entry
}

// NewFileRecorder creates the base directory if needed.
func NewFileRecorder(dir string, cl clock.Clock, logger *logrus.Entry) (*FileRecorder, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create recorder dir: %w", err)
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &FileRecorder{dir: dir, clock: cl, logger: logger}, nil
}

func (r *FileRecorder) recordPath(fingerprint string) string {
	sum := sha1.Sum([]byte(fingerprint))
	return filepath.Join(r.dir, fmt.Sprintf("%x.quarkstor-upload", sum))
}

func (r *FileRecorder) lockPath(fingerprint string) string {
	return r.recordPath(fingerprint) + ".lock"
}

// Load implements Recorder. A record with mismatched source size is
// discarded; expired parts are dropped from the resume set.
func (r *FileRecorder) Load(fingerprint string, sourceSize int64, lifetime time.Duration) (*Record, error) {
	path := r.recordPath(fingerprint)
	lock := flock.New(r.lockPath(fingerprint))
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock record for read: %w", err)
	}
	defer lock.Unlock()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open record: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	if !scanner.Scan() {
		return nil, nil
	}
	var meta Metadata
	if err := json.Unmarshal(scanner.Bytes(), &meta); err != nil {
		r.logger.Warnf("Discarding unreadable upload record %s: %v", path, err)
		return nil, nil
	}
	if meta.SourceSize != sourceSize {
		r.logger.Infof("Discarding upload record %s: source size changed (%d -> %d)", path, meta.SourceSize, sourceSize)
		return nil, nil
	}

	now := r.clock.Now()
	parts := make(map[int]PartRecord)
	for scanner.Scan() {
		var part PartRecord
		if err := json.Unmarshal(scanner.Bytes(), &part); err != nil {
			// A torn final line is expected after a crash mid-append.
			r.logger.Warnf("Ignoring truncated part entry in %s: %v", path, err)
			continue
		}
		if part.Expired(now, lifetime) {
			r.logger.Infof("Part %d in %s expired, will be re-uploaded", part.Index, path)
			continue
		}
		parts[part.Index] = part
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}

	record := &Record{Metadata: meta, Parts: make([]PartRecord, 0, len(parts))}
	for _, part := range parts {
		record.Parts = append(record.Parts, part)
	}
	sort.Slice(record.Parts, func(i, j int) bool { return record.Parts[i].Index < record.Parts[j].Index })
	return record, nil
}

// Start implements Recorder. Any previous record for the fingerprint is
// replaced.
func (r *FileRecorder) Start(fingerprint string, meta Metadata) error {
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = r.clock.Now()
	}
	line, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return r.withLock(fingerprint, func() error {
		return os.WriteFile(r.recordPath(fingerprint), append(line, '\n'), 0o600)
	})
}

// RecordPart implements Recorder.
func (r *FileRecorder) RecordPart(fingerprint string, part PartRecord) error {
	if part.RecordedAt.IsZero() {
		part.RecordedAt = r.clock.Now()
	}
	line, err := json.Marshal(part)
	if err != nil {
		return fmt.Errorf("encode part record: %w", err)
	}
	return r.withLock(fingerprint, func() error {
		file, err := os.OpenFile(r.recordPath(fingerprint), os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open record for append: %w", err)
		}
		defer file.Close()
		if _, err := file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("append part record: %w", err)
		}
		return file.Sync()
	})
}

// Finalize implements Recorder, removing the record and its lock file.
func (r *FileRecorder) Finalize(fingerprint string) error {
	err := r.withLock(fingerprint, func() error {
		if err := os.Remove(r.recordPath(fingerprint)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove record: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if rmErr := os.Remove(r.lockPath(fingerprint)); rmErr != nil && !os.IsNotExist(rmErr) {
		r.logger.Warnf("Leaving stale lock file behind: %v", rmErr)
	}
	return nil
}

// withLock runs fn under the exclusive advisory lock, releasing it on every
// exit path.
func (r *FileRecorder) withLock(fingerprint string, fn func() error) error {
	lock := flock.New(r.lockPath(fingerprint))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock record: %w", err)
	}
	defer lock.Unlock()
	return fn()
}

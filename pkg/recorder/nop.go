// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package recorder

import "time"

// NopRecorder records nothing. Uploads using it see every part as pending
// on every attempt.
type NopRecorder struct{}

// Load implements Recorder.
func (NopRecorder) Load(string, int64, time.Duration) (*Record, error) {
	return nil, nil
}

// Start implements Recorder.
func (NopRecorder) Start(string, Metadata) error {
	return nil
}

// RecordPart implements Recorder.
func (NopRecorder) RecordPart(string, PartRecord) error {
	return nil
}

// Finalize implements Recorder.
func (NopRecorder) Finalize(string) error {
	return nil
}

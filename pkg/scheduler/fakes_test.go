// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package scheduler_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/dispatch"
	qserrors "github.com/quarkstor/quarkstor-go-sdk/pkg/errors"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/partition"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/recorder"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/region"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/uploader"
)

// partCall is one observed UploadPart invocation.
type partCall struct {
	Region string
	Index  int
	Size   int64
}

// fakeUploader is a scriptable MultipartUploader. Failures are configured
// per region and part index; everything else succeeds with synthetic tokens.
type fakeUploader struct {
	mutex sync.Mutex

	initCalls     int
	reattached    []string
	partCalls     []partCall
	finalizeCalls int
	finalized     [][]uploader.PartToken

	partErrs     map[string]map[int]error
	partOnceErrs map[string]map[int]error
	finalizeErrs map[string]error
	uploadDelay  time.Duration

	inFlight    int
	maxInFlight int
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{
		partErrs:     map[string]map[int]error{},
		partOnceErrs: map[string]map[int]error{},
		finalizeErrs: map[string]error{},
	}
}

func regionExhaustedErr(op string) error {
	return qserrors.NewRequestError(qserrors.KindRegionUnretryable, op, "", fmt.Errorf("all regions exhausted"))
}

func (f *fakeUploader) failPart(regionName string, index int, err error) {
	if f.partErrs[regionName] == nil {
		f.partErrs[regionName] = map[int]error{}
	}
	f.partErrs[regionName][index] = err
}

// failPartOnce arms a failure consumed by the first matching UploadPart.
func (f *fakeUploader) failPartOnce(regionName string, index int, err error) {
	if f.partOnceErrs[regionName] == nil {
		f.partOnceErrs[regionName] = map[int]error{}
	}
	f.partOnceErrs[regionName][index] = err
}

func (f *fakeUploader) InitSession(_ context.Context, target uploader.Target, totalSize int64, _ region.Targets, _ *dispatch.RetryStats) (*uploader.Session, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.initCalls++
	return &uploader.Session{ID: fmt.Sprintf("session-%d", f.initCalls), Target: target, TotalSize: totalSize}, nil
}

func (f *fakeUploader) Reattach(target uploader.Target, totalSize int64, sessionID string) *uploader.Session {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.reattached = append(f.reattached, sessionID)
	return &uploader.Session{ID: sessionID, Target: target, TotalSize: totalSize}
}

func (f *fakeUploader) UploadPart(_ context.Context, _ *uploader.Session, part partition.Partition, data []byte, targets region.Targets, _ *dispatch.RetryStats) (uploader.PartToken, error) {
	regionName := targets.Regions()[0].Name

	f.mutex.Lock()
	f.partCalls = append(f.partCalls, partCall{Region: regionName, Index: part.Index, Size: int64(len(data))})
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	err := f.partErrs[regionName][part.Index]
	if err == nil {
		if once, ok := f.partOnceErrs[regionName][part.Index]; ok {
			err = once
			delete(f.partOnceErrs[regionName], part.Index)
		}
	}
	delay := f.uploadDelay
	f.mutex.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mutex.Lock()
	f.inFlight--
	f.mutex.Unlock()

	if err != nil {
		return uploader.PartToken{}, err
	}
	return uploader.PartToken{Index: part.Index, Token: fmt.Sprintf("token-%d", part.Index), Size: part.Size}, nil
}

func (f *fakeUploader) Finalize(_ context.Context, session *uploader.Session, tokens []uploader.PartToken, targets region.Targets, _ *dispatch.RetryStats) (*uploader.Result, error) {
	regionName := targets.Regions()[0].Name

	f.mutex.Lock()
	f.finalizeCalls++
	snapshot := make([]uploader.PartToken, len(tokens))
	copy(snapshot, tokens)
	f.finalized = append(f.finalized, snapshot)
	err := f.finalizeErrs[regionName]
	f.mutex.Unlock()

	if err != nil {
		return nil, err
	}
	var size int64
	for _, token := range tokens {
		size += token.Size
	}
	return &uploader.Result{
		Bucket: session.Target.Bucket,
		Key:    session.Target.Key,
		Hash:   "fake-hash",
		Size:   size,
	}, nil
}

func (f *fakeUploader) callsFor(regionName string) []partCall {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	calls := make([]partCall, 0)
	for _, call := range f.partCalls {
		if call.Region == regionName {
			calls = append(calls, call)
		}
	}
	return calls
}

func (f *fakeUploader) indicesFor(regionName string) []int {
	indices := make([]int, 0)
	for _, call := range f.callsFor(regionName) {
		indices = append(indices, call.Index)
	}
	return indices
}

func uploadMetadata(target uploader.Target, sourceSize int64, sessionID string) recorder.Metadata {
	return recorder.Metadata{
		Bucket:     target.Bucket,
		Key:        target.Key,
		SourceSize: sourceSize,
		SessionID:  sessionID,
	}
}

func partRecord(index int) recorder.PartRecord {
	return recorder.PartRecord{Index: index, Token: fmt.Sprintf("token-%d", index), Size: 4 << 20}
}

// memoryRecorder keeps records in process, enough to observe what the
// scheduler persists.
type memoryRecorder struct {
	mutex     sync.Mutex
	metas     map[string]recorder.Metadata
	parts     map[string][]recorder.PartRecord
	finalized []string

	startErr error
}

func newMemoryRecorder() *memoryRecorder {
	return &memoryRecorder{
		metas: map[string]recorder.Metadata{},
		parts: map[string][]recorder.PartRecord{},
	}
}

func (m *memoryRecorder) Load(fingerprint string, sourceSize int64, _ time.Duration) (*recorder.Record, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	meta, ok := m.metas[fingerprint]
	if !ok || meta.SourceSize != sourceSize {
		return nil, nil
	}
	parts := make([]recorder.PartRecord, len(m.parts[fingerprint]))
	copy(parts, m.parts[fingerprint])
	return &recorder.Record{Metadata: meta, Parts: parts}, nil
}

func (m *memoryRecorder) Start(fingerprint string, meta recorder.Metadata) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.metas[fingerprint] = meta
	m.parts[fingerprint] = nil
	return nil
}

func (m *memoryRecorder) RecordPart(fingerprint string, part recorder.PartRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.parts[fingerprint] = append(m.parts[fingerprint], part)
	return nil
}

func (m *memoryRecorder) Finalize(fingerprint string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.metas, fingerprint)
	delete(m.parts, fingerprint)
	m.finalized = append(m.finalized, fingerprint)
	return nil
}

func (m *memoryRecorder) recordedIndices(fingerprint string) []int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	indices := make([]int, 0)
	for _, part := range m.parts[fingerprint] {
		indices = append(indices, part.Index)
	}
	return indices
}

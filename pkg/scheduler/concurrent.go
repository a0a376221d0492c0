// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/dispatch"
	qserrors "github.com/quarkstor/quarkstor-go-sdk/pkg/errors"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/partition"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/region"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/source"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/uploader"
)

// ConcurrentScheduler uploads pending parts through a bounded worker pool.
// Ordering between sibling parts is not guaranteed; the source must be
// seekable. On abort or region exhaustion no new parts are started, but
// in-flight parts drain and their results are still recorded, keeping the
// resumable record as complete as possible.
type ConcurrentScheduler struct {
	opts Options
}

// NewConcurrentScheduler returns a ConcurrentScheduler.
func NewConcurrentScheduler(opts Options) *ConcurrentScheduler {
	if opts.MaxConcurrency == 0 {
		opts.MaxConcurrency = 1
	}
	return &ConcurrentScheduler{opts: opts}
}

type partResult struct {
	part  partition.Partition
	token uploader.PartToken
	err   error
}

// Upload implements Scheduler.
func (s *ConcurrentScheduler) Upload(ctx context.Context, src source.Source, target uploader.Target, targets region.Targets) (*uploader.Result, *dispatch.RetryStats, error) {
	stats := dispatch.NewRetryStats()
	if err := targets.Validate(); err != nil {
		return nil, stats, err
	}
	if !src.Seekable() {
		return nil, stats, fmt.Errorf("concurrent scheduler requires a seekable source")
	}
	pl, err := s.opts.prepare(ctx, src, target, targets, stats)
	if err != nil {
		return nil, stats, err
	}

	logger := s.opts.logger()
	regions := s.opts.regionAttempts(targets)
	var lastErr error
	for i, reg := range regions {
		regTargets := region.NewTargets(reg)

		if err := s.uploadPending(ctx, pl, src, regTargets, stats); err != nil {
			if regionExhausted(err) && i+1 < len(regions) {
				logger.Warnf("Region %s exhausted with %d parts pending, failing over to %s",
					reg.Name, len(pl.pending), regions[i+1].Name)
				lastErr = err
				continue
			}
			return nil, stats, err
		}

		result, err := s.opts.finalize(ctx, pl, regTargets, stats)
		if err != nil {
			if regionExhausted(err) && i+1 < len(regions) {
				logger.Warnf("Finalize failed in region %s, failing over to %s", reg.Name, regions[i+1].Name)
				lastErr = err
				continue
			}
			return nil, stats, err
		}
		return result, stats, nil
	}
	return nil, stats, fmt.Errorf("upload of %s/%s failed in every region: %w", target.Bucket, target.Key, lastErr)
}

// uploadPending runs one region attempt over the current pending list. The
// part and result channels are sized for the full list so neither workers
// nor the collector ever block on a stopped counterpart.
func (s *ConcurrentScheduler) uploadPending(ctx context.Context, pl *plan, src source.Source, regTargets region.Targets, stats *dispatch.RetryStats) error {
	pending := pl.pending
	if len(pending) == 0 {
		return nil
	}

	var (
		partCh   = make(chan partition.Partition, len(pending))
		resCh    = make(chan partResult, len(pending))
		stopCh   = make(chan struct{})
		stopOnce sync.Once
		wg       sync.WaitGroup
	)
	stop := func() { stopOnce.Do(func() { close(stopCh) }) }

	for i := uint(0); i < s.opts.MaxConcurrency; i++ {
		wg.Add(1)
		go s.partWorker(ctx, pl.session, src, regTargets, stats, partCh, resCh, stopCh, &wg)
	}
	for _, part := range pending {
		partCh <- part
	}
	close(partCh)
	go func() {
		wg.Wait()
		close(resCh)
	}()

	// Drain every in-flight result even after a failure; a part that
	// lands late is still worth recording.
	var abortErr error
	for res := range resCh {
		if res.err != nil {
			stop()
			if abortErr == nil || qserrors.IsFatal(res.err) {
				abortErr = res.err
			}
			continue
		}
		s.opts.recordSuccess(pl, res.part, res.token)
	}
	pl.refreshPending()

	if abortErr != nil {
		return abortErr
	}
	if ctx.Err() != nil && len(pl.pending) > 0 {
		return qserrors.NewRequestError(qserrors.KindFatal, "upload-part", "", ctx.Err())
	}
	return nil
}

// partWorker uploads parts from partCh until the channel closes, a stop is
// signalled or the caller cancels. A worker never abandons the part it has
// already dispatched.
func (s *ConcurrentScheduler) partWorker(ctx context.Context, session *uploader.Session, src source.Source, regTargets region.Targets, stats *dispatch.RetryStats, partCh <-chan partition.Partition, resCh chan<- partResult, stopCh <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	for part := range partCh {
		select {
		case <-stopCh:
			return
		default:
		}
		if ctx.Err() != nil {
			return
		}
		data, err := src.ReadSlice(part.Offset, part.Size)
		if err != nil {
			resCh <- partResult{part: part, err: err}
			continue
		}
		token, err := s.opts.Uploader.UploadPart(ctx, session, part, data, regTargets, stats)
		resCh <- partResult{part: part, token: token, err: err}
	}
}

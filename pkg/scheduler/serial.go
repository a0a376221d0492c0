// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/dispatch"
	qserrors "github.com/quarkstor/quarkstor-go-sdk/pkg/errors"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/region"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/source"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/uploader"
)

// SerialScheduler uploads pending parts one at a time, in index order. It
// is the only scheduler usable with unseekable sources, whose bytes must be
// consumed in order.
type SerialScheduler struct {
	opts Options
}

// NewSerialScheduler returns a SerialScheduler.
func NewSerialScheduler(opts Options) *SerialScheduler {
	return &SerialScheduler{opts: opts}
}

// Upload implements Scheduler.
func (s *SerialScheduler) Upload(ctx context.Context, src source.Source, target uploader.Target, targets region.Targets) (*uploader.Result, *dispatch.RetryStats, error) {
	stats := dispatch.NewRetryStats()
	if err := targets.Validate(); err != nil {
		return nil, stats, err
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

// uploadPending walks the pending list in order. The resumable record keeps
// every confirmed part even when a later one fails.
func (s *SerialScheduler) uploadPending(ctx context.Context, pl *plan, src source.Source, regTargets region.Targets, stats *dispatch.RetryStats) error {
	for len(pl.pending) > 0 {
		if ctx.Err() != nil {
			return qserrors.NewRequestError(qserrors.KindFatal, "upload-part", "", ctx.Err())
		}
		part := pl.pending[0]
		data, err := src.ReadSlice(part.Offset, part.Size)
		if err != nil {
			return err
		}
		token, err := s.opts.Uploader.UploadPart(ctx, pl.session, part, data, regTargets, stats)
		if err != nil {
			return err
		}
		s.opts.recordSuccess(pl, part, token)
		pl.pending = pl.pending[1:]
	}
	return nil
}

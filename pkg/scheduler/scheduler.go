// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package scheduler drives a whole multipart upload: it builds the work
// list from the partition plan and the resumable record, executes the
// pending parts serially or with bounded parallelism, persists every
// confirmed part, fails over between regions, and finalizes the object once
// nothing is pending.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/dispatch"
	qserrors "github.com/quarkstor/quarkstor-go-sdk/pkg/errors"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/metrics"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/partition"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/recorder"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/region"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/source"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/uploader"
)

// Notifier observes upload progress. Hooks are invoked synchronously and,
// under the concurrent scheduler, possibly from several worker goroutines
// at once; implementations must be safe for that.
type Notifier struct {
	PartUploaded func(part partition.Partition, token uploader.PartToken)
}

// Scheduler runs one multipart upload to completion.
type Scheduler interface {
	Upload(ctx context.Context, src source.Source, target uploader.Target, targets region.Targets) (*uploader.Result, *dispatch.RetryStats, error)
}

// Options carries the collaborators shared by both schedulers.
type Options struct {
	Uploader     uploader.MultipartUploader
	Recorder     recorder.Recorder
	BlockSize    int64
	PartLifetime time.Duration
	// MaxConcurrency bounds parallel part uploads (concurrent scheduler
	// only).
	MaxConcurrency uint
	// RegionCycles is how many times the region chain may be walked before
	// the upload is given up; zero means once.
	RegionCycles uint
	Logger       *logrus.Entry
	Notifier     Notifier
}

func (o *Options) logger() *logrus.Entry {
	if o.Logger == nil {
		o.Logger = logrus.NewEntry(logrus.New())
	}
	return o.Logger
}

// plan is the mutable state of one upload: the full partition set, the
// tokens confirmed so far and the parts still to do.
type plan struct {
	session     *uploader.Session
	fingerprint string
	partitions  []partition.Partition
	tokens      map[int]uploader.PartToken
	pending     []partition.Partition
}

// prepare builds the work list. A valid resumable record contributes its
// session and part tokens; everything else starts fresh.
func (o *Options) prepare(ctx context.Context, src source.Source, target uploader.Target, targets region.Targets, stats *dispatch.RetryStats) (*plan, error) {
	partitions, err := partition.Plan(src.Size(), o.BlockSize)
	if err != nil {
		return nil, err
	}

	pl := &plan{
		fingerprint: src.Fingerprint(),
		partitions:  partitions,
		tokens:      make(map[int]uploader.PartToken),
	}

	var record *recorder.Record
	if pl.fingerprint != "" {
		record, err = o.Recorder.Load(pl.fingerprint, src.Size(), o.PartLifetime)
		if err != nil {
			o.logger().Warnf("Ignoring unreadable upload record for %s: %v", pl.fingerprint, err)
			record = nil
		}
		if record != nil && (record.Metadata.Bucket != target.Bucket || record.Metadata.Key != target.Key) {
			o.logger().Infof("Ignoring upload record for %s: target changed", pl.fingerprint)
			record = nil
		}
	}

	if record != nil {
		pl.session = o.Uploader.Reattach(target, src.Size(), record.Metadata.SessionID)
		for _, part := range record.Parts {
			if part.Index >= len(partitions) || partitions[part.Index].Size != part.Size {
				// Recorded under a different partition plan.
				continue
			}
			pl.tokens[part.Index] = uploader.PartToken{Index: part.Index, Token: part.Token, Size: part.Size}
			metrics.PartsResumed.Inc()
		}
		o.logger().Infof("Resuming upload of %s/%s: %d of %d parts already confirmed",
			target.Bucket, target.Key, len(pl.tokens), len(partitions))
	} else {
		session, err := o.Uploader.InitSession(ctx, target, src.Size(), targets, stats)
		if err != nil {
			return nil, err
		}
		pl.session = session
		if pl.fingerprint != "" {
			meta := recorder.Metadata{
				Bucket:     target.Bucket,
				Key:        target.Key,
				SourceSize: src.Size(),
				SessionID:  session.ID,
			}
			if err := o.Recorder.Start(pl.fingerprint, meta); err != nil {
				o.logger().Warnf("Upload will not be resumable: %v", err)
				pl.fingerprint = ""
			}
		}
	}

	pl.refreshPending()
	return pl, nil
}

// refreshPending recomputes the pending list from the confirmed tokens.
func (pl *plan) refreshPending() {
	pending := make([]partition.Partition, 0, len(pl.partitions)-len(pl.tokens))
	for _, part := range pl.partitions {
		if _, ok := pl.tokens[part.Index]; !ok {
			pending = append(pending, part)
		}
	}
	pl.pending = pending
}

// recordSuccess marks one part confirmed, persists it and fires the
// progress hook.
func (o *Options) recordSuccess(pl *plan, part partition.Partition, token uploader.PartToken) {
	pl.tokens[part.Index] = token
	metrics.PartsUploaded.Inc()
	if pl.fingerprint != "" {
		if err := o.Recorder.RecordPart(pl.fingerprint, recorder.PartRecord{
			Index: part.Index,
			Token: token.Token,
			Size:  part.Size,
		}); err != nil {
			// The upload goes on; only resumability suffers.
			o.logger().Warnf("Failed to record part %d: %v", part.Index, err)
		}
	}
	if o.Notifier.PartUploaded != nil {
		o.Notifier.PartUploaded(part, token)
	}
}

// finalize merges the parts once nothing is pending and clears the
// resumable record on success.
func (o *Options) finalize(ctx context.Context, pl *plan, targets region.Targets, stats *dispatch.RetryStats) (*uploader.Result, error) {
	if len(pl.pending) > 0 {
		return nil, fmt.Errorf("refusing to finalize with %d parts pending", len(pl.pending))
	}
	tokens := make([]uploader.PartToken, len(pl.partitions))
	for i, part := range pl.partitions {
		token, ok := pl.tokens[part.Index]
		if !ok {
			return nil, fmt.Errorf("no token for part %d", part.Index)
		}
		tokens[i] = token
	}

	result, err := o.Uploader.Finalize(ctx, pl.session, tokens, targets, stats)
	if err != nil {
		return nil, err
	}
	metrics.BytesUploaded.Add(float64(result.Size))
	if pl.fingerprint != "" {
		if err := o.Recorder.Finalize(pl.fingerprint); err != nil {
			o.logger().Warnf("Failed to clear upload record for %s: %v", pl.fingerprint, err)
		}
	}
	return result, nil
}

// regionAttempts flattens the chain into the ordered per-region attempt
// list, repeating the whole chain once per configured cycle.
func (o *Options) regionAttempts(targets region.Targets) []region.Region {
	cycles := o.RegionCycles
	if cycles == 0 {
		cycles = 1
	}
	regions := targets.Regions()
	attempts := make([]region.Region, 0, len(regions)*int(cycles))
	for c := uint(0); c < cycles; c++ {
		attempts = append(attempts, regions...)
	}
	return attempts
}

// regionExhausted reports whether the error means the current region is
// done for but another may still succeed.
func regionExhausted(err error) bool {
	return qserrors.KindOf(err) == qserrors.KindRegionUnretryable
}

// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package manager assembles the upload stack and routes each upload to the
// right shape: single-shot below the multipart threshold, serial multipart
// for unseekable sources, concurrent multipart otherwise.
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/backoff"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/chooser"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/credentials"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/dispatch"
	qserrors "github.com/quarkstor/quarkstor-go-sdk/pkg/errors"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/metrics"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/partition"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/recorder"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/region"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/resolver"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/scheduler"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/source"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/transport"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/types"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/uploader"
)

// Options configures an UploadManager. Zero-value collaborators get
// production defaults; configs get their package defaults.
type Options struct {
	DispatchConfig *types.DispatchConfig
	UploaderConfig *types.UploaderConfig
	// Transport defaults to a net/http backed transport.
	Transport transport.Transport
	// Resolver defaults to a TTL-cached system resolver.
	Resolver      resolver.Resolver
	TokenProvider credentials.TokenProvider
	// UseLegacyProtocol selects the v1 block protocol instead of v2.
	UseLegacyProtocol bool
	Logger            *logrus.Entry
	Notifier          scheduler.Notifier
	Clock             clock.Clock
}

// UploadManager is the entry point for uploads. It owns its resolver cache
// and chooser freeze table; independent managers never share health state
// unless constructed with the same collaborators on purpose.
type UploadManager struct {
	uploaderCfg *types.UploaderConfig
	form        *uploader.FormUploader
	serial      *scheduler.SerialScheduler
	concurrent  *scheduler.ConcurrentScheduler
	logger      *logrus.Entry
}

// New builds an UploadManager.
func New(opts Options) (*UploadManager, error) {
	if opts.TokenProvider == nil {
		return nil, fmt.Errorf("no token provider configured")
	}
	if opts.DispatchConfig == nil {
		opts.DispatchConfig = types.NewDispatchConfig()
	}
	if opts.UploaderConfig == nil {
		opts.UploaderConfig = types.NewUploaderConfig()
	}
	if err := opts.DispatchConfig.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch config: %w", err)
	}
	opts.UploaderConfig.BlockSize = partition.AlignBlockSize(opts.UploaderConfig.BlockSize)
	if err := opts.UploaderConfig.Validate(); err != nil {
		return nil, fmt.Errorf("uploader config: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.New())
	}
	if opts.Transport == nil {
		opts.Transport = transport.NewNetTransport(nil)
	}
	if opts.Resolver == nil {
		opts.Resolver = resolver.NewCachingResolver(
			resolver.NewNetResolver(nil), opts.Clock, opts.DispatchConfig.ResolverCacheTTL.Duration)
	}

	dispatcher := dispatch.NewDispatcher(dispatch.Options{
		Transport:    opts.Transport,
		Resolver:     opts.Resolver,
		Chooser:      chooser.NewFreezeChooser(opts.Clock, opts.DispatchConfig.HostFreezeDuration.Duration),
		Backoff:      backoff.NewExponential(opts.DispatchConfig.BaseBackoffDelay.Duration, opts.DispatchConfig.BackoffThreshold.Duration),
		RetryCount:   opts.DispatchConfig.RetryCount,
		RegionCycles: opts.DispatchConfig.RegionCycles,
		Logger:       opts.Logger,
		OnAttemptError: func(host, addr string, err error) {
			metrics.AttemptFailures.WithLabelValues(qserrors.KindOf(err).String()).Inc()
		},
	})

	var rec recorder.Recorder = recorder.NopRecorder{}
	if dir := opts.UploaderConfig.RecorderDir; dir != "" {
		fileRec, err := recorder.NewFileRecorder(dir, opts.Clock, opts.Logger)
		if err != nil {
			return nil, err
		}
		rec = fileRec
	}

	var multipart uploader.MultipartUploader
	if opts.UseLegacyProtocol {
		multipart = uploader.NewV1Uploader(dispatcher, opts.TokenProvider, opts.Logger)
	} else {
		multipart = uploader.NewV2Uploader(dispatcher, opts.TokenProvider, opts.Logger)
	}

	schedOpts := scheduler.Options{
		Uploader:       multipart,
		Recorder:       rec,
		BlockSize:      opts.UploaderConfig.BlockSize,
		PartLifetime:   opts.UploaderConfig.PartLifetime.Duration,
		MaxConcurrency: opts.UploaderConfig.MaxConcurrency,
		RegionCycles:   opts.DispatchConfig.RegionCycles,
		Logger:         opts.Logger,
		Notifier:       opts.Notifier,
	}

	return &UploadManager{
		uploaderCfg: opts.UploaderConfig,
		form:        uploader.NewFormUploader(dispatcher, opts.TokenProvider, opts.Logger),
		serial:      scheduler.NewSerialScheduler(schedOpts),
		concurrent:  scheduler.NewConcurrentScheduler(schedOpts),
		logger:      opts.Logger,
	}, nil
}

// Upload transfers the source to the target, choosing the upload shape from
// the resumable policy. The returned stats cover every network attempt the
// upload made.
func (m *UploadManager) Upload(ctx context.Context, src source.Source, target uploader.Target, targets region.Targets) (*uploader.Result, *dispatch.RetryStats, error) {
	start := time.Now()
	result, stats, err := m.upload(ctx, src, target, targets)

	succeeded := metrics.ValueSucceededTrue
	if err != nil {
		succeeded = metrics.ValueSucceededFalse
	}
	metrics.UploadDurationSeconds.WithLabelValues(succeeded).Observe(time.Since(start).Seconds())
	if stats != nil {
		metrics.RetryWaitSeconds.Observe(stats.WaitTime().Seconds())
	}
	return result, stats, err
}

func (m *UploadManager) upload(ctx context.Context, src source.Source, target uploader.Target, targets region.Targets) (*uploader.Result, *dispatch.RetryStats, error) {
	policy := partition.Decide(src.Size(), src.Seekable(), m.uploaderCfg.MultipartThreshold)
	m.logger.Infof("Uploading %s/%s (%d bytes) via %s", target.Bucket, target.Key, src.Size(), policy)

	if policy == partition.SingleShot {
		stats := dispatch.NewRetryStats()
		result, err := m.form.Upload(ctx, src, target, targets, stats)
		return result, stats, err
	}
	if src.Seekable() && m.uploaderCfg.MaxConcurrency > 1 {
		return m.concurrent.Upload(ctx, src, target, targets)
	}
	return m.serial.Upload(ctx, src, target, targets)
}

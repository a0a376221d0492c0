// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/credentials"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/manager"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/partition"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/scheduler"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/source"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/uploader"
)

// NewPutCommand uploads one local file.
func NewPutCommand(ctx context.Context) *cobra.Command {
	opts := newPutOptions()
	putCmd := &cobra.Command{
		Use:   "put <file>",
		Short: "upload a local file to QuarkStor",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			opts.complete()
			if err := opts.validate(); err != nil {
				opts.Logger.Fatalf("Invalid options: %v", err)
			}
			if err := runPut(ctx, opts, args[0]); err != nil {
				opts.Logger.Fatalf("Upload failed: %v", err)
			}
		},
	}
	opts.addFlags(putCmd.Flags())
	return putCmd
}

func runPut(ctx context.Context, opts *putOptions, path string) error {
	logger := opts.Logger.WithField("actor", "quarkstor-upload")

	targets, err := opts.targets()
	if err != nil {
		return err
	}
	src, err := source.NewFileSource(path)
	if err != nil {
		return err
	}
	defer src.Close()

	key := opts.Key
	if key == "" {
		key = filepath.Base(path)
	}

	mgr, err := manager.New(manager.Options{
		DispatchConfig:    opts.DispatchConfig,
		UploaderConfig:    opts.UploaderConfig,
		TokenProvider:     credentials.StaticToken(opts.Token),
		UseLegacyProtocol: opts.Legacy,
		Logger:            logger,
		Notifier: scheduler.Notifier{
			PartUploaded: func(part partition.Partition, _ uploader.PartToken) {
				logger.Infof("Confirmed part %d (%d bytes)", part.Index, part.Size)
			},
		},
	})
	if err != nil {
		return err
	}

	result, stats, err := mgr.Upload(ctx, src, uploader.Target{Bucket: opts.Bucket, Key: key}, targets)
	if err != nil {
		logger.Errorf("Upload gave up (%s)", stats)
		return err
	}
	logger.WithFields(logrus.Fields{
		"bucket": result.Bucket,
		"key":    result.Key,
		"hash":   result.Hash,
		"size":   result.Size,
	}).Infof("Upload completed (%s)", stats)
	return nil
}

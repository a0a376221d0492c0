// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/wrappers"
)

const (
	// BlockSizeGranularity is the multiple every block size must respect;
	// the service rejects parts that are not 4 MiB aligned (except the
	// final one).
	BlockSizeGranularity = 4 << 20
	// DefaultBlockSize is the default multipart block size.
	DefaultBlockSize = 4 << 20
	// DefaultMultipartThreshold is the size above which multipart upload
	// is mandatory.
	DefaultMultipartThreshold = 4 << 20
	// DefaultMaxConcurrency bounds parallel part uploads.
	DefaultMaxConcurrency = 4
	// DefaultPartLifetime matches the service-side validity of part
	// tokens.
	DefaultPartLifetime = 7 * 24 * time.Hour
)

// UploaderConfig configures partitioning, the single-shot/multipart policy
// and the multipart schedulers.
type UploaderConfig struct {
	BlockSize          int64             `json:"blockSize,omitempty"`
	MultipartThreshold int64             `json:"multipartThreshold,omitempty"`
	MaxConcurrency     uint              `json:"maxConcurrency,omitempty"`
	PartLifetime       wrappers.Duration `json:"partLifetime,omitempty"`
	RecorderDir        string            `json:"recorderDir,omitempty"`
}

// NewUploaderConfig returns an UploaderConfig with defaults.
func NewUploaderConfig() *UploaderConfig {
	return &UploaderConfig{
		BlockSize:          DefaultBlockSize,
		MultipartThreshold: DefaultMultipartThreshold,
		MaxConcurrency:     DefaultMaxConcurrency,
		PartLifetime:       wrappers.Duration{Duration: DefaultPartLifetime},
	}
}

// AddFlags adds the flags to flagset.
func (c *UploaderConfig) AddFlags(fs *flag.FlagSet) {
	fs.Int64Var(&c.BlockSize, "block-size", c.BlockSize, "multipart block size in bytes, rounded down to a 4 MiB multiple")
	fs.Int64Var(&c.MultipartThreshold, "multipart-threshold", c.MultipartThreshold, "source size above which multipart upload is used")
	fs.UintVar(&c.MaxConcurrency, "max-concurrency", c.MaxConcurrency, "maximum parallel part uploads")
	fs.DurationVar(&c.PartLifetime.Duration, "part-lifetime", c.PartLifetime.Duration, "validity of recorded part tokens")
	fs.StringVar(&c.RecorderDir, "recorder-dir", c.RecorderDir, "directory for resumable upload records; empty disables resumption")
}

// Validate validates the config.
func (c *UploaderConfig) Validate() error {
	if c.BlockSize < BlockSizeGranularity {
		return fmt.Errorf("block size %d below the %d byte granularity", c.BlockSize, BlockSizeGranularity)
	}
	if c.MultipartThreshold <= 0 {
		return fmt.Errorf("multipart threshold must be positive")
	}
	if c.MaxConcurrency == 0 {
		return fmt.Errorf("max concurrency must be at least 1")
	}
	if c.PartLifetime.Duration <= 0 {
		return fmt.Errorf("part lifetime must be positive")
	}
	return nil
}

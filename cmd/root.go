// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package cmd wires the demo/ops command line on top of the SDK.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var version bool

// Version is injected at build time.
var Version = "dev"

// NewQuarkStorUploadCommand represents the base command when called without
// any subcommands.
func NewQuarkStorUploadCommand(ctx context.Context) *cobra.Command {
	var RootCmd = &cobra.Command{
		Use:   "quarkstor-upload",
		Short: "command line utility for uploading objects to QuarkStor",
		Long: `The quarkstor-upload command line utility uploads local files to the
QuarkStor object storage service using the SDK's resilient dispatch and
resumable multipart upload engine. Interrupted transfers resume from the
last confirmed part when re-run with the same source.`,
		Run: func(cmd *cobra.Command, args []string) {
			if version {
				fmt.Printf("quarkstor-upload version %s\n", Version)
			}
		},
	}
	RootCmd.Flags().BoolVarP(&version, "version", "v", false, "print version info")
	RootCmd.AddCommand(NewPutCommand(ctx))
	return RootCmd
}

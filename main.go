// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/quarkstor/quarkstor-go-sdk/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := cmd.NewQuarkStorUploadCommand(ctx)
	if err := command.Execute(); err != nil {
		logrus.Fatalf("upload command failed: %v", err)
	}
}

// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/region"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/types"
)

type putOptions struct {
	Bucket          string
	Key             string
	Token           string
	RegionName      string
	FallbackRegions []string
	Legacy          bool
	LogLevel        uint32
	Logger          *logrus.Logger
	DispatchConfig  *types.DispatchConfig
	UploaderConfig  *types.UploaderConfig
}

// newPutOptions returns a new putOptions object with defaults.
func newPutOptions() *putOptions {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	return &putOptions{
		RegionName:     region.USEast1.Name,
		LogLevel:       4,
		Logger:         logger,
		DispatchConfig: types.NewDispatchConfig(),
		UploaderConfig: types.NewUploaderConfig(),
	}
}

func (o *putOptions) addFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.Bucket, "bucket", o.Bucket, "target bucket")
	fs.StringVar(&o.Key, "key", o.Key, "target object key; defaults to the file name")
	fs.StringVar(&o.Token, "token", o.Token, "upload token; defaults to QUARKSTOR_UPLOAD_TOKEN")
	fs.StringVar(&o.RegionName, "region", o.RegionName, "home region of the bucket")
	fs.StringSliceVar(&o.FallbackRegions, "fallback-regions", o.FallbackRegions, "regions to fail over to, in order")
	fs.BoolVar(&o.Legacy, "legacy-protocol", o.Legacy, "use the v1 block upload protocol")
	fs.Uint32Var(&o.LogLevel, "log-level", o.LogLevel, "verbosity level of logs")
	o.DispatchConfig.AddFlags(fs)
	o.UploaderConfig.AddFlags(fs)
}

func (o *putOptions) complete() {
	o.Logger.SetLevel(logrus.Level(o.LogLevel))
	if o.Token == "" {
		o.Token = os.Getenv("QUARKSTOR_UPLOAD_TOKEN")
	}
}

func (o *putOptions) validate() error {
	if o.Bucket == "" {
		return fmt.Errorf("no bucket specified")
	}
	if o.Token == "" {
		return fmt.Errorf("no upload token specified")
	}
	if err := o.DispatchConfig.Validate(); err != nil {
		return err
	}
	return o.UploaderConfig.Validate()
}

// targets resolves the configured region names into the failover chain.
func (o *putOptions) targets() (region.Targets, error) {
	primary, err := region.Lookup(o.RegionName)
	if err != nil {
		return region.Targets{}, err
	}
	alternates := make([]region.Region, 0, len(o.FallbackRegions))
	for _, name := range o.FallbackRegions {
		alt, err := region.Lookup(name)
		if err != nil {
			return region.Targets{}, err
		}
		alternates = append(alternates, alt)
	}
	return region.NewTargets(primary, alternates...), nil
}

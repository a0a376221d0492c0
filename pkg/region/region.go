// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package region models the QuarkStor storage regions and the per-bucket
// region failover chain. A bucket lives in exactly one home region; any
// further regions in its chain are pure availability fallbacks.
package region

import "fmt"

// Endpoints holds the hosts serving one service role within a region.
// Preferred hosts are tried first, in order; alternates only after every
// preferred host has been ruled out.
type Endpoints struct {
	Preferred  []string `json:"preferred"`
	Alternates []string `json:"alternates,omitempty"`
}

// Hosts returns all hosts in dispatch order, preferred before alternates.
func (e Endpoints) Hosts() []string {
	hosts := make([]string, 0, len(e.Preferred)+len(e.Alternates))
	hosts = append(hosts, e.Preferred...)
	hosts = append(hosts, e.Alternates...)
	return hosts
}

// IsEmpty reports whether the endpoint set contains no hosts at all.
func (e Endpoints) IsEmpty() bool {
	return len(e.Preferred) == 0 && len(e.Alternates) == 0
}

// Region is one independent QuarkStor deployment. Only the upload role is
// dispatched to by this SDK; the struct leaves room for further roles.
type Region struct {
	Name string    `json:"name"`
	Up   Endpoints `json:"up"`
}

// Validate checks that the region can be dispatched to.
func (r Region) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("region has no name")
	}
	if r.Up.IsEmpty() {
		return fmt.Errorf("region %s has no upload endpoints", r.Name)
	}
	return nil
}

// Targets is the ordered region chain for one bucket: home region first,
// then the configured availability fallbacks.
type Targets struct {
	regions []Region
}

// NewTargets builds a region chain from a home region and optional
// alternates.
func NewTargets(primary Region, alternates ...Region) Targets {
	regions := make([]Region, 0, 1+len(alternates))
	regions = append(regions, primary)
	regions = append(regions, alternates...)
	return Targets{regions: regions}
}

// Regions returns the chain in failover order.
func (t Targets) Regions() []Region {
	return t.regions
}

// Len returns the number of regions in the chain.
func (t Targets) Len() int {
	return len(t.regions)
}

// Validate checks every region in the chain.
func (t Targets) Validate() error {
	if len(t.regions) == 0 {
		return fmt.Errorf("no regions configured")
	}
	for _, r := range t.regions {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Built-in regions. The server-side region list can always be injected
// instead; these cover the common deployments.
var (
	// USEast1 is the default North American region.
	USEast1 = Region{
		Name: "us-east-1",
		Up: Endpoints{
			Preferred:  []string{"up.us-east-1.quarkstor.com", "up-2.us-east-1.quarkstor.com"},
			Alternates: []string{"up-fallback.us-east-1.quarkstor.com"},
		},
	}
	// EUCentral1 is the default European region.
	EUCentral1 = Region{
		Name: "eu-central-1",
		Up: Endpoints{
			Preferred:  []string{"up.eu-central-1.quarkstor.com", "up-2.eu-central-1.quarkstor.com"},
			Alternates: []string{"up-fallback.eu-central-1.quarkstor.com"},
		},
	}
	// APSoutheast1 is the default Asia-Pacific region.
	APSoutheast1 = Region{
		Name: "ap-southeast-1",
		Up: Endpoints{
			Preferred:  []string{"up.ap-southeast-1.quarkstor.com", "up-2.ap-southeast-1.quarkstor.com"},
			Alternates: []string{"up-fallback.ap-southeast-1.quarkstor.com"},
		},
	}
)

// Lookup returns a built-in region by name.
func Lookup(name string) (Region, error) {
	for _, r := range []Region{USEast1, EUCentral1, APSoutheast1} {
		if r.Name == name {
			return r, nil
		}
	}
	return Region{}, fmt.Errorf("unknown region: %s", name)
}

// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package wrappers

import (
	"encoding/json"
	"time"
)

// Duration is a wrapper around time.Duration which marshals to and from
// JSON as a human readable duration string ("10m", "168h").
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements the json.Unmarshaller interface.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}

	pd, err := time.ParseDuration(str)
	if err != nil {
		return err
	}
	d.Duration = pd
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (d *Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

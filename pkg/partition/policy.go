// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package partition

// Policy selects between the two upload shapes.
type Policy int

const (
	// SingleShot uploads the whole source in one request.
	SingleShot Policy = iota
	// Multipart uploads the source part by part with a finalize step.
	Multipart
)

// String returns the policy name for logs.
func (p Policy) String() string {
	if p == SingleShot {
		return "single-shot"
	}
	return "multipart"
}

// Decide picks the upload shape. Sources above the threshold always go
// multipart, seekable or not; an unseekable source is then read strictly
// once, part by part, in order. At or below the threshold a single request
// is cheaper, and feasible even for an unseekable source since it takes
// exactly one sequential read.
func Decide(totalSize int64, seekable bool, threshold int64) Policy {
	if totalSize > threshold {
		return Multipart
	}
	return SingleShot
}

// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package partition splits an upload source into the fixed-size parts the
// multipart protocol transfers independently, and decides whether multipart
// is needed at all.
package partition

import (
	"fmt"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/types"
)

// Partition is one contiguous byte range of the source.
type Partition struct {
	Index  int
	Offset int64
	Size   int64
}

// AlignBlockSize rounds a suggested block size down to the protocol
// granularity, never up, and never below one granule.
func AlignBlockSize(suggested int64) int64 {
	if suggested < types.BlockSizeGranularity {
		return types.BlockSizeGranularity
	}
	return suggested - suggested%types.BlockSizeGranularity
}

// Plan tiles [0, totalSize) with blockSize-sized partitions in ascending
// order; the final partition carries the remainder. A zero-size source
// yields a single empty partition, since the service accepts empty objects.
func Plan(totalSize, blockSize int64) ([]Partition, error) {
	if totalSize < 0 {
		return nil, fmt.Errorf("negative source size %d", totalSize)
	}
	if blockSize < types.BlockSizeGranularity || blockSize%types.BlockSizeGranularity != 0 {
		return nil, fmt.Errorf("block size %d is not a positive multiple of %d", blockSize, int64(types.BlockSizeGranularity))
	}
	if totalSize == 0 {
		return []Partition{{Index: 0, Offset: 0, Size: 0}}, nil
	}

	count := totalSize / blockSize
	if totalSize%blockSize != 0 {
		count++
	}
	partitions := make([]Partition, 0, count)
	for offset := int64(0); offset < totalSize; offset += blockSize {
		size := blockSize
		if remaining := totalSize - offset; remaining < size {
			size = remaining
		}
		partitions = append(partitions, Partition{
			Index:  len(partitions),
			Offset: offset,
			Size:   size,
		})
	}
	return partitions, nil
}

// bamdex: a high-performance tool for indexing and querying BAM files.
// Copyright (c) 2021-2023 the bamdex authors.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License along with this program. If not, see
// <https://github.com/exaseq/bamdex/blob/master/LICENSE.txt>.

package bai

import (
	"log"
	"sort"

	"github.com/exaseq/bamdex/utils/bgzf"
)

// A Bin holds the merged chunks of the compressed file that contain
// the records assigned to one bin of the binning scheme.
type Bin struct {
	Num    uint32
	Chunks []bgzf.Chunk
}

// IndexStats holds the statistics of one reference: the virtual file
// region spanning its records, and its mapped and unmapped record
// counts.
type IndexStats struct {
	Chunk    bgzf.Chunk
	Mapped   uint64
	Unmapped uint64
}

// A RefIndex is the finalized index of a single reference sequence.
// Bins are unique and sorted ascending by bin number. Intervals is
// the gap-filled linear interval table, trimmed to the last window
// any record extent reached. Stats is nil for a reference that had no
// records ("placeholder").
type RefIndex struct {
	Bins      []Bin
	Stats     *IndexStats
	Intervals []bgzf.Offset
}

// An Index is a complete BAI index of one BAM file: one RefIndex per
// reference sequence declared in the file header, in reference id
// order, and the count of records not assigned to any reference.
type Index struct {
	Refs     []RefIndex
	Unplaced uint64
}

type byBinNumber []Bin

func (b byBinNumber) Len() int           { return len(b) }
func (b byBinNumber) Less(i, j int) bool { return b[i].Num < b[j].Num }
func (b byBinNumber) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }

type byBeginOffset []bgzf.Chunk

func (c byBeginOffset) Len() int { return len(c) }
func (c byBeginOffset) Less(i, j int) bool {
	return bgzf.VOffset(c[i].Begin) < bgzf.VOffset(c[j].Begin)
}
func (c byBeginOffset) Swap(i, j int) { c[i], c[j] = c[j], c[i] }

// adjacent merges overlapping and contiguous chunks in a sorted chunk
// list.
func adjacent(chunks []bgzf.Chunk) []bgzf.Chunk {
	for c := 1; c < len(chunks); c++ {
		leftEnd := bgzf.VOffset(chunks[c-1].End)
		if leftEnd >= bgzf.VOffset(chunks[c].Begin) {
			chunks[c].Begin = chunks[c-1].Begin
			if leftEnd > bgzf.VOffset(chunks[c].End) {
				chunks[c].End = chunks[c-1].End
			}
			chunks = append(chunks[:c-1], chunks[c:]...)
			c--
		}
	}
	return chunks
}

// Chunks returns the virtual file regions that can contain records
// overlapping the zero-based, half-open interval [beg, end) of the
// given reference, sorted by begin offset with overlapping and
// contiguous regions merged. The reference id must be valid for the
// index, with panics in place of errors.
func (idx *Index) Chunks(refID, beg, end int32) []bgzf.Chunk {
	if refID < 0 || int(refID) >= len(idx.Refs) {
		log.Panicf("unknown reference id %v in a Chunks query", refID)
	}
	ref := &idx.Refs[refID]
	if beg < 0 {
		beg = 0
	}
	if end <= beg {
		return nil
	}

	// The linear interval table gives a lower bound on the begin
	// offset of any record overlapping the window that contains beg.
	// Windows past the end of the table were never reached by any
	// record extent.
	window := int(beg / WindowSize)
	if window >= len(ref.Intervals) {
		return nil
	}
	lowerBound := bgzf.VOffset(ref.Intervals[window])

	var chunks []bgzf.Chunk
	for _, num := range reg2bins(beg, end) {
		b := sort.Search(len(ref.Bins), func(i int) bool { return ref.Bins[i].Num >= num })
		if b == len(ref.Bins) || ref.Bins[b].Num != num {
			continue
		}
		for _, chunk := range ref.Bins[b].Chunks {
			if bgzf.VOffset(chunk.End) > lowerBound {
				chunks = append(chunks, chunk)
			}
		}
	}

	sort.Sort(byBeginOffset(chunks))
	return adjacent(chunks)
}

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

	"github.com/willf/bitset"

	"github.com/exaseq/bamdex/sam"
	"github.com/exaseq/bamdex/utils/bgzf"
)

// noRef is the reference id of records not assigned to any reference
// sequence, and noPos the position of records without a placement.
const (
	noRef = -1
	noPos = -1
)

// An Indexer builds a BAI index from the alignment records of a
// coordinate-sorted BAM file in a single sequential pass. Records are
// fed to Add in file order together with the virtual file region they
// were read from; Finish produces the Index.
type Indexer struct {
	references []sam.BAMReference
	finalized  map[int32]RefIndex
	seen       *bitset.BitSet
	unplaced   uint64
	finished   bool

	// Running state of the reference currently being scanned.
	cur          int32
	prevRef      int32
	prevPos      int32
	trailing     bool
	span         bgzf.Chunk
	mapped       uint64
	unmapped     uint64
	bins         map[uint32]*Bin
	intervals    []bgzf.Offset
	lastInterval int32
}

// NewIndexer returns an Indexer for a BAM file with the given
// sequence dictionary.
func NewIndexer(references []sam.BAMReference) *Indexer {
	return &Indexer{
		references: references,
		finalized:  make(map[int32]RefIndex),
		seen:       bitset.New(uint(len(references))),
		cur:        noRef,
		prevRef:    noRef,
	}
}

// openRef starts the scan of a new reference at the given begin
// offset.
func (idx *Indexer) openRef(refID int32, begin bgzf.Offset) {
	if int(refID) >= len(idx.references) {
		log.Panicf("unknown reference id %v in a BAM alignment record", refID)
	}
	idx.cur = refID
	idx.prevPos = 0
	idx.span = bgzf.Chunk{Begin: begin, End: begin}
	idx.mapped = 0
	idx.unmapped = 0
	idx.bins = make(map[uint32]*Bin)
	windows := (idx.references[refID].Length + WindowSize - 1) / WindowSize
	if int32(cap(idx.intervals)) >= windows {
		idx.intervals = idx.intervals[:windows]
		for i := range idx.intervals {
			idx.intervals[i] = bgzf.Offset{}
		}
	} else {
		idx.intervals = make([]bgzf.Offset, windows)
	}
	idx.lastInterval = -1
}

// finalizeRef freezes the accumulated state of the current reference
// into its RefIndex.
func (idx *Indexer) finalizeRef() {
	var bins []Bin
	for _, bin := range idx.bins {
		bins = append(bins, *bin)
	}
	sort.Sort(byBinNumber(bins))

	// Trim the interval table to the last window any record extent
	// reached, then fill the gaps so that every window holds a lower
	// bound even when no record starts in it.
	var intervals []bgzf.Offset
	if idx.lastInterval >= 0 {
		intervals = make([]bgzf.Offset, idx.lastInterval+1)
		copy(intervals, idx.intervals)
		for i := 1; i < len(intervals); i++ {
			if intervals[i].IsZero() {
				intervals[i] = intervals[i-1]
			}
		}
	}

	idx.finalized[idx.cur] = RefIndex{
		Bins: bins,
		Stats: &IndexStats{
			Chunk:    idx.span,
			Mapped:   idx.mapped,
			Unmapped: idx.unmapped,
		},
		Intervals: intervals,
	}
	idx.seen.Set(uint(idx.cur))
	idx.cur = noRef
	idx.bins = nil
}

// Add feeds the next alignment record of the file to the indexer.
// chunk is the virtual file region the record was read from. Records
// must arrive in coordinate sort order; a record whose position
// decreases within a reference, or that names a reference after
// unassigned records have started, aborts with a panic, and no index
// can be produced anymore.
func (idx *Indexer) Add(rec *sam.Record, chunk bgzf.Chunk) {
	refID := rec.RefID()

	if refID == noRef {
		// Unassigned records are required to trail all others, so the
		// reference being scanned ends here.
		if idx.cur != noRef {
			idx.finalizeRef()
		}
		idx.trailing = true
		idx.unplaced++
		return
	}
	if idx.trailing {
		log.Panicf("records not sorted: reference id %v appears after unassigned records", refID)
	}

	if refID != idx.cur {
		if idx.cur != noRef {
			idx.finalizeRef()
		}
		idx.openRef(refID, chunk.Begin)
	}

	pos := rec.Pos()
	if refID == idx.prevRef && pos != noPos && pos < idx.prevPos {
		log.Panicf("records not sorted: position %v follows position %v on reference id %v", pos, idx.prevPos, refID)
	}
	idx.prevRef = refID
	if pos != noPos {
		idx.prevPos = pos
	}

	unmapped := rec.IsUnmapped()
	if unmapped {
		idx.unmapped++
	} else {
		idx.mapped++
	}
	idx.span.End = chunk.End

	if pos == noPos {
		// Contributes to the counts only.
		return
	}

	var length int32
	if !unmapped {
		length = rec.RefLength()
	}

	num := uint32(rec.Bin())
	if num == 0 {
		// A stored bin of 0 cannot be distinguished from an absent
		// one and is resolved from the record coordinates.
		num = BinFor(pos, pos+length)
	}
	if bin := idx.bins[num]; bin == nil {
		idx.bins[num] = &Bin{Num: num, Chunks: []bgzf.Chunk{chunk}}
	} else {
		last := &bin.Chunks[len(bin.Chunks)-1]
		if chunk.Begin.File-last.End.File < mergeDistance {
			last.End = chunk.End
		} else {
			bin.Chunks = append(bin.Chunks, chunk)
		}
	}

	startWindow := pos / WindowSize
	endWindow := startWindow
	if length > 0 {
		endWindow = (pos + length - 1) / WindowSize
	}
	if int(endWindow) >= len(idx.intervals) {
		// The record extends past the declared reference length.
		grown := make([]bgzf.Offset, endWindow+1)
		copy(grown, idx.intervals)
		idx.intervals = grown
	}
	for w := startWindow; w <= endWindow; w++ {
		if cell := &idx.intervals[w]; cell.IsZero() || bgzf.VOffset(chunk.Begin) < bgzf.VOffset(*cell) {
			*cell = chunk.Begin
		}
	}
	if endWindow > idx.lastInterval {
		idx.lastInterval = endWindow
	}
}

// Finish finalizes the reference being scanned and returns the
// completed index: the finalized entries are materialized into their
// reference id slots, and the references that had no records are left
// as placeholder entries. The indexer cannot be used afterwards.
func (idx *Indexer) Finish() *Index {
	if idx.finished {
		log.Panic("Finish called twice on an Indexer")
	}
	idx.finished = true
	if idx.cur != noRef {
		idx.finalizeRef()
	}
	refs := make([]RefIndex, len(idx.references))
	for i, ok := idx.seen.NextSet(0); ok && i < uint(len(refs)); i, ok = idx.seen.NextSet(i + 1) {
		refs[i] = idx.finalized[int32(i)]
	}
	return &Index{Refs: refs, Unplaced: idx.unplaced}
}

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
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/exaseq/bamdex/sam"
	"github.com/exaseq/bamdex/utils/bgzf"
)

func TestBinFor(t *testing.T) {
	if BinFor(0, 1) != 4681 {
		t.Error("BinFor on the first window failed")
	}
	if BinFor(0x4000, 0x8000) != 4682 {
		t.Error("BinFor on the second window failed")
	}
	if BinFor(0, 0x8000) != 585 {
		t.Error("BinFor on a window-crossing interval failed")
	}
	if BinFor(0, 1<<26) != 1 {
		t.Error("BinFor on a large interval failed")
	}
	if BinFor(0, 1<<29) != 0 {
		t.Error("BinFor on a top-level interval failed")
	}
	if BinFor(100, 100) != BinFor(100, 101) {
		t.Error("BinFor on an empty interval failed")
	}
}

func TestReg2Bins(t *testing.T) {
	bins := reg2bins(0, 1)
	expected := []uint32{0, 1, 9, 73, 585, 4681}
	if len(bins) != len(expected) {
		t.Fatal("reg2bins bin count failed")
	}
	for i, b := range bins {
		if b != expected[i] {
			t.Error("reg2bins failed")
		}
	}
	bins = reg2bins(0x4000, 0x8000)
	found := false
	for _, b := range bins {
		if b == 4682 {
			found = true
		}
	}
	if !found {
		t.Error("reg2bins missed a fine-level bin")
	}
}

// record encodes a minimal BAM alignment record with the given fixed
// fields and a single CIGAR match operation of the given reference
// length.
func record(refID, pos int32, flag uint16, bin uint32, refLength int32) *sam.Record {
	const name = "r"
	data := make([]byte, 32, 32+len(name)+1+4)
	binary.LittleEndian.PutUint32(data[0:], uint32(refID))
	binary.LittleEndian.PutUint32(data[4:], uint32(pos))
	data[8] = byte(len(name) + 1)
	data[9] = 0
	binary.LittleEndian.PutUint16(data[10:], uint16(bin))
	binary.LittleEndian.PutUint16(data[14:], flag)
	binary.LittleEndian.PutUint32(data[20:], ^uint32(0))
	binary.LittleEndian.PutUint32(data[24:], ^uint32(0))
	data = append(data, name...)
	data = append(data, 0)
	if refLength > 0 {
		binary.LittleEndian.PutUint16(data[12:], 1)
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(refLength)<<4)
		data = append(data, buf[:]...)
	}
	return sam.NewRecord(data)
}

func chunk(begin, end int64) bgzf.Chunk {
	return bgzf.Chunk{Begin: bgzf.MakeOffset(uint64(begin)), End: bgzf.MakeOffset(uint64(end))}
}

func references(lengths ...int32) []sam.BAMReference {
	refs := make([]sam.BAMReference, len(lengths))
	for i, length := range lengths {
		refs[i] = sam.BAMReference{Name: "ref", Length: length}
	}
	return refs
}

func TestPlaceholders(t *testing.T) {
	indexer := NewIndexer(references(1000, 1000, 1000))
	indexer.Add(record(1, 10, 0, 0, 100), chunk(0, 100<<16))
	idx := indexer.Finish()
	if len(idx.Refs) != 3 {
		t.Fatal("reference entry count failed")
	}
	for _, id := range []int{0, 2} {
		if !reflect.DeepEqual(idx.Refs[id], RefIndex{}) {
			t.Error("placeholder reference entry failed")
		}
	}
	if idx.Refs[1].Stats == nil || idx.Refs[1].Stats.Mapped != 1 {
		t.Error("indexed reference entry failed")
	}
	if len(idx.Refs[1].Bins) != 1 || len(idx.Refs[1].Intervals) == 0 {
		t.Error("materializing the finalized reference entry failed")
	}
}

func TestCounts(t *testing.T) {
	indexer := NewIndexer(references(100000))
	indexer.Add(record(0, 10, 0, 0, 100), chunk(0, 1<<16))
	indexer.Add(record(0, 20, sam.Unmapped, 0, 0), chunk(1<<16, 2<<16))
	indexer.Add(record(0, 30, 0, 0, 100), chunk(2<<16, 3<<16))
	// an unmapped record without a placement still counts
	indexer.Add(record(0, -1, sam.Unmapped, 0, 0), chunk(3<<16, 4<<16))
	idx := indexer.Finish()
	stats := idx.Refs[0].Stats
	if stats == nil || stats.Mapped != 2 || stats.Unmapped != 2 {
		t.Error("mapped/unmapped bookkeeping failed")
	}
	if stats.Chunk != chunk(0, 4<<16) {
		t.Error("reference span bookkeeping failed")
	}
}

func TestUnplacedRecordHasNoBin(t *testing.T) {
	indexer := NewIndexer(references(100000))
	indexer.Add(record(0, 10, 0, 0, 100), chunk(0, 1<<16))
	indexer.Add(record(0, -1, sam.Unmapped, 0, 0), chunk(1<<16, 2<<16))
	idx := indexer.Finish()
	ref := idx.Refs[0]
	if len(ref.Bins) != 1 || len(ref.Bins[0].Chunks) != 1 {
		t.Error("record without a placement contributed to a bin")
	}
	if ref.Bins[0].Chunks[0] != chunk(0, 1<<16) {
		t.Error("bin chunk accumulation failed")
	}
}

func TestStoredBinRecompute(t *testing.T) {
	indexer := NewIndexer(references(100000))
	// stored bin 4681, taken as is
	indexer.Add(record(0, 10, 0, 4681, 100), chunk(0, 1<<16))
	// stored bin 0, recomputed from the coordinates
	indexer.Add(record(0, 0x4000, 0, 0, 100), chunk(1<<16, 2<<16))
	idx := indexer.Finish()
	ref := idx.Refs[0]
	if len(ref.Bins) != 2 || ref.Bins[0].Num != 4681 || ref.Bins[1].Num != 4682 {
		t.Error("bin resolution failed")
	}
}

func TestChunkMerge(t *testing.T) {
	indexer := NewIndexer(references(100000))
	// same bin, compressed block starts within the merge distance
	indexer.Add(record(0, 10, 0, 0, 100), chunk(0, 0x1000<<16))
	indexer.Add(record(0, 20, 0, 0, 100), chunk(0x2000<<16, 0x3000<<16))
	// same bin, past the merge distance
	indexer.Add(record(0, 30, 0, 0, 100), chunk(0x20000<<16, 0x21000<<16))
	idx := indexer.Finish()
	bins := idx.Refs[0].Bins
	if len(bins) != 1 {
		t.Fatal("bin accumulation failed")
	}
	chunks := bins[0].Chunks
	if len(chunks) != 2 {
		t.Fatal("chunk merge heuristic failed")
	}
	if chunks[0] != chunk(0, 0x3000<<16) {
		t.Error("chunk merge extension failed")
	}
	if chunks[1] != chunk(0x20000<<16, 0x21000<<16) {
		t.Error("distant chunk separation failed")
	}
}

func TestIntervalGapFill(t *testing.T) {
	indexer := NewIndexer(references(1000000))
	// windows 0 and 5; windows 1 to 4 inherit the lower bound of 0
	indexer.Add(record(0, 10, 0, 0, 100), chunk(0x100, 0x1000<<16))
	indexer.Add(record(0, 5*WindowSize+10, 0, 0, 100), chunk(0x2000<<16, 0x3000<<16))
	idx := indexer.Finish()
	intervals := idx.Refs[0].Intervals
	if len(intervals) != 6 {
		t.Fatal("interval table trim failed")
	}
	for w := 0; w <= 4; w++ {
		if bgzf.VOffset(intervals[w]) != 0x100 {
			t.Error("interval gap fill failed")
		}
	}
	if bgzf.VOffset(intervals[5]) != 0x2000<<16 {
		t.Error("interval lower bound failed")
	}
}

func TestIntervalSpan(t *testing.T) {
	indexer := NewIndexer(references(1000000))
	// a record spanning windows 2 to 4 touches all three cells
	indexer.Add(record(0, 2*WindowSize, 0, 0, 2*WindowSize+5), chunk(0x700, 0x1000<<16))
	idx := indexer.Finish()
	intervals := idx.Refs[0].Intervals
	if len(intervals) != 5 {
		t.Fatal("interval table trim failed")
	}
	for w := 2; w <= 4; w++ {
		if bgzf.VOffset(intervals[w]) != 0x700 {
			t.Error("interval span update failed")
		}
	}
}

func TestTrailingUnassigned(t *testing.T) {
	indexer := NewIndexer(references(100000, 100000))
	indexer.Add(record(0, 10, 0, 0, 100), chunk(0, 1<<16))
	indexer.Add(record(-1, -1, sam.Unmapped, 0, 0), chunk(1<<16, 2<<16))
	indexer.Add(record(-1, -1, sam.Unmapped, 0, 0), chunk(2<<16, 3<<16))
	indexer.Add(record(-1, -1, sam.Unmapped, 0, 0), chunk(3<<16, 4<<16))
	idx := indexer.Finish()
	if idx.Unplaced != 3 {
		t.Error("unassigned record count failed")
	}
	if len(idx.Refs) != 2 {
		t.Error("reference entry count failed")
	}
	if idx.Refs[0].Stats == nil || idx.Refs[0].Stats.Mapped != 1 {
		t.Error("finalization before trailing unassigned records failed")
	}
	if idx.Refs[1].Stats != nil {
		t.Error("unassigned records created a reference entry")
	}
}

func expectPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%v did not fail", name)
		}
	}()
	f()
}

func TestSortOrderViolation(t *testing.T) {
	indexer := NewIndexer(references(100000, 100000, 100000))
	indexer.Add(record(2, 500, 0, 0, 100), chunk(0, 1<<16))
	expectPanic(t, "decreasing position", func() {
		indexer.Add(record(2, 400, 0, 0, 100), chunk(1<<16, 2<<16))
	})
}

func TestReferenceAfterUnassigned(t *testing.T) {
	indexer := NewIndexer(references(100000, 100000))
	indexer.Add(record(0, 10, 0, 0, 100), chunk(0, 1<<16))
	indexer.Add(record(-1, -1, sam.Unmapped, 0, 0), chunk(1<<16, 2<<16))
	expectPanic(t, "reference after unassigned records", func() {
		indexer.Add(record(1, 10, 0, 0, 100), chunk(2<<16, 3<<16))
	})
}

func TestUnknownReference(t *testing.T) {
	indexer := NewIndexer(references(100000))
	expectPanic(t, "unknown reference id", func() {
		indexer.Add(record(7, 10, 0, 0, 100), chunk(0, 1<<16))
	})
}

func TestTenReferences(t *testing.T) {
	lengths := make([]int32, 10)
	for i := range lengths {
		lengths[i] = 1000
	}
	indexer := NewIndexer(references(lengths...))
	at := int64(0)
	for refID := int32(0); refID < 10; refID++ {
		for pos := int32(0); pos < 1000; pos += 100 {
			indexer.Add(record(refID, pos, 0, 0, 50), chunk(at<<16, (at+1)<<16))
			at++
		}
	}
	idx := indexer.Finish()
	if len(idx.Refs) != 10 {
		t.Fatal("reference entry count failed")
	}
	for _, ref := range idx.Refs {
		if ref.Stats == nil || ref.Stats.Mapped != 10 || ref.Stats.Unmapped != 0 {
			t.Error("per-reference bookkeeping failed")
		}
		if len(ref.Intervals) != 1 {
			t.Error("interval table sizing failed")
		}
	}
}

func TestChunksQuery(t *testing.T) {
	indexer := NewIndexer(references(1000000))
	indexer.Add(record(0, 100, 0, 0, 100), chunk(1<<16, 2<<16))
	indexer.Add(record(0, 200000, 0, 0, 100), chunk(0x30000<<16, 0x30001<<16))
	idx := indexer.Finish()

	chunks := idx.Chunks(0, 50, 300)
	if len(chunks) != 1 || chunks[0] != chunk(1<<16, 2<<16) {
		t.Error("Chunks query at the start of a reference failed")
	}
	// the linear index excludes the early chunk for a late query
	chunks = idx.Chunks(0, 200000, 200100)
	if len(chunks) != 1 || chunks[0] != chunk(0x30000<<16, 0x30001<<16) {
		t.Error("Chunks query with a linear index lower bound failed")
	}
	// a query past the last touched window has no candidates
	if idx.Chunks(0, 900000, 900100) != nil {
		t.Error("Chunks query past the indexed data failed")
	}
	expectPanic(t, "Chunks query with an unknown reference id", func() {
		idx.Chunks(3, 0, 100)
	})
}

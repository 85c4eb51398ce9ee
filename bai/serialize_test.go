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
	"bytes"
	"path/filepath"
	"reflect"
	"testing"

	biogobam "github.com/biogo/hts/bam"

	"github.com/exaseq/bamdex/sam"
)

func testIndex() *Index {
	indexer := NewIndexer(references(1000000, 1000000, 500000))
	indexer.Add(record(0, 100, 0, 0, 100), chunk(1<<16, 2<<16))
	indexer.Add(record(0, 200, sam.Unmapped, 0, 0), chunk(2<<16, 3<<16))
	indexer.Add(record(0, 200000, 0, 0, 100), chunk(0x30000<<16, 0x30001<<16))
	indexer.Add(record(2, 50, 0, 0, 100), chunk(0x31000<<16, 0x31001<<16))
	indexer.Add(record(-1, -1, sam.Unmapped, 0, 0), chunk(0x31001<<16, 0x31002<<16))
	indexer.Add(record(-1, -1, sam.Unmapped, 0, 0), chunk(0x31002<<16, 0x31003<<16))
	return indexer.Finish()
}

func TestRoundTrip(t *testing.T) {
	idx := testIndex()
	var buf bytes.Buffer
	WriteIndex(&buf, idx)
	idx2 := ReadIndex(&buf)
	if !reflect.DeepEqual(idx, idx2) {
		t.Error("index write/read round trip failed")
	}
}

func TestIndexFile(t *testing.T) {
	idx := testIndex()
	name := filepath.Join(t.TempDir(), "test.bam.bai")
	WriteIndexFile(name, idx)
	idx2 := ReadIndexFile(name)
	if !reflect.DeepEqual(idx, idx2) {
		t.Error("index file write/read round trip failed")
	}
}

// TestCrossValidation checks the .bai files we write against an
// independent BAI implementation.
func TestCrossValidation(t *testing.T) {
	idx := testIndex()
	var buf bytes.Buffer
	WriteIndex(&buf, idx)

	other, err := biogobam.ReadIndex(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if other.NumRefs() != 3 {
		t.Error("cross validation of the reference count failed")
	}
	if n, ok := other.Unmapped(); !ok || n != 2 {
		t.Error("cross validation of the unassigned record count failed")
	}
	for id, expected := range []struct {
		ok               bool
		mapped, unmapped uint64
	}{
		{true, 2, 1},
		{false, 0, 0},
		{true, 1, 0},
	} {
		stats, ok := other.ReferenceStats(id)
		if ok != expected.ok {
			t.Fatal("cross validation of the reference stats presence failed")
		}
		if !ok {
			continue
		}
		if stats.Mapped != expected.mapped || stats.Unmapped != expected.unmapped {
			t.Error("cross validation of the reference stats counts failed")
		}
		ours := idx.Refs[id].Stats
		if stats.Chunk.Begin.File != ours.Chunk.Begin.File || stats.Chunk.Begin.Block != ours.Chunk.Begin.Block ||
			stats.Chunk.End.File != ours.Chunk.End.File || stats.Chunk.End.Block != ours.Chunk.End.Block {
			t.Error("cross validation of the reference span failed")
		}
	}
}

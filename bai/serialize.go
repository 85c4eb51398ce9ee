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
	"bufio"
	"io"
	"log"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/exaseq/bamdex/internal"
	"github.com/exaseq/bamdex/utils/bgzf"
)

// baiMagic is the magic string for the BAI format. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 5.2.
const baiMagic = "BAI\x01"

func writeChunk(w io.Writer, chunk bgzf.Chunk) {
	internal.BinaryWrite(w, uint64(bgzf.VOffset(chunk.Begin)))
	internal.BinaryWrite(w, uint64(bgzf.VOffset(chunk.End)))
}

func writeRefIndex(w io.Writer, ref *RefIndex) {
	nBin := int32(len(ref.Bins))
	if ref.Stats != nil {
		nBin++
	}
	internal.BinaryWrite(w, nBin)
	for _, bin := range ref.Bins {
		internal.BinaryWrite(w, bin.Num)
		internal.BinaryWrite(w, int32(len(bin.Chunks)))
		for _, chunk := range bin.Chunks {
			writeChunk(w, chunk)
		}
	}
	if ref.Stats != nil {
		internal.BinaryWrite(w, [2]uint32{statsDummyBin, 2})
		writeChunk(w, ref.Stats.Chunk)
		internal.BinaryWrite(w, ref.Stats.Mapped)
		internal.BinaryWrite(w, ref.Stats.Unmapped)
	}
	internal.BinaryWrite(w, int32(len(ref.Intervals)))
	for _, offset := range ref.Intervals {
		internal.BinaryWrite(w, uint64(bgzf.VOffset(offset)))
	}
}

// WriteIndex writes the index to the given io.Writer in the .bai file
// format, with panics in place of errors.
func WriteIndex(w io.Writer, idx *Index) {
	internal.Write(w, []byte(baiMagic))
	internal.BinaryWrite(w, int32(len(idx.Refs)))
	for i := range idx.Refs {
		writeRefIndex(w, &idx.Refs[i])
	}
	internal.BinaryWrite(w, idx.Unplaced)
}

func readChunk(r io.Reader) (chunk bgzf.Chunk) {
	var vOff uint64
	internal.BinaryRead(r, &vOff)
	chunk.Begin = bgzf.MakeOffset(vOff)
	internal.BinaryRead(r, &vOff)
	chunk.End = bgzf.MakeOffset(vOff)
	return chunk
}

func readRefIndex(r io.Reader, ref *RefIndex) {
	var nBin int32
	internal.BinaryRead(r, &nBin)
	for i := int32(0); i < nBin; i++ {
		var num uint32
		var nChunk int32
		internal.BinaryRead(r, &num)
		internal.BinaryRead(r, &nChunk)
		if num == statsDummyBin {
			if nChunk != 2 {
				log.Panic("malformed stats bin in a BAI file")
			}
			stats := new(IndexStats)
			stats.Chunk = readChunk(r)
			internal.BinaryRead(r, &stats.Mapped)
			internal.BinaryRead(r, &stats.Unmapped)
			ref.Stats = stats
			continue
		}
		bin := Bin{Num: num}
		if nChunk > 0 {
			bin.Chunks = make([]bgzf.Chunk, nChunk)
			for c := range bin.Chunks {
				bin.Chunks[c] = readChunk(r)
			}
		}
		ref.Bins = append(ref.Bins, bin)
	}
	var nIntv int32
	internal.BinaryRead(r, &nIntv)
	if nIntv > 0 {
		ref.Intervals = make([]bgzf.Offset, nIntv)
		for i := range ref.Intervals {
			var vOff uint64
			internal.BinaryRead(r, &vOff)
			ref.Intervals[i] = bgzf.MakeOffset(vOff)
		}
	}
}

// ReadIndex reads a BAI index from the given io.Reader, with panics
// in place of errors. A missing trailing unassigned-record count is
// treated as zero.
func ReadIndex(r io.Reader) *Index {
	magic := make([]byte, 4)
	internal.ReadFull(r, magic)
	if string(magic) != baiMagic {
		log.Panic("invalid BAI file header")
	}
	var nRef int32
	internal.BinaryRead(r, &nRef)
	idx := &Index{Refs: make([]RefIndex, nRef)}
	for i := range idx.Refs {
		readRefIndex(r, &idx.Refs[i])
	}
	var unplaced uint64
	if err := binaryReadMaybe(r, &unplaced); err == nil {
		idx.Unplaced = unplaced
	} else if err != io.EOF {
		log.Panic(err)
	}
	return idx
}

func binaryReadMaybe(r io.Reader, data *uint64) error {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return io.EOF
		}
		return err
	}
	*data = uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
		uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48 | uint64(buf[7])<<56
	return nil
}

// WriteIndexFile writes the index to the given .bai file, with panics
// in place of errors. The index is first written to a temporary file
// in the destination directory which is then renamed, so an aborted
// run cannot leave a truncated index behind.
func WriteIndexFile(name string, idx *Index) {
	tmp := filepath.Join(filepath.Dir(name), uuid.New().String()+".bai")
	file := internal.FileCreate(tmp)
	defer func() {
		if file != nil {
			internal.Close(file)
		}
	}()
	buf := bufio.NewWriter(file)
	WriteIndex(buf, idx)
	if err := buf.Flush(); err != nil {
		log.Panic(err)
	}
	internal.Close(file)
	file = nil
	internal.Rename(tmp, name)
}

// ReadIndexFile reads a BAI index from the given .bai file, with
// panics in place of errors.
func ReadIndexFile(name string) *Index {
	file := internal.FileOpen(name)
	defer internal.Close(file)
	return ReadIndex(bufio.NewReader(file))
}

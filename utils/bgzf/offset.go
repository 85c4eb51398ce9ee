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

package bgzf

// An Offset is a virtual offset into a BGZF file: the position of the
// start of a compressed block in the underlying file, plus the position
// within the uncompressed contents of that block. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.1.1.
type Offset struct {
	File  int64
	Block uint16
}

// VOffset packs an Offset into the 64-bit representation used in BAM
// index files. Packed virtual offsets order the same way as the file
// positions they refer to.
func VOffset(o Offset) int64 {
	return o.File<<16 | int64(o.Block)
}

// MakeOffset unpacks the 64-bit representation of a virtual offset.
func MakeOffset(voffset uint64) Offset {
	return Offset{
		File:  int64(voffset >> 16),
		Block: uint16(voffset),
	}
}

// IsZero tells whether o is the zero offset. The zero offset doubles as
// the "unset" sentinel in linear index intervals, since no alignment
// record can start at the very beginning of a BAM file.
func (o Offset) IsZero() bool {
	return o == Offset{}
}

// A Chunk is a contiguous range of the file between two virtual
// offsets, Begin inclusive and End exclusive.
type Chunk struct {
	Begin, End Offset
}

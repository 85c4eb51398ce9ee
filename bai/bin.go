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

// WindowSize is the number of reference bases covered by one cell of
// the linear interval table.
const WindowSize = 0x4000

// mergeDistance is the number of compressed bytes below which two
// chunks of the same bin are merged into one during index
// construction. Merging nearby chunks trades a small amount of
// over-fetching for fewer seeks at query time.
const mergeDistance = 1 << 15

// statsDummyBin is the reserved bin number under which per-reference
// statistics are stored in a .bai file.
const statsDummyBin = 0x924a

// BinFor returns the number of the smallest bin of the hierarchical
// binning scheme that fully contains the zero-based, half-open
// interval [beg, end). An empty interval is treated as the single
// base at beg. See http://samtools.github.io/hts-specs/SAMv1.pdf -
// Section 5.3.
func BinFor(beg, end int32) uint32 {
	if end <= beg {
		end = beg + 1
	}
	end--
	if beg>>14 == end>>14 {
		return uint32(((1<<15)-1)/7 + (beg >> 14))
	}
	if beg>>17 == end>>17 {
		return uint32(((1<<12)-1)/7 + (beg >> 17))
	}
	if beg>>20 == end>>20 {
		return uint32(((1<<9)-1)/7 + (beg >> 20))
	}
	if beg>>23 == end>>23 {
		return uint32(((1<<6)-1)/7 + (beg >> 23))
	}
	if beg>>26 == end>>26 {
		return uint32(((1<<3)-1)/7 + (beg >> 26))
	}
	return 0
}

// reg2bins returns the numbers of all bins that can overlap the
// zero-based, half-open interval [beg, end), from the coarsest to the
// finest level of the binning scheme.
func reg2bins(beg, end int32) []uint32 {
	if end <= beg {
		end = beg + 1
	}
	end--
	bins := []uint32{0}
	for _, level := range [...]struct {
		offset uint32
		shift  uint
	}{
		{1, 26},
		{9, 23},
		{73, 20},
		{585, 17},
		{4681, 14},
	} {
		for k := level.offset + uint32(beg>>level.shift); k <= level.offset+uint32(end>>level.shift); k++ {
			bins = append(bins, k)
		}
	}
	return bins
}

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

// Package bai builds, stores, and queries BAI indexes over
// coordinate-sorted BAM files.
//
// An Indexer consumes the alignment records of a BAM file in a single
// sequential pass together with the virtual file regions they were
// read from, and produces an Index: per reference, a set of
// hierarchical bins holding merged chunks of the compressed file, a
// linear table of 16384-base windows holding safe lower-bound
// offsets, and mapped/unmapped record counts. The Index answers
// region queries by returning the chunks of the file that can contain
// records overlapping a genomic interval, and serializes to and from
// the standard .bai file format.
//
// See http://samtools.github.io/hts-specs/SAMv1.pdf - Section 5 for
// the indexing scheme, and Section 5.2 for the .bai file layout.
package bai

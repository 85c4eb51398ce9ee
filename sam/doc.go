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

// Package sam is a library for reading and writing BAM files and
// their SAM headers.
//
// Alignment records are kept in their binary BAM encoding and
// accessed through lightweight accessors, so that scanning a whole
// file for indexing does not pay for a full decode of every record.
// The readers report the virtual file region each record was read
// from, which is the information a coordinate index is built from.
//
// See http://samtools.github.io/hts-specs/SAMv1.pdf for the SAM/BAM
// specification.
package sam

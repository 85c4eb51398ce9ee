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

package sam

import (
	"encoding/binary"
	"log"
	"math"
	"strconv"
)

// Field offsets in a BAM alignment record, not counting the
// block_size prefix. See http://samtools.github.io/hts-specs/SAMv1.pdf
// - Section 4.2.
const (
	refIDIndex     = 0
	posIndex       = 4
	lReadNameIndex = posIndex + 4
	mapqIndex      = lReadNameIndex + 1
	binIndex       = mapqIndex + 1
	nCigarOpIndex  = binIndex + 2
	flagIndex      = nCigarOpIndex + 2
	lSeqIndex      = flagIndex + 2
	nextRefIDIndex = lSeqIndex + 4
	nextPosIndex   = nextRefIDIndex + 4
	tlenIndex      = nextPosIndex + 4
	readNameIndex  = tlenIndex + 4
)

// Unmapped is the flag that indicates that the read is unmapped. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 1.4.2.
const Unmapped = 0x4

// A Record is a single read alignment record in its binary BAM
// encoding, without the block_size prefix. The fixed-width fields are
// decoded on demand by the accessor methods.
type Record struct {
	data []byte
}

// NewRecord returns a Record for the given BAM-encoded bytes. The
// bytes are used directly, not copied.
func NewRecord(data []byte) *Record {
	if len(data) < readNameIndex {
		log.Panic("truncated BAM alignment record")
	}
	return &Record{data: data}
}

// Bytes returns the BAM encoding of the record, without the
// block_size prefix.
func (rec *Record) Bytes() []byte {
	return rec.data
}

func (rec *Record) u16(index int) uint16 {
	return binary.LittleEndian.Uint16(rec.data[index : index+2])
}

func (rec *Record) i32(index int) int32 {
	return int32(binary.LittleEndian.Uint32(rec.data[index : index+4]))
}

// RefID returns the reference sequence identifier of the record, or
// -1 if the record is not assigned to a reference sequence.
func (rec *Record) RefID() int32 { return rec.i32(refIDIndex) }

// Pos returns the 0-based leftmost coordinate of the record, or -1 if
// the record has no coordinate.
func (rec *Record) Pos() int32 { return rec.i32(posIndex) }

// MapQ returns the mapping quality of the record.
func (rec *Record) MapQ() byte { return rec.data[mapqIndex] }

// Bin returns the bin number stored in the record, as computed by the
// program that produced the BAM file. A stored bin of 0 cannot be
// trusted and must be recomputed from the record coordinates.
func (rec *Record) Bin() uint16 { return rec.u16(binIndex) }

// Flag returns the bitwise flag of the record.
func (rec *Record) Flag() uint16 { return rec.u16(flagIndex) }

// IsUnmapped determines whether the read of the record is unmapped.
func (rec *Record) IsUnmapped() bool { return rec.Flag()&Unmapped != 0 }

// NextRefID returns the reference sequence identifier of the mate, or
// -1.
func (rec *Record) NextRefID() int32 { return rec.i32(nextRefIDIndex) }

// NextPos returns the 0-based leftmost coordinate of the mate, or -1.
func (rec *Record) NextPos() int32 { return rec.i32(nextPosIndex) }

// TLen returns the template length of the record.
func (rec *Record) TLen() int32 { return rec.i32(tlenIndex) }

// SeqLen returns the length of the read sequence of the record.
func (rec *Record) SeqLen() int32 { return rec.i32(lSeqIndex) }

// Name returns the read name of the record.
func (rec *Record) Name() string {
	lReadName := int(rec.data[lReadNameIndex])
	return string(rec.data[readNameIndex : readNameIndex+lReadName-1])
}

var cigarOps = []byte("MIDNSHP=X")

// cigarConsumesReferenceBases maps the CIGAR operation codes of the
// operations that consume reference bases to 1, and the others to 0.
var cigarConsumesReferenceBases = [9]int32{1, 0, 1, 1, 0, 0, 0, 1, 1}

func (rec *Record) cigar() []byte {
	nCigarOp := int(rec.u16(nCigarOpIndex))
	index := readNameIndex + int(rec.data[lReadNameIndex])
	return rec.data[index : index+4*nCigarOp]
}

// RefLength returns the number of reference bases covered by the
// record, as determined by its CIGAR string. Returns 0 for records
// without any reference-consuming CIGAR operation.
func (rec *Record) RefLength() int32 {
	var length int32
	cigar := rec.cigar()
	for index := 0; index < len(cigar); index += 4 {
		op := binary.LittleEndian.Uint32(cigar[index : index+4])
		length += cigarConsumesReferenceBases[op&0xF] * int32(op>>4)
	}
	return length
}

// seqChars maps 4-bit BAM sequence codes to their IUPAC characters.
const seqChars = "=ACMGRSVTWYHKDBN"

func referenceName(refID int32, references []BAMReference) string {
	if refID < 0 {
		return "*"
	}
	return references[refID].Name
}

// FormatSam writes the record as a SAM file alignment line by
// appending its text representation to out and returning the result.
// See http://samtools.github.io/hts-specs/SAMv1.pdf - Section 1.4.
func (rec *Record) FormatSam(out []byte, references []BAMReference) []byte {
	out = append(append(out, rec.Name()...), '\t')
	out = append(strconv.AppendUint(out, uint64(rec.Flag()), 10), '\t')
	out = append(append(out, referenceName(rec.RefID(), references)...), '\t')
	out = append(strconv.AppendInt(out, int64(rec.Pos())+1, 10), '\t')
	out = append(strconv.AppendUint(out, uint64(rec.MapQ()), 10), '\t')

	cigar := rec.cigar()
	if len(cigar) == 0 {
		out = append(out, '*')
	}
	for index := 0; index < len(cigar); index += 4 {
		op := binary.LittleEndian.Uint32(cigar[index : index+4])
		out = strconv.AppendUint(out, uint64(op>>4), 10)
		out = append(out, cigarOps[op&0xF])
	}
	out = append(out, '\t')

	refID := rec.RefID()
	if next := rec.NextRefID(); next >= 0 && next == refID {
		out = append(out, '=')
	} else {
		out = append(out, referenceName(next, references)...)
	}
	out = append(out, '\t')
	out = append(strconv.AppendInt(out, int64(rec.NextPos())+1, 10), '\t')
	out = append(strconv.AppendInt(out, int64(rec.TLen()), 10), '\t')

	lSeq := int(rec.SeqLen())
	index := readNameIndex + int(rec.data[lReadNameIndex]) + len(cigar)
	if lSeq == 0 {
		out = append(out, '*')
	}
	for i := 0; i < lSeq; i++ {
		b := rec.data[index+(i>>1)]
		if i&1 == 0 {
			b >>= 4
		}
		out = append(out, seqChars[b&0xF])
	}
	out = append(out, '\t')
	index += (lSeq + 1) >> 1

	if lSeq == 0 || rec.data[index] == 0xFF {
		out = append(out, '*')
	} else {
		for _, q := range rec.data[index : index+lSeq] {
			out = append(out, q+33)
		}
	}
	index += lSeq

	for index < len(rec.data) {
		out, index = formatSamTag(out, rec.data, index)
	}

	return append(out, '\n')
}

func formatSamNumericArray(out []byte, record []byte, index int) ([]byte, int) {
	ntype := record[index]
	count := int(int32(binary.LittleEndian.Uint32(record[index+1 : index+5])))
	out = append(out, ":B:"...)
	out = append(out, ntype)
	index += 5
	for i := 0; i < count; i++ {
		out = append(out, ',')
		switch ntype {
		case 'c':
			out = strconv.AppendInt(out, int64(int8(record[index])), 10)
			index++
		case 'C':
			out = strconv.AppendUint(out, uint64(record[index]), 10)
			index++
		case 's':
			out = strconv.AppendInt(out, int64(int16(binary.LittleEndian.Uint16(record[index:index+2]))), 10)
			index += 2
		case 'S':
			out = strconv.AppendUint(out, uint64(binary.LittleEndian.Uint16(record[index:index+2])), 10)
			index += 2
		case 'i':
			out = strconv.AppendInt(out, int64(int32(binary.LittleEndian.Uint32(record[index:index+4]))), 10)
			index += 4
		case 'I':
			out = strconv.AppendUint(out, uint64(binary.LittleEndian.Uint32(record[index:index+4])), 10)
			index += 4
		case 'f':
			out = strconv.AppendFloat(out, float64(math.Float32frombits(binary.LittleEndian.Uint32(record[index:index+4]))), 'g', -1, 32)
			index += 4
		default:
			log.Panic("invalid subtype in a numeric array in a BAM alignment record")
		}
	}
	return out, index
}

// formatSamTag converts the optional field at the given index of a
// BAM alignment record to its SAM text representation. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.4.
func formatSamTag(out []byte, record []byte, index int) ([]byte, int) {
	out = append(out, '\t')
	out = append(out, record[index], record[index+1])
	typebyte := record[index+2]
	index += 3
	switch typebyte {
	case 'A':
		out = append(append(out, ":A:"...), record[index])
		index++
	case 'c':
		out = strconv.AppendInt(append(out, ":i:"...), int64(int8(record[index])), 10)
		index++
	case 'C':
		out = strconv.AppendUint(append(out, ":i:"...), uint64(record[index]), 10)
		index++
	case 's':
		out = strconv.AppendInt(append(out, ":i:"...), int64(int16(binary.LittleEndian.Uint16(record[index:index+2]))), 10)
		index += 2
	case 'S':
		out = strconv.AppendUint(append(out, ":i:"...), uint64(binary.LittleEndian.Uint16(record[index:index+2])), 10)
		index += 2
	case 'i':
		out = strconv.AppendInt(append(out, ":i:"...), int64(int32(binary.LittleEndian.Uint32(record[index:index+4]))), 10)
		index += 4
	case 'I':
		out = strconv.AppendUint(append(out, ":i:"...), uint64(binary.LittleEndian.Uint32(record[index:index+4])), 10)
		index += 4
	case 'f':
		out = strconv.AppendFloat(append(out, ":f:"...), float64(math.Float32frombits(binary.LittleEndian.Uint32(record[index:index+4]))), 'g', -1, 32)
		index += 4
	case 'Z':
		out = append(out, ":Z:"...)
		for record[index] != 0 {
			out = append(out, record[index])
			index++
		}
		index++
	case 'H':
		out = append(out, ":H:"...)
		for record[index] != 0 {
			out = append(out, record[index])
			index++
		}
		index++
	case 'B':
		out, index = formatSamNumericArray(out, record, index)
	default:
		log.Panicf("unknown optional field type %c in a BAM alignment record", typebyte)
	}
	return out, index
}

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
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"log"
	"strconv"

	"github.com/exaseq/bamdex/internal"
	"github.com/exaseq/bamdex/utils"
	"github.com/exaseq/bamdex/utils/bgzf"
)

// bamMagic is the magic string for the BAM format. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.
const bamMagic = "BAM\x01"

// BAMReference is an entry in a slice of BAM-encoded sequence
// dictionary entries. See http://samtools.github.io/hts-specs/SAMv1.pdf
// - Section 4.2.
type BAMReference struct {
	Name   string
	Length int32
}

func parseBamHeaderReferences(reader io.Reader, text []byte) (references []BAMReference) {
	var nRef int32
	internal.BinaryRead(reader, &nRef)
	for i := int32(0); i < nRef; i++ {
		var lName int32
		internal.BinaryRead(reader, &lName)
		for cap(text) < int(lName) {
			text = append(text[:cap(text)], 0)
		}
		text = text[:int(lName)]
		internal.ReadFull(reader, text)
		var lRef int32
		internal.BinaryRead(reader, &lRef)
		references = append(references, BAMReference{
			Name:   string(text[:len(text)-1]),
			Length: lRef,
		})
	}
	return
}

// ParseBamHeader parses a complete header in a BAM file. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.
//
// Returns a freshly allocated header and the BAM-encoded sequence
// dictionary, with panics in place of errors.
func ParseBamHeader(reader io.Reader) (*Header, []BAMReference) {
	text := make([]byte, 4)
	internal.ReadFull(reader, text)
	if string(text) != bamMagic {
		log.Panic("invalid BAM file header")
	}
	var lText int32
	internal.BinaryRead(reader, &lText)
	for cap(text) < int(lText) {
		text = append(text[:cap(text)], 0)
	}
	text = text[:int(lText)]
	internal.ReadFull(reader, text)
	for i, b := range text {
		if b == 0 {
			text = text[:i]
			break
		}
	}
	hdr, err := ParseHeader(bufio.NewReader(bytes.NewReader(text)))
	if err != nil {
		log.Panic(err)
	}
	return hdr, parseBamHeaderReferences(reader, text)
}

// EnsureReferences adds an @SQ line to the header for every entry of
// the BAM-encoded sequence dictionary that the header text does not
// mention. Some BAM writers store the dictionary only in its binary
// form.
func (hdr *Header) EnsureReferences(references []BAMReference) {
	for _, ref := range references {
		name := ref.Name
		if utils.Find(hdr.SQ, func(record utils.StringMap) bool {
			return record["SN"] == name
		}) < 0 {
			hdr.SQ = append(hdr.SQ, utils.StringMap{
				"SN": name,
				"LN": strconv.FormatInt(int64(ref.Length), 10),
			})
		}
	}
}

// An offsetReader is a decompressing reader that can report the
// virtual offset of the next byte it will produce. Both bgzf.Reader
// and bgzf.SeekReader implement this interface.
type offsetReader interface {
	io.Reader
	Tell() bgzf.Offset
}

// A Reader reads the alignment records of a BAM file sequentially,
// and keeps track of the virtual file region each record was read
// from.
type Reader struct {
	in         offsetReader
	header     *Header
	references []BAMReference
	buf        []byte
	last       bgzf.Chunk
}

// NewReader parses the header of a BAM file from the given
// decompressing reader, and returns a Reader positioned on the first
// alignment record, with panics in place of errors.
func NewReader(in offsetReader) *Reader {
	header, references := ParseBamHeader(in)
	return &Reader{
		in:         in,
		header:     header,
		references: references,
		buf:        make([]byte, 4),
	}
}

// Header returns the parsed header of the BAM file.
func (reader *Reader) Header() *Header {
	return reader.header
}

// References returns the BAM-encoded sequence dictionary of the BAM
// file.
func (reader *Reader) References() []BAMReference {
	return reader.references
}

// Read returns the next alignment record of the BAM file, or nil at
// the end of the file, with panics in place of errors. The returned
// record stays valid until the next call to Read.
func (reader *Reader) Read() *Record {
	begin := reader.in.Tell()
	if _, err := io.ReadFull(reader.in, reader.buf[:4]); err != nil {
		if err == io.EOF {
			return nil
		}
		log.Panic(err)
	}
	size := int(int32(binary.LittleEndian.Uint32(reader.buf[:4])))
	for cap(reader.buf) < size {
		reader.buf = append(reader.buf[:cap(reader.buf)], 0)
	}
	reader.buf = reader.buf[:size]
	internal.ReadFull(reader.in, reader.buf)
	reader.last = bgzf.Chunk{Begin: begin, End: reader.in.Tell()}
	return NewRecord(reader.buf)
}

// LastChunk returns the virtual file region that the most recently
// returned alignment record was read from.
func (reader *Reader) LastChunk() bgzf.Chunk {
	return reader.last
}

func enlarge(out []byte, by int) (int, []byte) {
	index := len(out)
	length := index + by
	for cap(out) < length {
		out = append(out[:cap(out)], 0)
	}
	out = out[:length]
	return index, out
}

// FormatBam writes the header section of a BAM file for the given
// sequence dictionary by appending its binary representation to out
// and returning the result. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.
func (hdr *Header) FormatBam(out []byte, references []BAMReference) []byte {
	out = append(out, bamMagic...)
	lTextIndex := len(out)
	out = append(out, "0000"...)

	out = hdr.Format(out)
	out = append(out, 0)

	binary.LittleEndian.PutUint32(out[lTextIndex:lTextIndex+4], uint32(len(out)-lTextIndex-4))

	var index int
	index, out = enlarge(out, 4)
	binary.LittleEndian.PutUint32(out[index:], uint32(len(references)))

	for _, ref := range references {
		index, out = enlarge(out, 4+len(ref.Name)+1+4)
		binary.LittleEndian.PutUint32(out[index:index+4], uint32(len(ref.Name)+1))
		index += 4
		copy(out[index:], ref.Name)
		out[index+len(ref.Name)] = 0
		index += len(ref.Name) + 1
		binary.LittleEndian.PutUint32(out[index:index+4], uint32(ref.Length))
	}

	return out
}

// A Writer writes BAM-encoded alignment records to a BGZF-compressed
// output.
type Writer struct {
	bgzf *bgzf.Writer
	buf  []byte
}

// NewWriter returns a Writer for the given io.Writer that has the
// given header and sequence dictionary already written to it, with
// panics in place of errors.
func NewWriter(w io.Writer, hdr *Header, references []BAMReference) *Writer {
	writer := &Writer{bgzf: bgzf.NewWriter(w, -1)}
	internal.Write(writer.bgzf, hdr.FormatBam(nil, references))
	return writer
}

// Write writes the given alignment record, with panics in place of
// errors.
func (writer *Writer) Write(rec *Record) {
	writer.buf = writer.buf[:0]
	var index int
	index, writer.buf = enlarge(writer.buf, 4)
	binary.LittleEndian.PutUint32(writer.buf[index:], uint32(len(rec.Bytes())))
	writer.buf = append(writer.buf, rec.Bytes()...)
	internal.Write(writer.bgzf, writer.buf)
}

// Close flushes the remaining output and writes the BGZF EOF marker,
// with panics in place of errors.
func (writer *Writer) Close() {
	internal.Close(writer.bgzf)
}

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

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
)

// SeekReader reads from a BGZF file one block at a time, and can
// reposition itself on any virtual offset. It decompresses serially,
// which is the right trade-off for random access over small slices of
// a file; use Reader for full scans.
type SeekReader struct {
	r     io.ReadSeeker
	data  []byte
	start int64
	next  int64
	index int
	eof   bool
}

// NewSeekReader returns a SeekReader positioned on the start of the
// given io.ReadSeeker.
func NewSeekReader(r io.ReadSeeker) (*SeekReader, error) {
	bgzf := &SeekReader{r: r, data: make([]byte, 0, maxBgzfBlockSize)}
	if err := bgzf.loadBlock(0); err != nil {
		return nil, err
	}
	return bgzf, nil
}

// loadBlock reads and decompresses the BGZF block starting at the
// given compressed file offset.
func (bgzf *SeekReader) loadBlock(at int64) error {
	if _, err := bgzf.r.Seek(at, io.SeekStart); err != nil {
		return err
	}
	var header [12]byte
	if _, err := io.ReadFull(bgzf.r, header[:]); err != nil {
		return err
	}
	if header[0] != 0x1f || header[1] != 0x8b {
		return errors.New("invalid gzip header in BGZF file")
	}
	if header[2] != 8 || header[3]&4 == 0 {
		return errors.New("missing extra subfields in BGZF header")
	}
	xlen := int(binary.LittleEndian.Uint16(header[10:12]))
	extra := make([]byte, xlen)
	if _, err := io.ReadFull(bgzf.r, extra); err != nil {
		return err
	}
	bsize := -1
	var slen int
	for i := 0; i < len(extra); i += 4 + slen {
		slen = int(binary.LittleEndian.Uint16(extra[i+2 : i+4]))
		if extra[i] == 66 && extra[i+1] == 67 && slen == 2 {
			bsize = int(binary.LittleEndian.Uint16(extra[i+4 : i+6]))
			break
		}
	}
	if bsize < 0 {
		return errors.New("missing BC extra subfield in BGZF header")
	}
	cdata := make([]byte, bsize+1-12-xlen-8)
	if _, err := io.ReadFull(bgzf.r, cdata); err != nil {
		return err
	}
	var tail [8]byte
	if _, err := io.ReadFull(bgzf.r, tail[:]); err != nil {
		return err
	}
	crc := binary.LittleEndian.Uint32(tail[0:4])
	isize := binary.LittleEndian.Uint32(tail[4:8])
	flateReader := flate.NewReader(bytes.NewReader(cdata))
	bgzf.data = bgzf.data[:isize]
	if _, err := io.ReadFull(flateReader, bgzf.data); err != nil {
		return fmt.Errorf("%v in loadBlock", err)
	}
	if err := flateReader.Close(); err != nil {
		return err
	}
	if crc32.ChecksumIEEE(bgzf.data) != crc {
		return errors.New("invalid CRC-32 value for a data block in a BGZF file")
	}
	bgzf.start = at
	bgzf.next = at + int64(bsize) + 1
	bgzf.index = 0
	bgzf.eof = isize == 0
	return nil
}

// Seek repositions the reader on the given virtual offset.
func (bgzf *SeekReader) Seek(o Offset) error {
	if o.File != bgzf.start || bgzf.eof {
		if err := bgzf.loadBlock(o.File); err != nil {
			return err
		}
	}
	if int(o.Block) > len(bgzf.data) {
		return errors.New("virtual offset points beyond its BGZF block")
	}
	bgzf.index = int(o.Block)
	return nil
}

// Tell returns the virtual offset of the next byte that Read will
// produce.
func (bgzf *SeekReader) Tell() Offset {
	if bgzf.index == len(bgzf.data) {
		return Offset{File: bgzf.next}
	}
	return Offset{File: bgzf.start, Block: uint16(bgzf.index)}
}

// Read implements the corresponding method of io.Reader.
func (bgzf *SeekReader) Read(p []byte) (n int, err error) {
	for len(p) > 0 {
		if bgzf.index == len(bgzf.data) {
			if bgzf.eof {
				if n > 0 {
					return n, nil
				}
				return 0, io.EOF
			}
			if err := bgzf.loadBlock(bgzf.next); err != nil {
				return n, err
			}
			if bgzf.eof {
				if n > 0 {
					return n, nil
				}
				return 0, io.EOF
			}
		}
		k := copy(p, bgzf.data[bgzf.index:])
		bgzf.index += k
		p = p[k:]
		n += k
	}
	return n, nil
}

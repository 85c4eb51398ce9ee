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
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/exaseq/bamdex/internal"
	"github.com/exaseq/bamdex/utils"
)

// FileFormatVersion is the version of the SAM specification that
// headers created by this library conform to.
const FileFormatVersion = "1.6"

// Header represents the header section of a SAM or BAM file. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 1.3.
type Header struct {
	HD          utils.StringMap
	SQ, RG, PG  []utils.StringMap
	CO          []string
	UserRecords map[string][]utils.StringMap
}

// NewHeader allocates and initializes an empty header.
func NewHeader() *Header { return &Header{} }

// IsHeaderUserTag determines whether this tag string represents a
// user-defined tag.
func IsHeaderUserTag(code string) bool {
	for _, c := range code {
		if 'a' <= c && c <= 'z' {
			return true
		}
	}
	return false
}

// SQLN returns the LN field value of the given SQ header line,
// converted to an int32.
func SQLN(record utils.StringMap) int32 {
	ln, found := record["LN"]
	if !found {
		log.Panic("LN entry in an SQ header line missing")
	}
	return int32(internal.ParseInt(ln, 10, 32))
}

// EnsureHD returns the mandatory HD line of the header, adding it
// first if it is missing.
func (hdr *Header) EnsureHD() utils.StringMap {
	if hdr.HD == nil {
		hdr.HD = utils.StringMap{"VN": FileFormatVersion}
	}
	return hdr.HD
}

// HDSO returns the sorting order stored in the HD line of the header,
// or "unknown" if the header does not declare one.
func (hdr *Header) HDSO() string {
	if so, found := hdr.EnsureHD()["SO"]; found {
		return so
	}
	return "unknown"
}

// AddUserRecord adds a header line for the given user-defined record
// type code.
func (hdr *Header) AddUserRecord(code string, record utils.StringMap) {
	if hdr.UserRecords == nil {
		hdr.UserRecords = make(map[string][]utils.StringMap)
	}
	hdr.UserRecords[code] = append(hdr.UserRecords[code], record)
}

// ParseHeader parses the header section of a SAM file. Parsing stops
// at the first line that does not start with an @ character, or at
// the end of the input.
func ParseHeader(reader *bufio.Reader) (*Header, error) {
	hdr := NewHeader()
	var sc StringScanner
	for first := true; ; first = false {
		switch data, err := reader.Peek(1); {
		case err == io.EOF:
			return hdr, sc.Err()
		case err != nil:
			return hdr, err
		case data[0] != '@':
			return hdr, sc.Err()
		}
		line, err := reader.ReadString('\n')
		if err == nil {
			line = line[:len(line)-1]
		} else if err != io.EOF {
			return hdr, err
		}
		if len(line) < 4 {
			return hdr, fmt.Errorf("truncated SAM header line %v", line)
		}
		sc.Reset(line[4:])
		switch line[0:4] {
		case "@HD\t":
			if !first {
				return hdr, errors.New("@HD line not in first line when parsing a SAM header")
			}
			hdr.HD = sc.ParseHeaderLine()
		case "@SQ\t":
			hdr.SQ = append(hdr.SQ, sc.ParseHeaderLine())
		case "@RG\t":
			hdr.RG = append(hdr.RG, sc.ParseHeaderLine())
		case "@PG\t":
			hdr.PG = append(hdr.PG, sc.ParseHeaderLine())
		case "@CO\t":
			hdr.CO = append(hdr.CO, line[4:])
		default:
			switch code := line[0:3]; {
			case code == "@CO":
				hdr.CO = append(hdr.CO, line[3:])
			case IsHeaderUserTag(code):
				if line[3] != '\t' {
					return hdr, fmt.Errorf("header code %v not followed by a tab when parsing a SAM header", code)
				}
				hdr.AddUserRecord(code, sc.ParseHeaderLine())
			default:
				return hdr, fmt.Errorf("unknown SAM record type code %v", code)
			}
		}
	}
}

func formatHeaderLine(out []byte, code string, record utils.StringMap) []byte {
	out = append(out, code...)
	for key, value := range record {
		out = append(out, '\t')
		out = append(out, key...)
		out = append(out, ':')
		out = append(out, value...)
	}
	return append(out, '\n')
}

// Format writes the header section of a SAM file by appending its
// text representation to out and returning the result.
func (hdr *Header) Format(out []byte) []byte {
	if hdr.HD != nil {
		out = formatHeaderLine(out, "@HD", hdr.HD)
	}
	for _, record := range hdr.SQ {
		out = formatHeaderLine(out, "@SQ", record)
	}
	for _, record := range hdr.RG {
		out = formatHeaderLine(out, "@RG", record)
	}
	for _, record := range hdr.PG {
		out = formatHeaderLine(out, "@PG", record)
	}
	for _, comment := range hdr.CO {
		out = append(out, "@CO\t"...)
		out = append(out, comment...)
		out = append(out, '\n')
	}
	for code, records := range hdr.UserRecords {
		for _, record := range records {
			out = formatHeaderLine(out, code, record)
		}
	}
	return out
}

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
	"io"
	"testing"
)

func TestOffsetPacking(t *testing.T) {
	offsets := []Offset{
		{},
		{File: 1},
		{File: 0, Block: 12345},
		{File: 98765, Block: 4321},
		{File: 1 << 40, Block: 65535},
	}
	for _, o := range offsets {
		if MakeOffset(uint64(VOffset(o))) != o {
			t.Error("virtual offset packing failed for", o)
		}
	}
	if !(Offset{}).IsZero() {
		t.Error("IsZero failed for the zero offset")
	}
	if (Offset{File: 1}).IsZero() {
		t.Error("IsZero failed for a nonzero offset")
	}
	if VOffset(Offset{File: 2, Block: 3}) <= VOffset(Offset{File: 1, Block: 65535}) {
		t.Error("virtual offset ordering failed")
	}
}

func compressTestData(t *testing.T, chunks [][]byte) []byte {
	var buf bytes.Buffer
	w := NewWriter(&buf, 6)
	for _, chunk := range chunks {
		if _, err := w.Write(chunk); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testData() (chunks [][]byte, full []byte) {
	for i := 0; i < 200; i++ {
		chunk := make([]byte, 700+13*i)
		for j := range chunk {
			chunk[j] = byte(i + j)
		}
		chunks = append(chunks, chunk)
		full = append(full, chunk...)
	}
	return chunks, full
}

func TestReadWriteRoundTrip(t *testing.T) {
	chunks, full := testData()
	compressed := compressTestData(t, chunks)
	if !bytes.HasSuffix(compressed, bgzfEOF) {
		t.Error("BGZF EOF marker failed")
	}
	gz, err := IsGzip(bytes.NewReader(compressed))
	if err != nil || !gz {
		t.Error("IsGzip failed")
	}
	r, err := NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatal(err)
	}
	decompressed, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, full) {
		t.Error("BGZF read/write round trip failed")
	}
}

func TestTellMonotonic(t *testing.T) {
	chunks, _ := testData()
	compressed := compressTestData(t, chunks)
	r, err := NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = r.Close() }()
	prev := int64(-1)
	buf := make([]byte, 611)
	for {
		o := r.Tell()
		if v := VOffset(o); v <= prev {
			t.Fatal("Tell went backwards", prev, v)
		} else {
			prev = v
		}
		if _, err := r.Read(buf); err == io.EOF {
			break
		} else if err != nil {
			t.Fatal(err)
		}
	}
}

func TestSeekReader(t *testing.T) {
	chunks, full := testData()
	compressed := compressTestData(t, chunks)

	// record the virtual offset of every 1000th byte with a scan
	r, err := NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatal(err)
	}
	var offsets []Offset
	var values []byte
	one := make([]byte, 1)
	for i := 0; ; i++ {
		o := r.Tell()
		if _, err := io.ReadFull(r, one); err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		} else if err != nil {
			t.Fatal(err)
		}
		if i%1000 == 0 {
			offsets = append(offsets, o)
			values = append(values, one[0])
		}
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if len(offsets) != (len(full)+999)/1000 {
		t.Error("scan for seek targets failed")
	}

	sr, err := NewSeekReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatal(err)
	}
	// visit the recorded offsets out of order
	for i := len(offsets) - 1; i >= 0; i-- {
		if err := sr.Seek(offsets[i]); err != nil {
			t.Fatal(err)
		}
		if sr.Tell() != offsets[i] {
			t.Error("Tell after Seek failed")
		}
		if _, err := io.ReadFull(sr, one); err != nil {
			t.Fatal(err)
		}
		if one[0] != values[i] {
			t.Error("Seek landed on the wrong byte at", offsets[i])
		}
	}
}

func TestSeekReaderFullRead(t *testing.T) {
	chunks, full := testData()
	compressed := compressTestData(t, chunks)
	sr, err := NewSeekReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatal(err)
	}
	decompressed, err := io.ReadAll(sr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, full) {
		t.Error("SeekReader full read failed")
	}
}

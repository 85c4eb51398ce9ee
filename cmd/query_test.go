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

package cmd

import "testing"

func TestParseRegion(t *testing.T) {
	if name, beg, end := parseRegion("chr1"); name != "chr1" || beg != 0 || end != -1 {
		t.Error("parseRegion chr1 failed")
	}
	if name, beg, end := parseRegion("chr1:100"); name != "chr1" || beg != 99 || end != -1 {
		t.Error("parseRegion chr1:100 failed")
	}
	if name, beg, end := parseRegion("chr1:100-200"); name != "chr1" || beg != 99 || end != 200 {
		t.Error("parseRegion chr1:100-200 failed")
	}
	if name, beg, end := parseRegion("HLA-A*01:01:100-200"); name != "HLA-A*01:01" || beg != 99 || end != 200 {
		t.Error("parseRegion with colons in the reference name failed")
	}
}

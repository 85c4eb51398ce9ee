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

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/exaseq/bamdex/bai"
	"github.com/exaseq/bamdex/internal"
	"github.com/exaseq/bamdex/sam"
	"github.com/exaseq/bamdex/utils/bgzf"
)

// QueryHelp is the help string for this command.
const QueryHelp = "query parameters:\n" +
	"bamdex query bam-file region\n" +
	"[--index bai-file]\n" +
	"[--output sam-or-bam-file]\n" +
	"[--timed]\n" +
	"[--profile name]\n" +
	"[--log-path path]\n" +
	"\n" +
	"The region is of the form chr, chr:beg, or chr:beg-end, with\n" +
	"1-based, inclusive coordinates.\n"

// parseRegion parses a chr, chr:beg, or chr:beg-end region string
// with 1-based inclusive coordinates into a reference name and a
// zero-based half-open interval. end -1 means the end of the
// reference.
func parseRegion(region string) (name string, beg, end int32) {
	colon := strings.LastIndexByte(region, ':')
	if colon < 0 {
		return region, 0, -1
	}
	name = region[:colon]
	interval := region[colon+1:]
	if dash := strings.IndexByte(interval, '-'); dash < 0 {
		beg = int32(internal.ParseInt(interval, 10, 32)) - 1
		end = -1
	} else {
		beg = int32(internal.ParseInt(interval[:dash], 10, 32)) - 1
		end = int32(internal.ParseInt(interval[dash+1:], 10, 32))
	}
	if beg < 0 {
		log.Panicf("invalid region %v", region)
	}
	return name, beg, end
}

func findReference(references []sam.BAMReference, name string) int32 {
	for refID, ref := range references {
		if ref.Name == name {
			return int32(refID)
		}
	}
	log.Panicf("reference %v does not occur in the BAM file", name)
	return -1
}

// emitter abstracts over the SAM text and BAM record output of the
// query command.
type emitter interface {
	emit(rec *sam.Record)
	close()
}

type samEmitter struct {
	out        *bufio.Writer
	file       *os.File
	references []sam.BAMReference
	buf        []byte
}

func (e *samEmitter) emit(rec *sam.Record) {
	e.buf = rec.FormatSam(e.buf[:0], e.references)
	internal.Write(e.out, e.buf)
}

func (e *samEmitter) close() {
	if err := e.out.Flush(); err != nil {
		log.Panic(err)
	}
	if e.file != nil {
		internal.Close(e.file)
	}
}

type bamEmitter struct {
	writer *sam.Writer
	file   *os.File
}

func (e *bamEmitter) emit(rec *sam.Record) {
	e.writer.Write(rec)
}

func (e *bamEmitter) close() {
	e.writer.Close()
	internal.Close(e.file)
}

func newEmitter(output string, hdr *sam.Header, references []sam.BAMReference) emitter {
	hdr.EnsureReferences(references)
	if filepath.Ext(output) == ".bam" {
		file := internal.FileCreate(output)
		return &bamEmitter{writer: sam.NewWriter(file, hdr, references), file: file}
	}
	var file *os.File
	out := os.Stdout
	if output != "" {
		file = internal.FileCreate(output)
		out = file
	}
	buf := bufio.NewWriter(out)
	internal.Write(buf, hdr.Format(nil))
	return &samEmitter{out: buf, file: file, references: references}
}

// Query implements the bamdex query command.
func Query() error {
	var (
		index, output    string
		profile, logPath string
		timed            bool
	)

	var flags flag.FlagSet
	flags.StringVar(&index, "index", "", "the .bai file to query (default: the bam-file with .bai appended)")
	flags.StringVar(&output, "output", "", "write the matching records to the specified .sam or .bam file (default: SAM to standard output)")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	if len(os.Args) < 4 {
		os.Stderr.WriteString("Incorrect number of parameters.\n")
		os.Stderr.WriteString(QueryHelp)
		os.Exit(1)
	}
	input := getFilename(os.Args[2], QueryHelp)
	region := os.Args[3]
	parseFlags(flags, 4, QueryHelp)

	if index == "" {
		index = input + ".bai"
	}

	setLogOutput(logPath)

	ok := checkExist("", input)
	ok = checkExist("--index", index) && ok
	if output != "" {
		ok = checkCreate("--output", output) && ok
	}
	if !ok {
		return errors.New(QueryHelp)
	}

	log.Println("Executing command:\n", strings.Join(os.Args, " "))
	log.Println("Input file:", internal.FullPathname(input))
	log.Println("Index file:", internal.FullPathname(index))

	var retrieved int
	timedRun(timed, profile, fmt.Sprint("Querying ", input, " for ", region, "."), 1, func() {
		idx := bai.ReadIndexFile(index)

		file := internal.FileOpen(input)
		defer internal.Close(file)
		sr, err := bgzf.NewSeekReader(file)
		if err != nil {
			log.Panic(err)
		}
		reader := sam.NewReader(sr)
		references := reader.References()

		name, beg, end := parseRegion(region)
		refID := findReference(references, name)
		if end < 0 {
			end = references[refID].Length
		}

		out := newEmitter(output, reader.Header(), references)
		defer out.close()

		for _, chunk := range idx.Chunks(refID, beg, end) {
			if err := sr.Seek(chunk.Begin); err != nil {
				log.Panic(err)
			}
			for bgzf.VOffset(sr.Tell()) < bgzf.VOffset(chunk.End) {
				rec := reader.Read()
				if rec == nil {
					break
				}
				if rec.RefID() != refID {
					continue
				}
				if pos := rec.Pos(); pos < end && pos+max32(rec.RefLength(), 1) > beg {
					out.emit(rec)
					retrieved++
				}
			}
		}
	})
	log.Println("Retrieved", retrieved, "records.")

	return nil
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

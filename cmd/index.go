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
	"log"
	"os"
	"strings"

	"github.com/exaseq/bamdex/bai"
	"github.com/exaseq/bamdex/internal"
	"github.com/exaseq/bamdex/sam"
	"github.com/exaseq/bamdex/utils/bgzf"
)

// IndexHelp is the help string for this command.
const IndexHelp = "index parameters:\n" +
	"bamdex index bam-file [bai-file]\n" +
	"[--timed]\n" +
	"[--profile name]\n" +
	"[--log-path path]\n"

// Index implements the bamdex index command.
func Index() error {
	var (
		profile, logPath string
		timed            bool
	)

	var flags flag.FlagSet
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	if len(os.Args) < 3 {
		os.Stderr.WriteString("Incorrect number of parameters.\n")
		os.Stderr.WriteString(IndexHelp)
		os.Exit(1)
	}
	input := getFilename(os.Args[2], IndexHelp)
	output := input + ".bai"
	nextArg := 3
	if len(os.Args) > 3 && !strings.HasPrefix(os.Args[3], "-") {
		output = getFilename(os.Args[3], IndexHelp)
		nextArg = 4
	}
	parseFlags(flags, nextArg, IndexHelp)

	setLogOutput(logPath)

	ok := checkExist("", input)
	ok = checkCreate("", output) && ok
	if !ok {
		return errors.New(IndexHelp)
	}

	log.Println("Executing command:\n", strings.Join(os.Args, " "))
	log.Println("Input file:", internal.FullPathname(input))
	log.Println("Output file:", internal.FullPathname(output))

	var idx *bai.Index
	timedRun(timed, profile, "Indexing "+input+".", 1, func() {
		file := internal.FileOpen(input)
		defer internal.Close(file)
		in, err := bgzf.NewReader(bufio.NewReader(file))
		if err != nil {
			log.Panic(err)
		}
		defer internal.Close(in)
		reader := sam.NewReader(in)
		if so := reader.Header().HDSO(); so != "coordinate" {
			log.Printf("Warning: %v does not declare a coordinate sort order (SO:%v).", input, so)
		}
		indexer := bai.NewIndexer(reader.References())
		for {
			rec := reader.Read()
			if rec == nil {
				break
			}
			indexer.Add(rec, reader.LastChunk())
		}
		idx = indexer.Finish()
	})

	timedRun(timed, profile, "Writing "+output+".", 2, func() {
		bai.WriteIndexFile(output, idx)
	})

	return nil
}

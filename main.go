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

// bamdex is a high-performance tool for building and querying BAI
// indexes of coordinate-sorted .bam files.
//
// Please see https://github.com/exaseq/bamdex for a documentation of
// the tool, and below for the API documentation.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/exaseq/bamdex/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: index, query")
	fmt.Fprint(os.Stderr, "\n", cmd.IndexHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.QueryHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage)
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "index":
		err = cmd.Index()
	case "query":
		err = cmd.Query()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command: ", os.Args[1])
		fmt.Fprint(os.Stderr, cmd.HelpMessage)
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

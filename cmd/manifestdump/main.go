// MANIFEST dump utility for Titanyard.
//
// Use `manifestdump` to print a summary of a titandb MANIFEST file.
// This tool decodes VersionEdits from the MANIFEST and prints the live
// blob file set per column family.
//
// Run the tool:
//
// ```bash
// ./bin/manifestdump <MANIFEST_FILE>
// ```
//
// Output includes:
// - Total decoded edits.
// - The next file number recorded by the log.
// - Final live blob files per column family.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/aalhour/titanyard/internal/blob"
	"github.com/aalhour/titanyard/internal/manifest"
	"github.com/aalhour/titanyard/internal/record"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: manifestdump <manifest-file>")
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	reader := record.NewStrictReader(bytes.NewReader(data))
	editCount := 0
	var nextFileNumber uint64
	// Track files per column family: cf -> fileNum -> meta
	liveFiles := make(map[uint32]map[uint64]*blob.BlobFileMeta)

	for {
		rec, err := reader.ReadRecord()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Printf("Error at edit %d: %v\n", editCount+1, err)
			break
		}

		ve := &manifest.VersionEdit{}
		if err := ve.DecodeFrom(rec); err != nil {
			fmt.Printf("Decode error at edit %d: %v\n", editCount+1, err)
			continue
		}

		editCount++
		if ve.HasNextFileNumber {
			nextFileNumber = ve.NextFileNumber
		}
		cf := ve.ColumnFamilyID
		if liveFiles[cf] == nil {
			liveFiles[cf] = make(map[uint64]*blob.BlobFileMeta)
		}
		for _, file := range ve.AddedFiles {
			liveFiles[cf][file.FileNumber()] = file
		}
		for _, df := range ve.DeletedFiles {
			delete(liveFiles[cf], df.FileNumber)
		}
	}

	fmt.Printf("Total edits: %d\n", editCount)
	fmt.Printf("Next file number: %d\n", nextFileNumber)
	fmt.Printf("\nFinal live files by column family:\n")

	cfIDs := make([]uint32, 0, len(liveFiles))
	for cf := range liveFiles {
		cfIDs = append(cfIDs, cf)
	}
	slices.Sort(cfIDs)

	totalLive := 0
	var totalBytes uint64
	for _, cf := range cfIDs {
		files := liveFiles[cf]
		if len(files) == 0 {
			continue
		}
		numbers := make([]uint64, 0, len(files))
		for fn := range files {
			numbers = append(numbers, fn)
		}
		slices.Sort(numbers)

		fmt.Printf("  Column family %d:\n", cf)
		for _, fn := range numbers {
			file := files[fn]
			fmt.Printf("    %06d.blob  size=%d entries=%d level=%d\n",
				fn, file.FileSize(), file.FileEntries(), file.FileLevel())
			totalBytes += file.FileSize()
		}
		totalLive += len(files)
	}
	fmt.Printf("Total live: %d (%d bytes)\n", totalLive, totalBytes)
}

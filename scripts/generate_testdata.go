//go:build ignore

// generate_testdata.go creates snapshot files for benchmarking the layout
// and the city simulation.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	testdata/benchmark/small.json   (100 files)
//	testdata/benchmark/medium.json  (1000 files)
//	testdata/benchmark/large.json   (5000 files)
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/depcity/pkg/testutil"
)

type datasetSpec struct {
	name string
	size int
	// imports is the average number of imports per file.
	imports float64
}

var datasets = []datasetSpec{
	{"small", 100, 3},
	{"medium", 1000, 2.5},
	{"large", 5000, 2},
}

func main() {
	outputDir := filepath.Join("testdata", "benchmark")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d files)...\n", ds.name, ds.size)

		gen := testutil.New(testutil.GeneratorConfig{
			Seed:        int64(ds.size), // reproducible per size
			PathPrefix:  "src/" + ds.name,
			Extension:   ".ts",
			WithMetrics: true,
		})
		gf := gen.Random(ds.size, ds.imports/float64(ds.size))
		snap := gen.ToSnapshot(gf)
		snap.RepoURL = "https://github.com/depcity/bench-" + ds.name

		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode %s: %v\n", ds.name, err)
			os.Exit(1)
		}

		outputPath := filepath.Join(outputDir, ds.name+".json")
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outputPath, err)
			os.Exit(1)
		}

		fmt.Printf("  Written %s (%d bytes, %d imports)\n", outputPath, len(data), len(snap.Edges))
	}

	fmt.Println("\nDone! Snapshots created in", outputDir)
}

package main

import (
	"bufio"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = `goos: linux
goarch: amd64
pkg: github.com/joshuapare/memkit/mem/bump
BenchmarkAllocate/memkit/64-8         	200000000	         5.00 ns/op	       0 B/op	       0 allocs/op
BenchmarkAllocate/runtime/64-8        	50000000	        20.0 ns/op	      64 B/op	       1 allocs/op
BenchmarkPurge-8                      	 1000000	      1500 ns/op	       0 B/op	       0 allocs/op
PASS
pkg: github.com/joshuapare/memkit/mem/index
BenchmarkAllocateFree/memkit-8        	100000000	        10.0 ns/op
BenchmarkAllocateFree/runtime-8       	50000000	         5.0 ns/op
`

func TestSplitName(t *testing.T) {
	tests := []struct {
		name              string
		op, impl, variant string
	}{
		{"BenchmarkAllocate/memkit/64-8", "Allocate", "memkit", "64"},
		{"BenchmarkAllocate/runtime/64-16", "Allocate", "runtime", "64"},
		{"BenchmarkAllocateFree/memkit-8", "AllocateFree", "memkit", ""},
		{"BenchmarkPurge-8", "Purge", "memkit", ""},
		{"BenchmarkScope", "Scope", "memkit", ""},
	}
	for _, tt := range tests {
		op, impl, variant := splitName(tt.name)
		assert.Equal(t, tt.op, op, tt.name)
		assert.Equal(t, tt.impl, impl, tt.name)
		assert.Equal(t, tt.variant, variant, tt.name)
	}
}

func TestParseBenchmarks(t *testing.T) {
	results := parseBenchmarks(bufio.NewScanner(strings.NewReader(sampleOutput)))
	require.Len(t, results, 5)

	assert.Equal(t, "bump", results[0].Package)
	assert.Equal(t, 5.0, results[0].NsPerOp)
	assert.Equal(t, int64(64), results[1].BytesPerOp)
	assert.Equal(t, int64(1), results[1].AllocsPerOp)
	assert.Equal(t, "index", results[3].Package)
	assert.Zero(t, results[3].BytesPerOp)
}

func TestGenerateComparisons(t *testing.T) {
	results := parseBenchmarks(bufio.NewScanner(strings.NewReader(sampleOutput)))
	comps := generateComparisons(results)
	require.Len(t, comps, 3)

	// Sorted by package, then operation.
	assert.Equal(t, "Allocate", comps[0].Operation)
	assert.InDelta(t, 4.0, comps[0].Speedup, 1e-9)
	assert.False(t, comps[0].MemkitOnly)

	assert.Equal(t, "Purge", comps[1].Operation)
	assert.True(t, comps[1].MemkitOnly)

	assert.Equal(t, "index", comps[2].Package)
	assert.InDelta(t, 0.5, comps[2].Speedup, 1e-9)
}

func TestGenerateMarkdownReport(t *testing.T) {
	results := parseBenchmarks(bufio.NewScanner(strings.NewReader(sampleOutput)))
	report := generateMarkdownReport(generateComparisons(results), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	assert.Contains(t, report, "Generated: 2026-01-02 03:04:05")
	assert.Contains(t, report, "memkit faster: 1 (50.0%)")
	assert.Contains(t, report, "| bump | Allocate | 64 | 5 | 20 | **4.00x** ✓ | 0B vs 64B ✓ | 0 vs 1 ✓ |")
	assert.Contains(t, report, "*memkit only*")
}

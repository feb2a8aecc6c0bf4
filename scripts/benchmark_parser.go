// Command benchmark_parser turns `go test -bench` output for memkit into a
// markdown report comparing each allocator with its plain-runtime baseline.
//
// Benchmarks are expected to be named Benchmark<Op>/<impl>[/<variant>], where
// impl is "memkit" or "runtime":
//
//	go test -run '^$' -bench . -benchmem ./mem/... | go run ./scripts -output bench.md
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	implMemkit  = "memkit"
	implRuntime = "runtime"
)

// BenchmarkResult represents a parsed benchmark result.
type BenchmarkResult struct {
	Name        string
	Package     string // last element of the import path, e.g. "bump"
	Operation   string
	Variant     string
	Impl        string // "memkit" or "runtime"
	Iterations  int
	NsPerOp     float64
	BytesPerOp  int64
	AllocsPerOp int64
}

// ComparisonResult pairs a memkit result with its runtime baseline.
type ComparisonResult struct {
	Package       string
	Operation     string
	Variant       string
	MemkitNs      float64
	RuntimeNs     float64
	Speedup       float64
	MemkitMem     int64
	RuntimeMem    int64
	MemkitAllocs  int64
	RuntimeAllocs int64
	MemkitOnly    bool
}

var (
	inputFile = flag.String(
		"input",
		"",
		"Input file with benchmark output (stdin if not specified)",
	)
	outputFile = flag.String("output", "", "Output markdown file (stdout if not specified)")
	quiet      = flag.Bool("quiet", false, "Suppress progress output")
)

func main() {
	flag.Parse()

	var in io.Reader = os.Stdin
	if *inputFile != "" {
		f, err := os.Open(*inputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening input file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	results := parseBenchmarks(bufio.NewScanner(in))
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Parsed %d benchmark results\n", len(results))
	}

	comparisons := generateComparisons(results)
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Generated %d comparisons\n", len(comparisons))
	}

	report := generateMarkdownReport(comparisons, time.Now())

	if *outputFile == "" {
		fmt.Fprint(os.Stdout, report)
		return
	}
	if err := os.WriteFile(*outputFile, []byte(report), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", *outputFile)
	}
}

// BenchmarkAllocate/memkit/64-8    10000    12.4 ns/op    0 B/op    0 allocs/op
var benchmarkRegex = regexp.MustCompile(
	`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+([\d.]+)\s+B/op)?(?:\s+([\d.]+)\s+allocs/op)?`,
)

var procsSuffix = regexp.MustCompile(`-\d+$`)

func parseBenchmarks(scanner *bufio.Scanner) []BenchmarkResult {
	var (
		results []BenchmarkResult
		pkg     string
	)

	for scanner.Scan() {
		line := scanner.Text()

		// Accept `go test -json` output as well.
		var event struct {
			Output string
		}
		if err := json.Unmarshal([]byte(line), &event); err == nil && event.Output != "" {
			line = event.Output
		}
		line = strings.TrimSpace(line)

		if rest, ok := strings.CutPrefix(line, "pkg:"); ok {
			pkg = path.Base(strings.TrimSpace(rest))
			continue
		}

		matches := benchmarkRegex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		name := matches[1]
		iterations, _ := strconv.Atoi(matches[2])
		nsPerOp, _ := strconv.ParseFloat(matches[3], 64)

		var bytesPerOp, allocsPerOp int64
		if matches[4] != "" {
			bytesPerOp, _ = strconv.ParseInt(matches[4], 10, 64)
		}
		if matches[5] != "" {
			allocsPerOp, _ = strconv.ParseInt(matches[5], 10, 64)
		}

		op, impl, variant := splitName(name)
		results = append(results, BenchmarkResult{
			Name:        name,
			Package:     pkg,
			Operation:   op,
			Variant:     variant,
			Impl:        impl,
			Iterations:  iterations,
			NsPerOp:     nsPerOp,
			BytesPerOp:  bytesPerOp,
			AllocsPerOp: allocsPerOp,
		})
	}

	return results
}

// splitName breaks Benchmark<Op>/<impl>/<variant>-<procs> apart. Benchmarks
// without an impl element count as memkit-only.
func splitName(name string) (op, impl, variant string) {
	name = procsSuffix.ReplaceAllString(name, "")
	parts := strings.Split(strings.TrimPrefix(name, "Benchmark"), "/")
	op = parts[0]
	impl = implMemkit
	rest := parts[1:]
	if len(rest) > 0 && (rest[0] == implMemkit || rest[0] == implRuntime) {
		impl = rest[0]
		rest = rest[1:]
	}
	return op, impl, strings.Join(rest, "/")
}

func generateComparisons(results []BenchmarkResult) []ComparisonResult {
	type key struct {
		pkg, op, variant string
	}

	grouped := make(map[key]map[string]BenchmarkResult)
	for _, r := range results {
		k := key{r.Package, r.Operation, r.Variant}
		if grouped[k] == nil {
			grouped[k] = make(map[string]BenchmarkResult)
		}
		grouped[k][r.Impl] = r
	}

	var comparisons []ComparisonResult
	for k, impls := range grouped {
		mk, hasMemkit := impls[implMemkit]
		if !hasMemkit {
			continue
		}
		c := ComparisonResult{
			Package:      k.pkg,
			Operation:    k.op,
			Variant:      k.variant,
			MemkitNs:     mk.NsPerOp,
			MemkitMem:    mk.BytesPerOp,
			MemkitAllocs: mk.AllocsPerOp,
			MemkitOnly:   true,
		}
		if rt, ok := impls[implRuntime]; ok && mk.NsPerOp > 0 {
			c.RuntimeNs = rt.NsPerOp
			c.RuntimeMem = rt.BytesPerOp
			c.RuntimeAllocs = rt.AllocsPerOp
			c.Speedup = rt.NsPerOp / mk.NsPerOp
			c.MemkitOnly = false
		}
		comparisons = append(comparisons, c)
	}

	sort.Slice(comparisons, func(i, j int) bool {
		a, b := comparisons[i], comparisons[j]
		if a.Package != b.Package {
			return a.Package < b.Package
		}
		if a.Operation != b.Operation {
			return a.Operation < b.Operation
		}
		return a.Variant < b.Variant
	})
	return comparisons
}

func generateMarkdownReport(comparisons []ComparisonResult, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Benchmark Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", now.Format("2006-01-02 15:04:05"))

	faster, slower, only := 0, 0, 0
	totalSpeedup := 0.0
	for _, c := range comparisons {
		switch {
		case c.MemkitOnly:
			only++
		case c.Speedup >= 1.0:
			faster++
			totalSpeedup += c.Speedup
		default:
			slower++
			totalSpeedup += c.Speedup
		}
	}
	withBaseline := faster + slower

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- **Total benchmarks**: %d\n", len(comparisons))
	fmt.Fprintf(&sb, "- **With runtime baseline**: %d\n", withBaseline)
	if withBaseline > 0 {
		fmt.Fprintf(&sb, "  - memkit faster: %d (%.1f%%)\n", faster, float64(faster)/float64(withBaseline)*100)
		fmt.Fprintf(&sb, "  - runtime faster: %d (%.1f%%)\n", slower, float64(slower)/float64(withBaseline)*100)
		fmt.Fprintf(&sb, "  - Average speedup: **%.2fx**\n", totalSpeedup/float64(withBaseline))
	}
	fmt.Fprintf(&sb, "- **memkit only**: %d\n\n", only)

	sb.WriteString("## Detailed Results\n\n")
	sb.WriteString("| Package | Operation | Variant | memkit (ns/op) | runtime (ns/op) | Speedup | Memory (B/op) | Allocs |\n")
	sb.WriteString("|---------|-----------|---------|----------------|-----------------|---------|---------------|--------|\n")

	for _, c := range comparisons {
		if c.MemkitOnly {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | *N/A* | *memkit only* | %s | %s |\n",
				c.Package, c.Operation, c.Variant,
				formatNumber(c.MemkitNs),
				formatBytes(c.MemkitMem),
				formatNumber(float64(c.MemkitAllocs)),
			)
			continue
		}

		indicator, style := "✓", "**"
		if c.Speedup < 1.0 {
			indicator, style = "✗", ""
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s%.2fx%s %s | %s vs %s%s | %s vs %s%s |\n",
			c.Package, c.Operation, c.Variant,
			formatNumber(c.MemkitNs),
			formatNumber(c.RuntimeNs),
			style, c.Speedup, style, indicator,
			formatBytes(c.MemkitMem), formatBytes(c.RuntimeMem), compareMark(c.MemkitMem, c.RuntimeMem),
			formatNumber(float64(c.MemkitAllocs)), formatNumber(float64(c.RuntimeAllocs)),
			compareMark(c.MemkitAllocs, c.RuntimeAllocs),
		)
	}

	sb.WriteString("\n## Notes\n\n")
	sb.WriteString("- **Speedup > 1.0**: memkit is faster ✓\n")
	sb.WriteString("- **Speedup < 1.0**: the runtime baseline is faster ✗\n")
	sb.WriteString("- **Memory / Allocs**: Go heap traffic only; arena memory outside the Go heap is not counted\n")
	return sb.String()
}

func compareMark(memkit, runtime int64) string {
	switch {
	case memkit < runtime:
		return " ✓"
	case memkit > runtime:
		return " ✗"
	}
	return ""
}

func formatNumber(n float64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.2fM", n/1000000)
	} else if n >= 1000 {
		return fmt.Sprintf("%.1fK", n/1000)
	}
	return fmt.Sprintf("%.0f", n)
}

func formatBytes(b int64) string {
	if b >= 1024*1024 {
		return fmt.Sprintf("%.2fMB", float64(b)/(1024*1024))
	} else if b >= 1024 {
		return fmt.Sprintf("%.1fKB", float64(b)/1024)
	}
	return fmt.Sprintf("%dB", b)
}

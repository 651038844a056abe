// Command perf-regression compares two `go test -bench` outputs and fails
// when a tracked benchmark regressed beyond its allowed ratio. It is run in
// CI against a committed baseline capture.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

// benchSpec declares one tracked benchmark: which units to compare and an
// optional threshold override for noisy benchmarks.
type benchSpec struct {
	name      string
	units     []string
	threshold float64 // 0 means use the -threshold flag
}

// trackedBenchmarks is ordered; output is printed in this order.
var trackedBenchmarks = []benchSpec{
	{name: "BenchmarkValidateJWTOnly", units: []string{"ns/op", "allocs/op"}},
	{name: "BenchmarkValidateStrict", units: []string{"ns/op", "allocs/op"}},
	{name: "BenchmarkRefresh", units: []string{"ns/op"}},
	// Prometheus text rendering is allocation-heavy by nature; only guard
	// against pathological slowdowns.
	{name: "BenchmarkRender", units: []string{"ns/op"}, threshold: 1.0},
}

type sampleSet map[string]map[string][]float64

func main() {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
	)

	flag.StringVar(&baselinePath, "baseline", "", "path to baseline benchmark output")
	flag.StringVar(&candidatePath, "candidate", "", "path to candidate benchmark output")
	flag.Float64Var(&threshold, "threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	flag.Parse()

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	baseline, err := parseBenchmarkFile(baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseBenchmarkFile(candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	var failures []string
	fmt.Println("perf regression check:")
	fmt.Println("benchmark metric baseline candidate delta")

	for _, spec := range trackedBenchmarks {
		limit := spec.threshold
		if limit == 0 {
			limit = threshold
		}

		for _, unit := range spec.units {
			baseSamples := baseline[spec.name][unit]
			candidateSamples := candidate[spec.name][unit]
			if len(baseSamples) == 0 || len(candidateSamples) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", spec.name, unit))
				continue
			}

			baseMedian := median(baseSamples)
			candidateMedian := median(candidateSamples)
			if baseMedian <= 0 {
				failures = append(failures, fmt.Sprintf("invalid baseline median for %s %s", spec.name, unit))
				continue
			}

			delta := (candidateMedian - baseMedian) / baseMedian
			fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", spec.name, unit, baseMedian, candidateMedian, delta*100)
			if delta > limit {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)",
					spec.name, unit, delta*100, limit*100))
			}
		}
	}

	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "performance regression threshold exceeded:")
		for _, failure := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", failure)
		}
		os.Exit(1)
	}
}

func parseBenchmarkFile(path string) (sampleSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	tracked := map[string]struct{}{}
	for _, spec := range trackedBenchmarks {
		tracked[spec.name] = struct{}{}
	}

	samples := sampleSet{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Benchmark") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		name := stripProcSuffix(fields[0])
		if _, ok := tracked[name]; !ok {
			continue
		}
		if _, ok := samples[name]; !ok {
			samples[name] = map[string][]float64{}
		}

		// Benchmark lines alternate value/unit pairs after the iteration count.
		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			samples[name][fields[i+1]] = append(samples[name][fields[i+1]], value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// stripProcSuffix removes the trailing -GOMAXPROCS from a benchmark name
// (BenchmarkRefresh-8 becomes BenchmarkRefresh).
func stripProcSuffix(raw string) string {
	idx := strings.LastIndexByte(raw, '-')
	if idx <= 0 {
		return raw
	}
	if _, err := strconv.Atoi(raw[idx+1:]); err != nil {
		return raw
	}
	return raw[:idx]
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	copied := make([]float64, len(values))
	copy(copied, values)
	sort.Float64s(copied)

	mid := len(copied) / 2
	if len(copied)%2 == 1 {
		return copied[mid]
	}
	return (copied[mid-1] + copied[mid]) / 2
}

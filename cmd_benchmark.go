package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Command-line runner for the execution mode benchmark (benchmark.go).
//
// USAGE:
//   go run . benchmark                          # default widths 8,16,32
//   go run . benchmark -embed=16,64 -iterations=10
//   go run . benchmark -quick -json=bench.json
//
// EXPECTED PATTERN:
//   inference is the fastest by a wide margin: no graph nodes, no closures.
//   train-fwd pays for allocating one node per scalar operation.
//   train-step roughly doubles train-fwd (the backward pass touches every
//   node once more) plus the Adam update over all parameters.
//
// ===========================================================================

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// BenchmarkConfig holds command-line options.
type BenchmarkConfig struct {
	EmbedDims  []int
	Iterations int
	OutputJSON string
	QuickMode  bool
}

// RunBenchmarkCommand is the main entry point for the benchmark command.
func RunBenchmarkCommand(args []string) error {
	fs := flag.NewFlagSet("benchmark", flag.ExitOnError)

	config := BenchmarkConfig{}
	model := DefaultModelConfig()

	var embedStr string
	fs.StringVar(&embedStr, "embed", "8,16,32", "Embedding widths to benchmark (comma-separated)")
	fs.IntVar(&config.Iterations, "iterations", 5, "Runs over a full context per mode")
	fs.StringVar(&config.OutputJSON, "json", "", "Output JSON file")
	fs.BoolVar(&config.QuickMode, "quick", false, "Quick mode (one width, fewer iterations)")
	fs.IntVar(&model.NumLayers, "layers", model.NumLayers, "Number of transformer layers")
	fs.IntVar(&model.NumHeads, "heads", model.NumHeads, "Number of attention heads")
	fs.IntVar(&model.ContextLen, "context", model.ContextLen, "Context length")

	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, s := range strings.Split(embedStr, ",") {
		dim, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || dim <= 0 {
			return fmt.Errorf("invalid embedding width %q", s)
		}
		config.EmbedDims = append(config.EmbedDims, dim)
	}

	if config.QuickMode {
		config.EmbedDims = []int{model.EmbedDim}
		config.Iterations = 2
	}
	if config.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", config.Iterations)
	}

	discardLogging()

	suite, err := RunBenchmarkSuite(model, config.EmbedDims, config.Iterations)
	if err != nil {
		return err
	}
	suite.PrintSummary()

	if config.OutputJSON != "" {
		if err := suite.SaveJSON(config.OutputJSON); err != nil {
			return fmt.Errorf("failed to save results: %w", err)
		}
		fmt.Printf("Results saved to %s\n", config.OutputJSON)
	}
	return nil
}

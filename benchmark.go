package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Measures how fast the two execution modes of the same model run, so the
// cost of building a computation graph is visible next to the plain float
// path.
//
// WHAT WE'RE MEASURING:
//   inference    Forward() over a full context, one token at a time, with
//                the float KV cache. This is what every agent pays per tick.
//   train-fwd    ForwardTrain() over the same tokens: identical arithmetic
//                plus one graph node per operation.
//   train-step   TrainOnSequence(): graph forward, loss, backward pass and an
//                Adam update. This is what the trainer pays per sequence.
//
// All three report tokens per second. Speedup is relative to train-step,
// the slowest mode.
//
// ===========================================================================

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"runtime"
	"strings"
	"time"
)

// BenchmarkResult is one measured mode at one model width.
type BenchmarkResult struct {
	Mode          string        `json:"mode"`
	EmbedDim      int           `json:"embed_dim"`
	Params        int           `json:"params"`
	Iterations    int           `json:"iterations"`
	Tokens        int           `json:"tokens"`
	TotalTime     time.Duration `json:"total_time_ns"`
	AvgPerToken   time.Duration `json:"avg_per_token_ns"`
	TokensPerSec  float64       `json:"tokens_per_sec"`
	SpeedupVsStep float64       `json:"speedup_vs_train_step"`
}

// BenchmarkSuite is every result of one run.
type BenchmarkSuite struct {
	Timestamp time.Time         `json:"timestamp"`
	Host      HostInfo          `json:"host"`
	Model     ModelConfig       `json:"model"`
	Results   []BenchmarkResult `json:"results"`
}

// HostInfo describes where the benchmark ran.
type HostInfo struct {
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	NumCPU    int    `json:"num_cpu"`
	GoVersion string `json:"go_version"`
}

// DetectHost gathers information about the current system.
func DetectHost() HostInfo {
	return HostInfo{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		NumCPU:    runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}
}

type benchMode struct {
	name string
	run  func(m *Model, tokens []int) error
}

var benchModes = []benchMode{
	{"inference", func(m *Model, tokens []int) error {
		cache := m.NewCache()
		for pos, tok := range tokens[:len(tokens)-1] {
			if _, err := m.Forward(tok, pos, cache); err != nil {
				return err
			}
		}
		return nil
	}},
	{"train-fwd", func(m *Model, tokens []int) error {
		cache := m.NewTrainCache()
		for pos, tok := range tokens[:len(tokens)-1] {
			if _, err := m.ForwardTrain(tok, pos, cache); err != nil {
				return err
			}
		}
		return nil
	}},
	{"train-step", func(m *Model, tokens []int) error {
		_, err := m.TrainOnSequence(tokens, 0.001)
		return err
	}},
}

// RunBenchmarkSuite measures every mode for each embedding width. base
// supplies the rest of the model shape.
func RunBenchmarkSuite(base ModelConfig, embedDims []int, iterations int) (*BenchmarkSuite, error) {
	suite := &BenchmarkSuite{
		Timestamp: time.Now(),
		Host:      DetectHost(),
		Model:     base,
	}

	fmt.Println("=== Execution Mode Benchmark ===")
	fmt.Printf("Host: %s/%s (%d cores, %s)\n",
		suite.Host.OS, suite.Host.Arch, suite.Host.NumCPU, suite.Host.GoVersion)
	fmt.Printf("Timestamp: %s\n", suite.Timestamp.Format(time.RFC3339))
	fmt.Println()

	rng := rand.New(rand.NewSource(base.Seed))
	for _, embed := range embedDims {
		cfg := base
		cfg.EmbedDim = embed
		if err := cfg.Validate(); err != nil {
			return nil, err
		}

		tokens := make([]int, cfg.ContextLen+1)
		for i := range tokens {
			tokens[i] = rng.Intn(cfg.VocabSize)
		}
		perRun := cfg.ContextLen

		fmt.Printf("Benchmarking embed dim %d\n", embed)
		var group []BenchmarkResult
		for _, mode := range benchModes {
			model, err := NewModel(cfg, DefaultAdamConfig())
			if err != nil {
				return nil, err
			}

			fmt.Printf("  %-10s... ", mode.name)
			start := time.Now()
			for i := 0; i < iterations; i++ {
				if err := mode.run(model, tokens); err != nil {
					return nil, fmt.Errorf("benchmark %s: %w", mode.name, err)
				}
			}
			total := time.Since(start)
			n := perRun * iterations

			r := BenchmarkResult{
				Mode:         mode.name,
				EmbedDim:     embed,
				Params:       model.ParamCount(),
				Iterations:   iterations,
				Tokens:       n,
				TotalTime:    total,
				AvgPerToken:  total / time.Duration(n),
				TokensPerSec: float64(n) / total.Seconds(),
			}
			group = append(group, r)
			fmt.Printf("%.0f tokens/s\n", r.TokensPerSec)
		}

		step := group[len(group)-1].TokensPerSec
		for i := range group {
			group[i].SpeedupVsStep = group[i].TokensPerSec / step
		}
		suite.Results = append(suite.Results, group...)
		fmt.Println()
	}

	return suite, nil
}

// SaveJSON writes the suite to filename.
func (suite *BenchmarkSuite) SaveJSON(filename string) error {
	data, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return os.WriteFile(filename, data, 0644)
}

// PrintSummary prints a table of every result followed by a bar chart of
// the widest model.
func (suite *BenchmarkSuite) PrintSummary() {
	fmt.Println("=== Benchmark Summary ===")
	fmt.Println()
	fmt.Printf("  %-10s %6s %8s %14s %14s %9s\n", "Mode", "Embed", "Params", "Per token", "Tokens/s", "Speedup")
	fmt.Println("  " + strings.Repeat("-", 66))
	for _, r := range suite.Results {
		fmt.Printf("  %-10s %6d %8d %14v %14.0f %8.2fx\n",
			r.Mode, r.EmbedDim, r.Params, r.AvgPerToken, r.TokensPerSec, r.SpeedupVsStep)
	}
	fmt.Println()
	suite.printASCIIChart()
}

func (suite *BenchmarkSuite) printASCIIChart() {
	maxEmbed := 0
	for _, r := range suite.Results {
		maxEmbed = max(maxEmbed, r.EmbedDim)
	}

	var results []BenchmarkResult
	maxTPS := 0.0
	for _, r := range suite.Results {
		if r.EmbedDim == maxEmbed {
			results = append(results, r)
			maxTPS = math.Max(maxTPS, r.TokensPerSec)
		}
	}
	if maxTPS == 0 {
		return
	}

	const barWidth = 60
	fmt.Printf("Embed dim %d, scale: %.0f tokens/s = %d chars\n", maxEmbed, maxTPS, barWidth)
	fmt.Println()
	for _, r := range results {
		barLen := int(math.Round(r.TokensPerSec / maxTPS * barWidth))
		fmt.Printf("%-12s │%s %.0f (%.2fx)\n", r.Mode, strings.Repeat("█", barLen), r.TokensPerSec, r.SpeedupVsStep)
	}
	fmt.Println()
}

package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) > 1 {
		cmd := os.Args[1]
		var run func([]string) error
		switch cmd {
		case "simulate":
			run = RunSimulateCommand
		case "visualize":
			run = RunVisualizeCommand
		case "benchmark":
			run = RunBenchmarkCommand
		case "inspect":
			run = RunInspectCommand
		case "help", "-h", "--help":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
			printUsage()
			os.Exit(1)
		}
		if err := run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Default: show help
	printUsage()
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  go run . [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  simulate    Run foraging episodes and train the shared policy between them")
	fmt.Println("  visualize   Follow one agent and print its attention heatmaps")
	fmt.Println("  benchmark   Compare inference and training throughput")
	fmt.Println("  inspect     Show parameter shapes, norms and token embeddings")
	fmt.Println("  help        Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  go run . simulate -iterations=10 -metrics=run.html")
	fmt.Println("  go run . simulate -config=run.json -population=20 -v")
	fmt.Println("  go run . visualize -train=3 -ticks=5")
	fmt.Println("  go run . benchmark -embed=8,16,32 -json=bench.json")
	fmt.Println("  go run . inspect -train=5 -embeddings")
	fmt.Println()
}

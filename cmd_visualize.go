package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

// ===========================================================================
// VISUALIZATION CLI - Attention Heatmaps of a Live Agent
// ===========================================================================
//
// Runs a small population in the arena, optionally trains it for a few
// iterations first, then follows one agent tick by tick and prints what
// its last token attended to.
//
// Each heatmap row is one head; each cell one cached position (BOS,
// observation tokens, action tokens). Darker means more weight.
//
// USAGE:
//   go run . visualize -ticks=5
//   go run . visualize -train=3 -ticks=5 -greedy
//
// ===========================================================================

// RunVisualizeCommand implements the visualization CLI.
func RunVisualizeCommand(args []string) error {
	fs := flag.NewFlagSet("visualize", flag.ExitOnError)

	ticks := fs.Int("ticks", 4, "Ticks to follow the agent for")
	train := fs.Int("train", 0, "Iterations to train before visualizing")
	population := fs.Int("population", 8, "Number of agents")
	greedy := fs.Bool("greedy", false, "Pick the most likely action instead of sampling")
	seed := fs.Int64("seed", 1, "Seed for model init, sampling and arena")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ticks <= 0 {
		return fmt.Errorf("ticks must be positive, got %d", *ticks)
	}

	discardLogging()

	cfg := DefaultSessionConfig()
	cfg.Population = *population
	cfg.Model.Seed = *seed
	cfg.Agent.Seed = *seed
	if *greedy {
		cfg.Agent.Temperature = 0
	}
	arenaCfg := DefaultArenaConfig()
	arenaCfg.Seed = *seed

	fmt.Println("===========================================================================")
	fmt.Println("ATTENTION WEIGHT VISUALIZATION")
	fmt.Println("===========================================================================")
	fmt.Println()

	fmt.Println("Step 1: Building session and arena")
	session, err := NewSession(cfg)
	if err != nil {
		return err
	}
	arena, err := NewArena(arenaCfg, session.Agents())
	if err != nil {
		return err
	}
	fmt.Printf("  %d agents, %d params\n", cfg.Population, session.Model().ParamCount())
	fmt.Println()

	if *train > 0 {
		fmt.Printf("Step 2: Training for %d iterations\n", *train)
		if err := runSimulation(context.Background(), session, arena, *train, NewEpisodeMetrics()); err != nil {
			return err
		}
		fmt.Println()
	}

	agent := session.Agents()[0]
	creature := arena.Creatures()[0]
	vocab := agent.Vocabulary()

	fmt.Printf("Step 3: Following agent %s\n", agent.ID)
	fmt.Println("-------------------------------------------------------------------")
	for t := 0; t < *ticks; t++ {
		if !creature.Alive {
			fmt.Println("  Agent died.")
			break
		}
		if err := arena.Tick(cfg.Tick); err != nil {
			return err
		}

		ctxTokens := agent.Context()
		labels := make([]string, len(ctxTokens))
		for i, tok := range ctxTokens {
			labels[i] = tokenLabel(vocab, tok)
		}

		fmt.Printf("Tick %d: pos (%.2f, %.2f) heading %.0f° speed %.1f, cache %d/%d\n",
			t, creature.Position.X, creature.Position.Y, creature.Angle, creature.Speed,
			agent.CacheLen(), session.Model().Config().ContextLen)
		RenderAttention(os.Stdout, agent.LastAttention(), labels)
		fmt.Println()
	}
	fmt.Println("-------------------------------------------------------------------")
	return nil
}

// tokenLabel names a token by its partition and bin, e.g. "left3".
func tokenLabel(v Vocabulary, tok int) string {
	if tok == v.BOS {
		return "BOS"
	}
	if p, ok := v.PartitionOf(tok); ok {
		return fmt.Sprintf("%s%d", p.Name, p.Bin(tok))
	}
	return fmt.Sprintf("[%d]", tok)
}

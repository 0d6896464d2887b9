package main

import (
	"context"
	"flag"
	"fmt"
)

// ===========================================================================
// INSPECT CLI - Parameters and Token Embeddings
// ===========================================================================
//
// Prints what the policy is made of: every weight matrix with its shape and
// Frobenius norm, the total parameter count, and optionally a PCA of the
// token embedding table (one 2D point per token).
//
// With -train=N the model is first trained for N iterations in a small
// headless arena, which makes the norms and the embedding layout worth
// comparing against a fresh model.
//
// USAGE:
//   go run . inspect
//   go run . inspect -train=5 -embeddings
//
// ===========================================================================

// RunInspectCommand implements the inspect CLI.
func RunInspectCommand(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)

	train := fs.Int("train", 0, "Iterations to train before inspecting")
	population := fs.Int("population", 16, "Number of agents used for training")
	embeddings := fs.Bool("embeddings", false, "Print a PCA of the token embeddings")
	seed := fs.Int64("seed", 1, "Seed for model init, sampling and arena")

	if err := fs.Parse(args); err != nil {
		return err
	}

	discardLogging()

	cfg := DefaultSessionConfig()
	cfg.Population = *population
	cfg.Model.Seed = *seed
	cfg.Agent.Seed = *seed
	session, err := NewSession(cfg)
	if err != nil {
		return err
	}
	model := session.Model()

	fmt.Println("===========================================================================")
	fmt.Println("MODEL INSPECTION")
	fmt.Println("===========================================================================")
	fmt.Println()

	if *train > 0 {
		arenaCfg := DefaultArenaConfig()
		arenaCfg.Seed = *seed
		arena, err := NewArena(arenaCfg, session.Agents())
		if err != nil {
			return err
		}
		fmt.Printf("Training for %d iterations\n", *train)
		if err := runSimulation(context.Background(), session, arena, *train, NewEpisodeMetrics()); err != nil {
			return err
		}
		fmt.Println()
	}

	mc := model.Config()
	fmt.Printf("Config: vocab %d, embed %d, heads %d (dim %d), layers %d, context %d\n",
		mc.VocabSize, mc.EmbedDim, mc.NumHeads, mc.HeadDim(), mc.NumLayers, mc.ContextLen)
	fmt.Printf("Adam steps: %d\n", model.Optimizer().Steps())
	fmt.Println()

	fmt.Printf("  %-20s %10s %10s %12s\n", "Matrix", "Shape", "Params", "Norm")
	fmt.Println("  " + "------------------------------------------------------------")
	for _, m := range model.Params().Matrices() {
		fmt.Printf("  %-20s %10s %10d %12.6f\n",
			m.Name, fmt.Sprintf("%dx%d", m.Rows, m.Cols), m.Rows*m.Cols, m.Norm())
	}
	fmt.Println("  " + "------------------------------------------------------------")
	fmt.Printf("  %-20s %10s %10d\n", "total", "", model.ParamCount())
	fmt.Println()

	if *embeddings {
		wte, ok := model.Params().Get("wte")
		if !ok {
			return fmt.Errorf("model has no token embedding matrix")
		}
		proj, err := PCA(wte, 2)
		if err != nil {
			return err
		}
		vocab := cfg.Vocabulary
		fmt.Printf("Token embeddings (PCA, %.1f%% of variance)\n", proj.Explained()*100)
		for tok := 0; tok < wte.Rows; tok++ {
			fmt.Printf("  %-10s %9.4f %9.4f\n",
				tokenLabel(vocab, tok), proj.Coords.At(tok, 0), proj.Coords.At(tok, 1))
		}
		fmt.Println()
	}
	return nil
}

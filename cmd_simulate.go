package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
)

// ===========================================================================
// SIMULATION CLI - Running the Episode / Training Loop Headlessly
// ===========================================================================
//
// This command drives the whole system end to end without a renderer:
//
//   Idle → Simulating (arena ticks, agents act and record)
//        → EndEpisode (collect trajectories, keep the best, enter Training)
//        → Training (a few sequence steps per frame until the budget is spent)
//        → Simulating ...
//
// An episode ends when its simulated duration is up or every creature is
// dead. Each finished iteration prints one line of statistics.
//
// CONFIGURATION:
//   Defaults come from DefaultSessionConfig() and DefaultArenaConfig().
//   -config=run.json overrides any subset of them:
//
//     {
//       "iterations": 10,
//       "session": {"Population": 20, "Trainer": {"StepsPerPhase": 60}},
//       "arena": {"FoodSupply": 40}
//     }
//
//   Flags given on the command line win over the file.
//
// ===========================================================================

// SimulationFile is the layout of a -config file.
type SimulationFile struct {
	Iterations int           `json:"iterations"`
	Session    SessionConfig `json:"session"`
	Arena      ArenaConfig   `json:"arena"`
}

// loadSimulationFile decodes path over the defaults in sim.
func loadSimulationFile(path string, sim *SimulationFile) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, sim); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// RunSimulateCommand implements the simulate CLI.
func RunSimulateCommand(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)

	configPath := fs.String("config", "", "JSON file overriding the default configuration")
	iterations := fs.Int("iterations", 5, "Episode + training iterations to run")
	population := fs.Int("population", 0, "Number of agents (default from config)")
	duration := fs.Float64("duration", 0, "Episode duration in simulated seconds (default from config)")
	food := fs.Int("food", 0, "Food points in the arena (default from config)")
	steps := fs.Int("steps", 0, "Training steps per phase (default from config)")
	lr := fs.Float64("lr", 0, "Learning rate (default from config)")
	temperature := fs.Float64("temperature", -1, "Sampling temperature (default from config)")
	seed := fs.Int64("seed", 0, "Seed for model init, sampling and arena (0 keeps config)")
	metricsPath := fs.String("metrics", "", "Write an HTML report of the run to this file")
	verbose := fs.Bool("v", false, "Verbose (debug) logging")

	if err := fs.Parse(args); err != nil {
		return err
	}

	sim := SimulationFile{
		Iterations: 5,
		Session:    DefaultSessionConfig(),
		Arena:      DefaultArenaConfig(),
	}
	if *configPath != "" {
		if err := loadSimulationFile(*configPath, &sim); err != nil {
			return err
		}
	}

	// Flags set explicitly override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "iterations":
			sim.Iterations = *iterations
		case "population":
			sim.Session.Population = *population
		case "duration":
			sim.Session.EpisodeDuration = *duration
		case "food":
			sim.Arena.FoodSupply = *food
		case "steps":
			sim.Session.Trainer.StepsPerPhase = *steps
		case "lr":
			sim.Session.Trainer.LearningRate = *lr
		case "temperature":
			sim.Session.Agent.Temperature = *temperature
		case "seed":
			sim.Session.Model.Seed = *seed
			sim.Session.Agent.Seed = *seed
			sim.Arena.Seed = *seed
		}
	})
	if sim.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", sim.Iterations)
	}

	setupLogging(os.Stderr, *verbose)

	fmt.Println("===========================================================================")
	fmt.Println("FORAGING SIMULATION WITH A SHARED TRANSFORMER POLICY")
	fmt.Println("===========================================================================")
	fmt.Println()

	fmt.Println("Step 1: Building session")
	session, err := NewSession(sim.Session)
	if err != nil {
		return err
	}
	mc := session.Model().Config()
	fmt.Printf("  Model: %d layers, %d embed dim, %d heads, %d context, %d params\n",
		mc.NumLayers, mc.EmbedDim, mc.NumHeads, mc.ContextLen, session.Model().ParamCount())
	fmt.Printf("  Population: %d, episode %.0fs at %.0f ticks/s\n",
		sim.Session.Population, sim.Session.EpisodeDuration, 1/sim.Session.Tick)
	fmt.Println()

	fmt.Println("Step 2: Building arena")
	arena, err := NewArena(sim.Arena, session.Agents())
	if err != nil {
		return err
	}
	fmt.Printf("  Bounds [%g,%g]×[%g,%g], %d food\n",
		sim.Arena.MinX, sim.Arena.MaxX, sim.Arena.MinY, sim.Arena.MaxY, sim.Arena.FoodSupply)
	fmt.Println()

	fmt.Printf("Step 3: Running %d iterations\n", sim.Iterations)
	fmt.Println("-------------------------------------------------------------------")
	metrics := NewEpisodeMetrics()
	if err := runSimulation(context.Background(), session, arena, sim.Iterations, metrics); err != nil {
		return err
	}
	fmt.Println("-------------------------------------------------------------------")
	fmt.Println()

	if *metricsPath != "" {
		fmt.Println("Step 4: Saving metrics")
		if err := metrics.SaveHTML(*metricsPath); err != nil {
			return fmt.Errorf("failed to save metrics: %w", err)
		}
		fmt.Printf("  Report saved to: %s\n", *metricsPath)
		fmt.Println()
	}

	fmt.Printf("Done. Adam steps: %d, effective lr now %.6f\n",
		session.Model().Optimizer().Steps(),
		session.Model().Optimizer().EffectiveLR(sim.Session.Trainer.LearningRate))
	return nil
}

// runSimulation drives session and arena until the given number of
// iterations has completed, recording each one into metrics.
func runSimulation(ctx context.Context, session *Session, arena *Arena, iterations int, metrics *EpisodeMetrics) error {
	tick := session.Config().Tick
	var food, alive int
	started := time.Now()

	session.Start()
	for session.Iteration() < iterations {
		switch session.Phase() {
		case PhaseSimulating:
			if err := arena.Tick(tick); err != nil {
				return err
			}
			if session.Advance() || arena.AllDead() {
				food, alive = arena.FoodEaten(), arena.AliveCount()
				if _, err := session.EndEpisode(ctx); err != nil {
					return err
				}
			}
		case PhaseTraining:
			if session.Update(ctx) {
				hist := session.History()
				rec := hist[len(hist)-1]
				metrics.Record(rec, food, alive)
				fmt.Printf("Iter %3d | reward mean %7.2f best %7.2f | food %3d alive %3d | kept %2d | loss %.4f | %v\n",
					rec.Iteration, rec.MeanReward, rec.BestReward, food, alive,
					rec.Selected, rec.Loss, time.Since(started).Round(time.Millisecond))
				arena.Reset()
				started = time.Now()
			}
		default:
			return fmt.Errorf("unexpected phase %s", session.Phase())
		}
	}
	return nil
}

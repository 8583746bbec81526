package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/danielpatrickdp/nef-optimizer/internal/codec"
	"github.com/danielpatrickdp/nef-optimizer/internal/config"
	"github.com/danielpatrickdp/nef-optimizer/internal/objective"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// #region root
var (
	cfgPath       string
	dbPath        string
	objectiveName string
	objectiveAddr string
	learningRate  float64
	maxIterations int
	seed          int64
)

var rootCmd = &cobra.Command{
	Use:   "nef",
	Short: "Health-modulated gradient optimizer",
	Long: `nef minimizes objective functions with a gradient-descent loop whose step
size is scaled by a composite health score. When the detectors see a plateau,
oscillation or low health, the optimizer pauses and applies an integration
strategy instead of stepping.

Runs are stored in SQLite (NEF_DB) and can be inspected, replayed and
exported as JSON fixtures. Objectives are either built in (rosenbrock, sphere,
tradeoff) or served over gRPC by "nef serve" (NEF_OBJECTIVE_ADDR).`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "path to a YAML config file")
	pf.StringVar(&dbPath, "db", "", "path to the run store (overrides config and NEF_DB)")
	pf.StringVar(&objectiveName, "objective", "", "objective to minimize")
	pf.StringVar(&objectiveAddr, "objective-addr", "", "remote objective server address")
	pf.Float64Var(&learningRate, "lr", 0, "learning rate")
	pf.IntVar(&maxIterations, "iterations", 0, "maximum iterations")
	pf.Int64Var(&seed, "seed", 0, "random seed for integration perturbations")
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("nef: ")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion root

// #region settings
// loadConfig builds the effective configuration: the YAML file (or defaults),
// then environment overrides, then any flags set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if cfgPath != "" {
		loaded, err := config.LoadConfig(cfgPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Store.Path = dbPath
	}
	if flags.Changed("objective") {
		cfg.Objective.Name = objectiveName
	}
	if flags.Changed("objective-addr") {
		cfg.Objective.Addr = objectiveAddr
	}
	if flags.Changed("lr") {
		cfg.Optimizer.LearningRate = learningRate
	}
	if flags.Changed("iterations") {
		cfg.Optimizer.MaxIterations = maxIterations
	}
	if flags.Changed("seed") {
		cfg.Optimizer.Seed = seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// resolveProblem returns the configured problem, local or remote. The returned
// close function releases the remote connection.
func resolveProblem(ctx context.Context, cfg *config.Config) (objective.Problem, func() error, error) {
	noop := func() error { return nil }
	if cfg.Objective.Addr == "" {
		p, err := objective.Lookup(cfg.Objective.Name)
		return p, noop, err
	}

	var opts []codec.ClientOption
	if cfg.Objective.RateLimit > 0 {
		opts = append(opts, codec.WithRateLimit(rate.Limit(cfg.Objective.RateLimit), cfg.Objective.Burst))
	}
	client, err := codec.NewObjectiveClient(cfg.Objective.Addr, opts...)
	if err != nil {
		return objective.Problem{}, noop, err
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return objective.Problem{}, noop, fmt.Errorf("objective server %s: %w", cfg.Objective.Addr, err)
	}
	p, err := client.Problem(ctx, cfg.Objective.Name)
	if err != nil {
		client.Close()
		return objective.Problem{}, noop, err
	}
	log.Printf("using remote objective %s at %s", cfg.Objective.Name, cfg.Objective.Addr)
	return p, client.Close, nil
}

// #endregion settings

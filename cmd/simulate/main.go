package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pipewise/ferrite/internal/config"
	"github.com/pipewise/ferrite/internal/core"
	"github.com/pipewise/ferrite/internal/core/model"
	"github.com/pipewise/ferrite/internal/loader"
)

// One-shot runner: load the ten CSV tables from a directory, run the
// simulation, write the result bundle as JSON.
func main() {
	var (
		dataDir    = flag.String("data", ".", "directory containing the ten input CSV tables")
		iliDate    = flag.String("ili-date", "2023-01-01", "inspection date (YYYY-MM-DD)")
		targetDate = flag.String("target-date", "2028-01-01", "projection target date (YYYY-MM-DD)")
		threshold  = flag.Float64("threshold", 0.10, "ILI detection threshold (fraction of wall thickness)")
		samples    = flag.Int("samples", 0, "Monte Carlo samples per defect-year (0 = configured default)")
		seed       = flag.Uint64("seed", 0, "random seed (0 = configured default)")
		cfgPath    = flag.String("config", "config/config.toml", "path to config file")
		out        = flag.String("out", "", "output file for the result bundle JSON (default stdout)")
		timeout    = flag.Duration("timeout", 0, "overall run timeout (0 = none)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyEnv()

	t0, err := time.Parse("2006-01-02", *iliDate)
	if err != nil {
		log.Fatalf("Invalid -ili-date: %v", err)
	}
	t1, err := time.Parse("2006-01-02", *targetDate)
	if err != nil {
		log.Fatalf("Invalid -target-date: %v", err)
	}

	tables, err := loader.LoadDir(*dataDir)
	if err != nil {
		log.Fatalf("Failed to load input tables: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	engine := core.NewEngine(cfg, logger)
	bundle, err := engine.Run(ctx, tables, model.Params{
		ILIDate:            t0,
		TargetDate:         t1,
		DetectionThreshold: *threshold,
		Samples:            *samples,
		Seed:               *seed,
	})
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bundle); err != nil {
		log.Fatalf("Failed to write result bundle: %v", err)
	}
}

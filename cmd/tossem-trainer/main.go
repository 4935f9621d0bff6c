// Command tossem-trainer runs multi-threaded external-sampling CFR over
// three-card Hold'em with a public discard and writes the resulting
// strategy table to a binary file.
package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lox/tossem/trainer"
)

var cli struct {
	Debug bool `help:"enable debug logging"`

	Iters      int64  `short:"i" help:"number of CFR iterations" default:"1000000"`
	Threads    int    `short:"t" help:"number of worker goroutines (0 uses hardware concurrency - 1)" default:"0"`
	Batch      int64  `short:"b" help:"target iterations per worker between merges" default:"20000"`
	Checkpoint int64  `short:"c" help:"write a checkpoint every N iterations (0 disables)" default:"500000"`
	Out        string `short:"o" help:"path to write the trained strategy table" default:"cfr_strategy.bin"`
	Seed       uint64 `help:"RNG seed source; 0 is a valid seed" default:"0"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("tossem-trainer"),
		kong.Description("train a Toss'em betting policy via external-sampling CFR"),
		kong.UsageOnError(),
	)

	setupLogger(cli.Debug)

	threads := cli.Threads
	if threads <= 0 {
		threads = trainer.DefaultThreads()
	}

	cfg := trainer.Config{
		Iterations:      cli.Iters,
		Threads:         threads,
		BatchSize:       cli.Batch,
		CheckpointEvery: cli.Checkpoint,
		OutPath:         cli.Out,
		Seed:            cli.Seed,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().Int64("iterations", cfg.Iterations).Int("threads", cfg.Threads).
		Int64("batch", cfg.BatchSize).Int64("checkpoint_every", cfg.CheckpointEvery).
		Str("out", cfg.OutPath).Msg("starting training run")

	tr := trainer.New(cfg)
	progress := func(p trainer.Progress) {
		log.Info().Int64("iteration", p.Iteration).Int("infosets", p.Infosets).
			Dur("elapsed", p.Elapsed).Dur("batch_elapsed", p.BatchElapsed).Msg("progress")
	}

	if err := tr.Run(context.Background(), progress); err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}
}

func setupLogger(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}

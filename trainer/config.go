package trainer

import (
	"errors"
	"runtime"
)

// Config aggregates the parameters that control one training run.
type Config struct {
	// Iterations is the total number of CFR iterations (one fresh deal
	// and two recursive traversals each) to run across all workers.
	Iterations int64

	// Threads is the number of worker goroutines traversing concurrently.
	Threads int

	// BatchSize is the target number of iterations a worker runs before
	// its table is merged into the global table.
	BatchSize int64

	// CheckpointEvery writes a checkpoint file after this many completed
	// iterations; 0 disables periodic checkpoints.
	CheckpointEvery int64

	// OutPath is where the final trained table is written.
	OutPath string

	// Seed is XORed with (done + worker_index*1337) to derive each
	// worker's RNG seed. 0 is a valid seed (not treated as "unset").
	Seed uint64
}

// Validate rejects malformed configuration before a run starts.
func (c Config) Validate() error {
	if c.Iterations <= 0 {
		return errors.New("iterations must be > 0")
	}
	if c.Threads <= 0 {
		return errors.New("threads must be > 0")
	}
	if c.BatchSize <= 0 {
		return errors.New("batch size must be > 0")
	}
	if c.CheckpointEvery < 0 {
		return errors.New("checkpoint interval cannot be negative")
	}
	if c.OutPath == "" {
		return errors.New("out path must not be empty")
	}
	return nil
}

// DefaultThreads returns hardware concurrency minus one, floored at one.
func DefaultThreads() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		return 1
	}
	return n
}

// DefaultConfig returns the CLI's documented defaults.
func DefaultConfig() Config {
	return Config{
		Iterations:      1_000_000,
		Threads:         DefaultThreads(),
		BatchSize:       20_000,
		CheckpointEvery: 500_000,
		OutPath:         "cfr_strategy.bin",
	}
}

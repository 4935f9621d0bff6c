// Package trainer drives multi-worker external-sampling CFR over the
// Toss'em game tree: per-worker tables traversed without locking, merged
// into a global table at batch boundaries, with periodic checkpoints and
// a final binary artifact.
package trainer

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/tossem/abstraction"
	"github.com/lox/tossem/cfr"
	"github.com/lox/tossem/game"
)

// workerSeedStride spaces out per-worker RNG seeds so that two workers
// never draw the same stream even when started in the same batch.
const workerSeedStride = 1337

// Progress is reported to the caller's callback after each merged batch.
type Progress struct {
	Iteration    int64
	Infosets     int
	Elapsed      time.Duration
	BatchElapsed time.Duration
}

// Trainer owns the global merged table and the configuration for a run.
type Trainer struct {
	cfg   Config
	table cfr.Table
	done  int64
}

// New constructs a Trainer ready to Run. cfg must already be valid.
func New(cfg Config) *Trainer {
	return &Trainer{
		cfg:   cfg,
		table: make(cfr.Table),
	}
}

// Table exposes the accumulated global table, e.g. for a caller that wants
// to write it out itself instead of via Run's own checkpoint/final save.
func (t *Trainer) Table() cfr.Table { return t.table }

// Iteration returns the number of completed iterations so far, capped at
// the configured Iterations.
func (t *Trainer) Iteration() int64 { return t.done }

// Run drives the full training loop to completion, calling progress after
// every merged batch and writing checkpoints and the final artifact per
// cfg. It returns the first error encountered from a worker, a checkpoint
// write, or the final save.
func (t *Trainer) Run(ctx context.Context, progress func(Progress)) error {
	if err := t.cfg.Validate(); err != nil {
		return err
	}

	start := time.Now()
	nextCheckpoint := t.cfg.CheckpointEvery

	for t.done < t.cfg.Iterations {
		batchStart := time.Now()
		remaining := t.cfg.Iterations - t.done
		perWorker := batchSize(remaining, t.cfg.BatchSize, t.cfg.Threads)

		merged, err := t.runBatch(ctx, perWorker)
		if err != nil {
			return fmt.Errorf("trainer: batch at iteration %d: %w", t.done, err)
		}
		mergeInto(t.table, merged)
		t.done += perWorker * int64(t.cfg.Threads)
		if t.done > t.cfg.Iterations {
			t.done = t.cfg.Iterations
		}

		if progress != nil {
			progress(Progress{
				Iteration:    t.done,
				Infosets:     len(t.table),
				Elapsed:      time.Since(start),
				BatchElapsed: time.Since(batchStart),
			})
		}

		if t.cfg.CheckpointEvery > 0 && t.done >= nextCheckpoint {
			path := checkpointPath(t.cfg.OutPath, t.done)
			if err := WriteTable(path, t.done, t.table); err != nil {
				return fmt.Errorf("trainer: write checkpoint: %w", err)
			}
			log.Info().Str("path", path).Int64("iteration", t.done).Msg("checkpoint written")
			nextCheckpoint += t.cfg.CheckpointEvery
		}
	}

	if err := WriteTable(t.cfg.OutPath, t.done, t.table); err != nil {
		return fmt.Errorf("trainer: write final artifact: %w", err)
	}
	log.Info().Str("path", t.cfg.OutPath).Int64("iterations", t.done).Int("infosets", len(t.table)).
		Msg("training completed")
	return nil
}

// batchSize picks how many iterations each of threads workers runs before
// the next merge: the configured hint, clamped to remaining/threads + 1 (and
// at least 1), so the last batch can overshoot the remaining iteration
// budget by up to threads iterations.
func batchSize(remaining, hint int64, threads int) int64 {
	perWorkerBudget := remaining/int64(threads) + 1
	if hint < perWorkerBudget {
		return max64(1, hint)
	}
	return max64(1, perWorkerBudget)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// runBatch fans perWorker iterations out across t.cfg.Threads goroutines,
// each with its own table and PCG-seeded RNG, and returns the per-worker
// tables for the caller to merge.
func (t *Trainer) runBatch(ctx context.Context, perWorker int64) ([]cfr.Table, error) {
	tables := make([]cfr.Table, t.cfg.Threads)
	g, _ := errgroup.WithContext(ctx)

	for w := 0; w < t.cfg.Threads; w++ {
		w := w
		g.Go(func() error {
			seed := t.cfg.Seed ^ uint64(t.done+int64(w)*workerSeedStride)
			rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
			local := make(cfr.Table)
			var s game.State

			for i := int64(0); i < perWorker; i++ {
				s.Reset(rng)
				cfr.Run(&s, 0, rng, local)
				cfr.Run(&s, 1, rng, local)
			}
			tables[w] = local
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

// mergeInto sums every worker table's regret and strategy accumulators
// into dst, creating nodes in dst that a worker touched but dst had not
// yet seen.
func mergeInto(dst cfr.Table, workers []cfr.Table) {
	for _, src := range workers {
		for key, n := range src {
			d, ok := dst[key]
			if !ok {
				d = &cfr.Node{}
				dst[key] = d
			}
			for a := 0; a < abstraction.NumActions; a++ {
				d.Regret[a] += n.Regret[a]
				d.StratSum[a] += n.StratSum[a]
			}
		}
	}
}

// checkpointPath names a periodic checkpoint after the base output path
// and the thousands of iterations completed, e.g. "out.bin.checkpoint_500k".
func checkpointPath(base string, iteration int64) string {
	return fmt.Sprintf("%s.checkpoint_%dk", base, iteration/1000)
}

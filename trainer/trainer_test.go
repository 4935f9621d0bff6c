package trainer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lox/tossem/abstraction"
	"github.com/lox/tossem/cfr"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	bad := cfg
	bad.Iterations = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for zero iterations")
	}

	bad = cfg
	bad.OutPath = ""
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for empty out path")
	}
}

func TestSerializerRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "strategy.bin")

	table := make(cfr.Table)
	k1 := abstraction.InfoKey{Player: 0, Street: 0, HoleBucket: 5, BoardBucket: 0, PotBucket: 1, HistBucket: 0, LegalMask: 0b0111}
	k2 := abstraction.InfoKey{Player: 1, Street: 4, HoleBucket: 12, BoardBucket: 3, PotBucket: 2, HistBucket: 1, BBDiscarded: true, LegalMask: 0b1111}
	table[k1] = &cfr.Node{Regret: [abstraction.NumActions]float64{1, -2, 0.5, 0}, StratSum: [abstraction.NumActions]float64{0.1, 0.2, 0.3, 0.4}}
	table[k2] = &cfr.Node{Regret: [abstraction.NumActions]float64{-1, 3, 0, 2}, StratSum: [abstraction.NumActions]float64{1, 1, 1, 1}}

	if err := WriteTable(path, 12345, table); err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}

	iters, rows, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if iters != 12345 {
		t.Fatalf("iterations = %d, want 12345", iters)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	byKey := make(map[abstraction.InfoKey]Row, len(rows))
	for _, r := range rows {
		byKey[r.Key] = r
	}
	for _, k := range []abstraction.InfoKey{k1, k2} {
		r, ok := byKey[k]
		if !ok {
			t.Fatalf("missing decoded row for key %+v", k)
		}
		want := table[k]
		if r.Regret != want.Regret {
			t.Fatalf("regret mismatch for %+v: got %v want %v", k, r.Regret, want.Regret)
		}
		if r.StratSum != want.StratSum {
			t.Fatalf("stratsum mismatch for %+v: got %v want %v", k, r.StratSum, want.StratSum)
		}
	}
}

func TestSerializerMagicBytes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "strategy.bin")

	if err := WriteTable(path, 1, make(cfr.Table)); err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(data) < headerLen {
		t.Fatalf("file shorter than header: %d bytes", len(data))
	}
	if data[0] != 'S' || data[1] != 'S' || data[2] != 'O' || data[3] != 'T' {
		t.Fatalf("magic bytes = %q, want 'S','S','O','T'", data[0:4])
	}
	if data[4] != 2 || data[5] != 0 || data[6] != 0 || data[7] != 0 {
		t.Fatalf("version bytes = %v, want little-endian 2", data[4:8])
	}
}

func TestSerializerLegalMaskTruncatesToSixBits(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "strategy.bin")

	table := make(cfr.Table)
	// 0x7F is the full 7-bit in-memory mask; only the low 6 bits survive a
	// round trip through the binary format.
	k := abstraction.InfoKey{LegalMask: 0x7F}
	table[k] = &cfr.Node{}

	if err := WriteTable(path, 1, table); err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}
	_, rows, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if rows[0].Key.LegalMask != 0x3F {
		t.Fatalf("legal mask = %#x, want %#x", rows[0].Key.LegalMask, 0x3F)
	}
}

func TestRunDeterministicSingleThreaded(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Iterations:      200,
		Threads:         1,
		BatchSize:       50,
		CheckpointEvery: 0,
		OutPath:         filepath.Join(t.TempDir(), "a.bin"),
		Seed:            99,
	}

	run := func(outPath string) cfr.Table {
		c := cfg
		c.OutPath = outPath
		tr := New(c)
		if err := tr.Run(context.Background(), nil); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return tr.Table()
	}

	t1 := run(filepath.Join(t.TempDir(), "a.bin"))
	t2 := run(filepath.Join(t.TempDir(), "b.bin"))

	if len(t1) != len(t2) {
		t.Fatalf("table sizes differ: %d vs %d", len(t1), len(t2))
	}
	for key, n1 := range t1 {
		n2, ok := t2[key]
		if !ok {
			t.Fatalf("key %+v present in first run, missing in second", key)
		}
		if n1.Regret != n2.Regret || n1.StratSum != n2.StratSum {
			t.Fatalf("node mismatch for %+v: %v/%v vs %v/%v", key, n1.Regret, n1.StratSum, n2.Regret, n2.StratSum)
		}
	}
}

func TestRunWritesFinalArtifact(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "strategy.bin")
	cfg := Config{
		Iterations:      40,
		Threads:         2,
		BatchSize:       10,
		CheckpointEvery: 0,
		OutPath:         out,
		Seed:            7,
	}

	tr := New(cfg)
	if err := tr.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected final artifact at %s: %v", out, err)
	}
	iters, _, err := ReadTable(out)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if iters != tr.Iteration() {
		t.Fatalf("artifact iterations = %d, want %d", iters, tr.Iteration())
	}
}

func TestRunWritesCheckpoints(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "strategy.bin")
	cfg := Config{
		Iterations:      100,
		Threads:         1,
		BatchSize:       25,
		CheckpointEvery: 50,
		OutPath:         out,
		Seed:            3,
	}

	tr := New(cfg)
	if err := tr.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := os.Stat(checkpointPath(out, 50)); err != nil {
		t.Fatalf("expected checkpoint at 50 iterations: %v", err)
	}
}

func TestMergeIntoSumsAccumulators(t *testing.T) {
	t.Parallel()
	dst := make(cfr.Table)
	k := abstraction.InfoKey{Player: 0, Street: 0}
	dst[k] = &cfr.Node{Regret: [abstraction.NumActions]float64{1, 0, 0, 0}}

	w1 := cfr.Table{k: &cfr.Node{Regret: [abstraction.NumActions]float64{2, 0, 0, 0}}}
	w2 := cfr.Table{k: &cfr.Node{Regret: [abstraction.NumActions]float64{3, 0, 0, 0}}}

	mergeInto(dst, []cfr.Table{w1, w2})
	if dst[k].Regret[0] != 6 {
		t.Fatalf("merged regret = %v, want 6", dst[k].Regret[0])
	}
}

func TestBatchSizeRespectsRemainingBudget(t *testing.T) {
	t.Parallel()
	// Only 10 iterations remain across 4 threads: each worker should run
	// at most 3, never overshooting the total by much.
	got := batchSize(10, 1000, 4)
	if got > 3 {
		t.Fatalf("batchSize = %d, want <= 3 to respect remaining budget", got)
	}
	if got < 1 {
		t.Fatalf("batchSize must be at least 1, got %d", got)
	}
}

package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/guregu/null.v3"
)

func TestRecordAndLookup(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "runs.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	now := Timestamp(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	aborted := Run{
		IDA: "SRR1", IDB: "SRR2", WorkDir: "results/SRR1_SRR2",
		Status: StatusAborted, ExitCode: 2,
		FailedStage: null.StringFrom("classify"), Error: null.StringFrom("kraken2 failed"),
		StartedAt: now, FinishedAt: now,
	}
	completed := Run{
		IDA: "SRR1", IDB: "SRR2", WorkDir: "results/SRR1_SRR2",
		Status:      StatusCompleted,
		ClassifiedA: null.FloatFrom(87.66), UnclassifiedA: null.FloatFrom(12.34),
		ClassifiedB: null.FloatFrom(50), UnclassifiedB: null.FloatFrom(50),
		MergedTaxa: null.IntFrom(3), OverlapTaxa: null.IntFrom(1),
		Cosine: null.FloatFrom(0.3922), L1: null.FloatFrom(1.2),
		StartedAt: now, FinishedAt: now,
	}

	if _, err := c.Record(ctx, aborted); err != nil {
		t.Fatal(err)
	}
	id, err := c.Record(ctx, completed)
	if err != nil {
		t.Fatal(err)
	}

	runs, err := c.Runs(ctx, "SRR1", "SRR2")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].Status != StatusAborted || runs[0].Cosine.Valid || runs[0].FailedStage.String != "classify" {
		t.Fatalf("Unexpected aborted run: %+v", runs[0])
	}

	latest, ok, err := c.Latest(ctx, "SRR1", "SRR2")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || latest.RunID != id || latest.Cosine.Float64 != 0.3922 || latest.MergedTaxa.Int64 != 3 {
		t.Fatalf("Unexpected latest run: %+v", latest)
	}

	if _, ok, err := c.Latest(ctx, "SRR9", "SRR2"); err != nil || ok {
		t.Fatalf("Expected no run for an unknown pair, got ok=%v err=%v", ok, err)
	}
}

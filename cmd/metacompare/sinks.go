package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/carbocation/metacompare/bqexport"
	"github.com/carbocation/metacompare/catalog"
	"github.com/carbocation/metacompare/pipeline"
	"github.com/carbocation/metacompare/sample"
	"gopkg.in/guregu/null.v3"
)

// logHistory reports what the catalog already knows about the pair named by
// cfg, so that a repeated comparison is noticed before the tools start.
func logHistory(ctx context.Context, path string, cfg pipeline.Config) error {
	idA := sample.Parse(strings.TrimSpace(cfg.Genomic)).ID()
	idB := sample.Parse(strings.TrimSpace(cfg.Transcriptomic)).ID()
	if idA == "" || idB == "" {
		// Run reports the unusable specifier
		return nil
	}

	c, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer c.Close()

	msg, err := history(ctx, c, idA, idB)
	if err != nil {
		return err
	}
	log.Println(msg)

	return nil
}

func history(ctx context.Context, c *catalog.Catalog, idA, idB string) (string, error) {
	runs, err := c.Runs(ctx, idA, idB)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return fmt.Sprintf("No earlier runs of %s vs %s in the catalog", idA, idB), nil
	}

	latest, ok, err := c.Latest(ctx, idA, idB)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("Found %d earlier runs of %s vs %s in the catalog, none of which completed", len(runs), idA, idB), nil
	}

	return fmt.Sprintf("Found %d earlier runs of %s vs %s in the catalog. The latest completed one (run %d, finished %s) had cosine similarity %.4f and difference score %.4f",
		len(runs), idA, idB, latest.RunID, latest.FinishedAt, latest.Cosine.Float64, latest.L1.Float64), nil
}

func recordRun(ctx context.Context, path string, out *pipeline.Outcome, runErr error) error {
	if out == nil || out.IDA == "" || out.IDB == "" {
		// Nothing identifiable to record
		return nil
	}

	c, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer c.Close()

	id, err := c.Record(ctx, catalogRun(out, runErr))
	if err != nil {
		return err
	}

	log.Printf("Recorded run %d in %s\n", id, path)

	return nil
}

func catalogRun(out *pipeline.Outcome, runErr error) catalog.Run {
	r := catalog.Run{
		IDA:        out.IDA,
		IDB:        out.IDB,
		WorkDir:    out.WorkDir,
		Status:     catalog.StatusCompleted,
		ExitCode:   pipeline.ExitCode(runErr),
		StartedAt:  catalog.Timestamp(out.StartedAt),
		FinishedAt: catalog.Timestamp(out.FinishedAt),
	}

	if runErr != nil {
		r.Status = catalog.StatusAborted
		r.Error = null.StringFrom(runErr.Error())

		var serr *pipeline.StageError
		if errors.As(runErr, &serr) {
			r.FailedStage = null.StringFrom(string(serr.Stage))
		}
	}

	if out.Genomic != nil {
		r.ClassifiedA = null.FloatFrom(out.Genomic.Stats.Classified)
		r.UnclassifiedA = null.FloatFrom(out.Genomic.Stats.Unclassified)
	}
	if out.Transcriptomic != nil {
		r.ClassifiedB = null.FloatFrom(out.Transcriptomic.Stats.Classified)
		r.UnclassifiedB = null.FloatFrom(out.Transcriptomic.Stats.Unclassified)
	}

	if runErr == nil {
		r.MergedTaxa = null.IntFrom(int64(len(out.Merged.Rows)))
		r.OverlapTaxa = null.IntFrom(int64(len(out.Overlap.Rows)))
		r.Cosine = null.FloatFrom(out.Similarity.Cosine)
		r.L1 = null.FloatFrom(out.Similarity.L1)
	}

	return r
}

type bqConfig struct {
	Project string
	Dataset string
	Table   string
}

func (b bqConfig) Enabled() bool {
	return b.Project != "" || b.Dataset != "" || b.Table != ""
}

func (b bqConfig) export(ctx context.Context, out *pipeline.Outcome) error {
	exp, err := bqexport.New(ctx, b.Project, b.Dataset, b.Table)
	if err != nil {
		return err
	}
	defer exp.Close()

	n, err := exp.Count(ctx, out.IDA, out.IDB)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%s already holds %d rows for %s/%s; not uploading again", b.Table, n, out.IDA, out.IDB)
	}

	if err := exp.Upload(ctx, out.IDA, out.IDB, out.Merged); err != nil {
		return err
	}

	log.Printf("Uploaded %d taxa to %s.%s.%s\n", len(out.Merged.Rows), b.Project, b.Dataset, b.Table)

	return nil
}

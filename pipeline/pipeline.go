// Package pipeline runs one metaG vs. metaT comparison end to end: resolve
// both inputs, classify each, align the two abundance profiles and score
// their similarity. Artifacts land in {OutputDir}/{idA}_{idB}.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/carbocation/metacompare/bracken"
	"github.com/carbocation/metacompare/kraken"
	"github.com/carbocation/metacompare/profile"
	"github.com/carbocation/metacompare/sample"
	"github.com/carbocation/metacompare/similarity"
	"github.com/carbocation/metacompare/toolrun"
	"github.com/carbocation/pfx"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultOutputDir  = "results"
	DefaultReadLength = "150"
)

type Config struct {
	// Genomic and Transcriptomic are sample specifiers: an archive
	// accession, a local FASTQ path or a gs:// object.
	Genomic        string
	Transcriptomic string

	// Database is the Kraken2/Bracken database directory.
	Database  string
	OutputDir string

	// ReadLength is kept as text so that it can be validated before any
	// tool is started.
	ReadLength string

	Threads   int
	Threshold int

	// Parallel classifies both samples at once instead of one after the
	// other.
	Parallel bool

	// KeepFastq keeps the staged reads (archive downloads, bucket copies and
	// decompressed inputs) after a completed run. They are always kept when
	// a run fails.
	KeepFastq bool

	// Tools overrides the default tool lookup, field by field.
	Tools toolrun.Tools

	// Runner defaults to a toolrun.ExecRunner writing to the log.
	Runner toolrun.Runner

	// Storage is created on demand when a gs:// specifier is present.
	Storage *storage.Client
}

// Artifacts are the paths a completed run leaves behind.
type Artifacts struct {
	GenomicCSV        string
	TranscriptomicCSV string
	Merged            string
	Overlap           string
	SimilarityLog     string
}

// Outcome is the state of one run. Run returns it even on failure, filled in
// up to the stage that failed.
type Outcome struct {
	IDA     string
	IDB     string
	WorkDir string

	// StageDirs hold each sample's staged reads, {id}_metaG and {id}_metaT
	// under WorkDir.
	StageDirA string
	StageDirB string

	Genomic        *kraken.Result
	Transcriptomic *kraken.Result

	Merged  *profile.Profile
	Overlap *profile.Profile

	Similarity similarity.Result
	Artifacts  Artifacts

	StartedAt  time.Time
	FinishedAt time.Time
}

// run carries the per-invocation state between stages.
type run struct {
	cfg        Config
	readLength int
	specA      sample.Specifier
	specB      sample.Specifier
	tools      toolrun.Tools
	runner     toolrun.Runner
	out        *Outcome
}

// Run executes the comparison described by cfg. Any failure aborts the run;
// artifacts already written stay on disk.
func Run(ctx context.Context, cfg Config) (*Outcome, error) {
	r := &run{
		cfg: cfg,
		out: &Outcome{StartedAt: time.Now()},
	}
	defer func() { r.out.FinishedAt = time.Now() }()

	if err := r.validate(); err != nil {
		return r.out, &StageError{Stage: StageValidate, Err: err}
	}

	if err := r.buildWorkDir(); err != nil {
		return r.out, &StageError{Stage: StageWorkDir, Err: err}
	}

	fsA, fsB, err := r.resolveInputs(ctx)
	if err != nil {
		return r.out, &StageError{Stage: StageResolve, Err: err}
	}

	if err := r.classify(ctx, fsA, fsB); err != nil {
		stage := StageClassify
		var convErr *bracken.ConversionError
		if errors.As(err, &convErr) {
			stage = StageNormalize
		}
		return r.out, &StageError{Stage: stage, Err: err}
	}

	if err := r.merge(); err != nil {
		return r.out, &StageError{Stage: StageMerge, Err: err}
	}

	if err := r.similarity(); err != nil {
		return r.out, &StageError{Stage: StageSimilarity, Err: err}
	}

	r.reportPaths()

	if !r.cfg.KeepFastq {
		r.removeStagedReads()
	}

	return r.out, nil
}

func (r *run) validate() error {
	cfg := r.cfg

	if strings.TrimSpace(cfg.Genomic) == "" {
		return &ValidationError{Field: "genomic sample", Value: cfg.Genomic, Reason: "must not be empty"}
	}
	if strings.TrimSpace(cfg.Transcriptomic) == "" {
		return &ValidationError{Field: "transcriptomic sample", Value: cfg.Transcriptomic, Reason: "must not be empty"}
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return &ValidationError{Field: "database", Value: cfg.Database, Reason: "must not be empty"}
	}

	if cfg.ReadLength == "" {
		r.cfg.ReadLength = DefaultReadLength
	}
	rl, err := strconv.Atoi(strings.TrimSpace(r.cfg.ReadLength))
	if err != nil || rl < 1 {
		return &ValidationError{Field: "read length", Value: r.cfg.ReadLength, Reason: "must be a positive integer"}
	}
	r.readLength = rl

	if cfg.Threads < 0 {
		return &ValidationError{Field: "threads", Value: strconv.Itoa(cfg.Threads), Reason: "must not be negative"}
	}
	if cfg.Threshold < 0 {
		return &ValidationError{Field: "threshold", Value: strconv.Itoa(cfg.Threshold), Reason: "must not be negative"}
	}

	if r.cfg.OutputDir == "" {
		r.cfg.OutputDir = DefaultOutputDir
	}

	r.specA = sample.Parse(strings.TrimSpace(cfg.Genomic))
	r.specB = sample.Parse(strings.TrimSpace(cfg.Transcriptomic))
	r.out.IDA = r.specA.ID()
	r.out.IDB = r.specB.ID()
	if r.out.IDA == "" {
		return &ValidationError{Field: "genomic sample", Value: cfg.Genomic, Reason: "has no usable identifier"}
	}
	if r.out.IDB == "" {
		return &ValidationError{Field: "transcriptomic sample", Value: cfg.Transcriptomic, Reason: "has no usable identifier"}
	}

	r.tools = toolrun.DefaultTools().Override(cfg.Tools)

	r.runner = cfg.Runner
	if r.runner == nil {
		r.runner = toolrun.ExecRunner{Stdout: log.Writer(), Stderr: log.Writer()}
	}

	return nil
}

func (r *run) buildWorkDir() error {
	r.out.WorkDir = filepath.Join(r.cfg.OutputDir, r.out.IDA+"_"+r.out.IDB)
	if err := os.MkdirAll(r.out.WorkDir, os.ModePerm); err != nil {
		return pfx.Err(err)
	}

	r.out.StageDirA = filepath.Join(r.out.WorkDir, r.out.IDA+"_"+string(bracken.MetaG))
	r.out.StageDirB = filepath.Join(r.out.WorkDir, r.out.IDB+"_"+string(bracken.MetaT))

	log.Println("Writing results to", r.out.WorkDir)

	return nil
}

func (r *run) resolveInputs(ctx context.Context) (sample.FileSet, sample.FileSet, error) {
	client := r.cfg.Storage
	if client == nil && (r.specA.Kind == sample.GoogleStorage || r.specB.Kind == sample.GoogleStorage) {
		var err error
		client, err = storage.NewClient(ctx)
		if err != nil {
			return sample.FileSet{}, sample.FileSet{}, pfx.Err(err)
		}
		defer client.Close()
	}

	resolver := &sample.Resolver{
		Tools:   r.tools,
		Runner:  r.runner,
		Storage: client,
	}

	fsA, err := resolver.Resolve(ctx, r.specA, r.out.StageDirA)
	if err != nil {
		return sample.FileSet{}, sample.FileSet{}, err
	}

	fsB, err := resolver.Resolve(ctx, r.specB, r.out.StageDirB)
	if err != nil {
		return sample.FileSet{}, sample.FileSet{}, err
	}

	return fsA, fsB, nil
}

// classify runs the two branches. Unless Parallel is set they run one after
// the other; either way the first failure cancels the other branch.
func (r *run) classify(ctx context.Context, fsA, fsB sample.FileSet) error {
	classifier := &kraken.Classifier{
		Kraken2:    r.tools.Kraken2,
		Bracken:    r.tools.Bracken,
		Database:   r.cfg.Database,
		Threads:    r.cfg.Threads,
		ReadLength: r.readLength,
		Threshold:  r.cfg.Threshold,
		Runner:     r.runner,
	}

	g, gctx := errgroup.WithContext(ctx)
	if r.cfg.Parallel {
		g.SetLimit(2)
	} else {
		g.SetLimit(1)
	}

	branch := func(fs sample.FileSet, cond bracken.Condition, dst **kraken.Result) func() error {
		return func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := classifier.Classify(gctx, fs, cond, r.out.WorkDir, fs.ID+"_"+string(cond))
			if err != nil {
				return fmt.Errorf("%s sample %s: %w", cond, fs.ID, err)
			}
			*dst = res
			return nil
		}
	}

	g.Go(branch(fsA, bracken.MetaG, &r.out.Genomic))
	g.Go(branch(fsB, bracken.MetaT, &r.out.Transcriptomic))

	if err := g.Wait(); err != nil {
		return err
	}

	r.out.Artifacts.GenomicCSV = r.out.Genomic.Outputs.BrackenCSV
	r.out.Artifacts.TranscriptomicCSV = r.out.Transcriptomic.Outputs.BrackenCSV

	return nil
}

func (r *run) merge() error {
	summary := profile.Summary{
		A: r.out.Genomic.Stats,
		B: r.out.Transcriptomic.Stats,
	}

	r.out.Merged, r.out.Overlap = profile.Merge(r.out.Genomic.Table, r.out.Transcriptomic.Table, summary)

	prefix := filepath.Join(r.out.WorkDir, r.out.IDA+"_"+r.out.IDB)

	r.out.Artifacts.Merged = prefix + "_merged.csv"
	if err := profile.WriteCSVFile(r.out.Artifacts.Merged, r.out.Merged); err != nil {
		return err
	}

	r.out.Artifacts.Overlap = prefix + "_overlap.csv"
	if err := profile.WriteCSVFile(r.out.Artifacts.Overlap, r.out.Overlap); err != nil {
		return err
	}

	log.Printf("Merged %d taxa, %d of them present in both samples\n", len(r.out.Merged.Rows), len(r.out.Overlap.Rows))

	return nil
}

func (r *run) similarity() error {
	r.out.Similarity = similarity.Compute(r.out.IDA, r.out.IDB, r.out.Merged)

	r.out.Artifacts.SimilarityLog = filepath.Join(r.out.WorkDir, r.out.IDA+"_"+r.out.IDB+"_similarity.log")
	if err := similarity.WriteLogFile(r.out.Artifacts.SimilarityLog, r.out.Similarity); err != nil {
		return err
	}

	log.Printf("Cosine similarity between %s and %s: %.4f\n", r.out.IDA, r.out.IDB, r.out.Similarity.Cosine)
	log.Printf("Sum of absolute differences: %.4f\n", r.out.Similarity.L1)

	return nil
}

func (r *run) reportPaths() {
	log.Println("Analysis complete. Wrote:")
	for _, p := range []string{
		r.out.Artifacts.GenomicCSV,
		r.out.Artifacts.TranscriptomicCSV,
		r.out.Artifacts.Merged,
		r.out.Artifacts.Overlap,
		r.out.Artifacts.SimilarityLog,
	} {
		log.Println(p)
	}
}

// removeStagedReads deletes the stage directories. Local inputs that were
// used in place live outside them and are never touched.
func (r *run) removeStagedReads() {
	for _, dir := range []string{r.out.StageDirA, r.out.StageDirB} {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		log.Println("Removing staged reads in", dir)
		if err := os.RemoveAll(dir); err != nil {
			log.Println("Could not remove", dir, ":", err)
		}
	}
}

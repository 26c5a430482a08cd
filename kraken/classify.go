package kraken

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"

	"github.com/carbocation/metacompare"
	"github.com/carbocation/metacompare/bracken"
	"github.com/carbocation/metacompare/sample"
	"github.com/carbocation/metacompare/toolrun"
)

const (
	// SpeciesLevel is the rank Bracken re-estimates abundance at.
	SpeciesLevel = "S"

	DefaultThreads   = 8
	DefaultThreshold = 10
)

// Classifier runs Kraken2 and then Bracken for one sample.
type Classifier struct {
	Kraken2  string
	Bracken  string
	Database string

	Threads    int
	ReadLength int

	// Threshold is the minimum number of reads a taxon needs before Bracken
	// redistributes reads to it.
	Threshold int

	Runner toolrun.Runner
}

// Outputs are the paths a classification writes, derived from its prefix.
type Outputs struct {
	KrakenOutput string
	KrakenReport string
	BrackenTSV   string
	BrackenCSV   string
}

func OutputsFor(dir, prefix string) Outputs {
	return Outputs{
		KrakenOutput: filepath.Join(dir, prefix+"_kraken2.out"),
		KrakenReport: filepath.Join(dir, prefix+"_kraken2.report"),
		BrackenTSV:   filepath.Join(dir, prefix+"_bracken.tsv"),
		BrackenCSV:   filepath.Join(dir, prefix+"_bracken.csv"),
	}
}

// Result is the product of classifying one sample.
type Result struct {
	Table   bracken.Table
	Stats   ClassificationStats
	Outputs Outputs
}

// KrakenCommand builds the Kraken2 invocation. Two files switch on paired-end
// mode.
func (c *Classifier) KrakenCommand(fs sample.FileSet, out Outputs) toolrun.Command {
	args := []string{
		"--db", c.Database,
		"--threads", strconv.Itoa(c.threads()),
		"--use-names",
	}
	if fs.Paired() {
		args = append(args, "--paired")
	}
	switch fs.Compression {
	case metacompare.DataTypeGzip:
		args = append(args, "--gzip-compressed")
	case metacompare.DataTypeBZip2:
		args = append(args, "--bzip2-compressed")
	}
	args = append(args, fs.Files...)
	args = append(args, "--report", out.KrakenReport, "--output", out.KrakenOutput)

	return toolrun.Command{Stage: "classification", Path: c.Kraken2, Args: args}
}

// BrackenCommand builds the Bracken re-estimation at species level.
func (c *Classifier) BrackenCommand(out Outputs) toolrun.Command {
	args := []string{
		"-d", c.Database,
		"-i", out.KrakenReport,
		"-o", out.BrackenTSV,
		"-l", SpeciesLevel,
		"-r", strconv.Itoa(c.ReadLength),
		"-t", strconv.Itoa(c.threshold()),
	}

	return toolrun.Command{Stage: "re-estimation", Path: c.Bracken, Args: args}
}

// Classify runs both tools for fs, writing everything under dir with the
// given file prefix, and returns the normalized abundance table tagged with
// cond. Either tool exiting non-zero aborts immediately.
func (c *Classifier) Classify(ctx context.Context, fs sample.FileSet, cond bracken.Condition, dir, prefix string) (*Result, error) {
	if c.ReadLength < 1 {
		return nil, fmt.Errorf("read length must be a positive integer, got %d", c.ReadLength)
	}

	out := OutputsFor(dir, prefix)

	log.Printf("Classifying %s with Kraken2\n", prefix)
	if err := c.Runner.Run(ctx, c.KrakenCommand(fs, out)); err != nil {
		return nil, err
	}

	log.Printf("Re-estimating %s abundance with Bracken at read length %d\n", prefix, c.ReadLength)
	if err := c.Runner.Run(ctx, c.BrackenCommand(out)); err != nil {
		return nil, err
	}

	table, err := bracken.ConvertToCSV(out.BrackenTSV, out.BrackenCSV, cond)
	if err != nil {
		return nil, err
	}

	report, err := ParseReportFile(out.KrakenReport)
	if err != nil {
		return nil, err
	}

	stats, err := report.Percents()
	if errors.Is(err, ErrPercentsNotFound) {
		log.Printf("%s: %v\n", prefix, err)
	} else if err != nil {
		return nil, err
	}

	return &Result{Table: table, Stats: stats, Outputs: out}, nil
}

func (c *Classifier) threads() int {
	if c.Threads < 1 {
		return DefaultThreads
	}
	return c.Threads
}

func (c *Classifier) threshold() int {
	if c.Threshold < 0 {
		return DefaultThreshold
	}
	return c.Threshold
}

package kraken

import (
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/carbocation/metacompare"
	"github.com/carbocation/metacompare/bracken"
	"github.com/carbocation/metacompare/sample"
	"github.com/carbocation/metacompare/toolrun"
)

const report = "12.34\t100\t100\tU\t0\tunclassified\n" +
	"87.66\t900\t50\t-\t1\troot\n" +
	" 80.00\t800\t10\tD\t2\t  Bacteria\n"

const brackenOut = "name\ttaxonomy_id\ttaxonomy_lvl\tkraken_assigned_reads\tadded_reads\tnew_est_reads\tfraction_total_reads\n" +
	"sp1\t1\tS\t60\t0\t60\t0.6\n" +
	"sp2\t2\tS\t40\t0\t40\t0.4\n"

func TestPercents(t *testing.T) {
	rep, err := ParseReport(strings.NewReader(report))
	if err != nil {
		t.Fatal(err)
	}

	stats, err := rep.Percents()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(stats.Unclassified-12.34) > 1e-9 || math.Abs(stats.Classified-87.66) > 1e-9 {
		t.Fatalf("Unexpected stats: %+v", stats)
	}

	if len(rep.Rows) != 3 || rep.Rows[2].Name != "Bacteria" || rep.Rows[2].TaxID != 2 || rep.Rows[2].CladeReads != 800 {
		t.Fatalf("Unexpected rows: %+v", rep.Rows)
	}
}

func TestPercentsMissing(t *testing.T) {
	rep, err := ParseReport(strings.NewReader("garbage\n\nnot-a-number\tsomething\n50.0\t1\t1\tS\t9\tsp9\n"))
	if err != nil {
		t.Fatal(err)
	}

	stats, err := rep.Percents()
	if !errors.Is(err, ErrPercentsNotFound) {
		t.Fatalf("Expected ErrPercentsNotFound, got %v", err)
	}
	if stats.Classified != 0 || stats.Unclassified != 0 {
		t.Fatalf("Expected zero stats, got %+v", stats)
	}
}

// fakeTools writes the report and the bracken table where the real tools
// would, recording what was invoked.
type fakeTools struct {
	calls   []toolrun.Command
	failOn  string
	report  string
	bracken string
}

func (f *fakeTools) Run(ctx context.Context, cmd toolrun.Command) error {
	f.calls = append(f.calls, cmd)
	if cmd.Path == f.failOn {
		return &toolrun.ExitError{Stage: cmd.Stage, Tool: cmd.Path, Code: 2, Err: errors.New("exit status 2")}
	}

	switch cmd.Path {
	case "kraken2":
		return os.WriteFile(argAfter(cmd.Args, "--report"), []byte(f.report), 0666)
	case "bracken":
		return os.WriteFile(argAfter(cmd.Args, "-o"), []byte(f.bracken), 0666)
	}
	return nil
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func hasArg(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func newClassifier(r toolrun.Runner) *Classifier {
	return &Classifier{
		Kraken2:    "kraken2",
		Bracken:    "bracken",
		Database:   "/db",
		Threads:    4,
		ReadLength: 150,
		Threshold:  10,
		Runner:     r,
	}
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	tools := &fakeTools{report: report, bracken: brackenOut}

	fs := sample.FileSet{ID: "s1", Files: []string{"a_1.fastq", "a_2.fastq"}, Compression: metacompare.DataTypeGzip}
	res, err := newClassifier(tools).Classify(context.Background(), fs, bracken.MetaG, dir, "s1_metaG")
	if err != nil {
		t.Fatal(err)
	}

	if len(tools.calls) != 2 {
		t.Fatalf("Expected 2 tool calls, got %d", len(tools.calls))
	}
	k := tools.calls[0]
	if !hasArg(k.Args, "--paired") || !hasArg(k.Args, "--gzip-compressed") || argAfter(k.Args, "--db") != "/db" || argAfter(k.Args, "--threads") != "4" {
		t.Fatalf("Unexpected kraken2 args: %v", k.Args)
	}
	b := tools.calls[1]
	if argAfter(b.Args, "-l") != "S" || argAfter(b.Args, "-r") != "150" || argAfter(b.Args, "-t") != "10" {
		t.Fatalf("Unexpected bracken args: %v", b.Args)
	}

	if res.Table.Condition != bracken.MetaG || len(res.Table.Records) != 2 {
		t.Fatalf("Unexpected table: %+v", res.Table)
	}
	if res.Stats.Classified != 87.66 || res.Stats.Unclassified != 12.34 {
		t.Fatalf("Unexpected stats: %+v", res.Stats)
	}
	if _, err := os.Stat(res.Outputs.BrackenCSV); err != nil {
		t.Fatalf("Expected %s to exist: %v", res.Outputs.BrackenCSV, err)
	}
	if _, err := os.Stat(res.Outputs.BrackenTSV); !os.IsNotExist(err) {
		t.Fatalf("Expected %s to be removed", res.Outputs.BrackenTSV)
	}
}

func TestClassifySingleEndHasNoPairedFlag(t *testing.T) {
	tools := &fakeTools{report: report, bracken: brackenOut}
	fs := sample.FileSet{ID: "s1", Files: []string{"a.fastq"}}
	if _, err := newClassifier(tools).Classify(context.Background(), fs, bracken.MetaT, t.TempDir(), "s1_metaT"); err != nil {
		t.Fatal(err)
	}
	if hasArg(tools.calls[0].Args, "--paired") || hasArg(tools.calls[0].Args, "--gzip-compressed") {
		t.Fatalf("Unexpected kraken2 args: %v", tools.calls[0].Args)
	}
}

func TestClassifyStopsOnKrakenFailure(t *testing.T) {
	tools := &fakeTools{report: report, bracken: brackenOut, failOn: "kraken2"}
	fs := sample.FileSet{ID: "s1", Files: []string{"a.fastq"}}

	_, err := newClassifier(tools).Classify(context.Background(), fs, bracken.MetaG, t.TempDir(), "s1_metaG")

	var exitErr *toolrun.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Fatalf("Expected exit code 2, got %v", err)
	}
	if len(tools.calls) != 1 {
		t.Fatalf("Bracken must not run after kraken2 fails; got %d calls", len(tools.calls))
	}
}

func TestClassifyBrackenFailure(t *testing.T) {
	tools := &fakeTools{report: report, bracken: brackenOut, failOn: "bracken"}
	fs := sample.FileSet{ID: "s1", Files: []string{"a.fastq"}}

	_, err := newClassifier(tools).Classify(context.Background(), fs, bracken.MetaG, t.TempDir(), "s1_metaG")

	var exitErr *toolrun.ExitError
	if !errors.As(err, &exitErr) || exitErr.Stage != "re-estimation" {
		t.Fatalf("Expected a re-estimation failure, got %v", err)
	}
}

func TestClassifyMissingPercentsIsNotFatal(t *testing.T) {
	tools := &fakeTools{report: "50.0\t1\t1\tS\t9\tsp9\n", bracken: brackenOut}
	fs := sample.FileSet{ID: "s1", Files: []string{"a.fastq"}}

	res, err := newClassifier(tools).Classify(context.Background(), fs, bracken.MetaG, t.TempDir(), "s1_metaG")
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats != (ClassificationStats{}) {
		t.Fatalf("Expected zero stats, got %+v", res.Stats)
	}
}

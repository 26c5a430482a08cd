package bracken

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const rawBracken = "name\ttaxonomy_id\ttaxonomy_lvl\tkraken_assigned_reads\tadded_reads\tnew_est_reads\tfraction_total_reads\n" +
	"Escherichia coli\t562\tS\t100\t20\t120\t0.6\n" +
	"Vibrio cholerae\t666\tS\t70\t10\t80\t0.4\n"

func TestReadTableTSV(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader(rawBracken), MetaG)
	if err != nil {
		t.Fatal(err)
	}

	expected := Table{
		Condition: MetaG,
		Records: []Record{
			{Name: "Escherichia coli", TaxonomyID: 562, TaxonomyLevel: "S", AssignedReads: 100, AddedReads: 20, EstimatedReads: 120, Fraction: 0.6},
			{Name: "Vibrio cholerae", TaxonomyID: 666, TaxonomyLevel: "S", AssignedReads: 70, AddedReads: 10, EstimatedReads: 80, Fraction: 0.4},
		},
	}

	if diff := cmp.Diff(expected, tbl); diff != "" {
		t.Fatalf("Table mismatch (-expected +got):\n%s", diff)
	}
}

func TestWriteThenReadCSV(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader(rawBracken), MetaT)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, tbl); err != nil {
		t.Fatal(err)
	}

	firstLine := strings.SplitN(buf.String(), "\n", 2)[0]
	if expected := strings.Join(CanonicalColumns, ","); firstLine != expected {
		t.Fatalf("Header: got %q, expected %q", firstLine, expected)
	}

	back, err := ReadTable(&buf, MetaT)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(tbl, back); diff != "" {
		t.Fatalf("Table mismatch after CSV conversion (-expected +got):\n%s", diff)
	}
}

func TestReadTableHeaderOnly(t *testing.T) {
	header := strings.SplitN(rawBracken, "\n", 2)[0] + "\n"
	tbl, err := ReadTable(strings.NewReader(header), MetaG)
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Records) != 0 {
		t.Fatalf("Expected an empty table, got %d records", len(tbl.Records))
	}
}

func TestReadTableRejectsDuplicates(t *testing.T) {
	dup := rawBracken + "Vibrio cholerae\t666\tS\t1\t1\t2\t0.0\n"
	if _, err := ReadTable(strings.NewReader(dup), MetaG); err == nil {
		t.Fatal("Expected an error for a duplicated taxon name")
	}
}

func TestReadTableMissingColumn(t *testing.T) {
	in := "name\ttaxonomy_id\tfraction_total_reads\nA\t1\t0.5\n"
	_, err := ReadTable(strings.NewReader(in), MetaG)
	if err == nil || !strings.Contains(err.Error(), "new_est_reads") {
		t.Fatalf("Expected a missing-column error naming new_est_reads, got %v", err)
	}
}

func TestConvertToCSV(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "x_metaG_bracken.tsv")
	dst := filepath.Join(dir, "x_metaG_bracken.csv")
	if err := os.WriteFile(src, []byte(rawBracken), 0666); err != nil {
		t.Fatal(err)
	}

	tbl, err := ConvertToCSV(src, dst, MetaG)
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(tbl.Records))
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("Expected %s to be removed", src)
	}

	back, err := ReadTableFile(dst, MetaG)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(tbl, back); diff != "" {
		t.Fatalf("(-expected +got):\n%s", diff)
	}
}

func TestConvertToCSVMissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := ConvertToCSV(filepath.Join(dir, "nope.tsv"), filepath.Join(dir, "nope.csv"), MetaG)

	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("Expected *ConversionError, got %T (%v)", err, err)
	}
}

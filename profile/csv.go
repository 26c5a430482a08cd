package profile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/metacompare/kraken"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
	"gopkg.in/guregu/null.v3"
)

// wireRow is the 14-column layout of the merged and overlap files. Every
// value is preformatted because the summary row stores percentages in
// columns that hold integers everywhere else.
type wireRow struct {
	Name string `csv:"name"`

	TaxonomyIDA     string `csv:"taxonomy_id_metaG"`
	TaxonomyLevelA  string `csv:"taxonomy_lvl_metaG"`
	AssignedReadsA  string `csv:"kraken_assigned_reads_metaG"`
	AddedReadsA     string `csv:"added_reads_metaG"`
	EstimatedReadsA string `csv:"new_est_reads_metaG"`
	FractionA       string `csv:"fraction_total_reads_metaG"`

	TaxonomyIDB     string `csv:"taxonomy_id_metaT"`
	TaxonomyLevelB  string `csv:"taxonomy_lvl_metaT"`
	AssignedReadsB  string `csv:"kraken_assigned_reads_metaT"`
	AddedReadsB     string `csv:"added_reads_metaT"`
	EstimatedReadsB string `csv:"new_est_reads_metaT"`
	FractionB       string `csv:"fraction_total_reads_metaT"`

	Difference string `csv:"difference"`
}

const placeholderLevel = "N/A"

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// summaryWireRow packs the classification percentages into the legacy
// positions: classified in the fraction column, unclassified in the
// estimated-reads column.
func summaryWireRow(s Summary) *wireRow {
	return &wireRow{
		Name: SummaryName,

		TaxonomyIDA:     "0",
		TaxonomyLevelA:  placeholderLevel,
		AssignedReadsA:  "0",
		AddedReadsA:     "0",
		EstimatedReadsA: formatFloat(s.A.Unclassified),
		FractionA:       formatFloat(s.A.Classified),

		TaxonomyIDB:     "0",
		TaxonomyLevelB:  placeholderLevel,
		AssignedReadsB:  "0",
		AddedReadsB:     "0",
		EstimatedReadsB: formatFloat(s.B.Unclassified),
		FractionB:       formatFloat(s.B.Classified),

		Difference: formatFloat(s.Difference()),
	}
}

func toWireRow(r Row) *wireRow {
	return &wireRow{
		Name: r.Name,

		TaxonomyIDA:     formatInt(r.A.TaxonomyID),
		TaxonomyLevelA:  r.A.TaxonomyLevel,
		AssignedReadsA:  formatInt(r.A.AssignedReads),
		AddedReadsA:     formatInt(r.A.AddedReads),
		EstimatedReadsA: formatInt(r.A.EstimatedReads),
		FractionA:       formatFloat(r.A.Fraction.ValueOrZero()),

		TaxonomyIDB:     formatInt(r.B.TaxonomyID),
		TaxonomyLevelB:  r.B.TaxonomyLevel,
		AssignedReadsB:  formatInt(r.B.AssignedReads),
		AddedReadsB:     formatInt(r.B.AddedReads),
		EstimatedReadsB: formatInt(r.B.EstimatedReads),
		FractionB:       formatFloat(r.B.Fraction.ValueOrZero()),

		Difference: formatFloat(r.Difference),
	}
}

// WriteCSV writes p with the summary row first.
func WriteCSV(w io.Writer, p *Profile) error {
	rows := make([]*wireRow, 0, len(p.Rows)+1)
	rows = append(rows, summaryWireRow(p.Summary))
	for _, r := range p.Rows {
		rows = append(rows, toWireRow(r))
	}

	return gocsv.MarshalCSV(&rows, gocsv.NewSafeCSVWriter(csv.NewWriter(w)))
}

// WriteCSVFile writes p to path, replacing any existing file.
func WriteCSVFile(path string, p *Profile) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return pfx.Err(err)
	}

	if err := WriteCSV(f, p); err != nil {
		f.Close()
		return pfx.Err(err)
	}

	return f.Close()
}

// ReadCSV parses a merged or overlap file. A side is considered present when
// any of its numeric fields is non-zero, which is exact for Bracken output
// since every reported taxon has a taxonomy id.
func ReadCSV(r io.Reader, join Join) (*Profile, error) {
	rows := []*wireRow{}
	if err := gocsv.UnmarshalCSV(csv.NewReader(r), &rows); err != nil {
		return nil, pfx.Err(err)
	}

	out := &Profile{Join: join, Rows: make([]Row, 0, len(rows))}
	for i, w := range rows {
		if w.Name == SummaryName {
			s, err := parseSummary(w)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
			out.Summary = s
			continue
		}

		row, err := parseRow(w)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i+2, w.Name, err)
		}
		out.Rows = append(out.Rows, row)
	}

	return out, nil
}

func parseSummary(w *wireRow) (Summary, error) {
	var s Summary
	var err error
	if s.A, err = parseStats(w.FractionA, w.EstimatedReadsA); err != nil {
		return s, err
	}
	if s.B, err = parseStats(w.FractionB, w.EstimatedReadsB); err != nil {
		return s, err
	}
	return s, nil
}

func parseStats(classified, unclassified string) (kraken.ClassificationStats, error) {
	var out kraken.ClassificationStats
	var err error
	if out.Classified, err = parseFloat(classified); err != nil {
		return out, err
	}
	if out.Unclassified, err = parseFloat(unclassified); err != nil {
		return out, err
	}
	return out, nil
}

func parseRow(w *wireRow) (Row, error) {
	a, err := parseSide(w.TaxonomyIDA, w.TaxonomyLevelA, w.AssignedReadsA, w.AddedReadsA, w.EstimatedReadsA, w.FractionA)
	if err != nil {
		return Row{}, err
	}
	b, err := parseSide(w.TaxonomyIDB, w.TaxonomyLevelB, w.AssignedReadsB, w.AddedReadsB, w.EstimatedReadsB, w.FractionB)
	if err != nil {
		return Row{}, err
	}

	return newRow(w.Name, a, b), nil
}

func parseSide(taxID, level, assigned, added, estimated, fraction string) (Side, error) {
	s := Side{TaxonomyLevel: level}
	if s.TaxonomyLevel == "" {
		s.TaxonomyLevel = DefaultTaxonomyLevel
	}

	var err error
	if s.TaxonomyID, err = parseInt(taxID); err != nil {
		return s, err
	}
	if s.AssignedReads, err = parseInt(assigned); err != nil {
		return s, err
	}
	if s.AddedReads, err = parseInt(added); err != nil {
		return s, err
	}
	if s.EstimatedReads, err = parseInt(estimated); err != nil {
		return s, err
	}
	f, err := parseFloat(fraction)
	if err != nil {
		return s, err
	}

	s.Present = s.TaxonomyID != 0 || s.AssignedReads != 0 || s.AddedReads != 0 || s.EstimatedReads != 0 || f != 0
	if s.Present {
		s.Fraction = null.FloatFrom(f)
	}

	return s, nil
}

// parseInt accepts "12" and the "12.0" that float-typed columns produce once
// a dataframe tool has filled in missing values.
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

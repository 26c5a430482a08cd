package kraken

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
)

// ErrPercentsNotFound is reported when a report has neither a root nor an
// unclassified row. It is a warning: the stats are still usable and are both
// zero.
var ErrPercentsNotFound = errors.New("could not parse classification percentages cleanly; defaulting to 0")

// ReportRow is one clade line of a Kraken2 report: percent, reads in clade,
// reads at rank, rank code, taxon id, name.
type ReportRow struct {
	Percent    float64
	CladeReads int64
	RankReads  int64
	RankCode   string
	TaxID      int64
	Name       string
}

type Report struct {
	Rows []ReportRow
}

// ClassificationStats holds the share of reads that Kraken2 could and could
// not place.
type ClassificationStats struct {
	Classified   float64
	Unclassified float64
}

// ParseReport reads a tab-separated Kraken2 report. Only the first (percent)
// and last (name) fields are required; the count, rank and taxon columns are
// filled in when present. Lines with fewer than two fields are skipped, as are
// lines whose percent is not a number, which are logged.
func ParseReport(r io.Reader) (*Report, error) {
	out := &Report{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		parts := strings.Split(strings.TrimSpace(scanner.Text()), "\t")
		if len(parts) < 2 {
			continue
		}

		pct, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			log.Printf("Skipping report line %d: %v\n", lineNo, err)
			continue
		}

		row := ReportRow{
			Percent: pct,
			Name:    strings.TrimSpace(parts[len(parts)-1]),
		}
		if len(parts) >= 6 {
			// Kraken2 indents names with spaces; only the name is needed
			// verbatim, the rest are best effort.
			row.CladeReads, _ = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
			row.RankReads, _ = strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
			row.RankCode = strings.TrimSpace(parts[3])
			row.TaxID, _ = strconv.ParseInt(strings.TrimSpace(parts[4]), 10, 64)
		}

		out.Rows = append(out.Rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// ParseReportFile is ParseReport over a file on disk.
func ParseReportFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rep, err := ParseReport(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return rep, nil
}

// Percents derives the classified and unclassified percentages. The root row
// aggregates everything that was classified. If neither row exists, zero
// stats are returned together with ErrPercentsNotFound.
func (r *Report) Percents() (ClassificationStats, error) {
	var out ClassificationStats
	var found bool

	for _, row := range r.Rows {
		switch row.Name {
		case "unclassified":
			out.Unclassified = row.Percent
			found = true
		case "root":
			out.Classified = row.Percent
			found = true
		}
	}

	if !found {
		return ClassificationStats{}, ErrPercentsNotFound
	}

	return out, nil
}

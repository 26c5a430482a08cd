package bracken

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/carbocation/metacompare"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// ConversionError means a tabular abundance output could not be turned into a
// Table.
type ConversionError struct {
	Source string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting %s to an abundance table: %v", e.Source, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ReadTable parses a Bracken abundance table in the BRACKEN layout. Tab and
// comma separated input are both accepted.
func ReadTable(r io.Reader, cond Condition) (Table, error) {
	return ReadTableLayout(r, cond, Layouts["BRACKEN"])
}

// ReadTableLayout parses an abundance table whose columns are named by
// layout, tagging every record with cond.
func ReadTableLayout(r io.Reader, cond Condition, layout Layout) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.LazyQuotes = true

	rn := &renamingReader{CSVReader: reader, renames: layout.renames()}

	records := []*Record{}
	if err := gocsv.UnmarshalCSV(rn, &records); err != nil {
		if rn.missing != nil {
			return Table{}, rn.missing
		}
		return Table{}, err
	}

	out := Table{Condition: cond, Records: make([]Record, 0, len(records))}
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		rec.Name = strings.TrimSpace(rec.Name)
		if rec.Name == "" {
			return Table{}, fmt.Errorf("row %d has no taxon name", i+2)
		}
		if _, exists := seen[rec.Name]; exists {
			return Table{}, fmt.Errorf("taxon %q appears more than once", rec.Name)
		}
		seen[rec.Name] = struct{}{}
		out.Records = append(out.Records, *rec)
	}

	return out, nil
}

// ReadTableFile reads a possibly-compressed table from disk. Any failure is
// reported as a *ConversionError.
func ReadTableFile(path string, cond Condition) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, &ConversionError{Source: path, Err: err}
	}
	defer f.Close()

	rdr, err := metacompare.MaybeDecompressReadCloserFromFile(f)
	if err != nil {
		return Table{}, &ConversionError{Source: path, Err: err}
	}
	defer rdr.Close()

	t, err := ReadTable(rdr, cond)
	if err != nil {
		return Table{}, &ConversionError{Source: path, Err: err}
	}

	return t, nil
}

// sniffDelimiter trusts the detector only if its answer is a plausible
// delimiter that actually occurs in the header line; a header-only table gives
// the detector too little to go on.
func sniffDelimiter(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}

	d := metacompare.DetermineDelimiter(bytes.NewReader(data))
	if strings.ContainsRune("\t,;|", d) && bytes.ContainsRune(header, d) {
		return d
	}
	if bytes.ContainsRune(header, '\t') {
		return '\t'
	}
	return ','
}

// renamingReader rewrites the header row from source to canonical column
// names and checks that every canonical column is present.
type renamingReader struct {
	gocsv.CSVReader
	renames    map[string]string
	headerDone bool
	missing    error
}

func (r *renamingReader) Read() ([]string, error) {
	row, err := r.CSVReader.Read()
	if err != nil || r.headerDone {
		return row, err
	}
	r.headerDone = true

	return r.rename(row)
}

func (r *renamingReader) ReadAll() ([][]string, error) {
	rows := [][]string{}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *renamingReader) rename(header []string) ([]string, error) {
	out := make([]string, len(header))
	present := make(map[string]bool, len(header))
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if canonical, ok := r.renames[col]; ok {
			out[i] = canonical
			present[canonical] = true
			continue
		}
		// Unmapped columns are carried but ignored by the decoder
		out[i] = col
	}

	var lacking []string
	for _, col := range CanonicalColumns {
		if !present[col] {
			lacking = append(lacking, col)
		}
	}
	if len(lacking) > 0 {
		r.missing = pfx.Err(fmt.Errorf("missing columns: %s", strings.Join(lacking, ", ")))
		return nil, r.missing
	}

	return out, nil
}

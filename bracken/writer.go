package bracken

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/gocarina/gocsv"
)

// WriteCSV writes t in the BRACKEN layout, comma separated.
func WriteCSV(w io.Writer, t Table) error {
	records := make([]*Record, len(t.Records))
	for i := range t.Records {
		records[i] = &t.Records[i]
	}

	return gocsv.MarshalCSV(&records, gocsv.NewSafeCSVWriter(csv.NewWriter(w)))
}

// ConvertToCSV reads the raw (tab separated) output at src, writes the
// comma-separated copy to dst and removes src. The parsed table is returned so
// callers need not read dst back.
func ConvertToCSV(src, dst string, cond Condition) (Table, error) {
	t, err := ReadTableFile(src, cond)
	if err != nil {
		return Table{}, err
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return Table{}, &ConversionError{Source: src, Err: err}
	}

	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return Table{}, &ConversionError{Source: src, Err: err}
	}
	if err := f.Close(); err != nil {
		return Table{}, &ConversionError{Source: src, Err: err}
	}

	if err := os.Remove(src); err != nil {
		return Table{}, &ConversionError{Source: src, Err: err}
	}

	return t, nil
}

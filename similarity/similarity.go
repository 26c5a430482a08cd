// Package similarity scores how alike the metaG and metaT abundance profiles
// of a sample pair are.
package similarity

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/carbocation/metacompare/profile"
	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/floats"
)

// Result is computed once per run and written to the similarity log.
type Result struct {
	IDA string
	IDB string

	// Cosine is 1 minus the cosine distance of the two fraction vectors, or
	// 0 when either vector has no mass.
	Cosine float64

	// L1 is the sum of absolute differences between the fraction vectors.
	L1 float64
}

// Vectors extracts the aligned fraction vectors of p, with absent fractions as
// zero, ordered by taxon name.
func Vectors(p *profile.Profile) (a, b []float64, names []string) {
	rows := append([]profile.Row(nil), p.Rows...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	a = make([]float64, len(rows))
	b = make([]float64, len(rows))
	names = make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.Name
		a[i] = row.A.Fraction.ValueOrZero()
		b[i] = row.B.Fraction.ValueOrZero()
	}

	return a, b, names
}

// Cosine returns a·b / (|a||b|). If either vector is all zeros the cosine
// distance is undefined and 0 is returned instead.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	normA, normB := floats.Norm(a, 2), floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}

	return floats.Dot(a, b) / (normA * normB)
}

// L1 returns the sum of |a[i] - b[i]|.
func L1(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return floats.Distance(a, b, 1)
}

// Compute scores an outer-join profile. The summary row is never part of
// p.Rows, so it cannot leak into the vectors.
func Compute(idA, idB string, p *profile.Profile) Result {
	a, b, _ := Vectors(p)

	return Result{
		IDA:    idA,
		IDB:    idB,
		Cosine: Cosine(a, b),
		L1:     L1(a, b),
	}
}

// WriteLog writes r in the similarity log format.
func WriteLog(w io.Writer, r Result) error {
	_, err := fmt.Fprintf(w,
		"Metagenomic ID: %s\nMetatranscriptomic ID: %s\nCosine similarity: %.4f\nDifference score (Sum of Absolute Differences): %.4f\n",
		r.IDA, r.IDB, r.Cosine, r.L1)
	return err
}

// WriteLogFile writes the similarity log to path.
func WriteLogFile(path string, r Result) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return pfx.Err(err)
	}

	if err := WriteLog(f, r); err != nil {
		f.Close()
		return pfx.Err(err)
	}

	return f.Close()
}

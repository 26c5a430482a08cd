// Package profile aligns the metaG and metaT abundance tables of one sample
// pair by taxon name.
package profile

import (
	"sort"

	"github.com/carbocation/metacompare/bracken"
	"github.com/carbocation/metacompare/kraken"
	"gopkg.in/guregu/null.v3"
)

const (
	// SummaryName is the name of the classification summary row in the CSV
	// artifacts.
	SummaryName = "CLASSIFICATION_STATS"

	// DefaultTaxonomyLevel fills taxonomy_lvl for a side that lacks the
	// taxon.
	DefaultTaxonomyLevel = "S"
)

type Join int

const (
	// Outer keeps every taxon seen on either side.
	Outer Join = iota
	// Inner keeps only taxa seen on both sides.
	Inner
)

func (j Join) String() string {
	if j == Inner {
		return "overlap"
	}
	return "merged"
}

// Side is one condition's view of a taxon. A side that lacks the taxon has
// Present false, zero counts, the default taxonomy level and a null fraction.
type Side struct {
	Present        bool
	TaxonomyID     int64
	TaxonomyLevel  string
	AssignedReads  int64
	AddedReads     int64
	EstimatedReads int64
	Fraction       null.Float
}

func presentSide(rec bracken.Record) Side {
	return Side{
		Present:        true,
		TaxonomyID:     rec.TaxonomyID,
		TaxonomyLevel:  rec.TaxonomyLevel,
		AssignedReads:  rec.AssignedReads,
		AddedReads:     rec.AddedReads,
		EstimatedReads: rec.EstimatedReads,
		Fraction:       null.FloatFrom(rec.Fraction),
	}
}

func absentSide() Side {
	return Side{TaxonomyLevel: DefaultTaxonomyLevel}
}

// Row is one aligned taxon. Difference is fraction A minus fraction B, with
// absent fractions counted as zero: positive means over-represented in A.
type Row struct {
	Name       string
	A          Side
	B          Side
	Difference float64
}

func newRow(name string, a, b Side) Row {
	return Row{
		Name:       name,
		A:          a,
		B:          b,
		Difference: a.Fraction.ValueOrZero() - b.Fraction.ValueOrZero(),
	}
}

// Summary carries each side's Kraken2 classification percentages.
type Summary struct {
	A kraken.ClassificationStats
	B kraken.ClassificationStats
}

// Difference is the classified percentage of A minus that of B.
func (s Summary) Difference() float64 {
	return s.A.Classified - s.B.Classified
}

// Profile is two abundance tables aligned by taxon name. It is built once and
// not modified afterwards.
type Profile struct {
	Join    Join
	Summary Summary
	Rows    []Row
}

// Names returns the taxon names in row order.
func (p *Profile) Names() []string {
	out := make([]string, len(p.Rows))
	for i, row := range p.Rows {
		out[i] = row.Name
	}
	return out
}

// Merge builds both alignments of a (metaG) and b (metaT): the outer join
// ("merged") and the inner join ("overlap").
func Merge(a, b bracken.Table, summary Summary) (merged, overlap *Profile) {
	return OuterJoin(a, b, summary), InnerJoin(a, b, summary)
}

// OuterJoin aligns the union of taxa, sorted by name.
func OuterJoin(a, b bracken.Table, summary Summary) *Profile {
	aIdx, bIdx := a.Index(), b.Index()

	names := make([]string, 0, len(aIdx)+len(bIdx))
	for _, rec := range a.Records {
		names = append(names, rec.Name)
	}
	for _, rec := range b.Records {
		if _, inA := aIdx[rec.Name]; !inA {
			names = append(names, rec.Name)
		}
	}
	sort.Strings(names)

	out := &Profile{Join: Outer, Summary: summary, Rows: make([]Row, 0, len(names))}
	for _, name := range names {
		sideA, sideB := absentSide(), absentSide()
		if i, ok := aIdx[name]; ok {
			sideA = presentSide(a.Records[i])
		}
		if i, ok := bIdx[name]; ok {
			sideB = presentSide(b.Records[i])
		}
		out.Rows = append(out.Rows, newRow(name, sideA, sideB))
	}

	return out
}

// InnerJoin aligns the taxa present in both tables, in a's order.
func InnerJoin(a, b bracken.Table, summary Summary) *Profile {
	bIdx := b.Index()

	out := &Profile{Join: Inner, Summary: summary, Rows: []Row{}}
	for _, rec := range a.Records {
		i, ok := bIdx[rec.Name]
		if !ok {
			continue
		}
		out.Rows = append(out.Rows, newRow(rec.Name, presentSide(rec), presentSide(b.Records[i])))
	}

	return out
}

package bracken

// Condition labels which side of a comparison a table belongs to.
type Condition string

const (
	MetaG Condition = "metaG"
	MetaT Condition = "metaT"
)

// Record is one taxon's abundance estimate. The csv tags are the canonical
// column names, which are also the ones Bracken itself writes.
type Record struct {
	Name           string  `csv:"name"`
	TaxonomyID     int64   `csv:"taxonomy_id"`
	TaxonomyLevel  string  `csv:"taxonomy_lvl"`
	AssignedReads  int64   `csv:"kraken_assigned_reads"`
	AddedReads     int64   `csv:"added_reads"`
	EstimatedReads int64   `csv:"new_est_reads"`
	Fraction       float64 `csv:"fraction_total_reads"`
}

// Table is the set of abundance records for one sample under one condition.
// Record names are unique within a table.
type Table struct {
	Condition Condition
	Records   []Record
}

// Index maps each taxon name to its position in Records.
func (t Table) Index() map[string]int {
	out := make(map[string]int, len(t.Records))
	for i, rec := range t.Records {
		out[rec.Name] = i
	}
	return out
}

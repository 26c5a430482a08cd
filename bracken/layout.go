package bracken

// Layout names the source column that feeds each canonical Record field.
type Layout struct {
	Name           string
	TaxonomyID     string
	TaxonomyLevel  string
	AssignedReads  string
	AddedReads     string
	EstimatedReads string
	Fraction       string
}

// CanonicalColumns is the column order of Record.
var CanonicalColumns = []string{
	"name",
	"taxonomy_id",
	"taxonomy_lvl",
	"kraken_assigned_reads",
	"added_reads",
	"new_est_reads",
	"fraction_total_reads",
}

var Layouts = map[string]Layout{
	// Output of `bracken -o`, and of this package's WriteCSV.
	"BRACKEN": {
		Name:           "name",
		TaxonomyID:     "taxonomy_id",
		TaxonomyLevel:  "taxonomy_lvl",
		AssignedReads:  "kraken_assigned_reads",
		AddedReads:     "added_reads",
		EstimatedReads: "new_est_reads",
		Fraction:       "fraction_total_reads",
	},
}

// renames maps source column names to canonical ones.
func (l Layout) renames() map[string]string {
	return map[string]string{
		l.Name:           "name",
		l.TaxonomyID:     "taxonomy_id",
		l.TaxonomyLevel:  "taxonomy_lvl",
		l.AssignedReads:  "kraken_assigned_reads",
		l.AddedReads:     "added_reads",
		l.EstimatedReads: "new_est_reads",
		l.Fraction:       "fraction_total_reads",
	}
}

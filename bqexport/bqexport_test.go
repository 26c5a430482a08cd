package bqexport

import (
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/carbocation/metacompare/bracken"
	"github.com/carbocation/metacompare/kraken"
	"github.com/carbocation/metacompare/profile"
	"github.com/google/go-cmp/cmp"
)

func TestRows(t *testing.T) {
	a := bracken.Table{Condition: bracken.MetaG, Records: []bracken.Record{
		{Name: "sp1", TaxonomyID: 1, TaxonomyLevel: "S", EstimatedReads: 60, Fraction: 0.6},
		{Name: "sp2", TaxonomyID: 2, TaxonomyLevel: "S", EstimatedReads: 40, Fraction: 0.4},
	}}
	b := bracken.Table{Condition: bracken.MetaT, Records: []bracken.Record{
		{Name: "sp2", TaxonomyID: 2, TaxonomyLevel: "S", EstimatedReads: 50, Fraction: 0.5},
	}}
	summary := profile.Summary{
		A: kraken.ClassificationStats{Classified: 90, Unclassified: 10},
		B: kraken.ClassificationStats{Classified: 70, Unclassified: 30},
	}

	merged, _ := profile.Merge(a, b, summary)
	rows := Rows("G1", "T1", merged)

	expected := []*TaxonRow{
		{
			IDA: "G1", IDB: "T1", Name: "sp1",
			TaxonomyIDMetaG:     bigquery.NullInt64{Int64: 1, Valid: true},
			EstimatedReadsMetaG: bigquery.NullInt64{Int64: 60, Valid: true},
			FractionMetaG:       bigquery.NullFloat64{Float64: 0.6, Valid: true},
			Difference:          0.6,
			ClassifiedMetaG:     90,
			ClassifiedMetaT:     70,
		},
		{
			IDA: "G1", IDB: "T1", Name: "sp2",
			TaxonomyIDMetaG:     bigquery.NullInt64{Int64: 2, Valid: true},
			EstimatedReadsMetaG: bigquery.NullInt64{Int64: 40, Valid: true},
			FractionMetaG:       bigquery.NullFloat64{Float64: 0.4, Valid: true},
			TaxonomyIDMetaT:     bigquery.NullInt64{Int64: 2, Valid: true},
			EstimatedReadsMetaT: bigquery.NullInt64{Int64: 50, Valid: true},
			FractionMetaT:       bigquery.NullFloat64{Float64: 0.5, Valid: true},
			Difference:          0.4 - 0.5,
			InOverlap:           true,
			ClassifiedMetaG:     90,
			ClassifiedMetaT:     70,
		},
	}

	if diff := cmp.Diff(expected, rows); diff != "" {
		t.Fatalf("Rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSchema(t *testing.T) {
	schema, err := bigquery.InferSchema(TaxonRow{})
	if err != nil {
		t.Fatal(err)
	}

	if len(schema) != 13 {
		t.Fatalf("Expected 13 columns, got %d", len(schema))
	}
	if schema[3].Name != "taxonomy_id_metaG" || schema[3].Required {
		t.Fatalf("Expected a nullable taxonomy_id_metaG column, got %+v", schema[3])
	}
}

// Package bqexport uploads merged profiles to a BigQuery table, one row per
// taxon, so that many comparisons can be queried together.
package bqexport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/carbocation/metacompare/profile"
	"github.com/carbocation/pfx"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

type WrappedBigQuery struct {
	Context  context.Context
	Client   *bigquery.Client
	Project  string
	Database string
}

// TaxonRow is one taxon of one comparison. The metaG and metaT columns are
// null when the taxon was not seen in that sample.
type TaxonRow struct {
	IDA  string `bigquery:"id_a"`
	IDB  string `bigquery:"id_b"`
	Name string `bigquery:"name"`

	TaxonomyIDMetaG     bigquery.NullInt64   `bigquery:"taxonomy_id_metaG"`
	EstimatedReadsMetaG bigquery.NullInt64   `bigquery:"new_est_reads_metaG"`
	FractionMetaG       bigquery.NullFloat64 `bigquery:"fraction_total_reads_metaG"`

	TaxonomyIDMetaT     bigquery.NullInt64   `bigquery:"taxonomy_id_metaT"`
	EstimatedReadsMetaT bigquery.NullInt64   `bigquery:"new_est_reads_metaT"`
	FractionMetaT       bigquery.NullFloat64 `bigquery:"fraction_total_reads_metaT"`

	Difference float64 `bigquery:"difference"`
	InOverlap  bool    `bigquery:"in_overlap"`

	ClassifiedMetaG float64 `bigquery:"classified_pct_metaG"`
	ClassifiedMetaT float64 `bigquery:"classified_pct_metaT"`
}

// Rows flattens an outer-join profile for upload.
func Rows(idA, idB string, merged *profile.Profile) []*TaxonRow {
	out := make([]*TaxonRow, 0, len(merged.Rows))
	for _, r := range merged.Rows {
		row := &TaxonRow{
			IDA:             idA,
			IDB:             idB,
			Name:            r.Name,
			Difference:      r.Difference,
			InOverlap:       r.A.Present && r.B.Present,
			ClassifiedMetaG: merged.Summary.A.Classified,
			ClassifiedMetaT: merged.Summary.B.Classified,
		}
		if r.A.Present {
			row.TaxonomyIDMetaG = bigquery.NullInt64{Int64: r.A.TaxonomyID, Valid: true}
			row.EstimatedReadsMetaG = bigquery.NullInt64{Int64: r.A.EstimatedReads, Valid: true}
			row.FractionMetaG = bigquery.NullFloat64{Float64: r.A.Fraction.Float64, Valid: r.A.Fraction.Valid}
		}
		if r.B.Present {
			row.TaxonomyIDMetaT = bigquery.NullInt64{Int64: r.B.TaxonomyID, Valid: true}
			row.EstimatedReadsMetaT = bigquery.NullInt64{Int64: r.B.EstimatedReads, Valid: true}
			row.FractionMetaT = bigquery.NullFloat64{Float64: r.B.Fraction.Float64, Valid: r.B.Fraction.Valid}
		}
		out = append(out, row)
	}
	return out
}

type Exporter struct {
	BQ    *WrappedBigQuery
	Table string
}

// New connects to BigQuery. dataset is the BigQuery dataset within project
// that holds table.
func New(ctx context.Context, project, dataset, table string) (*Exporter, error) {
	if project == "" || dataset == "" || table == "" {
		return nil, fmt.Errorf("project, dataset and table are all required, got %q, %q, %q", project, dataset, table)
	}

	BQ := &WrappedBigQuery{
		Context:  ctx,
		Project:  project,
		Database: dataset,
	}

	var err error
	BQ.Client, err = bigquery.NewClient(BQ.Context, BQ.Project)
	if err != nil {
		return nil, fmt.Errorf("connecting to BigQuery: %v", err)
	}

	return &Exporter{BQ: BQ, Table: table}, nil
}

func (e *Exporter) Close() error {
	return e.BQ.Client.Close()
}

func (e *Exporter) table() *bigquery.Table {
	return e.BQ.Client.Dataset(e.BQ.Database).Table(e.Table)
}

// EnsureTable creates the destination table if it does not exist yet.
func (e *Exporter) EnsureTable(ctx context.Context) error {
	_, err := e.table().Metadata(ctx)
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return pfx.Err(err)
	}

	schema, err := bigquery.InferSchema(TaxonRow{})
	if err != nil {
		return pfx.Err(err)
	}

	if err := e.table().Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// Upload streams every row of merged into the table. Rows already uploaded
// for the pair are not replaced; check Count first to avoid duplicates.
func (e *Exporter) Upload(ctx context.Context, idA, idB string, merged *profile.Profile) error {
	if err := e.EnsureTable(ctx); err != nil {
		return err
	}

	rows := Rows(idA, idB, merged)
	if len(rows) == 0 {
		return nil
	}

	if err := e.table().Inserter().Put(ctx, rows); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// Count returns the number of rows already uploaded for the pair.
func (e *Exporter) Count(ctx context.Context, idA, idB string) (int64, error) {
	query := e.BQ.Client.Query(fmt.Sprintf("SELECT COUNT(*) AS n FROM `%s.%s.%s` WHERE id_a = @id_a AND id_b = @id_b", e.BQ.Project, e.BQ.Database, e.Table))
	query.Parameters = []bigquery.QueryParameter{
		{Name: "id_a", Value: idA},
		{Name: "id_b", Value: idB},
	}

	itr, err := query.Read(ctx)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			// The table just doesn't exist yet
			return 0, nil
		}
		return 0, pfx.Err(err)
	}

	var total int64
	for {
		var values struct {
			N int64 `bigquery:"n"`
		}
		err := itr.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, pfx.Err(err)
		}
		total += values.N
	}

	return total, nil
}

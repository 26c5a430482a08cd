// Package catalog keeps a sqlite ledger of comparison runs, completed or
// aborted, so that results can be looked up without re-reading the
// similarity logs.
package catalog

import (
	"context"
	"time"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"
	"gopkg.in/guregu/null.v3"
)

const (
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          INTEGER PRIMARY KEY AUTOINCREMENT,
	id_a            TEXT NOT NULL,
	id_b            TEXT NOT NULL,
	work_dir        TEXT NOT NULL,
	status          TEXT NOT NULL,
	failed_stage    TEXT,
	error           TEXT,
	exit_code       INTEGER NOT NULL DEFAULT 0,
	classified_a    REAL,
	unclassified_a  REAL,
	classified_b    REAL,
	unclassified_b  REAL,
	merged_taxa     INTEGER,
	overlap_taxa    INTEGER,
	cosine          REAL,
	l1              REAL,
	started_at      TEXT NOT NULL,
	finished_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_pair ON runs (id_a, id_b);
`

// Run is one row of the ledger. Result columns are null for aborted runs.
type Run struct {
	RunID    int64  `db:"run_id"`
	IDA      string `db:"id_a"`
	IDB      string `db:"id_b"`
	WorkDir  string `db:"work_dir"`
	Status   string `db:"status"`
	ExitCode int    `db:"exit_code"`

	FailedStage null.String `db:"failed_stage"`
	Error       null.String `db:"error"`

	ClassifiedA   null.Float `db:"classified_a"`
	UnclassifiedA null.Float `db:"unclassified_a"`
	ClassifiedB   null.Float `db:"classified_b"`
	UnclassifiedB null.Float `db:"unclassified_b"`
	MergedTaxa    null.Int   `db:"merged_taxa"`
	OverlapTaxa   null.Int   `db:"overlap_taxa"`
	Cosine        null.Float `db:"cosine"`
	L1            null.Float `db:"l1"`

	// RFC 3339 timestamps, stored as text so both sqlite drivers agree.
	StartedAt  string `db:"started_at"`
	FinishedAt string `db:"finished_at"`
}

// Timestamp formats t the way StartedAt and FinishedAt are stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

type Catalog struct {
	db *sqlx.DB
}

// Open connects to (creating if needed) the catalog at path.
func Open(path string) (*Catalog, error) {
	db, err := sqlx.Connect(driverName, path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	// sqlite permits one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	return &Catalog{db: db}, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// Record inserts r and returns its run_id.
func (c *Catalog) Record(ctx context.Context, r Run) (int64, error) {
	res, err := c.db.NamedExecContext(ctx, `INSERT INTO runs (
		id_a, id_b, work_dir, status, failed_stage, error, exit_code,
		classified_a, unclassified_a, classified_b, unclassified_b,
		merged_taxa, overlap_taxa, cosine, l1, started_at, finished_at
	) VALUES (
		:id_a, :id_b, :work_dir, :status, :failed_stage, :error, :exit_code,
		:classified_a, :unclassified_a, :classified_b, :unclassified_b,
		:merged_taxa, :overlap_taxa, :cosine, :l1, :started_at, :finished_at
	)`, r)
	if err != nil {
		return 0, pfx.Err(err)
	}

	return res.LastInsertId()
}

// Runs returns every recorded run of the pair, oldest first.
func (c *Catalog) Runs(ctx context.Context, idA, idB string) ([]Run, error) {
	out := []Run{}
	if err := c.db.SelectContext(ctx, &out, `SELECT * FROM runs WHERE id_a = ? AND id_b = ? ORDER BY run_id`, idA, idB); err != nil {
		return nil, pfx.Err(err)
	}
	return out, nil
}

// Latest returns the most recent completed run of the pair, if any.
func (c *Catalog) Latest(ctx context.Context, idA, idB string) (*Run, bool, error) {
	out := []Run{}
	err := c.db.SelectContext(ctx, &out, `SELECT * FROM runs WHERE id_a = ? AND id_b = ? AND status = ? ORDER BY run_id DESC LIMIT 1`, idA, idB, StatusCompleted)
	if err != nil {
		return nil, false, pfx.Err(err)
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return &out[0], true, nil
}

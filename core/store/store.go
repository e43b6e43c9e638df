// Package store persists linkage tables and torsion tables in SQLite. Each
// invocation is a run identified by a UUID so results from several
// structures or trajectories can share one database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/GlycoTorsion/core/errors"
	"github.com/FocuswithJustin/GlycoTorsion/core/glycan"
	"github.com/FocuswithJustin/GlycoTorsion/core/sqlite"
	"github.com/FocuswithJustin/GlycoTorsion/core/torsion"
	"github.com/FocuswithJustin/GlycoTorsion/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	source     TEXT NOT NULL,
	structure  TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS linkages (
	run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	chain    TEXT NOT NULL,
	position INTEGER NOT NULL,
	glycan2  TEXT NOT NULL,
	index2   TEXT NOT NULL,
	linkage  TEXT NOT NULL,
	glycan1  TEXT NOT NULL,
	index1   TEXT NOT NULL,
	PRIMARY KEY (run_id, chain, position)
);
CREATE TABLE IF NOT EXISTS torsions (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	chain      TEXT NOT NULL,
	kind       TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	label      TEXT NOT NULL,
	frame_no   INTEGER NOT NULL,
	degrees    REAL,
	applicable INTEGER NOT NULL,
	series     INTEGER NOT NULL,
	PRIMARY KEY (run_id, chain, kind, seq, frame_no)
);
`

// Run is one recorded invocation.
type Run struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Source    string `json:"source"`
	Structure string `json:"structure,omitempty"`
}

// Store is a SQLite results database.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	// A single connection keeps the foreign key pragma and serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.NewIO("migrate", path, err)
	}
	logging.Debug("store_opened", "path", path, "driver", sqlite.DriverType())
	return &Store{db: db, path: path, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewRun records a new run.
func (s *Store) NewRun(ctx context.Context, source, structure string) (Run, error) {
	r := Run{
		ID:        uuid.New().String(),
		CreatedAt: s.now().UTC().Format(time.RFC3339),
		Source:    source,
		Structure: structure,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, source, structure) VALUES (?, ?, ?, ?)`,
		r.ID, r.CreatedAt, r.Source, r.Structure)
	if err != nil {
		return Run{}, errors.NewIO("insert run", s.path, err)
	}
	return r, nil
}

// Runs lists runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, source, structure FROM runs ORDER BY created_at, rowid`)
	if err != nil {
		return nil, errors.NewIO("query runs", s.path, err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Source, &r.Structure); err != nil {
			return nil, errors.NewIO("scan run", s.path, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run returns one run by ID.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, source, structure FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &r.CreatedAt, &r.Source, &r.Structure)
	if err == sql.ErrNoRows {
		return Run{}, errors.NewLookup("run", id)
	}
	if err != nil {
		return Run{}, errors.NewIO("query run", s.path, err)
	}
	return r, nil
}

// DeleteRun removes a run and everything recorded for it.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return errors.NewIO("delete run", s.path, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewLookup("run", id)
	}
	return nil
}

// SaveChains stores the linkage table of every chain under runID.
func (s *Store) SaveChains(ctx context.Context, runID string, chains []*glycan.Chain) error {
	return sqlite.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO linkages
			(run_id, chain, position, glycan2, index2, linkage, glycan1, index1)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return errors.NewIO("prepare linkages", s.path, err)
		}
		defer stmt.Close()

		for _, c := range chains {
			for i, r := range c.Rows() {
				if _, err := stmt.ExecContext(ctx, runID, c.Key(), i,
					r.Glycan2, r.Index2, string(r.Linkage), r.Glycan1, r.Index1); err != nil {
					return fmt.Errorf("chain %s row %d: %w", c.Key(), i, errors.NewIO("insert linkage", s.path, err))
				}
			}
		}
		return nil
	})
}

// Chains lists the chain keys stored under runID.
func (s *Store) Chains(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT chain FROM linkages WHERE run_id = ? ORDER BY chain`, runID)
	if err != nil {
		return nil, errors.NewIO("query chains", s.path, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, errors.NewIO("scan chain", s.path, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Linkages returns the stored rows of one chain in row order.
func (s *Store) Linkages(ctx context.Context, runID, chain string) ([]glycan.Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT glycan2, index2, linkage, glycan1, index1
		FROM linkages WHERE run_id = ? AND chain = ? ORDER BY position`, runID, chain)
	if err != nil {
		return nil, errors.NewIO("query linkages", s.path, err)
	}
	defer rows.Close()

	var out []glycan.Row
	for rows.Next() {
		var r glycan.Row
		var code string
		if err := rows.Scan(&r.Glycan2, &r.Index2, &code, &r.Glycan1, &r.Index1); err != nil {
			return nil, errors.NewIO("scan linkage", s.path, err)
		}
		r.Linkage = glycan.LinkageCode(code)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("query linkages", s.path, err)
	}
	if len(out) == 0 {
		return nil, errors.NewLookup("chain", chain)
	}
	return out, nil
}

// SaveTorsions stores torsion tables under runID, one row per label and
// frame. Not applicable values are stored with a NULL angle.
func (s *Store) SaveTorsions(ctx context.Context, runID string, tables []*torsion.Table) error {
	return sqlite.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO torsions
			(run_id, chain, kind, seq, label, frame_no, degrees, applicable, series)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return errors.NewIO("prepare torsions", s.path, err)
		}
		defer stmt.Close()

		for _, t := range tables {
			for seq, r := range t.Results {
				insert := func(frame int, deg sql.NullFloat64, series bool) error {
					_, err := stmt.ExecContext(ctx, runID, t.Chain, string(t.Kind), seq, r.Label,
						frame, deg, !r.Value.NotApplicable, series)
					if err != nil {
						return fmt.Errorf("%s %s: %w", t.Chain, r.Label, errors.NewIO("insert torsion", s.path, err))
					}
					return nil
				}
				switch v := r.Value; {
				case v.NotApplicable:
					err = insert(0, sql.NullFloat64{}, false)
				case v.Series != nil:
					for f, a := range v.Series {
						if err = insert(f, sql.NullFloat64{Float64: a, Valid: true}, true); err != nil {
							break
						}
					}
				default:
					err = insert(0, sql.NullFloat64{Float64: v.Angle, Valid: true}, false)
				}
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Torsions rebuilds a stored torsion table.
func (s *Store) Torsions(ctx context.Context, runID, chain string, kind torsion.Kind) (*torsion.Table, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, label, degrees, applicable, series
		FROM torsions WHERE run_id = ? AND chain = ? AND kind = ? ORDER BY seq, frame_no`,
		runID, chain, string(kind))
	if err != nil {
		return nil, errors.NewIO("query torsions", s.path, err)
	}
	defer rows.Close()

	t := &torsion.Table{Chain: chain, Kind: kind}
	last := -1
	for rows.Next() {
		var (
			seq        int
			label      string
			deg        sql.NullFloat64
			applicable bool
			series     bool
		)
		if err := rows.Scan(&seq, &label, &deg, &applicable, &series); err != nil {
			return nil, errors.NewIO("scan torsion", s.path, err)
		}
		if seq != last {
			t.Results = append(t.Results, torsion.Result{Label: label})
			last = seq
		}
		v := &t.Results[len(t.Results)-1].Value
		switch {
		case !applicable:
			v.NotApplicable = true
		case series:
			v.Series = append(v.Series, deg.Float64)
		default:
			v.Angle = deg.Float64
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("query torsions", s.path, err)
	}
	if len(t.Results) == 0 {
		return nil, errors.NewLookup("torsions", fmt.Sprintf("%s/%s", chain, kind))
	}
	return t, nil
}

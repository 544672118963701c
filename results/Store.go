package results

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Row is one finished phase of a run.
type Row struct {
	RunID      string
	Phase      string
	UserID     int
	ElapsedNs  int64
	Inserted   int
	FailedAt   int // -1 when the batch completed
	Leaves     int
	ModelNodes int
	Artifact   string
}

// Store appends phase results to a sqlite database.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS phases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		phase TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		elapsed_ns INTEGER NOT NULL,
		inserted INTEGER NOT NULL,
		failed_at INTEGER NOT NULL,
		leaves INTEGER NOT NULL,
		model_nodes INTEGER NOT NULL,
		artifact TEXT NOT NULL
	);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("init results table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Record(rows ...Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO phases
		(run_id, phase, user_id, elapsed_ns, inserted, failed_at, leaves, model_nodes, artifact)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.RunID, r.Phase, r.UserID, r.ElapsedNs, r.Inserted, r.FailedAt, r.Leaves, r.ModelNodes, r.Artifact); err != nil {
			tx.Rollback()
			return fmt.Errorf("record %s phase of user %d: %w", r.Phase, r.UserID, err)
		}
	}
	return tx.Commit()
}

// Rows returns the rows of runID in insertion order.
func (s *Store) Rows(runID string) ([]Row, error) {
	rows, err := s.db.Query(`SELECT run_id, phase, user_id, elapsed_ns, inserted, failed_at, leaves, model_nodes, artifact
		FROM phases WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.RunID, &r.Phase, &r.UserID, &r.ElapsedNs, &r.Inserted, &r.FailedAt, &r.Leaves, &r.ModelNodes, &r.Artifact); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

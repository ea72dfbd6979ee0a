// Package sqlite provides a SQLite-backed checkpoint saver for runs whose
// state should survive the process.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/flowsim/flowsim/internal/core/checkpoint"
	"github.com/flowsim/flowsim/pkg/serialization"
)

// Saver implements checkpoint.Saver on a SQLite database. Edge values are
// stored as a serialized blob; the identifying columns stay queryable.
type Saver struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
}

// Open opens (or creates) a SQLite database at path and prepares the
// checkpoint table. Use ":memory:" for an ephemeral database.
func Open(ctx context.Context, path string) (*Saver, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	s := NewSaver(db, serialization.DefaultSerializer())
	if err := s.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSaver wraps an existing database handle.
func NewSaver(db *sql.DB, serializer *serialization.Serializer) *Saver {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &Saver{db: db, serializer: serializer, tableName: "checkpoints"}
}

// WithTableName overrides the default table name. Only alphanumerics and
// underscore are permitted, preventing SQL injection via identifiers.
func (s *Saver) WithTableName(name string) *Saver {
	if isSafeIdent(name) {
		s.tableName = name
	}
	return s
}

func isSafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
}

// CreateTables creates the checkpoint table and its indexes.
func (s *Saver) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			flowsheet_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			sim_time REAL NOT NULL,
			edge_values BLOB NOT NULL,
			timestamp INTEGER NOT NULL,
			version TEXT NOT NULL DEFAULT '1'
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_flowsheet_id ON %[1]s (flowsheet_id);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_run_id ON %[1]s (run_id);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_timestamp ON %[1]s (timestamp);
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create checkpoint tables: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Saver) Close() error {
	return s.db.Close()
}

// Save stores a checkpoint, replacing any existing one with the same ID.
func (s *Saver) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	if cp == nil {
		return checkpoint.ErrInvalidCheckpointID
	}
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("checkpoint validation failed: %w", err)
	}

	data, err := s.serializer.Serialize(cp.EdgeValues)
	if err != nil {
		return fmt.Errorf("serialize edge values: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (id, flowsheet_id, run_id, step, sim_time, edge_values, timestamp, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query,
		cp.ID, cp.FlowsheetID, cp.RunID, cp.Step, cp.SimTime, data, cp.Timestamp.Unix(), cp.Version); err != nil {
		return fmt.Errorf("%w: %v", checkpoint.ErrSaveFailed, err)
	}
	return nil
}

// Load retrieves a checkpoint by ID.
func (s *Saver) Load(ctx context.Context, id string) (*checkpoint.Checkpoint, error) {
	if id == "" {
		return nil, checkpoint.ErrInvalidCheckpointID
	}

	query := fmt.Sprintf(`
		SELECT id, flowsheet_id, run_id, step, sim_time, edge_values, timestamp, version
		FROM %s
		WHERE id = ?
	`, s.tableName)

	cp, err := scanCheckpoint(s.db.QueryRowContext(ctx, query, id), s.serializer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, checkpoint.ErrCheckpointNotFound
		}
		return nil, err
	}
	return cp, nil
}

// List retrieves checkpoints matching the filter, newest first.
func (s *Saver) List(ctx context.Context, filter checkpoint.Filter) ([]*checkpoint.Checkpoint, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var conds []string
	var args []any
	if filter.FlowsheetID != "" {
		conds = append(conds, "flowsheet_id = ?")
		args = append(args, filter.FlowsheetID)
	}
	if filter.RunID != "" {
		conds = append(conds, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Since != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, filter.Since.Unix())
	}
	if filter.Before != nil {
		conds = append(conds, "timestamp < ?")
		args = append(args, filter.Before.Unix())
	}

	query := fmt.Sprintf("SELECT id, flowsheet_id, run_id, step, sim_time, edge_values, timestamp, version FROM %s", s.tableName)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC, step DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit == 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*checkpoint.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows, s.serializer)
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return checkpoints, nil
}

// Delete removes a checkpoint by ID.
func (s *Saver) Delete(ctx context.Context, id string) error {
	if id == "" {
		return checkpoint.ErrInvalidCheckpointID
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%w: %v", checkpoint.ErrDeleteFailed, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return checkpoint.ErrCheckpointNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner, serializer *serialization.Serializer) (*checkpoint.Checkpoint, error) {
	var cp checkpoint.Checkpoint
	var data []byte
	var timestamp int64

	if err := row.Scan(&cp.ID, &cp.FlowsheetID, &cp.RunID, &cp.Step, &cp.SimTime, &data, &timestamp, &cp.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan checkpoint row: %w", err)
	}
	cp.Timestamp = time.Unix(timestamp, 0)

	cp.EdgeValues = make(map[string][]float64)
	if err := serializer.Deserialize(data, &cp.EdgeValues); err != nil {
		return nil, fmt.Errorf("deserialize edge values: %w", err)
	}
	return &cp, nil
}

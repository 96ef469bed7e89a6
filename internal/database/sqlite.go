package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lcb-go/internal/database/migrations"
	"lcb-go/internal/lcb"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the lcb.Database journal using SQLite.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock lcb.Clock
}

// NewSQLiteDatabase opens the journal at path, which can be a file path or
// ":memory:". The schema is not touched; see NewMigratedSQLiteDatabase.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path, clock: lcb.RealClock{}}, nil
}

// NewMigratedSQLiteDatabase opens the journal at path and applies all pending migrations.
func NewMigratedSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	s, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(s.db); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return s, nil
}

// OpenConnection opens and configures a SQLite connection with appropriate PRAGMAs.
// It is exported for tools and tests that need the same configuration.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	// SQLite leaves foreign keys off by default.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// SetClock replaces the clock used to stamp rows.
func (s *SQLiteDatabase) SetClock(clock lcb.Clock) {
	s.clock = clock
}

// Operations

func (s *SQLiteDatabase) CreateOperation(operation string, parameters string) (*lcb.Operation, error) {
	startedAt := s.clock.Now().UTC()
	res, err := s.db.ExecContext(context.Background(),
		`INSERT INTO operations (operation, parameters, started_at, status) VALUES (?, ?, ?, 'running')`,
		operation, parameters, startedAt)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return &lcb.Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt,
		Status:     "running",
	}, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string) error {
	res, err := s.db.ExecContext(context.Background(),
		`UPDATE operations SET finished_at = ?, status = ? WHERE id = ?`,
		s.clock.Now().UTC(), status, id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing operation: no operation with id %d", id)
	}
	return nil
}

const operationColumns = `id, operation, parameters, started_at, finished_at, status`

func (s *SQLiteDatabase) FindOperation(id int64) (*lcb.Operation, error) {
	row := s.db.QueryRowContext(context.Background(),
		`SELECT `+operationColumns+` FROM operations WHERE id = ?`, id)
	op, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding operation: %w", err)
	}
	return op, nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*lcb.Operation, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT `+operationColumns+` FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*lcb.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("listing operations: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

func (s *SQLiteDatabase) MaxOperationID() (int64, error) {
	var id int64
	err := s.db.QueryRowContext(context.Background(),
		`SELECT COALESCE(MAX(id), 0) FROM operations`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("getting max operation ID: %w", err)
	}
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(row scanner) (*lcb.Operation, error) {
	var (
		op       lcb.Operation
		finished sql.NullTime
	)
	if err := row.Scan(&op.ID, &op.Operation, &op.Parameters, &op.StartedAt, &finished, &op.Status); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		op.FinishedAt = &t
	}
	return &op, nil
}

// Actions

func (s *SQLiteDatabase) CreateAction(operationID int64, action *lcb.Action) (*lcb.ActionRecord, error) {
	createdAt := s.clock.Now().UTC()
	res, err := s.db.ExecContext(context.Background(),
		`INSERT INTO actions (operation_id, kind, room, source, destination, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		operationID, string(action.Kind), action.Room, action.Source, action.Destination, createdAt)
	if err != nil {
		return nil, fmt.Errorf("creating action: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading action id: %w", err)
	}
	return &lcb.ActionRecord{ID: id, OperationID: operationID, Action: *action, CreatedAt: createdAt}, nil
}

func (s *SQLiteDatabase) ListActions(operationID int64) ([]*lcb.ActionRecord, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, operation_id, kind, room, source, destination, created_at
		 FROM actions WHERE operation_id = ? ORDER BY id`, operationID)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}
	defer rows.Close()

	var out []*lcb.ActionRecord
	for rows.Next() {
		var (
			rec  lcb.ActionRecord
			kind string
		)
		if err := rows.Scan(&rec.ID, &rec.OperationID, &kind, &rec.Room, &rec.Source, &rec.Destination, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("listing actions: %w", err)
		}
		rec.Kind = lcb.ActionKind(kind)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}
	return out, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// SchemaVersion returns the applied schema version, 0 for a fresh database.
func (s *SQLiteDatabase) SchemaVersion() (uint, error) {
	version, _, err := migrations.SchemaVersion(s.db)
	return version, err
}

// Migrate applies all pending migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ lcb.Database = (*SQLiteDatabase)(nil)

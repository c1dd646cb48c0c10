package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/paasdeploy/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// Every connection to ":memory:" is a separate database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID           string  `db:"id"`
	App          string  `db:"app"`
	UserEmail    string  `db:"user_email"`
	Delivery     string  `db:"delivery"`
	Status       string  `db:"status"`
	FailedStep   string  `db:"failed_step"`
	ErrorMessage string  `db:"error_message"`
	AppCreated   bool    `db:"app_created"`
	UnitsAdded   int     `db:"units_added"`
	StartedAt    string  `db:"started_at"`
	FinishedAt   *string `db:"finished_at"`
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return createRun(ctx, s.db, run)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.db, id)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *domain.Run) error {
	return finishRun(ctx, s.db, run)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.db, opts)
}

func (s *SQLiteStore) ListRunsByApp(ctx context.Context, app string, opts ListOptions) ([]domain.Run, error) {
	return listRunsByApp(ctx, s.db, app, opts)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return createRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) FinishRun(ctx context.Context, run *domain.Run) error {
	return finishRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.tx, opts)
}

func (s *txSQLiteStore) ListRunsByApp(ctx context.Context, app string, opts ListOptions) ([]domain.Run, error) {
	return listRunsByApp(ctx, s.tx, app, opts)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createRun(ctx context.Context, exec executor, run *domain.Run) error {
	query := `
		INSERT INTO runs (
			id, app, user_email, delivery, status, failed_step, error_message,
			app_created, units_added, started_at, finished_at
		) VALUES (
			:id, :app, :user_email, :delivery, :status, :failed_step, :error_message,
			:app_created, :units_added, :started_at, :finished_at
		)`

	_, err := exec.NamedExecContext(ctx, query, runToRow(run))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.id") {
			return NewStoreError("CreateRun", "run", run.ID, "run with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateRun", "run", run.ID, err.Error(), err)
	}
	return nil
}

func getRun(ctx context.Context, exec executor, id string) (*domain.Run, error) {
	query := `SELECT * FROM runs WHERE id = ?`

	var row runRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}

	return rowToRun(&row)
}

func finishRun(ctx context.Context, exec executor, run *domain.Run) error {
	query := `
		UPDATE runs SET
			status = :status,
			failed_step = :failed_step,
			error_message = :error_message,
			app_created = :app_created,
			units_added = :units_added,
			finished_at = :finished_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, runToRow(run))
	if err != nil {
		return NewStoreError("FinishRun", "run", run.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("FinishRun", "run", run.ID, "run not found", ErrNotFound)
	}
	return nil
}

func listRuns(ctx context.Context, exec executor, opts ListOptions) ([]domain.Run, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`

	var rows []runRow
	if err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListRuns", "run", "", err.Error(), err)
	}
	return rowsToRuns(rows)
}

func listRunsByApp(ctx context.Context, exec executor, app string, opts ListOptions) ([]domain.Run, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM runs WHERE app = ? ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`

	var rows []runRow
	if err := exec.SelectContext(ctx, &rows, query, app, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListRunsByApp", "run", "", err.Error(), err)
	}
	return rowsToRuns(rows)
}

// =============================================================================
// Row Conversion
// =============================================================================

func runToRow(run *domain.Run) runRow {
	var finishedAt *string
	if run.FinishedAt != nil {
		s := run.FinishedAt.UTC().Format(timeFormat)
		finishedAt = &s
	}
	return runRow{
		ID:           run.ID,
		App:          run.App,
		UserEmail:    run.User,
		Delivery:     string(run.Delivery),
		Status:       string(run.Status),
		FailedStep:   string(run.FailedStep),
		ErrorMessage: run.Error,
		AppCreated:   run.AppCreated,
		UnitsAdded:   run.UnitsAdded,
		StartedAt:    run.StartedAt.UTC().Format(timeFormat),
		FinishedAt:   finishedAt,
	}
}

func rowToRun(row *runRow) (*domain.Run, error) {
	startedAt, err := time.Parse(timeFormat, row.StartedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, "failed to parse started_at", ErrInvalidData)
	}

	var finishedAt *time.Time
	if row.FinishedAt != nil && *row.FinishedAt != "" {
		t, err := time.Parse(timeFormat, *row.FinishedAt)
		if err != nil {
			return nil, NewStoreError("rowToRun", "run", row.ID, "failed to parse finished_at", ErrInvalidData)
		}
		finishedAt = &t
	}

	step := domain.Step(row.FailedStep)
	if step != "" && !step.Valid() {
		return nil, NewStoreError("rowToRun", "run", row.ID, "unknown failed_step "+row.FailedStep, ErrInvalidData)
	}

	return &domain.Run{
		ID:         row.ID,
		App:        row.App,
		User:       row.UserEmail,
		Delivery:   domain.DeliveryMethod(row.Delivery),
		Status:     domain.RunStatus(row.Status),
		FailedStep: step,
		Error:      row.ErrorMessage,
		AppCreated: row.AppCreated,
		UnitsAdded: row.UnitsAdded,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}, nil
}

func rowsToRuns(rows []runRow) ([]domain.Run, error) {
	runs := make([]domain.Run, 0, len(rows))
	for i := range rows {
		run, err := rowToRun(&rows[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// Package sqlite persists the execution audit trail (every batch and leg
// outcome, reconcilable against the broker's order book) and the position
// records derived from successful executions.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"execution-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/executions.db"
}

// Writer is a single-connection SQLite writer. Executions are written in
// one transaction so the audit trail is never half-persisted.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database in WAL mode and creates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS executions (
			execution_id    TEXT    NOT NULL PRIMARY KEY,
			total_batches   INTEGER NOT NULL,
			total_lots      INTEGER NOT NULL,
			lot_size        INTEGER NOT NULL,
			overall_success INTEGER NOT NULL,
			started_at      INTEGER NOT NULL,
			finished_at     INTEGER NOT NULL,
			summary_json    TEXT    NOT NULL
		);
		CREATE TABLE IF NOT EXISTS leg_results (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			execution_id  TEXT    NOT NULL,
			batch_index   INTEGER NOT NULL,
			leg           TEXT    NOT NULL,
			quantity      INTEGER NOT NULL,
			order_id      TEXT,
			success       INTEGER NOT NULL,
			error_code    TEXT,
			error_message TEXT,
			network       INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_leg_results_execution
			ON leg_results(execution_id, batch_index);
		CREATE TABLE IF NOT EXISTS positions (
			execution_id TEXT NOT NULL PRIMARY KEY,
			underlying   TEXT NOT NULL,
			call_symbol  TEXT,
			put_symbol   TEXT,
			filled_qty   INTEGER NOT NULL,
			avg_price    REAL NOT NULL,
			margin_used  REAL NOT NULL,
			opened_at    INTEGER NOT NULL
		);
	`)
	return err
}

// SaveExecution writes the summary row and every leg result in one
// transaction.
func (w *Writer) SaveExecution(ctx context.Context, summary *model.ExecutionSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("sqlite encode summary: %w", err)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO executions
			(execution_id, total_batches, total_lots, lot_size, overall_success, started_at, finished_at, summary_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.ExecutionID, summary.TotalBatches, summary.TotalLots, summary.LotSize,
		boolToInt(summary.OverallSuccess), summary.StartedAt.Unix(), summary.FinishedAt.Unix(), string(raw))
	if err != nil {
		return fmt.Errorf("sqlite insert execution: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO leg_results
			(execution_id, batch_index, leg, quantity, order_id, success, error_code, error_message, network)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite prepare leg insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range summary.Results {
		_, err = stmt.ExecContext(ctx,
			summary.ExecutionID, res.BatchIndex, string(res.Kind), res.Quantity,
			res.OrderID, boolToInt(res.Success), res.ErrorCode, res.ErrorMessage, boolToInt(res.Network))
		if err != nil {
			return fmt.Errorf("sqlite insert leg result: %w", err)
		}
	}

	return tx.Commit()
}

// SavePosition writes the position derived from a successful execution.
func (w *Writer) SavePosition(ctx context.Context, pos *model.Position) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO positions
			(execution_id, underlying, call_symbol, put_symbol, filled_qty, avg_price, margin_used, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pos.ExecutionID, pos.Underlying, pos.CallSymbol, pos.PutSymbol,
		pos.FilledQuantity, pos.AvgPrice, pos.MarginUsed, pos.OpenedAt.Unix())
	if err != nil {
		return fmt.Errorf("sqlite insert position: %w", err)
	}
	return nil
}

// ReadExecution loads a persisted summary by ID. Returns nil, nil when the
// execution is unknown.
func (w *Writer) ReadExecution(ctx context.Context, executionID string) (*model.ExecutionSummary, error) {
	var raw string
	err := w.db.QueryRowContext(ctx,
		`SELECT summary_json FROM executions WHERE execution_id = ?`, executionID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite read execution: %w", err)
	}
	var summary model.ExecutionSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil, fmt.Errorf("sqlite decode summary: %w", err)
	}
	return &summary, nil
}

// Close releases the database handle.
func (w *Writer) Close() error { return w.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/mazai-xiangji/TCMD-Bench/pkg"
)

//go:embed schema.sql
var schemaSQL string

// Archive mirrors result records into Postgres for cross-run querying. The
// JSON result file stays the source of truth for resume; the archive is a
// best-effort sink and its failures never abort a run.
type Archive struct {
	db    *sql.DB
	runID uuid.UUID
}

// OpenArchive connects to Postgres, verifies the connection, and applies the
// embedded schema. Every run gets its own id so rows from repeated runs over
// the same case set stay distinguishable.
func OpenArchive(dsn string) (*Archive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open archive: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping archive: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate archive: %w", err)
	}
	return &Archive{db: db, runID: uuid.New()}, nil
}

// RunID identifies this run's rows in the archive.
func (a *Archive) RunID() uuid.UUID { return a.runID }

// Record inserts one result row with the full record as a JSONB payload.
func (a *Archive) Record(ctx context.Context, res pkg.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("store: encode archive payload: %w", err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO evaluation_results (id, run_id, case_id, status, payload)
         VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), a.runID, res.CaseID, res.Status, payload,
	)
	if err != nil {
		return fmt.Errorf("store: archive case %s: %w", res.CaseID, err)
	}
	return nil
}

// Close releases the database connection.
func (a *Archive) Close() error { return a.db.Close() }

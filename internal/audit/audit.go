// Package audit is an ambient, append-only metadata sink for the
// orchestrator's per-request outcomes. It is written by the outer server
// after retry.Orchestrator.Execute returns; the orchestrator itself never
// touches storage, so the core stays stateless regardless of whether a
// sink is wired up at all.
//
// Grounded on the teacher's internal/store/sqlite_logs.go request_log
// table and internal/store/sqlite.go's connection setup (single-writer
// WAL-mode sqlite, busy_timeout pragma), narrowed from the full
// user/account/cost schema down to the fields retry.Metadata actually
// produces.
package audit

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ncruces/go-strftime"
	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"

	"github.com/shapegate/ccproxy/internal/retry"
)

// humanTimeLayout formats the sink's operator-facing timestamp column;
// strftime is used directly (rather than a hand-rolled time.Format layout)
// since it's already a transitive dependency of modernc.org/sqlite's own
// time handling.
const humanTimeLayout = "%Y-%m-%d %H:%M:%S UTC"

const schema = `
CREATE TABLE IF NOT EXISTS request_audit (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	model                  TEXT NOT NULL,
	is_cli                 INTEGER NOT NULL,
	identity_rule_matched  INTEGER NOT NULL,
	proactive_removed      INTEGER NOT NULL,
	overload_retry_count   INTEGER NOT NULL,
	orphan_repair_attempted INTEGER NOT NULL,
	orphan_repair_removed  INTEGER NOT NULL,
	final_status           INTEGER NOT NULL,
	outcome                TEXT NOT NULL,
	elapsed_ms             INTEGER NOT NULL,
	created_at             INTEGER NOT NULL,
	created_at_human       TEXT NOT NULL,
	correlation            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_request_audit_created_at ON request_audit(created_at);
CREATE INDEX IF NOT EXISTS idx_request_audit_outcome ON request_audit(outcome);
`

// Sink persists retry.Metadata rows to a single-writer sqlite database.
type Sink struct {
	db  *sql.DB
	key [blake2b.Size256]byte
}

// Open creates (or reuses) the sqlite file at path and ensures the schema
// exists. One connection is kept open, matching the teacher's
// single-writer WAL setup — this sink never needs concurrent writers since
// the server calls Record from one request goroutine at a time per
// connection and sqlite serializes the rest.
func Open(path string) (*Sink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	s := &Sink{db: db}
	if _, err := rand.Read(s.key[:]); err != nil {
		db.Close()
		return nil, fmt.Errorf("generate audit correlation key: %w", err)
	}
	return s, nil
}

// Record inserts one completed request's metadata. Errors are returned to
// the caller to log; a failed audit write must never fail the request it
// describes, so callers should log-and-continue rather than propagate it
// upstream.
func (s *Sink) Record(ctx context.Context, meta retry.Metadata) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO request_audit (model, is_cli, identity_rule_matched, proactive_removed,
			overload_retry_count, orphan_repair_attempted, orphan_repair_removed,
			final_status, outcome, elapsed_ms, created_at, created_at_human, correlation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.Model, boolToInt(meta.IsCLI), boolToInt(meta.IdentityRuleMatched),
		len(meta.ProactiveRemovedIDs), meta.OverloadRetryCount,
		boolToInt(meta.OrphanRepairAttempted), len(meta.OrphanRepairRemovedIDs),
		meta.FinalStatus, meta.Outcome.String(), meta.Elapsed.Milliseconds(),
		now.Unix(), strftime.Format(humanTimeLayout, now), s.correlationHash(meta, now))
	return err
}

// correlationHash computes a keyed BLAKE2b-256 digest over the fields that
// identify one audited request, so separate log lines about the same
// request can be joined by an operator without the sink ever storing
// conversation content or upstream response bodies (spec: no persistence
// of conversation state).
func (s *Sink) correlationHash(meta retry.Metadata, at time.Time) string {
	h, _ := blake2b.New256(s.key[:])
	fmt.Fprintf(h, "%s|%s|%d|%d", meta.Model, meta.Outcome.String(), meta.FinalStatus, at.UnixNano())
	return hex.EncodeToString(h.Sum(nil))
}

// Summary aggregates request counts and outcome breakdown since a cutoff,
// grounded on the teacher's QueryUsagePeriods aggregation idiom.
type Summary struct {
	Requests          int
	SuccessCount      int
	OverloadRetries   int
	OrphanRepairCount int
	ErrorCount        int
}

// Since returns a Summary of audited requests with created_at >= cutoff.
func (s *Sink) Since(ctx context.Context, cutoff time.Time) (Summary, error) {
	var sum Summary
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'success' OR outcome = 'orphan_repaired' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(overload_retry_count), 0),
			COALESCE(SUM(CASE WHEN outcome = 'orphan_repaired' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'passthrough_error' OR outcome = 'overload_exhausted' THEN 1 ELSE 0 END), 0)
		FROM request_audit WHERE created_at >= ?`, cutoff.Unix())
	if err := row.Scan(&sum.Requests, &sum.SuccessCount, &sum.OverloadRetries,
		&sum.OrphanRepairCount, &sum.ErrorCount); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

// Close releases the underlying database handle.
func (s *Sink) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

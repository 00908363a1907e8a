package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
	"github.com/henrymedina447/sbs-suptech-etl-v2/retry"
)

const metadataSchema = `
CREATE TABLE IF NOT EXISTS document_metadata (
	document_type TEXT    NOT NULL,
	record_id     TEXT    NOT NULL,
	child_index   INTEGER NOT NULL DEFAULT 0,
	period_month  TEXT    NOT NULL DEFAULT '',
	period_year   TEXT    NOT NULL DEFAULT '',
	fields        TEXT    NOT NULL,
	updated_at    INTEGER NOT NULL,
	PRIMARY KEY (document_type, record_id, child_index)
)`

var metadataPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// MetadataStore keeps extracted fields in SQLite, one row per record or
// registration child.
type MetadataStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenMetadataStore opens (and if needed creates) the database at path.
// ":memory:" gives a private in-memory database.
func OpenMetadataStore(path string) (*MetadataStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)

	for _, p := range metadataPragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("metadata db %q: %w", p, err)
		}
	}
	if _, err := db.Exec(metadataSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create metadata schema: %w", err)
	}
	return &MetadataStore{db: db, now: time.Now}, nil
}

func (s *MetadataStore) Close() error {
	return s.db.Close()
}

// SaveMetadata upserts entries in one transaction.
func (s *MetadataStore) SaveMetadata(ctx context.Context, docType model.DocumentType, entries []model.MetadataEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifySQLite(fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO document_metadata (document_type, record_id, child_index, period_month, period_year, fields, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (document_type, record_id, child_index) DO UPDATE SET
	period_month = excluded.period_month,
	period_year  = excluded.period_year,
	fields       = excluded.fields,
	updated_at   = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now().Unix()
	for _, e := range entries {
		fields := e.Fields
		if fields == nil {
			fields = model.Fields{}
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal fields of %s: %w", e.RecordID, err)
		}
		if _, err := stmt.ExecContext(ctx, string(docType), e.RecordID, e.ChildIndex, e.PeriodMonth, e.PeriodYear, string(data), now); err != nil {
			return classifySQLite(fmt.Errorf("upsert %s/%d: %w", e.RecordID, e.ChildIndex, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return classifySQLite(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Metadata returns the entries stored for recordID, ordered by child index.
func (s *MetadataStore) Metadata(ctx context.Context, docType model.DocumentType, recordID string) ([]model.MetadataEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT record_id, child_index, period_month, period_year, fields
FROM document_metadata
WHERE document_type = ? AND record_id = ?
ORDER BY child_index`, string(docType), recordID)
	if err != nil {
		return nil, fmt.Errorf("query metadata: %w", err)
	}
	defer rows.Close()

	var out []model.MetadataEntry
	for rows.Next() {
		var e model.MetadataEntry
		var fields string
		if err := rows.Scan(&e.RecordID, &e.ChildIndex, &e.PeriodMonth, &e.PeriodYear, &fields); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		if err := json.Unmarshal([]byte(fields), &e.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", e.RecordID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// classifySQLite marks lock contention as transient.
func classifySQLite(err error) error {
	if isBusy(err) {
		return retry.Transient("metadata.save", err)
	}
	return err
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

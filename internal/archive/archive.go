// Package archive persists verification runs in a local SQLite
// database so past verdicts can be reviewed without re-verifying. The
// engine itself never touches storage; only the CLI records here.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS verifications (
    id              TEXT PRIMARY KEY,
    filename        TEXT NOT NULL,
    verified_at     INTEGER NOT NULL,
    method          TEXT NOT NULL,
    metadata_valid  INTEGER NOT NULL,
    chain_valid     INTEGER NOT NULL,
    pure_typing     INTEGER NOT NULL,
    posw_valid      INTEGER NOT NULL,
    trust_level     TEXT NOT NULL,
    error_at        INTEGER,
    result_json     BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verifications_time ON verifications(verified_at);
CREATE INDEX IF NOT EXISTS idx_verifications_file ON verifications(filename, verified_at);
`

// Record is one archived verification run.
type Record struct {
	ID            string
	Filename      string
	VerifiedAt    time.Time
	Method        string
	MetadataValid bool
	ChainValid    bool
	PureTyping    bool
	PoSWValid     bool
	TrustLevel    string
	ErrorAt       *int
	Result        json.RawMessage
}

// Archive is the SQLite-backed verification history.
type Archive struct {
	db *sql.DB
}

// Open opens or creates the archive database and applies the schema.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply archive schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Save inserts one verification record.
func (a *Archive) Save(rec *Record) error {
	var errorAt sql.NullInt64
	if rec.ErrorAt != nil {
		errorAt = sql.NullInt64{Int64: int64(*rec.ErrorAt), Valid: true}
	}

	_, err := a.db.Exec(`
		INSERT INTO verifications
			(id, filename, verified_at, method, metadata_valid, chain_valid,
			 pure_typing, posw_valid, trust_level, error_at, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.VerifiedAt.UnixMilli(), rec.Method,
		rec.MetadataValid, rec.ChainValid, rec.PureTyping, rec.PoSWValid,
		rec.TrustLevel, errorAt, []byte(rec.Result),
	)
	if err != nil {
		return fmt.Errorf("save verification %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns the newest records, most recent first.
func (a *Archive) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := a.db.Query(`
		SELECT id, filename, verified_at, method, metadata_valid, chain_valid,
		       pure_typing, posw_valid, trust_level, error_at, result_json
		FROM verifications
		ORDER BY verified_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query verifications: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var verifiedAt int64
		var errorAt sql.NullInt64
		var result []byte
		if err := rows.Scan(&rec.ID, &rec.Filename, &verifiedAt, &rec.Method,
			&rec.MetadataValid, &rec.ChainValid, &rec.PureTyping, &rec.PoSWValid,
			&rec.TrustLevel, &errorAt, &result); err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		rec.VerifiedAt = time.UnixMilli(verifiedAt)
		if errorAt.Valid {
			idx := int(errorAt.Int64)
			rec.ErrorAt = &idx
		}
		rec.Result = json.RawMessage(result)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ForFile returns all records for one proof filename, newest first.
func (a *Archive) ForFile(filename string) ([]Record, error) {
	rows, err := a.db.Query(`
		SELECT id, filename, verified_at, method, metadata_valid, chain_valid,
		       pure_typing, posw_valid, trust_level, error_at, result_json
		FROM verifications
		WHERE filename = ?
		ORDER BY verified_at DESC`, filename)
	if err != nil {
		return nil, fmt.Errorf("query verifications for %s: %w", filename, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var verifiedAt int64
		var errorAt sql.NullInt64
		var result []byte
		if err := rows.Scan(&rec.ID, &rec.Filename, &verifiedAt, &rec.Method,
			&rec.MetadataValid, &rec.ChainValid, &rec.PureTyping, &rec.PoSWValid,
			&rec.TrustLevel, &errorAt, &result); err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		rec.VerifiedAt = time.UnixMilli(verifiedAt)
		if errorAt.Valid {
			idx := int(errorAt.Int64)
			rec.ErrorAt = &idx
		}
		rec.Result = json.RawMessage(result)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

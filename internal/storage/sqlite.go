// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/procurehub/linematch/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS catalog_entries (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		normalized_name TEXT NOT NULL,
		sku TEXT,
		embedding BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE TABLE IF NOT EXISTS aliases (
		tenant_id TEXT NOT NULL,
		alias_normalized TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (tenant_id, alias_normalized)
	);

	CREATE TABLE IF NOT EXISTS training_records (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		normalized_text TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		label TEXT NOT NULL CHECK (label IN ('positive','negative')),
		reviewer TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (tenant_id, normalized_text, entry_id, label)
	);

	CREATE INDEX IF NOT EXISTS idx_training_tenant ON training_records(tenant_id);

	CREATE TABLE IF NOT EXISTS match_decisions (
		tenant_id TEXT NOT NULL,
		line_item_id TEXT NOT NULL,
		entry_id TEXT,
		status TEXT NOT NULL CHECK (status IN ('pending','approved','rejected')),
		reviewer TEXT,
		reviewed_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (tenant_id, line_item_id)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// PutEntries inserts or updates catalog entries for a tenant in one transaction.
func (s *SQLiteStorage) PutEntries(ctx context.Context, tenant string, entries []*models.CatalogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO catalog_entries (tenant_id, id, name, normalized_name, sku, embedding, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id, id) DO UPDATE SET
		 name = excluded.name,
		 normalized_name = excluded.normalized_name,
		 sku = excluded.sku,
		 embedding = excluded.embedding,
		 updated_at = excluded.updated_at`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range entries {
		if e.TenantID != tenant {
			return fmt.Errorf("entry %s: tenant mismatch: %s != %s", e.ID, e.TenantID, tenant)
		}
		e.CreatedAt = now
		e.UpdatedAt = now
		if _, err := stmt.ExecContext(ctx, e.TenantID, e.ID, e.Name, e.NormalizedName, e.SKU,
			encodeEmbedding(e.Embedding), e.CreatedAt, e.UpdatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetEntry returns one catalog entry for the tenant.
func (s *SQLiteStorage) GetEntry(ctx context.Context, tenant, id string) (*models.CatalogEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, id, name, normalized_name, sku, embedding, created_at, updated_at
		 FROM catalog_entries WHERE tenant_id = ? AND id = ?`, tenant, id)
	return scanEntry(row)
}

// ListEntries returns all catalog entries for the tenant.
func (s *SQLiteStorage) ListEntries(ctx context.Context, tenant string) ([]*models.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id, id, name, normalized_name, sku, embedding, created_at, updated_at
		 FROM catalog_entries WHERE tenant_id = ? ORDER BY id`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.CatalogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountEntries returns the number of catalog entries for the tenant.
func (s *SQLiteStorage) CountEntries(ctx context.Context, tenant string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM catalog_entries WHERE tenant_id = ?`, tenant).Scan(&count)
	return count, err
}

// ListTenants returns the distinct tenants with at least one catalog entry.
func (s *SQLiteStorage) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT tenant_id FROM catalog_entries ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// PutAlias inserts or updates an alias mapping for the tenant.
func (s *SQLiteStorage) PutAlias(ctx context.Context, tenant, aliasNormalized, entryID string) error {
	if aliasNormalized == "" {
		return fmt.Errorf("alias cannot be empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO aliases (tenant_id, alias_normalized, entry_id, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(tenant_id, alias_normalized) DO UPDATE SET entry_id = excluded.entry_id`,
		tenant, aliasNormalized, entryID, time.Now())
	return err
}

// GetAliasEntry returns the entry ID mapped to the normalized alias, or
// ErrNotFound when no alias exists.
func (s *SQLiteStorage) GetAliasEntry(ctx context.Context, tenant, aliasNormalized string) (string, error) {
	var entryID string
	err := s.db.QueryRowContext(ctx,
		`SELECT entry_id FROM aliases WHERE tenant_id = ? AND alias_normalized = ?`,
		tenant, aliasNormalized).Scan(&entryID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return entryID, nil
}

// ListAliases returns all alias mappings for the tenant.
func (s *SQLiteStorage) ListAliases(ctx context.Context, tenant string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT alias_normalized, entry_id FROM aliases WHERE tenant_id = ?`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	aliases := make(map[string]string)
	for rows.Next() {
		var alias, entryID string
		if err := rows.Scan(&alias, &entryID); err != nil {
			return nil, err
		}
		aliases[alias] = entryID
	}
	return aliases, rows.Err()
}

// UpsertTrainingRecord inserts a training record, or refreshes the reviewer
// and timestamp when the same (text, entry, label) fact already exists.
func (s *SQLiteStorage) UpsertTrainingRecord(ctx context.Context, rec *models.TrainingRecord) error {
	return upsertTrainingRecord(ctx, s.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertTrainingRecord(ctx context.Context, db execer, rec *models.TrainingRecord) error {
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	_, err := db.ExecContext(ctx,
		`INSERT INTO training_records (id, tenant_id, normalized_text, entry_id, label, reviewer, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id, normalized_text, entry_id, label) DO UPDATE SET
		 reviewer = excluded.reviewer,
		 updated_at = excluded.updated_at`,
		rec.ID, rec.TenantID, rec.NormalizedText, rec.EntryID, rec.Label, rec.Reviewer,
		rec.CreatedAt, rec.UpdatedAt)
	return err
}

// ListTrainingRecords returns all training records for the tenant.
func (s *SQLiteStorage) ListTrainingRecords(ctx context.Context, tenant string) ([]*models.TrainingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, normalized_text, entry_id, label, reviewer, created_at, updated_at
		 FROM training_records WHERE tenant_id = ?`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.TrainingRecord
	for rows.Next() {
		var r models.TrainingRecord
		var reviewer sql.NullString
		if err := rows.Scan(&r.ID, &r.TenantID, &r.NormalizedText, &r.EntryID, &r.Label,
			&reviewer, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Reviewer = reviewer.String
		recs = append(recs, &r)
	}
	return recs, rows.Err()
}

// CountTrainingRecords returns the number of training records for the tenant.
func (s *SQLiteStorage) CountTrainingRecords(ctx context.Context, tenant string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM training_records WHERE tenant_id = ?`, tenant).Scan(&count)
	return count, err
}

// UpsertDecision atomically inserts or updates the single decision row for
// (tenant, line item). The PRIMARY KEY on (tenant_id, line_item_id) makes
// concurrent writers serialize on the same row instead of duplicating it;
// the loser of a race observes the winner's state. When rec is non-nil it
// is written in the same transaction, so a decision and its training
// feedback commit together or not at all.
func (s *SQLiteStorage) UpsertDecision(ctx context.Context, d *models.MatchDecision, rec *models.TrainingRecord) (*models.MatchDecision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	query := `INSERT INTO match_decisions (tenant_id, line_item_id, entry_id, status, reviewer, reviewed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id, line_item_id) DO UPDATE SET
		 entry_id = excluded.entry_id,
		 status = excluded.status,
		 reviewer = excluded.reviewer,
		 reviewed_at = excluded.reviewed_at,
		 updated_at = excluded.updated_at`
	if d.Status == models.StatusPending {
		// A pending write from scoring must never downgrade a decision a
		// reviewer already made.
		query += ` WHERE match_decisions.status = 'pending'`
	}
	_, err = tx.ExecContext(ctx, query,
		d.TenantID, d.LineItemID, d.EntryID, d.Status, d.Reviewer, d.ReviewedAt,
		d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert decision: %w", err)
	}

	if rec != nil {
		if rec.TenantID != d.TenantID {
			return nil, fmt.Errorf("training record tenant mismatch: %s != %s", rec.TenantID, d.TenantID)
		}
		if err := upsertTrainingRecord(ctx, tx, rec); err != nil {
			return nil, fmt.Errorf("failed to upsert training record: %w", err)
		}
	}

	current, err := getDecision(ctx, tx, d.TenantID, d.LineItemID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return current, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getDecision(ctx context.Context, db querier, tenant, lineItemID string) (*models.MatchDecision, error) {
	var d models.MatchDecision
	var entryID, reviewer sql.NullString
	var reviewedAt sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT tenant_id, line_item_id, entry_id, status, reviewer, reviewed_at, created_at, updated_at
		 FROM match_decisions WHERE tenant_id = ? AND line_item_id = ?`,
		tenant, lineItemID).Scan(&d.TenantID, &d.LineItemID, &entryID, &d.Status,
		&reviewer, &reviewedAt, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if entryID.Valid {
		d.EntryID = &entryID.String
	}
	d.Reviewer = reviewer.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		d.ReviewedAt = &t
	}
	return &d, nil
}

// GetDecision returns the decision for a line item, or ErrNotFound.
func (s *SQLiteStorage) GetDecision(ctx context.Context, tenant, lineItemID string) (*models.MatchDecision, error) {
	return getDecision(ctx, s.db, tenant, lineItemID)
}

// CountDecisions returns the number of decision rows for the tenant.
func (s *SQLiteStorage) CountDecisions(ctx context.Context, tenant string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM match_decisions WHERE tenant_id = ?`, tenant).Scan(&count)
	return count, err
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func scanEntry(row interface{ Scan(...interface{}) error }) (*models.CatalogEntry, error) {
	var e models.CatalogEntry
	var sku sql.NullString
	var blob []byte
	err := row.Scan(&e.TenantID, &e.ID, &e.Name, &e.NormalizedName, &sku, &blob,
		&e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.SKU = sku.String
	e.Embedding = decodeEmbedding(blob)
	return &e, nil
}

// encodeEmbedding serializes a vector as little-endian float32s. Nil and
// empty vectors encode to nil so "no embedding" round-trips as nil.
func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Missing paths are skipped; each path may be a file or a directory.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if info.IsDir() {
			n, err := dirSize(p)
			if err != nil {
				return 0, err
			}
			total += n
		} else {
			total += info.Size()
		}
	}
	return total, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

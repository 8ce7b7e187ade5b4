package store

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of all schema migrations.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: files table, canonical hash uniqueness, listing indexes",
		SQL: `
CREATE TABLE IF NOT EXISTS files (
  id TEXT PRIMARY KEY,
  blob_locator TEXT NOT NULL,
  original_filename TEXT NOT NULL,
  file_type TEXT NOT NULL,
  size INTEGER NOT NULL,
  uploaded_at TEXT NOT NULL,
  content_hash TEXT,
  is_duplicate INTEGER NOT NULL DEFAULT 0,
  reference_count INTEGER NOT NULL DEFAULT 1,
  referenced_file TEXT,
  FOREIGN KEY (referenced_file) REFERENCES files(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_files_content_hash
  ON files(content_hash) WHERE content_hash IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_files_original_filename ON files(original_filename);
CREATE INDEX IF NOT EXISTS idx_files_file_type ON files(file_type);
CREATE INDEX IF NOT EXISTS idx_files_uploaded_at ON files(uploaded_at);
CREATE INDEX IF NOT EXISTS idx_files_referenced_file ON files(referenced_file);
`,
	},
	{
		Version:     2,
		Description: "add size index for range filters",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_files_size ON files(size);
`,
	},
	{
		Version:     3,
		Description: "drop referenced_file foreign key; delete ordering is enforced by the repository",
		// The self-referential foreign key rejected deleting a canonical
		// row while duplicate rows still pointed at it, which broke the
		// tolerated race where a duplicate outlives its canonical. SQLite
		// cannot drop a constraint in place, so rebuild the table.
		SQL: `
CREATE TABLE files_rebuild (
  id TEXT PRIMARY KEY,
  blob_locator TEXT NOT NULL,
  original_filename TEXT NOT NULL,
  file_type TEXT NOT NULL,
  size INTEGER NOT NULL,
  uploaded_at TEXT NOT NULL,
  content_hash TEXT,
  is_duplicate INTEGER NOT NULL DEFAULT 0,
  reference_count INTEGER NOT NULL DEFAULT 1,
  referenced_file TEXT
);

INSERT INTO files_rebuild
  SELECT id, blob_locator, original_filename, file_type, size, uploaded_at,
         content_hash, is_duplicate, reference_count, referenced_file
  FROM files;

DROP TABLE files;
ALTER TABLE files_rebuild RENAME TO files;

CREATE UNIQUE INDEX idx_files_content_hash
  ON files(content_hash) WHERE content_hash IS NOT NULL;
CREATE INDEX idx_files_original_filename ON files(original_filename);
CREATE INDEX idx_files_file_type ON files(file_type);
CREATE INDEX idx_files_uploaded_at ON files(uploaded_at);
CREATE INDEX idx_files_referenced_file ON files(referenced_file);
CREATE INDEX idx_files_size ON files(size);
`,
	},
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);`)
	return err
}

func currentVersion(db *sql.DB) (int, error) {
	var version sql.NullInt64
	err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion() (int, error) {
	return currentVersion(s.db)
}

// runMigrations applies all pending migrations in order.
func runMigrations(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := currentVersion(db)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for _, m := range sorted {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

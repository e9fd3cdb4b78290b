package database

import (
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the built-in, ordered schema history. New schema changes are
// appended with the next version number; applied versions are never edited.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "workflow_core",
		SQL: `
			CREATE TABLE IF NOT EXISTS workflow_instances (
				id TEXT PRIMARY KEY,
				process_type TEXT NOT NULL,
				entity_type TEXT NOT NULL,
				entity_id INTEGER NOT NULL,
				current_stage TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'active',
				payload TEXT NOT NULL DEFAULT '{}',
				version INTEGER NOT NULL DEFAULT 1,
				created_by TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_instances_process_stage
				ON workflow_instances(process_type, current_stage);
			CREATE INDEX IF NOT EXISTS idx_instances_reference
				ON workflow_instances(entity_type, entity_id);

			CREATE TABLE IF NOT EXISTS workflow_history (
				id TEXT PRIMARY KEY,
				instance_id TEXT NOT NULL REFERENCES workflow_instances(id),
				from_stage TEXT NOT NULL DEFAULT '',
				to_stage TEXT NOT NULL,
				action_code TEXT NOT NULL,
				performed_by TEXT NOT NULL,
				occurred_at DATETIME NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_history_instance
				ON workflow_history(instance_id, occurred_at);
		`,
	},
	{
		Version: 2,
		Name:    "inventory",
		SQL: `
			CREATE TABLE IF NOT EXISTS inventory_items (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				category_id INTEGER NOT NULL DEFAULT 0,
				location_id INTEGER NOT NULL DEFAULT 0,
				quantity INTEGER NOT NULL DEFAULT 0,
				unit_value REAL NOT NULL DEFAULT 0,
				disposed INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE IF NOT EXISTS stock_levels (
				item_id INTEGER NOT NULL,
				location_id INTEGER NOT NULL,
				quantity INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (item_id, location_id)
			);
		`,
	},
	{
		Version: 3,
		Name:    "staff_roles_and_action_log",
		SQL: `
			CREATE TABLE IF NOT EXISTS staff_roles (
				actor_id TEXT PRIMARY KEY,
				role TEXT NOT NULL,
				ceiling REAL NOT NULL DEFAULT 0,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE IF NOT EXISTS action_log (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				actor_id TEXT NOT NULL,
				action TEXT NOT NULL,
				entity_type TEXT NOT NULL DEFAULT '',
				entity_id TEXT NOT NULL DEFAULT '',
				detail TEXT NOT NULL DEFAULT '',
				occurred_at DATETIME NOT NULL
			);
		`,
	},
}

// Migrator handles database migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// createMigrationsTable creates the migrations tracking table
func (m *Migrator) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := m.db.Exec(query)
	return err
}

// getAppliedMigrations returns the list of applied migration versions
func (m *Migrator) getAppliedMigrations() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// RunMigrations executes all pending built-in migrations
func (m *Migrator) RunMigrations() error {
	m.logger.Info("Starting database migrations")

	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending := make([]Migration, 0, len(migrations))
	for _, migration := range migrations {
		if applied[migration.Version] {
			m.logger.Debug("Skipping applied migration",
				zap.Int("version", migration.Version),
				zap.String("name", migration.Name))
			continue
		}
		pending = append(pending, migration)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version < pending[j].Version
	})

	for _, migration := range pending {
		m.logger.Info("Applying migration",
			zap.Int("version", migration.Version),
			zap.String("name", migration.Name))

		if err := m.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}

	m.logger.Info("Database migrations completed successfully")
	return nil
}

// applyMigration applies a single migration within a transaction
func (m *Migrator) applyMigration(migration Migration) error {
	return m.db.WithTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(migration.SQL); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}

		_, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}

		return nil
	})
}

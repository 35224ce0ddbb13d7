package db

import "fmt"

func (d *DB) migrate() error {
	// Create migrations table if it doesn't exist
	if _, err := d.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	// Get current version
	var version int
	err := d.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return fmt.Errorf("getting schema version: %w", err)
	}

	// Apply migrations
	migrations := []func(*DB) error{
		migrateV1,
		migrateV2,
		migrateV3,
		migrateV4,
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](d); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := d.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

func migrateV1(d *DB) error {
	statements := []string{
		`CREATE TABLE installed_mods (
			game_version INTEGER NOT NULL,
			mod_key TEXT NOT NULL,
			owner TEXT NOT NULL,
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			installed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY(game_version, mod_key)
		)`,
		`CREATE TABLE game_files (
			game_version INTEGER PRIMARY KEY,
			depot_manifest TEXT NOT NULL,
			completed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE login_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			logged_in INTEGER NOT NULL DEFAULT 0,
			username TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := d.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}

	return nil
}

func migrateV2(d *DB) error {
	// Add previous_version column so updates can be reported
	_, err := d.Exec(`ALTER TABLE installed_mods ADD COLUMN previous_version TEXT`)
	return err
}

func migrateV3(d *DB) error {
	_, err := d.Exec(`CREATE INDEX IF NOT EXISTS idx_installed_mods_version ON installed_mods(game_version)`)
	return err
}

func migrateV4(d *DB) error {
	// Remote manifest revision last applied to each version
	_, err := d.Exec(`ALTER TABLE game_files ADD COLUMN manifest_revision INTEGER NOT NULL DEFAULT 0`)
	return err
}

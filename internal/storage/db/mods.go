package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hq-launcher/hql/internal/domain"
)

// SaveInstalledMod inserts or updates the installed version of a mod for a game version.
// The replaced version is kept as previous_version when it changes.
func (d *DB) SaveInstalledMod(gameVersion int, id domain.ModID, version string) error {
	_, err := d.Exec(`
		INSERT INTO installed_mods (game_version, mod_key, owner, name, version, installed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_version, mod_key) DO UPDATE SET
			owner = excluded.owner,
			name = excluded.name,
			previous_version = CASE
				WHEN installed_mods.version != excluded.version THEN installed_mods.version
				ELSE installed_mods.previous_version
			END,
			version = excluded.version,
			installed_at = excluded.installed_at
	`, gameVersion, id.Key(), id.Owner, id.Name, version, time.Now())
	if err != nil {
		return fmt.Errorf("saving installed mod: %w", err)
	}
	return nil
}

// GetInstalledMods returns all installed mods for a game version
func (d *DB) GetInstalledMods(gameVersion int) ([]domain.InstalledMod, error) {
	rows, err := d.Query(`
		SELECT owner, name, version, previous_version, installed_at
		FROM installed_mods
		WHERE game_version = ?
		ORDER BY mod_key ASC
	`, gameVersion)
	if err != nil {
		return nil, fmt.Errorf("querying installed mods: %w", err)
	}
	defer rows.Close()

	var mods []domain.InstalledMod
	for rows.Next() {
		mod, err := scanInstalledMod(rows)
		if err != nil {
			return nil, err
		}
		mods = append(mods, *mod)
	}

	return mods, rows.Err()
}

// GetInstalledMod returns one installed mod record, or nil if the mod is not installed
func (d *DB) GetInstalledMod(gameVersion int, id domain.ModID) (*domain.InstalledMod, error) {
	row := d.QueryRow(`
		SELECT owner, name, version, previous_version, installed_at
		FROM installed_mods
		WHERE game_version = ? AND mod_key = ?
	`, gameVersion, id.Key())
	mod, err := scanInstalledMod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return mod, err
}

// DeleteInstalledMod removes an installed mod record
func (d *DB) DeleteInstalledMod(gameVersion int, id domain.ModID) error {
	result, err := d.Exec(`DELETE FROM installed_mods WHERE game_version = ? AND mod_key = ?`, gameVersion, id.Key())
	if err != nil {
		return fmt.Errorf("deleting installed mod: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotInstalled, id)
	}
	return nil
}

// DeleteInstalledMods removes every installed mod record of a game version
func (d *DB) DeleteInstalledMods(gameVersion int) error {
	if _, err := d.Exec(`DELETE FROM installed_mods WHERE game_version = ?`, gameVersion); err != nil {
		return fmt.Errorf("deleting installed mods: %w", err)
	}
	return nil
}

// ReplaceInstalledMods swaps a game version's records for the given set in one transaction
func (d *DB) ReplaceInstalledMods(gameVersion int, mods []domain.InstalledMod) (err error) {
	tx, err := d.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM installed_mods WHERE game_version = ?`, gameVersion); err != nil {
		return fmt.Errorf("clearing installed mods: %w", err)
	}
	for _, m := range mods {
		_, err = tx.Exec(`
			INSERT INTO installed_mods (game_version, mod_key, owner, name, version, installed_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, gameVersion, m.ID.Key(), m.ID.Owner, m.ID.Name, m.Version, time.Now())
		if err != nil {
			return fmt.Errorf("inserting %s: %w", m.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInstalledMod(row scanner) (*domain.InstalledMod, error) {
	var mod domain.InstalledMod
	var prev sql.NullString
	if err := row.Scan(&mod.ID.Owner, &mod.ID.Name, &mod.Version, &prev, &mod.InstalledAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning installed mod: %w", err)
	}
	mod.PreviousVersion = prev.String
	mod.Enabled = true
	return &mod, nil
}

package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// MarkGameFilesComplete records that a version's depot download finished
func (d *DB) MarkGameFilesComplete(gameVersion int, depotManifest string) error {
	_, err := d.Exec(`
		INSERT INTO game_files (game_version, depot_manifest, completed_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(game_version) DO UPDATE SET
			depot_manifest = excluded.depot_manifest,
			completed_at = CURRENT_TIMESTAMP
	`, gameVersion, depotManifest)
	if err != nil {
		return fmt.Errorf("saving game files state: %w", err)
	}
	return nil
}

// GameFilesManifest returns the depot manifest a version was completed with
func (d *DB) GameFilesManifest(gameVersion int) (string, bool, error) {
	var manifest string
	err := d.QueryRow(`SELECT depot_manifest FROM game_files WHERE game_version = ?`, gameVersion).Scan(&manifest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting game files state: %w", err)
	}
	return manifest, true, nil
}

// ClearGameFiles forgets a version's completed download
func (d *DB) ClearGameFiles(gameVersion int) error {
	if _, err := d.Exec(`DELETE FROM game_files WHERE game_version = ?`, gameVersion); err != nil {
		return fmt.Errorf("clearing game files state: %w", err)
	}
	return nil
}

// SetManifestRevision records the remote manifest revision applied to a version
func (d *DB) SetManifestRevision(gameVersion, revision int) error {
	res, err := d.Exec(`UPDATE game_files SET manifest_revision = ? WHERE game_version = ?`, revision, gameVersion)
	if err != nil {
		return fmt.Errorf("saving manifest revision: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("saving manifest revision: version %d has no game files", gameVersion)
	}
	return nil
}

// ManifestRevision returns the manifest revision last applied to a version
func (d *DB) ManifestRevision(gameVersion int) (int, bool, error) {
	var revision int
	err := d.QueryRow(`SELECT manifest_revision FROM game_files WHERE game_version = ?`, gameVersion).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("getting manifest revision: %w", err)
	}
	return revision, true, nil
}

// InstalledVersions lists game versions whose files finished downloading, ascending
func (d *DB) InstalledVersions() ([]int, error) {
	rows, err := d.Query(`SELECT game_version FROM game_files ORDER BY game_version ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying installed versions: %w", err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

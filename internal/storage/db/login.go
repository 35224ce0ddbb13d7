package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/hq-launcher/hql/internal/domain"
)

// SaveLoginState saves the remembered depot login
func (d *DB) SaveLoginState(state domain.LoginState) error {
	username := state.Username
	if !state.LoggedIn {
		username = ""
	}
	_, err := d.Exec(`
        INSERT INTO login_state (id, logged_in, username, updated_at)
        VALUES (1, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(id) DO UPDATE SET
            logged_in = excluded.logged_in,
            username = excluded.username,
            updated_at = CURRENT_TIMESTAMP
    `, state.LoggedIn, username)
	if err != nil {
		return fmt.Errorf("saving login state: %w", err)
	}
	return nil
}

// LoginState returns the remembered depot login; a fresh database is logged out
func (d *DB) LoginState() (domain.LoginState, error) {
	var state domain.LoginState
	var username sql.NullString
	err := d.QueryRow(`SELECT logged_in, username FROM login_state WHERE id = 1`).Scan(&state.LoggedIn, &username)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LoginState{}, nil
	}
	if err != nil {
		return domain.LoginState{}, fmt.Errorf("getting login state: %w", err)
	}
	state.Username = username.String
	return state, nil
}

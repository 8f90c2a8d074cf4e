package prefs

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migrate runs all preference database migrations
func Migrate(db *sqlx.DB) error {
	migrations := []string{
		createSettingsTable,
		createBlockedUsersTable,
		createIgnoredUsersTable,
		createIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

const createSettingsTable = `
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const createBlockedUsersTable = `
CREATE TABLE IF NOT EXISTS blocked_users (
    nickname TEXT PRIMARY KEY
);
`

// ignored_users rows with an empty channel apply globally
const createIgnoredUsersTable = `
CREATE TABLE IF NOT EXISTS ignored_users (
    nickname TEXT NOT NULL,
    channel TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (nickname, channel)
);
`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_ignored_users_channel ON ignored_users(channel);
`

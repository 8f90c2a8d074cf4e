package prefs

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/model"
)

// Boolean setting keys
const (
	KeyBlockAllPrivate = "block_all_private"
	KeyShowJoinEvents  = "show_join_events"
	KeyShowPartEvents  = "show_part_events"
	KeyShowQuitEvents  = "show_quit_events"
	KeyShowBanEvents   = "show_ban_events"
)

// EventPrefsChanged is emitted on the bus whenever a preference changes.
// Data carries "key" and, for list changes, "nickname"/"channel".
const EventPrefsChanged = "prefs.changed"

var defaultSettings = map[string]bool{
	KeyBlockAllPrivate: false,
	KeyShowJoinEvents:  true,
	KeyShowPartEvents:  true,
	KeyShowQuitEvents:  true,
	KeyShowBanEvents:   true,
}

// ignoreKey identifies an ignore entry; an empty channel means global
type ignoreKey struct {
	nickname string
	channel  string
}

// Store persists user preferences in sqlite and keeps an in-memory cache so
// reads on the dispatch path never touch the database. Change notifications
// go out on the event bus, which is what makes reads behave as live streams.
type Store struct {
	db  *sqlx.DB
	bus *events.Bus

	mu       sync.RWMutex
	settings map[string]bool
	blocked  map[string]struct{}
	ignored  map[ignoreKey]struct{}
}

// Open opens (and migrates) the preference database at dbPath. Pass
// ":memory:" for an ephemeral store.
func Open(dbPath string, bus *events.Bus) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection in WAL mode
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	s := &Store{
		db:       db,
		bus:      bus,
		settings: make(map[string]bool),
		blocked:  make(map[string]struct{}),
		ignored:  make(map[ignoreKey]struct{}),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) load() error {
	for key, value := range defaultSettings {
		s.settings[key] = value
	}

	rows := []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}{}
	if err := s.db.Select(&rows, "SELECT key, value FROM settings"); err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	for _, row := range rows {
		value, err := strconv.ParseBool(row.Value)
		if err != nil {
			logger.Log.Warn().Str("key", row.Key).Str("value", row.Value).Msg("Ignoring malformed setting")
			continue
		}
		s.settings[row.Key] = value
	}

	var blocked []string
	if err := s.db.Select(&blocked, "SELECT nickname FROM blocked_users"); err != nil {
		return fmt.Errorf("failed to read block list: %w", err)
	}
	for _, nick := range blocked {
		s.blocked[nick] = struct{}{}
	}

	ignores := []struct {
		Nickname string `db:"nickname"`
		Channel  string `db:"channel"`
	}{}
	if err := s.db.Select(&ignores, "SELECT nickname, channel FROM ignored_users"); err != nil {
		return fmt.Errorf("failed to read ignore list: %w", err)
	}
	for _, row := range ignores {
		s.ignored[ignoreKey{row.Nickname, row.Channel}] = struct{}{}
	}

	return nil
}

// GetBool returns a boolean setting, falling back to its default
func (s *Store) GetBool(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[key]
}

// SetBool updates a boolean setting
func (s *Store) SetBool(key string, value bool) error {
	_, err := s.db.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, strconv.FormatBool(value))
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}

	s.mu.Lock()
	s.settings[key] = value
	s.mu.Unlock()

	s.emitChanged(key, "", "")
	return nil
}

// BlockAllPrivate reports whether all private messages are rejected
func (s *Store) BlockAllPrivate() bool {
	return s.GetBool(KeyBlockAllPrivate)
}

// EventVisible reports whether messages for the given membership event type
// should be shown. Kick events are always shown.
func (s *Store) EventVisible(t model.EventType) bool {
	switch t {
	case model.EventUserJoin:
		return s.GetBool(KeyShowJoinEvents)
	case model.EventUserPart:
		return s.GetBool(KeyShowPartEvents)
	case model.EventUserQuit:
		return s.GetBool(KeyShowQuitEvents)
	case model.EventUserBan, model.EventUserUnban:
		return s.GetBool(KeyShowBanEvents)
	default:
		return true
	}
}

// IsBlocked reports whether a user is on the global block list
func (s *Store) IsBlocked(nickname string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocked[nickname]
	return ok
}

// BlockUser adds a user to the global block list
func (s *Store) BlockUser(nickname string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO blocked_users (nickname) VALUES (?)", nickname)
	if err != nil {
		return fmt.Errorf("failed to block user: %w", err)
	}

	s.mu.Lock()
	s.blocked[nickname] = struct{}{}
	s.mu.Unlock()

	s.emitChanged("blocked_users", nickname, "")
	return nil
}

// UnblockUser removes a user from the global block list
func (s *Store) UnblockUser(nickname string) error {
	_, err := s.db.Exec("DELETE FROM blocked_users WHERE nickname = ?", nickname)
	if err != nil {
		return fmt.Errorf("failed to unblock user: %w", err)
	}

	s.mu.Lock()
	delete(s.blocked, nickname)
	s.mu.Unlock()

	s.emitChanged("blocked_users", nickname, "")
	return nil
}

// BlockedUsers returns the global block list
func (s *Store) BlockedUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.blocked))
	for nick := range s.blocked {
		users = append(users, nick)
	}
	return users
}

// IsIgnored reports whether a user is ignored globally or in the given
// channel
func (s *Store) IsIgnored(nickname, channel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.ignored[ignoreKey{nickname, ""}]; ok {
		return true
	}
	if channel == "" {
		return false
	}
	_, ok := s.ignored[ignoreKey{nickname, channel}]
	return ok
}

// IgnoreUser adds a user to the ignore list. An empty channel ignores the
// user everywhere.
func (s *Store) IgnoreUser(nickname, channel string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO ignored_users (nickname, channel) VALUES (?, ?)", nickname, channel)
	if err != nil {
		return fmt.Errorf("failed to ignore user: %w", err)
	}

	s.mu.Lock()
	s.ignored[ignoreKey{nickname, channel}] = struct{}{}
	s.mu.Unlock()

	s.emitChanged("ignored_users", nickname, channel)
	return nil
}

// UnignoreUser removes an ignore entry
func (s *Store) UnignoreUser(nickname, channel string) error {
	_, err := s.db.Exec("DELETE FROM ignored_users WHERE nickname = ? AND channel = ?", nickname, channel)
	if err != nil {
		return fmt.Errorf("failed to unignore user: %w", err)
	}

	s.mu.Lock()
	delete(s.ignored, ignoreKey{nickname, channel})
	s.mu.Unlock()

	s.emitChanged("ignored_users", nickname, channel)
	return nil
}

func (s *Store) emitChanged(key, nickname, channel string) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(events.Event{
		Type: EventPrefsChanged,
		Data: map[string]interface{}{
			"key":      key,
			"nickname": nickname,
			"channel":  channel,
		},
		Timestamp: time.Now(),
		Source:    events.EventSourceSystem,
	})
}

package conversation

import (
	"time"

	"github.com/matt0x6f/cascade-core/internal/events"
	"github.com/matt0x6f/cascade-core/internal/model"
)

// The roster is the live per-channel membership view built from NAMES
// replies and join/part/quit/nick traffic. It lives beside the conversation
// snapshot because it changes at a much higher rate than the message logs.

// RosterAdd inserts or replaces a user in a channel roster
func (m *Manager) RosterAdd(channel string, user model.ChannelUser) {
	m.rosterMu.Lock()
	defer m.rosterMu.Unlock()

	roster, ok := m.rosters[channel]
	if !ok {
		roster = make(map[string]model.ChannelUser)
		m.rosters[channel] = roster
	}
	roster[user.Nickname] = user
}

// RosterUpdate applies update to a user's roster entry. It reports whether
// the user was present in the channel.
func (m *Manager) RosterUpdate(channel, nickname string, update func(*model.ChannelUser)) bool {
	m.rosterMu.Lock()
	defer m.rosterMu.Unlock()

	roster, ok := m.rosters[channel]
	if !ok {
		return false
	}
	user, ok := roster[nickname]
	if !ok {
		return false
	}
	update(&user)
	roster[nickname] = user
	return true
}

// RosterRemove removes a user from a channel roster
func (m *Manager) RosterRemove(channel, nickname string) {
	m.rosterMu.Lock()
	defer m.rosterMu.Unlock()

	if roster, ok := m.rosters[channel]; ok {
		delete(roster, nickname)
	}
}

// RosterRemoveEverywhere removes a user from every channel roster and
// returns the channels the user was in (used for quit fan-out)
func (m *Manager) RosterRemoveEverywhere(nickname string) []string {
	m.rosterMu.Lock()
	defer m.rosterMu.Unlock()

	var channels []string
	for channel, roster := range m.rosters {
		if _, ok := roster[nickname]; ok {
			delete(roster, nickname)
			channels = append(channels, channel)
		}
	}
	return channels
}

// RosterRename updates a user's nickname in every channel roster and
// returns the affected channels
func (m *Manager) RosterRename(oldNick, newNick string) []string {
	m.rosterMu.Lock()
	defer m.rosterMu.Unlock()

	var channels []string
	for channel, roster := range m.rosters {
		if user, ok := roster[oldNick]; ok {
			delete(roster, oldNick)
			user.Nickname = newNick
			roster[newNick] = user
			channels = append(channels, channel)
		}
	}
	return channels
}

// ClearRoster drops the roster of a single channel
func (m *Manager) ClearRoster(channel string) {
	m.rosterMu.Lock()
	defer m.rosterMu.Unlock()
	delete(m.rosters, channel)
}

// UsersForChannel returns the channel roster ordered by rank, then nickname
func (m *Manager) UsersForChannel(channel string) []model.ChannelUser {
	m.rosterMu.RLock()
	roster := m.rosters[channel]
	users := make([]model.ChannelUser, 0, len(roster))
	for _, user := range roster {
		users = append(users, user)
	}
	m.rosterMu.RUnlock()

	model.SortChannelUsers(users)
	return users
}

// UpdateAvailableChannels replaces the cached server channel list
func (m *Manager) UpdateAvailableChannels(channels []AvailableChannel) {
	m.availableMu.Lock()
	m.available = channels
	m.availableMu.Unlock()

	m.bus.Emit(events.Event{
		Type:      EventAvailableChannels,
		Data:      map[string]interface{}{"count": len(channels)},
		Timestamp: time.Now(),
		Source:    events.EventSourceSession,
	})
}

// ClearAvailableChannels drops the cached server channel list
func (m *Manager) ClearAvailableChannels() {
	m.availableMu.Lock()
	m.available = nil
	m.availableMu.Unlock()
}

// AvailableChannels returns the cached server channel list
func (m *Manager) AvailableChannels() []AvailableChannel {
	m.availableMu.RLock()
	defer m.availableMu.RUnlock()

	channels := make([]AvailableChannel, len(m.available))
	copy(channels, m.available)
	return channels
}

package model

import "sort"

// ChannelUser is a channel roster entry with its privilege flags.
// Rank order for display and sorting: owner > admin > op > half-op > voice.
type ChannelUser struct {
	Nickname string
	Owner    bool
	Admin    bool
	Op       bool
	HalfOp   bool
	Voice    bool
}

// Rank returns the numeric rank of the user's highest privilege, higher is
// more privileged
func (u ChannelUser) Rank() int {
	switch {
	case u.Owner:
		return 5
	case u.Admin:
		return 4
	case u.Op:
		return 3
	case u.HalfOp:
		return 2
	case u.Voice:
		return 1
	default:
		return 0
	}
}

// Prefix returns the display prefix character for the user's highest
// privilege, or an empty string for unprivileged users
func (u ChannelUser) Prefix() string {
	switch {
	case u.Owner:
		return "~"
	case u.Admin:
		return "&"
	case u.Op:
		return "@"
	case u.HalfOp:
		return "%"
	case u.Voice:
		return "+"
	default:
		return ""
	}
}

// ChannelUserFromPrefixes builds a ChannelUser from the mode prefix
// characters reported by the server (e.g. "@+" before a NAMES entry)
func ChannelUserFromPrefixes(nickname, prefixes string) ChannelUser {
	u := ChannelUser{Nickname: nickname}
	for _, r := range prefixes {
		switch r {
		case '~':
			u.Owner = true
		case '&':
			u.Admin = true
		case '@':
			u.Op = true
		case '%':
			u.HalfOp = true
		case '+':
			u.Voice = true
		}
	}
	return u
}

// SortChannelUsers orders users by rank descending, then nickname ascending
// (case-sensitive)
func SortChannelUsers(users []ChannelUser) {
	sort.SliceStable(users, func(i, j int) bool {
		ri, rj := users[i].Rank(), users[j].Rank()
		if ri != rj {
			return ri > rj
		}
		return users[i].Nickname < users[j].Nickname
	})
}

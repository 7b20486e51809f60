// Package badges is the achievement ledger: events, the badges minted for
// them, and which users earned which badge. Reads go through a lazily
// populated in-memory cache; writes go straight to the store and keep the
// cache coherent.
package badges

import (
	"fmt"
	"time"
)

// Kind says how a user earned an event's badge.
type Kind int

const (
	Participated Kind = iota
	Contributed
	Both
)

func (k Kind) String() string {
	switch k {
	case Participated:
		return "participated"
	case Contributed:
		return "contributed"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts the string forms used by the admin surface.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "participated":
		return Participated, nil
	case "contributed":
		return Contributed, nil
	case "both":
		return Both, nil
	}
	return 0, fmt.Errorf("unknown badge kind %q", s)
}

// Badge is one emoji badge minted for an event.
type Badge struct {
	ID           int64  `json:"id"`
	FriendlyName string `json:"friendly_name"`
	Animated     bool   `json:"animated"`
	EmojiName    string `json:"emoji_name"`
	EmojiID      string `json:"emoji_id"`
	Link         string `json:"link,omitempty"`
}

// Event is one past or running community event with its badges.
type Event struct {
	ID     int64     `json:"id"`
	Name   string    `json:"name"`
	Date   time.Time `json:"date"`
	Badges []Badge   `json:"badges"`
}

// UserBadge is one badge as earned by a user.
type UserBadge struct {
	EventID   int64     `json:"event_id"`
	EventName string    `json:"event_name"`
	EventDate time.Time `json:"event_date"`
	Badges    []Badge   `json:"badges"`
	Kind      Kind      `json:"kind"`
	Winner    bool      `json:"winner"`
}

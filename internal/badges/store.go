package badges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrBadgeNotHeld  = errors.New("user does not hold this badge")
)

// Store runs the ledger's SQL. The cache sits in front of it for event
// reads; user-badge reads always hit the database so awards show up
// immediately.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Events loads every event with its badges, newest event first.
func (s *Store) Events(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.event_name, e.event_date,
		       b.id, b.friendly_name, b.animated, b.emoji_name, b.emoji_id, COALESCE(b.link, '')
		FROM events e
		LEFT JOIN badges b ON b.event_id = e.id
		ORDER BY e.event_date DESC, e.id DESC, b.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var (
		events []Event
		cur    *Event
	)
	for rows.Next() {
		var (
			id       int64
			name     string
			date     int64
			badgeID  sql.NullInt64
			friendly sql.NullString
			animated sql.NullBool
			emojiNm  sql.NullString
			emojiID  sql.NullString
			link     sql.NullString
		)
		if err := rows.Scan(&id, &name, &date, &badgeID, &friendly, &animated, &emojiNm, &emojiID, &link); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		if cur == nil || cur.ID != id {
			events = append(events, Event{ID: id, Name: name, Date: time.Unix(date, 0).UTC()})
			cur = &events[len(events)-1]
		}
		if badgeID.Valid {
			cur.Badges = append(cur.Badges, Badge{
				ID:           badgeID.Int64,
				FriendlyName: friendly.String,
				Animated:     animated.Bool,
				EmojiName:    emojiNm.String,
				EmojiID:      emojiID.String,
				Link:         link.String,
			})
		}
	}
	return events, rows.Err()
}

// AddEvent inserts an event and its badges in one transaction and returns
// the stored event.
func (s *Store) AddEvent(ctx context.Context, name string, date time.Time, badges []Badge) (Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Event{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var eventID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO events (event_name, event_date) VALUES (?, ?) RETURNING id
	`, name, date.Unix()).Scan(&eventID)
	if err != nil {
		return Event{}, fmt.Errorf("inserting event: %w", err)
	}

	out := Event{ID: eventID, Name: name, Date: date.UTC()}
	for _, b := range badges {
		var badgeID int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO badges (event_id, friendly_name, animated, emoji_name, emoji_id, link)
			VALUES (?, ?, ?, ?, ?, NULLIF(?, ''))
			RETURNING id
		`, eventID, b.FriendlyName, b.Animated, b.EmojiName, b.EmojiID, b.Link).Scan(&badgeID)
		if err != nil {
			return Event{}, fmt.Errorf("inserting badge %q: %w", b.FriendlyName, err)
		}
		b.ID = badgeID
		out.Badges = append(out.Badges, b)
	}

	if err := tx.Commit(); err != nil {
		return Event{}, fmt.Errorf("committing event: %w", err)
	}
	return out, nil
}

// UserBadges returns the user's earned badges, newest event first.
func (s *Store) UserBadges(ctx context.Context, userID string) ([]UserBadge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.event_name, e.event_date, ub.winner, ub.badge_kind,
		       b.id, b.friendly_name, b.animated, b.emoji_name, b.emoji_id, COALESCE(b.link, '')
		FROM users u
		JOIN user_badges ub ON ub.user_id = u.id
		JOIN events e ON e.id = ub.event_id
		LEFT JOIN badges b ON b.event_id = e.id
		WHERE u.user_id = ?
		ORDER BY e.event_date DESC, e.id DESC, b.id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying user badges: %w", err)
	}
	defer rows.Close()

	var (
		out []UserBadge
		cur *UserBadge
	)
	for rows.Next() {
		var (
			eventID  int64
			name     string
			date     int64
			winner   bool
			kind     int
			badgeID  sql.NullInt64
			friendly sql.NullString
			animated sql.NullBool
			emojiNm  sql.NullString
			emojiID  sql.NullString
			link     sql.NullString
		)
		if err := rows.Scan(&eventID, &name, &date, &winner, &kind, &badgeID, &friendly, &animated, &emojiNm, &emojiID, &link); err != nil {
			return nil, fmt.Errorf("scanning user badge row: %w", err)
		}
		if cur == nil || cur.EventID != eventID {
			out = append(out, UserBadge{
				EventID:   eventID,
				EventName: name,
				EventDate: time.Unix(date, 0).UTC(),
				Winner:    winner,
				Kind:      Kind(kind),
			})
			cur = &out[len(out)-1]
		}
		if badgeID.Valid {
			cur.Badges = append(cur.Badges, Badge{
				ID:           badgeID.Int64,
				FriendlyName: friendly.String,
				Animated:     animated.Bool,
				EmojiName:    emojiNm.String,
				EmojiID:      emojiID.String,
				Link:         link.String,
			})
		}
	}
	return out, rows.Err()
}

// AwardBadge upserts the user's badge for an event. The user row is created
// on first award.
func (s *Store) AwardBadge(ctx context.Context, userID string, eventID int64, winner bool, kind Kind) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("checking event: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id) VALUES (?) ON CONFLICT DO NOTHING
	`, userID); err != nil {
		return fmt.Errorf("ensuring user row: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_badges (user_id, event_id, winner, badge_kind)
		SELECT u.id, ?, ?, ? FROM users u WHERE u.user_id = ?
		ON CONFLICT (user_id, event_id) DO UPDATE SET
			winner = excluded.winner,
			badge_kind = excluded.badge_kind
	`, eventID, winner, int(kind), userID)
	if err != nil {
		return fmt.Errorf("awarding badge: %w", err)
	}
	return nil
}

// RevokeBadge deletes the user's badge for an event.
func (s *Store) RevokeBadge(ctx context.Context, userID string, eventID int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM user_badges
		WHERE user_id = (SELECT id FROM users WHERE user_id = ?) AND event_id = ?
	`, userID, eventID)
	if err != nil {
		return fmt.Errorf("revoking badge: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBadgeNotHeld
	}
	return nil
}

package badges

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrBusy is returned to a Populate caller that lost the single-flight
// race. Callers do not queue or wait; they retry later.
var ErrBusy = errors.New("badge cache is being populated, try again")

type cacheState int

const (
	stateEmpty cacheState = iota
	statePopulating
	statePopulated
)

// Cache is a read-through cache over the event list. One explicit state
// enum under one lock replaces the original pair of independently toggled
// flags, so every transition, including a failed population, is
// representable. The lock is never held across store I/O and is fully
// independent of the room lock.
type Cache struct {
	store *Store

	mu     sync.Mutex
	state  cacheState
	events []Event
}

func NewCache(store *Store) *Cache {
	return &Cache{store: store}
}

// Populate primes the cache. Already populated: immediate success.
// Population in flight elsewhere: ErrBusy. Otherwise this caller claims the
// populating right, queries the store with no lock held, and installs the
// full event list atomically — readers never observe a partial cache. A
// failed query returns the cache to empty; the original design left it
// wedged in the populating state, which is deliberately fixed here.
func (c *Cache) Populate(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case statePopulated:
		c.mu.Unlock()
		return nil
	case statePopulating:
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = statePopulating
	c.mu.Unlock()

	events, err := c.store.Events(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = stateEmpty
		return fmt.Errorf("populating badge cache: %w", err)
	}
	c.events = events
	c.state = statePopulated
	return nil
}

// Invalidate empties the cache; the next read repopulates.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
	c.state = stateEmpty
}

// Events returns all events, populating first if needed.
func (c *Cache) Events(ctx context.Context) ([]Event, error) {
	if err := c.Populate(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out, nil
}

// TotalEvents returns the event count.
func (c *Cache) TotalEvents(ctx context.Context) (int, error) {
	if err := c.Populate(ctx); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events), nil
}

// EventByName finds an event whose name contains the given fragment.
func (c *Cache) EventByName(ctx context.Context, name string) (Event, error) {
	if err := c.Populate(ctx); err != nil {
		return Event{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if strings.Contains(e.Name, name) {
			return e, nil
		}
	}
	return Event{}, ErrEventNotFound
}

// UserBadges reads through to the store so fresh awards are visible
// immediately; the populate call just pays the priming cost up front like
// every other reader.
func (c *Cache) UserBadges(ctx context.Context, userID string) ([]UserBadge, error) {
	if err := c.Populate(ctx); err != nil {
		return nil, err
	}
	return c.store.UserBadges(ctx, userID)
}

// AddEvent writes through the store and keeps the cache coherent.
func (c *Cache) AddEvent(ctx context.Context, name string, date time.Time, badges []Badge) (Event, error) {
	if err := c.Populate(ctx); err != nil {
		return Event{}, err
	}
	ev, err := c.store.AddEvent(ctx, name, date, badges)
	if err != nil {
		return Event{}, err
	}
	c.mu.Lock()
	if c.state == statePopulated {
		c.events = append([]Event{ev}, c.events...)
	}
	c.mu.Unlock()
	return ev, nil
}

// AwardBadge awards an event's badge to a user, resolving the event by
// name fragment.
func (c *Cache) AwardBadge(ctx context.Context, userID, eventName string, winner bool, kind Kind) error {
	ev, err := c.EventByName(ctx, eventName)
	if err != nil {
		return err
	}
	return c.store.AwardBadge(ctx, userID, ev.ID, winner, kind)
}

// RevokeBadge removes an event's badge from a user, resolving the event by
// name fragment.
func (c *Cache) RevokeBadge(ctx context.Context, userID, eventName string) error {
	ev, err := c.EventByName(ctx, eventName)
	if err != nil {
		return err
	}
	return c.store.RevokeBadge(ctx, userID, ev.ID)
}

package server

import (
	"encoding/json"
	"sync"
)

// FeedEvent is the payload published to operator subscribers watching the
// live progression feed.
type FeedEvent struct {
	Type    string `json:"type"` // attempt, advance, win
	UserID  string `json:"userId"`
	Stage   int    `json:"stage,omitempty"`
	Correct bool   `json:"correct,omitempty"`
	First   bool   `json:"first,omitempty"`
}

// Broker is an in-process pub/sub for the operator progression feed.
type Broker struct {
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded feed events.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Publish sends an event to every subscriber.
func (b *Broker) Publish(event FeedEvent) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

package sessions

import (
	"sync"

	"github.com/fastertools/ftl-tool-think/pkg/models"
)

// Feed is a thread-safe ring buffer of a session's most recent rendered
// steps that also fans new steps out to live subscribers.
type Feed struct {
	mu          sync.RWMutex
	entries     []models.FeedEvent
	maxEntries  int
	subscribers map[chan models.FeedEvent]struct{}
	closed      bool
}

// NewFeed creates a feed that retains up to maxEntries steps.
func NewFeed(maxEntries int) *Feed {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Feed{
		entries:     make([]models.FeedEvent, 0, maxEntries),
		maxEntries:  maxEntries,
		subscribers: make(map[chan models.FeedEvent]struct{}),
	}
}

// Publish appends an event and broadcasts it to all subscribers.
func (f *Feed) Publish(ev models.FeedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	if len(f.entries) >= f.maxEntries {
		f.entries = f.entries[1:]
	}
	f.entries = append(f.entries, ev)

	for ch := range f.subscribers {
		select {
		case ch <- ev:
		default:
			// slow subscriber, drop
		}
	}
}

// Recent returns the last n events, oldest first. n <= 0 returns all.
func (f *Feed) Recent(n int) []models.FeedEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.recentLocked(n)
}

func (f *Feed) recentLocked(n int) []models.FeedEvent {
	total := len(f.entries)
	if n <= 0 || n > total {
		n = total
	}
	out := make([]models.FeedEvent, n)
	copy(out, f.entries[total-n:])
	return out
}

// Subscribe returns a channel receiving new events. The channel is closed
// by Unsubscribe or when the feed is closed.
func (f *Feed) Subscribe() chan models.FeedEvent {
	ch := make(chan models.FeedEvent, 32)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch
	}
	f.subscribers[ch] = struct{}{}
	return ch
}

// SubscribeRecent returns the last n events together with a channel that
// receives every event published after them. n < 0 returns no history,
// n == 0 all of it.
func (f *Feed) SubscribeRecent(n int) ([]models.FeedEvent, chan models.FeedEvent) {
	ch := make(chan models.FeedEvent, 32)
	f.mu.Lock()
	defer f.mu.Unlock()

	var history []models.FeedEvent
	if n >= 0 {
		history = f.recentLocked(n)
	}
	if f.closed {
		close(ch)
		return history, ch
	}
	f.subscribers[ch] = struct{}{}
	return history, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (f *Feed) Unsubscribe(ch chan models.FeedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subscribers[ch]; !ok {
		return
	}
	delete(f.subscribers, ch)
	close(ch)
}

// Subscribers returns the number of live subscribers.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

// Close ends every subscription. Later publishes are dropped.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.subscribers {
		delete(f.subscribers, ch)
		close(ch)
	}
}

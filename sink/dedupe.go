package sink

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DedupeNotifier suppresses repeats of notices already published this run,
// so a lane cycling through a long outage does not flood the topic with
// identical messages. The window is a bounded LRU rather than an unbounded
// set; a notice may legitimately reappear after enough distinct ones.
type DedupeNotifier struct {
	next Notifier
	seen *lru.Cache[string, struct{}]
}

// NewDedupeNotifier wraps next with a suppression window of size entries.
func NewDedupeNotifier(next Notifier, size int) (*DedupeNotifier, error) {
	seen, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &DedupeNotifier{next: next, seen: seen}, nil
}

// Notify forwards the notice unless an identical one was already sent.
func (d *DedupeNotifier) Notify(ctx context.Context, subject, body string) error {
	key := subject + "\x00" + body
	if _, dup := d.seen.Get(key); dup {
		return nil
	}
	d.seen.Add(key, struct{}{})
	return d.next.Notify(ctx, subject, body)
}

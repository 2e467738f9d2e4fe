package notify

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Benwil1/latest-copy-sub000/matching"
)

// DefaultDedupeSize bounds how many recent match keys are remembered.
const DefaultDedupeSize = 4096

// Deduper drops events whose match key was already delivered, turning
// at-least-once delivery into effectively-once for the wrapped notifier.
type Deduper struct {
	next matching.Notifier
	seen *lru.Cache[string, struct{}]
}

func NewDeduper(next matching.Notifier, size int) (*Deduper, error) {
	if size <= 0 {
		size = DefaultDedupeSize
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &Deduper{next: next, seen: cache}, nil
}

func (d *Deduper) OnMutualMatch(ctx context.Context, ev matching.MatchEvent) error {
	if found, _ := d.seen.ContainsOrAdd(ev.MatchKey, struct{}{}); found {
		return nil
	}
	if err := d.next.OnMutualMatch(ctx, ev); err != nil {
		// Forget the key so a redelivery can succeed.
		d.seen.Remove(ev.MatchKey)
		return err
	}
	return nil
}

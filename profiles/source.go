// Package profiles provides the read-only profile sources the matching
// engine scores and validates against: SQL, DynamoDB and in-memory, plus a
// per-request batching loader and a circuit breaker.
package profiles

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Benwil1/latest-copy-sub000/matching"
)

// Source resolves profiles one at a time or in batches. GetProfiles omits
// unknown ids from the result instead of failing.
type Source interface {
	matching.ProfileSource
	GetProfiles(ctx context.Context, ids []string) (map[string]matching.Profile, error)
}

// Memory is a map-backed Source.
type Memory struct {
	mu       sync.RWMutex
	profiles map[string]matching.Profile
}

func NewMemory(ps ...matching.Profile) *Memory {
	m := &Memory{profiles: make(map[string]matching.Profile, len(ps))}
	for _, p := range ps {
		m.profiles[p.ID] = p
	}
	return m
}

// Put adds or replaces p.
func (m *Memory) Put(_ context.Context, p matching.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = normalize(p)
	return nil
}

func (m *Memory) GetProfile(_ context.Context, id string) (matching.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return matching.Profile{}, matching.ErrProfileNotFound
	}
	return p, nil
}

func (m *Memory) GetProfiles(_ context.Context, ids []string) (map[string]matching.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]matching.Profile, len(ids))
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// IDs returns every stored id in sorted order.
func (m *Memory) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.profiles))
	for id := range m.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// normalize drops blank lifestyle values and interest tags so every source
// hands the scorer the same shape.
func normalize(p matching.Profile) matching.Profile {
	p.Location = strings.TrimSpace(p.Location)
	if len(p.Lifestyle) > 0 {
		ls := make(map[string]string, len(p.Lifestyle))
		for k, v := range p.Lifestyle {
			if v = strings.TrimSpace(v); v != "" {
				ls[strings.ToLower(strings.TrimSpace(k))] = v
			}
		}
		p.Lifestyle = ls
	}
	if len(p.Interests) > 0 {
		tags := make([]string, 0, len(p.Interests))
		for _, t := range p.Interests {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		p.Interests = tags
	}
	return p
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

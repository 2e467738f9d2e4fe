//go:build integration

package sqlstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Benwil1/latest-copy-sub000/matching"
)

func startPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "matcher",
				"POSTGRES_PASSWORD": "matcher",
				"POSTGRES_DB":       "matching",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=matcher password=matcher dbname=matching sslmode=disable", host, port.Port())
	s, err := Open(ctx, DriverPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestPostgresLedger(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()

	profiles := staticProfiles{}
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("user-%02d", i)
		profiles[id] = matching.Profile{ID: id}
	}

	var mu sync.Mutex
	events := map[string]int{}
	e := matching.New(s, profiles, matching.NotifierFunc(func(_ context.Context, ev matching.MatchEvent) error {
		mu.Lock()
		events[ev.UserA+":"+ev.UserB]++
		mu.Unlock()
		return nil
	}), matching.Options{RetryInitialInterval: 5 * time.Millisecond})

	// 20 disjoint pairs, both directions fired at once.
	var wg sync.WaitGroup
	for i := 0; i < 40; i += 2 {
		a, b := fmt.Sprintf("user-%02d", i), fmt.Sprintf("user-%02d", i+1)
		for _, dir := range [][2]string{{a, b}, {b, a}} {
			wg.Add(1)
			go func(actor, target string) {
				defer wg.Done()
				_, err := e.RecordAction(ctx, actor, target, matching.Like)
				assert.NoError(t, err)
			}(dir[0], dir[1])
		}
	}
	wg.Wait()

	assert.Len(t, events, 20)
	for pair, n := range events {
		assert.Equal(t, 1, n, pair)
	}

	recs, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 40)
	for _, r := range recs {
		assert.True(t, r.IsMutual, "%s -> %s", r.ActorID, r.TargetID)
	}

	_, err = e.RecordAction(ctx, "user-00", "user-01", matching.Dislike)
	var dup *matching.DuplicateActionError
	assert.ErrorAs(t, err, &dup)

	require.NoError(t, e.Unmatch(ctx, "user-00", "user-01"))
	m, err := e.Matches(ctx, "user-00")
	require.NoError(t, err)
	assert.Empty(t, m)
}

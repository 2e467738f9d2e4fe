package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/Benwil1/latest-copy-sub000/config"
	"github.com/Benwil1/latest-copy-sub000/matching"
	"github.com/Benwil1/latest-copy-sub000/matching/memstore"
	"github.com/Benwil1/latest-copy-sub000/notify"
	"github.com/Benwil1/latest-copy-sub000/profiles"
)

var testSecret = []byte("test-secret-key-for-testing")

// fixedNow keeps timestamps in golden files stable.
var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Test helper structures and types
type testServer struct {
	handler http.Handler
	store   *memstore.Store
	hub     *notify.Hub
}

func testProfiles() *profiles.Memory {
	return profiles.NewMemory(
		matching.Profile{ID: "alice", Location: "Downtown", Budget: 1200, Age: 26},
		matching.Profile{ID: "bob", Location: "Downtown", Budget: 1300, Age: 28},
		matching.Profile{ID: "carol", Location: "Uptown", Budget: 800, Age: 40},
	)
}

func newTestServer(t *testing.T, store matching.Store) *testServer {
	t.Helper()
	mem, _ := store.(*memstore.Store)
	if store == nil {
		mem = memstore.New()
		store = mem
	}
	src := testProfiles()
	hub := notify.NewHub(nil)
	engine := matching.New(store, profiles.ContextSource{Fallback: src}, hub, matching.Options{
		MaxRetries:           2,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     time.Millisecond,
		Now:                  func() time.Time { return fixedNow },
	})
	h := newRouter(routerDeps{
		Engine:     engine,
		Hub:        hub,
		Profiles:   src,
		LoaderWait: time.Millisecond,
		JWTSecret:  testSecret,
		Server:     config.ServerConfig{CORSOrigins: []string{"http://localhost:5173"}},
	})
	return &testServer{handler: h, store: mem, hub: hub}
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	tok, err := signToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a request as userID; an empty userID sends no token.
func (s *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) act(t *testing.T, actor, target, kind string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/actions", actor, map[string]string{"target_id": target, "kind": kind})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// unavailableStore fails every ledger call with a retryable error.
type unavailableStore struct {
	matching.Store
	calls int
}

func (s *unavailableStore) WithPair(ctx context.Context, a, b string, fn func(matching.PairTx) error) error {
	s.calls++
	return matching.Unavailable("with pair", context.DeadlineExceeded)
}

func (s *unavailableStore) ListMatches(ctx context.Context, user string) ([]matching.MatchSummary, error) {
	return nil, matching.Unavailable("list matches", context.DeadlineExceeded)
}

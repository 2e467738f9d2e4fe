package graph

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benwil1/latest-copy-sub000/matching"
	"github.com/Benwil1/latest-copy-sub000/matching/memstore"
	"github.com/Benwil1/latest-copy-sub000/notify"
	"github.com/Benwil1/latest-copy-sub000/profiles"
)

type testUserKey struct{}

// Helper to create test context with user ID
func createTestContext(userID string) context.Context {
	return context.WithValue(context.Background(), testUserKey{}, userID)
}

func userFromTestContext(ctx context.Context) string {
	id, _ := ctx.Value(testUserKey{}).(string)
	return id
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	src := profiles.NewMemory(
		matching.Profile{ID: "alice", Location: "Downtown", Budget: 1200, Age: 26},
		matching.Profile{ID: "bob", Location: "Downtown", Budget: 1300, Age: 28},
		matching.Profile{ID: "carol", Location: "Uptown", Budget: 800, Age: 40},
	)
	hub := notify.NewHub(nil)
	engine := matching.New(memstore.New(), src, hub, matching.Options{
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     time.Millisecond,
	})
	return NewResolver(engine, hub, userFromTestContext)
}

func TestResolvers(t *testing.T) {
	resolver := newTestResolver(t)
	alice, bob := createTestContext("alice"), createTestContext("bob")

	t.Run("RecordAction", func(t *testing.T) {
		res, err := resolver.Mutation().RecordAction(alice, "bob", "LIKE")
		require.NoError(t, err)
		assert.Equal(t, &ActionResult{Recorded: true}, res)

		res, err = resolver.Mutation().RecordAction(bob, "alice", "LIKE")
		require.NoError(t, err)
		assert.Equal(t, &ActionResult{Recorded: true, IsMutual: true}, res)

		_, err = resolver.Mutation().RecordAction(alice, "bob", "DISLIKE")
		assert.Equal(t, matching.CodeDuplicateAction, matching.Code(err))

		_, err = resolver.Mutation().RecordAction(alice, "carol", "SUPERLIKE")
		assert.Equal(t, matching.CodeInvalidAction, matching.Code(err))
	})

	t.Run("Queries", func(t *testing.T) {
		matches, err := resolver.Query().Matches(alice)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "bob", matches[0].OtherUserID)

		likes, err := resolver.Query().LikesReceived(bob)
		require.NoError(t, err)
		require.Len(t, likes, 1)
		assert.True(t, likes[0].HaveILikedBack)

		stats, err := resolver.Query().Stats(alice)
		require.NoError(t, err)
		assert.Equal(t, &MatchStats{TotalLikesGiven: 1, MutualMatches: 1, LikesReceived: 1, MatchRate: 100}, stats)

		c, err := resolver.Query().Compatibility(alice, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, &Compatibility{Score: 95, FactorsConsidered: 3}, c)
	})

	t.Run("Unmatch", func(t *testing.T) {
		ok, err := resolver.Mutation().Unmatch(bob, "alice")
		require.NoError(t, err)
		assert.True(t, ok)

		matches, err := resolver.Query().Matches(alice)
		require.NoError(t, err)
		assert.Empty(t, matches)

		_, err = resolver.Mutation().Unmatch(alice, "carol")
		assert.Equal(t, matching.CodeNotMatched, matching.Code(err))
	})

	t.Run("Requires a caller", func(t *testing.T) {
		_, err := resolver.Query().Matches(context.Background())
		assert.ErrorIs(t, err, errUnauthenticated)

		_, err = resolver.Subscription().MatchCreated(context.Background())
		assert.ErrorIs(t, err, errUnauthenticated)
	})
}

func TestMatchCreatedSubscription(t *testing.T) {
	resolver := newTestResolver(t)
	ctx, cancel := context.WithCancel(createTestContext("bob"))
	defer cancel()

	notices, err := resolver.Subscription().MatchCreated(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.Hub.Connected("bob"))

	_, err = resolver.Mutation().RecordAction(createTestContext("alice"), "bob", "LIKE")
	require.NoError(t, err)
	_, err = resolver.Mutation().RecordAction(createTestContext("bob"), "alice", "LIKE")
	require.NoError(t, err)

	select {
	case n := <-notices:
		require.NotNil(t, n)
		assert.Equal(t, "alice", n.OtherUserID)
		assert.Len(t, n.MatchKey, 32)
	case <-time.After(2 * time.Second):
		t.Fatal("no match notice")
	}

	cancel()
	select {
	case _, open := <-notices:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("notice stream not closed")
	}
	assert.Equal(t, 0, resolver.Hub.Connected("bob"))
}

// ============================================================================
// EXECUTABLE SCHEMA
// ============================================================================

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message    string         `json:"message"`
		Path       []any          `json:"path"`
		Extensions map[string]any `json:"extensions"`
	} `json:"errors"`
}

func newGraphQLServer(t *testing.T, resolver *Resolver) *httptest.Server {
	t.Helper()
	h := NewHandler(resolver, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), testUserKey{}, r.Header.Get("X-User"))
		h.ServeHTTP(w, r.WithContext(ctx))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sendGraphQLRequest(t *testing.T, srv *httptest.Server, userID, query string, vars map[string]any) *graphQLResponse {
	t.Helper()
	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", userID)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out graphQLResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return &out
}

func TestExecutableSchema(t *testing.T) {
	srv := newGraphQLServer(t, newTestResolver(t))

	const like = `mutation Like($target: ID!) { recordAction(targetUserId: $target, kind: LIKE) { recorded isMutual } }`

	t.Run("Mutation with variables", func(t *testing.T) {
		resp := sendGraphQLRequest(t, srv, "alice", like, map[string]any{"target": "bob"})
		require.Empty(t, resp.Errors)
		assert.JSONEq(t, `{"recordAction":{"recorded":true,"isMutual":false}}`, string(resp.Data))

		resp = sendGraphQLRequest(t, srv, "bob", like, map[string]any{"target": "alice"})
		require.Empty(t, resp.Errors)
		assert.JSONEq(t, `{"recordAction":{"recorded":true,"isMutual":true}}`, string(resp.Data))
	})

	t.Run("Selection order, aliases and fragments", func(t *testing.T) {
		query := `
			query {
				__typename
				mine: matches { ...M }
				stats { matchRate totalLikesGiven }
				compatibility(userA: "alice", userB: "bob") { score }
			}
			fragment M on Match { otherUserId __typename }`
		resp := sendGraphQLRequest(t, srv, "alice", query, nil)
		require.Empty(t, resp.Errors)
		assert.Equal(t,
			`{"__typename":"Query","mine":[{"otherUserId":"bob","__typename":"Match"}],"stats":{"matchRate":100,"totalLikesGiven":1},"compatibility":{"score":95}}`,
			string(resp.Data))
	})

	t.Run("Engine errors carry codes", func(t *testing.T) {
		resp := sendGraphQLRequest(t, srv, "alice", like, map[string]any{"target": "bob"})
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "duplicate_action", resp.Errors[0].Extensions["code"])
		assert.Equal(t, []any{"recordAction"}, resp.Errors[0].Path)
		assert.Equal(t, "null", string(resp.Data))

		resp = sendGraphQLRequest(t, srv, "alice", `mutation { unmatch(userId: "carol") }`, nil)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "not_matched", resp.Errors[0].Extensions["code"])
	})

	t.Run("Missing caller", func(t *testing.T) {
		resp := sendGraphQLRequest(t, srv, "", `{ matches { otherUserId } }`, nil)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "unauthorized", resp.Errors[0].Extensions["code"])
	})

	t.Run("Invalid queries are rejected before execution", func(t *testing.T) {
		resp := sendGraphQLRequest(t, srv, "alice", `{ matches { nope } }`, nil)
		assert.NotEmpty(t, resp.Errors)
	})
}

func TestObjectKeepsKeyOrder(t *testing.T) {
	b, err := json.Marshal(object{{"z", 1}, {"a", []any{"x"}}, {"m", nil}})
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":["x"],"m":null}`, string(b))
}

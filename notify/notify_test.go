package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benwil1/latest-copy-sub000/matching"
)

type recorder struct {
	mu     sync.Mutex
	events []matching.MatchEvent
	fail   error
}

func (r *recorder) OnMutualMatch(_ context.Context, ev matching.MatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func testEvent() matching.MatchEvent {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return matching.MatchEvent{UserA: "alice", UserB: "bob", MatchKey: matching.MatchKey("alice", "bob", at), MatchedAt: at}
}

func TestHubDelivery(t *testing.T) {
	hub := NewHub(nil)
	alice, closeAlice := hub.Subscribe("alice")
	bob, closeBob := hub.Subscribe("bob")
	defer closeBob()

	require.NoError(t, hub.OnMutualMatch(context.Background(), testEvent()))

	evt := <-alice
	assert.Equal(t, "match", evt.Type)
	assert.Equal(t, "bob", evt.Data.(MatchPayload).OtherUserID)
	evt = <-bob
	assert.Equal(t, "alice", evt.Data.(MatchPayload).OtherUserID)

	assert.Equal(t, 1, hub.Connected("alice"))
	closeAlice()
	closeAlice()
	assert.Equal(t, 0, hub.Connected("alice"))
	_, ok := <-alice
	assert.False(t, ok)
}

func TestHubDropsWhenFull(t *testing.T) {
	hub := NewHub(nil)
	ch, cleanup := hub.Subscribe("alice")
	defer cleanup()

	for i := 0; i < sendBuffer+5; i++ {
		require.NoError(t, hub.OnMutualMatch(context.Background(), testEvent()))
	}
	assert.Len(t, ch, sendBuffer)
}

func TestHubServeWS(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=bob"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var evt struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &evt))
	assert.Equal(t, "info", evt.Type)

	require.NoError(t, hub.OnMutualMatch(context.Background(), testEvent()))
	_, raw, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &evt))
	assert.Equal(t, "match", evt.Type)

	var payload MatchPayload
	require.NoError(t, json.Unmarshal(evt.Data, &payload))
	assert.Equal(t, "alice", payload.OtherUserID)
	assert.Equal(t, testEvent().MatchKey, payload.MatchKey)
}

func TestDeduper(t *testing.T) {
	rec := &recorder{}
	d, err := NewDeduper(rec, 8)
	require.NoError(t, err)
	ctx := context.Background()
	ev := testEvent()

	require.NoError(t, d.OnMutualMatch(ctx, ev))
	require.NoError(t, d.OnMutualMatch(ctx, ev))
	assert.Equal(t, 1, rec.count())

	// A failed delivery is not remembered.
	other := ev
	other.MatchKey = "other"
	rec.fail = errors.New("down")
	assert.Error(t, d.OnMutualMatch(ctx, other))
	rec.fail = nil
	require.NoError(t, d.OnMutualMatch(ctx, other))
	assert.Equal(t, 2, rec.count())
}

func TestBusRoundTrip(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	rec := &recorder{}
	dedupe, err := NewDeduper(rec, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay := NewRelay(bus.Subscriber, "", dedupe)
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	pub := NewBusPublisher(bus.Publisher, "")
	ev := testEvent()
	// gochannel drops messages published before a subscriber exists.
	require.Eventually(t, func() bool {
		_ = pub.OnMutualMatch(ctx, ev)
		return rec.count() > 0
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, pub.OnMutualMatch(ctx, ev))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, ev.MatchKey, rec.events[0].MatchKey)
	assert.True(t, ev.MatchedAt.Equal(rec.events[0].MatchedAt))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

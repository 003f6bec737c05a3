package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpoClientBatches(t *testing.T) {
	var calls int32
	var sizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var msgs []ExpoPushMessage
		_ = json.NewDecoder(r.Body).Decode(&msgs)
		sizes = append(sizes, len(msgs))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tokens := make([]string, 250)
	for i := range tokens {
		tokens[i] = "ExponentPushToken[x]"
	}
	c := &ExpoClient{URL: srv.URL, HTTPClient: srv.Client()}

	err := c.Push(context.Background(), tokens, "New event", "Beach cleanup", map[string]interface{}{"eventId": "1"})
	assert.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []int{100, 100, 50}, sizes)
}

func TestExpoClientReportsFailedBatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := &ExpoClient{URL: srv.URL, HTTPClient: srv.Client()}
	err := c.Push(context.Background(), []string{"a"}, "t", "b", nil)
	assert.EqualError(t, err, "1 of 1 push batches failed")

	assert.NoError(t, c.Push(context.Background(), nil, "t", "b", nil))
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=u1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(EventTaskUpdated, map[string]string{"id": "t1"})

	var env struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, EventTaskUpdated, env.Event)
	assert.Equal(t, "t1", env.Data["id"])

	hub.SendToUser("u1", "hello", map[string]string{"id": "t2"})
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "hello", env.Event)

	// unknown users are ignored
	hub.SendToUser("nobody", "hello", 1)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond)
}

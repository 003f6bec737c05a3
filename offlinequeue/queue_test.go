package offlinequeue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leoportal/leo-portal-api/models"
)

type fakeSender struct {
	err     error
	batches [][]models.SyncItem
}

func (f *fakeSender) Sync(_ context.Context, items []models.SyncItem) (models.SyncResponse, error) {
	batch := make([]models.SyncItem, len(items))
	copy(batch, items)
	f.batches = append(f.batches, batch)
	if f.err != nil {
		return models.SyncResponse{}, f.err
	}
	return models.SyncResponse{Created: len(items)}, nil
}

func openAt(t *testing.T, now time.Time) (*Queue, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.json")
	q, err := Open(path)
	require.NoError(t, err)
	q.now = func() time.Time { return now }
	return q, path
}

func TestEnqueueStampsAndPersists(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 5, 0, 0, time.UTC)
	q, path := openAt(t, now)

	added, err := q.Enqueue(models.SyncItem{EventID: "e1", Location: &models.Location{Lat: 51.5, Lng: -0.12}})
	require.NoError(t, err)
	assert.True(t, added)

	reopened, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Len())
	assert.True(t, now.Equal(reopened.Pending()[0].QueuedAt))
}

func TestEnqueueSkipsIdenticalMark(t *testing.T) {
	q, _ := openAt(t, time.Date(2026, 3, 14, 18, 5, 0, 0, time.UTC))

	first, err := q.Enqueue(models.SyncItem{EventID: "e1"})
	require.NoError(t, err)
	second, err := q.Enqueue(models.SyncItem{EventID: "e1"})
	require.NoError(t, err)
	visitor, err := q.Enqueue(models.SyncItem{EventID: "e1", VisitorName: "Jane Doe"})
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.True(t, visitor)
	assert.Equal(t, 2, q.Len())
}

func TestPendingReturnsCopy(t *testing.T) {
	q, _ := openAt(t, time.Now())
	_, err := q.Enqueue(models.SyncItem{EventID: "e1"})
	require.NoError(t, err)

	items := q.Pending()
	items[0].EventID = "changed"

	assert.Equal(t, "e1", q.Pending()[0].EventID)
}

func TestFlushClearsOnSuccess(t *testing.T) {
	now := time.Now()
	q, path := openAt(t, now)
	_, _ = q.Enqueue(models.SyncItem{EventID: "e1"})
	q.now = func() time.Time { return now.Add(time.Second) }
	_, _ = q.Enqueue(models.SyncItem{EventID: "e2"})
	s := &fakeSender{}

	resp, err := q.Flush(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Created)
	require.Len(t, s.batches, 1)
	assert.Len(t, s.batches[0], 2)
	assert.Equal(t, 0, q.Len())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestFlushKeepsQueueOnError(t *testing.T) {
	q, path := openAt(t, time.Now())
	_, _ = q.Enqueue(models.SyncItem{EventID: "e1"})
	s := &fakeSender{err: errors.New("offline")}

	_, err := q.Flush(context.Background(), s)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
	assert.Equal(t, 1, q.Len())
	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
}

func TestFlushEmptyQueueSkipsSender(t *testing.T) {
	q, _ := openAt(t, time.Now())
	s := &fakeSender{}

	_, err := q.Flush(context.Background(), s)

	require.NoError(t, err)
	assert.Empty(t, s.batches)
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(path)

	assert.Error(t, err)
}

func TestHTTPSenderSync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SyncPath, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req models.SyncRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Items, 1)
		_ = json.NewEncoder(w).Encode(models.SyncResponse{Created: 1})
	}))
	defer srv.Close()

	resp, err := NewHTTPSender(srv.URL+"/", "tok").Sync(context.Background(), []models.SyncItem{{EventID: "e1"}})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.Created)
}

func TestHTTPSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_ = json.NewEncoder(w).Encode(models.ErrorMessageResponse{Response: models.MessageError{Message: "at most 500 items can be synced at once"}})
	}))
	defer srv.Close()

	_, err := NewHTTPSender(srv.URL, "tok").Sync(context.Background(), []models.SyncItem{{EventID: "e1"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 500 items")
}

// Package offlinequeue buffers attendance marks made without connectivity and
// flushes them to the portal's bulk sync route once the device is back online.
package offlinequeue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/models"
)

// Sender delivers a batch of queued marks in a single call
type Sender interface {
	Sync(ctx context.Context, items []models.SyncItem) (models.SyncResponse, error)
}

// Queue is a JSON file backed list of pending attendance marks. It is safe
// for concurrent use within one process.
type Queue struct {
	mu    sync.Mutex
	path  string
	items []models.SyncItem
	now   func() time.Time
}

// Open loads the queue stored at path. A missing file is an empty queue.
func Open(path string) (*Queue, error) {
	q := &Queue{path: path, now: time.Now}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read offline queue: %w", err)
	}
	if len(data) == 0 {
		return q, nil
	}
	if err := json.Unmarshal(data, &q.items); err != nil {
		return nil, fmt.Errorf("failed to decode offline queue %s: %w", path, err)
	}
	return q, nil
}

// Enqueue stamps item with the current time and persists it. It reports false
// when an identical mark for the same event, subject and time is already queued.
func (q *Queue) Enqueue(item models.SyncItem) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item.QueuedAt = q.now().UTC()
	for _, existing := range q.items {
		if sameMark(existing, item) {
			return false, nil
		}
	}

	q.items = append(q.items, item)
	if err := q.save(); err != nil {
		q.items = q.items[:len(q.items)-1]
		return false, err
	}
	return true, nil
}

// Pending returns a copy of the queued marks in the order they were added
func (q *Queue) Pending() []models.SyncItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.SyncItem, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of queued marks
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Flush sends every queued mark in one call. The queue is cleared when the
// sender succeeds and left untouched when it fails. Items that the server
// rejects are not retried; their outcome is in the returned response.
func (q *Queue) Flush(ctx context.Context, s Sender) (models.SyncResponse, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return models.SyncResponse{}, nil
	}

	resp, err := s.Sync(ctx, q.items)
	if err != nil {
		return resp, fmt.Errorf("failed to flush %d queued marks: %w", len(q.items), err)
	}

	flushed := len(q.items)
	q.items = nil
	if err := q.save(); err != nil {
		return resp, err
	}
	zap.S().Infow("flushed offline attendance queue",
		"items", flushed,
		"created", resp.Created,
		"duplicate", resp.Duplicate,
		"rejected", resp.Rejected,
	)
	return resp, nil
}

// save writes the queue to a temp file and renames it over the old one so a
// crash mid write never leaves a truncated queue behind.
func (q *Queue) save() error {
	items := q.items
	if items == nil {
		items = []models.SyncItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode offline queue: %w", err)
	}

	dir := filepath.Dir(q.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".queue-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp queue file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write offline queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write offline queue: %w", err)
	}
	if err := os.Rename(tmp.Name(), q.path); err != nil {
		return fmt.Errorf("failed to replace offline queue: %w", err)
	}
	return nil
}

// sameMark compares the dedupe key. The subject is the visitor name for guest
// marks and empty for the signed in member.
func sameMark(a, b models.SyncItem) bool {
	return a.EventID == b.EventID && a.VisitorName == b.VisitorName && a.QueuedAt.Equal(b.QueuedAt)
}

package offlinequeue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leoportal/leo-portal-api/models"
)

// SyncPath is the portal route that accepts queued attendance marks
const SyncPath = "/api/v1/attendance/sync"

// HTTPSender posts queued marks to a portal instance with a bearer token
type HTTPSender struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewHTTPSender returns a sender for the portal at baseURL
func NewHTTPSender(baseURL, token string) *HTTPSender {
	return &HTTPSender{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Sync sends items to the bulk sync route and decodes the per item outcome
func (s *HTTPSender) Sync(ctx context.Context, items []models.SyncItem) (models.SyncResponse, error) {
	var out models.SyncResponse
	payload, err := json.Marshal(models.SyncRequest{Items: items})
	if err != nil {
		return out, fmt.Errorf("failed to marshal sync request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+SyncPath, bytes.NewReader(payload))
	if err != nil {
		return out, fmt.Errorf("failed to create sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Token)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("failed to send sync request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return out, fmt.Errorf("failed to read sync response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e models.ErrorMessageResponse
		if json.Unmarshal(body, &e) == nil && e.Response.Message != "" {
			return out, fmt.Errorf("sync rejected with status %d: %s", resp.StatusCode, e.Response.Message)
		}
		return out, fmt.Errorf("sync rejected with status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("failed to decode sync response: %w", err)
	}
	return out, nil
}

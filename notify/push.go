// Package notify delivers push notifications to member devices and live
// updates to connected browsers.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// ExpoPushURL is the Expo push API endpoint
	ExpoPushURL    = "https://exp.host/--/api/v2/push/send"
	expoBatchLimit = 100
)

// Pusher sends a notification to a set of device tokens
type Pusher interface {
	Push(ctx context.Context, tokens []string, title, body string, data map[string]interface{}) error
}

// ExpoPushMessage represents a single push notification message for the Expo push API
type ExpoPushMessage struct {
	To        string                 `json:"to"`
	Title     string                 `json:"title,omitempty"`
	Body      string                 `json:"body,omitempty"`
	Sound     string                 `json:"sound,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Priority  string                 `json:"priority,omitempty"`
	ChannelID string                 `json:"channelId,omitempty"`
}

// ExpoClient sends push notifications through the Expo push API
type ExpoClient struct {
	URL        string
	HTTPClient *http.Client
}

// NewExpoClient returns a client for the public Expo endpoint
func NewExpoClient() *ExpoClient {
	return &ExpoClient{URL: ExpoPushURL, HTTPClient: &http.Client{Timeout: 15 * time.Second}}
}

// Push sends the notification to every token. Tokens are batched in groups of
// 100 per the Expo API limit; a failed batch is logged and the rest still go out.
// The returned error reports how many batches failed.
func (c *ExpoClient) Push(ctx context.Context, tokens []string, title, body string, data map[string]interface{}) error {
	if len(tokens) == 0 {
		return nil
	}

	messages := make([]ExpoPushMessage, 0, len(tokens))
	for _, token := range tokens {
		messages = append(messages, ExpoPushMessage{
			To:        token,
			Title:     title,
			Body:      body,
			Sound:     "default",
			Data:      data,
			Priority:  "high",
			ChannelID: "default",
		})
	}

	failed := 0
	batches := 0
	for i := 0; i < len(messages); i += expoBatchLimit {
		end := i + expoBatchLimit
		if end > len(messages) {
			end = len(messages)
		}
		batches++
		if err := c.sendBatch(ctx, messages[i:end]); err != nil {
			zap.S().Errorw("failed to send expo push batch", "from", i, "to", end-1, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d push batches failed", failed, batches)
	}
	return nil
}

func (c *ExpoClient) sendBatch(ctx context.Context, messages []ExpoPushMessage) error {
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal push messages: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expo push API returned status %d", resp.StatusCode)
	}

	zap.S().Infow("sent push notifications via expo", "count", len(messages))
	return nil
}

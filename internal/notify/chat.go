package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ernie/tourney-tracker/internal/config"
)

// ChatClient posts announcements to a single chat channel over the
// platform's REST API
type ChatClient struct {
	apiBase   string
	channelID string
	token     string
	http      *http.Client
}

// NewChatClient creates a client for the configured channel
func NewChatClient(cfg config.ChatConfig) *ChatClient {
	return &ChatClient{
		apiBase:   cfg.APIBase,
		channelID: cfg.ChannelID,
		token:     cfg.Token,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// messageResponse is the subset of the send-message response we need
type messageResponse struct {
	ID string `json:"id"`
}

// AnnounceOpen sends the open announcement and returns the message ID
func (c *ChatClient) AnnounceOpen(ctx context.Context, text string) (string, error) {
	body, err := c.send(ctx, text)
	if err != nil {
		return "", err
	}

	var msg messageResponse
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", fmt.Errorf("decoding send response: %w", err)
	}
	if msg.ID == "" {
		return "", fmt.Errorf("send response missing message id")
	}
	return msg.ID, nil
}

// AnnounceResult sends a result or finished message; the message ID is
// not kept because result messages are never retracted
func (c *ChatClient) AnnounceResult(ctx context.Context, text string) error {
	_, err := c.send(ctx, text)
	return err
}

// Retract deletes a previously sent announcement. Not-found and
// permission failures are tolerated: the message may have been removed
// by a moderator already.
func (c *ChatClient) Retract(ctx context.Context, ref string) error {
	url := fmt.Sprintf("%s/channels/%s/messages/%s", c.apiBase, c.channelID, ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("building delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		return nil
	default:
		return fmt.Errorf("deleting message: status %d", resp.StatusCode)
	}
}

// send posts a message to the channel and returns the raw response
func (c *ChatClient) send(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", c.apiBase, c.channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building send request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading send response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sending message: status %d", resp.StatusCode)
	}
	return body, nil
}

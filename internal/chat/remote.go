package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteClassifier calls an HTTP classifier that accepts {"text": ...} and
// replies {"label": ...}.
type RemoteClassifier struct {
	url    string
	client *http.Client
}

// NewRemoteClassifier returns a classifier backed by url.
func NewRemoteClassifier(url string, timeout time.Duration) *RemoteClassifier {
	return &RemoteClassifier{url: url, client: &http.Client{Timeout: timeout}}
}

// Classify implements Classifier.
func (c *RemoteClassifier) Classify(ctx context.Context, text string) (Label, error) {
	var out struct {
		Label string `json:"label"`
	}
	if err := postJSON(ctx, c.client, c.url, map[string]string{"text": text}, &out); err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	switch l := Label(out.Label); l {
	case LabelChitChat, LabelQuery:
		return l, nil
	default:
		return "", fmt.Errorf("classify: unknown label %q", out.Label)
	}
}

// RemoteResponder calls an HTTP dialogue service that accepts
// {"message": ...} and replies {"response": ...}.
type RemoteResponder struct {
	url    string
	client *http.Client
}

// NewRemoteResponder returns a responder backed by url.
func NewRemoteResponder(url string, timeout time.Duration) *RemoteResponder {
	return &RemoteResponder{url: url, client: &http.Client{Timeout: timeout}}
}

// Respond implements Responder.
func (r *RemoteResponder) Respond(ctx context.Context, text string) (string, error) {
	var out struct {
		Response string `json:"response"`
	}
	if err := postJSON(ctx, r.client, r.url, map[string]string{"message": text}, &out); err != nil {
		return "", fmt.Errorf("respond: %w", err)
	}
	return out.Response, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

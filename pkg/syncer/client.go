package syncer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const requestTimeout = 30 * time.Second

// SyncError reports a remote API failure with enough context to distinguish
// conflicts (stale version token) from auth and transport problems.
type SyncError struct {
	StatusCode int
	Message    string
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("syncer: remote returned %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether the failure is an optimistic-concurrency
// conflict: the remote moved on since the version token was obtained, and the
// caller should pull before retrying.
func (e *SyncError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict || e.StatusCode == http.StatusUnprocessableEntity
}

// RemoteFile is the downloaded snapshot file plus the version token required
// to replace it.
type RemoteFile struct {
	Content []byte
	Version string
}

// Client talks to the remote file store. All methods take a context; none
// touch local vault state.
type Client struct {
	cfg  *Config
	http *http.Client
}

// NewClient creates a sync client over the given configuration.
func NewClient(cfg *Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: requestTimeout},
	}
}

// contentsURL builds the contents-API endpoint for the configured file.
func (c *Client) contentsURL() string {
	base := c.cfg.APIBase
	if base == "" {
		base = DefaultAPIBase
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		strings.TrimRight(base, "/"),
		url.PathEscape(c.cfg.Owner),
		url.PathEscape(c.cfg.Repo),
		c.cfg.Path)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}

// Pull downloads the remote snapshot file. Returns (nil, nil) when the file
// does not exist yet, which callers treat as "nothing to pull".
func (c *Client) Pull(ctx context.Context) (*RemoteFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.contentsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("syncer: failed to build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("syncer: pull failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(resp)
	}

	var body struct {
		Content string `json:"content"`
		SHA     string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("syncer: failed to decode pull response: %w", err)
	}

	// The API wraps base64 content in newlines
	raw, err := base64.StdEncoding.DecodeString(stripWhitespace(body.Content))
	if err != nil {
		return nil, fmt.Errorf("syncer: remote content is not valid base64: %w", err)
	}
	return &RemoteFile{Content: raw, Version: body.SHA}, nil
}

// Push uploads a snapshot, replacing the remote file. The version token must
// be the one returned by the pull (or a previous push) that the caller based
// this write on; empty means the file is being created. Returns the new
// version token. A stale token surfaces as a *SyncError with IsConflict true.
func (c *Client) Push(ctx context.Context, content []byte, message, version string) (string, error) {
	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
	}
	if version != "" {
		payload["sha"] = version
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("syncer: failed to encode push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("syncer: failed to build request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("syncer: push failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", remoteError(resp)
	}

	var result struct {
		Content struct {
			SHA string `json:"sha"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("syncer: failed to decode push response: %w", err)
	}
	return result.Content.SHA, nil
}

// remoteError builds a *SyncError from a non-success response, folding in the
// API's message field when one is present.
func remoteError(resp *http.Response) error {
	msg := resp.Status
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var body struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &body) == nil && body.Message != "" {
			msg = body.Message
		}
	}
	return &SyncError{StatusCode: resp.StatusCode, Message: msg}
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}

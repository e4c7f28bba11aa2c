package nftscout

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. Session streams disable the timeout on their own.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the NFTScout REST and stream API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// SessionRequest describes the input for starting a research session.
type SessionRequest struct {
	SessionID    string `json:"session_id,omitempty"`
	Message      string `json:"message"`
	Model        string `json:"model,omitempty"`
	Visibility   string `json:"visibility,omitempty"`
	CollectionID string `json:"collection_id,omitempty"`
}

// Event is a single item received from a session stream.
type Event struct {
	SessionID string          `json:"session_id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Transient bool            `json:"transient,omitempty"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// Well-known event kinds emitted by the server.
const (
	KindPreviewCandidate = "preview-candidate"
	KindSavedID          = "saved-id"
	KindToolCall         = "tool-call"
	KindToolResult       = "tool-result"
	KindTerminal         = "terminal"
)

// CollectionRecord is a persisted collection as returned by the lookup endpoint.
type CollectionRecord struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("nftscout api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("nftscout api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the NFTScout API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) *Client {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		panic(fmt.Sprintf("invalid base url: %v", err))
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}
}

// SetAccessToken stores a bearer token for subsequent calls.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// AccessToken returns the currently stored token string.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// StartSession opens a session stream and invokes handler for every event
// received, in arrival order. It returns once the stream ends or ctx is
// cancelled. The handler runs on the calling goroutine.
func (c *Client) StartSession(ctx context.Context, req SessionRequest, handler func(Event)) error {
	if handler == nil {
		return errors.New("nftscout: event handler is required")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/v1/collections/sessions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	// Streams outlive the default client timeout.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	return consumeStream(resp.Body, handler)
}

// SaveCollection persists a collection payload explicitly and returns its
// assigned identifier. Saving the same payload twice yields two identifiers.
func (c *Client) SaveCollection(ctx context.Context, collection map[string]any) (string, error) {
	body, err := json.Marshal(collection)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/collections", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// GetCollection fetches a persisted collection record by identifier.
func (c *Client) GetCollection(ctx context.Context, id string) (*CollectionRecord, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/collections/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var record CollectionRecord
	if err := c.do(req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read error response: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &struct {
			Error *APIError `json:"error"`
		}{Error: &apiErr}); err != nil {
			_ = json.Unmarshal(data, &apiErr)
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = string(bytes.TrimSpace(data))
	}
	return &apiErr
}

// consumeStream parses server-sent event frames and forwards decoded events.
// Unparseable frames are skipped so a single bad frame cannot end the stream.
func consumeStream(body io.Reader, handler func(Event)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			continue
		}
		handler(event)
	}
	return scanner.Err()
}

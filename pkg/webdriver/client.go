// Package webdriver implements remote.Source over the W3C WebDriver HTTP protocol.
package webdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/logger"
	"github.com/devicelab-dev/webfind/pkg/remote"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// DefaultRequestTimeout bounds a single round-trip when the context has no deadline.
const DefaultRequestTimeout = 30 * time.Second

// Client talks to one WebDriver session.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithSessionID attaches the client to an existing session.
func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// NewClient creates a client for the server at serverURL. Call Connect to
// start a session, or pass WithSessionID to reuse one.
func NewClient(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client:    &http.Client{Timeout: DefaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(ctx context.Context, capabilities map[string]interface{}) error {
	if capabilities == nil {
		capabilities = map[string]interface{}{}
	}
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
	}

	resp, err := c.post(ctx, "/session", body)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	var value struct {
		SessionID    string                 `json:"sessionId"`
		Capabilities map[string]interface{} `json:"capabilities"`
	}
	if err := json.Unmarshal(resp, &value); err != nil {
		return fmt.Errorf("invalid session response: %w", err)
	}
	if value.SessionID == "" {
		return fmt.Errorf("no session ID in response")
	}
	c.sessionID = value.SessionID

	browser, _ := value.Capabilities["browserName"].(string)
	logger.Info("webdriver session %s started (browser=%s)", c.sessionID, browser)
	return nil
}

// Disconnect closes the session.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.request(ctx, http.MethodDelete, c.sessionPath(), nil)
	logger.Info("webdriver session %s closed", c.sessionID)
	c.sessionID = ""
	return err
}

// SessionID returns the current session ID, empty when not connected.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Navigate loads a URL in the current browsing context.
func (c *Client) Navigate(ctx context.Context, target string) error {
	_, err := c.post(ctx, c.sessionPath()+"/url", map[string]interface{}{"url": target})
	return err
}

// SetImplicitWait sets the implicit wait timeout. The engine polls itself, so
// callers normally set this to zero.
func (c *Client) SetImplicitWait(ctx context.Context, timeout time.Duration) error {
	_, err := c.post(ctx, c.sessionPath()+"/timeouts", map[string]interface{}{
		"implicit": timeout.Milliseconds(),
	})
	return err
}

// Element Operations

// FindAll implements remote.Source.
func (c *Client) FindAll(ctx context.Context, scope remote.Handle, using, value string) ([]remote.Handle, error) {
	path := c.sessionPath() + "/elements"
	if scope != remote.Root {
		path = c.elementPath(scope) + "/elements"
	}

	resp, err := c.post(ctx, path, map[string]interface{}{
		"using": using,
		"value": value,
	})
	if err != nil {
		return nil, err
	}

	var values []map[string]interface{}
	if err := json.Unmarshal(resp, &values); err != nil {
		return nil, remote.TransportError(fmt.Errorf("invalid find response: %w", err))
	}

	// A value without an element id stays in place as an empty handle, so
	// indexes keep matching the remote order and the resolver rejects it.
	handles := make([]remote.Handle, 0, len(values))
	for _, v := range values {
		handles = append(handles, remote.Handle(extractElementID(v)))
	}
	return handles, nil
}

// TagName implements remote.Source.
func (c *Client) TagName(ctx context.Context, h remote.Handle) (string, error) {
	var name string
	err := c.getValue(ctx, c.elementPath(h)+"/name", &name)
	return name, err
}

// Click implements remote.Source.
func (c *Client) Click(ctx context.Context, h remote.Handle) error {
	_, err := c.post(ctx, c.elementPath(h)+"/click", map[string]interface{}{})
	return err
}

// Clear implements remote.Source.
func (c *Client) Clear(ctx context.Context, h remote.Handle) error {
	_, err := c.post(ctx, c.elementPath(h)+"/clear", map[string]interface{}{})
	return err
}

// SendKeys implements remote.Source.
func (c *Client) SendKeys(ctx context.Context, h remote.Handle, text string) error {
	_, err := c.post(ctx, c.elementPath(h)+"/value", map[string]interface{}{"text": text})
	return err
}

// Attribute implements remote.Source. A missing attribute reads as "".
func (c *Client) Attribute(ctx context.Context, h remote.Handle, name string) (string, error) {
	var value *string
	if err := c.getValue(ctx, c.elementPath(h)+"/attribute/"+url.PathEscape(name), &value); err != nil {
		return "", err
	}
	if value == nil {
		return "", nil
	}
	return *value, nil
}

// Text implements remote.Source.
func (c *Client) Text(ctx context.Context, h remote.Handle) (string, error) {
	var text string
	err := c.getValue(ctx, c.elementPath(h)+"/text", &text)
	return text, err
}

// Rect implements remote.Source.
func (c *Client) Rect(ctx context.Context, h remote.Handle) (core.Bounds, error) {
	var rect core.Bounds
	if err := c.getValue(ctx, c.elementPath(h)+"/rect", &rect); err != nil {
		return core.Bounds{}, err
	}
	return rect, nil
}

// Displayed implements remote.Source.
func (c *Client) Displayed(ctx context.Context, h remote.Handle) (bool, error) {
	var shown bool
	err := c.getValue(ctx, c.elementPath(h)+"/displayed", &shown)
	return shown, err
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(h remote.Handle) string {
	return c.sessionPath() + "/element/" + url.PathEscape(string(h))
}

func (c *Client) getValue(ctx context.Context, path string, out interface{}) error {
	resp, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return remote.TransportError(fmt.Errorf("invalid response from %s: %w", path, err))
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return c.request(ctx, http.MethodPost, path, body)
}

// request performs one round-trip and returns the "value" member of the
// response. W3C errors come back as *remote.Error with their code; anything
// that prevented a well-formed answer is a transport error.
func (c *Client) request(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, remote.TransportError(err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, bodyReader)
	if err != nil {
		return nil, remote.TransportError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, remote.TransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, remote.TransportError(err)
	}

	var envelope struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, remote.TransportError(fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var w3cErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Value, &w3cErr); err != nil || w3cErr.Error == "" {
			return nil, remote.TransportError(fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode))
		}
		return nil, remote.NewError(w3cErr.Error, w3cErr.Message)
	}
	return envelope.Value, nil
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}

var _ remote.Source = (*Client)(nil)

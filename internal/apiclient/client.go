// Package apiclient is the client side of the banking REST API. Every call
// answers with a models.Response; transport and decoding failures are folded
// into an unsuccessful response carrying a user facing message.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eaglebank/webclient/shared/models"
)

// Messages returned without a server round trip.
const (
	MsgTokenNotFound = "Authentication token not found"
	MsgUnauthorized  = "Unauthorized. Please log in again."
	MsgNetworkError  = "Network error or no response from server"
)

const maxBodyBytes = 1 << 20

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     *zap.SugaredLogger

	mu             sync.RWMutex
	onUnauthorized func(ctx context.Context)
}

func New(baseURL string, timeout time.Duration, tokens TokenSource, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		log:     log,
	}
}

// OnUnauthorized sets the hook run when an authenticated call gets a 401.
func (c *Client) OnUnauthorized(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

type request struct {
	method   string
	path     string
	query    url.Values
	body     any
	auth     bool
	fallback string
}

func call[T any](ctx context.Context, c *Client, r request) models.Response[T] {
	var token string
	if r.auth {
		tok, ok := c.tokens.Token(ctx)
		if !ok {
			return models.Fail[T](MsgTokenNotFound)
		}
		token = tok
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			c.log.Errorw("failed to encode request", "path", r.path, "error", err)
			return models.Fail[T](r.fallback)
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		c.log.Errorw("failed to build request", "path", r.path, "error", err)
		return models.Fail[T](r.fallback)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warnw("request failed", "method", r.method, "path", r.path, "error", err)
		return models.Fail[T](MsgNetworkError)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.log.Warnw("failed to read response", "path", r.path, "error", err)
		return models.Fail[T](MsgNetworkError)
	}

	if resp.StatusCode == http.StatusUnauthorized && r.auth {
		c.log.Infow("session rejected by server", "path", r.path)
		c.mu.RLock()
		hook := c.onUnauthorized
		c.mu.RUnlock()
		if hook != nil {
			hook(ctx)
		}
		return models.Fail[T](MsgUnauthorized)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := ErrorMessage(raw, r.fallback)
		c.log.Debugw("request rejected", "path", r.path, "status", resp.StatusCode, "message", msg)
		return models.Fail[T](msg)
	}

	var out models.Response[T]
	if err := json.Unmarshal(raw, &out); err != nil {
		c.log.Errorw("failed to decode response", "path", r.path, "error", err)
		return models.Fail[T](r.fallback)
	}
	return out
}

// ErrorMessage extracts the user facing message from an error body: a bare
// string, the message field, the descriptions of an errors array or the
// values of an errors object. fallback is used when none is present.
func ErrorMessage(body []byte, fallback string) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return fallback
	}

	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return string(trimmed)
	}

	switch v := decoded.(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		if msg, ok := v["message"].(string); ok && msg != "" {
			return msg
		}
		switch errs := v["errors"].(type) {
		case []any:
			parts := make([]string, 0, len(errs))
			for _, e := range errs {
				if m, ok := e.(map[string]any); ok {
					if d, ok := m["description"].(string); ok {
						parts = append(parts, d)
					}
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
		case map[string]any:
			keys := make([]string, 0, len(errs))
			for k := range errs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var parts []string
			for _, k := range keys {
				parts = appendFlat(parts, errs[k])
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
		}
	}
	return fallback
}

func appendFlat(parts []string, v any) []string {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			parts = appendFlat(parts, item)
		}
	case string:
		parts = append(parts, t)
	case nil:
	default:
		parts = append(parts, fmt.Sprint(t))
	}
	return parts
}

package api

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

	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 30 * time.Second
	apiBasePath    = "/api"
	userAgent      = "trackle-mcp"
)

// Client talks to the tracker REST API. It owns authentication, the success
// and error envelope conventions, and failure classification; every error it
// returns is a *Error.
type Client struct {
	baseURL  string
	authz    string
	http     *http.Client
	classify Classifier
	log      zerolog.Logger
}

// New builds a client for the tracker at baseURL. The Basic-Auth header is
// precomputed once here, not per request.
func New(baseURL, username, password string, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	normalized := normalizeBaseURL(baseURL)
	if normalized == "" {
		return nil, fmt.Errorf("missing base URL")
	}

	if _, err := url.ParseRequestURI(normalized); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))

	return &Client{
		baseURL:  normalized,
		authz:    "Basic " + credentials,
		classify: ClassifyFailure,
		log:      log,
		http: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// BaseURL returns the normalised tracker base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetClassifier replaces the transport-failure classifier.
func (c *Client) SetClassifier(fn Classifier) {
	if fn != nil {
		c.classify = fn
	}
}

func (c *Client) Get(ctx context.Context, path string, params map[string]string) (any, error) {
	return c.do(ctx, http.MethodGet, path, params, nil)
}

func (c *Client) Post(ctx context.Context, path string, body map[string]any) (any, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

func (c *Client) Put(ctx context.Context, path string, body map[string]any) (any, error) {
	return c.do(ctx, http.MethodPut, path, nil, body)
}

// Delete issues a DELETE. The tracker accepts an optional JSON body carrying
// the acting identity even though DELETE conventionally has none.
func (c *Client) Delete(ctx context.Context, path string, body map[string]any) (any, error) {
	return c.do(ctx, http.MethodDelete, path, nil, body)
}

// GetInto performs Get and decodes the unwrapped result into out.
func (c *Client) GetInto(ctx context.Context, path string, params map[string]string, out any) error {
	result, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return &Error{
			Code:    CodeParseError,
			Message: fmt.Sprintf("re-encode response to GET %s: %v", path, err),
			Status:  0,
		}
	}
	if err := json.Unmarshal(encoded, out); err != nil {
		return &Error{
			Code:    CodeParseError,
			Message: fmt.Sprintf("unexpected shape in response to GET %s: %v", path, err),
			Status:  0,
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, params map[string]string, payload map[string]any) (any, error) {
	fullURL := c.baseURL + apiBasePath + path
	if len(params) > 0 {
		query := url.Values{}
		for key, value := range params {
			if value == "" {
				continue
			}
			query.Set(key, value)
		}
		if encoded := query.Encode(); encoded != "" {
			fullURL += "?" + encoded
		}
	}

	var body io.Reader
	hasBody := payload != nil
	if hasBody {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, &Error{
				Code:    CodeUnknownError,
				Message: fmt.Sprintf("encode request body for %s %s: %v", method, path, err),
				Status:  0,
			}
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, &Error{
			Code:    CodeUnknownError,
			Message: fmt.Sprintf("build request %s %s: %v", method, path, err),
			Status:  0,
		}
	}

	req.Header.Set("Authorization", c.authz)
	req.Header.Set("User-Agent", userAgent)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		classified := c.connectionError(err)
		c.log.Warn().Str("method", method).Str("path", path).Err(err).Msg("transport failure")
		return nil, classified
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("tracker request")

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var parsed any
	parseErr := readJSON(resp.Body, &parsed)

	// 401/403 are classified before the parse check: an HTML login page on a
	// 401 must surface as an auth failure, not a parse failure.
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, &Error{
			Code:    CodeAuthFailed,
			Message: fmt.Sprintf("authentication failed for %s: check the configured username and password", c.baseURL),
			Status:  http.StatusUnauthorized,
		}
	case http.StatusForbidden:
		return nil, &Error{
			Code:    CodeAuthForbidden,
			Message: fmt.Sprintf("access to %s was denied: the configured account lacks permission for this operation", c.baseURL),
			Status:  http.StatusForbidden,
		}
	}

	if parseErr != nil {
		return nil, &Error{
			Code:    CodeParseError,
			Message: fmt.Sprintf("invalid JSON in response to %s %s: %v", method, path, parseErr),
			Status:  resp.StatusCode,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, applicationError(parsed, resp.StatusCode, method, path)
	}

	return unwrap(parsed), nil
}

func readJSON(r io.Reader, out *any) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("empty body")
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	return decoder.Decode(out)
}

// applicationError extracts the tracker's {error:{code,message,status}}
// envelope, falling back field by field when it is absent or incomplete.
func applicationError(parsed any, httpStatus int, method, path string) *Error {
	code := CodeUnknownError
	message := fmt.Sprintf("HTTP %d from %s %s", httpStatus, method, path)
	status := httpStatus

	if envelope, ok := parsed.(map[string]any); ok {
		if appErr, ok := envelope["error"].(map[string]any); ok {
			if v := stringField(appErr, "code"); v != "" {
				code = v
			}
			if v := stringField(appErr, "message"); v != "" {
				message = v
			}
			if v := intField(appErr, "status"); v != 0 {
				status = v
			}
		}
	}

	return &Error{Code: code, Message: message, Status: status}
}

// unwrap applies the success-envelope conventions: paginated envelopes (any
// body with a total field) are returned verbatim because callers need the
// paging metadata, plain {data: ...} envelopes collapse to their data field,
// and anything else passes through untouched.
func unwrap(parsed any) any {
	envelope, ok := parsed.(map[string]any)
	if !ok {
		return parsed
	}
	if _, ok := envelope["total"]; ok {
		return parsed
	}
	if data, ok := envelope["data"]; ok {
		return data
	}
	return parsed
}

func stringField(m map[string]any, key string) string {
	value, ok := m[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case json.Number:
		if parsed, err := v.Int64(); err == nil {
			return int(parsed)
		}
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return ""
	}

	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return strings.TrimRight(baseURL, "/")
}

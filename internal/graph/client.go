package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/armavita/meta-ads-mcp/internal/logger"
)

const (
	// DefaultTimeout bounds every Graph HTTP request.
	DefaultTimeout = 30 * time.Second

	userAgent = "meta-ads-mcp/1.0"
)

// Client issues requests against the Meta Graph API. Calls are sequential
// and stateless apart from the usage tracker; there is no retry logic.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	usage       *UsageTracker
	onAuthError func()
}

// NewClient creates a Graph client for the given versioned base URL.
// onAuthError, if non-nil, is invoked when a response carries an auth error
// code so the owner can invalidate its cached token. It may be nil.
func NewClient(baseURL string, onAuthError func()) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		usage:       NewUsageTracker(),
		onAuthError: onAuthError,
	}
}

// Get issues a GET request to the given Graph path.
func (c *Client) Get(ctx context.Context, path, accessToken string, params Params) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, path, accessToken, params)
}

// Post issues a POST request with form-encoded parameters.
func (c *Client) Post(ctx context.Context, path, accessToken string, params Params) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, path, accessToken, params)
}

// Delete issues a DELETE request to the given Graph path.
func (c *Client) Delete(ctx context.Context, path, accessToken string, params Params) (map[string]any, error) {
	return c.do(ctx, http.MethodDelete, path, accessToken, params)
}

func (c *Client) do(ctx context.Context, method, path, accessToken string, params Params) (map[string]any, error) {
	if accessToken == "" {
		return nil, ErrNoToken
	}

	if err := c.usage.Wait(ctx); err != nil {
		return nil, err
	}

	values, err := params.Encode(accessToken)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	requestID := uuid.NewString()
	logger.WithFields(map[string]any{
		"request_id": requestID,
		"method":     method,
		"endpoint":   path,
		"params":     params.Redacted(),
	}).Debugf("graph request")

	var req *http.Request
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+values.Encode(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport errors can embed the full request URL; scrub it.
		return nil, fmt.Errorf("graph request failed: %s", SanitizeURL(err.Error()))
	}
	defer resp.Body.Close()

	c.usage.Observe(resp.Header, path)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := c.decodeError(resp.StatusCode, body)
		logger.WithFields(map[string]any{
			"request_id": requestID,
			"status":     resp.StatusCode,
			"code":       apiErr.Code,
		}).Warnf("graph error: %s", apiErr.Message)

		if authErrorCodes[apiErr.Code] && c.onAuthError != nil {
			c.onAuthError()
		}
		return nil, apiErr
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return map[string]any{
			"text_response": string(body),
			"status_code":   resp.StatusCode,
		}, nil
	}

	payload, ok := sanitizePayload(decoded).(map[string]any)
	if !ok {
		return map[string]any{"data": sanitizePayload(decoded)}, nil
	}
	return payload, nil
}

// decodeError turns a non-2xx body into a typed Error. Meta wraps errors as
// {"error": {"message", "type", "code", "error_subcode", ...}}; anything
// that does not parse keeps the raw text as the message.
func (c *Client) decodeError(status int, body []byte) *Error {
	var envelope struct {
		Error struct {
			Message      string `json:"message"`
			Type         string `json:"type"`
			Code         int    `json:"code"`
			ErrorSubcode int    `json:"error_subcode"`
			UserTitle    string `json:"error_user_title"`
			FBTraceID    string `json:"fbtrace_id"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Message == "" && envelope.Error.Code == 0 {
		return &Error{
			HTTPStatus: status,
			Message:    SanitizeURL(strings.TrimSpace(string(body))),
		}
	}
	return &Error{
		HTTPStatus: status,
		Code:       envelope.Error.Code,
		Subcode:    envelope.Error.ErrorSubcode,
		Type:       envelope.Error.Type,
		Message:    envelope.Error.Message,
		UserTitle:  envelope.Error.UserTitle,
		FBTraceID:  envelope.Error.FBTraceID,
	}
}

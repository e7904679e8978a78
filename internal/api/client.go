// Package api is the HTTP client for the assistant backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/user/connector/internal/types"
)

// ErrMalformedResponse is wrapped by errors for bodies that cannot be used.
var ErrMalformedResponse = errors.New("malformed response")

// StatusError reports a non-success HTTP status from the backend.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: API error (status %d): %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client implements types.Backend over HTTP. It sets no timeout of its own;
// the transport's behavior applies.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ types.Backend = (*Client)(nil)

// New creates a client for the API rooted at baseURL. A nil httpClient uses
// a zero-value http.Client.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// submitRequest is the POST /onboarding/submit body.
type submitRequest struct {
	UserID  types.Identity    `json:"user_id"`
	Answers map[string]string `json:"answers"`
}

// chatRequest is the POST /chat body.
type chatRequest struct {
	UserID  types.Identity `json:"user_id"`
	Message string         `json:"message"`
}

// replyBody distinguishes a missing response_text from an empty one.
type replyBody struct {
	ResponseText *string       `json:"response_text"`
	Events       []types.Event `json:"events"`
}

// StartOnboarding fetches the onboarding status and questions for id.
func (c *Client) StartOnboarding(ctx context.Context, id types.Identity) (*types.OnboardingStatus, error) {
	endpoint := "/onboarding/start/" + url.PathEscape(string(id))
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var status types.OnboardingStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("parsing onboarding status: %w: %v", ErrMalformedResponse, err)
	}
	if status.Status != types.OnboardingPending && status.Status != types.OnboardingComplete {
		return nil, fmt.Errorf("parsing onboarding status: %w: unknown status %q", ErrMalformedResponse, status.Status)
	}
	return &status, nil
}

// SubmitOnboarding posts the full answer set and returns the welcome reply.
func (c *Client) SubmitOnboarding(ctx context.Context, id types.Identity, answers map[string]string) (*types.ChatReply, error) {
	return c.reply(ctx, "/onboarding/submit", submitRequest{UserID: id, Answers: answers})
}

// Chat sends one user message and returns the agent's reply.
func (c *Client) Chat(ctx context.Context, id types.Identity, message string) (*types.ChatReply, error) {
	return c.reply(ctx, "/chat", chatRequest{UserID: id, Message: message})
}

func (c *Client) reply(ctx context.Context, endpoint string, payload any) (*types.ChatReply, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, endpoint, reqBody)
	if err != nil {
		return nil, err
	}

	var rb replyBody
	if err := json.Unmarshal(body, &rb); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w: %v", endpoint, ErrMalformedResponse, err)
	}
	if rb.ResponseText == nil {
		return nil, fmt.Errorf("parsing %s response: %w: missing response_text", endpoint, ErrMalformedResponse)
	}
	return &types.ChatReply{ResponseText: *rb.ResponseText, Events: rb.Events}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

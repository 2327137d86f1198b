package client

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
	"time"

	"github.com/cuemby/streakline/pkg/completion"
	"github.com/cuemby/streakline/pkg/enrollment"
	"github.com/cuemby/streakline/pkg/progress"
	"github.com/cuemby/streakline/pkg/types"
)

// DefaultTimeout bounds every request. An enrollment polls the store for up to
// a few seconds, so this stays well above the poll budget.
const DefaultTimeout = 30 * time.Second

// ErrNotFound is returned for 404 responses
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response
type APIError struct {
	StatusCode int
	Message    string
	Kind       string // enrollment failure kind, if any
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Is lets callers match 404s with errors.Is(err, ErrNotFound)
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to a streakline API server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the server at addr ("host:port" or a URL)
func NewClient(addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("server address is required")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %w", err)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Enroll runs an enrollment. A failed enrollment returns the result together
// with an *APIError; a partial one is not an error, see Result.Partial.
func (c *Client) Enroll(ctx context.Context, challengeID, userID string, choices enrollment.Choices) (*enrollment.Result, error) {
	body := struct {
		UserID string `json:"user_id"`
		enrollment.Choices
	}{UserID: userID, Choices: choices}

	var result enrollment.Result
	err := c.do(ctx, http.MethodPost, "/v1/challenges/"+url.PathEscape(challengeID)+"/enrollments", body, &result)
	return resultOrNil(&result, err)
}

// RetryActions creates calendar actions still missing for a participant
func (c *Client) RetryActions(ctx context.Context, challengeID, userID string, activityIDs []string) (*enrollment.Result, error) {
	body := map[string]interface{}{"user_id": userID}
	if len(activityIDs) > 0 {
		body["activity_ids"] = activityIDs
	}

	var result enrollment.Result
	err := c.do(ctx, http.MethodPost, "/v1/challenges/"+url.PathEscape(challengeID)+"/enrollments/actions:retry", body, &result)
	return resultOrNil(&result, err)
}

// GetParticipant returns a user's participant record in a challenge
func (c *Client) GetParticipant(ctx context.Context, challengeID, userID string) (*types.Participant, error) {
	var p types.Participant
	path := "/v1/challenges/" + url.PathEscape(challengeID) + "/participants/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Complete records activityID as done on day; a zero day means today on the
// server's clock
func (c *Client) Complete(ctx context.Context, participantID, activityID string, day types.Day) (completion.Outcome, types.Day, error) {
	body := map[string]interface{}{"activity_id": activityID}
	if !day.IsZero() {
		body["day"] = day
	}

	var resp struct {
		Day     types.Day          `json:"day"`
		Outcome completion.Outcome `json:"outcome"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/participants/"+url.PathEscape(participantID)+"/completions", body, &resp); err != nil {
		return "", types.Day{}, err
	}
	return resp.Outcome, resp.Day, nil
}

// Standing returns a user's standing in a challenge
func (c *Client) Standing(ctx context.Context, challengeID, userID string) (*progress.Standing, error) {
	var standing progress.Standing
	path := "/v1/challenges/" + url.PathEscape(challengeID) + "/standings?user=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &standing); err != nil {
		return nil, err
	}
	return &standing, nil
}

// Leaderboard returns the challenge leaderboard in rank order
func (c *Client) Leaderboard(ctx context.Context, challengeID string) ([]*types.ParticipantSummary, error) {
	var resp struct {
		Participants []*types.ParticipantSummary `json:"participants"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/challenges/"+url.PathEscape(challengeID)+"/leaderboard", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Participants, nil
}

// do sends a JSON request. out is also decoded for failure statuses whose body
// is an enrollment result rather than an error envelope.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
		apiErr.Message = envelope.Error
		apiErr.Kind = envelope.Kind
		return apiErr
	}

	// Not an error envelope: an enrollment result carried on a failure status
	if out != nil && json.Unmarshal(data, out) == nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(data))
	return apiErr
}

// resultOrNil keeps the result when the server sent one along with an error
func resultOrNil(result *enrollment.Result, err error) (*enrollment.Result, error) {
	if err == nil {
		return result, nil
	}
	if result.State == "" {
		return nil, err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && result.Reason != "" {
		apiErr.Message = result.Reason
	}
	return result, err
}

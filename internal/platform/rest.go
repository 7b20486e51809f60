package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RESTClient talks to the platform's HTTP API. It performs no retries of its
// own; the progression engine's synchronizer decides when to try again.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the platform.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform api: status %d: %s", e.Status, e.Body)
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *RESTClient) CreateOverride(ctx context.Context, channel ChannelID, o Override) error {
	body := map[string]any{
		"user_id": o.User,
		"allow":   o.Allow,
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/channels/%s/overrides/%s", channel, o.User), body, nil)
}

func (c *RESTClient) DeleteOverride(ctx context.Context, channel ChannelID, user UserID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/channels/%s/overrides/%s", channel, user), nil, nil)
}

func (c *RESTClient) AddRole(ctx context.Context, user UserID, role RoleID) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/members/%s/roles/%s", user, role), nil, nil)
}

func (c *RESTClient) RemoveRole(ctx context.Context, user UserID, role RoleID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/members/%s/roles/%s", user, role), nil, nil)
}

func (c *RESTClient) SetRoles(ctx context.Context, user UserID, roles []RoleID) error {
	body := map[string]any{"roles": roles}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/members/%s", user), body, nil)
}

func (c *RESTClient) MemberRoles(ctx context.Context, user UserID) ([]RoleID, error) {
	var out struct {
		Roles []RoleID `json:"roles"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/members/%s", user), nil, &out); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

func (c *RESTClient) SendMessage(ctx context.Context, channel ChannelID, content string) error {
	body := map[string]any{"content": content}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", channel), body, nil)
}

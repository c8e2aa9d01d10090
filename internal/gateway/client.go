package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mtessier/reactsync/internal/chat"
)

// Client is the REST half of the platform integration. It implements
// chat.MembershipStore, chat.ReactionSource, chat.Marker, and
// chat.MessageResolver against the platform HTTP API.
//
// Failures are classified by status: 403 is Forbidden (the engine's
// account outranked), 429 and 5xx and transport errors are Transient
// (worth retrying). Anything else surfaces as a plain error.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient creates a client for the API at base, authenticating with
// the bearer token.
func NewClient(base, token string) *Client {
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// GetRoles implements chat.MembershipStore.
func (c *Client) GetRoles(ctx context.Context, key chat.MemberKey) (chat.RoleSet, error) {
	var body struct {
		Roles []string `json:"roles"`
	}
	path := fmt.Sprintf("/servers/%s/members/%s", key.Server, key.Member)
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, fmt.Errorf("get roles for %s: %w", key, err)
	}

	roles := chat.NewRoleSet()
	for _, r := range body.Roles {
		roles.Add(chat.RoleID(r))
	}
	return roles, nil
}

// ReplaceRoles implements chat.MembershipStore. The full role set is
// written in one request; partial grant/revoke endpoints are not used.
func (c *Client) ReplaceRoles(ctx context.Context, key chat.MemberKey, roles chat.RoleSet) error {
	sorted := roles.Sorted()
	payload := struct {
		Roles []string `json:"roles"`
	}{Roles: make([]string, 0, len(sorted))}
	for _, r := range sorted {
		payload.Roles = append(payload.Roles, string(r))
	}

	path := fmt.Sprintf("/servers/%s/members/%s/roles", key.Server, key.Member)
	if err := c.do(ctx, http.MethodPut, path, payload, nil); err != nil {
		return fmt.Errorf("replace roles for %s: %w", key, err)
	}
	return nil
}

// ListReactions implements chat.ReactionSource.
func (c *Client) ListReactions(ctx context.Context, ref chat.MessageRef) ([]chat.Reaction, error) {
	var body []struct {
		Emoji string `json:"emoji"`
		Count int    `json:"count"`
	}
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions", ref.Channel, ref.Message)
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, fmt.Errorf("list reactions on %s: %w", ref, err)
	}

	out := make([]chat.Reaction, 0, len(body))
	for _, r := range body {
		out = append(out, chat.Reaction{Symbol: chat.ParseSymbol(r.Emoji), Count: r.Count})
	}
	return out, nil
}

// ListReactors implements chat.ReactionSource, paging with the
// platform's after-cursor.
func (c *Client) ListReactors(ctx context.Context, ref chat.MessageRef, symbol chat.Symbol, after chat.MemberID, limit int) ([]chat.MemberID, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if after != "" {
		q.Set("after", string(after))
	}

	var body []struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s?%s",
		ref.Channel, ref.Message, url.PathEscape(string(symbol)), q.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, fmt.Errorf("list reactors on %s: %w", ref, err)
	}

	out := make([]chat.MemberID, 0, len(body))
	for _, m := range body {
		out = append(out, chat.MemberID(m.ID))
	}
	return out, nil
}

// RemoveReaction implements chat.ReactionSource.
func (c *Client) RemoveReaction(ctx context.Context, ref chat.MessageRef, symbol chat.Symbol, member chat.MemberID) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/%s",
		ref.Channel, ref.Message, url.PathEscape(string(symbol)), member)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("remove reaction on %s: %w", ref, err)
	}
	return nil
}

// AddReaction implements chat.Marker: places the engine's own reaction
// on the message.
func (c *Client) AddReaction(ctx context.Context, ref chat.MessageRef, symbol chat.Symbol) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/@me",
		ref.Channel, ref.Message, url.PathEscape(string(symbol)))
	if err := c.do(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("add reaction on %s: %w", ref, err)
	}
	return nil
}

// ResolveMessage implements chat.MessageResolver.
func (c *Client) ResolveMessage(ctx context.Context, ref chat.MessageRef) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", ref.Channel, ref.Message)
	if err := c.do(ctx, http.MethodGet, path, nil, nil); err != nil {
		return fmt.Errorf("resolve message %s: %w", ref, err)
	}
	return nil
}

// do issues one request and decodes the response into out (when
// non-nil). Non-2xx statuses become classified store errors.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return chat.NewTransient(fmt.Sprintf("%s %s: %v", method, path, err))
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// classifyStatus maps an HTTP status to a store error kind.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusForbidden:
		return chat.NewForbiddenStatus("permission denied", status)
	case status == http.StatusTooManyRequests || status >= 500:
		return chat.NewTransientStatus("platform unavailable", status)
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}

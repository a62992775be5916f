// Package remote implements the engine's Repository over the mealboard
// HTTP API with bearer-token authentication.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ovenlight/mealboard/internal/apperror"
	"github.com/ovenlight/mealboard/internal/dateutil"
	"github.com/ovenlight/mealboard/internal/engine"
	"github.com/ovenlight/mealboard/internal/plugins/auth"
	"github.com/ovenlight/mealboard/internal/plugins/calendars"
	"github.com/ovenlight/mealboard/internal/plugins/meals"
)

// Client talks to a mealboard server. It implements engine.Repository.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ engine.Repository = (*Client)(nil)

// New creates a client for the given server. token is the bearer token
// from a prior login; pass the empty string for unauthenticated calls.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Login authenticates and returns the bearer token for future clients.
func Login(ctx context.Context, baseURL, email, password string) (string, error) {
	c := New(baseURL, "")
	var resp struct {
		Token string    `json:"token"`
		User  auth.User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", auth.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// errorBody is the server's JSON error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// listBody is the server's JSON collection envelope.
type listBody[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// do performs one JSON request. Non-2xx responses are reconstructed into
// the same apperror values the server raised, so engine code can treat
// local and remote rejections uniformly.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		if decodeErr := json.NewDecoder(resp.Body).Decode(&eb); decodeErr != nil || eb.Message == "" {
			eb.Message = http.StatusText(resp.StatusCode)
		}
		return apperror.FromStatus(resp.StatusCode, eb.Message)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.NewInternal(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// --- Entries ---

func (c *Client) ListEntries(ctx context.Context, calendarIDs []string, start, end dateutil.DayKey) ([]meals.Entry, error) {
	q := url.Values{}
	q.Set("calendars", strings.Join(calendarIDs, ","))
	q.Set("from", string(start))
	q.Set("to", string(end))

	var resp listBody[meals.Entry]
	if err := c.do(ctx, http.MethodGet, "/api/v1/entries?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) CreateEntry(ctx context.Context, req meals.CreateEntryRequest) (*meals.Entry, error) {
	var entry meals.Entry
	if err := c.do(ctx, http.MethodPost, "/api/v1/entries", req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) MoveEntry(ctx context.Context, entryID string, req meals.MoveEntryRequest) (*meals.Entry, error) {
	var entry meals.Entry
	if err := c.do(ctx, http.MethodPatch, "/api/v1/entries/"+url.PathEscape(entryID)+"/move", req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) UpdateServings(ctx context.Context, entryID string, servings int) (*meals.Entry, error) {
	var entry meals.Entry
	body := meals.UpdateServingsRequest{Servings: servings}
	if err := c.do(ctx, http.MethodPatch, "/api/v1/entries/"+url.PathEscape(entryID)+"/servings", body, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) DeleteEntry(ctx context.Context, entryID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/entries/"+url.PathEscape(entryID), nil, nil)
}

func (c *Client) BulkCopy(ctx context.Context, req meals.BulkCopyRequest) (*meals.BatchResult, error) {
	var result meals.BatchResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/entries/bulk-copy", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreateRecurring(ctx context.Context, req meals.RecurringRequest) (*meals.BatchResult, error) {
	var result meals.BatchResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/entries/recurring", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// --- Calendars ---

func (c *Client) ListCalendars(ctx context.Context) ([]calendars.Calendar, error) {
	var resp listBody[calendars.Calendar]
	if err := c.do(ctx, http.MethodGet, "/api/v1/calendars", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) CreateCalendar(ctx context.Context, req calendars.CreateCalendarRequest) (*calendars.Calendar, error) {
	var cal calendars.Calendar
	if err := c.do(ctx, http.MethodPost, "/api/v1/calendars", req, &cal); err != nil {
		return nil, err
	}
	return &cal, nil
}

func (c *Client) RenameCalendar(ctx context.Context, calendarID string, req calendars.RenameCalendarRequest) (*calendars.Calendar, error) {
	var cal calendars.Calendar
	if err := c.do(ctx, http.MethodPut, "/api/v1/calendars/"+url.PathEscape(calendarID), req, &cal); err != nil {
		return nil, err
	}
	return &cal, nil
}

func (c *Client) DeleteCalendar(ctx context.Context, calendarID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/calendars/"+url.PathEscape(calendarID), nil, nil)
}

// --- Shares ---

func (c *Client) ListShares(ctx context.Context, calendarID string) ([]calendars.ShareGrant, error) {
	var resp listBody[calendars.ShareGrant]
	if err := c.do(ctx, http.MethodGet, "/api/v1/calendars/"+url.PathEscape(calendarID)+"/shares", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) GrantShare(ctx context.Context, calendarID string, req calendars.ShareRequest) error {
	return c.do(ctx, http.MethodPost, "/api/v1/calendars/"+url.PathEscape(calendarID)+"/shares", req, nil)
}

func (c *Client) UpdateShare(ctx context.Context, calendarID string, req calendars.ShareRequest) error {
	path := "/api/v1/calendars/" + url.PathEscape(calendarID) + "/shares/" + url.PathEscape(req.UserID)
	return c.do(ctx, http.MethodPut, path, req, nil)
}

func (c *Client) RevokeShare(ctx context.Context, calendarID, userID string) error {
	path := "/api/v1/calendars/" + url.PathEscape(calendarID) + "/shares/" + url.PathEscape(userID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) LeaveCalendar(ctx context.Context, calendarID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/calendars/"+url.PathEscape(calendarID)+"/leave", nil, nil)
}

// --- Users and settings ---

func (c *Client) SearchUsers(ctx context.Context, query string, limit int) ([]auth.UserSummary, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	var resp listBody[auth.UserSummary]
	if err := c.do(ctx, http.MethodGet, "/api/v1/users?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) GetSettings(ctx context.Context) (*auth.Settings, error) {
	var settings auth.Settings
	if err := c.do(ctx, http.MethodGet, "/api/v1/settings", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

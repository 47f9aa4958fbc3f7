package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maaaruch/tg-awards-bot/internal/domain"
	"github.com/maaaruch/tg-awards-bot/internal/metrics"
)

const (
	AdminKeyHeader  = "X-Admin-Key"
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 4 << 20
)

// Client talks to the awards REST API. Paths are relative to the base URL.
type Client struct {
	baseURL  string
	adminKey string
	http     *http.Client
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithAdminKey(key string) Option {
	return func(c *Client) { c.adminKey = key }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// HasAdminKey reports whether admin endpoints can be called at all.
func (c *Client) HasAdminKey() bool { return c.adminKey != "" }

// ---------- Public ----------

type SignInRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type SignInResponse struct {
	VoterID domain.VoterID `json:"voterId"`
	Message string         `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (c *Client) SignIn(ctx context.Context, req SignInRequest) (SignInResponse, error) {
	var out SignInResponse
	err := c.do(ctx, http.MethodPost, "/api/public/signin", "public.signin", false, req, &out)
	return out, err
}

func (c *Client) CategoriesWithNominees(ctx context.Context) ([]domain.CategoryWithNominees, error) {
	var out []domain.CategoryWithNominees
	err := c.do(ctx, http.MethodGet, "/api/public/categories-nominees", "public.categories_nominees", false, nil, &out)
	return out, err
}

func (c *Client) VoterVotes(ctx context.Context, voterID domain.VoterID) ([]domain.RecordedVote, error) {
	path := "/api/public/voter-votes/" + url.PathEscape(voterID.String())
	var out []domain.RecordedVote
	err := c.do(ctx, http.MethodGet, path, "public.voter_votes", false, nil, &out)
	return out, err
}

// SubmitVote returns the server's confirmation message. A duplicate vote comes
// back as an *APIError for which IsAlreadyVoted is true.
func (c *Client) SubmitVote(ctx context.Context, v domain.Vote) (string, error) {
	var out messageResponse
	err := c.do(ctx, http.MethodPost, "/api/public/vote", "public.vote", false, v, &out)
	return out.Message, err
}

// ---------- Admin ----------

// CategoryPatch carries the fields to change; nil fields are left alone.
type CategoryPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// NomineeInput creates a nominee. CategoryID is only sent by the direct
// (one nominee per category) linking mode.
type NomineeInput struct {
	Name       string `json:"name"`
	CategoryID int64  `json:"category_id,omitempty"`
}

type nameInput struct {
	Name string `json:"name"`
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := c.do(ctx, http.MethodGet, "/api/admin/categories", "admin.categories.list", true, nil, &out)
	return out, err
}

func (c *Client) CreateCategory(ctx context.Context, name string) (domain.Category, error) {
	var out domain.Category
	err := c.do(ctx, http.MethodPost, "/api/admin/categories", "admin.categories.create", true, nameInput{Name: name}, &out)
	return out, err
}

func (c *Client) UpdateCategory(ctx context.Context, id int64, patch CategoryPatch) error {
	return c.do(ctx, http.MethodPatch, categoryPath(id), "admin.categories.update", true, patch, nil)
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, categoryPath(id), "admin.categories.delete", true, nil, nil)
}

func (c *Client) ListNominees(ctx context.Context) ([]domain.Nominee, error) {
	var out []domain.Nominee
	err := c.do(ctx, http.MethodGet, "/api/admin/nominees", "admin.nominees.list", true, nil, &out)
	return out, err
}

func (c *Client) CreateNominee(ctx context.Context, in NomineeInput) (domain.Nominee, error) {
	var out domain.Nominee
	err := c.do(ctx, http.MethodPost, "/api/admin/nominees", "admin.nominees.create", true, in, &out)
	return out, err
}

func (c *Client) RenameNominee(ctx context.Context, id int64, name string) error {
	return c.do(ctx, http.MethodPatch, nomineePath(id), "admin.nominees.update", true, nameInput{Name: name}, nil)
}

// DeleteNominee removes the nominee; the server cascades its nominations and
// votes.
func (c *Client) DeleteNominee(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, nomineePath(id), "admin.nominees.delete", true, nil, nil)
}

func (c *Client) ListNominations(ctx context.Context) ([]domain.Nomination, error) {
	var out []domain.Nomination
	err := c.do(ctx, http.MethodGet, "/api/admin/nominations", "admin.nominations.list", true, nil, &out)
	return out, err
}

func (c *Client) CreateNomination(ctx context.Context, n domain.Nomination) error {
	return c.do(ctx, http.MethodPost, "/api/admin/nominations", "admin.nominations.create", true, n, nil)
}

func (c *Client) Winners(ctx context.Context) ([]domain.CategoryResult, error) {
	var out []domain.CategoryResult
	err := c.do(ctx, http.MethodGet, "/api/admin/winners", "admin.winners", true, nil, &out)
	return out, err
}

func categoryPath(id int64) string {
	return "/api/admin/categories/" + strconv.FormatInt(id, 10)
}

func nomineePath(id int64) string {
	return "/api/admin/nominees/" + strconv.FormatInt(id, 10)
}

// ---------- Transport ----------

func (c *Client) do(ctx context.Context, method, path, endpoint string, admin bool, in, out any) error {
	if admin && c.adminKey == "" {
		return ErrAdminKeyMissing
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", endpoint, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", endpoint, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	if admin {
		req.Header.Set(AdminKeyHeader, c.adminKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.APIRequests.WithLabelValues(endpoint, "error").Inc()
		c.logger.Warn("api request failed", "endpoint", endpoint, "request_id", requestID, "error", err)
		return fmt.Errorf("%s: %w: %w", endpoint, ErrNetwork, err)
	}
	defer resp.Body.Close()

	c.metrics.APIRequests.WithLabelValues(endpoint, statusClass(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w: %w", endpoint, ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		if len(bytes.TrimSpace(raw)) > 0 {
			_ = json.Unmarshal(raw, &eb)
		}
		apiErr := &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: eb.text(resp.StatusCode)}
		c.logger.Debug("api request rejected",
			"endpoint", endpoint,
			"request_id", requestID,
			"status", resp.StatusCode,
			"message", apiErr.Message,
		)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w: %w", endpoint, ErrNetwork, err)
	}
	return nil
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// Package modapi is the HTTP client for the comment moderation API.
package modapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/oblivion-comments/internal/comments/model"
)

const userAgent = "oblivion-comments/1.0"

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("modapi: %s: status %d body=%q", e.Op, e.Code, e.Body)
}

// IsStatus reports whether err is a StatusError carrying code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

type Client struct {
	// BaseURL is the comments collection endpoint.
	BaseURL    string
	BulkPath   string
	VotePath   string
	Token      string
	HTTPClient *http.Client
	// Breaker, when set, fails calls fast while the backend keeps erroring.
	Breaker *gobreaker.CircuitBreaker
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		BulkPath:   "/bulk",
		VotePath:   "/vote",
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

var _ Provider = (*Client)(nil)

func (c *Client) List(ctx context.Context, p ListParams) ([]model.Comment, error) {
	if strings.TrimSpace(p.DiscussionID) == "" {
		return nil, fmt.Errorf("modapi: list: discussion id required")
	}
	q := url.Values{}
	q.Set("discussion", p.DiscussionID)
	q.Set("per_page", strconv.Itoa(max(p.PerPage, 1)))
	q.Set("page", strconv.Itoa(max(p.Page, 1)))
	q.Set("order", "desc")
	q.Set("orderby", "date")
	if s := strings.TrimSpace(p.Status); s != "" {
		q.Set("status", s)
	}
	switch {
	case p.TopLevel:
		q.Set("parent", "0")
	case p.Parent != "":
		q.Set("parent", p.Parent.String())
	}

	var raw []RawComment
	if err := c.do(ctx, "list", http.MethodGet, c.BaseURL+"?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	return DecodeAll(raw), nil
}

func (c *Client) Create(ctx context.Context, req CreateRequest) (model.Comment, error) {
	var raw RawComment
	if err := c.do(ctx, "create", http.MethodPost, c.BaseURL, req, &raw); err != nil {
		return model.Comment{}, err
	}
	return Decode(raw), nil
}

func (c *Client) Moderate(ctx context.Context, id model.ID, action model.ModerationAction) error {
	if !action.Valid() {
		return fmt.Errorf("modapi: moderate: invalid action %d", int(action))
	}
	body := struct {
		Action string `json:"action"`
	}{action.String()}
	return c.do(ctx, "moderate", http.MethodPatch, c.BaseURL+"/"+url.PathEscape(id.String()), body, nil)
}

func (c *Client) Bulk(ctx context.Context, ids []model.ID, action model.BulkAction) error {
	if !action.Valid() {
		return fmt.Errorf("modapi: bulk: invalid action %d", int(action))
	}
	body := struct {
		CommentIDs []model.ID `json:"comment_ids"`
		Action     string     `json:"action"`
	}{ids, action.String()}
	return c.do(ctx, "bulk", http.MethodPost, c.BaseURL+c.BulkPath, body, nil)
}

func (c *Client) Vote(ctx context.Context, id model.ID, like bool) error {
	body := struct {
		ID   model.ID `json:"id"`
		Like bool     `json:"like"`
	}{id, like}
	return c.do(ctx, "vote", http.MethodPost, c.BaseURL+c.VotePath, body, nil)
}

// BreakerSettings tune NewBreaker.
type BreakerSettings struct {
	// Failures is the run of consecutive failed calls that opens the circuit.
	Failures uint32
	// Timeout is how long the circuit stays open before a probe is let through.
	Timeout time.Duration
}

// NewBreaker builds the circuit breaker for a Client. Client errors (4xx) and
// cancellations say nothing about backend health and do not count.
func NewBreaker(name string, cfg BreakerSettings, log *zap.Logger) *gobreaker.CircuitBreaker {
	if cfg.Failures == 0 {
		cfg.Failures = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Failures
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			switch {
			case err == nil:
				return true
			case errors.As(err, &se):
				return se.Code < 500
			default:
				return errors.Is(err, context.Canceled)
			}
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit-breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

// do sends one request through the breaker, if any.
func (c *Client) do(ctx context.Context, op, method, rawURL string, in, out any) error {
	if c.Breaker == nil {
		return c.send(ctx, op, method, rawURL, in, out)
	}
	_, err := c.Breaker.Execute(func() (interface{}, error) {
		return nil, c.send(ctx, op, method, rawURL, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("modapi: %s: %w", op, err)
	}
	return err
}

// send performs one request. A nil out discards the response body.
func (c *Client) send(ctx context.Context, op, method, rawURL string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("modapi: %s: encode: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("modapi: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := strings.TrimSpace(c.Token); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("modapi: %s: %w", op, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("modapi: %s: read: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Code: resp.StatusCode, Body: string(b[:min(len(b), 200)])}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("modapi: %s: decode error: %w body=%q", op, err, string(b[:min(len(b), 200)]))
	}
	return nil
}

// Package extract is the HTTP client for the /api/clean-pdf text extraction
// endpoint.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// EndpointPath is the fixed extraction route.
const EndpointPath = "/api/clean-pdf"

const defaultFailure = "Failed to extract text"

// maxResponseBytes caps the JSON body read from the server.
const maxResponseBytes = 64 << 20

// Error is a failure reported by the extraction endpoint itself.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract: status %d: %s", e.Status, e.Message)
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	MaxInFlight int
	// RateLimit paces uploads in requests per second so a batch stays under
	// the server's token bucket; <= 0 disables pacing.
	RateLimit  float64
	RateBurst  int
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client uploads documents for extraction. It is safe for concurrent use.
type Client struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[Response]
	logger   *zap.Logger
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	inFlight := opts.MaxInFlight
	if inFlight <= 0 {
		inFlight = 1
	}
	c := &Client{
		endpoint: strings.TrimRight(opts.BaseURL, "/") + EndpointPath,
		timeout:  opts.Timeout,
		http:     hc,
		sem:      semaphore.NewWeighted(int64(inFlight)),
		logger:   logger,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, opts.RateBurst))
	}
	c.breaker = gobreaker.NewCircuitBreaker[Response](gobreaker.Settings{
		Name:        "extract",
		MaxRequests: 1,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			// A document the server rejected says nothing about server health.
			var apiErr *Error
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// Extract uploads data as a multipart "file" field named name. A non-2xx
// status or an "error" field in the body is returned as *Error. No retries.
// The timeout covers the upload only, not the wait for a slot.
func (c *Client) Extract(ctx context.Context, name string, data []byte) (Response, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return Response{}, fmt.Errorf("extract: wait for upload slot: %w", err)
	}
	defer c.sem.Release(1)
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, fmt.Errorf("extract: wait for rate limit: %w", err)
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (Response, error) {
		return c.post(ctx, name, data)
	})
	if err != nil {
		c.logger.Info("extraction failed",
			zap.String("file", name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return Response{}, err
	}
	c.logger.Debug("extraction done",
		zap.String("file", name),
		zap.Int("chars", len(resp.Text)),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

func (c *Client) post(ctx context.Context, name string, data []byte) (Response, error) {
	body, contentType, err := multipartBody(name, data)
	if err != nil {
		return Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return Response{}, fmt.Errorf("extract: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("extract: post: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("extract: read response: %w", err)
	}

	var out Response
	decodeErr := json.Unmarshal(raw, &out)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg := strings.TrimSpace(out.Error)
		if decodeErr != nil || msg == "" {
			msg = defaultFailure
		}
		return Response{}, &Error{Status: res.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return Response{}, fmt.Errorf("extract: decode response: %w", decodeErr)
	}
	if msg := strings.TrimSpace(out.Error); msg != "" {
		return Response{}, &Error{Status: res.StatusCode, Message: msg}
	}
	return out, nil
}

func multipartBody(name string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("extract: create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("extract: write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("extract: close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// FailureMessage turns an Extract error into the text shown to the user.
func FailureMessage(err error) string {
	var apiErr *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "extraction service unavailable, try again shortly"
	case errors.Is(err, context.DeadlineExceeded):
		return "extraction timed out"
	default:
		return err.Error()
	}
}

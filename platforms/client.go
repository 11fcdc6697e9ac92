// Package platforms talks to the backend proxy that fronts the Facebook
// and Instagram Graph APIs, and translates its payloads into the unified
// models.
package platforms

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"social-dashboard/retry"
)

// DefaultTimeout bounds every backend request
const DefaultTimeout = 20 * time.Second

// Client is the HTTP transport to the backend. It keeps a cookie jar so
// the backend session cookie set by /auth/login is sent on later calls.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	now        func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithTransport shares a round tripper between clients
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit throttles outgoing requests
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// WithClock replaces time.Now, used when payloads omit timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a backend client for baseURL
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q: scheme and host are required", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Jar: jar},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		timeout:    DefaultTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Now returns the client's clock reading
func (c *Client) Now() time.Time {
	return c.now().UTC()
}

// segment escapes one path element taken from user input. Dot segments
// are encoded so they stay inside the endpoint.
func segment(id string) string {
	if id == "." || id == ".." {
		return strings.ReplaceAll(id, ".", "%2E")
	}
	return url.PathEscape(id)
}

// get issues a GET and returns the body of a 2xx answer
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, "")
}

// do performs one request. Non-2xx answers become *APIError, transport
// failures and timeouts become *NetworkError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) ([]byte, error) {
	endpoint := method + " " + path

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{Op: endpoint, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: endpoint, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Backend request failed",
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 512),
		)
		return nil, &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Detail:     extractDetail(respBody),
			Body:       string(respBody),
		}
	}

	return respBody, nil
}

// WaitReady probes the backend until it answers or the retries run out.
// Any HTTP answer counts as ready; only transport failures are retried.
func (c *Client) WaitReady(ctx context.Context, healthPath string, config retry.Config) error {
	result := retry.Do(ctx, config, "backend readiness", func(ctx context.Context) error {
		_, err := c.get(ctx, healthPath, nil)
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil
		}
		return err
	})

	if !result.Success {
		return fmt.Errorf("backend not ready after %d attempts: %w", result.Attempts, result.LastError)
	}
	slog.Info("Backend is ready", "attempts", result.Attempts, "duration", result.TotalDuration)
	return nil
}

// Upload is a file attached to a multipart request
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// form builds multipart bodies in field order
type form struct {
	buf    bytes.Buffer
	writer *multipart.Writer
	err    error
}

func newForm() *form {
	f := &form{}
	f.writer = multipart.NewWriter(&f.buf)
	return f
}

func (f *form) field(name, value string) *form {
	if f.err == nil {
		f.err = f.writer.WriteField(name, value)
	}
	return f
}

func (f *form) file(field string, upload Upload) *form {
	if f.err != nil {
		return f
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, quoteEscaper.Replace(upload.Name)))
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := f.writer.CreatePart(header)
	if err != nil {
		f.err = err
		return f
	}
	_, f.err = part.Write(upload.Data)
	return f
}

func (f *form) finish() (io.Reader, string, error) {
	if f.err != nil {
		return nil, "", fmt.Errorf("failed to build form: %w", f.err)
	}
	if err := f.writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to build form: %w", err)
	}
	return &f.buf, f.writer.FormDataContentType(), nil
}

// sendForm sends a multipart form
func (c *Client) sendForm(ctx context.Context, method, path string, f *form) ([]byte, error) {
	body, contentType, err := f.finish()
	if err != nil {
		return nil, err
	}
	return c.do(ctx, method, path, nil, body, contentType)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

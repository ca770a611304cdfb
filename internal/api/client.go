package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/weiliu/h5client/internal/logging"
	"github.com/weiliu/h5client/internal/navigation"
)

// Envelope codes with special meaning.
const (
	CodeOK             = 200
	CodeSessionExpired = 604
)

// DefaultMaxResponseBytes bounds how much of a response body is decoded.
const DefaultMaxResponseBytes int64 = 1 << 20

// ErrResponseTooLarge indicates a response body exceeded the configured cap.
var ErrResponseTooLarge = errors.New("response body too large")

// SessionState is the slice of the session context the gateway needs.
type SessionState interface {
	Token() string
	Clear(ctx context.Context) error
}

// FilePart is one file attached to a multipart request.
type FilePart struct {
	Field    string
	Filename string
	Content  io.Reader
}

// Request describes one backend call. GET requests encode Query as the query
// string; other methods send Body as JSON, or a multipart form when Files is
// non-empty.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Files  []FilePart
	Fields map[string]string
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client is the single request function every view goes through.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    SessionState
	navigator  navigation.Navigator
	limiter    Limiter
	maxBody    int64
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout on a copy of the current HTTP
// client, leaving a client passed to WithHTTPClient untouched.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			hc := *c.httpClient
			hc.Timeout = timeout
			c.httpClient = &hc
		}
	}
}

// WithNavigator sets where session expiry redirects are sent.
func WithNavigator(nav navigation.Navigator) Option {
	return func(c *Client) {
		if nav != nil {
			c.navigator = nav
		}
	}
}

// WithLimiter installs a client-side throttle.
func WithLimiter(l Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithMaxResponseBytes overrides the response decoding cap.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// NewClient constructs a gateway for the backend at baseURL.
func NewClient(baseURL string, session SessionState, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if session == nil {
		return nil, errors.New("session state is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(parsed.String(), "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second, Transport: NewLoggingTransport(nil)},
		session:    session,
		navigator:  navigation.Discard,
		limiter:    noLimit{},
		maxBody:    DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do issues req and decodes the envelope's data into out on success. out may
// be nil when the caller only cares about the outcome.
func (c *Client) Do(ctx context.Context, req Request, out any) Result {
	if logging.RequestIDFromContext(ctx) == "" {
		ctx = logging.WithRequestID(ctx, uuid.NewString())
	}
	ctx, span := logging.StartSpan(ctx, "api "+req.Path)
	res := c.do(ctx, req, out)
	span.End(res.Err())
	return res
}

func (c *Client) do(ctx context.Context, req Request, out any) Result {
	logger := logging.FromContext(ctx)

	if err := c.limiter.Wait(ctx, req.Path); err != nil {
		return Result{Kind: KindTransport, Message: MessageNetworkError, Cause: err}
	}

	httpReq, err := c.build(ctx, req)
	if err != nil {
		return Result{Kind: KindTransport, Message: MessageRequestFailed, Cause: err}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{Kind: KindTransport, Message: MessageNetworkError, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return Result{Kind: KindTransport, Message: MessageNetworkError, Status: resp.StatusCode, Cause: err}
	}
	if int64(len(raw)) > c.maxBody {
		return Result{Kind: KindTransport, Message: MessageRequestFailed, Status: resp.StatusCode, Cause: ErrResponseTooLarge}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := MessageRequestFailed
		if decodeErr == nil && env.Message != "" {
			message = env.Message
		}
		return Result{
			Kind:    KindTransport,
			Message: message,
			Code:    env.Code,
			Status:  resp.StatusCode,
			Cause:   fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	if decodeErr != nil {
		return Result{Kind: KindTransport, Message: MessageRequestFailed, Status: resp.StatusCode, Cause: fmt.Errorf("decode envelope: %w", decodeErr)}
	}

	switch {
	case env.Code == CodeSessionExpired:
		if err := c.session.Clear(ctx); err != nil {
			logger.Error("clear expired session", slog.String("error", err.Error()))
		}
		c.navigator.Navigate(navigation.Login)
		return Result{Kind: KindSessionExpired, Message: MessageSessionExpired, Code: env.Code, Status: resp.StatusCode}
	case env.Code != CodeOK:
		message := env.Message
		if message == "" {
			message = MessageRequestFailed
		}
		return Result{Kind: KindApplication, Message: message, Code: env.Code, Status: resp.StatusCode}
	}

	if out != nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return Result{Kind: KindTransport, Message: MessageRequestFailed, Code: env.Code, Status: resp.StatusCode, Cause: fmt.Errorf("decode data: %w", err)}
		}
	}

	return Result{Kind: KindSuccess, Message: env.Message, Code: env.Code, Status: resp.StatusCode}
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case method == http.MethodGet:
	case len(req.Files) > 0:
		buf, ct, err := encodeMultipart(req.Fields, req.Files)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case req.Body != nil:
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body, contentType = bytes.NewReader(encoded), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token := c.session.Token(); token != "" {
		httpReq.Header.Set("Authorization", token)
	}
	return httpReq, nil
}

func encodeMultipart(fields map[string]string, files []FilePart) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}
	for _, f := range files {
		field := f.Field
		if field == "" {
			field = "file"
		}
		part, err := w.CreateFormFile(field, f.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("copy %s: %w", f.Filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

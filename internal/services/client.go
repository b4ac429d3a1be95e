package services

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
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/stitchr/internal/shared"
)

const (
	defaultAPIURL = "https://api.spotify.com/v1"
	maxLoggedBody = 512
)

// Request describes one API call. Path is relative to the API base URL.
//
// Query values may be strings, integers, booleans or string slices; slices are
// comma-joined. Body, when non-nil, is sent as JSON.
type Request struct {
	Method string
	Path   string
	Query  map[string]any
	Body   any
}

// APIClientOpts configures an [APIClient].
type APIClientOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	Auth       Authenticator
	// Limiter paces outgoing requests when set.
	Limiter *rate.Limiter
	Logger  *log.Logger
}

// APIClient issues authenticated Spotify Web API requests.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	auth       Authenticator
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewAPIClient creates a client. A nil Auth makes every call fail with
// [shared.ErrNotAuthenticated].
func NewAPIClient(opts APIClientOpts) *APIClient {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultAPIURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &APIClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		auth:       opts.Auth,
		limiter:    opts.Limiter,
		logger:     shared.WithLogger(opts.Logger, "component", "api"),
	}
}

// Do performs req and decodes a successful body into out. A nil out discards the body.
func (c *APIClient) Do(ctx context.Context, req Request, out any) error {
	id := shared.GenerateID()[:8]
	logger := c.logger.With("req", id, "method", req.Method, "path", req.Path)

	status, body, err := c.send(ctx, req, logger)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		logger.Debug("access token rejected, refreshing")
		if err := c.auth.Refresh(ctx); err != nil {
			logger.Warn("refresh failed", "error", err)
			return err
		}
		if status, body, err = c.send(ctx, req, logger); err != nil {
			return err
		}
	}

	if status >= http.StatusBadRequest {
		logger.Warn("request failed", "status", status, "body", truncate(body))
		return &shared.StatusError{Method: req.Method, Path: req.Path, StatusCode: status}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		logger.Error("failed to decode response", "status", status, "error", err, "body", truncate(body))
		return fmt.Errorf("%w: %s %s: %v", shared.ErrDecode, req.Method, req.Path, err)
	}
	return nil
}

// send issues one attempt and returns the status and full body.
func (c *APIClient) send(ctx context.Context, req Request, logger *log.Logger) (int, []byte, error) {
	var header http.Header
	ok := false
	if c.auth != nil {
		header, ok = c.auth.AuthorizedHeader(http.Header{"Accept": {"application/json"}})
	}
	if !ok {
		logger.Warn("authorization header unavailable")
		return 0, nil, fmt.Errorf("%w: %s %s", shared.ErrNotAuthenticated, req.Method, req.Path)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", shared.ErrCancelled, err)
		}
	}

	httpReq, err := c.build(ctx, req, header)
	if err != nil {
		return 0, nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, fmt.Errorf("%w: %v", shared.ErrCancelled, ctx.Err())
		}
		return 0, nil, fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading body: %v", shared.ErrTransport, err)
	}
	logger.Debug("response", "status", resp.StatusCode, "bytes", len(body))
	return resp.StatusCode, body, nil
}

func (c *APIClient) build(ctx context.Context, req Request, header http.Header) (*http.Request, error) {
	u := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if q := EncodeQuery(req.Query); q != "" {
		u += "?" + q
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		header.Set("Content-Type", "application/json")
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header = header
	return httpReq, nil
}

// EncodeQuery renders params as a sorted query string. Slices are comma-joined
// and nil values are skipped.
func EncodeQuery(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	values := url.Values{}
	for k, v := range params {
		switch v := v.(type) {
		case nil:
		case string:
			values.Set(k, v)
		case []string:
			values.Set(k, strings.Join(v, ","))
		case int:
			values.Set(k, strconv.Itoa(v))
		case bool:
			values.Set(k, strconv.FormatBool(v))
		case fmt.Stringer:
			values.Set(k, v.String())
		default:
			values.Set(k, fmt.Sprint(v))
		}
	}
	return values.Encode()
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "..."
	}
	return string(b)
}

// Handle controls a call started with [APIClient.Go].
type Handle struct {
	cancel    context.CancelFunc
	mu        sync.Mutex
	cancelled bool
	done      chan struct{}
}

// Cancel aborts the call. A call cancelled before it completes never reports to
// its callback. Calling Cancel on a nil or finished handle is a no-op.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
	h.cancel()
}

// Done is closed when the call has finished, whether or not it was cancelled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// Go runs Do in a new goroutine and reports the result to done unless the handle
// is cancelled first.
func (c *APIClient) Go(ctx context.Context, req Request, out any, done func(error)) *Handle {
	return goHandle(ctx, func(ctx context.Context) error { return c.Do(ctx, req, out) }, done)
}

func goHandle(ctx context.Context, call func(context.Context) error, done func(error)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer cancel()

		err := call(ctx)

		h.mu.Lock()
		suppressed := h.cancelled
		h.mu.Unlock()
		if !suppressed && done != nil {
			done(err)
		}
	}()
	return h
}

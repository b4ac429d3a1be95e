package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stitchr/internal/shared"
)

// CallbackResult carries the outcome of one authorization redirect.
type CallbackResult struct {
	Code string
	Err  error
}

// CallbackHandler receives the OAuth redirect on /callback.
//
// Only the first request is acted on; later ones get 400.
type CallbackHandler struct {
	state  string
	result chan CallbackResult
	once   sync.Once
	mu     sync.Mutex
	hit    bool
}

// NewCallbackHandler creates a handler that expects state on the redirect.
func NewCallbackHandler(state string) *CallbackHandler {
	return &CallbackHandler{state: state, result: make(chan CallbackResult, 1)}
}

func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.Send(CallbackResult{Err: fmt.Errorf("%w: state mismatch on callback", shared.ErrAuthInvalid)})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		reason := q.Get("error")
		err := fmt.Errorf("%w: authorization failed: %s %s", shared.ErrAuthInvalid, reason, q.Get("error_description"))
		if reason == "access_denied" {
			err = fmt.Errorf("%w: authorization denied by user", shared.ErrCancelled)
		}
		h.Send(CallbackResult{Err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.Send(CallbackResult{Code: code})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// Send delivers result to the waiter. Only the first call has an effect.
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.result <- result
		close(h.result)
	})
}

// Result receives exactly one [CallbackResult] and is then closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.result
}

// AwaitCallback serves h on addr until a callback arrives, ctx is done, or the server fails.
//
// ready, if non-nil, is called once the listener is bound, with the bound address.
// Cancellation of ctx yields [shared.ErrCancelled]; a deadline yields [shared.ErrTimeout].
func AwaitCallback(ctx context.Context, addr string, h *CallbackHandler, logger *log.Logger, ready func(addr string)) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	router := NewBasicRouter()
	router.Use(RequestLogger(logger))
	router.Handler(h)

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	logger.Debug("callback server listening", "addr", ln.Addr().String())

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case res := <-h.Result():
		return res.Code, res.Err
	case err := <-serveErr:
		return "", fmt.Errorf("callback server error: %w", err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: no authorization callback received", shared.ErrTimeout)
		}
		return "", fmt.Errorf("%w: authorization abandoned", shared.ErrCancelled)
	}
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>stitchr: signed in</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #121212; }
        .card { text-align: center; background: #181818; padding: 2rem; border-radius: 8px; }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #b3b3b3; margin: 0; }
    </style>
</head>
<body>
    <div class="card">
        <h1>Signed in to Spotify</h1>
        <p>You can close this tab and go back to stitchr.</p>
    </div>
</body>
</html>
`

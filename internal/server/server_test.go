package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stitchr/internal/shared"
)

func TestBasicRouter(t *testing.T) {
	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("outer"), mw("inner"))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

		if strings.Join(order, ",") != "outer,inner,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("method mismatch", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestCallbackHandler(t *testing.T) {
	serve := func(h *CallbackHandler, target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	t.Run("delivers the code", func(t *testing.T) {
		h := NewCallbackHandler("s1")
		rec := serve(h, "/callback?state=s1&code=abc")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		res := <-h.Result()
		if res.Err != nil || res.Code != "abc" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("state mismatch", func(t *testing.T) {
		h := NewCallbackHandler("s1")
		rec := serve(h, "/callback?state=other&code=abc")

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if res := <-h.Result(); !errors.Is(res.Err, shared.ErrAuthInvalid) {
			t.Errorf("expected ErrAuthInvalid, got %v", res.Err)
		}
	})

	t.Run("user denied", func(t *testing.T) {
		h := NewCallbackHandler("s1")
		serve(h, "/callback?state=s1&error=access_denied")

		if res := <-h.Result(); !errors.Is(res.Err, shared.ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", res.Err)
		}
	})

	t.Run("second callback rejected", func(t *testing.T) {
		h := NewCallbackHandler("s1")
		serve(h, "/callback?state=s1&code=first")
		rec := serve(h, "/callback?state=s1&code=second")

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if res := <-h.Result(); res.Code != "first" {
			t.Errorf("expected first code, got %q", res.Code)
		}
	})
}

func TestAwaitCallback(t *testing.T) {
	logger := log.New(io.Discard)

	t.Run("returns the code from a real request", func(t *testing.T) {
		h := NewCallbackHandler("xyz")
		ready := func(addr string) {
			go func() {
				resp, err := http.Get("http://" + addr + "/callback?state=xyz&code=the-code")
				if err == nil {
					resp.Body.Close()
				}
			}()
		}

		code, err := AwaitCallback(context.Background(), "127.0.0.1:0", h, logger, ready)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != "the-code" {
			t.Errorf("expected the-code, got %q", code)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		ready := func(string) { cancel() }

		_, err := AwaitCallback(ctx, "127.0.0.1:0", NewCallbackHandler("s"), logger, ready)
		if !errors.Is(err, shared.ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
	})

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := AwaitCallback(ctx, "127.0.0.1:0", NewCallbackHandler("s"), logger, nil)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("bad address", func(t *testing.T) {
		if _, err := AwaitCallback(context.Background(), "256.0.0.1:bad", NewCallbackHandler("s"), logger, nil); err == nil {
			t.Error("expected listen error")
		}
	})
}

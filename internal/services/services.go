package services

import (
	"context"
	"net/http"
)

// Authenticator supplies bearer headers and renews them after a 401.
//
// [*auth.Session] is the production implementation.
type Authenticator interface {
	AuthorizedHeader(base http.Header) (http.Header, bool)
	Refresh(ctx context.Context) error
}

// Doer performs one API call. [*APIClient] implements it.
type Doer interface {
	Do(ctx context.Context, req Request, out any) error
	Go(ctx context.Context, req Request, out any, done func(error)) *Handle
}

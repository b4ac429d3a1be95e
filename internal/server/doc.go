// Package server runs the short-lived loopback HTTP server that receives the
// OAuth authorization redirect.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter]
// registers method-qualified patterns on an [http.ServeMux], and [Middleware] wraps
// handlers so that the first one added is the outermost.
//
// # Callback Handler
//
// [CallbackHandler] accepts exactly one redirect on /callback, validates the state
// parameter and hands the authorization code (or the provider's error) to whoever
// is waiting in [AwaitCallback]. Code exchange happens in internal/auth, never here.
package server

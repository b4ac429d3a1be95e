// Package services talks to the Spotify Web API.
//
// # API Client
//
// [APIClient] builds authenticated requests, decodes JSON responses and applies one
// uniform status policy to every call:
//   - no access token: fails with [shared.ErrNotAuthenticated] before touching the network
//   - status below 400: the body is decoded into the caller's value; a malformed body is [shared.ErrDecode]
//   - 401: the [Authenticator] refreshes once and the identical request is re-issued once
//   - any other status from 400 up: a [*shared.StatusError]; the body is only logged
//   - no response at all: [shared.ErrTransport]
//
// [APIClient.Go] runs a call in the background and returns a [Handle]; cancelling the
// handle guarantees the completion callback is not invoked.
//
// # Spotify Endpoints
//
// [SpotifyService] maps the endpoints stitchr uses onto typed calls returning the
// models in internal/models.
package services

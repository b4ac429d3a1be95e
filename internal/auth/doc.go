// Package auth owns the Spotify session: interactive authorization, silent refresh
// and bearer header injection.
//
// A [Session] keeps its in-memory [models.TokenStore] and the durable copy in a
// [cache.CredentialCache] in lockstep: every change is written to the cache before
// it becomes visible in memory. Concurrent refreshes share one token endpoint call.
//
// State machine:
//
//	Unauthenticated --Authorize/Exchange--> Authenticated
//	Authenticated   --Refresh-->            Refreshing --ok--> Authenticated
//	                                                  --err--> Unauthenticated
//	any             --Logout-->             Unauthenticated
package auth

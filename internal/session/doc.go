// Package session keeps the per-browser dashboard state: the result of the
// last successful upload and the bookkeeping needed to expire idle sessions.
//
// Sessions are owned by a Store injected into the service layer. A session
// result is replaced wholesale by each successful upload; a failed upload
// never touches it.
package session

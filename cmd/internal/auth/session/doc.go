// Package session implements the authenticated request client.
//
// Every request carries the current access token as a bearer credential. A 401
// sends the request through the refresh coordinator: at most one refresh runs no
// matter how many requests failed together, and each failed request is replayed
// exactly once with the new token. A rejected refresh is terminal (the store is
// cleared and a logout signal is emitted) and surfaces as ErrSessionTerminated.
//
// Non-401 responses, including errors, are handed back unchanged; Response.Err
// converts an error response into an *APIError.
package session

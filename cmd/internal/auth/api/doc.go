// Package authapi is the account surface of the client: login, register,
// logout and password reset.
//
// Every call goes through session.Client, so the HTTP side (envelope parsing,
// request ids, error normalization) is shared with the rest of the app.
// Unauthenticated endpoints are sent with NoRefresh: a 401 from login means
// bad credentials, not an expired token.
//
// Logout is local-first. The server is told when it can be reached, the
// credential store is cleared either way.
package authapi

// Package identity holds the client's view of the signed-in account.
//
// The Principal is cached next to the credential pair and is advisory only:
// the server re-checks every permission, so nothing here is a security decision.
// Field validation mirrors the server's registration rules so obviously bad input
// never costs a round trip.
package identity

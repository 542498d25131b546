// Package credential keeps the access/refresh pair and the cached principal.
//
// Vault is the only writer of the three slots. Its in-memory copy is
// authoritative for the running process; every mutation is written through to
// an optional Backend in a single batch so a reader never sees half a pair.
//
// Backends:
//   - MemoryBackend: tests and throwaway sessions
//   - SQLiteBackend: default durable store on a workstation
//   - PostgresBackend: shared hosts that keep several profiles in one database
//   - SealedBackend: wraps any of the above and encrypts slot values
package credential

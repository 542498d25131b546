// Package password provides password policy checks and passphrase key derivation.
//
// It includes:
// - Configurable Argon2id parameters (via environment variables)
// - The password policy applied to sign-up input before it is sent
// - DeriveKey, which turns a local passphrase into the key that seals stored credentials
package password

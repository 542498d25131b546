// Package seal encrypts credential slot values before they reach durable storage.
//
// Values are sealed with XChaCha20-Poly1305 and bound to their slot name as
// additional data, so a sealed access token cannot be replayed into the refresh slot.
//
// Environment:
// - CHAT_SEAL_PASSPHRASE: when set, stored slots are sealed with a key derived from it.
// Policy:
//   - If RequireSealedStorage=true, callers MUST refuse to start without a passphrase
//     of at least MinPassphraseBytes.
package seal

// Package cryptox holds the cryptographic primitives of the vault:
// credential hashing, password based key derivation, authenticated
// encryption and secure identifiers.
//
// All functions are safe for concurrent use; none keep shared state beyond
// the system CSPRNG.
//
//   - PasswordHasher: Argon2id credential hashes in PHC string form
//   - DeriveKey: PBKDF2-HMAC-SHA256 symmetric keys (32 bytes)
//   - Encrypt/Decrypt: ChaCha20-Poly1305 with base64 text encoding
//   - Seal/Open: the same AEAD over raw bytes, used for file blobs
//   - SecureRandomID: hex identifiers from the CSPRNG
package cryptox

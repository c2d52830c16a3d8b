// Package crypto is the primitive adapter of the secure channel.
//
// It pins the Noise cipher suite named by a protocol string and exposes:
//   - X25519 key pairs and Diffie-Hellman (golang.org/x/crypto/curve25519)
//   - CipherSession, one direction of AEAD with a 64-bit counter nonce
//     (ChaCha20-Poly1305 or AES-256-GCM)
//   - the Noise HKDF over the suite hash (SHA-256, SHA-512, BLAKE2s, BLAKE2b)
//
// Nonces are never random: uniqueness under a fixed key is the only property
// required, so the counter itself is serialized into the nonce.
package crypto

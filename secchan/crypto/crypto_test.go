package crypto

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"
)

func TestX25519DH(t *testing.T) {
	alice, err := GenerateKeypair(nil)
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	bob, err := GenerateKeypair(nil)
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	if err := alice.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	sharedAlice, err := DH(alice.Private, bob.Public)
	if err != nil {
		t.Fatalf("DH alice: %v", err)
	}
	sharedBob, err := DH(bob.Private, alice.Public)
	if err != nil {
		t.Fatalf("DH bob: %v", err)
	}
	if !bytes.Equal(sharedAlice, sharedBob) {
		t.Fatalf("shared secrets do not match")
	}

	if _, err := DH(alice.Private, make([]byte, DHLen)); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey for low-order point, got %v", err)
	}
}

func TestKeypairFromPrivate(t *testing.T) {
	kp, _ := GenerateKeypair(nil)
	again, err := KeypairFromPrivate(kp.Private)
	if err != nil {
		t.Fatalf("KeypairFromPrivate: %v", err)
	}
	if !bytes.Equal(again.Public, kp.Public) {
		t.Fatalf("public key mismatch")
	}

	bad := DHKey{Private: kp.Private, Public: make([]byte, DHLen)}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidKeypair) {
		t.Fatalf("expected ErrInvalidKeypair, got %v", err)
	}
}

func newPair(t testing.TB, protocol string) (*CipherSession, *CipherSession) {
	t.Helper()
	suite := MustParseSuite(protocol)
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	send, err := suite.NewCipherSession(key)
	if err != nil {
		t.Fatalf("NewCipherSession: %v", err)
	}
	recv, err := suite.NewCipherSession(key)
	if err != nil {
		t.Fatalf("NewCipherSession: %v", err)
	}
	return send, recv
}

func TestCipherSessionRoundTrip(t *testing.T) {
	for _, protocol := range []string{
		"Noise_XX_25519_ChaChaPoly_SHA256",
		"Noise_XX_25519_AESGCM_SHA256",
	} {
		send, recv := newPair(t, protocol)
		for _, size := range []int{0, 1, 100, MaxMessageLen - TagSize} {
			plaintext := bytes.Repeat([]byte{0xa5}, size)
			ct, err := send.Encrypt(nil, plaintext)
			if err != nil {
				t.Fatalf("%s: Encrypt(%d): %v", protocol, size, err)
			}
			if len(ct) != size+TagSize {
				t.Fatalf("%s: ciphertext length %d, want %d", protocol, len(ct), size+TagSize)
			}
			pt, err := recv.Decrypt(nil, ct)
			if err != nil {
				t.Fatalf("%s: Decrypt(%d): %v", protocol, size, err)
			}
			if !bytes.Equal(pt, plaintext) {
				t.Fatalf("%s: plaintext mismatch", protocol)
			}
		}
	}
}

func TestCipherSessionTamper(t *testing.T) {
	send, recv := newPair(t, DefaultProtocol)
	ct, _ := send.Encrypt(nil, []byte("hello secure channel"))
	ct[3] ^= 0x01
	if _, err := recv.Decrypt(nil, ct); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if recv.Nonce() != 0 {
		t.Fatalf("nonce advanced on failed decrypt")
	}
	if _, err := recv.Decrypt(nil, ct[:TagSize-1]); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for short input, got %v", err)
	}
}

func TestCipherSessionNonceLayout(t *testing.T) {
	send, _ := newPair(t, DefaultProtocol)
	send.SetNonce(5)
	ct, err := send.Encrypt(nil, []byte("x"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	aead, _ := chacha20poly1305.New(key)
	var nonce [12]byte
	binary.LittleEndian.PutUint64(nonce[4:], 5)
	want := aead.Seal(nil, nonce[:], []byte("x"), nil)
	if !bytes.Equal(ct, want) {
		t.Fatalf("nonce is not the little-endian counter")
	}
}

func TestCipherSessionNonceMonotonic(t *testing.T) {
	send, _ := newPair(t, DefaultProtocol)
	last := send.Nonce()
	for i := 0; i < 100; i++ {
		if _, err := send.Encrypt(nil, []byte{byte(i)}); err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if send.Nonce() <= last {
			t.Fatalf("nonce did not increase: %d after %d", send.Nonce(), last)
		}
		last = send.Nonce()
	}

	send.SetNonce(MaxNonce - 1)
	if _, err := send.Encrypt(nil, []byte("last")); err != nil {
		t.Fatalf("Encrypt at MaxNonce-1: %v", err)
	}
	if _, err := send.Encrypt(nil, []byte("one more")); !errors.Is(err, ErrNonceExhausted) {
		t.Fatalf("expected ErrNonceExhausted, got %v", err)
	}
}

func TestCipherSessionDecryptExhausted(t *testing.T) {
	send, recv := newPair(t, DefaultProtocol)
	ct, err := send.Encrypt(nil, []byte("late"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	recv.SetNonce(MaxNonce)
	if _, err := recv.Decrypt(nil, ct); !errors.Is(err, ErrNonceExhausted) {
		t.Fatalf("expected ErrNonceExhausted, got %v", err)
	}
	if recv.Nonce() != MaxNonce {
		t.Fatalf("nonce moved to %d", recv.Nonce())
	}
}

func TestCipherSessionTooLarge(t *testing.T) {
	send, recv := newPair(t, DefaultProtocol)
	if _, err := send.Encrypt(nil, make([]byte, MaxMessageLen-TagSize+1)); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
	if _, err := recv.Decrypt(nil, make([]byte, MaxMessageLen+1)); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestCipherSessionDestroy(t *testing.T) {
	send, _ := newPair(t, DefaultProtocol)
	if !send.HasKey() {
		t.Fatalf("fresh session has no key")
	}
	send.Destroy()
	if send.HasKey() {
		t.Fatalf("destroyed session still has a key")
	}
	if _, err := send.Encrypt(nil, nil); !errors.Is(err, ErrCipherDestroyed) {
		t.Fatalf("expected ErrCipherDestroyed, got %v", err)
	}
}

func TestHKDFMatchesNoiseDefinition(t *testing.T) {
	ck := bytes.Repeat([]byte{1}, 32)
	ikm := bytes.Repeat([]byte{2}, 32)

	out1, out2, err := HKDF(sha256.New, ck, ikm)
	if err != nil {
		t.Fatalf("HKDF: %v", err)
	}

	mac := func(key []byte, data ...[]byte) []byte {
		h := hmac.New(sha256.New, key)
		for _, d := range data {
			h.Write(d)
		}
		return h.Sum(nil)
	}
	temp := mac(ck, ikm)
	want1 := mac(temp, []byte{0x01})
	want2 := mac(temp, want1, []byte{0x02})
	if !bytes.Equal(out1, want1) || !bytes.Equal(out2, want2) {
		t.Fatalf("HKDF does not match HMAC construction")
	}
}

func TestParseSuite(t *testing.T) {
	good := []string{
		"Noise_XX_25519_ChaChaPoly_SHA256",
		"Noise_XX_25519_AESGCM_SHA512",
		"Noise_XX_25519_ChaChaPoly_BLAKE2s",
		"Noise_XX_25519_ChaChaPoly_BLAKE2b",
	}
	for _, name := range good {
		s, err := ParseSuite(name)
		if err != nil {
			t.Fatalf("ParseSuite(%q): %v", name, err)
		}
		if s.Name() != name || s.Pattern() != "XX" {
			t.Fatalf("unexpected suite %v", s)
		}
	}

	bad := []string{"", "Noise_XX_448_ChaChaPoly_SHA256", "Noise_XX_25519_Salsa_SHA256", "Noise_XX_25519_ChaChaPoly_MD5", "TLS_XX_25519_ChaChaPoly_SHA256"}
	for _, name := range bad {
		if _, err := ParseSuite(name); !errors.Is(err, ErrUnsupportedProtocol) {
			t.Fatalf("ParseSuite(%q) = %v, want ErrUnsupportedProtocol", name, err)
		}
	}

	if MustParseSuite("Noise_XX_25519_ChaChaPoly_BLAKE2b").HashLen() != 64 {
		t.Fatalf("BLAKE2b hash length")
	}
}

func BenchmarkCipherSessionEncrypt(b *testing.B) {
	send, _ := newPair(b, DefaultProtocol)
	plaintext := make([]byte, MaxMessageLen-TagSize)
	out := make([]byte, 0, MaxMessageLen)
	b.SetBytes(int64(len(plaintext)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = send.Encrypt(out[:0], plaintext)
	}
}

func BenchmarkCipherSessionDecrypt(b *testing.B) {
	send, recv := newPair(b, DefaultProtocol)
	plaintext := make([]byte, 1024)
	var ciphertexts [][]byte
	for i := 0; i < b.N; i++ {
		ct, _ := send.Encrypt(nil, plaintext)
		ciphertexts = append(ciphertexts, ct)
	}
	b.SetBytes(int64(len(plaintext)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = recv.Decrypt(nil, ciphertexts[i])
	}
}

func TestCipherSessionRekey(t *testing.T) {
	send, recv := newPair(t, DefaultProtocol)
	if _, err := recv.Decrypt(nil, mustEncrypt(t, send, []byte("before"))); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	if err := send.Rekey(); err != nil {
		t.Fatalf("Rekey: %v", err)
	}
	if send.Nonce() != 1 {
		t.Fatalf("Rekey moved the counter to %d", send.Nonce())
	}
	ct := mustEncrypt(t, send, []byte("after"))

	// The old key no longer opens frames.
	if _, err := recv.Decrypt(nil, ct); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed before peer rekey, got %v", err)
	}
	if err := recv.Rekey(); err != nil {
		t.Fatalf("Rekey: %v", err)
	}
	pt, err := recv.Decrypt(nil, ct)
	if err != nil || string(pt) != "after" {
		t.Fatalf("Decrypt after rekey: %q %v", pt, err)
	}

	// REKEY(k) = ENCRYPT(k, 2^64-1, "", zeros)[:32].
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	aead, _ := chacha20poly1305.New(key)
	var nonce [chacha20poly1305.NonceSize]byte
	binary.LittleEndian.PutUint64(nonce[4:], MaxNonce)
	newKey := aead.Seal(nil, nonce[:], make([]byte, KeySize), nil)[:KeySize]
	aead, _ = chacha20poly1305.New(newKey)
	binary.LittleEndian.PutUint64(nonce[4:], 1)
	if want := aead.Seal(nil, nonce[:], []byte("after"), nil); !bytes.Equal(ct, want) {
		t.Fatalf("rekeyed ciphertext does not follow the Noise definition")
	}

	send.Destroy()
	if err := send.Rekey(); !errors.Is(err, ErrCipherDestroyed) {
		t.Fatalf("expected ErrCipherDestroyed, got %v", err)
	}
}

func mustEncrypt(t testing.TB, c *CipherSession, pt []byte) []byte {
	t.Helper()
	ct, err := c.Encrypt(nil, pt)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	return ct
}

package handshake

import (
	"github.com/TheusHen/secchan/secchan/crypto"
)

// symmetricState holds the chaining key, the transcript hash and the
// handshake cipher. cs is nil until the first DH result is mixed in.
type symmetricState struct {
	suite crypto.Suite
	cs    *crypto.CipherSession
	ck    []byte
	h     []byte
}

func newSymmetricState(suite crypto.Suite) symmetricState {
	name := []byte(suite.Name())
	var h []byte
	if len(name) <= suite.HashLen() {
		h = make([]byte, suite.HashLen())
		copy(h, name)
	} else {
		h = suite.Hash(name)
	}
	return symmetricState{
		suite: suite,
		ck:    append([]byte(nil), h...),
		h:     h,
	}
}

func (s *symmetricState) hasKey() bool { return s.cs != nil }

func (s *symmetricState) mixHash(data []byte) {
	s.h = s.suite.Hash(s.h, data)
}

func (s *symmetricState) mixKey(ikm []byte) error {
	ck, tempK, err := s.suite.HKDF(s.ck, ikm)
	if err != nil {
		return err
	}
	clear(s.ck)
	s.ck = ck
	cs, err := s.suite.NewCipherSession(tempK)
	clear(tempK)
	if err != nil {
		return err
	}
	s.cs = cs
	return nil
}

// encryptAndHash appends the (possibly encrypted) plaintext to out and
// mixes the bytes written into the transcript.
func (s *symmetricState) encryptAndHash(out, plaintext []byte) ([]byte, error) {
	start := len(out)
	if s.cs == nil {
		out = append(out, plaintext...)
	} else {
		var err error
		out, err = s.cs.EncryptWithAD(out, s.h, plaintext)
		if err != nil {
			return nil, err
		}
	}
	s.mixHash(out[start:])
	return out, nil
}

func (s *symmetricState) decryptAndHash(ciphertext []byte) ([]byte, error) {
	var plaintext []byte
	if s.cs == nil {
		plaintext = append([]byte(nil), ciphertext...)
	} else {
		var err error
		plaintext, err = s.cs.DecryptWithAD(nil, s.h, ciphertext)
		if err != nil {
			return nil, err
		}
	}
	s.mixHash(ciphertext)
	return plaintext, nil
}

// split derives the initiator-to-responder and responder-to-initiator
// ciphers and wipes the chaining key.
func (s *symmetricState) split() (*crypto.CipherSession, *crypto.CipherSession, error) {
	k1, k2, err := s.suite.HKDF(s.ck, nil)
	if err != nil {
		return nil, nil, err
	}
	defer clear(k1)
	defer clear(k2)

	c1, err := s.suite.NewCipherSession(k1)
	if err != nil {
		return nil, nil, err
	}
	c2, err := s.suite.NewCipherSession(k2)
	if err != nil {
		return nil, nil, err
	}
	s.wipe()
	return c1, c2, nil
}

func (s *symmetricState) wipe() {
	clear(s.ck)
	if s.cs != nil {
		s.cs.Destroy()
		s.cs = nil
	}
}

// tagLen is the overhead encryptAndHash adds with the current key state.
func (s *symmetricState) tagLen() int {
	if s.cs == nil {
		return 0
	}
	return crypto.TagSize
}

// Package frame implements the post-handshake wire codec: a stream of
//
//	[length uint16 big-endian][length bytes of AEAD ciphertext]
//
// frames. Framer turns plaintext into frames on a transmit ring, Assembler
// turns an arbitrarily fragmented inbound byte stream back into plaintext.
// Neither blocks nor locks; the owner serializes calls.
package frame

// Package handshake implements the Noise XX handshake engine.
//
// The exchange is three messages long:
//
//	-> e
//	<- e, ee, s, es
//	-> s, se
//
// State is an explicit position (0, 1, 2) plus a fixed role; whether the
// local side writes or reads at a position is derived from the role, so the
// pattern itself is a plain token table. Once complete, Split yields the
// send and receive CipherSessions and the State is spent.
package handshake

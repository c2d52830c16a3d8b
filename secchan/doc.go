// Package secchan turns a raw byte stream into an authenticated, encrypted
// channel using the Noise XX handshake followed by length-framed AEAD
// frames.
//
// A Session is a pure state machine: the owner feeds it bytes read from the
// wire, drains bytes to write back, and moves application data with Write
// and TakeDecrypted. It never blocks, spawns goroutines or locks; see the
// transport package for a net.Conn style wrapper.
//
//	s, _ := secchan.New(secchan.Initiator, secchan.Config{StaticKeypair: kp})
//	n := s.DrainInto(buf) // first handshake message
//	conn.Write(buf[:n])
package secchan

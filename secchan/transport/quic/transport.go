// Package quic carries secure channels over QUIC. Each QUIC connection holds
// one bidirectional stream opened by the dialer; the Noise handshake and all
// frames run on it.
package quic

import (
	"context"
	"net"

	q "github.com/quic-go/quic-go"

	"github.com/TheusHen/secchan/secchan"
	"github.com/TheusHen/secchan/secchan/transport"
)

// streamCarrier adapts a QUIC stream to the carrier a transport.Conn
// expects. Closing it tears down the whole QUIC connection.
type streamCarrier struct {
	q.Stream
	conn q.Connection
}

func (s *streamCarrier) Close() error {
	s.Stream.CancelRead(0)
	err := s.Stream.Close()
	s.conn.CloseWithError(0, "")
	return err
}

func (s *streamCarrier) LocalAddr() net.Addr  { return s.conn.LocalAddr() }
func (s *streamCarrier) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

type Listener struct {
	inner *q.Listener
	cfg   secchan.Config
	opts  transport.Options
}

func Listen(addr string, cfg secchan.Config, opts transport.Options) (*Listener, error) {
	tlsConf, err := serverTLSConfig()
	if err != nil {
		return nil, err
	}
	ln, err := q.ListenAddr(addr, tlsConf, &q.Config{})
	if err != nil {
		return nil, err
	}
	return &Listener{inner: ln, cfg: cfg, opts: opts}, nil
}

// Accept waits for a QUIC connection, takes its first stream and completes
// the responder handshake on it.
func (l *Listener) Accept(ctx context.Context) (*transport.Conn, error) {
	qc, err := l.inner.Accept(ctx)
	if err != nil {
		return nil, err
	}
	st, err := qc.AcceptStream(ctx)
	if err != nil {
		qc.CloseWithError(0, "")
		return nil, err
	}
	c, err := transport.HandshakeServer(ctx, &streamCarrier{Stream: st, conn: qc}, l.cfg, l.opts)
	if err != nil {
		qc.CloseWithError(1, "handshake failed")
		return nil, err
	}
	return c, nil
}

func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

func (l *Listener) Close() error { return l.inner.Close() }

// Dial opens a QUIC connection and a stream to addr and runs the initiator
// handshake on it.
func Dial(ctx context.Context, addr string, cfg secchan.Config, opts transport.Options) (*transport.Conn, error) {
	qc, err := q.DialAddr(ctx, addr, clientTLSConfig(), &q.Config{})
	if err != nil {
		return nil, err
	}
	st, err := qc.OpenStreamSync(ctx)
	if err != nil {
		qc.CloseWithError(0, "")
		return nil, err
	}
	c, err := transport.HandshakeClient(ctx, &streamCarrier{Stream: st, conn: qc}, cfg, opts)
	if err != nil {
		qc.CloseWithError(1, "handshake failed")
		return nil, err
	}
	return c, nil
}

package transport

import (
	"context"
	"net"

	"github.com/TheusHen/secchan/secchan"
)

// Dial connects to addr over TCP and runs the initiator handshake.
func Dial(ctx context.Context, addr string, cfg secchan.Config, opts Options) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, err := HandshakeClient(ctx, nc, cfg, opts)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// Listener accepts TCP connections and runs the responder handshake on
// each.
type Listener struct {
	inner net.Listener
	cfg   secchan.Config
	opts  Options
}

func Listen(addr string, cfg secchan.Config, opts Options) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{inner: ln, cfg: cfg, opts: opts}, nil
}

// Accept waits for the next connection and completes its handshake. ctx
// bounds the handshake only; a failed handshake closes that connection and
// returns its error, leaving the listener open.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	nc, err := l.inner.Accept()
	if err != nil {
		return nil, err
	}
	c, err := HandshakeServer(ctx, nc, l.cfg, l.opts)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

func (l *Listener) Close() error { return l.inner.Close() }

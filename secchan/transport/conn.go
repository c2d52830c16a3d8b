package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheusHen/secchan/secchan"
	"github.com/TheusHen/secchan/secchan/identity"
)

const defaultReadBufferSize = 32 * 1024

var ErrHandshakeTimeout = errors.New("transport: handshake timed out")

type Options struct {
	// Logger receives handshake events. Nil disables logging.
	Logger *zerolog.Logger
	// HandshakeTimeout bounds the handshake on top of the context deadline.
	// Zero means no extra bound.
	HandshakeTimeout time.Duration
	// ReadBufferSize is the carrier read size. Zero means 32 KiB.
	ReadBufferSize int
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

func (o Options) readBufferSize() int {
	if o.ReadBufferSize <= 0 {
		return defaultReadBufferSize
	}
	return o.ReadBufferSize
}

// Conn is an established secure channel. One Read and one Write may be in
// progress at the same time.
type Conn struct {
	carrier io.ReadWriteCloser
	log     zerolog.Logger

	mu   sync.Mutex // guards sess
	sess *secchan.Session

	rmu  sync.Mutex
	rbuf []byte
	wmu  sync.Mutex
	wbuf []byte

	closed      atomic.Bool
	closeOnce   sync.Once
	carrierOnce sync.Once
	closeErr    error
}

// HandshakeClient runs the initiator side of the handshake over carrier.
func HandshakeClient(ctx context.Context, carrier io.ReadWriteCloser, cfg secchan.Config, opts Options) (*Conn, error) {
	return runHandshake(ctx, carrier, secchan.Initiator, cfg, opts)
}

// HandshakeServer runs the responder side of the handshake over carrier.
func HandshakeServer(ctx context.Context, carrier io.ReadWriteCloser, cfg secchan.Config, opts Options) (*Conn, error) {
	return runHandshake(ctx, carrier, secchan.Responder, cfg, opts)
}

func runHandshake(ctx context.Context, carrier io.ReadWriteCloser, role secchan.Role, cfg secchan.Config, opts Options) (*Conn, error) {
	logger := opts.logger().With().Str("role", role.String()).Logger()
	if opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, opts.HandshakeTimeout, ErrHandshakeTimeout)
		defer cancel()
	}

	start := time.Now()
	logger.Debug().Msg("handshake started")
	c, err := runSession(ctx, carrier, role, cfg, opts)
	recordHandshake(role.String(), err, time.Since(start))
	if err != nil {
		logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("handshake failed")
		return nil, err
	}

	ev := logger.Info().Dur("elapsed", time.Since(start))
	if id, ok := c.RemotePeerID(); ok {
		ev = ev.Str("peer", id.ShortString())
	}
	ev.Msg("handshake complete")
	c.log = logger
	return c, nil
}

func runSession(ctx context.Context, carrier io.ReadWriteCloser, role secchan.Role, cfg secchan.Config, opts Options) (*Conn, error) {
	sess, err := secchan.New(role, cfg)
	if err != nil {
		return nil, err
	}
	c := &Conn{
		carrier: carrier,
		sess:    sess,
		rbuf:    make([]byte, opts.readBufferSize()),
	}

	dl, hasDeadline := carrier.(interface{ SetDeadline(time.Time) error })
	if hasDeadline {
		defer dl.SetDeadline(time.Time{})
	}
	// Unblock the carrier once ctx is done, so I/O errors seen after that
	// are reported as the context's cause. Without deadline support the
	// only way out is closing the carrier.
	stop := context.AfterFunc(ctx, func() {
		if hasDeadline {
			dl.SetDeadline(time.Unix(1, 0))
		} else {
			carrier.Close()
		}
	})
	defer stop()

	for {
		if err := c.flush(); err != nil {
			return nil, c.handshakeErr(ctx, err)
		}
		if sess.Established() {
			break
		}
		n, rerr := carrier.Read(c.rbuf)
		if n > 0 {
			recordBytes("in", 0, n)
			if err := sess.Feed(c.rbuf[:n]); err != nil {
				return nil, c.handshakeErr(ctx, err)
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				rerr = io.ErrUnexpectedEOF
			}
			return nil, c.handshakeErr(ctx, rerr)
		}
	}
	if !stop() {
		// ctx ended just as the handshake finished; the carrier is unusable.
		return nil, c.handshakeErr(ctx, context.Cause(ctx))
	}
	return c, nil
}

// handshakeErr prefers the context's cause over the I/O error it provoked.
func (c *Conn) handshakeErr(ctx context.Context, err error) error {
	c.sess.Close()
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return err
}

// flush writes every queued wire byte to the carrier. Callers hold wmu or
// run before the Conn is shared.
func (c *Conn) flush() error {
	c.mu.Lock()
	if n := c.sess.Pending(); n > len(c.wbuf) {
		c.wbuf = make([]byte, n)
	}
	n := c.sess.DrainInto(c.wbuf)
	c.mu.Unlock()
	if n == 0 {
		return nil
	}
	recordBytes("out", 0, n)
	_, err := c.carrier.Write(c.wbuf[:n])
	return err
}

// Read blocks until plaintext is available or the channel fails.
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	c.rmu.Lock()
	defer c.rmu.Unlock()
	for {
		if c.closed.Load() {
			return 0, net.ErrClosed
		}
		c.mu.Lock()
		n := c.sess.ReadDecrypted(p)
		err := c.sess.Err()
		c.mu.Unlock()
		if n > 0 {
			recordBytes("in", n, 0)
			return n, nil
		}
		if err != nil {
			return 0, err
		}

		m, rerr := c.carrier.Read(c.rbuf)
		if m > 0 {
			recordBytes("in", 0, m)
			c.mu.Lock()
			err = c.sess.Feed(c.rbuf[:m])
			c.mu.Unlock()
			if err != nil && !errors.Is(err, secchan.ErrClosed) {
				c.log.Warn().Err(err).Msg("closing channel after inbound failure")
				// The session error stays readable; the peer sees EOF.
				c.closeCarrier()
			}
		}
		if rerr != nil {
			c.mu.Lock()
			n = c.sess.ReadDecrypted(p)
			serr := c.sess.Err()
			c.mu.Unlock()
			if n > 0 {
				recordBytes("in", n, 0)
				return n, nil
			}
			if c.closed.Load() {
				return 0, net.ErrClosed
			}
			if serr != nil {
				return 0, serr
			}
			return 0, rerr
		}
	}
}

// Write encrypts p and writes the frames to the carrier before returning.
func (c *Conn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed.Load() {
		return 0, net.ErrClosed
	}
	c.mu.Lock()
	n, err := c.sess.Write(p)
	c.mu.Unlock()
	if ferr := c.flush(); err == nil {
		err = ferr
	}
	if err != nil {
		return n, err
	}
	recordBytes("out", n, 0)
	return n, nil
}

// Close wipes the session keys and closes the carrier.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.mu.Lock()
		c.sess.Close()
		c.mu.Unlock()
		c.closeCarrier()
		c.log.Debug().Msg("channel closed")
	})
	return c.closeErr
}

func (c *Conn) closeCarrier() {
	c.carrierOnce.Do(func() {
		c.closeErr = c.carrier.Close()
	})
}

// RemotePeerID returns the identity the peer proved, if it sent one.
func (c *Conn) RemotePeerID() (identity.PeerID, bool) { return c.sess.RemotePeerID() }

// RemoteStatic returns the peer's Noise static public key.
func (c *Conn) RemoteStatic() []byte { return c.sess.RemoteStatic() }

// HandshakeHash returns the transcript hash for channel binding.
func (c *Conn) HandshakeHash() []byte { return c.sess.HandshakeHash() }

type addrCarrier interface {
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// RemoteAddr returns the carrier's remote address, or nil when the carrier
// has none.
func (c *Conn) RemoteAddr() net.Addr {
	if a, ok := c.carrier.(addrCarrier); ok {
		return a.RemoteAddr()
	}
	return nil
}

func (c *Conn) LocalAddr() net.Addr {
	if a, ok := c.carrier.(addrCarrier); ok {
		return a.LocalAddr()
	}
	return nil
}

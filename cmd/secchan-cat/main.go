// Command secchan-cat copies stdin to a secure channel and the channel to
// stdout, like netcat over Noise.
//
//	secchan-cat -keygen -config cat.toml
//	secchan-cat -listen :7000
//	secchan-cat -dial 127.0.0.1:7000 -carrier quic
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/TheusHen/secchan/internal/config"
	"github.com/TheusHen/secchan/internal/observability"
	"github.com/TheusHen/secchan/secchan"
	"github.com/TheusHen/secchan/secchan/crypto"
	"github.com/TheusHen/secchan/secchan/identity"
	"github.com/TheusHen/secchan/secchan/transport"
	"github.com/TheusHen/secchan/secchan/transport/quic"
)

const (
	defaultStaticKeyFile   = "static.key"
	defaultIdentityKeyFile = "identity.key"
)

type acceptor interface {
	Accept(ctx context.Context) (*transport.Conn, error)
	Addr() net.Addr
	Close() error
}

func main() {
	configPath := flag.String("config", "", "TOML configuration file")
	listen := flag.String("listen", "", "accept one connection on this address")
	dial := flag.String("dial", "", "connect to this address")
	carrier := flag.String("carrier", "", "tcp or quic")
	keygen := flag.Bool("keygen", false, "write a new static key and identity, then exit")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "secchan-cat: %v\n", err)
			os.Exit(1)
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dial != "" {
		cfg.Dial = *dial
	}
	if *carrier != "" {
		cfg.Carrier = *carrier
	}

	logger := observability.InitLogger("secchan-cat", cfg.LogLevel)

	if *keygen {
		if err := writeKeys(cfg); err != nil {
			log.Fatal().Err(err).Msg("keygen failed")
		}
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sc, err := cfg.SessionConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load keys")
	}

	if cfg.MetricsAddr != "" {
		transport.RegisterMetrics()
		srv := observability.ServeMetrics(cfg.MetricsAddr)
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := transport.Options{Logger: &logger, HandshakeTimeout: cfg.HandshakeTimeout}
	conn, ln, err := connect(ctx, cfg, sc, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to establish channel")
	}
	if ln != nil {
		// A QUIC listener owns the socket its connections use.
		defer ln.Close()
	}
	if id, ok := conn.RemotePeerID(); ok {
		log.Info().Str("peer", id.String()).Msg("peer identity verified")
	}

	if err := relay(ctx, conn, os.Stdin, os.Stdout); err != nil {
		log.Error().Err(err).Msg("relay stopped")
		os.Exit(1)
	}
}

// connect dials or accepts a single channel. When listening, the listener
// is returned too and must outlive the connection.
func connect(ctx context.Context, cfg config.Config, sc secchan.Config, opts transport.Options) (*transport.Conn, acceptor, error) {
	if cfg.Dial != "" {
		log.Info().Str("addr", cfg.Dial).Str("carrier", cfg.Carrier).Msg("dialing")
		var conn *transport.Conn
		var err error
		if cfg.Carrier == "quic" {
			conn, err = quic.Dial(ctx, cfg.Dial, sc, opts)
		} else {
			conn, err = transport.Dial(ctx, cfg.Dial, sc, opts)
		}
		return conn, nil, err
	}

	var ln acceptor
	var err error
	if cfg.Carrier == "quic" {
		ln, err = quic.Listen(cfg.Listen, sc, opts)
	} else {
		ln, err = transport.Listen(cfg.Listen, sc, opts)
	}
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("addr", ln.Addr().String()).Str("carrier", cfg.Carrier).Msg("listening")
	conn, err := ln.Accept(ctx)
	if err != nil {
		ln.Close()
		return nil, nil, err
	}
	return conn, ln, nil
}

// relay copies in to conn and conn to out. The channel has no half-close,
// so once in is exhausted relay keeps reading until the peer hangs up or
// ctx is canceled.
func relay(ctx context.Context, conn io.ReadWriteCloser, in io.Reader, out io.Writer) error {
	sent := make(chan error, 1)
	recv := make(chan error, 1)
	go func() {
		_, err := io.Copy(conn, in)
		sent <- err
	}()
	go func() {
		_, err := io.Copy(out, conn)
		recv <- err
	}()

	var err error
	select {
	case err = <-sent:
		if err == nil {
			select {
			case err = <-recv:
			case <-ctx.Done():
			}
		}
	case err = <-recv:
	case <-ctx.Done():
	}
	conn.Close()
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeKeys(cfg config.Config) error {
	staticPath := cfg.StaticKeyFile
	if staticPath == "" {
		staticPath = defaultStaticKeyFile
	}
	idPath := cfg.IdentityKeyFile
	if idPath == "" {
		idPath = defaultIdentityKeyFile
	}

	static, err := crypto.GenerateKeypair(nil)
	if err != nil {
		return err
	}
	id, err := identity.GenerateKeyPair()
	if err != nil {
		return err
	}
	if err := config.WriteKeyFile(staticPath, static.Private); err != nil {
		return err
	}
	if err := config.WriteKeyFile(idPath, id.Seed()); err != nil {
		return err
	}
	log.Info().
		Str("static_key_file", staticPath).
		Str("identity_key_file", idPath).
		Str("peer", id.PeerID().String()).
		Msg("keys written")
	return nil
}

package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/TheusHen/secchan/secchan"
	"github.com/TheusHen/secchan/secchan/transport"
)

func TestRelayWaitsForReplyAfterInputEnds(t *testing.T) {
	a, b := net.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		srv, err := transport.HandshakeServer(ctx, b, secchan.Config{}, transport.Options{})
		if err != nil {
			done <- err
			return
		}
		defer srv.Close()
		buf := make([]byte, 3)
		if _, err := io.ReadFull(srv, buf); err != nil {
			done <- err
			return
		}
		// Reply only after the request has been fully consumed.
		time.Sleep(20 * time.Millisecond)
		_, err = srv.Write([]byte("reply to " + string(buf)))
		done <- err
	}()

	client, err := transport.HandshakeClient(ctx, a, secchan.Config{}, transport.Options{})
	if err != nil {
		t.Fatalf("HandshakeClient: %v", err)
	}
	var out bytes.Buffer
	if err := relay(ctx, client, strings.NewReader("hi\n"), &out); err != nil {
		t.Fatalf("relay: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("server: %v", err)
	}
	if out.String() != "reply to hi\n" {
		t.Fatalf("out = %q", out.String())
	}
}

func TestRelayStopsOnCancel(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		errc <- relay(ctx, a, strings.NewReader(""), io.Discard)
	}()
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("relay: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("relay did not stop after cancel")
	}
}

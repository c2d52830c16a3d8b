// Package transport runs a secchan.Session over a carrier stream (TCP, a
// QUIC stream, net.Pipe) and exposes the result as an io.ReadWriteCloser.
package transport

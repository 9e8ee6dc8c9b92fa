// Package wire implements the streaming channel's TCP framing: connect
// with the socket options Serval's streaming protocol requires, recover
// "JSON header \n binary payload" frames from a byte stream that may also
// carry stray noise, and decode the header into typed fields.
package wire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// MaxBuffer caps the reader's accumulation buffer; a frame that hasn't
// produced a newline within this many bytes is presumed corrupt and the
// buffer is reset (§4.2 step 5).
const MaxBuffer = 32 * 1024

// ErrBadAddress is returned by NewReader when the port is outside
// [1, 65535] or the host is empty. Resolution and dial failures surface
// from Connect as wrapped dial errors instead.
var ErrBadAddress = errors.New("wire: bad address")

// ErrPeerClosed indicates the connection's peer closed the socket
// (recv == 0): the caller should transition its worker to stopped.
var ErrPeerClosed = errors.New("wire: peer closed connection")

// Reader owns one TCP connection to a Serval streaming channel and the
// byte-accumulation buffer used to recover frames from it.
type Reader struct {
	host string
	port int
	conn net.Conn
	buf  []byte
}

// NewReader creates a reader for the given host:port. Connect must be
// called before reading.
func NewReader(host string, port int) (*Reader, error) {
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrBadAddress, port)
	}
	if host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrBadAddress)
	}
	return &Reader{host: host, port: port, buf: make([]byte, 0, MaxBuffer)}, nil
}

// Connect dials the channel's TCP endpoint and applies the socket options
// spec.md §4.2 requires: keepalive (idle=60s, interval=10s, count=3),
// a 64 KiB receive buffer, and a 5s linger on close.
func (r *Reader) Connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	addr := net.JoinHostPort(r.host, fmt.Sprintf("%d", r.port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("wire: dial %s: %w", addr, err)
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return fmt.Errorf("wire: expected *net.TCPConn, got %T", conn)
	}
	if err := tcpConn.SetKeepAliveConfig(net.KeepAliveConfig{
		Enable:   true,
		Idle:     60 * time.Second,
		Interval: 10 * time.Second,
		Count:    3,
	}); err != nil {
		conn.Close()
		return fmt.Errorf("wire: setting keepalive: %w", err)
	}
	if err := tcpConn.SetReadBuffer(64 * 1024); err != nil {
		conn.Close()
		return fmt.Errorf("wire: setting read buffer: %w", err)
	}
	if err := tcpConn.SetLinger(5); err != nil {
		conn.Close()
		return fmt.Errorf("wire: setting linger: %w", err)
	}

	r.conn = tcpConn
	r.buf = r.buf[:0]
	return nil
}

// Close releases the connection. Linger(5s) lets the kernel drain it.
func (r *Reader) Close() error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

// fill reads one recv result from the socket and appends it to buf. It
// reports ErrPeerClosed on a clean close and retries transient timeouts
// the way §4.2 requires ("EAGAIN/EWOULDBLOCK is retried").
func (r *Reader) fill() error {
	tmp := make([]byte, 4096)
	for {
		n, err := r.conn.Read(tmp)
		if n > 0 {
			r.buf = append(r.buf, tmp[:n]...)
			return nil
		}
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			continue
		}
		if errors.Is(err, io.EOF) {
			return ErrPeerClosed
		}
		return fmt.Errorf("wire: read: %w", err)
	}
}

// NextHeader runs the framing recovery loop of §4.2: accumulate into buf,
// find a newline, extract and validate a JSON header candidate before it,
// and return the raw header bytes on acceptance. Rejected candidates (and
// stretches with none) are dropped up to and including the newline and the
// scan continues. A buffer that fills without a newline is reset.
//
// On return, any bytes already read past the header's newline remain in
// the internal buffer and are the start of that frame's payload; callers
// retrieve them with ReadPayload.
func (r *Reader) NextHeader(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		nl := bytes.IndexByte(r.buf, '\n')
		if nl < 0 {
			if len(r.buf) >= MaxBuffer {
				r.buf = r.buf[:0]
				continue
			}
			if err := r.fill(); err != nil {
				return nil, err
			}
			continue
		}

		line := r.buf[:nl]
		start := candidateStart(line)
		if start >= 0 {
			if hdr, ok := acceptHeader(line[start:]); ok {
				r.buf = r.buf[nl+1:]
				out := make([]byte, len(hdr))
				copy(out, hdr)
				return out, nil
			}
		}
		r.buf = r.buf[nl+1:]
	}
}

// ReadPayload returns exactly n bytes following the most recently
// accepted header, blocking on the socket as needed. If the connection
// drops first, returns a "wire: short payload" error wrapping the read
// error (ErrPeerClosed on a clean close).
func (r *Reader) ReadPayload(ctx context.Context, n int) ([]byte, error) {
	for len(r.buf) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.fill(); err != nil {
			return nil, fmt.Errorf("wire: short payload: %w", err)
		}
	}
	out := make([]byte, n)
	copy(out, r.buf[:n])
	r.buf = r.buf[n:]
	return out, nil
}

// Package transport owns the single UDP socket a certification run talks to
// the device through.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
)

const maxDatagram = 2048

var (
	ErrClosed   = errors.New("transport: endpoint closed")
	ErrNoTarget = errors.New("transport: no target address")
)

// Options configure Open.
type Options struct {
	// Target is the device host:port.
	Target string
	// BindHost and BindPort select the local address; zero values bind any.
	BindHost string
	BindPort int
}

// Reply is the outcome of one Exchange. Received is false on timeout.
type Reply struct {
	Received bool
	Data     []byte
	From     *net.UDPAddr
	Latency  time.Duration
	// Ignored counts packets discarded because their source did not match.
	Ignored int
}

// Endpoint is one bound UDP socket and its target. Exchanges are serialized.
type Endpoint struct {
	mu     sync.Mutex
	conn   *net.UDPConn
	target *net.UDPAddr
	// matchIP is false when the target address cannot identify the replier,
	// e.g. a broadcast target.
	matchIP bool
	closed  bool
}

// Open resolves the target and binds the local socket.
func Open(ctx context.Context, opts Options) (*Endpoint, error) {
	if opts.Target == "" {
		return nil, ErrNoTarget
	}
	var r net.Resolver
	host, portStr, err := net.SplitHostPort(opts.Target)
	if err != nil {
		return nil, fmt.Errorf("transport: target %q: %w", opts.Target, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 0xFFFF {
		return nil, fmt.Errorf("transport: target port %q invalid", portStr)
	}
	target := &net.UDPAddr{Port: port, IP: net.ParseIP(host)}
	if target.IP == nil {
		ips, err := r.LookupIP(ctx, "ip4", host)
		if err != nil {
			return nil, fmt.Errorf("transport: resolve %q: %w", host, err)
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("transport: resolve %q: no IPv4 address", host)
		}
		target.IP = ips[0]
	}

	local := &net.UDPAddr{Port: opts.BindPort}
	if opts.BindHost != "" {
		local.IP = net.ParseIP(opts.BindHost)
		if local.IP == nil {
			return nil, fmt.Errorf("transport: bind host %q is not an IP", opts.BindHost)
		}
	}
	conn, err := net.ListenUDP("udp4", local)
	if err != nil {
		return nil, fmt.Errorf("transport: bind %s: %w", local, err)
	}
	e := &Endpoint{
		conn:    conn,
		target:  target,
		matchIP: !target.IP.IsUnspecified() && !target.IP.Equal(net.IPv4bcast),
	}
	common.Debugf("transport: bound %s -> %s", conn.LocalAddr(), target)
	return e, nil
}

// LocalAddr returns the bound address.
func (e *Endpoint) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Target returns the resolved device address.
func (e *Endpoint) Target() *net.UDPAddr {
	return e.target
}

// Exchange writes tx to the target and waits up to timeout for the first
// correlated reply. A timeout is reported as Reply{Received: false} with a
// nil error. Cancelling ctx interrupts the wait and returns ctx.Err().
func (e *Endpoint) Exchange(ctx context.Context, tx []byte, timeout time.Duration) (Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Reply{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	e.drain()

	// The reply deadline is armed before the cancel hook so a cancellation
	// always has the last word on the read deadline.
	start := time.Now()
	if err := e.conn.SetReadDeadline(start.Add(timeout)); err != nil {
		return Reply{}, fmt.Errorf("transport: deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = e.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if _, err := e.conn.WriteToUDP(tx, e.target); err != nil {
		return Reply{}, fmt.Errorf("transport: send: %w", err)
	}

	var out Reply
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return Reply{}, ctx.Err()
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return out, nil
			}
			return Reply{}, fmt.Errorf("transport: receive: %w", err)
		}
		if !e.correlated(from) {
			out.Ignored++
			common.Debugf("transport: ignoring %d bytes from %s", n, from)
			continue
		}
		out.Received = true
		out.Data = append([]byte(nil), buf[:n]...)
		out.From = from
		out.Latency = time.Since(start)
		common.Debugf("transport: rx %s", frame.Hex(out.Data))
		return out, nil
	}
}

func (e *Endpoint) correlated(from *net.UDPAddr) bool {
	if from == nil || from.Port != e.target.Port {
		return false
	}
	if e.matchIP && !from.IP.Equal(e.target.IP) {
		return false
	}
	return true
}

// drain discards datagrams already queued, such as a late reply to an
// earlier request, so they cannot be taken for the next reply.
func (e *Endpoint) drain() {
	if err := e.conn.SetReadDeadline(time.Now()); err != nil {
		return
	}
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		common.Debugf("transport: dropping stale %d bytes from %s", n, from)
	}
}

// Close releases the socket. It is safe to call more than once.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.conn.Close()
}

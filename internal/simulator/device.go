// Package simulator answers protocol requests from a truth dataset so runs
// can be exercised without hardware.
package simulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
	"github.com/daveleo/exview-aio-protocol-tool/internal/synth"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth"
)

// Device is a simulated display controller bound to one UDP socket.
type Device struct {
	conn  *net.UDPConn
	ds    *truth.Dataset
	specs map[string]synth.Spec
	// queries maps a query code to the set code it reads back.
	queries map[string]string

	silent    map[string]bool
	overrides map[string]func([]byte) []byte
	delay     time.Duration

	mu    sync.Mutex
	state map[string]int

	received atomic.Int64
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// Option customizes a Device.
type Option func(*Device)

// WithSilent makes the device drop requests carrying any of codes.
func WithSilent(codes ...string) Option {
	return func(d *Device) {
		for _, c := range codes {
			d.silent[frame.NormalizeCode(c)] = true
		}
	}
}

// WithReplyOverride rewrites the reply to requests carrying code. Returning
// nil suppresses the reply.
func WithReplyOverride(code string, fn func(reply []byte) []byte) Option {
	return func(d *Device) {
		d.overrides[frame.NormalizeCode(code)] = fn
	}
}

// WithDelay holds every reply for d.
func WithDelay(delay time.Duration) Option {
	return func(d *Device) { d.delay = delay }
}

// New prepares a device for ds without binding a socket.
func New(ds *truth.Dataset, opts ...Option) (*Device, error) {
	specs, err := synth.BuildSpecs(ds.Commands, nil)
	if err != nil {
		return nil, err
	}
	d := &Device{
		ds:        ds,
		specs:     specs,
		queries:   make(map[string]string),
		silent:    make(map[string]bool),
		overrides: make(map[string]func([]byte) []byte),
		state:     make(map[string]int),
	}
	for code, spec := range specs {
		if spec.QueryCode != "" {
			d.queries[spec.QueryCode] = code
		}
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Listen binds addr and starts answering in the background.
func Listen(addr string, ds *truth.Dataset, opts ...Option) (*Device, error) {
	d, err := New(ds, opts...)
	if err != nil {
		return nil, err
	}
	ua, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("simulator: %w", err)
	}
	d.conn, err = net.ListenUDP("udp4", ua)
	if err != nil {
		return nil, fmt.Errorf("simulator: listen %s: %w", addr, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.serve(ctx)
	}()
	common.Logf("simulator: listening on %s (%d commands)", d.conn.LocalAddr(), len(ds.Commands))
	return d, nil
}

// Addr returns the bound address as host:port.
func (d *Device) Addr() string {
	return d.conn.LocalAddr().String()
}

// Received counts requests seen, answered or not.
func (d *Device) Received() int {
	return int(d.received.Load())
}

// Close stops the device and waits for the serve loop to exit.
func (d *Device) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	var err error
	if d.conn != nil {
		err = d.conn.Close()
	}
	d.wg.Wait()
	return err
}

func (d *Device) serve(ctx context.Context) {
	buf := make([]byte, 2048)
	for {
		n, from, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			common.Warnf("simulator: read: %v", err)
			continue
		}
		d.received.Add(1)
		reply, ok := d.Respond(buf[:n])
		if !ok {
			continue
		}
		if d.delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.delay):
			}
		}
		if _, err := d.conn.WriteToUDP(reply, from); err != nil && ctx.Err() == nil {
			common.Warnf("simulator: write: %v", err)
		}
	}
}

// Respond computes the reply to req. ok is false when the device stays
// silent.
func (d *Device) Respond(req []byte) ([]byte, bool) {
	code, _ := frame.DecodeReplyCode(req)
	if d.silent[code] {
		return nil, false
	}
	reply := d.answer(code, req)
	if fn, ok := d.overrides[code]; ok {
		reply = fn(reply)
	}
	return reply, reply != nil
}

func (d *Device) answer(code string, req []byte) []byte {
	if spec, ok := d.specs[code]; ok {
		if v, ok := numericValue(spec, req); ok {
			d.mu.Lock()
			d.state[code] = v
			d.mu.Unlock()
			return synth.ExpectedReply(spec, v)
		}
	}
	if set, ok := d.queries[code]; ok {
		d.mu.Lock()
		v, known := d.state[set]
		d.mu.Unlock()
		if known {
			if row, ok := d.ds.ByReplyCode(code); ok && bytes.Equal(row.Request(), req) {
				return patchPayload(row.Reply(), byte(v))
			}
		}
	}
	for _, row := range d.ds.Commands {
		if bytes.Equal(row.Request(), req) {
			return row.Reply()
		}
	}
	return nil
}

// numericValue accepts req as a set for spec when it matches the template
// everywhere except the value and checksum bytes.
func numericValue(spec synth.Spec, req []byte) (int, bool) {
	tpl := spec.Template()
	if len(req) != len(tpl) {
		return 0, false
	}
	for i := range tpl {
		if i == spec.ValueIndex || i == spec.ChecksumIndex {
			continue
		}
		if req[i] != tpl[i] {
			return 0, false
		}
	}
	v := int(req[spec.ValueIndex])
	if v > synth.MaxValue {
		return 0, false
	}
	return v, true
}

func patchPayload(reply []byte, v byte) []byte {
	p, ok := frame.ExtractPayload(reply)
	if !ok || len(p.Data) != 1 {
		return reply
	}
	reply[p.Offset+3] = v
	reply[len(reply)-1] = frame.Checksum(reply)
	return reply
}

package simulator

import (
	"bytes"
	"testing"

	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
	"github.com/daveleo/exview-aio-protocol-tool/internal/synth"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth/truthtest"
)

func newDevice(t *testing.T, opts ...Option) *Device {
	t.Helper()
	d, err := New(truthtest.Dataset(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestRespondReplaysTruth(t *testing.T) {
	d := newDevice(t)
	row, _ := truthtest.Dataset().Row("query_hdmi")
	reply, ok := d.Respond(row.Request())
	if !ok || !bytes.Equal(reply, row.Reply()) {
		t.Fatalf("reply = % X", reply)
	}
	reboot, _ := truthtest.Dataset().Row("set_reboot")
	if _, ok := d.Respond(reboot.Request()); ok {
		t.Fatalf("reboot must not be answered")
	}
	if _, ok := d.Respond([]byte{1, 2, 3}); ok {
		t.Fatalf("garbage must not be answered")
	}
}

func TestRespondTracksNumericState(t *testing.T) {
	d := newDevice(t)
	specs, err := synth.BuildSpecs(truthtest.Dataset().Commands, nil)
	if err != nil {
		t.Fatalf("BuildSpecs: %v", err)
	}
	s, err := synth.Synthesize(specs["C203"], 77)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	reply, ok := d.Respond(s.Request)
	if !ok || reply[38] != 77 || !frame.ChecksumValid(reply) {
		t.Fatalf("set reply = % X", reply)
	}

	query, _ := truthtest.Dataset().Row("query_volume")
	reply, ok = d.Respond(query.Request())
	if !ok {
		t.Fatalf("query not answered")
	}
	p, found := frame.ExtractPayload(reply)
	if !found || len(p.Data) != 1 || p.Data[0] != 77 || !frame.ChecksumValid(reply) {
		t.Fatalf("query reply = % X", reply)
	}
}

func TestRespondOptions(t *testing.T) {
	d := newDevice(t,
		WithSilent("c133"),
		WithReplyOverride("C114", func(r []byte) []byte {
			r[len(r)-1] ^= 0xFF
			return r
		}),
	)
	screen, _ := truthtest.Dataset().Row("query_screen")
	if _, ok := d.Respond(screen.Request()); ok {
		t.Fatalf("silent code answered")
	}
	ct, _ := truthtest.Dataset().Row("query_color_temp")
	reply, ok := d.Respond(ct.Request())
	if !ok || frame.ChecksumValid(reply) {
		t.Fatalf("override not applied: % X", reply)
	}
}

func TestListenAndClose(t *testing.T) {
	d, err := Listen("127.0.0.1:0", truthtest.Dataset())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if d.Addr() == "" {
		t.Fatalf("no address")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

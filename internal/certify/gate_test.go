package certify

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/daveleo/exview-aio-protocol-tool/internal/cases"
)

func TestPromptGate(t *testing.T) {
	c := cases.Case{Description: "Set standby", Instructions: "Watch the panel go dark"}
	var out bytes.Buffer
	g := &PromptGate{In: strings.NewReader("\ns\nyes\n"), Out: &out, Interactive: true}

	want := []bool{true, false, true}
	for i, w := range want {
		ok, err := g.Confirm(context.Background(), c)
		if err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if ok != w {
			t.Fatalf("answer %d = %v, want %v", i, ok, w)
		}
	}
	if !strings.Contains(out.String(), "Watch the panel go dark") {
		t.Fatalf("instructions not shown: %q", out.String())
	}
	if _, err := g.Confirm(context.Background(), c); err == nil {
		t.Fatalf("exhausted input must be an error")
	}
}

func TestPromptGateNonInteractive(t *testing.T) {
	g := &PromptGate{In: strings.NewReader(""), Out: &bytes.Buffer{}}
	ok, err := g.Confirm(context.Background(), cases.Case{})
	if err != nil || !ok {
		t.Fatalf("non-interactive gate must confirm, got %v %v", ok, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Confirm(ctx, cases.Case{}); err == nil {
		t.Fatalf("cancelled context must be reported")
	}
}

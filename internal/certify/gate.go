package certify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/daveleo/exview-aio-protocol-tool/internal/cases"
	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
)

// Gate is asked before a disruptive case is sent.
type Gate interface {
	Confirm(ctx context.Context, c cases.Case) (bool, error)
}

// AutoGate confirms every case.
type AutoGate struct{}

func (AutoGate) Confirm(context.Context, cases.Case) (bool, error) { return true, nil }

// PromptGate asks an operator on a terminal. When the input is not
// interactive it confirms immediately.
type PromptGate struct {
	In          io.Reader
	Out         io.Writer
	Interactive bool

	r *bufio.Reader
}

// NewPromptGate prompts on out and reads answers from in. Interactivity is
// detected from in.
func NewPromptGate(in *os.File, out io.Writer) *PromptGate {
	fd := in.Fd()
	return &PromptGate{
		In:          in,
		Out:         out,
		Interactive: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

// Confirm blocks until the operator answers. Cancellation is only observed
// before the prompt is shown.
func (g *PromptGate) Confirm(ctx context.Context, c cases.Case) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !g.Interactive {
		common.Logf("manual stage: auto-confirming %s (non-interactive)", c)
		return true, nil
	}
	if g.r == nil {
		g.r = bufio.NewReader(g.In)
	}
	fmt.Fprintf(g.Out, "\nManual stage: %s\n", c.Description)
	if c.Instructions != "" {
		fmt.Fprintf(g.Out, "  %s\n", c.Instructions)
	}
	fmt.Fprint(g.Out, "Press Enter to send, or type s to skip: ")
	line, err := g.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "s", "skip", "n", "no":
		return false, nil
	}
	return true, nil
}

package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Controller is the administrative surface the console drives. Implemented
// by app.Bootstrap.
type Controller interface {
	StartServer() error
	StopServer() error
	Running() bool
	ClientCount() int64
	ClearCache(ctx context.Context) error
}

// Console is the operator command loop: out-of-band administration of the
// server process, separate from the client wire protocol.
type Console struct {
	in   io.Reader
	out  io.Writer
	ctrl Controller
}

// New creates a Console reading commands from in and printing to out.
func New(in io.Reader, out io.Writer, ctrl Controller) *Console {
	return &Console{in: in, out: out, ctrl: ctrl}
}

// Run processes commands until "exit", input EOF or context cancellation.
// Commands: start, stop, status, count, clear, exit.
func (c *Console) Run(ctx context.Context) {
	scanner := bufio.NewScanner(c.in)

	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "start":
			if c.ctrl.Running() {
				fmt.Fprintln(c.out, "server is already running")
				continue
			}
			if err := c.ctrl.StartServer(); err != nil {
				fmt.Fprintf(c.out, "failed to start server: %v\n", err)
				continue
			}
			fmt.Fprintln(c.out, "server started")

		case "stop":
			if !c.ctrl.Running() {
				fmt.Fprintln(c.out, "server is not running")
				continue
			}
			if err := c.ctrl.StopServer(); err != nil {
				fmt.Fprintf(c.out, "failed to stop server: %v\n", err)
				continue
			}
			fmt.Fprintln(c.out, "server stopped")

		case "status":
			if c.ctrl.Running() {
				fmt.Fprintln(c.out, "server is running")
			} else {
				fmt.Fprintln(c.out, "server is stopped")
			}

		case "count":
			fmt.Fprintf(c.out, "client count: %d\n", c.ctrl.ClientCount())

		case "clear":
			if err := c.ctrl.ClearCache(ctx); err != nil {
				fmt.Fprintf(c.out, "failed to clear cache: %v\n", err)
				continue
			}
			fmt.Fprintln(c.out, "cache cleared")

		case "exit":
			return

		case "":
			// empty line, just re-prompt

		default:
			fmt.Fprintln(c.out, "unknown command (start, stop, status, count, clear, exit)")
		}
	}
}

package console

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeController struct {
	running bool
	count   int64
	cleared bool
	fail    bool
}

func (f *fakeController) StartServer() error {
	if f.fail {
		return errors.New("bind failed")
	}
	f.running = true
	return nil
}

func (f *fakeController) StopServer() error {
	f.running = false
	return nil
}

func (f *fakeController) Running() bool      { return f.running }
func (f *fakeController) ClientCount() int64 { return f.count }

func (f *fakeController) ClearCache(ctx context.Context) error {
	f.cleared = true
	return nil
}

func runScript(t *testing.T, ctrl Controller, script string) string {
	t.Helper()
	var out strings.Builder
	New(strings.NewReader(script), &out, ctrl).Run(context.Background())
	return out.String()
}

func TestConsoleLifecycle(t *testing.T) {
	ctrl := &fakeController{count: 3}
	out := runScript(t, ctrl, "status\nstart\nstart\ncount\nstop\nstop\nexit\n")

	for _, want := range []string{
		"server is stopped",
		"server started",
		"server is already running",
		"client count: 3",
		"server stopped",
		"server is not running",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleClear(t *testing.T) {
	ctrl := &fakeController{}
	out := runScript(t, ctrl, "clear\nexit\n")

	if !ctrl.cleared {
		t.Error("clear command did not reach the controller")
	}
	if !strings.Contains(out, "cache cleared") {
		t.Errorf("output missing confirmation:\n%s", out)
	}
}

func TestConsoleStartFailure(t *testing.T) {
	out := runScript(t, &fakeController{fail: true}, "start\nexit\n")
	if !strings.Contains(out, "failed to start server: bind failed") {
		t.Errorf("output missing failure message:\n%s", out)
	}
}

func TestConsoleUnknownCommandAndEOF(t *testing.T) {
	// No trailing exit: the loop must end on input EOF.
	out := runScript(t, &fakeController{}, "bogus\n")
	if !strings.Contains(out, "unknown command") {
		t.Errorf("output missing unknown-command hint:\n%s", out)
	}
}

package process

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestProcess creates a Process with short timeouts for testing.
func newTestProcess(command string) *Process {
	p := New("test", command, testLogger())
	p.SetTimeouts(100*time.Millisecond, 100*time.Millisecond)
	return p
}

// waitExited waits for the process to exit, failing the test on timeout.
func waitExited(t *testing.T, p *Process, timeout time.Duration) {
	t.Helper()
	select {
	case <-p.Exited():
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
	}
}

func TestStdoutIsReturned(t *testing.T) {
	p := newTestProcess(`sh -c "printf frame-data"`)
	stdout, err := p.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	data, err := io.ReadAll(stdout)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "frame-data" {
		t.Errorf("stdout = %q, want %q", data, "frame-data")
	}

	if code, _ := p.Wait(); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestGracefulStop(t *testing.T) {
	p := newTestProcess(`sh -c "trap 'exit 0' INT TERM; while :; do sleep 0.1; done"`)
	p.SetTimeouts(500*time.Millisecond, 0)

	if _, err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if code := p.Stop(); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	p := newTestProcess(`sh -c "trap '' INT; sleep 10"`)
	p.SetTimeouts(50*time.Millisecond, 50*time.Millisecond)

	if _, err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	// Process was killed, expect 137 (128 + 9 for SIGKILL)
	if code := p.Stop(); code != 137 {
		t.Errorf("expected exit code 137, got %d", code)
	}
	if code := p.Stop(); code != 137 {
		t.Errorf("second Stop() = %d, want 137", code)
	}
}

func TestStopAfterExit(t *testing.T) {
	p := newTestProcess("sh -c 'exit 3'")
	if _, err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitExited(t, p, time.Second)

	if code := p.Stop(); code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
}

func TestStopBeforeStart(t *testing.T) {
	p := newTestProcess("sleep 10")
	if code := p.Stop(); code != 0 {
		t.Errorf("expected 0, got %d", code)
	}
	if _, err := p.Wait(); err != ErrNotStarted {
		t.Errorf("Wait() error = %v, want ErrNotStarted", err)
	}
}

func TestStartErrors(t *testing.T) {
	tests := []struct {
		name    string
		command string
	}{
		{"unclosed quote", `echo "unclosed`},
		{"empty", ""},
		{"missing binary", "/nonexistent/command/that/does/not/exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newTestProcess(tt.command).Start(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFirstErrorLatched(t *testing.T) {
	p := newTestProcess(`sh -c "echo 'E: could not connect' >&2; echo 'E: pipeline stopped' >&2; echo 'I: still here' >&2"`)
	p.SetLogParser(nil, func(line string) (string, string) {
		switch {
		case strings.HasPrefix(line, "E: "):
			return "error", line[3:]
		case strings.HasPrefix(line, "I: "):
			return "info", line[3:]
		}
		return "info", line
	})

	stdout, err := p.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	_, _ = io.Copy(io.Discard, stdout)
	waitExited(t, p, time.Second)

	if got := p.FirstError(); got != "could not connect" {
		t.Errorf("FirstError() = %q, want %q", got, "could not connect")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`echo hello\ world`, []string{"echo", "hello world"}},
		{`gst-launch-1.0 -q souphttpsrc location="http://cam/a b" ! fdsink`, []string{"gst-launch-1.0", "-q", "souphttpsrc", "location=http://cam/a b", "!", "fdsink"}},
		{`sh -c 'it"s'`, []string{"sh", "-c", `it"s`}},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.in)
		if err != nil {
			t.Fatalf("ParseCommand(%q) error = %v", tt.in, err)
		}
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("ParseCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

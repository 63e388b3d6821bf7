package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from pipeline output.
type LogParser func(line string) (level, msg string)

// ErrNotStarted is returned by Wait before Start succeeded.
var ErrNotStarted = errors.New("process not started")

// Process runs one subprocess whose stdout carries data and whose stderr
// carries log output.
type Process struct {
	id      string
	command string
	logger  *slog.Logger

	processLogger *slog.Logger // logger for process output (nil = use logger)
	logParser     LogParser    // parses process output for log level (nil = no parsing)

	gracefulTimeout time.Duration // timeout for graceful shutdown before force kill
	killTimeout     time.Duration // timeout after Kill() before giving up

	mu         sync.Mutex
	cmd        *exec.Cmd
	exited     chan struct{}
	exitCode   int
	exitErr    error
	firstError string
	stopOnce   sync.Once
	killed     bool
}

// New creates a process for command. Nothing runs until Start.
func New(id, command string, logger *slog.Logger) *Process {
	return &Process{
		id:              id,
		command:         command,
		logger:          logger,
		gracefulTimeout: 2 * time.Second,
		killTimeout:     2 * time.Second,
	}
}

// Command returns the command line.
func (p *Process) Command() string { return p.command }

// SetLogParser sets a custom logger and log parser for stderr output.
func (p *Process) SetLogParser(logger *slog.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetTimeouts overrides the graceful and kill timeouts used by Stop.
func (p *Process) SetTimeouts(graceful, kill time.Duration) {
	if graceful > 0 {
		p.gracefulTimeout = graceful
	}
	if kill > 0 {
		p.killTimeout = kill
	}
}

// Start launches the subprocess and returns its stdout. The reader hits
// EOF once the process exits; the caller closes it.
func (p *Process) Start() (io.ReadCloser, error) {
	args, err := ParseCommand(p.command)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// A plain pipe instead of StdoutPipe: Wait must not close the read
	// end while the caller is still draining it.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = stdoutW
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdout.Close()
		_ = stdoutW.Close()
		return nil, err
	}
	err = cmd.Start()
	_ = stdoutW.Close()
	if err != nil {
		_ = stdout.Close()
		return nil, err
	}

	exited := make(chan struct{})
	p.mu.Lock()
	p.cmd = cmd
	p.exited = exited
	p.mu.Unlock()

	p.logger.Debug("Process started", "id", p.id, "pid", cmd.Process.Pid)

	go func() {
		p.streamOutput(stderr)
		err := cmd.Wait()
		p.mu.Lock()
		p.exitCode = exitCodeFromError(err)
		p.exitErr = err
		p.mu.Unlock()
		close(exited)
	}()

	return stdout, nil
}

// Wait blocks until the process exits and returns its exit code.
func (p *Process) Wait() (int, error) {
	p.mu.Lock()
	exited := p.exited
	p.mu.Unlock()
	if exited == nil {
		return 1, ErrNotStarted
	}
	<-exited

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exitErr
}

// Exited is closed when the process has exited. It is nil before Start.
func (p *Process) Exited() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}

// FirstError returns the first error-level line the process logged.
func (p *Process) FirstError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstError
}

// Stop sends SIGINT, waits for the graceful timeout, then kills. It returns
// the exit code, 137 when the process had to be killed. Safe to call more
// than once and before Start.
func (p *Process) Stop() int {
	p.mu.Lock()
	cmd, exited := p.cmd, p.exited
	p.mu.Unlock()
	if cmd == nil {
		return 0
	}

	p.stopOnce.Do(func() {
		select {
		case <-exited:
		default:
			p.sendStopSignal(cmd)
			p.killed = p.waitForExit(cmd, exited)
		}
	})
	if p.killed {
		return 137
	}
	code, _ := p.Wait()
	return code
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Process) sendStopSignal(cmd *exec.Cmd) {
	p.logger.Debug("Sending SIGINT to process", "id", p.id, "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "error", err)
	}
}

// waitForExit waits for the process to exit with a timeout, force-killing
// if needed. It reports whether the process was killed.
func (p *Process) waitForExit(cmd *exec.Cmd, exited <-chan struct{}) bool {
	select {
	case <-exited:
		return false
	case <-time.After(p.gracefulTimeout):
		p.logger.Warn("Graceful shutdown timeout, forcing kill", "id", p.id, "timeout", p.gracefulTimeout)
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Error("Failed to kill process", "error", err)
		}
		select {
		case <-exited:
		case <-time.After(p.killTimeout):
			p.logger.Error("Process did not exit after kill signal", "id", p.id)
		}
		return true
	}
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// streamOutput logs each stderr line at the level the parser finds.
func (p *Process) streamOutput(reader io.Reader) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "fatal", "error":
			p.mu.Lock()
			if p.firstError == "" {
				p.firstError = msg
			}
			p.mu.Unlock()
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Debug("Error reading output", "id", p.id, "error", err)
	}
}

// ParseCommand splits a command string into arguments.
// Handles quoted strings and basic escaping.
func ParseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	runes := []rune(strings.TrimSpace(command))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}

	return args, nil
}

// Package testutil holds the command execution seam used by the driver and
// notification backends, plus the mocks and helpers their tests share.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// CommandRunner runs an external command and returns its stdout.
// RunWithStdin feeds stdin to the command; stdin is fully consumed before
// it returns, so it may be backed by memory the caller frees afterwards.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	RunWithStdin(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)
}

// CommandCall records a command invocation for assertion purposes.
type CommandCall struct {
	Name  string
	Args  []string
	Stdin string // copy of what was fed on stdin, if anything
}

// String renders the call the way it would be typed in a shell.
func (c CommandCall) String() string {
	return makeKey(c.Name, c.Args)
}

// DynamicResponseFunc computes a response from the call. Returning
// handled=false falls through to the canned responses.
type DynamicResponseFunc func(ctx context.Context, name string, args []string) (out []byte, err error, handled bool)

// MockRunner returns canned responses keyed by "name arg1 arg2 ...". Keys
// also match as prefixes so variable trailing args can share a response.
// Queued responses are consumed in order before the fixed ones.
type MockRunner struct {
	mu              sync.Mutex
	Responses       map[string][]byte
	Errors          map[string]error
	queued          map[string][]mockResult
	Calls           []CommandCall
	DynamicResponse DynamicResponseFunc
}

type mockResult struct {
	out []byte
	err error
}

// NewMockRunner creates a MockRunner with initialized maps.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		Responses: make(map[string][]byte),
		Errors:    make(map[string]error),
		queued:    make(map[string][]mockResult),
	}
}

// Run records the call and returns the first matching response.
func (m *MockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return m.run(ctx, CommandCall{Name: name, Args: append([]string(nil), args...)})
}

// RunWithStdin reads stdin to the end, records a copy of it with the call
// and responds like Run.
func (m *MockRunner) RunWithStdin(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	call := CommandCall{Name: name, Args: append([]string(nil), args...)}
	if stdin != nil {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		call.Stdin = string(data)
	}
	return m.run(ctx, call)
}

func (m *MockRunner) run(ctx context.Context, call CommandCall) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, call)
	name, args := call.Name, call.Args

	if m.DynamicResponse != nil {
		if out, err, handled := m.DynamicResponse(ctx, name, args); handled {
			return out, err
		}
	}

	key := makeKey(name, args)

	if q := m.queued[key]; len(q) > 0 {
		m.queued[key] = q[1:]
		return q[0].out, q[0].err
	}
	if err, ok := m.Errors[key]; ok {
		return nil, err
	}
	if resp, ok := m.Responses[key]; ok {
		return resp, nil
	}

	for k, err := range m.Errors {
		if strings.HasPrefix(key, k) {
			return nil, err
		}
	}
	for k, resp := range m.Responses {
		if strings.HasPrefix(key, k) {
			return resp, nil
		}
	}

	return nil, fmt.Errorf("unexpected command: %s", key)
}

// SetResponse configures a canned response for a command.
func (m *MockRunner) SetResponse(name string, args []string, response []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[makeKey(name, args)] = response
}

// SetError configures an error response for a command.
func (m *MockRunner) SetError(name string, args []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[makeKey(name, args)] = err
}

// QueueResponse appends a one-shot result for an exact command. Queued
// results are returned in order, then the fixed responses apply again.
func (m *MockRunner) QueueResponse(name string, args []string, out []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := makeKey(name, args)
	m.queued[key] = append(m.queued[key], mockResult{out: out, err: err})
}

// GetCalls returns a copy of all recorded calls.
func (m *MockRunner) GetCalls() []CommandCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]CommandCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// Reset clears recorded calls and queued results.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.queued = make(map[string][]mockResult)
}

func makeKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// ExecRunner runs real commands with os/exec.
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner for production use.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and returns stdout. On a non-zero exit the
// trimmed stderr is folded into the error, since tools like nmcli only
// explain failures there.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return r.RunWithStdin(ctx, nil, name, args...)
}

// RunWithStdin is Run with stdin attached. Output waits for the stdin copy
// to finish before returning.
func (r *ExecRunner) RunWithStdin(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return out, fmt.Errorf("%s: %w: %s", name, err, msg)
			}
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Package processtest provides a recording process.Runner for tests.
package processtest

import (
	"context"
	"strings"
	"sync"

	"github.com/artpar/paasdeploy/internal/shell/process"
)

type rule struct {
	prefix string
	out    []byte
	err    error
	panic  any
}

// Recorder is a process.Runner that records every command and answers from
// rules registered with On, OnPanic and Fail. Commands matching no rule
// succeed with empty output.
type Recorder struct {
	mu    sync.Mutex
	calls []process.Command
	rules []rule
}

// New creates an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

// On makes commands whose rendered line starts with prefix return out and err.
// Earlier rules win.
func (r *Recorder) On(prefix string, out []byte, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{prefix: prefix, out: out, err: err})
	return r
}

// Fail makes commands starting with prefix fail with a non-zero exit.
func (r *Recorder) Fail(prefix string, exitCode int, stderr string) *Recorder {
	return r.On(prefix, nil, &process.ExitError{Command: prefix, ExitCode: exitCode, Stderr: stderr})
}

// OnPanic makes commands starting with prefix panic with v.
func (r *Recorder) OnPanic(prefix string, v any) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{prefix: prefix, panic: v})
	return r
}

// Run implements process.Runner.
func (r *Recorder) Run(_ context.Context, cmd process.Command) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	var match *rule
	line := cmd.String()
	for i := range r.rules {
		if strings.HasPrefix(line, r.rules[i].prefix) {
			match = &r.rules[i]
			break
		}
	}
	r.mu.Unlock()

	if match == nil {
		return nil, nil
	}
	if match.panic != nil {
		panic(match.panic)
	}
	return match.out, match.err
}

// Calls returns the recorded commands in order.
func (r *Recorder) Calls() []process.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]process.Command, len(r.calls))
	copy(out, r.calls)
	return out
}

// Lines returns the recorded commands rendered with Command.String.
func (r *Recorder) Lines() []string {
	calls := r.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}

// Count returns how many recorded commands start with prefix.
func (r *Recorder) Count(prefix string) int {
	n := 0
	for _, line := range r.Lines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

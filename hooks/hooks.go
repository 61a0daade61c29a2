// Package hooks runs OCI lifecycle hooks against a container's State,
// generalising the create orchestrator's prestart-hook step into a
// reusable primitive for the full OCI hook set: argv[0] override, env,
// piped stdin/stderr, and a timeout that is parsed but never enforced.
package hooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirupsen/logrus"
)

// Name identifies which point in the container lifecycle a hook runs at.
type Name string

const (
	Prestart        Name = "prestart"
	CreateRuntime   Name = "createRuntime"
	CreateContainer Name = "createContainer"
	StartContainer  Name = "startContainer"
	Poststart       Name = "poststart"
	Poststop        Name = "poststop"
)

// Hook is one entry of an OCI hook list: a command, its argv/env, and an
// optional timeout that this runner parses but never enforces.
type Hook struct {
	Path    string
	Args    []string
	Env     []string
	Timeout *int
}

// Failed reports a hook that exited non-zero.
type Failed struct {
	Path     string
	ExitCode int
	Stderr   string
}

func (e *Failed) Error() string {
	return fmt.Sprintf("hook %s exited with status %d: %s", e.Path, e.ExitCode, e.Stderr)
}

// List is an ordered set of hooks run against the same State.
type List []Hook

// Run executes every hook in order, writing the marshaled state to each
// hook's stdin and capturing its stderr. It stops and returns *Failed at
// the first non-zero exit. A hook's Timeout field is logged (warn if
// positive, error if <= 0) and never enforced, matching the reference
// runtime's behaviour for prestart hooks.
func (l List) Run(state *specs.State) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling state for hooks: %w", err)
	}

	for _, h := range l {
		logTimeout(h)

		argv0 := h.Path
		args := h.Args
		if len(args) > 0 {
			argv0 = args[0]
			if len(args) > 1 {
				args = args[1:]
			} else {
				args = nil
			}
		} else {
			args = nil
		}

		cmd := &exec.Cmd{
			Path: h.Path,
			Args: append([]string{argv0}, args...),
			Env:  h.Env,
		}
		cmd.Stdin = bytes.NewReader(stateJSON)

		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			exitCode := -1
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			}
			return &Failed{Path: h.Path, ExitCode: exitCode, Stderr: stderr.String()}
		}
	}

	return nil
}

func logTimeout(h Hook) {
	if h.Timeout == nil {
		return
	}
	if *h.Timeout <= 0 {
		logrus.WithField("hook", h.Path).Errorf("hook timeout <= 0: %d", *h.Timeout)
		return
	}
	logrus.WithField("hook", h.Path).Warn("hook timeout is set but not enforced by this runtime")
}

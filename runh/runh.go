// Package runh implements the lifecycle façade (create/start/delete/list/
// state/run) of the runh OCI runtime core.
package runh

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/runh-project/runh/hooks"
	"github.com/runh-project/runh/orchestrate"
	"github.com/runh-project/runh/state"
)

// CreateOptions configures Create.
type CreateOptions struct {
	Root          string
	ID            string
	Bundle        string
	PIDFile       string
	ConsoleSocket string
	LogLevel      string
}

// Container is a handle onto a container's persisted state, returned by
// Create and Load for use by Start.
type Container struct {
	rec *state.Record
	dir *state.Dir
}

// ID returns the container's id.
func (c *Container) ID() string { return c.dir.ID }

// Create persists a new container's state and drives it through the
// create-time handshake, leaving init blocked on exec.fifo.
func Create(opts CreateOptions) (*Container, error) {
	rec, err := orchestrate.Create(orchestrate.Options{
		Root:          opts.Root,
		ID:            opts.ID,
		Bundle:        opts.Bundle,
		PIDFile:       opts.PIDFile,
		ConsoleSocket: opts.ConsoleSocket,
		LogLevel:      opts.LogLevel,
	})
	if err != nil {
		return nil, translate(err)
	}

	dir, err := state.Open(opts.Root, opts.ID)
	if err != nil {
		return nil, translate(err)
	}

	return &Container{rec: rec, dir: dir}, nil
}

// Load reads back the persisted state of an existing container.
func Load(root, id string) (*Container, error) {
	rec, dir, err := state.Load(root, id)
	if err != nil {
		return nil, translate(err)
	}
	return &Container{rec: rec, dir: dir}, nil
}

// Start unblocks init's wait on exec.fifo, letting it execve the configured
// workload (a Linux process or, under HermitCore detection, QEMU/KVM).
// Start requires the container to currently be in the "created" status.
func Start(c *Container) error {
	status, err := c.dir.Status()
	if err != nil {
		return translate(err)
	}
	if status != state.StatusCreated {
		return fmt.Errorf("cannot start container in status %q", status)
	}

	f, err := os.OpenFile(c.dir.FifoPath(), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening exec fifo: %w", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte{0}); err != nil {
		return fmt.Errorf("signaling exec fifo: %w", err)
	}
	// With the fifo gone, Status reports running or stopped from the pid.
	if err := os.Remove(c.dir.FifoPath()); err != nil {
		return fmt.Errorf("removing exec fifo: %w", err)
	}
	return nil
}

// Run composes Create followed immediately by Start, for callers that do
// not need the intermediate "created" state (the OCI "run" command).
func Run(opts CreateOptions) (*Container, error) {
	c, err := Create(opts)
	if err != nil {
		return nil, err
	}
	if err := Start(c); err != nil {
		return nil, err
	}
	return c, nil
}

// State reports the container's current status and its recorded pid.
func State(root, id string) (status state.Status, pid int, err error) {
	c, err := Load(root, id)
	if err != nil {
		return "", 0, err
	}

	status, err = c.dir.Status()
	if err != nil {
		return "", 0, translate(err)
	}

	pidBytes, readErr := os.ReadFile(c.rec.PIDFile)
	if readErr == nil {
		fmt.Sscanf(string(pidBytes), "%d", &pid)
	}

	return status, pid, nil
}

// List enumerates the ids of every container under root.
func List(root string) ([]string, error) {
	ids, err := state.List(root)
	if err != nil {
		return nil, translate(err)
	}
	return ids, nil
}

// Delete removes a container's persisted state. A running container must
// be stopped (or force must be set) before it can be deleted, mirroring
// the reference CLI's status-driven dispatch.
func Delete(root, id string, force bool) error {
	dir, err := state.Open(root, id)
	if err != nil {
		return translate(err)
	}

	status, err := dir.Status()
	if err != nil {
		return translate(err)
	}

	switch status {
	case state.StatusStopped, state.StatusCreated:
	default:
		if !force {
			return fmt.Errorf("container is not stopped: %s", status)
		}
		if err := signalAndWait(root, id); err != nil {
			return err
		}
	}

	if err := state.Delete(root, id); err != nil {
		return translate(err)
	}
	return nil
}

// Kill sends sig to the container's init process.
func Kill(root, id string, sig unix.Signal) error {
	rec, _, err := state.Load(root, id)
	if err != nil {
		return translate(err)
	}

	pidBytes, err := os.ReadFile(rec.PIDFile)
	if err != nil {
		return fmt.Errorf("reading pid file: %w", err)
	}

	var pid int
	if _, err := fmt.Sscanf(string(pidBytes), "%d", &pid); err != nil {
		return fmt.Errorf("parsing pid file: %w", err)
	}

	return unix.Kill(pid, sig)
}

// signalAndWait sends SIGKILL to the container's init, for Delete's --force
// path. An already-exited process (ESRCH) is not an error. It returns as
// soon as the signal is sent; it does not wait for the process to exit.
func signalAndWait(root, id string) error {
	if err := Kill(root, id, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("killing container init: %w", err)
	}
	return nil
}

// translate maps the local error taxonomies of state/orchestrate into the
// runh.* sentinel and typed errors, at the one seam where lower-level
// packages meet the façade.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var protoErr *orchestrate.ProtocolViolation
	if errors.As(err, &protoErr) {
		return &InitProtocolViolation{Step: protoErr.Step, Expected: protoErr.Expected, Got: protoErr.Got}
	}

	var hookErr *hooks.Failed
	if errors.As(err, &hookErr) {
		return &PrestartHookFailed{Path: hookErr.Path, ExitCode: hookErr.ExitCode, Stderr: hookErr.Stderr}
	}

	switch {
	case errors.Is(err, orchestrate.ErrInitDied):
		return ErrInitDied
	case errors.Is(err, state.ErrAlreadyExists):
		return ErrAlreadyExists
	case errors.Is(err, state.ErrNotFound):
		return ErrNotFound
	default:
		return err
	}
}

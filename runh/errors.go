// Package runh implements the lifecycle façade (create/start/delete/list/
// state/run) of the runh OCI runtime core.
package runh

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the façade and the orchestrator it drives.
var (
	ErrAlreadyExists     = errors.New("container already exists")
	ErrNotFound          = errors.New("container does not exist")
	ErrBadBundle         = errors.New("bundle config is missing or unparseable")
	ErrFdSetupFailed     = errors.New("failed to set up a handshake file descriptor")
	ErrSpawnFailed       = errors.New("failed to spawn init process")
	ErrInitDied          = errors.New("init process died mid-handshake")
	ErrEscapesRoot       = errors.New("mount destination escapes rootfs")
	ErrProcShadow        = errors.New("mount destination shadows /proc")
	ErrUnsupportedOption = errors.New("unsupported mount option")
)

// InitProtocolViolation reports that init sent a signal byte other than the
// one expected at a given handshake step.
type InitProtocolViolation struct {
	Step     string
	Expected byte
	Got      byte
}

func (e *InitProtocolViolation) Error() string {
	return fmt.Sprintf("init protocol violation at %s: expected %#x, got %#x", e.Step, e.Expected, e.Got)
}

// PrestartHookFailed reports a non-zero exit from a lifecycle hook run during
// create.
type PrestartHookFailed struct {
	Path     string
	ExitCode int
	Stderr   string
}

func (e *PrestartHookFailed) Error() string {
	return fmt.Sprintf("hook %s exited with status %d: %s", e.Path, e.ExitCode, e.Stderr)
}

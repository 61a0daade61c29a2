// Package spawn launches the runh init helper by re-executing the
// runtime's own binary, handing it a fixed fd-to-slot mapping over
// inherited file descriptors and the RUNH_* environment variables that
// name them: re-exec "/proc/self/exe" with cmd.Args[0] restored to the
// running binary's argv[0], append each handshake fd to cmd.ExtraFiles
// in a fixed order, and record its resulting slot number as an
// environment variable.
package spawn

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// stdioFdCount is the number of pre-opened standard fds (stdin/stdout/
// stderr) that occupy slots 0-2 before cmd.ExtraFiles begins at 3.
const stdioFdCount = 3

// Handshake is the set of file descriptors the spec's create orchestrator
// hands to init. Console is optional; a nil value omits slot 7 and
// RUNH_CONSOLE entirely.
type Handshake struct {
	Fifo     *os.File
	InitPipe *os.File
	SpecFile *os.File
	LogPipe  *os.File
	Console  *os.File
}

// Result is what the parent needs after a successful spawn: the running
// process.
type Result struct {
	Process *os.Process
}

// Launch re-execs the current binary as "<self> -l <level> --log-format
// json init", with fds at the fixed slots 3 (fifo), 4 (init pipe), 5 (spec
// file), 6 (log pipe), and optionally 7 (console), named by the RUNH_FIFOFD,
// RUNH_INITPIPE, RUNH_SPEC_FILE, RUNH_LOG_PIPE, and RUNH_CONSOLE environment
// variables. logLevel is the value of the parent's configured --log-level.
func Launch(h Handshake, logLevel, rootfs string) (*Result, error) {
	cmd := exec.Command("/proc/self/exe", "-l", logLevel, "--log-format", "json", "init")
	cmd.Args[0] = os.Args[0]
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Dir = rootfs
	cmd.SysProcAttr = &unix.SysProcAttr{}

	cmd.ExtraFiles = append(cmd.ExtraFiles, h.Fifo)
	cmd.Env = append(cmd.Env, envSlot("RUNH_FIFOFD", len(cmd.ExtraFiles)))

	cmd.ExtraFiles = append(cmd.ExtraFiles, h.InitPipe)
	cmd.Env = append(cmd.Env, envSlot("RUNH_INITPIPE", len(cmd.ExtraFiles)))

	cmd.ExtraFiles = append(cmd.ExtraFiles, h.SpecFile)
	cmd.Env = append(cmd.Env, envSlot("RUNH_SPEC_FILE", len(cmd.ExtraFiles)))

	cmd.ExtraFiles = append(cmd.ExtraFiles, h.LogPipe)
	cmd.Env = append(cmd.Env, envSlot("RUNH_LOG_PIPE", len(cmd.ExtraFiles)))

	if h.Console != nil {
		cmd.ExtraFiles = append(cmd.ExtraFiles, h.Console)
		cmd.Env = append(cmd.Env, envSlot("RUNH_CONSOLE", len(cmd.ExtraFiles)))
	}

	cmd.Env = append(cmd.Env, os.Environ()...)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning init: %w", err)
	}

	return &Result{Process: cmd.Process}, nil
}

// envSlot formats the RUNH_* environment variable naming the fd at the
// given position within cmd.ExtraFiles (1-indexed there, offset by the
// three standard fds to get the real fd number in the child).
func envSlot(name string, extraFileIndex int) string {
	return fmt.Sprintf("%s=%d", name, stdioFdCount+extraFileIndex-1)
}

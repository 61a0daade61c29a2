package orchestrate

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/opencontainers/runc/libcontainer/utils"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/runh-project/runh/hooks"
	"github.com/runh-project/runh/logforward"
	"github.com/runh-project/runh/spawn"
	"github.com/runh-project/runh/state"
)

// ErrInitDied is returned when the init pipe is closed before the
// handshake completes.
var ErrInitDied = errors.New("init process died mid-handshake")

// ProtocolViolation reports an unexpected signal byte from init.
type ProtocolViolation struct {
	Step     string
	Expected byte
	Got      byte
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("init protocol violation at %s: expected %#x, got %#x", e.Step, e.Expected, e.Got)
}

// Options configures one Create invocation.
type Options struct {
	Root          string
	ID            string
	Bundle        string
	PIDFile       string
	ConsoleSocket string
	LogLevel      string
}

// Create runs the full S0-S10 handshake described by the create
// orchestrator: it persists the container record, spawns init, and drives
// the init-pipe protocol through to the point where init blocks on
// exec.fifo waiting to execve the workload.
func Create(opts Options) (rec *state.Record, err error) {
	spec, err := loadSpec(opts.Bundle)
	if err != nil {
		return nil, fmt.Errorf("loading bundle spec: %w", err)
	}

	// S0: state dir, container.json, exec.fifo.
	rec, dir, err := state.Create(opts.Root, opts.ID, opts.Bundle, opts.PIDFile, spec)
	if err != nil {
		return nil, err
	}

	fifoPath := dir.FifoPath()
	if err := mkfifo(fifoPath); err != nil {
		return nil, fmt.Errorf("creating exec fifo: %w", err)
	}

	rootfs, err := resolveRootfs(opts.Bundle, spec)
	if err != nil {
		return nil, fmt.Errorf("resolving rootfs: %w", err)
	}

	// S1: fds.
	fifo, err := os.OpenFile(fifoPath, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening exec fifo: %w", err)
	}
	defer fifo.Close()

	parentInit, childInit, err := utils.NewSockPair("init")
	if err != nil {
		return nil, fmt.Errorf("creating init pipe: %w", err)
	}
	defer parentInit.Close()

	parentLog, childLog, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating log pipe: %w", err)
	}
	defer parentLog.Close()

	specFile, err := os.Open(filepath.Join(opts.Bundle, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("opening spec file: %w", err)
	}
	defer specFile.Close()

	var console *os.File
	if opts.ConsoleSocket != "" {
		conn, err := net.Dial("unix", opts.ConsoleSocket)
		if err != nil {
			return nil, fmt.Errorf("dialing console socket: %w", err)
		}
		unixConn := conn.(*net.UnixConn)
		f, err := unixConn.File()
		unixConn.Close()
		if err != nil {
			return nil, fmt.Errorf("extracting console socket fd: %w", err)
		}
		console = f
		defer console.Close()
	}

	// S2: spawn, close child copies, start forwarder.
	handshake := spawn.Handshake{
		Fifo:     fifo,
		InitPipe: childInit,
		SpecFile: specFile,
		LogPipe:  childLog,
		Console:  console,
	}
	if _, err := spawn.Launch(handshake, opts.LogLevel, rootfs); err != nil {
		return nil, fmt.Errorf("spawning init: %w", err)
	}
	childInit.Close()
	childLog.Close()
	if console != nil {
		console.Close()
	}

	logsDone := logforward.Start(parentLog, logrus.StandardLogger())

	joinForwarder := func() {
		<-logsDone
	}

	// S3: INIT_HELLO.
	var hello [1]byte
	if _, err := parentInit.Read(hello[:]); err != nil {
		joinForwarder()
		return nil, fmt.Errorf("%w: %v", ErrInitDied, err)
	}

	// S4: SEND_ROOTFS.
	if err := writeLengthPrefixed(parentInit, rootfs); err != nil {
		joinForwarder()
		return nil, fmt.Errorf("sending rootfs to init: %w", err)
	}

	// S5: RECV_PID.
	var pidBuf [4]byte
	if _, err := readFull(parentInit, pidBuf[:]); err != nil {
		joinForwarder()
		return nil, fmt.Errorf("reading grandchild pid: %w", err)
	}
	pid := int(int32(binary.LittleEndian.Uint32(pidBuf[:])))
	if err := state.WritePID(rec, pid); err != nil {
		joinForwarder()
		return nil, fmt.Errorf("writing pid file: %w", err)
	}

	// S6: REQ_PRESTART.
	var sig [1]byte
	if _, err := parentInit.Read(sig[:]); err != nil {
		joinForwarder()
		return nil, fmt.Errorf("reading prestart request: %w", err)
	}
	if sig[0] != InitReqPrestartHooks {
		joinForwarder()
		return nil, &ProtocolViolation{Step: "req_prestart_hooks", Expected: InitReqPrestartHooks, Got: sig[0]}
	}

	// S7: RUN_PRESTART.
	ociState := &specs.State{
		Version: "1.0.2",
		ID:      opts.ID,
		Status:  "created",
		Pid:     pid,
		Bundle:  opts.Bundle,
	}
	if spec.Annotations != nil {
		ociState.Annotations = spec.Annotations
	}

	if spec.Hooks != nil {
		combined := append(hookList(spec.Hooks.CreateRuntime), hookList(spec.Hooks.Prestart)...)
		if err := combined.Run(ociState); err != nil {
			joinForwarder()
			return nil, err
		}
	}

	// S8: ACK_PRESTART.
	if _, err := parentInit.Write([]byte{CreateAckPrestartHooks}); err != nil {
		joinForwarder()
		return nil, fmt.Errorf("acking prestart hooks: %w", err)
	}

	// S9: WAIT_READY.
	var ready [1]byte
	if _, err := parentInit.Read(ready[:]); err != nil {
		joinForwarder()
		return nil, fmt.Errorf("%w: %v", ErrInitDied, err)
	}
	if ready[0] != InitReadyToExecv {
		joinForwarder()
		return nil, &ProtocolViolation{Step: "ready_to_execv", Expected: InitReadyToExecv, Got: ready[0]}
	}

	if logErr := <-logsDone; logErr != nil {
		return nil, fmt.Errorf("forwarding init logs: %w", logErr)
	}

	// S10: DONE.
	return rec, nil
}

func hookList(specHooks []specs.Hook) hooks.List {
	var l hooks.List
	for _, h := range specHooks {
		var timeout *int
		if h.Timeout != nil {
			t := *h.Timeout
			timeout = &t
		}
		l = append(l, hooks.Hook{Path: h.Path, Args: h.Args, Env: h.Env, Timeout: timeout})
	}
	return l
}

func writeLengthPrefixed(w interface{ Write([]byte) (int, error) }, s string) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// loadSpec reads and parses bundle/config.json. A missing or unparseable
// config aborts create before any filesystem side effects other than the
// state directory.
func loadSpec(bundle string) (*specs.Spec, error) {
	f, err := os.Open(filepath.Join(bundle, "config.json"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var spec specs.Spec
	if err := json.NewDecoder(f).Decode(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func resolveRootfs(bundle string, spec *specs.Spec) (string, error) {
	rootPath := "rootfs"
	if spec.Root != nil && spec.Root.Path != "" {
		rootPath = spec.Root.Path
	}
	if !filepath.IsAbs(rootPath) {
		rootPath = filepath.Join(bundle, rootPath)
	}
	return filepath.Abs(rootPath)
}

// mkfifo creates the exec fifo at mode 0644 owned uid=0/gid=0. Chown
// requires CAP_CHOWN when not already running as uid 0; create() is run
// by the runtime as root in practice.
func mkfifo(path string) error {
	if err := unix.Mkfifo(path, 0o644); err != nil {
		return err
	}
	return unix.Chown(path, 0, 0)
}

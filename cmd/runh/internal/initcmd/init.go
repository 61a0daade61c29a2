// Package initcmd implements the "runh init" helper: the process the
// create orchestrator re-execs and drives through the init-pipe wire
// protocol. It owns mount setup and the final execve of the container's
// workload, but deliberately does not implement namespace isolation or
// pivot_root — see setupNamespaces.
package initcmd

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/opencontainers/selinux/go-selinux"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/runh-project/runh/mountengine"
	"github.com/runh-project/runh/orchestrate"
	"github.com/runh-project/runh/unikernel"
)

const stage2Flag = "stage2"

func New() *cobra.Command {
	var stage2 bool

	cmd := &cobra.Command{
		Use:    "init",
		Short:  "Internal: drive the init-pipe handshake and exec the workload",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stage2 {
				return runStage2()
			}
			return runStage1()
		},
	}

	cmd.Flags().BoolVar(&stage2, stage2Flag, false, "internal: run as the forked stage-2 process")
	_ = cmd.Flags().MarkHidden(stage2Flag)
	return cmd
}

func openEnvFd(name string) (*os.File, error) {
	val := os.Getenv(name)
	if val == "" {
		return nil, fmt.Errorf("%s not set", name)
	}
	fd, err := strconv.Atoi(val)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return os.NewFile(uintptr(fd), name), nil
}

// setupNamespaces is the extension point for unshare/pivot_root. The core
// only specifies the wire protocol init must obey, not what happens
// between its messages, so this is a documented no-op.
func setupNamespaces(spec *specs.Spec) error {
	return nil
}

func configureLogPipe(logPipe *os.File) {
	logrus.SetOutput(logPipe)
	logrus.SetFormatter(new(logrus.JSONFormatter))
}

func runStage1() error {
	fifo, err := openEnvFd("RUNH_FIFOFD")
	if err != nil {
		return err
	}
	initPipe, err := openEnvFd("RUNH_INITPIPE")
	if err != nil {
		return err
	}
	specFile, err := openEnvFd("RUNH_SPEC_FILE")
	if err != nil {
		return err
	}
	logPipe, err := openEnvFd("RUNH_LOG_PIPE")
	if err != nil {
		return err
	}
	configureLogPipe(logPipe)

	var spec specs.Spec
	if err := json.NewDecoder(specFile).Decode(&spec); err != nil {
		return fmt.Errorf("decoding bundle spec: %w", err)
	}

	if err := setupNamespaces(&spec); err != nil {
		return fmt.Errorf("setting up namespaces: %w", err)
	}

	// Step 1: hello.
	if _, err := initPipe.Write([]byte{0}); err != nil {
		return fmt.Errorf("sending hello: %w", err)
	}

	// Step 2: receive rootfs.
	rootfs, err := readLengthPrefixed(initPipe)
	if err != nil {
		return fmt.Errorf("reading rootfs: %w", err)
	}

	mountLabel := ""
	if selinux.GetEnabled() && spec.Linux != nil {
		mountLabel = spec.Linux.MountLabel
	}

	if spec.Mounts != nil {
		if err := mountengine.Run(convertMounts(spec.Mounts), rootfs, mountLabel); err != nil {
			return fmt.Errorf("running mount engine: %w", err)
		}
	}

	grandchildPid, err := forkGrandchild(&spec, rootfs, fifo)
	if err != nil {
		return fmt.Errorf("forking grandchild: %w", err)
	}

	// Step 3: send pid.
	var pidBuf [4]byte
	binary.LittleEndian.PutUint32(pidBuf[:], uint32(grandchildPid))
	if _, err := initPipe.Write(pidBuf[:]); err != nil {
		return fmt.Errorf("sending grandchild pid: %w", err)
	}

	// Step 4: request prestart hooks.
	if _, err := initPipe.Write([]byte{orchestrate.InitReqPrestartHooks}); err != nil {
		return fmt.Errorf("requesting prestart hooks: %w", err)
	}

	// Step 5: wait for ack.
	var ack [1]byte
	if _, err := io.ReadFull(initPipe, ack[:]); err != nil {
		return fmt.Errorf("waiting for prestart ack: %w", err)
	}

	// Step 6: ready to execv.
	if _, err := initPipe.Write([]byte{orchestrate.InitReadyToExecv}); err != nil {
		return fmt.Errorf("sending ready-to-execv: %w", err)
	}

	return nil
}

// forkGrandchild re-execs this same binary as the stage-2 process, handing
// it the fifo fd, the workload's argv/env via environment variables and its
// cwd as the working directory, so it can block on the exec barrier and
// execve independently of stage1.
func forkGrandchild(spec *specs.Spec, rootfs string, fifo *os.File) (int, error) {
	argv := []string{"sh"}
	env := os.Environ()
	cwd := rootfs
	selinuxLabel := ""
	if spec.Process != nil {
		if len(spec.Process.Args) > 0 {
			argv = spec.Process.Args
		}
		if len(spec.Process.Env) > 0 {
			env = spec.Process.Env
		}
		if spec.Process.Cwd != "" {
			cwd = spec.Process.Cwd
		}
		selinuxLabel = spec.Process.SelinuxLabel
	}

	argvJSON, err := json.Marshal(argv)
	if err != nil {
		return 0, err
	}
	envJSON, err := json.Marshal(env)
	if err != nil {
		return 0, err
	}
	annotationsJSON, err := json.Marshal(spec.Annotations)
	if err != nil {
		return 0, err
	}

	cmd := exec.Command("/proc/self/exe", "init", "--"+stage2Flag)
	cmd.Args[0] = os.Args[0]
	cmd.Dir = cwd
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{fifo}
	cmd.Env = append([]string{
		"RUNH_STAGE2_FIFOFD=3",
		"RUNH_STAGE2_ARGV=" + string(argvJSON),
		"RUNH_STAGE2_ENV=" + string(envJSON),
		"RUNH_STAGE2_ANNOTATIONS=" + string(annotationsJSON),
		"RUNH_STAGE2_SELINUX_LABEL=" + selinuxLabel,
	}, os.Environ()...)

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	return cmd.Process.Pid, nil
}

// runStage2 blocks on the exec barrier and then replaces this process with
// the configured workload: the unikernel's QEMU/KVM launch if the entry
// binary is a HermitCore image, or a direct execve otherwise.
func runStage2() error {
	fd, err := strconv.Atoi(os.Getenv("RUNH_STAGE2_FIFOFD"))
	if err != nil {
		return fmt.Errorf("parsing stage-2 fifo fd: %w", err)
	}
	// The inherited fd is an O_PATH handle, which cannot be read from;
	// reopen it through /proc/self/fd to get a readable end of the fifo.
	fifo, err := os.OpenFile("/proc/self/fd/"+strconv.Itoa(fd), os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("opening exec fifo: %w", err)
	}
	defer fifo.Close()

	var buf [1]byte
	if _, err := fifo.Read(buf[:]); err != nil {
		return fmt.Errorf("waiting on exec fifo: %w", err)
	}

	var argv, env []string
	if err := json.Unmarshal([]byte(os.Getenv("RUNH_STAGE2_ARGV")), &argv); err != nil {
		return fmt.Errorf("decoding workload argv: %w", err)
	}
	if err := json.Unmarshal([]byte(os.Getenv("RUNH_STAGE2_ENV")), &env); err != nil {
		return fmt.Errorf("decoding workload env: %w", err)
	}
	var annotations map[string]string
	_ = json.Unmarshal([]byte(os.Getenv("RUNH_STAGE2_ANNOTATIONS")), &annotations)

	if len(argv) == 0 {
		return fmt.Errorf("workload has no argv")
	}

	if unikernel.IsHermit(argv[0]) {
		return execUnikernel(argv, annotations)
	}

	if label := os.Getenv("RUNH_STAGE2_SELINUX_LABEL"); label != "" {
		if err := selinux.SetExecLabel(label); err != nil {
			return fmt.Errorf("setting selinux exec label: %w", err)
		}
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		path = argv[0]
	}
	return unix.Exec(path, argv, env)
}

func execUnikernel(argv []string, annotations map[string]string) error {
	kernel := annotations["org.runh.hermit-kernel"]
	if kernel == "" {
		kernel = argv[0]
		logrus.Warn("no org.runh.hermit-kernel annotation set, using the app image as its own kernel loader")
	}

	netCfg := unikernel.NetConfig{Mode: unikernel.NetNone}
	qemuArgv := unikernel.QemuArgs(kernel, argv[0], netCfg, argv, false, hasKVM())

	path, err := exec.LookPath(qemuArgv[0])
	if err != nil {
		path = qemuArgv[0]
	}
	return unix.Exec(path, qemuArgv, os.Environ())
}

func hasKVM() bool {
	_, err := os.Stat("/dev/kvm")
	return err == nil
}

func readLengthPrefixed(r io.Reader) (string, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func convertMounts(specMounts []specs.Mount) []mountengine.Mount {
	mounts := make([]mountengine.Mount, 0, len(specMounts))
	for _, m := range specMounts {
		mounts = append(mounts, mountengine.Mount{
			Destination: m.Destination,
			Type:        m.Type,
			Source:      m.Source,
			Options:     m.Options,
		})
	}
	return mounts
}

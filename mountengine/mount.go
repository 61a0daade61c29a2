// Package mountengine executes a container's mount list inside the target
// rootfs, dispatching by filesystem type and addressing every mount target
// through an O_PATH fd reopened via /proc/self/fd to close the window for a
// symlink swap between path resolution and the mount(2) syscall.
package mountengine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/runh-project/runh/mountopts"
	"github.com/runh-project/runh/saferoot"
)

// ErrProcShadow is returned when a non-special mount's destination would
// shadow rootfs/proc.
var ErrProcShadow = errors.New("mount destination shadows /proc")

// ErrBindNotImplemented is returned for mount type "bind": the reference
// implementation leaves this branch unimplemented (todo!()) and so does
// this port; a future mount engine revision should add it.
var ErrBindNotImplemented = errors.New("mount type \"bind\" is not implemented")

// Mount is one entry of an OCI bundle's spec.mounts list.
type Mount struct {
	Destination string
	Type        string
	Source      string
	Options     []string
}

// Run executes mounts in order against rootfs. mountLabel is the SELinux
// context applied to mounts that accept a label (tmpfs, cgroup, and the
// catch-all "other" case); pass "" when not running under SELinux.
func Run(mounts []Mount, rootfs, mountLabel string) error {
	for _, m := range mounts {
		if err := runOne(m, rootfs, mountLabel); err != nil {
			return fmt.Errorf("mounting %s: %w", m.Destination, err)
		}
	}
	return nil
}

func runOne(m Mount, rootfs, mountLabel string) error {
	dest, err := saferoot.Resolve(rootfs, m.Destination)
	if err != nil {
		return err
	}

	src := m.Source
	if !filepath.IsAbs(src) {
		src = filepath.Join(rootfs, src)
	}

	opts, err := mountopts.Parse(m.Options)
	if err != nil {
		return err
	}

	switch m.Type {
	case "sysfs", "proc":
		info, statErr := os.Stat(dest)
		if statErr != nil && !os.IsNotExist(statErr) {
			return statErr
		}
		if statErr == nil && !info.IsDir() {
			return fmt.Errorf("%s filesystems can only be mounted on directories, got %s", m.Type, dest)
		}
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return err
		}
		return mountWithFlags(m.Type, src, dest, m.Destination, opts, "")

	case "mqueue":
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return err
		}
		return mountWithFlags(m.Type, src, dest, m.Destination, opts, "")

	case "tmpfs":
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return err
		}
		readOnly := opts.MountFlags&unix.MS_RDONLY != 0
		if err := mountWithFlags(m.Type, src, dest, m.Destination, opts, mountLabel); err != nil {
			return err
		}
		if readOnly {
			remountOpts := opts
			remountOpts.MountFlags |= unix.MS_REMOUNT
			return remount(m.Type, src, dest, remountOpts)
		}
		return nil

	case "bind":
		return ErrBindNotImplemented

	case "cgroup":
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return err
		}
		return mountWithFlags("cgroup2", src, dest, m.Destination, opts, mountLabel)

	default:
		if strings.HasPrefix(dest, filepath.Join(rootfs, "proc")+string(filepath.Separator)) || dest == filepath.Join(rootfs, "proc") {
			return fmt.Errorf("%w: %s", ErrProcShadow, dest)
		}
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return err
		}
		return mountWithFlags(m.Type, src, dest, m.Destination, opts, mountLabel)
	}
}

// openThroughProcFD opens dest with O_PATH|O_CLOEXEC and returns both the
// fd and its /proc/self/fd/<n> address, which is what every mount(2) call
// targets so a concurrent symlink swap of dest cannot redirect the mount.
// Before returning, it reads back the fd's link in /proc/self/fd and
// verifies it still points at dest, closing the window between resolving
// dest and issuing the mount where dest could have been swapped for a
// symlink to somewhere else.
func openThroughProcFD(dest string) (*os.File, string, error) {
	f, err := os.OpenFile(dest, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, "", fmt.Errorf("opening mount target %s: %w", dest, err)
	}
	procPath := "/proc/self/fd/" + strconv.Itoa(int(f.Fd()))

	real, err := os.Readlink(procPath)
	if err != nil {
		f.Close()
		return nil, "", fmt.Errorf("reading link of mount target %s: %w", dest, err)
	}
	if real != dest {
		f.Close()
		return nil, "", fmt.Errorf("mount target %s was replaced with %s before the mount could be issued", dest, real)
	}

	return f, procPath, nil
}

func mountWithFlags(device, src, dest, ociDest string, opts mountopts.Options, label string) error {
	if strings.HasPrefix(ociDest, "/dev") || device == "tmpfs" {
		opts.MountFlags &^= unix.MS_RDONLY
	}

	data := opts.Data
	if label != "" {
		if data != "" {
			data += ","
		}
		data += fmt.Sprintf("context=%q", label)
	}

	f, procPath, err := openThroughProcFD(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Mount(src, procPath, device, uintptr(opts.MountFlags), data); err != nil {
		return fmt.Errorf("mount %s -> %s (%s): %w", src, dest, device, err)
	}

	if opts.PropagationFlags != 0 {
		pf, pprocPath, err := openThroughProcFD(dest)
		if err != nil {
			return err
		}
		defer pf.Close()
		if err := unix.Mount("", pprocPath, "", uintptr(opts.PropagationFlags), ""); err != nil {
			return fmt.Errorf("applying propagation for %s: %w", dest, err)
		}
	}

	return nil
}

func remount(device, src, dest string, opts mountopts.Options) error {
	f, procPath, err := openThroughProcFD(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Mount(src, procPath, device, uintptr(opts.MountFlags), ""); err != nil {
		return fmt.Errorf("remounting %s: %w", dest, err)
	}
	return nil
}

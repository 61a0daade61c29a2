package mountengine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRunRejectsBindMounts(t *testing.T) {
	root := t.TempDir()
	err := Run([]Mount{{Destination: "/data", Type: "bind", Source: "/src"}}, root, "")
	if !errors.Is(err, ErrBindNotImplemented) {
		t.Errorf("error = %v, want ErrBindNotImplemented", err)
	}
}

func TestRunRejectsProcShadowForOtherTypes(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "proc", "evil"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := Run([]Mount{{Destination: "/proc/evil", Type: "ext4", Source: "/dev/sda1"}}, root, "")
	if !errors.Is(err, ErrProcShadow) {
		t.Errorf("error = %v, want ErrProcShadow", err)
	}
}

func TestRunRejectsSysfsOnNonDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(root, "sys")
	if err := os.WriteFile(file, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := Run([]Mount{{Destination: "/sys", Type: "sysfs", Source: "sysfs"}}, root, "")
	if err == nil {
		t.Fatal("expected an error mounting sysfs onto a plain file, got nil")
	}
}

func TestRunPropagatesMountOptionErrors(t *testing.T) {
	root := t.TempDir()
	err := Run([]Mount{{Destination: "/x", Type: "tmpfs", Source: "tmpfs", Options: []string{"lazytime"}}}, root, "")
	if err == nil {
		t.Fatal("expected an UnsupportedOptionError to propagate, got nil")
	}
}

func TestRunRejectsEscapingDestination(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Fatal(err)
	}

	err := Run([]Mount{{Destination: "/escape/x", Type: "tmpfs", Source: "tmpfs"}}, root, "")
	if err == nil {
		t.Fatal("expected the escaping destination to be rejected, got nil")
	}
}

// Package state persists and reads back the on-disk record of a single
// container: container.json, its state directory, the exec fifo, and the
// containerpid file.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	securejoin "github.com/cyphar/filepath-securejoin"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

const (
	recordFilename = "container.json"
	fifoFilename   = "exec.fifo"
	pidFilename    = "containerpid"
)

// ErrAlreadyExists is returned by Create when the id's state directory or
// record already exists.
var ErrAlreadyExists = errors.New("container already exists")

// ErrNotFound is returned when an operation targets a missing id.
var ErrNotFound = errors.New("container does not exist")

// Record is the persisted description of one container.
type Record struct {
	ID      string      `json:"id"`
	Bundle  string      `json:"bundle"`
	PIDFile string      `json:"pidfile"`
	Spec    *specs.Spec `json:"spec"`
}

// Status is the observable lifecycle state of a container, derived from
// the presence of exec.fifo and the liveness of the recorded pid.
type Status string

const (
	StatusCreating Status = "creating"
	StatusCreated  Status = "created"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
)

// Dir is a handle onto one container's state directory under a shared
// state root.
type Dir struct {
	Root string
	ID   string
	path string
}

// Open resolves (and validates) the state directory for id under root
// without requiring it to exist yet; use Create to bring it into being.
func Open(root, id string) (*Dir, error) {
	if id == "" {
		return nil, errors.New("container id must not be empty")
	}
	path, err := securejoin.SecureJoin(root, id)
	if err != nil {
		return nil, fmt.Errorf("resolving state directory for %s: %w", id, err)
	}
	return &Dir{Root: root, ID: id, path: path}, nil
}

// Path returns the absolute path of the state directory.
func (d *Dir) Path() string { return d.path }

// FifoPath returns the absolute path of the exec fifo.
func (d *Dir) FifoPath() string { return joinPath(d.path, fifoFilename) }

// recordPath returns the absolute path of container.json.
func (d *Dir) recordPath() string { return joinPath(d.path, recordFilename) }

func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}

// Create makes the state directory and writes bundle/pidfile/spec into
// container.json exactly once; a second Create for the same id fails with
// ErrAlreadyExists. pidFile defaults to "<dir>/containerpid" when empty.
func Create(root, id, bundle, pidFile string, spec *specs.Spec) (*Record, *Dir, error) {
	d, err := Open(root, id)
	if err != nil {
		return nil, nil, err
	}

	if _, err := os.Stat(d.path); err == nil {
		return nil, nil, ErrAlreadyExists
	} else if !os.IsNotExist(err) {
		return nil, nil, err
	}

	if err := os.MkdirAll(root, 0o711); err != nil {
		return nil, nil, fmt.Errorf("creating state root: %w", err)
	}
	if err := os.Mkdir(d.path, 0o711); err != nil {
		if os.IsExist(err) {
			return nil, nil, ErrAlreadyExists
		}
		return nil, nil, fmt.Errorf("creating state directory: %w", err)
	}

	if pidFile == "" {
		pidFile = joinPath(d.path, pidFilename)
	}

	rec := &Record{ID: id, Bundle: bundle, PIDFile: pidFile, Spec: spec}

	f, err := os.OpenFile(d.recordPath(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, nil, ErrAlreadyExists
		}
		return nil, nil, fmt.Errorf("writing container record: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, nil, fmt.Errorf("encoding container record: %w", err)
	}

	return rec, d, nil
}

// Load reads back the container record for an existing id.
func Load(root, id string) (*Record, *Dir, error) {
	d, err := Open(root, id)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(d.recordPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	defer f.Close()

	var rec Record
	if err := json.NewDecoder(f).Decode(&rec); err != nil {
		return nil, nil, fmt.Errorf("decoding container record: %w", err)
	}
	return &rec, d, nil
}

// List enumerates the ids of containers present under root.
func List(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// Delete removes the state directory for id, failing ErrNotFound if it is
// already absent.
func Delete(root, id string) error {
	d, err := Open(root, id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(d.path); os.IsNotExist(err) {
		return ErrNotFound
	}
	return os.RemoveAll(d.path)
}

// Status derives the observable lifecycle status of the container at d:
// the exec fifo's presence means "created but not started"; once it is
// gone, the recorded pid's liveness distinguishes running from stopped.
func (d *Dir) Status() (Status, error) {
	if _, err := os.Stat(d.FifoPath()); err == nil {
		return StatusCreated, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	rec, _, err := Load(d.Root, d.ID)
	if err != nil {
		return "", err
	}

	pidBytes, err := os.ReadFile(rec.PIDFile)
	if err != nil {
		if os.IsNotExist(err) {
			return StatusStopped, nil
		}
		return "", err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidBytes)))
	if err != nil {
		return "", fmt.Errorf("parsing pid file %s: %w", rec.PIDFile, err)
	}

	if processAlive(pid) {
		return StatusRunning, nil
	}
	return StatusStopped, nil
}

// WritePID records the init process pid at rec.PIDFile.
func WritePID(rec *Record, pid int) error {
	return os.WriteFile(rec.PIDFile, []byte(strconv.Itoa(pid)), 0o644)
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 is the standard
	// liveness probe (see kill(2)).
	return proc.Signal(syscall.Signal(0)) == nil
}

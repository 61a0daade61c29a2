package runh

import (
	"os"
	"testing"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/runh-project/runh/state"
)

func TestDeleteRemovesCreatedContainer(t *testing.T) {
	root := t.TempDir()
	spec := &specs.Spec{Version: "1.0.2"}

	if _, _, err := state.Create(root, "c1", "/bundle", "", spec); err != nil {
		t.Fatalf("state.Create: %v", err)
	}
	dir, err := state.Open(root, "c1")
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	if err := os.WriteFile(dir.FifoPath(), nil, 0o644); err != nil {
		t.Fatalf("writing fake fifo: %v", err)
	}

	if err := Delete(root, "c1", false); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(dir.Path()); !os.IsNotExist(err) {
		t.Fatalf("state directory still exists after Delete: %v", err)
	}
}

func TestDeleteRefusesRunningWithoutForce(t *testing.T) {
	root := t.TempDir()
	spec := &specs.Spec{Version: "1.0.2"}

	rec, _, err := state.Create(root, "c2", "/bundle", "", spec)
	if err != nil {
		t.Fatalf("state.Create: %v", err)
	}
	if err := state.WritePID(rec, os.Getpid()); err != nil {
		t.Fatalf("WritePID: %v", err)
	}

	if err := Delete(root, "c2", false); err == nil {
		t.Fatal("expected Delete to refuse a running container without force")
	}
}

func TestListEnumeratesContainers(t *testing.T) {
	root := t.TempDir()
	spec := &specs.Spec{Version: "1.0.2"}

	for _, id := range []string{"a", "b"} {
		if _, _, err := state.Create(root, id, "/bundle", "", spec); err != nil {
			t.Fatalf("state.Create(%s): %v", id, err)
		}
	}

	ids, err := List(root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("List returned %d ids, want 2", len(ids))
	}
}

func TestStateReportsCreatedStatus(t *testing.T) {
	root := t.TempDir()
	spec := &specs.Spec{Version: "1.0.2"}

	if _, _, err := state.Create(root, "c3", "/bundle", "", spec); err != nil {
		t.Fatalf("state.Create: %v", err)
	}
	dir, err := state.Open(root, "c3")
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	if err := os.WriteFile(dir.FifoPath(), nil, 0o644); err != nil {
		t.Fatalf("writing fake fifo: %v", err)
	}

	status, _, err := State(root, "c3")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if status != state.StatusCreated {
		t.Errorf("status = %s, want %s", status, state.StatusCreated)
	}
}

func TestLoadMissingReturnsErrNotFound(t *testing.T) {
	root := t.TempDir()
	_, err := Load(root, "missing")
	if err != ErrNotFound {
		t.Fatalf("Load error = %v, want ErrNotFound", err)
	}
}

func TestStartRequiresCreatedStatus(t *testing.T) {
	root := t.TempDir()
	spec := &specs.Spec{Version: "1.0.2"}

	rec, dir, err := state.Create(root, "c4", "/bundle", "", spec)
	if err != nil {
		t.Fatalf("state.Create: %v", err)
	}
	if err := state.WritePID(rec, os.Getpid()); err != nil {
		t.Fatalf("WritePID: %v", err)
	}
	c := &Container{rec: rec, dir: dir}
	if err := Start(c); err == nil {
		t.Fatal("expected Start to refuse a non-created container")
	}
}

package initcmd

import (
	"bytes"
	"encoding/binary"
	"testing"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

func TestReadLengthPrefixedRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], 9)
	buf.Write(lenBuf[:])
	buf.WriteString("/mnt/root")

	got, err := readLengthPrefixed(&buf)
	if err != nil {
		t.Fatalf("readLengthPrefixed: %v", err)
	}
	if got != "/mnt/root" {
		t.Errorf("got %q, want /mnt/root", got)
	}
}

func TestReadLengthPrefixedTruncatedFails(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], 100)
	buf.Write(lenBuf[:])
	buf.WriteString("short")

	if _, err := readLengthPrefixed(&buf); err == nil {
		t.Fatal("expected an error reading a truncated payload")
	}
}

func TestConvertMountsPreservesFields(t *testing.T) {
	specMounts := []specs.Mount{
		{Destination: "/proc", Type: "proc", Source: "proc", Options: []string{"nosuid"}},
	}

	got := convertMounts(specMounts)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Destination != "/proc" || got[0].Type != "proc" || got[0].Source != "proc" {
		t.Errorf("mount = %+v, want matching fields", got[0])
	}
	if len(got[0].Options) != 1 || got[0].Options[0] != "nosuid" {
		t.Errorf("options = %v, want [nosuid]", got[0].Options)
	}
}

func TestSetupNamespacesIsANoOp(t *testing.T) {
	if err := setupNamespaces(&specs.Spec{}); err != nil {
		t.Fatalf("setupNamespaces returned an error: %v", err)
	}
}

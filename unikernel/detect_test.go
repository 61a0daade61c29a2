package unikernel

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func writeMinimalELF(t *testing.T, path string, osabi elf.OSABI) {
	t.Helper()

	var ident [16]byte
	ident[elf.EI_MAG0] = '\x7f'
	ident[elf.EI_MAG1] = 'E'
	ident[elf.EI_MAG2] = 'L'
	ident[elf.EI_MAG3] = 'F'
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	ident[elf.EI_OSABI] = byte(osabi)

	hdr := elf.Header64{
		Ehsize:    64,
		Phentsize: 56,
		Shentsize: 64,
		Version:   uint32(elf.EV_CURRENT),
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_X86_64),
	}
	copy(hdr.Ident[:], ident[:])

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, hdr); err != nil {
		t.Fatal(err)
	}
}

func TestIsHermitTrueForHermitOSABI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.elf")
	writeMinimalELF(t, path, elf.OSABI(hermitOSABI))

	if !IsHermit(path) {
		t.Error("IsHermit = false, want true for EI_OSABI=0xFF")
	}
}

func TestIsHermitFalseForLinuxOSABI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.elf")
	writeMinimalELF(t, path, elf.ELFOSABI_LINUX)

	if IsHermit(path) {
		t.Error("IsHermit = true, want false for a regular Linux ELF")
	}
}

func TestIsHermitFalseForNonELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	if IsHermit(path) {
		t.Error("IsHermit = true, want false for a shell script")
	}
}

func TestIsHermitFalseForMissingFile(t *testing.T) {
	if IsHermit(filepath.Join(t.TempDir(), "does-not-exist")) {
		t.Error("IsHermit = true, want false for a missing file")
	}
}

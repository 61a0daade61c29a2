// Package unikernel classifies entrypoint binaries as HermitCore unikernel
// images and builds the QEMU/KVM launch argv for them, plus the host-side
// TAP device provisioning their networking needs.
package unikernel

import (
	"debug/elf"
	"os"

	"github.com/sirupsen/logrus"
)

// hermitOSABI is the ELF e_ident[EI_OSABI] value HermitCore images carry.
const hermitOSABI = 0xFF

// IsHermit reports whether the ELF file at path is a HermitCore unikernel
// image: e_ident[EI_OSABI] == 0xFF. Non-ELF files (scripts, text) are not
// an error; they simply report false, with a warning logged.
func IsHermit(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		logrus.WithError(err).WithField("path", path).Warn("unikernel: could not open entrypoint for ELF inspection")
		return false
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		logrus.WithField("path", path).Warn("unikernel: entrypoint is not an ELF binary")
		return false
	}

	return ef.OSABI == elf.OSABI(hermitOSABI)
}

package unikernel

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// NetMode selects how the guest's QEMU instance reaches the network.
type NetMode int

const (
	NetNone NetMode = iota
	NetTap
	NetUser
)

// NetConfig is the unikernel path's network config variant: Tap carries
// addressing info for a pre-provisioned macvtap fd, User asks QEMU's
// user-mode networking to forward a single port, None disables networking.
type NetConfig struct {
	Mode NetMode

	// Tap fields.
	TapFD   int
	MAC     net.HardwareAddr
	IP      net.IP
	Gateway net.IP
	Mask    net.IPMask

	// User fields.
	Port int
}

// QemuArgs builds the ordered qemu-system-x86_64 argv for launching a
// HermitCore unikernel image, per the fixed prefix / cpu flags / microvm
// flags / net dispatch / trailing appended-args rules.
func QemuArgs(kernel, app string, netCfg NetConfig, appArgs []string, microVM, kvm bool) []string {
	args := []string{
		"qemu-system-x86_64",
		"-display", "none",
		"-smp", "1",
		"-m", "1G",
		"-serial", "stdio",
		"-kernel", kernel,
		"-initrd", app,
	}

	if kvm {
		args = append(args, "--enable-kvm", "-cpu", "host")
	} else {
		args = append(args, "-cpu", "qemu64,apic,fsgsbase,rdtscp,xsave,xsaveopt,fxsr,rdrand")
	}

	if microVM {
		args = append(args,
			"-M", "microvm,x-option-roms=off,pit=off,pic=off,rtc=on,auto-kernel-cmdline=off",
			"-global", "virtio-mmio.force-legacy=off",
			"-nodefaults",
			"-no-user-config",
			"-device", "isa-debug-exit,iobase=0xf4,iosize=0x04",
		)
	}

	netArgs, cmdline := netArgsAndCmdline(netCfg, microVM)
	args = append(args, netArgs...)

	if len(appArgs) > 1 {
		cmdline += " -- " + strings.Join(appArgs[1:], " ")
	}

	return append(args, "-append", cmdline)
}

func netArgsAndCmdline(n NetConfig, microVM bool) (args []string, cmdline string) {
	switch n.Mode {
	case NetTap:
		device := "virtio-net-device,netdev=net0,mac=" + n.MAC.String()
		if !microVM {
			device = "virtio-net-pci,netdev=net0,disable-legacy=on,mac=" + n.MAC.String()
		}
		args = []string{
			"-netdev", "tap,id=net0,fd=" + strconv.Itoa(n.TapFD),
			"-device", device,
		}
		cmdline = fmt.Sprintf("-ip %s -gateway %s -mask %s", n.IP.String(), n.Gateway.String(), net.IP(n.Mask).String())

	case NetUser:
		args = []string{
			"-netdev", fmt.Sprintf("user,id=u1,hostfwd=tcp::%d-:%d,net=192.168.76.0/24,dhcpstart=192.168.76.9", n.Port, n.Port),
			"-device", "virtio-net-pci,netdev=u1",
		}
		cmdline = ""

	case NetNone:
		// no args, no cmdline
	}

	return args, cmdline
}

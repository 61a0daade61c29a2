package unikernel

import (
	"net"
	"strings"
	"testing"
)

func TestQemuArgsMicrovmUserNet(t *testing.T) {
	netCfg := NetConfig{Mode: NetUser, Port: 8080}
	args := QemuArgs("k", "a", netCfg, []string{"app", "--x"}, true, true)

	got := strings.Join(args, " ")

	wantPrefix := "qemu-system-x86_64 -display none -smp 1 -m 1G -serial stdio -kernel k -initrd a --enable-kvm -cpu host -M microvm,x-option-roms=off,pit=off,pic=off,rtc=on,auto-kernel-cmdline=off"
	if !strings.HasPrefix(got, wantPrefix) {
		t.Errorf("argv = %q\n  does not start with %q", got, wantPrefix)
	}

	if !strings.Contains(got, "-netdev user,id=u1,hostfwd=tcp::8080-:8080,net=192.168.76.0/24,dhcpstart=192.168.76.9") {
		t.Errorf("argv missing expected user-net -netdev flag: %q", got)
	}

	if !strings.HasSuffix(got, `-append  -- --x`) {
		t.Errorf("argv = %q, want suffix '-append  -- --x' (append flag then the literal cmdline \" -- --x\")", got)
	}
}

func TestQemuArgsTapNet(t *testing.T) {
	netCfg := NetConfig{
		Mode:    NetTap,
		TapFD:   7,
		MAC:     net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		IP:      net.IPv4(10, 0, 0, 2),
		Gateway: net.IPv4(10, 0, 0, 1),
		Mask:    net.CIDRMask(24, 32),
	}
	args := QemuArgs("k", "a", netCfg, []string{"app"}, false, false)
	got := strings.Join(args, " ")

	if !strings.Contains(got, "-netdev tap,id=net0,fd=7") {
		t.Errorf("argv missing tap -netdev flag: %q", got)
	}
	if !strings.Contains(got, "-device virtio-net-pci,netdev=net0,disable-legacy=on,mac=02:00:00:00:00:01") {
		t.Errorf("argv missing virtio-net-pci device with legacy disabled: %q", got)
	}
	if !strings.Contains(got, "-ip 10.0.0.2 -gateway 10.0.0.1 -mask 255.255.255.0") {
		t.Errorf("argv missing guest cmdline net args: %q", got)
	}
}

func TestQemuArgsNoNet(t *testing.T) {
	args := QemuArgs("k", "a", NetConfig{Mode: NetNone}, []string{"app"}, false, false)
	got := strings.Join(args, " ")

	if !strings.HasSuffix(got, "-append ") {
		t.Errorf("argv = %q, want empty trailing cmdline for NetNone with no extra args", got)
	}
}

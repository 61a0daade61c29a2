package unikernel

import (
	"fmt"
	"strconv"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// NewTapDevice provisions a macvtap link bridged to the host's default
// route's interface and opens its /dev/tapN device, returning a NetConfig
// ready to pass to QemuArgs. name is the macvtap link name (e.g. "runhtap0")
// and must not already exist: find the default route, read its interface's
// address, create a bridged macvtap on that interface, open its tap device
// file, and report the discovered addressing alongside the fd.
func NewTapDevice(name string) (NetConfig, error) {
	route, err := defaultRoute()
	if err != nil {
		return NetConfig{}, fmt.Errorf("getting default route: %w", err)
	}
	if route == nil {
		return NetConfig{}, fmt.Errorf("no default route in this network namespace")
	}

	parent, err := netlink.LinkByIndex(route.LinkIndex)
	if err != nil {
		return NetConfig{}, fmt.Errorf("getting parent link %d: %w", route.LinkIndex, err)
	}

	addr, err := firstIPv4Address(parent)
	if err != nil {
		return NetConfig{}, fmt.Errorf("getting address of %s: %w", parent.Attrs().Name, err)
	}
	if addr == nil {
		return NetConfig{}, fmt.Errorf("interface %s has no IPv4 address", parent.Attrs().Name)
	}

	mvt, err := createBridgedMacvtap(name, route.LinkIndex)
	if err != nil {
		return NetConfig{}, fmt.Errorf("creating macvtap %s: %w", name, err)
	}

	tapPath := "/dev/tap" + strconv.Itoa(mvt.Index)
	fd, err := unix.Open(tapPath, unix.O_RDWR, 0)
	if err != nil {
		return NetConfig{}, fmt.Errorf("opening %s: %w", tapPath, err)
	}

	if err := netlink.AddrDel(parent, addr); err != nil {
		return NetConfig{}, fmt.Errorf("removing address from %s: %w", parent.Attrs().Name, err)
	}

	return NetConfig{
		Mode:    NetTap,
		TapFD:   fd,
		MAC:     mvt.HardwareAddr,
		IP:      addr.IP,
		Gateway: route.Gw,
		Mask:    addr.IPNet.Mask,
	}, nil
}

func defaultRoute() (*netlink.Route, error) {
	routes, err := netlink.RouteListFiltered(netlink.FAMILY_V4, &netlink.Route{Dst: nil}, netlink.RT_FILTER_DST)
	if err != nil {
		return nil, fmt.Errorf("listing default routes: %w", err)
	}
	if len(routes) == 0 {
		return nil, nil
	}
	if len(routes) > 1 {
		return nil, fmt.Errorf("found %d default routes, expected at most one", len(routes))
	}
	return &routes[0], nil
}

func firstIPv4Address(l netlink.Link) (*netlink.Addr, error) {
	addrs, err := netlink.AddrList(l, netlink.FAMILY_V4)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, nil
	}
	return &addrs[0], nil
}

func createBridgedMacvtap(name string, parentIndex int) (*netlink.Macvtap, error) {
	if _, err := netlink.LinkByName(name); err == nil {
		return nil, fmt.Errorf("link %s already exists", name)
	}

	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	attrs.ParentIndex = parentIndex

	mvt := &netlink.Macvtap{
		Macvlan: netlink.Macvlan{
			LinkAttrs: attrs,
			Mode:      netlink.MACVLAN_MODE_BRIDGE,
		},
	}

	if err := netlink.LinkAdd(mvt); err != nil {
		return nil, fmt.Errorf("adding link: %w", err)
	}
	if err := netlink.LinkSetUp(mvt); err != nil {
		return nil, fmt.Errorf("bringing link up: %w", err)
	}

	refreshed, err := netlink.LinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("refreshing link attributes: %w", err)
	}
	return refreshed.(*netlink.Macvtap), nil
}

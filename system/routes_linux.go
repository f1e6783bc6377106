//go:build linux

package system

import (
	"fmt"
	"net"

	"github.com/davidbalbert/spfd/ospf"
	"github.com/vishvananda/netlink"
)

// KernelFIB programs routes into a kernel routing table through netlink.
// Routes without a gateway are directly attached and already known to the
// kernel, so they are left alone.
type KernelFIB struct {
	table int
}

func NewKernelFIB(table int) (FIB, error) {
	return &KernelFIB{table: table}, nil
}

func (f *KernelFIB) netlinkRoute(route ospf.Route) (*netlink.Route, error) {
	link, err := netlink.LinkByName(route.Interface)
	if err != nil {
		return nil, fmt.Errorf("failed to get device %s: %w", route.Interface, err)
	}

	return &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Dst: &net.IPNet{
			IP:   net.IP(route.Prefix.Addr().AsSlice()),
			Mask: net.CIDRMask(route.Prefix.Bits(), 32),
		},
		Gw:       net.IP(route.Gateway.AsSlice()),
		Priority: int(route.Metric),
		Table:    f.table,
	}, nil
}

func (f *KernelFIB) ReplaceRoute(route ospf.Route) error {
	if !route.Gateway.IsValid() {
		return nil
	}

	nr, err := f.netlinkRoute(route)
	if err != nil {
		return err
	}

	return netlink.RouteReplace(nr)
}

func (f *KernelFIB) DeleteRoute(route ospf.Route) error {
	if !route.Gateway.IsValid() {
		return nil
	}

	nr, err := f.netlinkRoute(route)
	if err != nil {
		return err
	}

	return netlink.RouteDel(nr)
}

package main

import (
	"io"
	"log/slog"
	"net"
	"net/netip"
	"testing"

	"github.com/davidbalbert/spfd/common"
	"github.com/davidbalbert/spfd/ospf"
	"github.com/davidbalbert/spfd/system"
	"github.com/stretchr/testify/require"
)

func sysIface(name string, index int, flags net.Flags, prefixes ...string) system.Interface {
	sys := system.Interface{
		Interface: net.Interface{Name: name, Index: index, Flags: flags},
	}
	for _, p := range prefixes {
		sys.Prefixes = append(sys.Prefixes, netip.MustParsePrefix(p))
	}

	return sys
}

func TestAttachInterfaces(t *testing.T) {
	r := ospf.NewRouter(common.RouterID(0x0a000001), nil, nil)

	a := ospf.NewArea(common.Backbone)
	eth0 := &ospf.Interface{Name: "eth0", Type: ospf.InterfaceBroadcast, State: ospf.IfDown, Cost: 10}
	eth1 := &ospf.Interface{Name: "eth1", Type: ospf.InterfacePointToPoint, State: ospf.IfDown, Prefix: netip.MustParsePrefix("10.1.0.1/30"), Cost: 10}
	eth2 := &ospf.Interface{Name: "eth2", Type: ospf.InterfaceBroadcast, State: ospf.IfDown, Prefix: netip.MustParsePrefix("10.2.0.1/24"), Cost: 10}
	eth3 := &ospf.Interface{Name: "eth3", Type: ospf.InterfaceBroadcast, State: ospf.IfDown, Cost: 10}
	lo := &ospf.Interface{Name: "lo", Type: ospf.InterfaceBroadcast, State: ospf.IfDown, Cost: 10}
	missing := &ospf.Interface{Name: "eth9", Type: ospf.InterfaceBroadcast, State: ospf.IfDown, Cost: 10}
	for _, iface := range []*ospf.Interface{eth0, eth1, eth2, eth3, lo, missing} {
		a.AddInterface(iface)
	}
	r.AddArea(a)

	sys := []system.Interface{
		sysIface("eth0", 2, net.FlagUp, "10.0.0.1/24"),
		sysIface("eth1", 3, net.FlagUp|net.FlagPointToPoint, "10.1.0.1/30"),
		sysIface("eth2", 4, net.FlagUp, "10.2.9.1/24"),
		sysIface("eth3", 5, 0, "10.3.0.1/24"),
		sysIface("lo", 1, net.FlagUp|net.FlagLoopback, "127.0.0.1/8"),
	}

	attachInterfaces(r, sys, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.Equal(t, ospf.IfDR, eth0.State)
	require.Equal(t, 2, eth0.Index)
	require.Equal(t, netip.MustParsePrefix("10.0.0.1/24"), eth0.Prefix)
	require.Equal(t, netip.MustParseAddr("10.0.0.1"), eth0.DRAddr)
	require.Equal(t, r.ID, eth0.DRID)

	require.Equal(t, ospf.IfPointToPoint, eth1.State)
	require.Equal(t, 3, eth1.Index)

	// configured address isn't on the system interface
	require.Equal(t, ospf.IfDown, eth2.State)

	// administratively down
	require.Equal(t, ospf.IfDown, eth3.State)

	require.Equal(t, ospf.IfLoopback, lo.State)
	require.Equal(t, ospf.IfDown, missing.State)
}

func TestNewLogger(t *testing.T) {
	_, _, err := newLogger("loud", "")
	require.Error(t, err)

	log, closer, err := newLogger("debug", "")
	require.NoError(t, err)
	require.NoError(t, closer.Close())
	require.True(t, log.Enabled(t.Context(), slog.LevelDebug))
}

package config

import (
	"log/slog"
	"net/netip"
	"slices"

	"github.com/davidbalbert/spfd/ospf"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/maps"
)

// NewRouter builds a router with every configured area and interface.
// Interfaces start out Down. External routes are returned rather than
// installed, since originating them requires a running router.
func (c *OSPFConfig) NewRouter(log *slog.Logger, reg prometheus.Registerer) (*ospf.Router, map[netip.Prefix]ospf.ASExternalContents) {
	r := ospf.NewRouter(c.RouterID, log, reg)
	r.RFC1583Compatibility = c.RFC1583Compatibility

	ids := maps.Keys(c.Areas)
	slices.Sort(ids)

	for _, id := range ids {
		ac := c.Areas[id]

		a := ospf.NewArea(id)
		a.ExternalRoutingCapability = !ac.Stub
		a.StubDefaultCost = ac.StubDefaultCost

		for _, p := range sortedPrefixes(ac.Ranges) {
			a.AddressRanges = append(a.AddressRanges, ospf.AddressRange{
				Prefix:    p,
				Advertise: ac.Ranges[p].Advertise,
			})
		}

		for _, p := range sortedPrefixes(ac.Hosts) {
			a.HostRoutes = append(a.HostRoutes, ospf.HostRoute{
				Prefix: p,
				Cost:   ac.Hosts[p].Cost,
			})
		}

		names := maps.Keys(ac.Interfaces)
		slices.Sort(names)

		for _, name := range names {
			ic := ac.Interfaces[name]
			a.AddInterface(&ospf.Interface{
				Name:   name,
				Type:   ic.Type,
				State:  ospf.IfDown,
				Prefix: ic.Address,
				Cost:   ic.Cost,
			})
		}

		vls := maps.Keys(ac.VirtualLinks)
		slices.Sort(vls)

		for _, rid := range vls {
			vl := &ospf.Interface{
				Name:          "vlink-" + rid.String(),
				Type:          ospf.InterfaceVirtualLink,
				State:         ospf.IfDown,
				Cost:          ac.Cost,
				TransitAreaID: ac.VirtualLinks[rid].TransitArea,
			}
			vl.AddNeighbor(&ospf.Neighbor{ID: rid, State: ospf.NbrDown})
			a.AddInterface(vl)
		}

		r.AddArea(a)
	}

	externals := make(map[netip.Prefix]ospf.ASExternalContents, len(c.ExternalRoutes))
	for p, ec := range c.ExternalRoutes {
		externals[p] = ospf.ASExternalContents{
			Bits:              p.Bits(),
			Cost:              ec.Cost,
			MetricType:        ec.MetricType,
			ForwardingAddress: ec.ForwardingAddress,
			RouteTag:          ec.Tag,
		}
	}

	return r, externals
}

func sortedPrefixes[V any](m map[netip.Prefix]V) []netip.Prefix {
	prefixes := maps.Keys(m)
	slices.SortFunc(prefixes, func(a, b netip.Prefix) int {
		if c := a.Addr().Compare(b.Addr()); c != 0 {
			return c
		}
		return a.Bits() - b.Bits()
	})

	return prefixes
}

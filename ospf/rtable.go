package ospf

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"

	"github.com/davidbalbert/spfd/common"
)

type DestinationType uint8

const (
	DestinationNetwork          DestinationType = 0
	DestinationAreaBorderRouter DestinationType = 1 << 0
	DestinationASBoundaryRouter DestinationType = 1 << 1
)

func (dt DestinationType) String() string {
	if dt == DestinationNetwork {
		return "Network"
	}

	var parts []string
	if dt&DestinationAreaBorderRouter != 0 {
		parts = append(parts, "ABR")
	}
	if dt&DestinationASBoundaryRouter != 0 {
		parts = append(parts, "ASBR")
	}

	return strings.Join(parts, "+")
}

type PathType int

const (
	IntraArea PathType = iota
	InterArea
	Type1External
	Type2External
)

func (pt PathType) String() string {
	switch pt {
	case IntraArea:
		return "intra-area"
	case InterArea:
		return "inter-area"
	case Type1External:
		return "type-1 external"
	case Type2External:
		return "type-2 external"
	default:
		return "unknown"
	}
}

// RoutingTableEntry is the output of a routing table calculation. Router
// destinations always have a /32 mask.
type RoutingTableEntry struct {
	DestinationType DestinationType
	Destination     netip.Addr
	Bits            int
	Area            common.AreaID
	PathType        PathType
	Cost            uint32
	Type2Cost       uint32
	Options         uint8
	NextHops        []NextHop

	// LSA that justified this entry. Resolved through Router.FindLSA.
	Origin     Key
	OriginArea common.AreaID
}

func (e *RoutingTableEntry) Prefix() netip.Prefix {
	return netip.PrefixFrom(e.Destination, e.Bits).Masked()
}

func (e *RoutingTableEntry) isNetwork() bool {
	return e.DestinationType == DestinationNetwork
}

func (e *RoutingTableEntry) isBorderRouter() bool {
	return e.DestinationType&(DestinationAreaBorderRouter|DestinationASBoundaryRouter) != 0
}

func (e *RoutingTableEntry) addNextHops(hops ...NextHop) {
	e.NextHops = mergeNextHops(e.NextHops, hops...)
}

func (e *RoutingTableEntry) clone() *RoutingTableEntry {
	c := *e
	c.NextHops = slices.Clone(e.NextHops)
	return &c
}

// Equal ignores next hop order.
func (e *RoutingTableEntry) Equal(other *RoutingTableEntry) bool {
	if e.DestinationType != other.DestinationType || e.Destination != other.Destination ||
		e.Bits != other.Bits || e.Area != other.Area || e.PathType != other.PathType ||
		e.Cost != other.Cost || e.Type2Cost != other.Type2Cost || e.Options != other.Options {
		return false
	}

	if len(e.NextHops) != len(other.NextHops) {
		return false
	}

	for _, nh := range e.NextHops {
		if !slices.Contains(other.NextHops, nh) {
			return false
		}
	}

	return true
}

func (e *RoutingTableEntry) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s area %s %s cost %d", e.DestinationType, e.Prefix(), e.Area, e.PathType, e.Cost)
	if e.PathType == Type2External {
		fmt.Fprintf(&b, "/%d", e.Type2Cost)
	}

	for _, nh := range e.NextHops {
		fmt.Fprintf(&b, " [%s]", nh)
	}

	return b.String()
}

type tableKey struct {
	prefix netip.Prefix
	router bool
}

func (e *RoutingTableEntry) key() tableKey {
	return tableKey{prefix: e.Prefix(), router: !e.isNetwork()}
}

// findNetworkEntry returns the network entry whose destination is exactly
// prefix.
func findNetworkEntry(table []*RoutingTableEntry, prefix netip.Prefix) *RoutingTableEntry {
	for _, e := range table {
		if e.isNetwork() && e.Prefix() == prefix {
			return e
		}
	}

	return nil
}

func removeEntry(table []*RoutingTableEntry, entry *RoutingTableEntry) []*RoutingTableEntry {
	return slices.DeleteFunc(table, func(e *RoutingTableEntry) bool {
		return e == entry
	})
}

// Route is a forwarding table entry derived from a network destination.
type Route struct {
	Prefix    netip.Prefix
	Gateway   netip.Addr
	Interface string
	Metric    uint32
}

func (r Route) String() string {
	if r.Gateway.IsValid() {
		return fmt.Sprintf("%s via %s dev %s metric %d", r.Prefix, r.Gateway, r.Interface, r.Metric)
	}

	return fmt.Sprintf("%s dev %s metric %d", r.Prefix, r.Interface, r.Metric)
}

// TableChange is published after every routing table rebuild. Withdrawn
// holds every previously installed route and Installed the full new set.
type TableChange struct {
	Withdrawn []Route
	Installed []Route
}

func routesFromTable(table []*RoutingTableEntry) []Route {
	var routes []Route
	for _, e := range table {
		if !e.isNetwork() || len(e.NextHops) == 0 {
			continue
		}

		nh := e.NextHops[0]

		r := Route{
			Prefix:    e.Prefix(),
			Interface: nh.Interface,
			Metric:    e.Cost,
		}
		if nh.Address.IsValid() && !nh.Address.IsUnspecified() {
			r.Gateway = nh.Address
		}

		routes = append(routes, r)
	}

	return routes
}

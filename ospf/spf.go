package ospf

import (
	"net/netip"
	"slices"

	"github.com/davidbalbert/spfd/common"
)

// CalculateShortestPathTree runs Dijkstra over the area's router and network
// LSAs (RFC 2328 section 16.1) and appends the resulting intra-area entries
// to table.
func (a *Area) CalculateShortestPathTree(table []*RoutingTableEntry) []*RoutingTableEntry {
	r := a.router

	root := a.FindRouterLSA(r.ID)
	if root == nil {
		fresh := a.OriginateRouterLSA()
		a.InstallRouterLSA(fresh)
		root = a.FindRouterLSA(r.ID)
		a.floodLSA(root)
		r.metrics.lsaOriginated.WithLabelValues(LSTypeRouter.String()).Inc()
	}

	a.spfTreeRoot = root.Key()
	a.TransitCapability = false

	for _, lsa := range a.routerLSAs.all() {
		lsa.Routing.reset()
	}
	for _, lsa := range a.networkLSAs.all() {
		lsa.Routing.reset()
	}

	inTree := map[Key]bool{root.Key(): true}
	tree := []*RouterLSA{root}
	var candidates []LSA
	var justAdded LSA = root

	for {
		switch v := justAdded.(type) {
		case *RouterLSA:
			if v.Virtual {
				a.TransitCapability = true
			}

			for _, link := range v.Links {
				var joining LSA
				switch link.Type {
				case LinkStub:
					continue
				case LinkTransit:
					if n := a.findNetworkLSAByID(link.ID); n != nil {
						joining = n
					}
				default:
					if rl := a.FindRouterLSA(common.RouterIDFromAddr(link.ID)); rl != nil {
						joining = rl
					}
				}

				if joining == nil || joining.LSAHeader().IsMaxAge() || !a.hasLink(joining, v) {
					continue
				}

				if inTree[joining.LSAHeader().Key()] {
					continue
				}

				candidates = a.relax(candidates, joining, v, v.Routing.Distance+uint32(link.Metric))
			}
		case *NetworkLSA:
			for _, id := range v.AttachedRouters {
				joining := a.FindRouterLSA(id)
				if joining == nil || joining.IsMaxAge() || !a.hasLink(joining, v) {
					continue
				}

				if inTree[joining.Key()] {
					continue
				}

				candidates = a.relax(candidates, joining, v, v.Routing.Distance)
			}
		}

		if len(candidates) == 0 {
			break
		}

		i := closestCandidate(candidates)
		closest := candidates[i]
		candidates = slices.Delete(candidates, i, i+1)
		inTree[closest.LSAHeader().Key()] = true

		switch c := closest.(type) {
		case *RouterLSA:
			tree = append(tree, c)

			if c.Border || c.External {
				table = append(table, a.routerEntry(c))
				a.updateVirtualLink(c)
			}
		case *NetworkLSA:
			table = a.addTransitNetworkEntry(table, c)
		}

		justAdded = closest
	}

	for _, v := range tree {
		for _, link := range v.Links {
			if link.Type != LinkStub {
				continue
			}

			distance := v.Routing.Distance + uint32(link.Metric)
			prefix := stubPrefix(link)
			hops := a.stubNextHops(link, v)

			entry := findNetworkEntry(table, prefix)
			if entry == nil {
				table = append(table, &RoutingTableEntry{
					DestinationType: DestinationNetwork,
					Destination:     prefix.Addr(),
					Bits:            prefix.Bits(),
					Area:            a.ID,
					PathType:        IntraArea,
					Cost:            distance,
					Options:         v.Options,
					NextHops:        hops,
					Origin:          v.Key(),
					OriginArea:      a.ID,
				})
				continue
			}

			if distance > entry.Cost {
				continue
			}

			if distance < entry.Cost {
				entry.Cost = distance
				entry.NextHops = nil
				entry.Area = a.ID
				entry.PathType = IntraArea
				entry.Origin = v.Key()
				entry.OriginArea = a.ID
			} else if entry.Origin.ID.Less(v.ID) {
				entry.Origin = v.Key()
				entry.OriginArea = a.ID
			}

			entry.addNextHops(hops...)
		}
	}

	return table
}

// relax offers parent as a way of reaching joining at cost.
func (a *Area) relax(candidates []LSA, joining, parent LSA, cost uint32) []LSA {
	ri := joining.RoutingInfo()
	k := joining.LSAHeader().Key()

	i := slices.IndexFunc(candidates, func(c LSA) bool {
		return c.LSAHeader().Key() == k
	})

	if i >= 0 {
		if cost > ri.Distance {
			return candidates
		}

		if cost < ri.Distance {
			ri.Distance = cost
			ri.NextHops = nil
			ri.Parent = parent.LSAHeader().Key()
		}

		ri.addNextHops(a.calculateNextHops(joining, parent)...)
		return candidates
	}

	ri.Distance = cost
	ri.NextHops = a.calculateNextHops(joining, parent)
	ri.Parent = parent.LSAHeader().Key()

	return append(candidates, joining)
}

// closestCandidate prefers routers over networks at equal distance (RFC 2328
// section 16.1 step 3).
func closestCandidate(candidates []LSA) int {
	best := 0
	for i := 1; i < len(candidates); i++ {
		d, bestD := candidates[i].RoutingInfo().Distance, candidates[best].RoutingInfo().Distance
		if d < bestD {
			best = i
		} else if d == bestD {
			_, isRouter := candidates[i].(*RouterLSA)
			_, bestIsRouter := candidates[best].(*RouterLSA)
			if isRouter && !bestIsRouter {
				best = i
			}
		}
	}

	return best
}

func (a *Area) routerEntry(rl *RouterLSA) *RoutingTableEntry {
	dt := DestinationNetwork
	if rl.Border {
		dt |= DestinationAreaBorderRouter
	}
	if rl.External {
		dt |= DestinationASBoundaryRouter
	}

	return &RoutingTableEntry{
		DestinationType: dt,
		Destination:     rl.ID,
		Bits:            32,
		Area:            a.ID,
		PathType:        IntraArea,
		Cost:            rl.Routing.Distance,
		Options:         rl.Options,
		NextHops:        slices.Clone(rl.Routing.NextHops),
		Origin:          rl.Key(),
		OriginArea:      a.ID,
	}
}

func (a *Area) addTransitNetworkEntry(table []*RoutingTableEntry, nl *NetworkLSA) []*RoutingTableEntry {
	prefix := nl.Prefix()

	fresh := &RoutingTableEntry{
		DestinationType: DestinationNetwork,
		Destination:     prefix.Addr(),
		Bits:            prefix.Bits(),
		Area:            a.ID,
		PathType:        IntraArea,
		Cost:            nl.Routing.Distance,
		Options:         nl.Options,
		NextHops:        slices.Clone(nl.Routing.NextHops),
		Origin:          nl.Key(),
		OriginArea:      a.ID,
	}

	entry := findNetworkEntry(table, prefix)
	if entry == nil {
		return append(table, fresh)
	}

	if nl.Routing.Distance < entry.Cost || (nl.Routing.Distance == entry.Cost && entry.Origin.ID.Less(nl.ID)) {
		*entry = *fresh
	}

	return table
}

// updateVirtualLink brings up a virtual link whose far end was just reached
// through this area.
func (a *Area) updateVirtualLink(rl *RouterLSA) {
	backbone := a.router.areas[common.Backbone]
	if backbone == nil || a.ID == common.Backbone {
		return
	}

	vl := backbone.findVirtualLink(rl.AdvertisingRouter)
	if vl == nil || vl.TransitAreaID != a.ID || len(rl.Routing.NextHops) == 0 {
		return
	}

	if out := a.interfaceByName(rl.Routing.NextHops[0].Interface); out != nil {
		vl.Prefix = netip.PrefixFrom(out.Addr(), 32)
		vl.Index = out.Index
	}

	vl.Cost = uint16(min(rl.Routing.Distance, 0xFFFF))

	if n := vl.firstNeighbor(); n != nil {
		parent := rl.Routing.Parent
		for _, link := range rl.Links {
			toRouter := (link.Type == LinkPointToPoint || link.Type == LinkVirtual) && parent.Type == LSTypeRouter && link.ID == parent.ID
			toNetwork := link.Type == LinkTransit && parent.Type == LSTypeNetwork && link.ID == parent.ID
			if toRouter || toNetwork {
				n.Addr = link.Data
				break
			}
		}
	}

	if vl.State == IfDown {
		vl.State = IfPointToPoint
	}
}

// calculateNextHops implements RFC 2328 section 16.1.1.
func (a *Area) calculateNextHops(dest, parent LSA) []NextHop {
	switch p := parent.(type) {
	case *RouterLSA:
		if p.Key() != a.spfTreeRoot {
			return slices.Clone(p.Routing.NextHops)
		}

		switch d := dest.(type) {
		case *RouterLSA:
			return a.nextHopsToNeighbor(d)
		case *NetworkLSA:
			var hops []NextHop
			for _, iface := range a.Interfaces {
				if (iface.Type == InterfaceBroadcast || iface.Type == InterfaceNBMA) && iface.DRAddr == d.ID {
					hops = mergeNextHops(hops, NextHop{
						Interface:         iface.Name,
						Address:           netip.IPv4Unspecified(),
						AdvertisingRouter: d.AdvertisingRouter,
					})
				}
			}
			return hops
		}
	case *NetworkLSA:
		if p.Routing.Parent != a.spfTreeRoot {
			return slices.Clone(p.Routing.NextHops)
		}

		d, ok := dest.(*RouterLSA)
		if !ok {
			return nil
		}

		var hops []NextHop
		for _, link := range d.Links {
			transit := link.Type == LinkTransit && link.ID == p.ID
			stub := link.Type == LinkStub && stubPrefix(link) == p.Prefix()
			if !transit && !stub {
				continue
			}

			for _, iface := range a.Interfaces {
				if (iface.Type != InterfaceBroadcast && iface.Type != InterfaceNBMA) || iface.DRAddr != p.ID {
					continue
				}

				addr := link.Data
				if !transit {
					n := iface.neighborByID(d.AdvertisingRouter)
					if n == nil {
						continue
					}
					addr = n.Addr
				}

				hops = mergeNextHops(hops, NextHop{
					Interface:         iface.Name,
					Address:           addr,
					AdvertisingRouter: d.AdvertisingRouter,
				})
			}
		}
		return hops
	}

	return nil
}

func (a *Area) nextHopsToNeighbor(d *RouterLSA) []NextHop {
	r := a.router

	var hops []NextHop
	for _, iface := range a.Interfaces {
		switch iface.Type {
		case InterfacePointToPoint, InterfaceVirtualLink:
			if iface.State <= IfLoopback {
				continue
			}

			if n := iface.firstNeighbor(); n != nil && n.ID == d.AdvertisingRouter {
				hops = mergeNextHops(hops, NextHop{
					Interface:         iface.Name,
					Address:           n.Addr,
					AdvertisingRouter: d.AdvertisingRouter,
				})
			}
		case InterfacePointToMultipoint, InterfacePointToMultipointBroadcast:
			if iface.neighborByID(d.AdvertisingRouter) == nil {
				continue
			}

			for _, link := range d.Links {
				if link.Type == LinkPointToPoint && link.ID == r.ID.Addr() {
					hops = mergeNextHops(hops, NextHop{
						Interface:         iface.Name,
						Address:           link.Data,
						AdvertisingRouter: d.AdvertisingRouter,
					})
					break
				}
			}
		}
	}

	return hops
}

// stubNextHops finds next hops for a stub network advertised by parent. Stubs
// of the root itself are directly attached.
func (a *Area) stubNextHops(link Link, parent *RouterLSA) []NextHop {
	r := a.router

	if parent.Key() != a.spfTreeRoot {
		return slices.Clone(parent.Routing.NextHops)
	}

	prefix := stubPrefix(link)

	for _, iface := range a.Interfaces {
		if iface.State <= IfLoopback {
			continue
		}

		switch iface.Type {
		case InterfacePointToPoint, InterfaceVirtualLink:
			n := iface.firstNeighbor()
			if n == nil {
				continue
			}

			numbered := n.Addr.IsValid() && n.Addr == link.ID
			unnumbered := !n.Addr.IsValid() && iface.Addr() == link.ID && iface.Prefix.Bits() == prefix.Bits()
			if numbered || unnumbered {
				return []NextHop{{Interface: iface.Name, Address: n.Addr, AdvertisingRouter: r.ID}}
			}

			if iface.Prefix.IsValid() && iface.Prefix.Masked() == prefix {
				return []NextHop{{Interface: iface.Name, Address: netip.IPv4Unspecified(), AdvertisingRouter: r.ID}}
			}
		case InterfaceBroadcast, InterfaceNBMA:
			if iface.Prefix.Masked() == prefix {
				return []NextHop{{Interface: iface.Name, Address: netip.IPv4Unspecified(), AdvertisingRouter: r.ID}}
			}
		case InterfacePointToMultipoint, InterfacePointToMultipointBroadcast:
			if iface.Addr() == link.ID {
				return []NextHop{{Interface: iface.Name, Address: netip.IPv4Unspecified(), AdvertisingRouter: r.ID}}
			}
		}
	}

	return nil
}

func (a *Area) findBorderRouterEntry(table []*RoutingTableEntry, id common.RouterID) *RoutingTableEntry {
	for _, e := range table {
		if e.Area == a.ID && e.isBorderRouter() && e.Destination == id.Addr() {
			return e
		}
	}

	return nil
}

// CalculateInterAreaRoutes examines the area's summary LSAs (RFC 2328 section
// 16.2). Only the backbone is examined on an area border router.
func (a *Area) CalculateInterAreaRoutes(table []*RoutingTableEntry) []*RoutingTableEntry {
	r := a.router

	for _, lsa := range a.summaryLSAs.all() {
		if lsa.Cost >= lsInfinity || lsa.IsMaxAge() || lsa.AdvertisingRouter == r.ID {
			continue
		}

		prefix := lsa.Prefix()

		if lsa.Type == LSTypeSummary && r.hasActiveAddressRange(table, prefix) {
			continue
		}

		br := a.findBorderRouterEntry(table, lsa.AdvertisingRouter)
		if br == nil {
			continue
		}

		cost := lsa.Cost + br.Cost

		var worse []*RoutingTableEntry
		skip := false
		for _, e := range table {
			if lsa.Type == LSTypeSummary {
				if !e.isNetwork() || e.Prefix() != prefix {
					continue
				}
			} else if e.DestinationType&DestinationASBoundaryRouter == 0 || e.Destination != lsa.ID {
				continue
			}

			if e.PathType == IntraArea || (e.PathType == InterArea && e.Cost < cost) {
				skip = true
				break
			}

			if e.PathType == InterArea {
				worse = append(worse, e)
			}
		}

		if skip {
			continue
		}

		hops := make([]NextHop, 0, len(br.NextHops))
		for _, nh := range br.NextHops {
			nh.AdvertisingRouter = lsa.AdvertisingRouter
			hops = append(hops, nh)
		}

		var equal *RoutingTableEntry
		for _, e := range worse {
			if e.Cost == cost && equal == nil {
				equal = e
				continue
			}
			table = removeEntry(table, e)
		}

		if equal != nil {
			equal.addNextHops(hops...)
			continue
		}

		entry := &RoutingTableEntry{
			DestinationType: DestinationNetwork,
			Destination:     prefix.Addr(),
			Bits:            prefix.Bits(),
			Area:            a.ID,
			PathType:        InterArea,
			Cost:            cost,
			Options:         lsa.Options,
			NextHops:        hops,
			Origin:          lsa.Key(),
			OriginArea:      a.ID,
		}

		if lsa.Type == LSTypeASBRSummary {
			entry.DestinationType = DestinationASBoundaryRouter
			entry.Destination = lsa.ID
			entry.Bits = 32
		}

		table = append(table, entry)
	}

	return table
}

// RecheckSummaryLSAs looks for better paths to backbone destinations through
// a transit area (RFC 2328 section 16.3).
func (a *Area) RecheckSummaryLSAs(table []*RoutingTableEntry) {
	r := a.router

	for _, lsa := range a.summaryLSAs.all() {
		if lsa.Cost >= lsInfinity || lsa.IsMaxAge() || lsa.AdvertisingRouter == r.ID {
			continue
		}

		var entry *RoutingTableEntry
		if lsa.Type == LSTypeSummary {
			entry = findNetworkEntry(table, lsa.Prefix())
		} else {
			for _, e := range table {
				if e.DestinationType&DestinationASBoundaryRouter != 0 && e.Destination == lsa.ID && e.Area == common.Backbone {
					entry = e
					break
				}
			}
		}

		if entry == nil || entry.PathType == Type1External || entry.PathType == Type2External || entry.Area != common.Backbone {
			continue
		}

		br := a.findBorderRouterEntry(table, lsa.AdvertisingRouter)
		if br == nil {
			continue
		}

		cost := lsa.Cost + br.Cost
		if cost > entry.Cost {
			continue
		}

		if cost < entry.Cost {
			entry.NextHops = nil
		}

		for _, nh := range br.NextHops {
			nh.AdvertisingRouter = lsa.AdvertisingRouter
			entry.addNextHops(nh)
		}
		entry.Cost = cost
	}
}

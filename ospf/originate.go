package ospf

import (
	"net/netip"

	"github.com/davidbalbert/spfd/common"
	"go4.org/netipx"
)

const (
	lsaHeaderLen = 20

	routerLSABaseLen  = lsaHeaderLen + 4
	routerLinkLen     = 12
	networkLSABaseLen = lsaHeaderLen + 4
	summaryLSALen     = lsaHeaderLen + 8
	asExternalLSALen  = lsaHeaderLen + 16
)

var hostMask = common.MaskAddr(32)

func (a *Area) options() uint8 {
	if a.ExternalRoutingCapability {
		return OptionE
	}

	return 0
}

func stubLink(id netip.Addr, bits int, metric uint16) Link {
	return Link{
		Type:   LinkStub,
		ID:     id,
		Data:   common.MaskAddr(bits),
		Metric: metric,
	}
}

// OriginateRouterLSA builds a fresh router LSA for this area from the current
// interface and neighbor state. The caller decides on the sequence number.
func (a *Area) OriginateRouterLSA() *RouterLSA {
	r := a.router

	lsa := &RouterLSA{
		Header: Header{
			Options:           a.options(),
			Type:              LSTypeRouter,
			ID:                r.ID.Addr(),
			AdvertisingRouter: r.ID,
			SequenceNumber:    initialSequenceNumber,
		},
		Tracking: TrackingInfo{Origin: Originated},
		Border:   len(r.areas) > 1,
		External: a.ExternalRoutingCapability && r.IsASBoundaryRouter(),
	}

	if backbone := r.areas[common.Backbone]; backbone != nil {
		lsa.Virtual = backbone.hasVirtualLink(a.ID)
	}

	for _, iface := range a.Interfaces {
		if iface.State == IfDown {
			continue
		}

		if iface.State == IfLoopback && (iface.Type != InterfacePointToPoint || iface.Addr().IsValid()) {
			lsa.Links = append(lsa.Links, stubLink(iface.Addr(), 32, 0))
		}

		if iface.State <= IfLoopback {
			continue
		}

		switch iface.Type {
		case InterfacePointToPoint:
			n := iface.firstNeighbor()
			if n == nil {
				break
			}

			if n.State == NbrFull {
				data := iface.Addr()
				if !data.IsValid() {
					data = common.AddrFromUint32(uint32(iface.Index))
				}

				lsa.Links = append(lsa.Links, Link{
					Type:   LinkPointToPoint,
					ID:     n.ID.Addr(),
					Data:   data,
					Metric: iface.Cost,
				})
			}

			if iface.State == IfPointToPoint {
				if n.Addr.IsValid() {
					lsa.Links = append(lsa.Links, stubLink(n.Addr, 32, iface.Cost))
				} else if iface.Prefix.IsValid() && iface.Prefix.Bits() != 32 {
					lsa.Links = append(lsa.Links, stubLink(iface.Prefix.Masked().Addr(), iface.Prefix.Bits(), iface.Cost))
				}
			}
		case InterfaceBroadcast, InterfaceNBMA:
			if iface.State == IfWaiting {
				lsa.Links = append(lsa.Links, stubLink(iface.Prefix.Masked().Addr(), iface.Prefix.Bits(), iface.Cost))
				break
			}

			dr := iface.neighborByAddr(iface.DRAddr)
			if (dr != nil && dr.State == NbrFull) || (iface.DRID == r.ID && iface.hasNeighborInStates(NbrFull)) {
				lsa.Links = append(lsa.Links, Link{
					Type:   LinkTransit,
					ID:     iface.DRAddr,
					Data:   iface.Addr(),
					Metric: iface.Cost,
				})
			} else {
				lsa.Links = append(lsa.Links, stubLink(iface.Prefix.Masked().Addr(), iface.Prefix.Bits(), iface.Cost))
			}
		case InterfaceVirtualLink:
			if n := iface.firstNeighbor(); n != nil && n.State == NbrFull {
				lsa.Links = append(lsa.Links, Link{
					Type:   LinkVirtual,
					ID:     n.ID.Addr(),
					Data:   iface.Addr(),
					Metric: iface.Cost,
				})
			}
		case InterfacePointToMultipoint, InterfacePointToMultipointBroadcast:
			lsa.Links = append(lsa.Links, stubLink(iface.Addr(), 32, 0))

			for _, n := range iface.Neighbors {
				if n.State == NbrFull {
					lsa.Links = append(lsa.Links, Link{
						Type:   LinkPointToPoint,
						ID:     n.ID.Addr(),
						Data:   iface.Addr(),
						Metric: iface.Cost,
					})
				}
			}
		}
	}

	for _, hr := range a.HostRoutes {
		lsa.Links = append(lsa.Links, stubLink(hr.Prefix.Addr(), hr.Prefix.Bits(), hr.Cost))
	}

	lsa.Length = uint16(routerLSABaseLen + routerLinkLen*len(lsa.Links))

	return lsa
}

// OriginateNetworkLSA returns nil unless the interface has at least one
// fully adjacent neighbor.
func (a *Area) OriginateNetworkLSA(iface *Interface) *NetworkLSA {
	if !iface.hasNeighborInStates(NbrFull) {
		return nil
	}

	r := a.router

	lsa := &NetworkLSA{
		Header: Header{
			Options:           a.options(),
			Type:              LSTypeNetwork,
			ID:                iface.Addr(),
			AdvertisingRouter: r.ID,
			SequenceNumber:    initialSequenceNumber,
		},
		Tracking: TrackingInfo{Origin: Originated},
		Bits:     iface.Prefix.Bits(),
	}

	for _, n := range iface.Neighbors {
		if n.State == NbrFull {
			lsa.AttachedRouters = append(lsa.AttachedRouters, n.ID)
		}
	}
	lsa.AttachedRouters = append(lsa.AttachedRouters, r.ID)

	lsa.Length = uint16(networkLSABaseLen + 4*len(lsa.AttachedRouters))

	return lsa
}

func (a *Area) newSummaryLSA(t LSType, id netip.Addr, bits int, cost uint32) *SummaryLSA {
	return &SummaryLSA{
		Header: Header{
			Options:           a.options(),
			Type:              t,
			ID:                id,
			AdvertisingRouter: a.routerID(),
			SequenceNumber:    initialSequenceNumber,
			Length:            summaryLSALen,
		},
		Tracking: TrackingInfo{Origin: Originated},
		Bits:     bits,
		Cost:     cost,
	}
}

// GetUniqueLinkStateID picks the link state ID for a summary of dest so that
// summaries for prefixes sharing a network address don't collide (RFC 2328
// appendix E). When dest is more specific than the summary already using the
// network address, that summary must be re-originated to describe dest and
// the returned ID, built from the existing mask, is where the displaced
// prefix goes.
func (a *Area) GetUniqueLinkStateID(dest netip.Prefix, cost uint32) (netip.Addr, *SummaryLSA) {
	dest = dest.Masked()

	existing := a.FindSummaryLSA(Key{
		Type:              LSTypeSummary,
		ID:                dest.Addr(),
		AdvertisingRouter: a.routerID(),
	})

	if existing == nil || existing.Bits == dest.Bits() {
		return dest.Addr(), nil
	}

	if dest.Bits() < existing.Bits {
		return netipx.PrefixLastIP(dest), nil
	}

	reoriginate := existing.Clone().(*SummaryLSA)
	reoriginate.Age = 0
	reoriginate.SequenceNumber = nextSequenceNumber(existing.SequenceNumber)
	reoriginate.Bits = dest.Bits()
	reoriginate.Cost = cost
	reoriginate.Purgeable = false
	reoriginate.Tracking = TrackingInfo{Origin: Originated}

	return netipx.PrefixLastIP(netip.PrefixFrom(dest.Addr(), existing.Bits).Masked()), reoriginate
}

func (a *Area) originateNetworkSummary(dest netip.Prefix, cost uint32) (*SummaryLSA, *SummaryLSA) {
	dest = dest.Masked()
	id, reoriginate := a.GetUniqueLinkStateID(dest, cost)

	if reoriginate == nil {
		return a.newSummaryLSA(LSTypeSummary, id, dest.Bits(), cost), nil
	}

	existing := a.FindSummaryLSA(Key{
		Type:              LSTypeSummary,
		ID:                dest.Addr(),
		AdvertisingRouter: a.routerID(),
	})

	displaced := existing.Clone().(*SummaryLSA)
	displaced.ID = id
	displaced.Age = 0
	displaced.SequenceNumber = initialSequenceNumber
	displaced.Purgeable = false
	displaced.Tracking = TrackingInfo{Origin: Originated}
	displaced.Routing = RoutingInfo{}

	return displaced, reoriginate
}

// OriginateSummaryLSA builds the summary this area should carry for entry,
// or nil if entry isn't advertised here. Entries that fall into an
// advertised address range produce one summary for the whole range, and
// ranges already present in originated are skipped. When a second LSA has to
// be re-originated to keep link state IDs unique it is returned as well.
func (a *Area) OriginateSummaryLSA(entry *RoutingTableEntry, originated map[Key]bool) (lsa, reoriginate *SummaryLSA) {
	r := a.router

	if entry.DestinationType&DestinationAreaBorderRouter != 0 ||
		entry.PathType == Type1External || entry.PathType == Type2External ||
		entry.Area == a.ID {
		return nil, nil
	}

	allNextHopsInThisArea := true
	for _, nh := range entry.NextHops {
		iface := r.interfaceByName(nh.Interface)
		if iface != nil && iface.AreaID != a.ID {
			allNextHopsInThisArea = false
			break
		}
	}

	if allNextHopsInThisArea || entry.Cost >= lsInfinity {
		return nil, nil
	}

	if entry.DestinationType&DestinationASBoundaryRouter != 0 {
		if !a.ExternalRoutingCapability {
			return nil, nil
		}

		preferred := r.selectPreferredASBREntry(asbrEntries(r.routingTable, common.RouterIDFromAddr(entry.Destination)))
		if preferred != entry {
			return nil, nil
		}

		return a.newSummaryLSA(LSTypeASBRSummary, entry.Destination, 0, entry.Cost), nil
	}

	prefix := entry.Prefix()

	switch entry.PathType {
	case InterArea:
		return a.originateNetworkSummary(prefix, entry.Cost)
	case IntraArea:
		var rng AddressRange
		inRange := false
		if origin := r.areas[entry.Area]; origin != nil {
			rng, inRange = origin.containingAddressRange(prefix)
		}

		if (entry.Area == common.Backbone && a.TransitCapability) || !inRange {
			return a.originateNetworkSummary(prefix, entry.Cost)
		}

		if !rng.Advertise {
			return nil, nil
		}

		k := Key{Type: LSTypeSummary, ID: rng.Prefix.Addr(), AdvertisingRouter: r.ID}
		if originated[k] {
			return nil, nil
		}

		return a.originateNetworkSummary(rng.Prefix, rangeCost(r.routingTable, entry.Area, rng.Prefix))
	}

	return nil, nil
}

// rangeCost is the cost of an aggregate, the largest cost of any of its
// intra-area components.
func rangeCost(table []*RoutingTableEntry, areaID common.AreaID, rng netip.Prefix) uint32 {
	var cost uint32
	for _, e := range table {
		if e.isNetwork() && e.PathType == IntraArea && e.Area == areaID && prefixWithin(e.Prefix(), rng) && e.Cost > cost {
			cost = e.Cost
		}
	}

	return cost
}

func prefixWithin(p, outer netip.Prefix) bool {
	return p.Bits() >= outer.Bits() && outer.Contains(p.Addr())
}

// refreshSummaryLSA re-derives a self-originated summary from the current
// routing table. It returns nil when the summary is no longer justified.
func (a *Area) refreshSummaryLSA(lsa *SummaryLSA) *SummaryLSA {
	r := a.router

	matches := func(fresh *SummaryLSA, reoriginate *SummaryLSA) bool {
		return fresh != nil && reoriginate == nil && fresh.Key() == lsa.Key() && fresh.Bits == lsa.Bits
	}

	if lsa.Type == LSTypeSummary && lsa.Bits == 0 && a.IsStub() {
		if r.isAreaBorderRouter() {
			return a.defaultSummaryLSA()
		}
		return nil
	}

	for _, e := range r.routingTable {
		switch lsa.Type {
		case LSTypeASBRSummary:
			if e.DestinationType&DestinationASBoundaryRouter == 0 || e.Destination != lsa.ID {
				continue
			}
		case LSTypeSummary:
			if !e.isNetwork() || e.Prefix() != lsa.Prefix() {
				continue
			}
		}

		fresh, reoriginate := a.OriginateSummaryLSA(e, nil)
		if matches(fresh, reoriginate) {
			return fresh
		}
	}

	if lsa.Type != LSTypeSummary {
		return nil
	}

	for _, other := range r.Areas() {
		if other == a {
			continue
		}

		for _, rng := range other.AddressRanges {
			if !rng.Advertise || rng.Prefix.Masked() != lsa.Prefix() {
				continue
			}

			for _, e := range r.routingTable {
				if e.isNetwork() && e.PathType == IntraArea && e.Area == other.ID && prefixWithin(e.Prefix(), rng.Prefix) {
					fresh, reoriginate := a.OriginateSummaryLSA(e, nil)
					if matches(fresh, reoriginate) {
						return fresh
					}
				}
			}
		}
	}

	return nil
}

// defaultSummaryLSA is what an area border router advertises into a stub
// area in place of AS-external routes.
func (a *Area) defaultSummaryLSA() *SummaryLSA {
	return a.newSummaryLSA(LSTypeSummary, netip.IPv4Unspecified(), 0, a.StubDefaultCost)
}

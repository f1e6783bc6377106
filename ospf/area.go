package ospf

import (
	"net/netip"

	"github.com/davidbalbert/spfd/common"
)

type AddressRange struct {
	Prefix    netip.Prefix
	Advertise bool
}

type HostRoute struct {
	Prefix netip.Prefix
	Cost   uint16
}

type Area struct {
	ID                        common.AreaID
	AddressRanges             []AddressRange
	HostRoutes                []HostRoute
	Interfaces                []*Interface
	TransitCapability         bool // calculated when the shortest path tree is calculated
	ExternalRoutingCapability bool
	StubDefaultCost           uint32

	routerLSAs  *lsdb[*RouterLSA]
	networkLSAs *lsdb[*NetworkLSA]
	summaryLSAs *lsdb[*SummaryLSA]

	spfTreeRoot Key
	router      *Router
}

func NewArea(id common.AreaID) *Area {
	return &Area{
		ID:                        id,
		ExternalRoutingCapability: true,
		StubDefaultCost:           1,

		routerLSAs:  newLSDB[*RouterLSA](),
		networkLSAs: newLSDB[*NetworkLSA](),
		summaryLSAs: newLSDB[*SummaryLSA](),
	}
}

func (a *Area) IsStub() bool {
	return !a.ExternalRoutingCapability
}

func (a *Area) AddInterface(iface *Interface) {
	iface.AreaID = a.ID
	a.Interfaces = append(a.Interfaces, iface)
}

func (a *Area) routerID() common.RouterID {
	return a.router.ID
}

func (a *Area) RouterLSAs() []*RouterLSA {
	return a.routerLSAs.all()
}

func (a *Area) NetworkLSAs() []*NetworkLSA {
	return a.networkLSAs.all()
}

func (a *Area) SummaryLSAs() []*SummaryLSA {
	return a.summaryLSAs.all()
}

func (a *Area) LSACount() int {
	return a.routerLSAs.len() + a.networkLSAs.len() + a.summaryLSAs.len()
}

func routerLSAKey(id common.RouterID) Key {
	return Key{Type: LSTypeRouter, ID: id.Addr(), AdvertisingRouter: id}
}

func (a *Area) FindRouterLSA(id common.RouterID) *RouterLSA {
	lsa, _ := a.routerLSAs.get(routerLSAKey(id))
	return lsa
}

func (a *Area) FindNetworkLSA(k Key) *NetworkLSA {
	lsa, _ := a.networkLSAs.get(k)
	return lsa
}

// findNetworkLSAByID looks a network LSA up by the DR's interface address,
// which is all a transit link carries. Live instances win over MaxAge ones.
func (a *Area) findNetworkLSAByID(id netip.Addr) *NetworkLSA {
	var found *NetworkLSA
	for _, lsa := range a.networkLSAs.all() {
		if lsa.ID != id {
			continue
		}

		if found == nil || (found.IsMaxAge() && !lsa.IsMaxAge()) {
			found = lsa
		}
	}

	return found
}

func (a *Area) FindSummaryLSA(k Key) *SummaryLSA {
	lsa, _ := a.summaryLSAs.get(k)
	return lsa
}

func (a *Area) findLSA(k Key) LSA {
	switch k.Type {
	case LSTypeRouter:
		if lsa, ok := a.routerLSAs.get(k); ok {
			return lsa
		}
	case LSTypeNetwork:
		if lsa, ok := a.networkLSAs.get(k); ok {
			return lsa
		}
	case LSTypeSummary, LSTypeASBRSummary:
		if lsa, ok := a.summaryLSAs.get(k); ok {
			return lsa
		}
	}

	return nil
}

// InstallRouterLSA stores a copy of lsa, or updates the existing instance in
// place. It returns true if the routing table needs to be rebuilt.
func (a *Area) InstallRouterLSA(lsa *RouterLSA) bool {
	k := lsa.Key()
	if existing, ok := a.routerLSAs.get(k); ok {
		a.router.RemoveFromAllRetransmissionLists(k)
		return existing.Update(lsa)
	}

	a.routerLSAs.set(lsa.Clone().(*RouterLSA))
	return true
}

func (a *Area) InstallNetworkLSA(lsa *NetworkLSA) bool {
	k := lsa.Key()
	if existing, ok := a.networkLSAs.get(k); ok {
		a.router.RemoveFromAllRetransmissionLists(k)
		return existing.Update(lsa)
	}

	a.networkLSAs.set(lsa.Clone().(*NetworkLSA))
	return true
}

func (a *Area) InstallSummaryLSA(lsa *SummaryLSA) bool {
	k := lsa.Key()
	if existing, ok := a.summaryLSAs.get(k); ok {
		a.router.RemoveFromAllRetransmissionLists(k)
		return existing.Update(lsa)
	}

	a.summaryLSAs.set(lsa.Clone().(*SummaryLSA))
	return true
}

func (a *Area) floodLSA(lsa LSA) bool {
	return a.router.FloodLSA(lsa, a.ID, nil, nil)
}

func (a *Area) interfaceByName(name string) *Interface {
	for _, iface := range a.Interfaces {
		if iface.Name == name {
			return iface
		}
	}

	return nil
}

func (a *Area) interfaceByAddr(addr netip.Addr) *Interface {
	for _, iface := range a.Interfaces {
		if iface.Addr() == addr {
			return iface
		}
	}

	return nil
}

func (a *Area) findVirtualLink(to common.RouterID) *Interface {
	for _, iface := range a.Interfaces {
		if iface.Type != InterfaceVirtualLink {
			continue
		}

		if n := iface.firstNeighbor(); n != nil && n.ID == to {
			return iface
		}
	}

	return nil
}

// hasVirtualLink reports whether a fully adjacent virtual link uses transit
// as its transit area. Only meaningful on the backbone.
func (a *Area) hasVirtualLink(transit common.AreaID) bool {
	for _, iface := range a.Interfaces {
		if iface.Type == InterfaceVirtualLink && iface.TransitAreaID == transit && iface.hasNeighborInStates(NbrFull) {
			return true
		}
	}

	return false
}

func (a *Area) hasNeighborInStates(states ...NeighborState) bool {
	for _, iface := range a.Interfaces {
		if iface.hasNeighborInStates(states...) {
			return true
		}
	}

	return false
}

func (a *Area) containingAddressRange(prefix netip.Prefix) (AddressRange, bool) {
	for _, r := range a.AddressRanges {
		if r.Prefix.Bits() <= prefix.Bits() && r.Prefix.Contains(prefix.Addr()) {
			return r, true
		}
	}

	return AddressRange{}, false
}

// hasLink reports whether from has a link back to to. SPF only follows links
// that exist in both directions.
func (a *Area) hasLink(from, to LSA) bool {
	switch from := from.(type) {
	case *RouterLSA:
		switch to := to.(type) {
		case *RouterLSA:
			for _, link := range from.Links {
				if (link.Type == LinkPointToPoint || link.Type == LinkVirtual) && link.ID == to.ID {
					return true
				}
			}
		case *NetworkLSA:
			for _, link := range from.Links {
				if link.Type == LinkTransit && link.ID == to.ID {
					return true
				}

				if link.Type == LinkStub && stubPrefix(link) == to.Prefix() {
					return true
				}
			}
		}
	case *NetworkLSA:
		if to, ok := to.(*RouterLSA); ok {
			for _, id := range from.AttachedRouters {
				if id == to.AdvertisingRouter {
					return true
				}
			}
		}
	}

	return false
}

func stubPrefix(link Link) netip.Prefix {
	return netip.PrefixFrom(link.ID, common.MaskBits(link.Data)).Masked()
}

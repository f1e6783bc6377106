package ospf

import (
	"net/netip"

	"github.com/davidbalbert/spfd/common"
	"github.com/gaissmai/bart"
	"go4.org/netipx"
)

func asbrEntries(table []*RoutingTableEntry, id common.RouterID) []*RoutingTableEntry {
	var entries []*RoutingTableEntry
	for _, e := range table {
		if e.DestinationType&DestinationASBoundaryRouter != 0 && e.Destination == id.Addr() {
			entries = append(entries, e)
		}
	}

	return entries
}

// selectPreferredASBREntry implements RFC 2328 section 16.4.1. Unless
// RFC1583Compatibility is set, intra-area paths through non-backbone areas
// win. Remaining ties go to the largest area ID.
func (r *Router) selectPreferredASBREntry(entries []*RoutingTableEntry) *RoutingTableEntry {
	if len(entries) == 0 {
		return nil
	}

	if !r.RFC1583Compatibility {
		var pruned []*RoutingTableEntry
		for _, e := range entries {
			if e.PathType == IntraArea && e.Area != common.Backbone {
				pruned = append(pruned, e)
			}
		}

		if len(pruned) > 0 {
			entries = pruned
		}
	}

	best := entries[0]
	for _, e := range entries[1:] {
		if e.Cost < best.Cost || (e.Cost == best.Cost && e.Area > best.Area) {
			best = e
		}
	}

	return best
}

// GetPreferredEntry returns the routing table entry used to reach the
// originator of lsa, or the entry for its forwarding address when an
// AS-external LSA carries one. It returns nil when there is no usable path.
func (r *Router) GetPreferredEntry(lsa LSA, skipSelfOriginated bool) *RoutingTableEntry {
	return r.preferredEntry(lsa, skipSelfOriginated, r.routingTable, r.lookupTable)
}

func (r *Router) preferredEntry(lsa LSA, skipSelfOriginated bool, table []*RoutingTableEntry, lt *bart.Table[*RoutingTableEntry]) *RoutingTableEntry {
	h := lsa.LSAHeader()

	ext, isExternal := lsa.(*ASExternalLSA)
	if isExternal && ext.Cost >= lsInfinity {
		return nil
	}

	if h.IsMaxAge() || (skipSelfOriginated && h.AdvertisingRouter == r.ID) {
		return nil
	}

	entries := asbrEntries(table, h.AdvertisingRouter)
	if len(entries) == 0 {
		return nil
	}

	if !isExternal || !ext.ForwardingAddress.IsValid() || ext.ForwardingAddress.IsUnspecified() {
		return r.selectPreferredASBREntry(entries)
	}

	fwd := r.lookup(ext.ForwardingAddress, table, lt)
	if fwd == nil || (fwd.PathType != IntraArea && fwd.PathType != InterArea) {
		return nil
	}

	return fwd
}

// CalculateASExternalRoutes implements RFC 2328 section 16.4. Type 1 paths
// are preferred over type 2, then the lower cost wins. Equal paths are
// merged.
func (r *Router) CalculateASExternalRoutes(table []*RoutingTableEntry) []*RoutingTableEntry {
	lt := buildLookupTable(table)

	for _, lsa := range r.asExternalLSAs.all() {
		preferred := r.preferredEntry(lsa, true, table, lt)
		if preferred == nil {
			continue
		}

		prefix := lsa.Prefix()

		fresh := &RoutingTableEntry{
			DestinationType: DestinationNetwork,
			Destination:     prefix.Addr(),
			Bits:            prefix.Bits(),
			Area:            preferred.Area,
			Options:         lsa.Options,
			NextHops:        append([]NextHop(nil), preferred.NextHops...),
			Origin:          lsa.Key(),
			OriginArea:      common.Backbone,
		}

		if lsa.MetricType == Type1 {
			fresh.PathType = Type1External
			fresh.Cost = preferred.Cost + lsa.Cost
		} else {
			fresh.PathType = Type2External
			fresh.Cost = preferred.Cost
			fresh.Type2Cost = lsa.Cost
		}

		existing := findNetworkEntry(table, prefix)
		if existing == nil {
			table = append(table, fresh)
			continue
		}

		replace, merge := false, false

		switch {
		case existing.PathType == IntraArea || existing.PathType == InterArea:
			continue
		case existing.PathType == Type1External && fresh.PathType == Type2External:
			continue
		case existing.PathType == Type2External && fresh.PathType == Type1External:
			replace = true
		case fresh.PathType == Type1External:
			replace = fresh.Cost < existing.Cost
			merge = fresh.Cost == existing.Cost
		default:
			if fresh.Type2Cost != existing.Type2Cost {
				replace = fresh.Type2Cost < existing.Type2Cost
			} else {
				replace = fresh.Cost < existing.Cost
				merge = fresh.Cost == existing.Cost
			}
		}

		if replace {
			*existing = *fresh
		} else if merge {
			existing.addNextHops(preferred.NextHops...)
		}
	}

	return table
}

func (r *Router) ASExternalLSAs() []*ASExternalLSA {
	return r.asExternalLSAs.all()
}

func (r *Router) FindASExternalLSA(k Key) *ASExternalLSA {
	lsa, _ := r.asExternalLSAs.get(k)
	return lsa
}

func (r *Router) selfOriginatedASExternalLSA(prefix netip.Prefix) *ASExternalLSA {
	for _, lsa := range r.asExternalLSAs.all() {
		if lsa.AdvertisingRouter == r.ID && lsa.Prefix() == prefix {
			return lsa
		}
	}

	return nil
}

// OriginateASExternalLSA builds the AS-external LSA for one of the router's
// external routes, or returns nil if prefix isn't one of them.
func (r *Router) OriginateASExternalLSA(prefix netip.Prefix) *ASExternalLSA {
	prefix = prefix.Masked()

	contents, ok := r.externalRoutes[prefix]
	if !ok {
		return nil
	}

	id := prefix.Addr()
	if lsa := r.selfOriginatedASExternalLSA(prefix); lsa != nil {
		id = lsa.ID
	} else if existing := r.FindASExternalLSA(Key{Type: LSTypeASExternal, ID: id, AdvertisingRouter: r.ID}); existing != nil && existing.Bits != prefix.Bits() {
		id = netipx.PrefixLastIP(prefix)
	}

	lsa := &ASExternalLSA{
		Header: Header{
			Options:           OptionE,
			Type:              LSTypeASExternal,
			ID:                id,
			AdvertisingRouter: r.ID,
			SequenceNumber:    initialSequenceNumber,
			Length:            asExternalLSALen,
		},
		Tracking:           TrackingInfo{Origin: Originated},
		ASExternalContents: contents,
	}
	lsa.Bits = prefix.Bits()
	lsa.TOS = append([]TOSMetric(nil), contents.TOS...)

	return lsa
}

// InstallASExternalLSA stores a copy of lsa or updates the existing instance.
// When another router with a higher router ID advertises the same external
// route with a forwarding address, our own copy is flushed (RFC 2328 section
// 12.4.4.1).
func (r *Router) InstallASExternalLSA(lsa *ASExternalLSA) bool {
	if lsa.AdvertisingRouter != r.ID && lsa.ForwardingAddress.IsValid() && !lsa.ForwardingAddress.IsUnspecified() && !lsa.IsMaxAge() {
		own := r.selfOriginatedASExternalLSA(lsa.Prefix())
		if own != nil && !own.IsMaxAge() && own.ForwardingAddress == lsa.ForwardingAddress &&
			own.Cost == lsa.Cost && own.MetricType == lsa.MetricType &&
			lsa.AdvertisingRouter > r.ID && len(asbrEntries(r.routingTable, lsa.AdvertisingRouter)) > 0 {
			own.Age = MaxAge
			own.Purgeable = true
			r.FloodLSA(own, common.Backbone, nil, nil)
			r.log.Debug("flushing equivalent AS-external LSA", "lsa", own.Key(), "preferred", lsa.AdvertisingRouter)
		}
	}

	k := lsa.Key()
	if existing, ok := r.asExternalLSAs.get(k); ok {
		r.RemoveFromAllRetransmissionLists(k)
		return existing.Update(lsa)
	}

	r.asExternalLSAs.set(lsa.Clone().(*ASExternalLSA))
	return true
}

// UpdateExternalRoute adds or changes an external route, originates the
// corresponding AS-external LSA and rebuilds the routing table.
func (r *Router) UpdateExternalRoute(prefix netip.Prefix, contents ASExternalContents) error {
	prefix = prefix.Masked()
	contents.Bits = prefix.Bits()
	r.externalRoutes[prefix] = contents

	lsa := r.OriginateASExternalLSA(prefix)
	if existing := r.FindASExternalLSA(lsa.Key()); existing != nil {
		lsa.SequenceNumber = nextSequenceNumber(existing.SequenceNumber)
	}

	r.InstallASExternalLSA(lsa)
	r.FloodLSA(lsa, common.Backbone, nil, nil)
	r.metrics.lsaOriginated.WithLabelValues(LSTypeASExternal.String()).Inc()
	r.log.Debug("originated AS-external LSA", "lsa", lsa.Key(), "prefix", prefix)

	r.originateRouterLSAs()

	return r.RebuildRoutingTable()
}

// RemoveExternalRoute withdraws an external route by prematurely aging its
// AS-external LSA.
func (r *Router) RemoveExternalRoute(prefix netip.Prefix) error {
	prefix = prefix.Masked()

	if _, ok := r.externalRoutes[prefix]; !ok {
		return nil
	}
	delete(r.externalRoutes, prefix)

	if lsa := r.selfOriginatedASExternalLSA(prefix); lsa != nil && !lsa.IsMaxAge() {
		lsa.Age = MaxAge
		lsa.Purgeable = true
		r.FloodLSA(lsa, common.Backbone, nil, nil)
	}

	r.originateRouterLSAs()

	return r.RebuildRoutingTable()
}

func (r *Router) ExternalRoutes() map[netip.Prefix]ASExternalContents {
	routes := make(map[netip.Prefix]ASExternalContents, len(r.externalRoutes))
	for p, c := range r.externalRoutes {
		routes[p] = c
	}

	return routes
}

package ospf

import (
	"testing"

	"github.com/davidbalbert/spfd/common"
	"github.com/stretchr/testify/require"
)

func summaryKey(r *Router, id string) Key {
	return Key{Type: LSTypeSummary, ID: addr(id), AdvertisingRouter: r.ID}
}

func TestGetUniqueLinkStateID(t *testing.T) {
	r := newTestRouter("1.1.1.1")
	a := NewArea(common.Backbone)
	r.AddArea(a)

	id, reoriginate := a.GetUniqueLinkStateID(pfx("10.0.0.0/24"), 5)
	require.Equal(t, addr("10.0.0.0"), id)
	require.Nil(t, reoriginate)

	a.InstallSummaryLSA(a.newSummaryLSA(LSTypeSummary, addr("10.0.0.0"), 24, 5))

	id, reoriginate = a.GetUniqueLinkStateID(pfx("10.0.0.0/24"), 5)
	require.Equal(t, addr("10.0.0.0"), id)
	require.Nil(t, reoriginate)

	// less specific than what's there: use the last address of dest
	id, reoriginate = a.GetUniqueLinkStateID(pfx("10.0.0.0/16"), 3)
	require.Equal(t, addr("10.0.255.255"), id)
	require.Nil(t, reoriginate)

	// more specific: dest takes over the network address and the existing
	// /24 moves to its last address
	id, reoriginate = a.GetUniqueLinkStateID(pfx("10.0.0.0/25"), 7)
	require.Equal(t, addr("10.0.0.255"), id)
	require.NotNil(t, reoriginate)
	require.Equal(t, addr("10.0.0.0"), reoriginate.ID)
	require.Equal(t, 25, reoriginate.Bits)
	require.Equal(t, uint32(7), reoriginate.Cost)
	require.Equal(t, nextSequenceNumber(initialSequenceNumber), reoriginate.SequenceNumber)

	displaced, reoriginate := a.originateNetworkSummary(pfx("10.0.0.0/25"), 7)
	require.NotNil(t, reoriginate)
	require.Equal(t, addr("10.0.0.255"), displaced.ID)
	require.Equal(t, 24, displaced.Bits)
	require.Equal(t, uint32(5), displaced.Cost)
	require.Equal(t, int32(initialSequenceNumber), displaced.SequenceNumber)
}

// abrTopology is a border router between the backbone (eth0, 10.0.0.0/24)
// and area 0.0.0.1 (eth1, 10.1.0.0/24 and eth2, 10.1.1.0/24). Neither
// interface has neighbors.
func abrTopology(t *testing.T, configure func(a1 *Area)) *Router {
	t.Helper()

	r := newTestRouter("1.1.1.1")

	a0 := NewArea(common.Backbone)
	a0.AddInterface(&Interface{Name: "eth0", Type: InterfaceBroadcast, State: IfDR, Prefix: pfx("10.0.0.1/24"), Cost: 10})
	r.AddArea(a0)

	a1 := NewArea(1)
	a1.AddInterface(&Interface{Name: "eth1", Type: InterfaceBroadcast, State: IfDR, Prefix: pfx("10.1.0.1/24"), Cost: 10})
	a1.AddInterface(&Interface{Name: "eth2", Type: InterfaceBroadcast, State: IfDR, Prefix: pfx("10.1.1.1/24"), Cost: 20})
	if configure != nil {
		configure(a1)
	}
	r.AddArea(a1)

	mustRebuild(t, r)

	return r
}

func TestAreaBorderRouterOriginatesSummaries(t *testing.T) {
	r := abrTopology(t, nil)
	a0, a1 := r.Area(common.Backbone), r.Area(1)

	require.True(t, a0.FindRouterLSA(r.ID).Border)
	require.True(t, a1.FindRouterLSA(r.ID).Border)

	s := a0.FindSummaryLSA(summaryKey(r, "10.1.0.0"))
	require.NotNil(t, s)
	require.Equal(t, 24, s.Bits)
	require.Equal(t, uint32(10), s.Cost)
	require.Equal(t, Originated, s.Tracking.Origin)

	s = a0.FindSummaryLSA(summaryKey(r, "10.1.1.0"))
	require.NotNil(t, s)
	require.Equal(t, uint32(20), s.Cost)

	s = a1.FindSummaryLSA(summaryKey(r, "10.0.0.0"))
	require.NotNil(t, s)
	require.Equal(t, uint32(10), s.Cost)

	// nothing is summarized back into the area it came from
	require.Nil(t, a1.FindSummaryLSA(summaryKey(r, "10.1.0.0")))
	require.Nil(t, a0.FindSummaryLSA(summaryKey(r, "10.0.0.0")))

	// self-originated summaries don't produce routes
	require.Len(t, r.RoutingTable(), 3)

	// the same table doesn't produce new instances
	mustRebuild(t, r)
	require.Equal(t, int32(initialSequenceNumber), a0.FindSummaryLSA(summaryKey(r, "10.1.0.0")).SequenceNumber)
}

func TestAddressRangeAggregation(t *testing.T) {
	r := abrTopology(t, func(a1 *Area) {
		a1.AddressRanges = []AddressRange{{Prefix: pfx("10.1.0.0/16"), Advertise: true}}
	})
	a0 := r.Area(common.Backbone)

	s := a0.FindSummaryLSA(summaryKey(r, "10.1.0.0"))
	require.NotNil(t, s)
	require.Equal(t, 16, s.Bits)
	require.Equal(t, uint32(20), s.Cost)
	require.Nil(t, a0.FindSummaryLSA(summaryKey(r, "10.1.1.0")))

	var fromSelf int
	for _, lsa := range a0.SummaryLSAs() {
		if lsa.AdvertisingRouter == r.ID {
			fromSelf++
		}
	}
	require.Equal(t, 1, fromSelf)
}

func TestHiddenAddressRange(t *testing.T) {
	r := abrTopology(t, func(a1 *Area) {
		a1.AddressRanges = []AddressRange{{Prefix: pfx("10.1.0.0/16"), Advertise: false}}
	})
	a0 := r.Area(common.Backbone)

	for _, lsa := range a0.SummaryLSAs() {
		require.NotEqual(t, r.ID, lsa.AdvertisingRouter, "unexpected summary %s", lsa.Key())
	}
}

func TestStubAreaGetsDefaultSummary(t *testing.T) {
	r := abrTopology(t, func(a1 *Area) {
		a1.ExternalRoutingCapability = false
		a1.StubDefaultCost = 7
	})
	a1 := r.Area(1)

	s := a1.FindSummaryLSA(summaryKey(r, "0.0.0.0"))
	require.NotNil(t, s)
	require.Equal(t, 0, s.Bits)
	require.Equal(t, uint32(7), s.Cost)
	require.Zero(t, s.Options&OptionE)
	require.False(t, r.IsDestinationUnreachable(s))

	require.Nil(t, r.Area(common.Backbone).FindSummaryLSA(summaryKey(r, "0.0.0.0")))
}

func TestSummaryWithdrawnWhenDestinationDisappears(t *testing.T) {
	r := abrTopology(t, nil)
	a0, a1 := r.Area(common.Backbone), r.Area(1)

	s := a0.FindSummaryLSA(summaryKey(r, "10.1.0.0"))
	require.NotNil(t, s)

	eth1 := a1.interfaceByName("eth1")
	eth1.State = IfDown
	require.NoError(t, r.NeighborChanged(eth1))

	require.True(t, s.IsMaxAge())
	require.True(t, s.Purgeable)
	require.False(t, a0.FindSummaryLSA(summaryKey(r, "10.1.1.0")).IsMaxAge())

	require.NoError(t, r.AgeDatabase())
	require.Nil(t, a0.FindSummaryLSA(summaryKey(r, "10.1.0.0")))
}

func TestLookupInsideActiveRange(t *testing.T) {
	r := newTestRouter("1.1.1.1")

	a0 := NewArea(common.Backbone)
	a0.AddInterface(&Interface{Name: "eth0", Type: InterfaceBroadcast, State: IfDR, Prefix: pfx("10.0.0.1/8"), Cost: 10})
	r.AddArea(a0)

	a1 := NewArea(1)
	a1.AddressRanges = []AddressRange{{Prefix: pfx("10.1.0.0/16"), Advertise: true}}
	a1.AddInterface(&Interface{Name: "eth1", Type: InterfaceBroadcast, State: IfDR, Prefix: pfx("10.1.0.1/24"), Cost: 10})
	r.AddArea(a1)

	mustRebuild(t, r)

	require.Equal(t, pfx("10.1.0.0/24"), r.Lookup(addr("10.1.0.9")).Prefix())
	require.Equal(t, pfx("10.0.0.0/8"), r.Lookup(addr("10.2.0.1")).Prefix())

	// covered by the /8, but inside an active range with no better match
	require.Nil(t, r.Lookup(addr("10.1.9.9")))
}

func TestSummaryWithdrawnWhenDestinationMovesArea(t *testing.T) {
	r := newTestRouter("1.1.1.1")

	a0 := NewArea(common.Backbone)
	eth0 := &Interface{Name: "eth0", Type: InterfacePointToPoint, State: IfPointToPoint, Prefix: pfx("10.0.12.1/30"), Cost: 1}
	eth0.AddNeighbor(&Neighbor{ID: rid("2.2.2.2"), Addr: addr("10.0.12.2"), State: NbrFull})
	a0.AddInterface(eth0)
	r.AddArea(a0)

	a1 := NewArea(1)
	a1.AddInterface(&Interface{Name: "eth1", Type: InterfaceBroadcast, State: IfDR, Prefix: pfx("10.1.0.1/24"), Cost: 10})
	r.AddArea(a1)

	b := newRouterLSA("2.2.2.2", p2pLink("1.1.1.1", "10.0.12.2", 1), stubPrefixLink("10.0.12.0/30", 1))
	mustInstall(t, r, common.Backbone, b)
	mustRebuild(t, r)

	s := a0.FindSummaryLSA(summaryKey(r, "10.1.0.0"))
	require.NotNil(t, s)
	require.Equal(t, uint32(10), s.Cost)

	// 2.2.2.2 now reaches 10.1.0.0/24 more cheaply inside the backbone
	b = newRouterLSA("2.2.2.2", p2pLink("1.1.1.1", "10.0.12.2", 1), stubPrefixLink("10.0.12.0/30", 1), stubPrefixLink("10.1.0.0/24", 1))
	b.SequenceNumber = nextSequenceNumber(initialSequenceNumber)
	mustInstall(t, r, common.Backbone, b)
	mustRebuild(t, r)

	e := findEntry(t, r, "10.1.0.0/24")
	require.Equal(t, common.Backbone, e.Area)
	require.Equal(t, uint32(2), e.Cost)

	require.True(t, s.IsMaxAge())
	require.True(t, s.Purgeable)

	into1 := a1.FindSummaryLSA(summaryKey(r, "10.1.0.0"))
	require.NotNil(t, into1)
	require.Equal(t, uint32(2), into1.Cost)
	require.False(t, into1.IsMaxAge())

	// and back again
	b = newRouterLSA("2.2.2.2", p2pLink("1.1.1.1", "10.0.12.2", 1), stubPrefixLink("10.0.12.0/30", 1))
	b.SequenceNumber = nextSequenceNumber(nextSequenceNumber(initialSequenceNumber))
	mustInstall(t, r, common.Backbone, b)
	mustRebuild(t, r)

	require.Equal(t, common.AreaID(1), findEntry(t, r, "10.1.0.0/24").Area)

	s = a0.FindSummaryLSA(summaryKey(r, "10.1.0.0"))
	require.NotNil(t, s)
	require.False(t, s.IsMaxAge())
	require.Equal(t, uint32(10), s.Cost)
	require.True(t, into1.IsMaxAge())
}

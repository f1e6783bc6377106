package ospf

import (
	"io"
	"log/slog"
	"net/netip"
	"testing"

	"github.com/davidbalbert/spfd/common"
)

func rid(s string) common.RouterID {
	return common.RouterIDFromAddr(netip.MustParseAddr(s))
}

func addr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

func pfx(s string) netip.Prefix {
	return netip.MustParsePrefix(s)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(id string) *Router {
	return NewRouter(rid(id), discardLogger(), nil)
}

func newRouterLSA(adv string, links ...Link) *RouterLSA {
	lsa := &RouterLSA{
		Header: Header{
			Options:           OptionE,
			Type:              LSTypeRouter,
			ID:                addr(adv),
			AdvertisingRouter: rid(adv),
			SequenceNumber:    initialSequenceNumber,
		},
		Links: links,
	}
	lsa.Length = uint16(routerLSABaseLen + routerLinkLen*len(links))

	return lsa
}

func p2pLink(to, data string, metric uint16) Link {
	return Link{Type: LinkPointToPoint, ID: addr(to), Data: addr(data), Metric: metric}
}

func transitLink(dr, data string, metric uint16) Link {
	return Link{Type: LinkTransit, ID: addr(dr), Data: addr(data), Metric: metric}
}

func stubPrefixLink(prefix string, metric uint16) Link {
	p := pfx(prefix)
	return stubLink(p.Addr(), p.Bits(), metric)
}

func newExternalLSA(adv, prefix string, metricType ExternalMetricType, cost uint32) *ASExternalLSA {
	p := pfx(prefix)

	return &ASExternalLSA{
		Header: Header{
			Options:           OptionE,
			Type:              LSTypeASExternal,
			ID:                p.Addr(),
			AdvertisingRouter: rid(adv),
			SequenceNumber:    initialSequenceNumber,
			Length:            asExternalLSALen,
		},
		ASExternalContents: ASExternalContents{
			Bits:       p.Bits(),
			Cost:       cost,
			MetricType: metricType,
		},
	}
}

func remoteSummaryLSA(adv, prefix string, cost uint32) *SummaryLSA {
	p := pfx(prefix)

	return &SummaryLSA{
		Header: Header{
			Options:           OptionE,
			Type:              LSTypeSummary,
			ID:                p.Addr(),
			AdvertisingRouter: rid(adv),
			SequenceNumber:    initialSequenceNumber,
			Length:            summaryLSALen,
		},
		Bits: p.Bits(),
		Cost: cost,
	}
}

func newASBRSummaryLSA(adv, asbr string, cost uint32) *SummaryLSA {
	lsa := remoteSummaryLSA(adv, asbr+"/32", cost)
	lsa.Type = LSTypeASBRSummary
	lsa.Bits = 0

	return lsa
}

func mustInstall(t *testing.T, r *Router, areaID common.AreaID, lsas ...LSA) {
	t.Helper()

	for _, lsa := range lsas {
		if _, err := r.InstallLSA(lsa, areaID); err != nil {
			t.Fatal(err)
		}
	}
}

func mustRebuild(t *testing.T, r *Router) {
	t.Helper()

	if err := r.RebuildRoutingTable(); err != nil {
		t.Fatal(err)
	}
}

func findEntry(t *testing.T, r *Router, prefix string) *RoutingTableEntry {
	t.Helper()

	e := findNetworkEntry(r.routingTable, pfx(prefix))
	if e == nil {
		t.Fatalf("no routing table entry for %s", prefix)
	}

	return e
}

// lineTopology builds 1.1.1.1 -- 2.2.2.2 -- 3.3.3.3 in the backbone. The
// router under test is 1.1.1.1 and every link has cost 1. 3.3.3.3 has a stub
// network 10.3.0.0/24.
func lineTopology(t *testing.T) (*Router, *Interface, *Neighbor) {
	t.Helper()

	r := newTestRouter("1.1.1.1")
	a := NewArea(common.Backbone)

	eth0 := &Interface{
		Name:   "eth0",
		Index:  2,
		Type:   InterfacePointToPoint,
		State:  IfPointToPoint,
		Prefix: pfx("10.0.12.1/30"),
		Cost:   1,
	}
	b := &Neighbor{ID: rid("2.2.2.2"), Addr: addr("10.0.12.2"), State: NbrFull}
	eth0.AddNeighbor(b)
	a.AddInterface(eth0)
	r.AddArea(a)

	mustInstall(t, r, common.Backbone,
		newRouterLSA("2.2.2.2",
			p2pLink("1.1.1.1", "10.0.12.2", 1),
			p2pLink("3.3.3.3", "10.0.23.2", 1),
			stubPrefixLink("10.0.12.0/30", 1),
			stubPrefixLink("10.0.23.0/30", 1),
		),
		newRouterLSA("3.3.3.3",
			p2pLink("2.2.2.2", "10.0.23.3", 1),
			stubPrefixLink("10.0.23.0/30", 1),
			stubPrefixLink("10.3.0.0/24", 1),
		),
	)

	mustRebuild(t, r)

	return r, eth0, b
}

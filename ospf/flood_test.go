package ospf

import (
	"testing"

	"github.com/davidbalbert/spfd/common"
	"github.com/stretchr/testify/require"
)

// multiAccess puts 1.1.1.1 on a broadcast network with a DR (4.4.4.4), a BDR
// (6.6.6.6) and one other router (7.7.7.7), all fully adjacent.
func multiAccess(state InterfaceState) (*Router, *Interface, map[string]*Neighbor) {
	r := newTestRouter("1.1.1.1")
	a := NewArea(common.Backbone)

	eth1 := &Interface{
		Name:    "eth1",
		Type:    InterfaceBroadcast,
		State:   state,
		Prefix:  pfx("10.0.1.1/24"),
		Cost:    10,
		DRID:    rid("4.4.4.4"),
		DRAddr:  addr("10.0.1.4"),
		BDRID:   rid("6.6.6.6"),
		BDRAddr: addr("10.0.1.6"),
	}

	nbrs := map[string]*Neighbor{
		"dr":    {ID: rid("4.4.4.4"), Addr: addr("10.0.1.4"), State: NbrFull},
		"bdr":   {ID: rid("6.6.6.6"), Addr: addr("10.0.1.6"), State: NbrFull},
		"other": {ID: rid("7.7.7.7"), Addr: addr("10.0.1.7"), State: NbrFull},
	}
	for _, name := range []string{"dr", "bdr", "other"} {
		eth1.AddNeighbor(nbrs[name])
	}

	a.AddInterface(eth1)
	r.AddArea(a)

	return r, eth1, nbrs
}

func TestFloodOnMultiAccessNetwork(t *testing.T) {
	tests := []struct {
		name           string
		state          InterfaceState
		from           string
		wantRetransmit []string
		wantQueued     bool
		wantBack       bool
	}{
		{"self-originated", IfDROther, "", []string{"dr", "bdr", "other"}, true, false},
		{"from DR", IfDROther, "dr", []string{"bdr", "other"}, false, false},
		{"from BDR", IfDROther, "bdr", []string{"dr", "other"}, false, false},
		{"from other as DROther", IfDROther, "other", []string{"dr", "bdr"}, true, true},
		{"from other as Backup", IfBackup, "other", []string{"dr", "bdr"}, false, false},
		{"from other as DR", IfDR, "other", []string{"dr", "bdr"}, true, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r, eth1, nbrs := multiAccess(test.state)
			lsa := newRouterLSA("9.9.9.9")

			var from *Interface
			fromNbr := nbrs[test.from]
			if fromNbr != nil {
				from = eth1
			}

			back := r.FloodLSA(lsa, common.Backbone, from, fromNbr)
			require.Equal(t, test.wantBack, back)

			var retransmit []string
			for _, name := range []string{"dr", "bdr", "other"} {
				if nbrs[name].isOnRetransmissionList(lsa.Key()) {
					retransmit = append(retransmit, name)
				}
			}
			require.Equal(t, test.wantRetransmit, retransmit)

			if test.wantQueued {
				require.Len(t, eth1.floodList, 1)
			} else {
				require.Empty(t, eth1.floodList)
			}
		})
	}
}

func TestFloodSkipsNeighborsBeforeExchange(t *testing.T) {
	r, eth1, nbrs := multiAccess(IfDR)
	nbrs["dr"].State = Nbr2Way
	nbrs["bdr"].State = NbrExStart
	nbrs["other"].State = NbrInit

	lsa := newRouterLSA("9.9.9.9")
	require.False(t, r.FloodLSA(lsa, common.Backbone, nil, nil))

	for _, n := range nbrs {
		require.Empty(t, n.RetransmissionList)
	}
	require.Empty(t, eth1.floodList)
}

func TestFloodDuringDatabaseExchange(t *testing.T) {
	lsa := newRouterLSA("9.9.9.9")
	lsa.SequenceNumber = initialSequenceNumber + 5

	requested := func(delta int32) Header {
		h := lsa.Header
		h.SequenceNumber += delta
		return h
	}

	tests := []struct {
		name           string
		request        Header
		wantRequested  bool
		wantRetransmit bool
	}{
		{"requested older instance", requested(-1), false, true},
		{"requested same instance", requested(0), false, false},
		{"requested newer instance", requested(1), true, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r, _, nbrs := multiAccess(IfDR)
			n := nbrs["other"]
			n.State = NbrLoading
			n.LinkStateRequestList = []Header{test.request}

			r.FloodLSA(lsa, common.Backbone, nil, nil)

			require.Equal(t, test.wantRequested, n.requestListIndexOf(lsa.Key()) != -1)
			require.Equal(t, test.wantRetransmit, n.isOnRetransmissionList(lsa.Key()))
		})
	}
}

func TestFloodingScope(t *testing.T) {
	r, eth1, nbrs := multiAccess(IfDR)

	stub := NewArea(1)
	stub.ExternalRoutingCapability = false
	eth2 := &Interface{Name: "eth2", Type: InterfacePointToPoint, State: IfPointToPoint, Prefix: pfx("10.1.0.1/30"), Cost: 1}
	h := &Neighbor{ID: rid("8.8.8.8"), Addr: addr("10.1.0.2"), State: NbrFull}
	eth2.AddNeighbor(h)
	stub.AddInterface(eth2)
	r.AddArea(stub)

	vlink := &Interface{Name: "vlink-9.9.9.9", Type: InterfaceVirtualLink, State: IfPointToPoint, TransitAreaID: 1}
	v := &Neighbor{ID: rid("9.9.9.9"), State: NbrFull}
	vlink.AddNeighbor(v)
	r.Area(common.Backbone).AddInterface(vlink)

	external := newExternalLSA("4.4.4.4", "192.0.2.0/24", Type2, 10)
	r.FloodLSA(external, common.Backbone, nil, nil)

	require.True(t, nbrs["other"].isOnRetransmissionList(external.Key()))
	require.False(t, h.isOnRetransmissionList(external.Key()))
	require.False(t, v.isOnRetransmissionList(external.Key()))
	require.Len(t, eth1.floodList, 1)
	require.Empty(t, eth2.floodList)

	summary := &SummaryLSA{Header: Header{Type: LSTypeSummary, ID: addr("10.9.0.0"), AdvertisingRouter: rid("8.8.8.8")}, Bits: 16}
	r.FloodLSA(summary, 1, nil, nil)

	require.True(t, h.isOnRetransmissionList(summary.Key()))
	require.False(t, nbrs["other"].isOnRetransmissionList(summary.Key()))

	backbone := newRouterLSA("6.6.6.6")
	r.FloodLSA(backbone, common.Backbone, nil, nil)

	require.True(t, v.isOnRetransmissionList(backbone.Key()))
	require.False(t, h.isOnRetransmissionList(backbone.Key()))
}

func TestAcknowledge(t *testing.T) {
	n := &Neighbor{ID: rid("2.2.2.2")}
	lsa := newRouterLSA("9.9.9.9")
	n.RetransmissionList = []Header{lsa.Header}

	older := lsa.Header
	older.SequenceNumber--
	n.Acknowledge(&older)
	require.True(t, n.isOnRetransmissionList(lsa.Key()))

	n.Acknowledge(&lsa.Header)
	require.False(t, n.isOnRetransmissionList(lsa.Key()))
}

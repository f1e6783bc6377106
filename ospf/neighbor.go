package ospf

import (
	"net/netip"
	"slices"

	"github.com/davidbalbert/spfd/common"
)

type Neighbor struct {
	ID       common.RouterID
	Addr     netip.Addr
	Priority uint8
	State    NeighborState

	RetransmissionList   []Header
	LinkStateRequestList []Header

	iface *Interface
}

func (n *Neighbor) Interface() *Interface {
	return n.iface
}

func (n *Neighbor) isDR() bool {
	return n.iface != nil && n.iface.DRID == n.ID
}

func (n *Neighbor) isBDR() bool {
	return n.iface != nil && n.iface.BDRID == n.ID
}

func (n *Neighbor) requestListIndexOf(k Key) int {
	return slices.IndexFunc(n.LinkStateRequestList, func(h Header) bool {
		return h.Key() == k
	})
}

func (n *Neighbor) removeFromRequestListAtIndex(i int) {
	n.LinkStateRequestList = slices.Delete(n.LinkStateRequestList, i, i+1)
}

func (n *Neighbor) isOnRetransmissionList(k Key) bool {
	return slices.ContainsFunc(n.RetransmissionList, func(h Header) bool {
		return h.Key() == k
	})
}

func (n *Neighbor) removeFromRetransmissionList(k Key) {
	n.RetransmissionList = slices.DeleteFunc(n.RetransmissionList, func(h Header) bool {
		return h.Key() == k
	})
}

// Acknowledge removes the LSA from the retransmission list once the neighbor
// has acknowledged the same instance.
func (n *Neighbor) Acknowledge(h *Header) {
	n.RetransmissionList = slices.DeleteFunc(n.RetransmissionList, func(rh Header) bool {
		return rh.Key() == h.Key() && rh.SameInstance(h)
	})
}

type NeighborState int

const (
	NbrDown NeighborState = iota
	NbrAttempt
	NbrInit
	Nbr2Way
	NbrExStart
	NbrExchange
	NbrLoading
	NbrFull
)

func (ns NeighborState) String() string {
	switch ns {
	case NbrDown:
		return "Down"
	case NbrAttempt:
		return "Attempt"
	case NbrInit:
		return "Init"
	case Nbr2Way:
		return "2-Way"
	case NbrExStart:
		return "ExStart"
	case NbrExchange:
		return "Exchange"
	case NbrLoading:
		return "Loading"
	case NbrFull:
		return "Full"
	default:
		return "Unknown"
	}
}

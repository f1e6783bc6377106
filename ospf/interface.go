package ospf

import (
	"net/netip"

	"github.com/davidbalbert/spfd/common"
)

type Interface struct {
	Name   string
	Index  int
	Type   InterfaceType
	State  InterfaceState
	Prefix netip.Prefix // IP interface address and IP interface mask
	AreaID common.AreaID
	Cost   uint16

	// virtual links only
	TransitAreaID common.AreaID

	Neighbors []*Neighbor
	DRID      common.RouterID
	DRAddr    netip.Addr
	BDRID     common.RouterID
	BDRAddr   netip.Addr

	floodList []LSA
}

func (iface *Interface) Addr() netip.Addr {
	return iface.Prefix.Addr()
}

func (iface *Interface) AddNeighbor(n *Neighbor) {
	n.iface = iface
	iface.Neighbors = append(iface.Neighbors, n)
}

func (iface *Interface) neighborByID(id common.RouterID) *Neighbor {
	for _, n := range iface.Neighbors {
		if n.ID == id {
			return n
		}
	}

	return nil
}

func (iface *Interface) neighborByAddr(addr netip.Addr) *Neighbor {
	for _, n := range iface.Neighbors {
		if n.Addr == addr {
			return n
		}
	}

	return nil
}

func (iface *Interface) firstNeighbor() *Neighbor {
	if len(iface.Neighbors) == 0 {
		return nil
	}

	return iface.Neighbors[0]
}

func (iface *Interface) hasNeighborInStates(states ...NeighborState) bool {
	for _, n := range iface.Neighbors {
		for _, s := range states {
			if n.State == s {
				return true
			}
		}
	}

	return false
}

type InterfaceType int

const (
	InterfacePointToPoint InterfaceType = iota
	InterfaceBroadcast
	InterfaceNBMA
	InterfacePointToMultipoint
	InterfacePointToMultipointBroadcast
	InterfaceVirtualLink
)

func (it InterfaceType) String() string {
	switch it {
	case InterfacePointToPoint:
		return "Point-to-point"
	case InterfaceBroadcast:
		return "Broadcast"
	case InterfaceNBMA:
		return "NBMA"
	case InterfacePointToMultipoint:
		return "Point-to-MultiPoint"
	case InterfacePointToMultipointBroadcast:
		return "Point-to-MultiPoint Broadcast"
	case InterfaceVirtualLink:
		return "Virtual Link"
	default:
		return "Unknown"
	}
}

type InterfaceState int

const (
	IfDown InterfaceState = iota
	IfLoopback
	IfWaiting
	IfPointToPoint
	IfDROther
	IfBackup
	IfDR
)

func (is InterfaceState) String() string {
	switch is {
	case IfDown:
		return "Down"
	case IfLoopback:
		return "Loopback"
	case IfWaiting:
		return "Waiting"
	case IfPointToPoint:
		return "Point-to-point"
	case IfDROther:
		return "DROther"
	case IfBackup:
		return "Backup"
	case IfDR:
		return "DR"
	default:
		return "Unknown"
	}
}

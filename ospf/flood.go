package ospf

import (
	"github.com/davidbalbert/spfd/common"
)

// Transmitter sends queued link state updates out of an interface. Encoding
// and retransmission timers are its business.
type Transmitter interface {
	SendUpdate(iface *Interface, lsas []LSA) error
}

func (r *Router) eligibleInterfacesFor(lsa LSA, areaID common.AreaID) []*Interface {
	interfaces := make([]*Interface, 0)
	for _, iface := range r.Interfaces() {
		if lsa.LSAHeader().Type == LSTypeASExternal {
			area := r.areas[iface.AreaID]

			if area == nil {
				panic("interface has no area")
			}

			if area.ExternalRoutingCapability && iface.Type != InterfaceVirtualLink {
				interfaces = append(interfaces, iface)
			}
		} else if iface.AreaID == areaID {
			if areaID == common.Backbone || iface.Type != InterfaceVirtualLink {
				interfaces = append(interfaces, iface)
			}
		}
	}

	return interfaces
}

// FloodLSA queues lsa on every eligible interface of the area (RFC 2328
// section 13.3). from and fromNbr identify where the LSA was received and may
// be nil for self-originated LSAs. It reports whether the LSA was flooded back
// out of the receiving interface.
func (r *Router) FloodLSA(lsa LSA, areaID common.AreaID, from *Interface, fromNbr *Neighbor) bool {
	h := lsa.LSAHeader()
	ifaces := r.eligibleInterfacesFor(lsa, areaID)
	floodedOutReceivingInterface := false

	for _, iface := range ifaces {
		retransmissionScheduled := false

		// 1) Examine each neighbor on the interface.
		for _, n := range iface.Neighbors {
			// 1a) Don't flood to neighbors in state less than Exchange
			if n.State < NbrExchange {
				continue
			}

			// 1b) Handle neighbors that are doing database exchange
			existingIndex := n.requestListIndexOf(h.Key())
			if existingIndex != -1 && (n.State == NbrExchange || n.State == NbrLoading) {
				cmp := h.Compare(&n.LinkStateRequestList[existingIndex])

				if cmp == -1 {
					continue
				} else if cmp == 0 {
					n.removeFromRequestListAtIndex(existingIndex)
					continue
				} else {
					n.removeFromRequestListAtIndex(existingIndex)
				}
			}

			// 1c) Skip the neighbor that we received the LSA from
			if n == fromNbr {
				continue
			}

			// 1d) Add this LSA to the neighbor's retransmission list
			n.removeFromRetransmissionList(h.Key())
			n.RetransmissionList = append(n.RetransmissionList, *h)
			retransmissionScheduled = true
		}

		// 2) If we didn't add the LSA to any neighbor's retransmission list, skip this interface
		if !retransmissionScheduled {
			continue
		}

		if from == iface {
			// 3) If we received the LSA on this interface from a DR or BDR, skip this interface
			if fromNbr != nil && (fromNbr.isDR() || fromNbr.isBDR()) {
				continue
			}

			// 4) If we're the BDR on this interface, skip this interface
			if iface.State == IfBackup {
				continue
			}

			floodedOutReceivingInterface = true
		}

		iface.floodList = append(iface.floodList, lsa.Clone())
		r.metrics.lsaFlooded.WithLabelValues(h.Type.String()).Inc()
	}

	return floodedOutReceivingInterface
}

func (r *Router) HasAnyNeighborInStates(states ...NeighborState) bool {
	for _, iface := range r.Interfaces() {
		if iface.hasNeighborInStates(states...) {
			return true
		}
	}

	return false
}

func (r *Router) IsOnAnyRetransmissionList(k Key) bool {
	for _, iface := range r.Interfaces() {
		for _, n := range iface.Neighbors {
			if n.isOnRetransmissionList(k) {
				return true
			}
		}
	}

	return false
}

func (r *Router) RemoveFromAllRetransmissionLists(k Key) {
	for _, iface := range r.Interfaces() {
		for _, n := range iface.Neighbors {
			n.removeFromRetransmissionList(k)
		}
	}
}

// Flush hands every queued update to the transmitter and empties the flood
// lists.
func (r *Router) Flush() {
	for _, iface := range r.Interfaces() {
		if len(iface.floodList) == 0 {
			continue
		}

		if r.transmitter != nil {
			if err := r.transmitter.SendUpdate(iface, iface.floodList); err != nil {
				r.log.Warn("failed to send link state update", "interface", iface.Name, "err", err)
			}
		}

		iface.floodList = nil
	}
}

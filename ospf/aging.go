package ospf

import (
	"github.com/davidbalbert/spfd/common"
)

// Checksums are neither computed nor stored, so there is nothing to verify.
func checksumValid(LSA) bool {
	return true
}

func isPurgeable(lsa LSA) bool {
	switch l := lsa.(type) {
	case *SummaryLSA:
		return l.Purgeable
	case *ASExternalLSA:
		return l.Purgeable
	default:
		return false
	}
}

func updateLSA(dst, src LSA) bool {
	switch d := dst.(type) {
	case *RouterLSA:
		return d.Update(src.(*RouterLSA))
	case *NetworkLSA:
		return d.Update(src.(*NetworkLSA))
	case *SummaryLSA:
		return d.Update(src.(*SummaryLSA))
	case *ASExternalLSA:
		return d.Update(src.(*ASExternalLSA))
	default:
		panic("unknown LSA type")
	}
}

// ageLSA advances lsa by one second (RFC 2328 sections 12.4 and 14).
// reoriginate returns fresh contents for a self-originated LSA, or nil if
// the router no longer wants to advertise it. The results say whether the
// routing table has to be rebuilt and whether lsa must be removed from its
// database.
func (r *Router) ageLSA(lsa LSA, flood func(LSA) bool, reoriginate func() LSA) (rebuild, purge bool) {
	h := lsa.LSAHeader()
	tracking := lsa.TrackingInfo()
	age := h.Age
	self := r.isSelfOriginated(lsa)
	unreachable := func() bool { return r.IsDestinationUnreachable(lsa) }

	flush := func() {
		h.Age = MaxAge
		tracking.InstallTime++
		flood(lsa)
		rebuild = true
	}

	refresh := func() bool {
		fresh := reoriginate()
		if fresh == nil {
			return false
		}

		fresh.LSAHeader().SequenceNumber = nextSequenceNumber(h.SequenceNumber)
		if updateLSA(lsa, fresh) {
			rebuild = true
		}
		flood(lsa)
		r.metrics.lsaOriginated.WithLabelValues(h.Type.String()).Inc()
		r.log.Debug("refreshed LSA", "lsa", h)

		return true
	}

	switch {
	case (self && age < lsRefreshTime-1) || (!self && age < MaxAge-1):
		h.Age = age + 1
		tracking.InstallTime++

		if h.Age%checkAge == 0 && !checksumValid(lsa) {
			r.log.Error("LSA checksum mismatch", "lsa", h)
		}
	case self && age < MaxAge:
		if unreachable() || !refresh() {
			flush()
		}
	case !self && age == MaxAge-1:
		flush()
	default:
		if r.IsOnAnyRetransmissionList(h.Key()) || r.HasAnyNeighborInStates(NbrExchange, NbrLoading) {
			return rebuild, false
		}

		if !self || unreachable() || isPurgeable(lsa) || !refresh() {
			return true, true
		}
	}

	return rebuild, false
}

// freshInstance rebuilds one of our own LSAs from current state. It returns
// nil when the LSA should no longer be advertised.
func (r *Router) freshInstance(lsa LSA, area *Area) LSA {
	switch l := lsa.(type) {
	case *RouterLSA:
		if area == nil || l.AdvertisingRouter != r.ID {
			return nil
		}
		return area.OriginateRouterLSA()
	case *NetworkLSA:
		if area == nil || l.AdvertisingRouter != r.ID {
			return nil
		}

		iface := area.interfaceByAddr(l.ID)
		if iface == nil || iface.State != IfDR {
			return nil
		}

		if fresh := area.OriginateNetworkLSA(iface); fresh != nil {
			return fresh
		}
	case *SummaryLSA:
		if area == nil || l.AdvertisingRouter != r.ID {
			return nil
		}

		if fresh := area.refreshSummaryLSA(l); fresh != nil {
			return fresh
		}
	case *ASExternalLSA:
		if l.AdvertisingRouter != r.ID {
			return nil
		}

		if fresh := r.OriginateASExternalLSA(l.Prefix()); fresh != nil && fresh.ID == l.ID {
			return fresh
		}
	}

	return nil
}

func ageStore[T LSA](r *Router, db *lsdb[T], area *Area, flood func(LSA) bool) bool {
	rebuild := false

	for _, lsa := range db.all() {
		rb, purge := r.ageLSA(lsa, flood, func() LSA {
			return r.freshInstance(lsa, area)
		})

		if rb {
			rebuild = true
		}

		if purge {
			h := lsa.LSAHeader()
			db.delete(h.Key())
			r.metrics.lsaPurged.WithLabelValues(h.Type.String()).Inc()
			r.log.Debug("purged LSA", "lsa", h)
		}
	}

	return rebuild
}

// AgeDatabase ages every LSA in the area by one second, refreshing, flushing
// and purging as needed. It reports whether the routing table needs to be
// rebuilt.
func (a *Area) AgeDatabase() bool {
	r := a.router

	rebuild := ageStore(r, a.routerLSAs, a, a.floodLSA)
	if ageStore(r, a.networkLSAs, a, a.floodLSA) {
		rebuild = true
	}
	if ageStore(r, a.summaryLSAs, a, a.floodLSA) {
		rebuild = true
	}

	return rebuild
}

func (r *Router) ageASExternalLSAs() bool {
	return ageStore(r, r.asExternalLSAs, nil, func(lsa LSA) bool {
		return r.FloodLSA(lsa, common.Backbone, nil, nil)
	})
}

// AgeDatabase advances the whole database by one second and rebuilds the
// routing table at most once.
func (r *Router) AgeDatabase() error {
	rebuild := false

	for _, a := range r.Areas() {
		if a.AgeDatabase() {
			rebuild = true
		}
	}

	if r.ageASExternalLSAs() {
		rebuild = true
	}

	if !rebuild {
		return nil
	}

	return r.RebuildRoutingTable()
}

package ospf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"slices"
	"time"

	"github.com/davidbalbert/spfd/common"
	"github.com/davidbalbert/spfd/sync"
	"github.com/gaissmai/bart"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/maps"
)

var (
	// ErrDatabaseInconsistency means the routing table refers to an LSA that
	// isn't in the database. It is not recoverable.
	ErrDatabaseInconsistency = errors.New("link state database inconsistency")
	ErrUnknownArea           = errors.New("unknown area")
)

type invocation struct {
	f    func(*Router)
	done chan struct{}
}

// Router owns the link state database of every attached area and the
// routing table computed from it. It is not safe for concurrent use. Once
// Run is called, everything must go through Do.
type Router struct {
	ID                   common.RouterID
	RFC1583Compatibility bool

	areas          map[common.AreaID]*Area
	asExternalLSAs *lsdb[*ASExternalLSA]
	externalRoutes map[netip.Prefix]ASExternalContents

	routingTable []*RoutingTableEntry
	lookupTable  *bart.Table[*RoutingTableEntry]
	installed    []Route
	changes      *sync.QueuedNotifier[TableChange]

	transmitter Transmitter
	log         *slog.Logger
	metrics     *metrics
	invocations chan invocation
}

// NewRouter returns a router with no areas. log defaults to slog.Default()
// and a nil reg leaves metrics unregistered.
func NewRouter(id common.RouterID, log *slog.Logger, reg prometheus.Registerer) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		ID:             id,
		areas:          make(map[common.AreaID]*Area),
		asExternalLSAs: newLSDB[*ASExternalLSA](),
		externalRoutes: make(map[netip.Prefix]ASExternalContents),
		lookupTable:    new(bart.Table[*RoutingTableEntry]),
		changes:        sync.NewQueuedNotifier[TableChange](),
		log:            log.With("router-id", id),
		metrics:        newMetrics(reg),
		invocations:    make(chan invocation),
	}
}

func (r *Router) SetTransmitter(t Transmitter) {
	r.transmitter = t
}

func (r *Router) AddArea(a *Area) {
	a.router = r
	r.areas[a.ID] = a
}

func (r *Router) Area(id common.AreaID) *Area {
	return r.areas[id]
}

// Areas returns the attached areas ordered by ID.
func (r *Router) Areas() []*Area {
	ids := maps.Keys(r.areas)
	slices.Sort(ids)

	areas := make([]*Area, len(ids))
	for i, id := range ids {
		areas[i] = r.areas[id]
	}

	return areas
}

func (r *Router) Interfaces() []*Interface {
	var ifaces []*Interface
	for _, a := range r.Areas() {
		ifaces = append(ifaces, a.Interfaces...)
	}

	return ifaces
}

func (r *Router) interfaceByName(name string) *Interface {
	for _, iface := range r.Interfaces() {
		if iface.Type != InterfaceVirtualLink && iface.Name == name {
			return iface
		}
	}

	return nil
}

func (r *Router) interfaceByAddr(addr netip.Addr) *Interface {
	for _, iface := range r.Interfaces() {
		if iface.Type != InterfaceVirtualLink && iface.Addr() == addr {
			return iface
		}
	}

	return nil
}

func (r *Router) isAreaBorderRouter() bool {
	return len(r.areas) > 1
}

func (r *Router) IsASBoundaryRouter() bool {
	return len(r.externalRoutes) > 0
}

func (r *Router) isSelfOriginated(lsa LSA) bool {
	h := lsa.LSAHeader()
	if h.AdvertisingRouter == r.ID {
		return true
	}

	return h.Type == LSTypeNetwork && r.interfaceByAddr(h.ID) != nil
}

// FindLSA looks k up in the area's database, or in the AS-external database
// for AS-external keys.
func (r *Router) FindLSA(k Key, areaID common.AreaID) LSA {
	if k.Type == LSTypeASExternal {
		if lsa, ok := r.asExternalLSAs.get(k); ok {
			return lsa
		}
		return nil
	}

	if a := r.areas[areaID]; a != nil {
		return a.findLSA(k)
	}

	return nil
}

// InstallLSA stores lsa in the database for its scope. It reports whether
// the routing table needs to be rebuilt.
func (r *Router) InstallLSA(lsa LSA, areaID common.AreaID) (bool, error) {
	if l, ok := lsa.(*ASExternalLSA); ok {
		return r.InstallASExternalLSA(l), nil
	}

	a := r.areas[areaID]
	if a == nil {
		return false, fmt.Errorf("install %s: area %s: %w", lsa.LSAHeader().Key(), areaID, ErrUnknownArea)
	}

	switch l := lsa.(type) {
	case *RouterLSA:
		return a.InstallRouterLSA(l), nil
	case *NetworkLSA:
		return a.InstallNetworkLSA(l), nil
	case *SummaryLSA:
		return a.InstallSummaryLSA(l), nil
	default:
		panic(fmt.Sprintf("unknown LSA type %T", lsa))
	}
}

// ReceiveLSA processes an LSA received from a neighbor in a link state update
// (RFC 2328 section 13, from step 4 on). from and fromNbr may be nil.
func (r *Router) ReceiveLSA(lsa LSA, areaID common.AreaID, from *Interface, fromNbr *Neighbor) error {
	h := lsa.LSAHeader()

	area := r.areas[areaID]
	if area == nil {
		return fmt.Errorf("receive %s: area %s: %w", h.Key(), areaID, ErrUnknownArea)
	}

	if h.Type == LSTypeASExternal && area.IsStub() {
		r.log.Debug("dropping AS-external LSA received in stub area", "lsa", h, "area", areaID)
		return nil
	}

	stored := r.FindLSA(h.Key(), areaID)

	if h.IsMaxAge() && stored == nil && !r.HasAnyNeighborInStates(NbrExchange, NbrLoading) {
		if fromNbr != nil {
			fromNbr.removeFromRetransmissionList(h.Key())
		}
		return nil
	}

	cmp := 1
	if stored != nil {
		sh := stored.LSAHeader()
		cmp = h.Compare(sh)

		// a prematurely aged copy of the instance we hold
		if h.IsMaxAge() && !sh.IsMaxAge() && h.SequenceNumber == sh.SequenceNumber && h.Checksum == sh.Checksum {
			cmp = 1
		}
	}

	switch {
	case cmp > 0:
		if stored != nil && stored.TrackingInfo().Origin == Flooded && stored.TrackingInfo().InstallTime < minLSArrival {
			r.log.Debug("dropping LSA received within MinLSArrival", "lsa", h)
			return nil
		}

		if r.isSelfOriginated(lsa) {
			return r.receiveSelfOriginated(lsa, area, stored)
		}

		r.FloodLSA(lsa, areaID, from, fromNbr)

		installed := lsa.Clone()
		*installed.TrackingInfo() = TrackingInfo{Origin: Flooded}
		installed.RoutingInfo().reset()

		rebuild, err := r.InstallLSA(installed, areaID)
		if err != nil {
			return err
		}

		if rebuild {
			return r.RebuildRoutingTable()
		}
	case cmp == 0:
		if fromNbr != nil {
			fromNbr.removeFromRetransmissionList(h.Key())
		}
	default:
		r.log.Debug("dropping older LSA", "lsa", h)
	}

	return nil
}

// receiveSelfOriginated handles a newer copy of one of our own LSAs (RFC 2328
// section 13.4). If we still want to advertise it, a new instance with a
// higher sequence number replaces it. Otherwise it is flushed.
func (r *Router) receiveSelfOriginated(lsa LSA, area *Area, stored LSA) error {
	h := lsa.LSAHeader()

	scope := area
	if h.Type == LSTypeASExternal {
		scope = nil
	}

	var fresh LSA
	if stored != nil || h.AdvertisingRouter == r.ID {
		fresh = r.freshInstance(lsa, scope)
	}

	if fresh != nil {
		fresh.LSAHeader().SequenceNumber = nextSequenceNumber(h.SequenceNumber)
	} else {
		fresh = lsa.Clone()
		fresh.LSAHeader().Age = MaxAge
		*fresh.TrackingInfo() = TrackingInfo{Origin: Originated}
	}

	rebuild, err := r.InstallLSA(fresh, area.ID)
	if err != nil {
		return err
	}

	r.FloodLSA(fresh, area.ID, nil, nil)
	r.log.Debug("answered newer copy of self-originated LSA", "lsa", fresh.LSAHeader())

	if rebuild {
		return r.RebuildRoutingTable()
	}

	return nil
}

// originateRouterLSAs re-originates the router LSA of every area whose
// contents changed.
func (r *Router) originateRouterLSAs() bool {
	rebuild := false

	for _, a := range r.Areas() {
		fresh := a.OriginateRouterLSA()

		existing := a.FindRouterLSA(r.ID)
		if existing != nil {
			if !existing.DiffersFrom(fresh) {
				continue
			}
			fresh.SequenceNumber = nextSequenceNumber(existing.SequenceNumber)
		}

		if a.InstallRouterLSA(fresh) {
			rebuild = true
		}
		a.floodLSA(fresh)
		r.metrics.lsaOriginated.WithLabelValues(LSTypeRouter.String()).Inc()
	}

	return rebuild
}

// NeighborChanged is called after an interface or adjacency state change. It
// re-originates the affected router and network LSAs and rebuilds the
// routing table.
func (r *Router) NeighborChanged(iface *Interface) error {
	rebuild := r.originateRouterLSAs()

	a := r.areas[iface.AreaID]
	if a != nil && iface.Type != InterfaceVirtualLink && iface.Addr().IsValid() {
		k := Key{Type: LSTypeNetwork, ID: iface.Addr(), AdvertisingRouter: r.ID}
		existing := a.FindNetworkLSA(k)

		var fresh *NetworkLSA
		if iface.State == IfDR {
			fresh = a.OriginateNetworkLSA(iface)
		}

		switch {
		case fresh != nil && (existing == nil || existing.IsMaxAge() || existing.DiffersFrom(fresh)):
			if existing != nil {
				fresh.SequenceNumber = nextSequenceNumber(existing.SequenceNumber)
			}
			if a.InstallNetworkLSA(fresh) {
				rebuild = true
			}
			a.floodLSA(fresh)
			r.metrics.lsaOriginated.WithLabelValues(LSTypeNetwork.String()).Inc()
		case fresh == nil && existing != nil && !existing.IsMaxAge():
			existing.Age = MaxAge
			a.floodLSA(existing)
			rebuild = true
		}
	}

	if !rebuild {
		return nil
	}

	return r.RebuildRoutingTable()
}

func buildLookupTable(table []*RoutingTableEntry) *bart.Table[*RoutingTableEntry] {
	lt := new(bart.Table[*RoutingTableEntry])
	for _, e := range table {
		if e.isNetwork() {
			lt.Insert(e.Prefix(), e)
		}
	}

	return lt
}

// activeDiscardRanges returns the address ranges that contain at least one
// intra-area network of their area. Destinations that fall inside one of
// them but match nothing more specific are unreachable.
func (r *Router) activeDiscardRanges(table []*RoutingTableEntry) []netip.Prefix {
	var ranges []netip.Prefix
	for _, a := range r.Areas() {
		for _, rng := range a.AddressRanges {
			for _, e := range table {
				if e.isNetwork() && e.PathType == IntraArea && e.Area == a.ID && prefixWithin(e.Prefix(), rng.Prefix) {
					ranges = append(ranges, rng.Prefix.Masked())
					break
				}
			}
		}
	}

	return ranges
}

func (r *Router) hasActiveAddressRange(table []*RoutingTableEntry, prefix netip.Prefix) bool {
	return slices.Contains(r.activeDiscardRanges(table), prefix.Masked())
}

// Lookup returns the network entry with the longest prefix containing addr,
// or nil if there is none or an active address range hides it.
func (r *Router) Lookup(addr netip.Addr) *RoutingTableEntry {
	return r.lookup(addr, r.routingTable, r.lookupTable)
}

func (r *Router) lookup(addr netip.Addr, table []*RoutingTableEntry, lt *bart.Table[*RoutingTableEntry]) *RoutingTableEntry {
	best, ok := lt.Lookup(addr)
	if !ok {
		return nil
	}

	for _, rng := range r.activeDiscardRanges(table) {
		if rng.Contains(addr) && rng.Bits() > best.Bits {
			return nil
		}
	}

	return best
}

func (r *Router) hasRouteWithin(prefix netip.Prefix) bool {
	for _, e := range r.routingTable {
		if e.isNetwork() && prefixWithin(e.Prefix(), prefix) {
			return true
		}
	}

	return false
}

// IsDestinationUnreachable reports whether the destination an LSA describes
// can no longer be reached. Self-originated LSAs for unreachable destinations
// are flushed rather than refreshed.
func (r *Router) IsDestinationUnreachable(lsa LSA) bool {
	switch l := lsa.(type) {
	case *RouterLSA:
		if l.AdvertisingRouter == r.ID {
			return false
		}
		return l.Routing.Parent.IsZero()
	case *NetworkLSA:
		return l.Routing.Parent.IsZero()
	case *SummaryLSA:
		if l.Type == LSTypeASBRSummary {
			return len(asbrEntries(r.routingTable, common.RouterIDFromAddr(l.ID))) == 0
		}

		if l.AdvertisingRouter == r.ID && l.Bits == 0 {
			return false
		}

		return !r.hasRouteWithin(l.Prefix())
	case *ASExternalLSA:
		if l.AdvertisingRouter == r.ID {
			_, ok := r.externalRoutes[l.Prefix()]
			return !ok
		}
		return r.Lookup(l.Prefix().Addr()) == nil
	default:
		panic(fmt.Sprintf("unknown LSA type %T", lsa))
	}
}

// RoutingTable returns a copy of the current routing table.
func (r *Router) RoutingTable() []*RoutingTableEntry {
	table := make([]*RoutingTableEntry, len(r.routingTable))
	for i, e := range r.routingTable {
		table[i] = e.clone()
	}

	return table
}

// Changes publishes a TableChange after every routing table rebuild.
func (r *Router) Changes() *sync.QueuedNotifier[TableChange] {
	return r.changes
}

func (r *Router) checkConsistency(table []*RoutingTableEntry) error {
	for _, e := range table {
		if r.FindLSA(e.Origin, e.OriginArea) == nil {
			return fmt.Errorf("%w: %s refers to missing %s", ErrDatabaseInconsistency, e.Prefix(), e.Origin)
		}
	}

	return nil
}

// RebuildRoutingTable recalculates the routing table from scratch (RFC 2328
// section 16), publishes the forwarding changes and updates the summary LSAs
// this router originates into each area.
func (r *Router) RebuildRoutingTable() error {
	var table []*RoutingTableEntry

	areas := r.Areas()
	hasTransitArea := false

	for _, a := range areas {
		table = a.CalculateShortestPathTree(table)
		if a.TransitCapability {
			hasTransitArea = true
		}
	}

	if len(areas) > 1 {
		if backbone := r.areas[common.Backbone]; backbone != nil {
			table = backbone.CalculateInterAreaRoutes(table)
		}
	} else if len(areas) == 1 {
		table = areas[0].CalculateInterAreaRoutes(table)
	}

	if hasTransitArea {
		for _, a := range areas {
			if a.TransitCapability {
				a.RecheckSummaryLSAs(table)
			}
		}
	}

	table = r.CalculateASExternalRoutes(table)

	if err := r.checkConsistency(table); err != nil {
		r.log.Error("routing table calculation failed", "err", err)
		return err
	}

	old := r.routingTable
	r.routingTable = table
	r.lookupTable = buildLookupTable(table)

	installed := routesFromTable(table)
	r.changes.NotifyChange(TableChange{Withdrawn: r.installed, Installed: installed})
	r.installed = installed

	r.notifyAboutRoutingTableChanges(old)
	r.originateStubDefaults()

	r.metrics.spfRuns.Inc()
	r.metrics.routingTableEntries.Set(float64(len(table)))
	r.log.Info("rebuilt routing table", "entries", len(table), "routes", len(installed))

	return nil
}

// notifyAboutRoutingTableChanges updates the summary LSAs originated into
// each area after the routing table changed from old to the current one.
func (r *Router) notifyAboutRoutingTableChanges(old []*RoutingTableEntry) {
	if len(r.areas) < 2 {
		return
	}

	oldByKey := make(map[tableKey]*RoutingTableEntry, len(old))
	for _, e := range old {
		oldByKey[e.key()] = e
	}

	current := make(map[tableKey]*RoutingTableEntry, len(r.routingTable))
	for _, e := range r.routingTable {
		current[e.key()] = e
	}

	for _, a := range r.Areas() {
		originated := make(map[Key]bool)

		for _, e := range r.routingTable {
			if prev, ok := oldByKey[e.key()]; ok && prev.Equal(e) {
				continue
			}

			lsa, reoriginate := a.OriginateSummaryLSA(e, originated)
			if lsa == nil {
				continue
			}

			if reoriginate != nil {
				a.InstallSummaryLSA(reoriginate)
				a.floodLSA(reoriginate)
				originated[reoriginate.Key()] = true
			}

			if existing := a.FindSummaryLSA(lsa.Key()); existing != nil {
				if !existing.IsMaxAge() && !existing.DiffersFrom(lsa) && existing.Bits == lsa.Bits {
					originated[lsa.Key()] = true
					continue
				}
				lsa.SequenceNumber = nextSequenceNumber(existing.SequenceNumber)
			}

			a.InstallSummaryLSA(lsa)
			a.floodLSA(lsa)
			originated[lsa.Key()] = true
			r.metrics.lsaOriginated.WithLabelValues(lsa.Type.String()).Inc()
			r.log.Debug("originated summary LSA", "lsa", lsa.Key(), "area", a.ID)
		}

		for _, e := range old {
			if cur, ok := current[e.key()]; ok && cur.Equal(e) {
				continue
			}
			r.withdrawSummaryLSA(a, a.withdrawnSummaryFor(e, r.routingTable), originated)
		}

		for _, e := range r.routingTable {
			if prev, ok := oldByKey[e.key()]; ok && prev.Equal(e) {
				continue
			}
			r.withdrawSummaryLSA(a, a.withdrawnSummaryFor(e, r.routingTable), originated)
		}
	}
}

// withdrawSummaryLSA flushes one of our summaries once nothing in the
// routing table justifies it any more.
func (r *Router) withdrawSummaryLSA(a *Area, lsa *SummaryLSA, originated map[Key]bool) {
	if lsa == nil || originated[lsa.Key()] || lsa.IsMaxAge() {
		return
	}

	if a.refreshSummaryLSA(lsa) != nil {
		return
	}

	lsa.Age = MaxAge
	lsa.Purgeable = true
	a.floodLSA(lsa)
	r.log.Debug("withdrew summary LSA", "lsa", lsa.Key(), "area", a.ID)
}

// withdrawnSummaryFor finds the summary this area carries for a destination
// that left the routing table or changed. Aggregates are only withdrawn once
// no component of their range remains.
func (a *Area) withdrawnSummaryFor(e *RoutingTableEntry, table []*RoutingTableEntry) *SummaryLSA {
	r := a.router

	if e.DestinationType&DestinationASBoundaryRouter != 0 {
		return a.FindSummaryLSA(Key{Type: LSTypeASBRSummary, ID: e.Destination, AdvertisingRouter: r.ID})
	}

	if !e.isNetwork() {
		return nil
	}

	prefix := e.Prefix()

	if e.PathType == IntraArea && !(e.Area == common.Backbone && a.TransitCapability) {
		if origin := r.areas[e.Area]; origin != nil {
			if rng, ok := origin.containingAddressRange(prefix); ok {
				if r.hasActiveAddressRange(table, rng.Prefix) {
					return nil
				}
				prefix = rng.Prefix.Masked()
			}
		}
	}

	for _, lsa := range a.summaryLSAs.all() {
		if lsa.Type == LSTypeSummary && lsa.AdvertisingRouter == r.ID && lsa.Prefix() == prefix {
			return lsa
		}
	}

	return nil
}

// originateStubDefaults advertises a default route into every stub area
// while this router is an area border router.
func (r *Router) originateStubDefaults() {
	for _, a := range r.Areas() {
		if !a.IsStub() {
			continue
		}

		k := Key{Type: LSTypeSummary, ID: netip.IPv4Unspecified(), AdvertisingRouter: r.ID}
		existing := a.FindSummaryLSA(k)

		if !r.isAreaBorderRouter() {
			if existing != nil && existing.Bits == 0 && !existing.IsMaxAge() {
				existing.Age = MaxAge
				existing.Purgeable = true
				a.floodLSA(existing)
			}
			continue
		}

		fresh := a.defaultSummaryLSA()
		if existing != nil {
			if !existing.IsMaxAge() && !existing.DiffersFrom(fresh) && existing.Bits == 0 {
				continue
			}
			fresh.SequenceNumber = nextSequenceNumber(existing.SequenceNumber)
		}

		a.InstallSummaryLSA(fresh)
		a.floodLSA(fresh)
		r.metrics.lsaOriginated.WithLabelValues(LSTypeSummary.String()).Inc()
	}
}

// Run drives the database clock until ctx is done. Functions submitted with
// Do run between ticks on the same goroutine.
func (r *Router) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.AgeDatabase(); err != nil {
				return err
			}
			r.Flush()
		case inv := <-r.invocations:
			inv.f(r)
			r.Flush()
			close(inv.done)
		}
	}
}

// Do runs f on the router's goroutine and waits for it to return.
func (r *Router) Do(ctx context.Context, f func(*Router)) error {
	inv := invocation{f: f, done: make(chan struct{})}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r.invocations <- inv:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-inv.done:
		return nil
	}
}

package system

import (
	"context"
	"log/slog"
	"net/netip"
	"slices"
	"sync"

	"github.com/davidbalbert/spfd/ospf"
	spfsync "github.com/davidbalbert/spfd/sync"
)

// FIB is a forwarding table that OSPF routes can be written to.
type FIB interface {
	ReplaceRoute(route ospf.Route) error
	DeleteRoute(route ospf.Route) error
}

// RouteSyncer applies routing table changes to a FIB.
type RouteSyncer struct {
	fib     FIB
	changes *spfsync.QueuedNotifier[ospf.TableChange]
	log     *slog.Logger
}

func NewRouteSyncer(fib FIB, changes *spfsync.QueuedNotifier[ospf.TableChange], log *slog.Logger) *RouteSyncer {
	if log == nil {
		log = slog.Default()
	}

	return &RouteSyncer{
		fib:     fib,
		changes: changes,
		log:     log,
	}
}

func (s *RouteSyncer) Run(ctx context.Context) error {
	t := s.changes.Register()
	defer s.changes.Unregister(t)

	full := true
	for {
		change, ok := s.changes.AwaitChange(ctx, t)
		if !ok {
			return nil
		}

		s.apply(change, full)
		full = false
	}
}

// apply only touches routes that actually changed, so a rebuild that
// produces the same table is a no-op for the FIB. Every withdrawn route that
// isn't reinstalled as is gets deleted before anything new is written. With
// full set, every installed route is written regardless.
func (s *RouteSyncer) apply(change ospf.TableChange, full bool) {
	for _, route := range change.Withdrawn {
		if slices.Contains(change.Installed, route) {
			continue
		}

		if err := s.fib.DeleteRoute(route); err != nil {
			s.log.Warn("failed to delete route", "route", route, "err", err)
		}
	}

	for _, route := range change.Installed {
		if !full && slices.Contains(change.Withdrawn, route) {
			continue
		}

		if err := s.fib.ReplaceRoute(route); err != nil {
			s.log.Warn("failed to install route", "route", route, "err", err)
		}
	}
}

// MemoryFIB keeps routes in memory. It is used where the kernel can't be
// programmed.
type MemoryFIB struct {
	mu     sync.Mutex
	routes map[netip.Prefix]ospf.Route
}

func NewMemoryFIB() *MemoryFIB {
	return &MemoryFIB{routes: make(map[netip.Prefix]ospf.Route)}
}

func (f *MemoryFIB) ReplaceRoute(route ospf.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.routes[route.Prefix] = route
	return nil
}

func (f *MemoryFIB) DeleteRoute(route ospf.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.routes[route.Prefix] == route {
		delete(f.routes, route.Prefix)
	}
	return nil
}

// Routes returns the installed routes ordered by prefix.
func (f *MemoryFIB) Routes() []ospf.Route {
	f.mu.Lock()
	defer f.mu.Unlock()

	routes := make([]ospf.Route, 0, len(f.routes))
	for _, r := range f.routes {
		routes = append(routes, r)
	}

	slices.SortFunc(routes, func(a, b ospf.Route) int {
		if c := a.Prefix.Addr().Compare(b.Prefix.Addr()); c != 0 {
			return c
		}
		return a.Prefix.Bits() - b.Prefix.Bits()
	})

	return routes
}

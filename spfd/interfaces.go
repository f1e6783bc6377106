package main

import (
	"log/slog"
	"slices"

	"github.com/davidbalbert/spfd/ospf"
	"github.com/davidbalbert/spfd/system"
)

// attachInterfaces brings up every configured interface that exists on the
// system and is up. Adjacencies are never formed, so broadcast networks come
// up with this router as DR and without neighbors.
func attachInterfaces(r *ospf.Router, sysIfaces []system.Interface, log *slog.Logger) {
	byName := make(map[string]system.Interface, len(sysIfaces))
	for _, sys := range sysIfaces {
		byName[sys.Name] = sys
	}

	for _, iface := range r.Interfaces() {
		if iface.Type == ospf.InterfaceVirtualLink {
			continue
		}

		sys, ok := byName[iface.Name]
		if !ok {
			log.Warn("interface not found", "interface", iface.Name)
			continue
		}

		if !bringUp(r, iface, sys) {
			log.Warn("interface not usable", "interface", iface.Name, "up", sys.IsUp(), "prefixes", sys.Prefixes)
			continue
		}

		log.Info("interface up", "interface", iface.Name, "prefix", iface.Prefix, "state", iface.State)
	}
}

func bringUp(r *ospf.Router, iface *ospf.Interface, sys system.Interface) bool {
	if !sys.IsUp() {
		return false
	}

	if iface.Prefix.IsValid() {
		if !slices.Contains(sys.Prefixes, iface.Prefix) {
			return false
		}
	} else if len(sys.Prefixes) > 0 {
		iface.Prefix = sys.Prefixes[0]
	} else {
		return false
	}

	iface.Index = sys.Index

	if sys.IsLoopback() {
		iface.State = ospf.IfLoopback
		return true
	}

	switch iface.Type {
	case ospf.InterfaceBroadcast, ospf.InterfaceNBMA:
		iface.State = ospf.IfDR
		iface.DRID = r.ID
		iface.DRAddr = iface.Addr()
	default:
		iface.State = ospf.IfPointToPoint
	}

	return true
}

package system

import (
	"net"
	"net/netip"
)

type Interface struct {
	net.Interface
	Prefixes []netip.Prefix
}

func (i *Interface) IsUp() bool {
	return i.Flags&net.FlagUp != 0
}

func (i *Interface) IsLoopback() bool {
	return i.Flags&net.FlagLoopback != 0
}

// Interfaces returns the system's interfaces along with their IPv4
// prefixes.
func Interfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	interfaces := make([]Interface, len(ifaces))
	for i, iface := range ifaces {
		prefixes, err := prefixesV4(iface)
		if err != nil {
			return nil, err
		}

		interfaces[i] = Interface{iface, prefixes}
	}

	return interfaces, nil
}

func prefixesV4(iface net.Interface) ([]netip.Prefix, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, err
	}

	var prefixes []netip.Prefix
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}

		ip, ok := netip.AddrFromSlice(ipnet.IP.To4())
		if !ok {
			continue
		}

		ones, bits := ipnet.Mask.Size()
		if bits == 128 {
			ones -= 96
		}
		prefixes = append(prefixes, netip.PrefixFrom(ip, ones))
	}

	return prefixes, nil
}

package common

import (
	"encoding/binary"
	"net/netip"
)

type RouterID uint32
type AreaID uint32

const Backbone AreaID = 0

func (r RouterID) String() string {
	return AddrFromUint32(uint32(r)).String()
}

func (r RouterID) Addr() netip.Addr {
	return AddrFromUint32(uint32(r))
}

func (a AreaID) String() string {
	return AddrFromUint32(uint32(a)).String()
}

func RouterIDFromAddr(addr netip.Addr) RouterID {
	return RouterID(AddrToUint32(addr))
}

func AddrFromUint32(n uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)

	return netip.AddrFrom4(b)
}

// AddrToUint32 returns 0 for anything that isn't an IPv4 address.
func AddrToUint32(addr netip.Addr) uint32 {
	if !addr.Is4() {
		return 0
	}

	b := addr.As4()
	return binary.BigEndian.Uint32(b[:])
}

// MaskAddr returns the dotted-quad form of a prefix length.
func MaskAddr(bits int) netip.Addr {
	if bits <= 0 {
		return netip.IPv4Unspecified()
	}

	return AddrFromUint32(^uint32(0) << (32 - bits))
}

// MaskBits is the inverse of MaskAddr. Non-contiguous masks are
// truncated at the first zero bit.
func MaskBits(mask netip.Addr) int {
	m := AddrToUint32(mask)

	bits := 0
	for m&0x80000000 != 0 {
		bits++
		m <<= 1
	}

	return bits
}

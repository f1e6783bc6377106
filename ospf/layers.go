package ospf

import (
	"errors"
	"fmt"

	"github.com/davidbalbert/spfd/common"
	"github.com/gopacket/gopacket/layers"
)

var ErrMalformedLSA = errors.New("malformed LSA")

const (
	routerFlagB = 0x01
	routerFlagE = 0x02
	routerFlagV = 0x04

	externalBitE = 0x80
)

func maskBits(mask uint32) (int, bool) {
	addr := common.AddrFromUint32(mask)
	bits := common.MaskBits(addr)

	return bits, common.MaskAddr(bits) == addr
}

func headerFromLayers(h *layers.LSAheader) Header {
	return Header{
		Age:               h.LSAge,
		Options:           h.LSOptions,
		Type:              LSType(h.LSType),
		ID:                common.AddrFromUint32(h.LinkStateID),
		AdvertisingRouter: common.RouterID(h.AdvRouter),
		SequenceNumber:    int32(h.LSSeqNumber),
		Checksum:          h.LSChecksum,
		Length:            h.Length,
	}
}

// FromLayersLSA converts an OSPFv2 LSA decoded by gopacket into the
// database's representation. gopacket doesn't decode summary LSAs, so those
// are rejected along with anything else that doesn't fit.
func FromLayersLSA(l *layers.LSA) (LSA, error) {
	h := headerFromLayers(&l.LSAheader)

	if h.Age > MaxAge {
		return nil, fmt.Errorf("%w: %s: age %d", ErrMalformedLSA, h.Key(), h.Age)
	}

	switch h.Type {
	case LSTypeRouter:
		content, ok := l.Content.(layers.RouterLSAV2)
		if !ok {
			return nil, fmt.Errorf("%w: %s: unexpected content %T", ErrMalformedLSA, h.Key(), l.Content)
		}

		if int(content.Links) != len(content.Routers) {
			return nil, fmt.Errorf("%w: %s: link count %d but %d links", ErrMalformedLSA, h.Key(), content.Links, len(content.Routers))
		}

		lsa := &RouterLSA{
			Header:   h,
			Border:   content.Flags&routerFlagB != 0,
			External: content.Flags&routerFlagE != 0,
			Virtual:  content.Flags&routerFlagV != 0,
		}

		for _, rt := range content.Routers {
			t := LinkType(rt.Type)
			if t < LinkPointToPoint || t > LinkVirtual {
				return nil, fmt.Errorf("%w: %s: link type %d", ErrMalformedLSA, h.Key(), rt.Type)
			}

			lsa.Links = append(lsa.Links, Link{
				Type:   t,
				ID:     common.AddrFromUint32(rt.LinkID),
				Data:   common.AddrFromUint32(rt.LinkData),
				Metric: rt.Metric,
			})
		}

		return lsa, nil
	case LSTypeNetwork:
		content, ok := l.Content.(layers.NetworkLSAV2)
		if !ok {
			return nil, fmt.Errorf("%w: %s: unexpected content %T", ErrMalformedLSA, h.Key(), l.Content)
		}

		bits, ok := maskBits(content.NetworkMask)
		if !ok {
			return nil, fmt.Errorf("%w: %s: non-contiguous mask", ErrMalformedLSA, h.Key())
		}

		lsa := &NetworkLSA{
			Header: h,
			Bits:   bits,
		}
		for _, id := range content.AttachedRouter {
			lsa.AttachedRouters = append(lsa.AttachedRouters, common.RouterID(id))
		}

		return lsa, nil
	case LSTypeASExternal:
		content, ok := l.Content.(layers.ASExternalLSAV2)
		if !ok {
			return nil, fmt.Errorf("%w: %s: unexpected content %T", ErrMalformedLSA, h.Key(), l.Content)
		}

		bits, ok := maskBits(content.NetworkMask)
		if !ok {
			return nil, fmt.Errorf("%w: %s: non-contiguous mask", ErrMalformedLSA, h.Key())
		}

		metricType := Type1
		if content.ExternalBit&externalBitE != 0 {
			metricType = Type2
		}

		return &ASExternalLSA{
			Header: h,
			ASExternalContents: ASExternalContents{
				Bits:              bits,
				Cost:              content.Metric & lsInfinity,
				MetricType:        metricType,
				ForwardingAddress: common.AddrFromUint32(content.ForwardingAddress),
				RouteTag:          content.ExternalRouteTag,
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s: unsupported type", ErrMalformedLSA, h.Key())
	}
}

package ospf

import (
	"testing"

	"github.com/davidbalbert/spfd/common"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/require"
)

func layersHeader(t LSType, id, adv uint32) layers.LSAheader {
	return layers.LSAheader{
		LSAge:       10,
		LSType:      uint16(t),
		LinkStateID: id,
		AdvRouter:   adv,
		LSSeqNumber: 0x80000002,
		LSChecksum:  0xbeef,
		Length:      36,
		LSOptions:   OptionE,
	}
}

func TestFromLayersRouterLSA(t *testing.T) {
	l := &layers.LSA{
		LSAheader: layersHeader(LSTypeRouter, 0x02020202, 0x02020202),
		Content: layers.RouterLSAV2{
			Flags: routerFlagB | routerFlagE,
			Links: 2,
			Routers: []layers.RouterV2{
				{Type: uint8(LinkPointToPoint), LinkID: 0x01010101, LinkData: 0x0a000c02, Metric: 5},
				{Type: uint8(LinkStub), LinkID: 0x0a000c00, LinkData: 0xfffffffc, Metric: 5},
			},
		},
	}

	lsa, err := FromLayersLSA(l)
	require.NoError(t, err)

	rl, ok := lsa.(*RouterLSA)
	require.True(t, ok)
	require.Equal(t, Header{
		Age:               10,
		Options:           OptionE,
		Type:              LSTypeRouter,
		ID:                addr("2.2.2.2"),
		AdvertisingRouter: rid("2.2.2.2"),
		SequenceNumber:    -0x7ffffffe,
		Checksum:          0xbeef,
		Length:            36,
	}, rl.Header)
	require.True(t, rl.Border)
	require.True(t, rl.External)
	require.False(t, rl.Virtual)
	require.Equal(t, []Link{
		p2pLink("1.1.1.1", "10.0.12.2", 5),
		stubPrefixLink("10.0.12.0/30", 5),
	}, rl.Links)
	require.Equal(t, pfx("10.0.12.0/30"), stubPrefix(rl.Links[1]))
}

func TestFromLayersNetworkLSA(t *testing.T) {
	l := &layers.LSA{
		LSAheader: layersHeader(LSTypeNetwork, 0x0a000101, 0x01010101),
		Content: layers.NetworkLSAV2{
			NetworkMask:    0xffffff00,
			AttachedRouter: []uint32{0x01010101, 0x04040404},
		},
	}

	lsa, err := FromLayersLSA(l)
	require.NoError(t, err)

	nl := lsa.(*NetworkLSA)
	require.Equal(t, pfx("10.0.1.0/24"), nl.Prefix())
	require.Equal(t, []common.RouterID{rid("1.1.1.1"), rid("4.4.4.4")}, nl.AttachedRouters)
}

func TestFromLayersASExternalLSA(t *testing.T) {
	l := &layers.LSA{
		LSAheader: layersHeader(LSTypeASExternal, 0xc0000200, 0x03030303),
		Content: layers.ASExternalLSAV2{
			NetworkMask:       0xffffff00,
			ExternalBit:       0x80,
			Metric:            20,
			ForwardingAddress: 0x0a030007,
			ExternalRouteTag:  7,
		},
	}

	lsa, err := FromLayersLSA(l)
	require.NoError(t, err)

	el := lsa.(*ASExternalLSA)
	require.Equal(t, pfx("192.0.2.0/24"), el.Prefix())
	require.Equal(t, ASExternalContents{
		Bits:              24,
		Cost:              20,
		MetricType:        Type2,
		ForwardingAddress: addr("10.3.0.7"),
		RouteTag:          7,
	}, el.ASExternalContents)

	l.Content = layers.ASExternalLSAV2{NetworkMask: 0xffff0000, Metric: 5}
	lsa, err = FromLayersLSA(l)
	require.NoError(t, err)
	require.Equal(t, Type1, lsa.(*ASExternalLSA).MetricType)
	require.Equal(t, 16, lsa.(*ASExternalLSA).Bits)
}

func TestFromLayersMalformed(t *testing.T) {
	tests := []struct {
		name string
		lsa  *layers.LSA
	}{
		{
			name: "age past MaxAge",
			lsa: func() *layers.LSA {
				l := &layers.LSA{LSAheader: layersHeader(LSTypeRouter, 1, 1), Content: layers.RouterLSAV2{}}
				l.LSAge = MaxAge + 1
				return l
			}(),
		},
		{
			name: "wrong content",
			lsa:  &layers.LSA{LSAheader: layersHeader(LSTypeRouter, 1, 1), Content: layers.NetworkLSAV2{}},
		},
		{
			name: "link count mismatch",
			lsa: &layers.LSA{LSAheader: layersHeader(LSTypeRouter, 1, 1), Content: layers.RouterLSAV2{
				Links:   2,
				Routers: []layers.RouterV2{{Type: uint8(LinkStub)}},
			}},
		},
		{
			name: "bad link type",
			lsa: &layers.LSA{LSAheader: layersHeader(LSTypeRouter, 1, 1), Content: layers.RouterLSAV2{
				Links:   1,
				Routers: []layers.RouterV2{{Type: 9}},
			}},
		},
		{
			name: "non-contiguous mask",
			lsa: &layers.LSA{LSAheader: layersHeader(LSTypeNetwork, 1, 1), Content: layers.NetworkLSAV2{
				NetworkMask: 0xff00ff00,
			}},
		},
		{
			name: "summary",
			lsa:  &layers.LSA{LSAheader: layersHeader(LSTypeSummary, 1, 1)},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			lsa, err := FromLayersLSA(test.lsa)
			require.Nil(t, lsa)
			require.ErrorIs(t, err, ErrMalformedLSA)
		})
	}
}

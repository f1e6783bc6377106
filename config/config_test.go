package config

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/davidbalbert/spfd/common"
	"github.com/davidbalbert/spfd/ospf"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
ospf:
  router-id: 10.0.0.1
  rfc1583-compatibility: true
  cost: 10
  external 192.0.2.0/24:
    cost: 20
    metric-type: 1
    forwarding-address: 10.0.0.2
    tag: 7
  area 0:
    interface eth0:
      type: point-to-point
      address: 10.0.0.1/30
    virtual-link 10.0.0.9:
      transit-area: 1
  area 1:
    cost: 5
    range 10.1.0.0/16: { advertise: false }
    host 10.9.9.9/32: { cost: 3 }
    interface eth1:
      address: 10.1.1.1/24
      cost: 7
    interface eth2:
  area 2:
    stub: true
    stub-default-cost: 4
    interface eth3:
      address: 10.2.0.1/24
`

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig(fullConfig)
	if err != nil {
		t.Fatal(err)
	}

	o := c.OSPF
	require.Equal(t, common.RouterID(0x0a000001), o.RouterID)
	require.True(t, o.RFC1583Compatibility)
	require.Len(t, o.Areas, 3)

	eth0 := o.Areas[0].Interfaces["eth0"]
	require.Equal(t, ospf.InterfacePointToPoint, eth0.Type)
	require.Equal(t, netip.MustParsePrefix("10.0.0.1/30"), eth0.Address)
	require.Equal(t, uint16(10), eth0.Cost)

	area1 := o.Areas[1]
	require.Equal(t, uint16(7), area1.Interfaces["eth1"].Cost)
	require.Equal(t, uint16(5), area1.Interfaces["eth2"].Cost)
	require.Equal(t, ospf.InterfaceBroadcast, area1.Interfaces["eth2"].Type)
	require.False(t, area1.Ranges[netip.MustParsePrefix("10.1.0.0/16")].Advertise)
	require.Equal(t, uint16(3), area1.Hosts[netip.MustParsePrefix("10.9.9.9/32")].Cost)

	require.Equal(t, common.AreaID(1), o.Areas[0].VirtualLinks[common.RouterID(0x0a000009)].TransitArea)

	require.True(t, o.Areas[2].Stub)
	require.Equal(t, uint32(4), o.Areas[2].StubDefaultCost)

	ext := o.ExternalRoutes[netip.MustParsePrefix("192.0.2.0/24")]
	require.Equal(t, ExternalRouteConfig{
		Cost:              20,
		MetricType:        ospf.Type1,
		ForwardingAddress: netip.MustParseAddr("10.0.0.2"),
		Tag:               7,
	}, ext)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		err    string
	}{
		{
			name: "no router id",
			config: `
ospf:
  area 0: {}
`,
			err: "router-id must be configured",
		},
		{
			name: "missing backbone",
			config: `
ospf:
  router-id: 1
  area 1: {}
  area 2: {}
`,
			err: "backbone area must be configured",
		},
		{
			name: "stub backbone",
			config: `
ospf:
  router-id: 1
  area 0:
    stub: true
`,
			err: "backbone can't be a stub area",
		},
		{
			name: "cost too big",
			config: `
ospf:
  router-id: 1
  area 0:
    interface eth0:
      cost: 70000
`,
			err: "ospf area 0.0.0.0 interface eth0: cost too big: 70000",
		},
		{
			name: "ipv6 range",
			config: `
ospf:
  router-id: 1
  area 0:
    range 2001:db8::/32: {}
`,
			err: "not an IPv4 prefix",
		},
		{
			name: "unknown key",
			config: `
ospf:
  router-id: 1
  hello-interval: 10
  area 0: {}
`,
			err: "ospf: unknown key: hello-interval",
		},
		{
			name: "duplicate interface",
			config: `
ospf:
  router-id: 1
  area 0:
    interface eth0:
  area 1:
    interface eth0:
`,
			err: "interface eth0 is configured in areas",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseConfig(test.config)
			if err == nil {
				t.Fatalf("expected error containing %q", test.err)
			}

			if !strings.Contains(err.Error(), test.err) {
				t.Fatalf("expected error containing %q, got %q", test.err, err)
			}
		})
	}
}

func TestNewRouter(t *testing.T) {
	c, err := ParseConfig(fullConfig)
	if err != nil {
		t.Fatal(err)
	}

	r, externals := c.OSPF.NewRouter(nil, nil)

	if r.ID != common.RouterID(0x0a000001) {
		t.Fatalf("expected router id 10.0.0.1, got %s", r.ID)
	}

	areas := r.Areas()
	if len(areas) != 3 {
		t.Fatalf("expected 3 areas, got %d", len(areas))
	}

	backbone := r.Area(common.Backbone)
	require.Len(t, backbone.Interfaces, 2)
	require.Equal(t, "eth0", backbone.Interfaces[0].Name)
	require.Equal(t, ospf.InterfaceVirtualLink, backbone.Interfaces[1].Type)
	require.Equal(t, common.AreaID(1), backbone.Interfaces[1].TransitAreaID)

	area1 := r.Area(1)
	require.Equal(t, []ospf.AddressRange{{Prefix: netip.MustParsePrefix("10.1.0.0/16"), Advertise: false}}, area1.AddressRanges)
	require.Equal(t, []string{"eth1", "eth2"}, []string{area1.Interfaces[0].Name, area1.Interfaces[1].Name})

	require.True(t, r.Area(2).IsStub())
	require.Equal(t, uint32(4), r.Area(2).StubDefaultCost)

	require.Len(t, externals, 1)
	require.Equal(t, ospf.Type1, externals[netip.MustParsePrefix("192.0.2.0/24")].MetricType)
}

package config

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"strings"

	"github.com/davidbalbert/spfd/common"
	"github.com/davidbalbert/spfd/ospf"
)

func parseID(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err == nil {
		return uint32(n), nil
	}

	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return 0, fmt.Errorf("must be an IPv4 address or an unsigned 32 bit integer")
	}

	return binary.BigEndian.Uint32(addr.AsSlice()), nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, err
	}

	if !p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("%s is not an IPv4 prefix", s)
	}

	return p, nil
}

// asMap accepts an empty value as an empty map so that `interface eth0:`
// works without a trailing `{}`.
func asMap(v interface{}) (map[string]interface{}, bool) {
	if v == nil {
		return map[string]interface{}{}, true
	}

	m, ok := v.(map[string]interface{})
	return m, ok
}

func parseInt(where, key string, v interface{}, min, max int) (int, error) {
	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("%s: %s must be an integer", where, key)
	}

	if n < min {
		return 0, fmt.Errorf("%s: %s too small: %d", where, key, n)
	} else if n > max {
		return 0, fmt.Errorf("%s: %s too big: %d", where, key, n)
	}

	return n, nil
}

func parseBool(where, key string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: %s must be true or false", where, key)
	}

	return b, nil
}

type OSPFConfig struct {
	RouterID             common.RouterID
	RFC1583Compatibility bool
	Cost                 uint16
	Areas                map[common.AreaID]OSPFAreaConfig
	ExternalRoutes       map[netip.Prefix]ExternalRouteConfig
}

type OSPFAreaConfig struct {
	Cost            uint16
	Stub            bool
	StubDefaultCost uint32
	Ranges          map[netip.Prefix]RangeConfig
	Hosts           map[netip.Prefix]HostConfig
	VirtualLinks    map[common.RouterID]VirtualLinkConfig
	Interfaces      map[string]OSPFInterfaceConfig
}

type OSPFInterfaceConfig struct {
	AreaID  common.AreaID
	Type    ospf.InterfaceType
	Address netip.Prefix
	Cost    uint16
}

type RangeConfig struct {
	Advertise bool
}

type HostConfig struct {
	Cost uint16
}

type VirtualLinkConfig struct {
	TransitArea common.AreaID
}

type ExternalRouteConfig struct {
	Cost              uint32
	MetricType        ospf.ExternalMetricType
	ForwardingAddress netip.Addr
	Tag               uint32
}

func (c *OSPFConfig) InterfaceConfigs() map[string]OSPFInterfaceConfig {
	configs := make(map[string]OSPFInterfaceConfig)

	for _, area := range c.Areas {
		for name, conf := range area.Interfaces {
			configs[name] = conf
		}
	}

	return configs
}

func parseOSPFConfig(data map[string]interface{}) (*OSPFConfig, error) {
	c := &OSPFConfig{
		RouterID:       0,
		Cost:           1,
		Areas:          make(map[common.AreaID]OSPFAreaConfig),
		ExternalRoutes: make(map[netip.Prefix]ExternalRouteConfig),
	}

	for k, v := range data {
		if k == "router-id" {
			switch v := v.(type) {
			case string:
				id, err := parseID(v)
				if err != nil {
					return nil, fmt.Errorf("ospf: invalid router-id: %s", err)
				}

				c.RouterID = common.RouterID(id)
			case int:
				if v < 0 {
					return nil, fmt.Errorf("ospf: router-id must be positive: %d", v)
				} else if v > math.MaxUint32 {
					return nil, fmt.Errorf("ospf: router-id too big: %d", v)
				}

				c.RouterID = common.RouterID(v)
			default:
				return nil, fmt.Errorf("ospf: router-id must be an IPv4 address or an unsigned 32 bit integer")
			}
		} else if k == "rfc1583-compatibility" {
			b, err := parseBool("ospf", k, v)
			if err != nil {
				return nil, err
			}

			c.RFC1583Compatibility = b
		} else if k == "cost" {
			n, err := parseInt("ospf", k, v, 1, math.MaxUint16)
			if err != nil {
				return nil, err
			}

			c.Cost = uint16(n)
		} else if strings.HasPrefix(k, "area ") {
			name := strings.TrimPrefix(k, "area ")

			id, err := parseID(name)
			if err != nil {
				return nil, fmt.Errorf("ospf: invalid area id: %s", err)
			}

			area, ok := asMap(v)
			if !ok {
				return nil, fmt.Errorf("ospf: area must be a map")
			}

			ac, err := parseAreaConfig(common.AreaID(id), area)
			if err != nil {
				return nil, err
			}

			c.Areas[common.AreaID(id)] = *ac
		} else if strings.HasPrefix(k, "external ") {
			prefix, err := parsePrefix(strings.TrimPrefix(k, "external "))
			if err != nil {
				return nil, fmt.Errorf("ospf: invalid external route: %s", err)
			}

			route, ok := asMap(v)
			if !ok {
				return nil, fmt.Errorf("ospf external %s: must be a map", prefix)
			}

			ec, err := parseExternalRouteConfig(prefix, route)
			if err != nil {
				return nil, err
			}

			c.ExternalRoutes[prefix.Masked()] = *ec
		} else {
			return nil, fmt.Errorf("ospf: unknown key: %s", k)
		}
	}

	for k, ac := range c.Areas {
		ac.setDefaults(c)
		c.Areas[k] = ac
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *OSPFConfig) validate() error {
	if c.RouterID == 0 {
		return fmt.Errorf("ospf: router-id must be configured")
	}

	if len(c.Areas) == 0 {
		return fmt.Errorf("ospf: at least one area must be configured")
	}

	backbone, ok := c.Areas[common.Backbone]
	if len(c.Areas) > 1 && !ok {
		return fmt.Errorf("ospf: backbone area must be configured")
	}

	if ok && backbone.Stub {
		return fmt.Errorf("ospf area %s: backbone can't be a stub area", common.Backbone)
	}

	seen := make(map[string]common.AreaID)
	for id, ac := range c.Areas {
		for name := range ac.Interfaces {
			if other, ok := seen[name]; ok {
				return fmt.Errorf("ospf: interface %s is configured in areas %s and %s", name, other, id)
			}
			seen[name] = id
		}

		if len(ac.VirtualLinks) > 0 && id != common.Backbone {
			return fmt.Errorf("ospf area %s: virtual links must be configured in the backbone", id)
		}

		for rid, vl := range ac.VirtualLinks {
			transit, ok := c.Areas[vl.TransitArea]
			if !ok || vl.TransitArea == common.Backbone {
				return fmt.Errorf("ospf area %s virtual-link %s: invalid transit area %s", id, rid, vl.TransitArea)
			}

			if transit.Stub {
				return fmt.Errorf("ospf area %s virtual-link %s: transit area %s is a stub area", id, rid, vl.TransitArea)
			}
		}
	}

	return nil
}

func (ac *OSPFAreaConfig) setDefaults(c *OSPFConfig) {
	if ac.Cost == 0 {
		ac.Cost = c.Cost
	}

	for k, ic := range ac.Interfaces {
		ic.setDefaults(ac)
		ac.Interfaces[k] = ic
	}
}

func (ic *OSPFInterfaceConfig) setDefaults(ac *OSPFAreaConfig) {
	if ic.Cost == 0 {
		ic.Cost = ac.Cost
	}
}

func parseAreaConfig(areaID common.AreaID, data map[string]interface{}) (*OSPFAreaConfig, error) {
	where := fmt.Sprintf("ospf area %s", areaID)

	ac := OSPFAreaConfig{
		Cost:            0,
		StubDefaultCost: 1,
		Ranges:          make(map[netip.Prefix]RangeConfig),
		Hosts:           make(map[netip.Prefix]HostConfig),
		VirtualLinks:    make(map[common.RouterID]VirtualLinkConfig),
		Interfaces:      make(map[string]OSPFInterfaceConfig),
	}

	for k, v := range data {
		if k == "cost" {
			n, err := parseInt(where, k, v, 1, math.MaxUint16)
			if err != nil {
				return nil, err
			}

			ac.Cost = uint16(n)
		} else if k == "stub" {
			b, err := parseBool(where, k, v)
			if err != nil {
				return nil, err
			}

			ac.Stub = b
		} else if k == "stub-default-cost" {
			n, err := parseInt(where, k, v, 0, 0xFFFFFF)
			if err != nil {
				return nil, err
			}

			ac.StubDefaultCost = uint32(n)
		} else if strings.HasPrefix(k, "range ") {
			prefix, err := parsePrefix(strings.TrimPrefix(k, "range "))
			if err != nil {
				return nil, fmt.Errorf("%s: invalid range: %s", where, err)
			}

			m, ok := asMap(v)
			if !ok {
				return nil, fmt.Errorf("%s range %s: must be a map", where, prefix)
			}

			rc := RangeConfig{Advertise: true}
			for k, v := range m {
				if k != "advertise" {
					return nil, fmt.Errorf("%s range %s: unknown key: %s", where, prefix, k)
				}

				b, err := parseBool(fmt.Sprintf("%s range %s", where, prefix), k, v)
				if err != nil {
					return nil, err
				}
				rc.Advertise = b
			}

			ac.Ranges[prefix.Masked()] = rc
		} else if strings.HasPrefix(k, "host ") {
			prefix, err := parsePrefix(strings.TrimPrefix(k, "host "))
			if err != nil {
				return nil, fmt.Errorf("%s: invalid host route: %s", where, err)
			}

			m, ok := asMap(v)
			if !ok {
				return nil, fmt.Errorf("%s host %s: must be a map", where, prefix)
			}

			hc := HostConfig{Cost: 1}
			for k, v := range m {
				if k != "cost" {
					return nil, fmt.Errorf("%s host %s: unknown key: %s", where, prefix, k)
				}

				n, err := parseInt(fmt.Sprintf("%s host %s", where, prefix), k, v, 0, math.MaxUint16)
				if err != nil {
					return nil, err
				}
				hc.Cost = uint16(n)
			}

			ac.Hosts[prefix] = hc
		} else if strings.HasPrefix(k, "virtual-link ") {
			id, err := parseID(strings.TrimPrefix(k, "virtual-link "))
			if err != nil {
				return nil, fmt.Errorf("%s: invalid virtual-link: %s", where, err)
			}
			rid := common.RouterID(id)

			m, ok := asMap(v)
			if !ok {
				return nil, fmt.Errorf("%s virtual-link %s: must be a map", where, rid)
			}

			var vc VirtualLinkConfig
			for k, v := range m {
				if k != "transit-area" {
					return nil, fmt.Errorf("%s virtual-link %s: unknown key: %s", where, rid, k)
				}

				var s string
				switch v := v.(type) {
				case int:
					s = strconv.Itoa(v)
				case string:
					s = v
				}

				transit, err := parseID(s)
				if err != nil {
					return nil, fmt.Errorf("%s virtual-link %s: invalid transit-area: %s", where, rid, err)
				}
				vc.TransitArea = common.AreaID(transit)
			}

			ac.VirtualLinks[rid] = vc
		} else if strings.HasPrefix(k, "interface ") {
			interfaceName := strings.TrimPrefix(k, "interface ")

			i, ok := asMap(v)
			if !ok {
				return nil, fmt.Errorf("%s: interface %s must be a map", where, interfaceName)
			}

			ic, err := parseInterfaceConfig(areaID, interfaceName, i)
			if err != nil {
				return nil, err
			}

			ac.Interfaces[interfaceName] = *ic
		} else {
			return nil, fmt.Errorf("%s: unknown key: %s", where, k)
		}
	}

	return &ac, nil
}

func parseInterfaceType(s string) (ospf.InterfaceType, bool) {
	switch s {
	case "point-to-point":
		return ospf.InterfacePointToPoint, true
	case "broadcast":
		return ospf.InterfaceBroadcast, true
	case "nbma":
		return ospf.InterfaceNBMA, true
	case "point-to-multipoint":
		return ospf.InterfacePointToMultipoint, true
	default:
		return 0, false
	}
}

func parseInterfaceConfig(areaID common.AreaID, name string, data map[string]interface{}) (*OSPFInterfaceConfig, error) {
	where := fmt.Sprintf("ospf area %s interface %s", areaID, name)

	ic := OSPFInterfaceConfig{
		AreaID: areaID,
		Type:   ospf.InterfaceBroadcast,
		Cost:   0,
	}

	for k, v := range data {
		if k == "cost" {
			n, err := parseInt(where, k, v, 1, math.MaxUint16)
			if err != nil {
				return nil, err
			}

			ic.Cost = uint16(n)
		} else if k == "type" {
			s, _ := v.(string)
			t, ok := parseInterfaceType(s)
			if !ok {
				return nil, fmt.Errorf("%s: unknown type: %v", where, v)
			}

			ic.Type = t
		} else if k == "address" {
			s, _ := v.(string)
			prefix, err := parsePrefix(s)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid address: %s", where, err)
			}

			ic.Address = prefix
		} else {
			return nil, fmt.Errorf("%s: unknown key: %s", where, k)
		}
	}

	return &ic, nil
}

func parseExternalRouteConfig(prefix netip.Prefix, data map[string]interface{}) (*ExternalRouteConfig, error) {
	where := fmt.Sprintf("ospf external %s", prefix)

	ec := ExternalRouteConfig{
		Cost:       1,
		MetricType: ospf.Type2,
	}

	for k, v := range data {
		switch k {
		case "cost":
			n, err := parseInt(where, k, v, 0, 0xFFFFFF)
			if err != nil {
				return nil, err
			}

			ec.Cost = uint32(n)
		case "metric-type":
			n, err := parseInt(where, k, v, 1, 2)
			if err != nil {
				return nil, err
			}

			ec.MetricType = ospf.ExternalMetricType(n)
		case "forwarding-address":
			s, _ := v.(string)
			addr, err := netip.ParseAddr(s)
			if err != nil || !addr.Is4() {
				return nil, fmt.Errorf("%s: forwarding-address must be an IPv4 address", where)
			}

			ec.ForwardingAddress = addr
		case "tag":
			n, err := parseInt(where, k, v, 0, math.MaxUint32)
			if err != nil {
				return nil, err
			}

			ec.Tag = uint32(n)
		default:
			return nil, fmt.Errorf("%s: unknown key: %s", where, k)
		}
	}

	return &ec, nil
}

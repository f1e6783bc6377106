package ospf

import (
	"fmt"
	"math"
	"net/netip"
	"slices"

	"github.com/davidbalbert/spfd/common"
	"golang.org/x/exp/constraints"
)

const (
	initialSequenceNumber = math.MinInt32 + 1
	maxSequenceNumber     = math.MaxInt32
	MaxAge                = 3600 // 1 hour
	maxAgeDiff            = 900  // 15 minutes
	minLSArrival          = 1    // 1 second
	lsRefreshTime         = 1800 // 30 minutes
	checkAge              = 300  // 5 minutes
	lsInfinity            = 0xFFFFFF
)

type LSType uint8

const (
	lsTypeUnknown LSType = 0

	LSTypeRouter      LSType = 1
	LSTypeNetwork     LSType = 2
	LSTypeSummary     LSType = 3
	LSTypeASBRSummary LSType = 4
	LSTypeASExternal  LSType = 5
)

func (t LSType) String() string {
	switch t {
	case LSTypeRouter:
		return "Router"
	case LSTypeNetwork:
		return "Network"
	case LSTypeSummary:
		return "Summary"
	case LSTypeASBRSummary:
		return "ASBR-Summary"
	case LSTypeASExternal:
		return "AS-External"
	default:
		return "Unknown"
	}
}

// Option bits
const (
	OptionE uint8 = 0x02
)

// Key identifies an LSA within its flooding scope. The zero Key refers to no LSA.
type Key struct {
	Type              LSType
	ID                netip.Addr
	AdvertisingRouter common.RouterID
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s adv %s", k.Type, k.ID, k.AdvertisingRouter)
}

func (k Key) IsZero() bool {
	return k.Type == lsTypeUnknown
}

func (k Key) compare(other Key) int {
	if k.Type != other.Type {
		if k.Type < other.Type {
			return -1
		}
		return 1
	}

	if c := k.ID.Compare(other.ID); c != 0 {
		return c
	}

	if k.AdvertisingRouter < other.AdvertisingRouter {
		return -1
	} else if k.AdvertisingRouter > other.AdvertisingRouter {
		return 1
	}

	return 0
}

type Header struct {
	Age               uint16
	Options           uint8
	Type              LSType
	ID                netip.Addr
	AdvertisingRouter common.RouterID
	SequenceNumber    int32
	Checksum          uint16
	Length            uint16
}

func (h *Header) Key() Key {
	return Key{
		Type:              h.Type,
		ID:                h.ID,
		AdvertisingRouter: h.AdvertisingRouter,
	}
}

func (h *Header) IsMaxAge() bool {
	return h.Age >= MaxAge
}

// Compare returns -1 if h is older than other, 1 if it is newer and 0 if the
// two headers describe the same instance.
func (h *Header) Compare(other *Header) int {
	s1, s2 := h.SequenceNumber, other.SequenceNumber
	if s1 < s2 {
		return -1
	} else if s1 > s2 {
		return 1
	}

	c1, c2 := h.Checksum, other.Checksum
	if c1 < c2 {
		return -1
	} else if c1 > c2 {
		return 1
	}

	a1, a2 := int(h.Age), int(other.Age)
	if a1 >= MaxAge && a2 >= MaxAge {
		return 0
	} else if a1 >= MaxAge {
		return -1
	} else if a2 >= MaxAge {
		return 1
	}

	diff := abs(a1 - a2)
	if diff > maxAgeDiff && a1 < a2 {
		return 1
	} else if diff > maxAgeDiff && a1 > a2 {
		return -1
	}

	return 0
}

func abs[T constraints.Signed](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

func (h *Header) SameInstance(other *Header) bool {
	return h.Compare(other) == 0
}

func (h *Header) OlderThan(other *Header) bool {
	return h.Compare(other) < 0
}

func (h *Header) String() string {
	return fmt.Sprintf("%s age %d seq %#x", h.Key(), h.Age, uint32(h.SequenceNumber))
}

// wrapping from the largest sequence number starts over at the initial one.
func nextSequenceNumber(seq int32) int32 {
	if seq == maxSequenceNumber {
		return initialSequenceNumber
	}

	return seq + 1
}

type NextHop struct {
	Interface         string
	Address           netip.Addr // unspecified for directly attached destinations
	AdvertisingRouter common.RouterID
}

func (nh NextHop) String() string {
	if !nh.Address.IsValid() || nh.Address.IsUnspecified() {
		return fmt.Sprintf("directly attached via %s", nh.Interface)
	}

	return fmt.Sprintf("%s via %s", nh.Address, nh.Interface)
}

// SPF state of a vertex. Parent is resolved through the owning area's
// databases so a purged parent simply fails to resolve.
type RoutingInfo struct {
	NextHops []NextHop
	Distance uint32
	Parent   Key
}

func (ri *RoutingInfo) reset() {
	ri.NextHops = nil
	ri.Distance = 0
	ri.Parent = Key{}
}

func (ri *RoutingInfo) addNextHops(hops ...NextHop) {
	ri.NextHops = mergeNextHops(ri.NextHops, hops...)
}

func mergeNextHops(dst []NextHop, hops ...NextHop) []NextHop {
	for _, nh := range hops {
		if !slices.Contains(dst, nh) {
			dst = append(dst, nh)
		}
	}

	return dst
}

type Origin int

const (
	Flooded Origin = iota
	Originated
)

func (o Origin) String() string {
	switch o {
	case Flooded:
		return "Flooded"
	case Originated:
		return "Originated"
	default:
		return "Unknown"
	}
}

type TrackingInfo struct {
	Origin Origin
	// seconds since this instance was installed
	InstallTime uint32
}

// LSA is implemented by *RouterLSA, *NetworkLSA, *SummaryLSA and
// *ASExternalLSA only.
type LSA interface {
	LSAHeader() *Header
	RoutingInfo() *RoutingInfo
	TrackingInfo() *TrackingInfo
	Clone() LSA

	isLSA()
}

type LinkType uint8

const (
	LinkPointToPoint LinkType = 1
	LinkTransit      LinkType = 2
	LinkStub         LinkType = 3
	LinkVirtual      LinkType = 4
)

func (t LinkType) String() string {
	switch t {
	case LinkPointToPoint:
		return "PointToPoint"
	case LinkTransit:
		return "Transit"
	case LinkStub:
		return "Stub"
	case LinkVirtual:
		return "Virtual"
	default:
		return "Unknown"
	}
}

type TOSMetric struct {
	TOS    uint8
	Metric uint16
}

// Link data is an interface address, a network mask for stub links, or an
// interface index for unnumbered point-to-point links.
type Link struct {
	Type   LinkType
	ID     netip.Addr
	Data   netip.Addr
	Metric uint16
	TOS    []TOSMetric
}

func (l Link) equal(other Link) bool {
	return l.Type == other.Type && l.ID == other.ID && l.Data == other.Data &&
		l.Metric == other.Metric && slices.Equal(l.TOS, other.TOS)
}

type RouterLSA struct {
	Header
	Routing  RoutingInfo
	Tracking TrackingInfo

	Border   bool
	External bool
	Virtual  bool
	Links    []Link
}

func (l *RouterLSA) LSAHeader() *Header          { return &l.Header }
func (l *RouterLSA) RoutingInfo() *RoutingInfo   { return &l.Routing }
func (l *RouterLSA) TrackingInfo() *TrackingInfo { return &l.Tracking }
func (l *RouterLSA) isLSA()                      {}

func (l *RouterLSA) Clone() LSA {
	c := *l
	c.Links = slices.Clone(l.Links)
	c.Routing.NextHops = slices.Clone(l.Routing.NextHops)
	return &c
}

func (l *RouterLSA) DiffersFrom(other *RouterLSA) bool {
	if headerDiffers(&l.Header, &other.Header) {
		return true
	}

	if l.Border != other.Border || l.External != other.External || l.Virtual != other.Virtual {
		return true
	}

	return !slices.EqualFunc(l.Links, other.Links, Link.equal)
}

// Update replaces the contents of l with other, resetting the install time.
// It returns true when the contents changed in a way that requires a
// routing table rebuild.
func (l *RouterLSA) Update(other *RouterLSA) bool {
	different := l.DiffersFrom(other)

	l.Header = other.Header
	l.Border, l.External, l.Virtual = other.Border, other.External, other.Virtual
	l.Links = slices.Clone(other.Links)
	l.Tracking.InstallTime = 0

	if different {
		l.Routing.NextHops = nil
	}

	return different
}

type NetworkLSA struct {
	Header
	Routing  RoutingInfo
	Tracking TrackingInfo

	Bits            int
	AttachedRouters []common.RouterID
}

func (l *NetworkLSA) LSAHeader() *Header          { return &l.Header }
func (l *NetworkLSA) RoutingInfo() *RoutingInfo   { return &l.Routing }
func (l *NetworkLSA) TrackingInfo() *TrackingInfo { return &l.Tracking }
func (l *NetworkLSA) isLSA()                      {}

func (l *NetworkLSA) Clone() LSA {
	c := *l
	c.AttachedRouters = slices.Clone(l.AttachedRouters)
	c.Routing.NextHops = slices.Clone(l.Routing.NextHops)
	return &c
}

func (l *NetworkLSA) Prefix() netip.Prefix {
	return netip.PrefixFrom(l.ID, l.Bits).Masked()
}

func (l *NetworkLSA) DiffersFrom(other *NetworkLSA) bool {
	if headerDiffers(&l.Header, &other.Header) {
		return true
	}

	return l.Bits != other.Bits || !slices.Equal(l.AttachedRouters, other.AttachedRouters)
}

func (l *NetworkLSA) Update(other *NetworkLSA) bool {
	different := l.DiffersFrom(other)

	l.Header = other.Header
	l.Bits = other.Bits
	l.AttachedRouters = slices.Clone(other.AttachedRouters)
	l.Tracking.InstallTime = 0

	if different {
		l.Routing.NextHops = nil
	}

	return different
}

// SummaryLSA covers both network (type 3) and ASBR (type 4) summaries.
type SummaryLSA struct {
	Header
	Routing  RoutingInfo
	Tracking TrackingInfo

	Bits int
	Cost uint32
	TOS  []TOSMetric

	// Purgeable is set on self-originated summaries whose destination is
	// gone, so that they are removed rather than refreshed at MaxAge.
	Purgeable bool
}

func (l *SummaryLSA) LSAHeader() *Header          { return &l.Header }
func (l *SummaryLSA) RoutingInfo() *RoutingInfo   { return &l.Routing }
func (l *SummaryLSA) TrackingInfo() *TrackingInfo { return &l.Tracking }
func (l *SummaryLSA) isLSA()                      {}

func (l *SummaryLSA) Clone() LSA {
	c := *l
	c.TOS = slices.Clone(l.TOS)
	c.Routing.NextHops = slices.Clone(l.Routing.NextHops)
	return &c
}

func (l *SummaryLSA) Prefix() netip.Prefix {
	return netip.PrefixFrom(l.ID, l.Bits).Masked()
}

func (l *SummaryLSA) DiffersFrom(other *SummaryLSA) bool {
	if headerDiffers(&l.Header, &other.Header) {
		return true
	}

	return l.Bits != other.Bits || l.Cost != other.Cost || !slices.Equal(l.TOS, other.TOS)
}

func (l *SummaryLSA) Update(other *SummaryLSA) bool {
	different := l.DiffersFrom(other)

	l.Header = other.Header
	l.Bits = other.Bits
	l.Cost = other.Cost
	l.TOS = slices.Clone(other.TOS)
	l.Purgeable = other.Purgeable
	l.Tracking.InstallTime = 0

	if different {
		l.Routing.NextHops = nil
	}

	return different
}

type ExternalMetricType int

const (
	Type1 ExternalMetricType = 1
	Type2 ExternalMetricType = 2
)

func (t ExternalMetricType) String() string {
	switch t {
	case Type1:
		return "E1"
	case Type2:
		return "E2"
	default:
		return "Unknown"
	}
}

type ASExternalContents struct {
	Bits              int
	Cost              uint32
	MetricType        ExternalMetricType
	ForwardingAddress netip.Addr
	RouteTag          uint32
	TOS               []TOSMetric
}

func (c *ASExternalContents) equal(other *ASExternalContents) bool {
	return c.Bits == other.Bits && c.Cost == other.Cost && c.MetricType == other.MetricType &&
		c.ForwardingAddress == other.ForwardingAddress && c.RouteTag == other.RouteTag &&
		slices.Equal(c.TOS, other.TOS)
}

type ASExternalLSA struct {
	Header
	Routing  RoutingInfo
	Tracking TrackingInfo

	ASExternalContents
	Purgeable bool
}

func (l *ASExternalLSA) LSAHeader() *Header          { return &l.Header }
func (l *ASExternalLSA) RoutingInfo() *RoutingInfo   { return &l.Routing }
func (l *ASExternalLSA) TrackingInfo() *TrackingInfo { return &l.Tracking }
func (l *ASExternalLSA) isLSA()                      {}

func (l *ASExternalLSA) Clone() LSA {
	c := *l
	c.TOS = slices.Clone(l.TOS)
	c.Routing.NextHops = slices.Clone(l.Routing.NextHops)
	return &c
}

func (l *ASExternalLSA) Prefix() netip.Prefix {
	return netip.PrefixFrom(l.ID, l.Bits).Masked()
}

func (l *ASExternalLSA) DiffersFrom(other *ASExternalLSA) bool {
	if headerDiffers(&l.Header, &other.Header) {
		return true
	}

	return !l.ASExternalContents.equal(&other.ASExternalContents)
}

func (l *ASExternalLSA) Update(other *ASExternalLSA) bool {
	different := l.DiffersFrom(other)

	l.Header = other.Header
	l.ASExternalContents = other.ASExternalContents
	l.TOS = slices.Clone(other.TOS)
	l.Purgeable = other.Purgeable
	l.Tracking.InstallTime = 0

	if different {
		l.Routing.NextHops = nil
	}

	return different
}

func headerDiffers(a, b *Header) bool {
	return a.Options != b.Options || a.IsMaxAge() != b.IsMaxAge() || a.Length != b.Length
}

package api

import (
	"fmt"

	"github.com/davidbalbert/spfd/ospf"
	"google.golang.org/protobuf/types/known/structpb"
)

// Route is a routing table entry as seen by clients.
type Route struct {
	Destination     string
	DestinationType string
	Area            string
	PathType        string
	Cost            uint32
	Type2Cost       uint32
	NextHops        []string
}

// LSA summarizes a database entry. Area is empty for AS-scoped LSAs.
type LSA struct {
	Area              string
	Type              string
	ID                string
	AdvertisingRouter string
	Age               uint16
	SequenceNumber    int32
	Origin            string
}

func routeFromEntry(e *ospf.RoutingTableEntry) Route {
	hops := make([]string, len(e.NextHops))
	for i, nh := range e.NextHops {
		hops[i] = nh.String()
	}

	return Route{
		Destination:     e.Prefix().String(),
		DestinationType: e.DestinationType.String(),
		Area:            e.Area.String(),
		PathType:        e.PathType.String(),
		Cost:            e.Cost,
		Type2Cost:       e.Type2Cost,
		NextHops:        hops,
	}
}

func lsaFromDatabase(area string, lsa ospf.LSA) LSA {
	h := lsa.LSAHeader()

	return LSA{
		Area:              area,
		Type:              h.Type.String(),
		ID:                h.ID.String(),
		AdvertisingRouter: h.AdvertisingRouter.String(),
		Age:               h.Age,
		SequenceNumber:    h.SequenceNumber,
		Origin:            lsa.TrackingInfo().Origin.String(),
	}
}

func (r Route) toStruct() (*structpb.Struct, error) {
	hops := make([]any, len(r.NextHops))
	for i, h := range r.NextHops {
		hops[i] = h
	}

	return structpb.NewStruct(map[string]any{
		"destination":      r.Destination,
		"destination-type": r.DestinationType,
		"area":             r.Area,
		"path-type":        r.PathType,
		"cost":             r.Cost,
		"type2-cost":       r.Type2Cost,
		"next-hops":        hops,
	})
}

func routeFromStruct(s *structpb.Struct) (Route, error) {
	if s == nil {
		return Route{}, fmt.Errorf("route: empty message")
	}

	f := s.GetFields()

	var hops []string
	for _, v := range f["next-hops"].GetListValue().GetValues() {
		hops = append(hops, v.GetStringValue())
	}

	return Route{
		Destination:     f["destination"].GetStringValue(),
		DestinationType: f["destination-type"].GetStringValue(),
		Area:            f["area"].GetStringValue(),
		PathType:        f["path-type"].GetStringValue(),
		Cost:            uint32(f["cost"].GetNumberValue()),
		Type2Cost:       uint32(f["type2-cost"].GetNumberValue()),
		NextHops:        hops,
	}, nil
}

func (l LSA) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"area":               l.Area,
		"type":               l.Type,
		"id":                 l.ID,
		"advertising-router": l.AdvertisingRouter,
		"age":                uint32(l.Age),
		"sequence-number":    l.SequenceNumber,
		"origin":             l.Origin,
	})
}

func lsaFromStruct(s *structpb.Struct) LSA {
	f := s.GetFields()

	return LSA{
		Area:              f["area"].GetStringValue(),
		Type:              f["type"].GetStringValue(),
		ID:                f["id"].GetStringValue(),
		AdvertisingRouter: f["advertising-router"].GetStringValue(),
		Age:               uint16(f["age"].GetNumberValue()),
		SequenceNumber:    int32(f["sequence-number"].GetNumberValue()),
		Origin:            f["origin"].GetStringValue(),
	}
}

func toList[T interface{ toStruct() (*structpb.Struct, error) }](items []T) (*structpb.ListValue, error) {
	values := make([]*structpb.Value, len(items))
	for i, item := range items {
		s, err := item.toStruct()
		if err != nil {
			return nil, err
		}
		values[i] = structpb.NewStructValue(s)
	}

	return &structpb.ListValue{Values: values}, nil
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/davidbalbert/spfd/api"
	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)

	return table
}

func renderRoutes(w io.Writer, routes []api.Route) {
	table := newTable(w, "Destination", "Type", "Area", "Path", "Cost", "Next hops")

	for _, r := range routes {
		cost := fmt.Sprint(r.Cost)
		if r.PathType == "type-2 external" {
			cost = fmt.Sprintf("%d/%d", r.Cost, r.Type2Cost)
		}

		table.Append([]string{
			r.Destination,
			r.DestinationType,
			r.Area,
			r.PathType,
			cost,
			strings.Join(r.NextHops, ", "),
		})
	}

	table.Render()
}

func renderDatabase(w io.Writer, lsas []api.LSA) {
	table := newTable(w, "Area", "Type", "Link state ID", "ADV router", "Age", "Seq#", "Origin")

	for _, l := range lsas {
		area := l.Area
		if area == "" {
			area = "AS"
		}

		table.Append([]string{
			area,
			l.Type,
			l.ID,
			l.AdvertisingRouter,
			fmt.Sprint(l.Age),
			fmt.Sprintf("0x%08x", uint32(l.SequenceNumber)),
			l.Origin,
		})
	}

	table.Render()
}

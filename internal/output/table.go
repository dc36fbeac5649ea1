package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"awsinventory/internal/inventory"
)

// RenderSummary writes the per-service totals of a report as a table,
// followed by the failed units if there are any.
func RenderSummary(w io.Writer, report *inventory.Report) {
	tw := table.Table{}
	tw.AppendHeader(table.Row{"Service", "Resources", "Regions", "Failed Regions"})

	for _, total := range report.ServiceTotals() {
		failed := ""
		if len(total.FailedRegions) > 0 {
			failed = text.FgHiRed.Sprint(strings.Join(total.FailedRegions, ", "))
		}
		tw.AppendRow(table.Row{
			total.Service,
			total.Resources,
			len(total.Regions),
			failed,
		})
	}

	totalRow := table.Row{text.FgHiGreen.Sprint("Total"), report.TotalResources(), "", ""}
	if n := len(report.Failures); n > 0 {
		totalRow[3] = text.FgHiRed.Sprintf("%d failed", n)
	}
	tw.AppendFooter(totalRow)
	style := table.StyleRounded
	style.Format.Footer = text.FormatDefault
	tw.SetStyle(style)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	fmt.Fprintln(w, tw.Render())

	if len(report.Failures) == 0 {
		return
	}

	ft := table.Table{}
	ft.AppendHeader(table.Row{"Service", "Region", "Category", "Error"})
	for _, f := range report.Failures {
		ft.AppendRow(table.Row{f.Service, f.Region, f.Category, text.FgRed.Sprint(f.Error)})
	}
	ft.SetStyle(table.StyleRounded)
	ft.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: 80},
	})
	fmt.Fprintln(w, ft.Render())
}

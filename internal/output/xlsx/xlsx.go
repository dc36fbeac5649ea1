// Package xlsx renders an inventory report as an Excel workbook: a summary
// sheet, a coverage sheet, a failures sheet and one sheet per service.
package xlsx

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"awsinventory/internal/inventory"
)

const (
	SummarySheet  = "Summary"
	CoverageSheet = "Coverage"
	FailuresSheet = "Failures"

	defaultSheet = "Sheet1"
)

// CriticalColumns lead every service sheet, in this order
var CriticalColumns = []string{"Region", "Service", "Resource Name", "Resource ID", "Description", "Creation Time"}

// TagsColumn follows the critical columns when any resource of a service is tagged
const TagsColumn = "Tags"

// Render writes the report workbook to path
func Render(path string, report *inventory.Report) error {
	f, err := Build(report)
	if err != nil {
		return err
	}
	defer f.Close()
	return Save(f, path)
}

// Save writes a workbook to path, creating the parent directory
func Save(f *excelize.File, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

// Build lays out the report workbook in memory
func Build(report *inventory.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	styles, err := NewStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	steps := []func(*excelize.File, Styles, *inventory.Report) error{
		writeSummary,
		writeCoverage,
		writeFailures,
		writeServices,
	}
	for _, step := range steps {
		if err := step(f, styles, report); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := f.DeleteSheet(defaultSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(SummarySheet); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

func writeSummary(f *excelize.File, styles Styles, report *inventory.Report) error {
	sheet, err := NewSheet(f, SummarySheet, styles)
	if err != nil {
		return err
	}
	if err := sheet.Header("Service", "Total Resources", "Regions", "Failed Regions"); err != nil {
		return err
	}
	for _, total := range report.ServiceTotals() {
		row := []interface{}{total.Service, total.Resources, strings.Join(total.Regions, ", "), strings.Join(total.FailedRegions, ", ")}
		write := sheet.Row
		if len(total.FailedRegions) > 0 {
			write = sheet.FailedRow
		}
		if err := write(row...); err != nil {
			return err
		}
	}

	sheet.Blank()
	info := [][]interface{}{
		{"Run ID", report.RunID},
		{"Account", report.AccountID},
		{"Profile", report.Profile},
		{"Started", report.StartedAt},
		{"Completed", report.CompletedAt},
		{"Total Resources", report.TotalResources()},
		{"Failed Units", len(report.Failures)},
	}
	for _, row := range info {
		if err := sheet.Row(row...); err != nil {
			return err
		}
	}
	return sheet.Finish()
}

func writeCoverage(f *excelize.File, styles Styles, report *inventory.Report) error {
	sheet, err := NewSheet(f, CoverageSheet, styles)
	if err != nil {
		return err
	}
	if err := sheet.Header("Service", "Region", "Status", "Count"); err != nil {
		return err
	}
	for _, unit := range report.SortedUnits() {
		summary := report.Summary[unit]
		row := []interface{}{unit.Service, unit.Region, summary.Status.String(), summary.Count}
		write := sheet.Row
		if summary.Status == inventory.StatusFailed {
			write = sheet.FailedRow
		}
		if err := write(row...); err != nil {
			return err
		}
	}
	return sheet.Finish()
}

func writeFailures(f *excelize.File, styles Styles, report *inventory.Report) error {
	sheet, err := NewSheet(f, FailuresSheet, styles)
	if err != nil {
		return err
	}
	if err := sheet.Header("Service", "Region", "Category", "Error"); err != nil {
		return err
	}

	failures := append([]inventory.Failure(nil), report.Failures...)
	sort.SliceStable(failures, func(i, j int) bool {
		if failures[i].Service != failures[j].Service {
			return failures[i].Service < failures[j].Service
		}
		return failures[i].Region < failures[j].Region
	})
	for _, failure := range failures {
		if err := sheet.Row(failure.Service, failure.Region, failure.Category, failure.Error); err != nil {
			return err
		}
	}
	return sheet.Finish()
}

func writeServices(f *excelize.File, styles Styles, report *inventory.Report) error {
	namer := NewSheetNamer(SummarySheet, CoverageSheet, FailuresSheet, defaultSheet)
	for _, service := range report.ServiceNames() {
		resources := report.Resources[service]
		if len(resources) == 0 {
			continue
		}
		sheet, err := NewSheet(f, namer.Name(service), styles)
		if err != nil {
			return err
		}
		if err := writeResources(sheet, resources); err != nil {
			return err
		}
	}
	return nil
}

// Columns returns the header of a service sheet: the critical columns, the
// tags column when any resource is tagged, then every detail key sorted.
func Columns(resources inventory.Resources) []string {
	columns := append([]string(nil), CriticalColumns...)
	taken := make(map[string]bool, len(columns))
	for _, c := range columns {
		taken[c] = true
	}

	tagged := false
	var keys []string
	for _, res := range resources {
		if len(res.Tags) > 0 {
			tagged = true
		}
		keys = append(keys, res.DetailKeys()...)
	}
	if tagged {
		columns = append(columns, TagsColumn)
		taken[TagsColumn] = true
	}

	sort.Strings(keys)
	for _, key := range slices.Compact(keys) {
		if !taken[key] {
			columns = append(columns, key)
		}
	}
	return columns
}

func writeResources(sheet *Sheet, resources inventory.Resources) error {
	sorted := append(inventory.Resources(nil), resources...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Region != sorted[j].Region {
			return sorted[i].Region < sorted[j].Region
		}
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].ID < sorted[j].ID
	})

	columns := Columns(sorted)
	if err := sheet.Header(columns...); err != nil {
		return err
	}
	for _, res := range sorted {
		row := make([]interface{}, len(columns))
		for i, column := range columns {
			row[i] = resourceValue(res, column)
		}
		if err := sheet.Row(row...); err != nil {
			return err
		}
	}
	if err := sheet.f.AutoFilter(sheet.Name(), autoFilterRange(len(columns), len(sorted)+1), nil); err != nil {
		return fmt.Errorf("failed to add filter to %s: %w", sheet.Name(), err)
	}
	return sheet.Finish()
}

func resourceValue(res inventory.Resource, column string) interface{} {
	switch column {
	case "Region":
		return res.Region
	case "Service":
		return res.Service
	case "Resource Name":
		return res.Name
	case "Resource ID":
		return res.ID
	case "Description":
		return res.Description
	case "Creation Time":
		return res.CreatedAt
	case TagsColumn:
		return res.Tags
	default:
		return res.Details[column]
	}
}

func autoFilterRange(columns, rows int) string {
	end, err := excelize.CoordinatesToCellName(columns, rows)
	if err != nil {
		return "A1"
	}
	return "A1:" + end
}

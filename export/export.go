// Package export writes application downloads for the admin view.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mbolis/quick-apply/model"
	"github.com/mbolis/quick-apply/store"
)

const SheetSummary = "Summary"

// CSV writes apps with the same header as the CSV store. Cells that a
// spreadsheet would evaluate as a formula are prefixed with a quote.
func CSV(w io.Writer, apps []model.Application) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(store.Columns); err != nil {
		return err
	}
	for _, a := range apps {
		row := store.Row(a)
		for i, v := range row {
			row[i] = neutralize(v)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func neutralize(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

// XLSX writes a workbook with a summary sheet followed by one row per
// application.
func XLSX(w io.Writer, apps []model.Application, summary model.Summary) error {
	f, err := store.NewWorkbook(store.SheetApplications)
	if err != nil {
		return err
	}
	defer f.Close()

	for i, a := range apps {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := store.Row(a)
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
		}
		if err := f.SetSheetRow(store.SheetApplications, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	idx, err := f.NewSheet(SheetSummary)
	if err != nil {
		return err
	}
	if err := f.MoveSheet(SheetSummary, store.SheetApplications); err != nil {
		return err
	}
	if err := writeSummary(f, summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	f.SetActiveSheet(idx)

	_, err = f.WriteTo(w)
	return err
}

func writeSummary(f *excelize.File, s model.Summary) error {
	rows := [][]any{
		{"Metric", "Value"},
		{"Total applications", s.Total},
		{"Qualified", s.Qualified},
		{"Not qualified", s.NotQualified},
		{fmt.Sprintf("Score >= %d", s.PassScore), s.Pass},
		{fmt.Sprintf("Score < %d", s.PassScore), s.Fail},
		{"Average score", s.AverageScore},
	}
	for _, section := range []struct {
		title  string
		counts []model.Count
	}{
		{"By role", s.ByRole},
		{"By qualification", s.ByQualification},
		{"By state", s.ByState},
		{"By day", s.Daily},
	} {
		rows = append(rows, []any{}, []any{section.title, "Applications"})
		for _, c := range section.counts {
			rows = append(rows, []any{c.Label, c.Value})
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return err
		}
		if row[1] == "Value" || row[1] == "Applications" {
			if err := f.SetCellStyle(SheetSummary, cell, cell, bold); err != nil {
				return err
			}
		}
	}
	return f.SetColWidth(SheetSummary, "A", "A", 28)
}

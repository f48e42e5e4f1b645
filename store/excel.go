package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mbolis/quick-apply/model"
	"github.com/xuri/excelize/v2"
)

const SheetApplications = "Applications"

// Excel keeps the workbook in memory and replaces the file atomically on
// every append.
type Excel struct {
	path string

	mu     sync.Mutex
	f      *excelize.File
	rows   int
	lastID int64
}

func OpenExcel(path string) (*Excel, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &Excel{path: path}

	f, err := excelize.OpenFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		f, err = NewWorkbook(SheetApplications)
		if err != nil {
			return nil, err
		}
		s.f, s.rows = f, 1
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}

	s.f = f
	apps, err := s.list()
	if err != nil {
		f.Close()
		return nil, err
	}
	s.rows = len(apps) + 1
	if n := len(apps); n > 0 {
		s.lastID = apps[n-1].ID
	}
	return s, nil
}

// NewWorkbook creates a workbook whose only sheet carries the styled
// application header.
func NewWorkbook(sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := WriteHeader(f, sheet); err != nil {
		return nil, err
	}
	return f, nil
}

func WriteHeader(f *excelize.File, sheet string) error {
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(Columns), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func (s *Excel) Append(_ context.Context, a *model.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *a
	stamp(&next, s.lastID+1)

	cell, err := excelize.CoordinatesToCellName(1, s.rows+1)
	if err != nil {
		return err
	}
	values := Row(next)
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := s.f.SetSheetRow(SheetApplications, cell, &row); err != nil {
		return err
	}

	if err := s.save(); err != nil {
		// keep the in-memory sheet in step with the file
		s.f.RemoveRow(SheetApplications, s.rows+1)
		return err
	}

	s.rows++
	s.lastID = next.ID
	*a = next
	return nil
}

func (s *Excel) save() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".applications-*.xlsx")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := s.f.WriteTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *Excel) List(context.Context) ([]model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

func (s *Excel) list() ([]model.Application, error) {
	rows, err := s.f.GetRows(SheetApplications)
	if err != nil {
		return nil, err
	}

	apps := []model.Application{}
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		a, err := ParseRow(row)
		if err != nil {
			return nil, fmt.Errorf("sheet row %d: %w", i+1, err)
		}
		apps = append(apps, a)
	}
	return apps, nil
}

func (s *Excel) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

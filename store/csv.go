package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mbolis/quick-apply/model"
)

// CSV appends one row per application to a single file. Each append is one
// write followed by fsync, under a lock, so rows never interleave.
type CSV struct {
	path   string
	mu     sync.Mutex
	lastID int64
}

func OpenCSV(path string) (*CSV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &CSV{path: path}
	apps, err := s.read()
	if err != nil {
		return nil, err
	}
	if n := len(apps); n > 0 {
		s.lastID = apps[n-1].ID
	}
	return s, nil
}

func (s *CSV) Append(_ context.Context, a *model.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	next := *a
	stamp(&next, s.lastID+1)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		w.Write(Columns)
	}
	w.Write(Row(next))
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}

	s.lastID = next.ID
	*a = next
	return nil
}

func (s *CSV) List(context.Context) ([]model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *CSV) read() ([]model.Application, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.Application{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadCSV(f)
}

func (*CSV) Close() error { return nil }

// ReadCSV parses rows written with Columns as header.
func ReadCSV(r io.Reader) ([]model.Application, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	apps := []model.Application{}
	header := true
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if header {
			header = false
			continue
		}

		a, err := ParseRow(row)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		apps = append(apps, a)
	}
	return apps, nil
}

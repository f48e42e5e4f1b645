package upload

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmpty           = errors.New("empty file")
)

var allowed = map[string]bool{".pdf": true, ".doc": true, ".docx": true, ".txt": true}

var reUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type Saved struct {
	Name string
	Path string
	Size int64
	Text string
}

// Dir stores resumes under a single directory, one file per upload.
type Dir struct {
	dir     string
	maxSize int64
	now     func() time.Time
}

func New(dir string, maxSize int64) (*Dir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Dir{dir: dir, maxSize: maxSize, now: time.Now}, nil
}

func (d *Dir) MaxSize() int64 {
	return d.maxSize
}

// SafeName reduces a client supplied file name to its base name made of
// [A-Za-z0-9._-], never empty and never hidden.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	name = reUnsafe.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, "._")
	if len(name) > 100 {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:100-len(ext)] + ext
	}
	if name == "" {
		return "resume"
	}
	return name
}

// Save checks type and size, writes r to a fresh file and extracts its text.
// Existing files are never overwritten.
func (d *Dir) Save(name string, r io.Reader) (Saved, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowed[ext] {
		return Saved{}, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	data, err := io.ReadAll(io.LimitReader(r, d.maxSize+1))
	if err != nil {
		return Saved{}, err
	}
	if int64(len(data)) > d.maxSize {
		return Saved{}, ErrTooLarge
	}
	if len(data) == 0 {
		return Saved{}, ErrEmpty
	}

	safe := SafeName(name)
	var f *os.File
	var stored string
	for i := 0; ; i++ {
		stored = fmt.Sprintf("%d_%s", d.now().UnixNano(), safe)
		if i > 0 {
			stored = fmt.Sprintf("%d_%d_%s", d.now().UnixNano(), i, safe)
		}
		f, err = os.OpenFile(filepath.Join(d.dir, stored), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) || i >= 10 {
			return Saved{}, err
		}
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return Saved{}, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return Saved{}, err
	}

	return Saved{
		Name: stored,
		Path: f.Name(),
		Size: int64(len(data)),
		Text: ExtractText(ext, data),
	}, nil
}

// ExtractText returns best-effort plain text for scoring.
func ExtractText(ext string, data []byte) string {
	switch strings.ToLower(ext) {
	case ".txt":
		return strings.ToValidUTF8(string(data), " ")
	case ".docx":
		if text, err := docxText(data); err == nil {
			return text
		}
	}
	return printableRuns(data, 4)
}

func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return xmlText(io.LimitReader(rc, 20<<20))
	}
	return "", errors.New("word/document.xml not found")
}

func xmlText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			// paragraph end
			if t.Name.Local == "p" {
				b.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// printableRuns keeps runs of at least min printable characters, as the
// strings(1) tool does.
func printableRuns(data []byte, min int) string {
	var out, run strings.Builder
	n := 0
	flush := func() {
		if n >= min {
			if out.Len() > 0 {
				out.WriteByte(' ')
			}
			out.WriteString(run.String())
		}
		run.Reset()
		n = 0
	}
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r != utf8.RuneError && (unicode.IsPrint(r) || r == ' ') {
			run.WriteRune(r)
			n++
			continue
		}
		flush()
	}
	flush()
	return out.String()
}

// Package fixtures resolves and generates the files used by upload scenarios.
package fixtures

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/trackerprobe/internal/config"
)

// Fixture keys.
const (
	ValidPDF     = "valid_pdf"
	NotPDF       = "not_pdf"
	OversizedPDF = "oversized_pdf"
	None         = "none"
)

// OversizedBytes is one MiB over the default 50 MiB upload limit.
const OversizedBytes = 51 * 1024 * 1024

// minimalPDF is a valid single page PDF.
const minimalPDF = `%PDF-1.4
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [3 0 R] /Count 1 >>
endobj
3 0 obj
<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>
endobj
trailer
<< /Root 1 0 R >>
%%EOF
`

// Set maps fixture keys to files under a directory.
type Set struct {
	dir   string
	files map[string]string
}

// New builds a Set from config. A leading ~ in the directory is expanded.
func New(cfg config.FixturesConfig) (*Set, error) {
	dir, err := homedir.Expand(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("expand fixtures dir %q: %w", cfg.Dir, err)
	}
	return &Set{
		dir: dir,
		files: map[string]string{
			ValidPDF:     cfg.ValidPDF,
			NotPDF:       cfg.NotPDF,
			OversizedPDF: cfg.OversizedPDF,
		},
	}, nil
}

// Dir is the expanded fixtures directory.
func (s *Set) Dir() string { return s.dir }

// Resolve returns the path for a fixture key. "none" resolves to the empty
// path. Absolute and ~ paths in config are used as is, relative ones are
// joined with the fixtures directory. The file is not required to exist.
func (s *Set) Resolve(name string) (string, error) {
	if name == None {
		return "", nil
	}
	file, ok := s.files[name]
	if !ok {
		return "", fmt.Errorf("unknown fixture %q", name)
	}
	if file == "" {
		return "", fmt.Errorf("fixture %q has no file configured", name)
	}
	file, err := homedir.Expand(file)
	if err != nil {
		return "", fmt.Errorf("expand fixture %q: %w", name, err)
	}
	if filepath.IsAbs(file) {
		return file, nil
	}
	return filepath.Join(s.dir, file), nil
}

// Generate writes all three fixtures into the fixtures directory and returns
// their paths keyed by fixture name. The oversized PDF is sparse, so it costs
// no real disk space on most filesystems.
func (s *Set) Generate() (map[string]string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create fixtures dir: %w", err)
	}

	out := make(map[string]string, 3)
	for _, name := range []string{ValidPDF, NotPDF, OversizedPDF} {
		path, err := s.Resolve(name)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create dir for %s: %w", name, err)
		}
		switch name {
		case ValidPDF:
			err = os.WriteFile(path, []byte(minimalPDF), 0o644)
		case NotPDF:
			err = os.WriteFile(path, []byte("This is a plain text file, not a PDF.\n"), 0o644)
		case OversizedPDF:
			err = writeSparse(path, []byte(minimalPDF), OversizedBytes)
		}
		if err != nil {
			return nil, fmt.Errorf("write fixture %s: %w", name, err)
		}
		out[name] = path
	}
	return out, nil
}

func writeSparse(path string, header []byte, size int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
)

// Reporter writes a finished run report to an output.
type Reporter interface {
	// Write renders the report. Reporters accept a single Write.
	Write(report *schemas.Report) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// IsStdout reports whether outputPath designates standard output.
func IsStdout(outputPath string) bool {
	return outputPath == "" || outputPath == "-" || outputPath == "stdout"
}

// New creates a new reporter based on the specified format and output path.
func New(format, outputPath string) (Reporter, error) {
	isStdOut := IsStdout(outputPath)

	switch format {
	case "text", "json", "junit", "xlsx":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	if format == "xlsx" && isStdOut {
		return nil, fmt.Errorf("xlsx format needs an output file")
	}

	var writer io.WriteCloser
	if isStdOut {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}
	return NewWithWriter(format, writer)
}

// NewWithWriter creates a reporter that takes ownership of w.
func NewWithWriter(format string, w io.WriteCloser) (Reporter, error) {
	switch format {
	case "text":
		return NewTextReporter(w), nil
	case "json":
		return NewJSONReporter(w), nil
	case "junit":
		return NewJUnitReporter(w), nil
	case "xlsx":
		return NewXLSXReporter(w), nil
	default:
		w.Close()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

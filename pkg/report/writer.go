// Package report writes replay results as CSV tables, a plain-text event log and a YAML
// manifest per mode. Output for the same inputs and configuration is byte-identical apart from
// the run id in the manifest.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/gregtusar/volhedge/pkg/models"
	"github.com/gregtusar/volhedge/pkg/replay"
)

const ComparisonFile = "comparison.csv"

type Writer struct {
	dir    string
	logger *logrus.Logger
}

func NewWriter(dir string, logger *logrus.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

func FileName(kind string, mode models.Mode, ext string) string {
	return fmt.Sprintf("%s_%s.%s", kind, mode, ext)
}

// WriteAll writes every per-mode file and, when more than one mode ran, the comparison table.
// It returns the paths written, in order.
func (w *Writer) WriteAll(results []*replay.Result, meta Metadata) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for _, res := range results {
		paths, err := w.writeResult(res, meta)
		if err != nil {
			return nil, fmt.Errorf("failed to write %s results: %w", res.Mode, err)
		}
		written = append(written, paths...)
	}

	if len(results) > 1 {
		summaries := make([]models.Summary, 0, len(results))
		for _, res := range results {
			summaries = append(summaries, res.Summary)
		}
		path, err := w.writeFile(ComparisonFile, func(out io.Writer) error {
			return WriteSummaries(out, summaries)
		})
		if err != nil {
			return nil, err
		}
		written = append(written, path)
	}

	w.logger.WithFields(logrus.Fields{
		"dir":   w.dir,
		"files": len(written),
	}).Info("Results written")
	return written, nil
}

func (w *Writer) writeResult(res *replay.Result, meta Metadata) ([]string, error) {
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{FileName("steps", res.Mode, "csv"), func(out io.Writer) error { return WriteSteps(out, res.Rows) }},
		{FileName("equity", res.Mode, "csv"), func(out io.Writer) error { return WriteEquity(out, res.Rows) }},
		{FileName("trades", res.Mode, "csv"), func(out io.Writer) error { return WriteTrades(out, res.Trades) }},
		{FileName("events", res.Mode, "log"), func(out io.Writer) error {
			return WriteEvents(out, res.Mode, res.Rows, res.Events)
		}},
		{FileName("summary", res.Mode, "csv"), func(out io.Writer) error {
			return WriteSummaries(out, []models.Summary{res.Summary})
		}},
	}

	paths := make([]string, 0, len(files)+1)
	names := make([]string, 0, len(files))
	for _, f := range files {
		path, err := w.writeFile(f.name, f.write)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
		names = append(names, f.name)
	}

	manifest := NewManifest(res, meta, names)
	path, err := w.writeFile(FileName("manifest", res.Mode, "yaml"), func(out io.Writer) error {
		return WriteManifest(out, manifest)
	})
	if err != nil {
		return nil, err
	}
	return append(paths, path), nil
}

// writeFile writes to a temporary file and renames it into place so readers never see a
// partial table.
func (w *Writer) writeFile(name string, write func(io.Writer) error) (string, error) {
	path := filepath.Join(w.dir, name)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to flush %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return path, nil
}

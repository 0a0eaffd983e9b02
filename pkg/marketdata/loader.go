// Package marketdata reads and validates the price and option series a replay consumes.
package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gregtusar/volhedge/pkg/models"
)

type PriceRow struct {
	Timestamp   time.Time
	Close       float64
	RealizedVol float64
}

type OptionRow struct {
	Timestamp  time.Time
	Mid        float64
	IV         float64
	Delta      float64
	Gamma      float64
	Vega       float64
	Theta      float64
	ExpiryDays float64
}

// column lists the accepted header names of one field, preferred name first.
type column []string

var (
	colTimestamp   = column{"timestamp", "date", "time"}
	colClose       = column{"underlying_close", "close"}
	colRealizedVol = column{"realized_vol", "rv"}
	colMid         = column{"option_mid", "mid"}
	colIV          = column{"implied_vol", "iv"}
	colDelta       = column{"delta"}
	colGamma       = column{"gamma"}
	colVega        = column{"vega"}
	colTheta       = column{"theta"}
	colExpiry      = column{"expiry_days"}
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// LoadFiles reads both series from disk and aligns them into bars.
func LoadFiles(pricesPath, optionsPath string) ([]models.Bar, error) {
	prices, err := readFile(pricesPath, ReadPrices)
	if err != nil {
		return nil, err
	}
	options, err := readFile(optionsPath, ReadOptions)
	if err != nil {
		return nil, err
	}
	return Align(prices, options)
}

func readFile[T any](path string, read func(io.Reader, string) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return read(f, path)
}

func ReadPrices(r io.Reader, source string) ([]PriceRow, error) {
	tbl, err := readTable(r, source, colTimestamp, colClose, colRealizedVol)
	if err != nil {
		return nil, err
	}

	out := make([]PriceRow, 0, len(tbl.rows))
	for i := range tbl.rows {
		row := PriceRow{}
		if row.Timestamp, err = tbl.timestamp(i, colTimestamp); err != nil {
			return nil, err
		}
		if row.Close, err = tbl.float(i, colClose, true); err != nil {
			return nil, err
		}
		if row.RealizedVol, err = tbl.float(i, colRealizedVol, true); err != nil {
			return nil, err
		}
		if row.Close <= 0 {
			return nil, violation(source, tbl.line(i), colClose[0], "must be positive, got %g", row.Close)
		}
		out = append(out, row)
	}
	if err := checkMonotonic(source, out, func(p PriceRow) time.Time { return p.Timestamp }); err != nil {
		return nil, err
	}
	return out, nil
}

func ReadOptions(r io.Reader, source string) ([]OptionRow, error) {
	tbl, err := readTable(r, source, colTimestamp, colMid, colIV, colDelta, colGamma, colVega)
	if err != nil {
		return nil, err
	}

	out := make([]OptionRow, 0, len(tbl.rows))
	for i := range tbl.rows {
		row := OptionRow{}
		if row.Timestamp, err = tbl.timestamp(i, colTimestamp); err != nil {
			return nil, err
		}
		fields := []struct {
			dst      *float64
			col      column
			required bool
		}{
			{&row.Mid, colMid, true},
			{&row.IV, colIV, true},
			{&row.Delta, colDelta, true},
			{&row.Gamma, colGamma, true},
			{&row.Vega, colVega, true},
			{&row.Theta, colTheta, false},
			{&row.ExpiryDays, colExpiry, false},
		}
		for _, f := range fields {
			if *f.dst, err = tbl.float(i, f.col, f.required); err != nil {
				return nil, err
			}
		}
		if row.Mid < 0 {
			return nil, violation(source, tbl.line(i), colMid[0], "must not be negative, got %g", row.Mid)
		}
		out = append(out, row)
	}
	if err := checkMonotonic(source, out, func(o OptionRow) time.Time { return o.Timestamp }); err != nil {
		return nil, err
	}
	return out, nil
}

// Align joins the two series one to one. Any timestamp present in only one series is a
// contract violation.
func Align(prices []PriceRow, options []OptionRow) ([]models.Bar, error) {
	if len(prices) != len(options) {
		return nil, violation("series", 0, "timestamp", "price series has %d rows, option series has %d", len(prices), len(options))
	}

	bars := make([]models.Bar, len(prices))
	for i, p := range prices {
		o := options[i]
		if !p.Timestamp.Equal(o.Timestamp) {
			return nil, violation("series", i+1, "timestamp", "price %s does not match option %s",
				p.Timestamp.Format(time.RFC3339), o.Timestamp.Format(time.RFC3339))
		}
		bars[i] = models.Bar{
			Timestamp:   p.Timestamp,
			Spot:        p.Close,
			RealizedVol: p.RealizedVol,
			OptionMid:   o.Mid,
			ImpliedVol:  o.IV,
			Delta:       o.Delta,
			Gamma:       o.Gamma,
			Vega:        o.Vega,
			Theta:       o.Theta,
			ExpiryDays:  o.ExpiryDays,
		}
	}
	return bars, nil
}

// Between keeps bars inside [start, end]; a zero bound is open.
func Between(bars []models.Bar, start, end time.Time) []models.Bar {
	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if !start.IsZero() && b.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// IsDaily reports whether the leading bars carry no intraday time component.
func IsDaily(bars []models.Bar) bool {
	if len(bars) == 0 {
		return false
	}
	for _, b := range bars[:min(100, len(bars))] {
		h, m, s := b.Timestamp.Clock()
		if h != 0 || m != 0 || s != 0 || b.Timestamp.Nanosecond() != 0 {
			return false
		}
	}
	return true
}

func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

type table struct {
	source  string
	index   map[string]int
	rows    [][]string
	resolve map[string]int
}

func readTable(r io.Reader, source string, required ...column) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, violation(source, 0, "header", "file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header: %w", source, err)
	}

	t := &table{source: source, index: make(map[string]int), resolve: make(map[string]int)}
	for i, h := range header {
		t.index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := t.lookup(col); !ok {
			return nil, violation(source, 0, col[0], "required column missing")
		}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", source, err)
		}
		t.rows = append(t.rows, rec)
	}
	if len(t.rows) == 0 {
		return nil, violation(source, 0, "rows", "no data rows")
	}
	return t, nil
}

func (t *table) lookup(col column) (int, bool) {
	if idx, ok := t.resolve[col[0]]; ok {
		return idx, idx >= 0
	}
	for _, name := range col {
		if idx, ok := t.index[name]; ok {
			t.resolve[col[0]] = idx
			return idx, true
		}
	}
	t.resolve[col[0]] = -1
	return -1, false
}

// line is the 1-based file line of data row i, counting the header.
func (t *table) line(i int) int {
	return i + 2
}

func (t *table) cell(i int, col column) string {
	idx, ok := t.lookup(col)
	if !ok || idx >= len(t.rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.rows[i][idx])
}

func (t *table) timestamp(i int, col column) (time.Time, error) {
	raw := t.cell(i, col)
	if raw == "" {
		return time.Time{}, violation(t.source, t.line(i), col[0], "missing value")
	}
	ts, err := ParseTime(raw)
	if err != nil {
		return time.Time{}, violation(t.source, t.line(i), col[0], "%v", err)
	}
	return ts, nil
}

func (t *table) float(i int, col column, required bool) (float64, error) {
	raw := t.cell(i, col)
	if raw == "" {
		if required {
			return 0, violation(t.source, t.line(i), col[0], "missing value")
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, violation(t.source, t.line(i), col[0], "not a finite number: %q", raw)
	}
	return v, nil
}

func checkMonotonic[T any](source string, rows []T, ts func(T) time.Time) error {
	for i := 1; i < len(rows); i++ {
		prev, cur := ts(rows[i-1]), ts(rows[i])
		if cur.Equal(prev) {
			return violation(source, i+2, "timestamp", "duplicate timestamp %s", cur.Format(time.RFC3339))
		}
		if cur.Before(prev) {
			return violation(source, i+2, "timestamp", "non-monotonic timestamp %s after %s",
				cur.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
	}
	return nil
}

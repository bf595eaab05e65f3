// Package export renders RSI series the way users see them: truncated
// tables, M/D/YYYY dates and CSV downloads.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rsi-lens/internal/domain"
)

const (
	displayLayout = "1/2/2006"
	compactLayout = "20060102"
)

// DefaultDisplayCount is how many rows a historical table shows.
const DefaultDisplayCount = 10

var ErrNoPoints = errors.New("no RSI points to export")

// FormatDisplayDate turns "2024-01-05" into "1/5/2024". A trailing time of
// day is ignored and anything unparseable is returned unchanged.
func FormatDisplayDate(s string) string {
	d, err := domain.ParseDate(s)
	if err != nil {
		return s
	}
	return d.Format(displayLayout)
}

// DisplayDate formats a point date as M/D/YYYY.
func DisplayDate(t time.Time) string {
	return t.Format(displayLayout)
}

// CompactDate turns "2024-01-05" into "20240105". Unparseable input has its
// dashes stripped.
func CompactDate(s string) string {
	d, err := domain.ParseDate(s)
	if err != nil {
		return strings.ReplaceAll(s, "-", "")
	}
	return d.Format(compactLayout)
}

// FormatRSI renders a value with two decimals.
func FormatRSI(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// Visible returns the first n points, or all of them when n <= 0 or there
// are fewer than n.
func Visible(points []domain.RSIPoint, n int) []domain.RSIPoint {
	if n <= 0 || len(points) <= n {
		return points
	}
	return points[:n]
}

// Summary is the "Showing N of M records" caption under a truncated table.
func Summary(shown, total int) string {
	return fmt.Sprintf("Showing %d of %d records", shown, total)
}

// Filename names an export of points (newest first) for symbol as
// SYMBOL_RSI_{oldest}_to_{newest}.csv.
func Filename(symbol string, points []domain.RSIPoint) (string, error) {
	if len(points) == 0 {
		return "", ErrNoPoints
	}
	oldest := points[len(points)-1].Date.Format(compactLayout)
	newest := points[0].Date.Format(compactLayout)
	return fmt.Sprintf("%s_RSI_%s_to_%s.csv", domain.NormalizeSymbol(symbol), oldest, newest), nil
}

// WriteCSV writes the Date,RSI header followed by one row per point.
func WriteCSV(w io.Writer, points []domain.RSIPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "RSI"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := cw.Write([]string{DisplayDate(p.Date), FormatRSI(p.RSI)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSV renders points into memory.
func CSV(points []domain.RSIPoint) ([]byte, error) {
	var b strings.Builder
	if err := WriteCSV(&b, points); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// SaveCSV writes the points to dir under their export filename and returns
// the file path.
func SaveCSV(dir, symbol string, points []domain.RSIPoint) (string, error) {
	name, err := Filename(symbol, points)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := WriteCSV(f, points); err != nil {
		f.Close()
		return "", fmt.Errorf("write csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	return path, nil
}

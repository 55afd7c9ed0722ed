// Package csvimport parses BetaSeries CSV exports into migration rows.
package csvimport

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"betatrakt/models"
)

var ErrMissingHeader = errors.New("csv export has no header row")

// record is one parsed line keyed by lowercased header name.
type record map[string]string

// ParseShows reads a BetaSeries show export. Rows missing an id or title are
// skipped rather than rejected; the export routinely contains blank lines.
func ParseShows(r io.Reader) ([]models.ShowRow, error) {
	records, err := parse(r)
	if err != nil {
		return nil, err
	}

	rows := make([]models.ShowRow, 0, len(records))
	for _, rec := range records {
		if rec["id"] == "" || rec["title"] == "" {
			continue
		}
		rows = append(rows, models.ShowRow{
			ID:        rec["id"],
			Title:     rec["title"],
			Archive:   rec["archive"],
			Episode:   rec["episode"],
			Remaining: rec["remaining"],
			Status:    rec["status"],
			Tags:      rec["tags"],
		})
	}
	return rows, nil
}

// ParseMovies reads a BetaSeries movie export.
func ParseMovies(r io.Reader) ([]models.MovieRow, error) {
	records, err := parse(r)
	if err != nil {
		return nil, err
	}

	rows := make([]models.MovieRow, 0, len(records))
	for _, rec := range records {
		if rec["id"] == "" || rec["title"] == "" {
			continue
		}
		rows = append(rows, models.MovieRow{
			ID:     rec["id"],
			Title:  rec["title"],
			Status: rec["status"],
			Date:   rec["date"],
		})
	}
	return rows, nil
}

// parse reads header-mapped records, trimming every value. BetaSeries has
// shipped both semicolon and comma separated exports, so the delimiter is
// sniffed from the header line.
func parse(r io.Reader) ([]record, error) {
	buffered := bufio.NewReader(r)
	headerLine, err := buffered.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	reader := csv.NewReader(buffered)
	reader.Comma = sniffDelimiter(string(headerLine))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, name := range header {
		header[i] = strings.ToLower(strings.TrimSpace(name))
	}

	var records []record
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		rec := make(record, len(header))
		for i, value := range fields {
			if i >= len(header) {
				break
			}
			rec[header[i]] = strings.TrimSpace(value)
		}
		records = append(records, rec)
	}
	return records, nil
}

func sniffDelimiter(headerLine string) rune {
	if i := strings.IndexByte(headerLine, '\n'); i >= 0 {
		headerLine = headerLine[:i]
	}
	if strings.Count(headerLine, ";") > strings.Count(headerLine, ",") {
		return ';'
	}
	return ','
}

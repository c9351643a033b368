package ingestion

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Rajat083/Internship-Recommender/internal/datasource"
	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
)

// Format names an import file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: unsupported import file %q (want .json or .csv)", apperrors.ErrInvalidInput, path)
	}
}

// Decode reads internships from r. JSON input is either an array of
// internships or an ImportRequest object. CSV input needs a header row
// naming at least internship_id and internship_title; is_active defaults
// to true when the column is absent.
func Decode(r io.Reader, format Format) ([]datasource.Internship, error) {
	switch format {
	case FormatJSON:
		return decodeJSON(r)
	case FormatCSV:
		return decodeCSV(r)
	default:
		return nil, fmt.Errorf("%w: unknown import format %q", apperrors.ErrInvalidInput, format)
	}
}

func decodeJSON(r io.Reader) ([]datasource.Internship, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading import: %w", err)
	}
	array := bytes.TrimSpace(data)
	if len(array) == 0 || array[0] != '[' {
		var req struct {
			Internships json.RawMessage `json:"internships"`
		}
		if err := json.Unmarshal(array, &req); err != nil {
			return nil, fmt.Errorf("%w: decoding import request: %v", apperrors.ErrInvalidInput, err)
		}
		if len(req.Internships) == 0 {
			return nil, nil
		}
		array = req.Internships
	}
	var rows []datasource.Internship
	if err := json.Unmarshal(array, &rows); err != nil {
		return nil, fmt.Errorf("%w: decoding internships: %v", apperrors.ErrInvalidInput, err)
	}
	defaultActive(array, rows)
	return rows, nil
}

// defaultActive marks rows active unless the source set is_active.
func defaultActive(array []byte, rows []datasource.Internship) {
	var present []map[string]json.RawMessage
	if err := json.Unmarshal(array, &present); err != nil || len(present) != len(rows) {
		return
	}
	for i := range rows {
		if _, ok := present[i]["is_active"]; !ok {
			rows[i].Active = true
		}
	}
}

var csvColumns = []string{"internship_id", "internship_title", "company", "domain", "required_skills", "stipend", "is_active"}

func decodeCSV(r io.Reader) ([]datasource.Internship, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading csv header: %v", apperrors.ErrInvalidInput, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range csvColumns[:2] {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%w: csv header is missing %q", apperrors.ErrInvalidInput, required)
		}
	}

	var rows []datasource.Internship
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv line %d: %v", apperrors.ErrInvalidInput, line, err)
		}
		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		row := datasource.Internship{
			Title:          field("internship_title"),
			Company:        field("company"),
			Domain:         field("domain"),
			RequiredSkills: field("required_skills"),
			Active:         true,
		}
		if row.ID, err = strconv.ParseInt(field("internship_id"), 10, 64); err != nil {
			return nil, fmt.Errorf("%w: csv line %d: internship_id %q is not an integer", apperrors.ErrInvalidInput, line, field("internship_id"))
		}
		if v := field("stipend"); v != "" {
			if row.Stipend, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("%w: csv line %d: stipend %q is not a number", apperrors.ErrInvalidInput, line, v)
			}
		}
		if v := field("is_active"); v != "" {
			if row.Active, err = strconv.ParseBool(v); err != nil {
				return nil, fmt.Errorf("%w: csv line %d: is_active %q is not a boolean", apperrors.ErrInvalidInput, line, v)
			}
		}
		rows = append(rows, row)
	}
}

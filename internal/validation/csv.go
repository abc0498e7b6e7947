package validation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RequiredFields must all appear in a CSV header.
var RequiredFields = []string{
	"farmer_name",
	"farm_size",
	"collection_site",
	"farm_district",
	"farm_village",
	"latitude",
	"longitude",
	"polygon",
}

// OptionalFields may appear in a CSV header in addition to RequiredFields.
var OptionalFields = []string{
	"remote_id",
	"member_id",
	"agent_name",
	"created_at",
	"updated_at",
	"accuracyArray",
	"accuracies",
}

// LargeFarmHectares is the size from which a plot must be mapped as a polygon.
const LargeFarmHectares = 4.0

// CSV checks a header row plus data rows. Header problems are reported on
// their own since rows cannot be read without a usable header; row problems
// are accumulated across every row. A trailing row shorter than the required
// field set (a blank last line) is ignored.
func CSV(rows [][]string) []string {
	if len(rows) == 0 {
		return []string{"File is empty."}
	}

	header := make([]string, len(rows[0]))
	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
		cols[header[i]] = i
	}

	var errs []string
	for _, f := range RequiredFields {
		if _, ok := cols[f]; !ok {
			errs = append(errs, fmt.Sprintf("%q is required.", f))
		}
	}
	if len(errs) > 0 {
		return errs
	}

	allowed := make(map[string]bool, len(RequiredFields)+len(OptionalFields))
	for _, f := range RequiredFields {
		allowed[f] = true
	}
	for _, f := range OptionalFields {
		allowed[f] = true
	}
	for _, h := range header {
		if !allowed[h] {
			errs = append(errs, fmt.Sprintf("%q is not a valid field.", h))
		}
	}
	if len(errs) > 0 {
		return errs
	}

	data := rows[1:]
	if n := len(data); n > 0 && len(data[n-1]) < len(RequiredFields) {
		data = data[:n-1]
	}

	cell := func(row []string, name string) string {
		if i := cols[name]; i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	for i, row := range data {
		n := i + 1
		size, sizeErr := strconv.ParseFloat(cell(row, "farm_size"), 64)
		if sizeErr != nil {
			errs = append(errs, fmt.Sprintf("Record %d: \"farm_size\" must be a number.", n))
		}
		for _, f := range []string{"latitude", "longitude"} {
			if _, err := strconv.ParseFloat(cell(row, f), 64); err != nil {
				errs = append(errs, fmt.Sprintf("Record %d: %q must be a number.", n, f))
			}
		}

		polygon := cell(row, "polygon")
		large := sizeErr == nil && size >= LargeFarmHectares
		if polygon == "" {
			if large {
				errs = append(errs, fmt.Sprintf("Record %d: Should have valid polygon format.", n))
			}
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(polygon), &parsed); err != nil {
			errs = append(errs, fmt.Sprintf("Record %d: \"polygon\" must be a list.", n))
			continue
		}
		if _, ok := parsed.([]any); !ok {
			errs = append(errs, fmt.Sprintf("Record %d: \"polygon\" must be a list.", n))
			continue
		}
		if !IsValidPolygon(parsed) {
			errs = append(errs, fmt.Sprintf("Record %d: Should have valid polygon format.", n))
		}
	}
	return errs
}

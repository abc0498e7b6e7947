package farms

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/terratrac/eudr-backend/internal/geojson"
	"github.com/terratrac/eudr-backend/internal/validation"
	"github.com/xuri/excelize/v2"
)

var sampleRing = [][]float64{
	{29.9898, -1.6288}, {29.9908, -1.6288}, {29.9908, -1.6298}, {29.9898, -1.6298}, {29.9898, -1.6288},
}

var sampleRow = map[string]any{
	"farmer_name":     "John Doe",
	"farm_size":       4,
	"collection_site": "Site A",
	"farm_district":   "District A",
	"farm_village":    "Village A",
	"latitude":        -1.62883139933721,
	"longitude":       29.9898212498949,
}

// TemplateHandler serves an upload template as csv, geojson or xlsx.
func TemplateHandler(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	var (
		body        []byte
		contentType string
		err         error
	)
	switch format {
	case "csv":
		body, err = csvTemplate()
		contentType = "text/csv"
	case "geojson":
		body, err = geojsonTemplate()
		contentType = "application/json"
	case "xlsx":
		body, err = xlsxTemplate()
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "":
		writeError(w, http.StatusBadRequest, "Format parameter is missing or incorrect")
		return
	default:
		writeError(w, http.StatusBadRequest, "Invalid format")
		return
	}
	if err != nil {
		writeLookupError(w, "template", err)
		return
	}

	name := fmt.Sprintf("terratrac-upload-template-%s.%s", time.Now().UTC().Format("2006-01-02-15-04-05"), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(body)
}

// templateRecord is the header and sample row in upload column order.
func templateRecord() ([]string, []string) {
	ring, _ := json.Marshal(sampleRing)
	header := validation.RequiredFields
	row := make([]string, len(header))
	for i, col := range header {
		if col == "polygon" {
			row[i] = string(ring)
			continue
		}
		row[i] = fmt.Sprint(sampleRow[col])
	}
	return header, row
}

func csvTemplate() ([]byte, error) {
	header, row := templateRecord()
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.WriteAll([][]string{header, row}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func geojsonTemplate() ([]byte, error) {
	var props geojson.Properties
	for k, v := range sampleRow {
		if err := props.Set(k, v); err != nil {
			return nil, err
		}
	}
	fc := geojson.NewCollection([]geojson.Feature{{
		Type:       geojson.TypeFeature,
		Properties: props,
		Geometry:   geojson.NewPolygon([][][]float64{sampleRing}),
	}})
	return json.MarshalIndent(fc, "", "  ")
}

func xlsxTemplate() ([]byte, error) {
	header, row := templateRecord()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, rec := range [][]string{header, row} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		vals := make([]any, len(rec))
		for j, v := range rec {
			vals[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

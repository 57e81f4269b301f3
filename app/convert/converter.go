// Package convert turns vector dataset files into tabular form. One
// shapefile set (the .shp plus its sidecar files) becomes one CSV of the
// attribute table.
package convert

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	shp "github.com/jonas-p/go-shp"
	"golang.org/x/text/encoding/charmap"
)

// Converter converts one vector dataset file into a tabular file inside
// outDir and returns the output path.
type Converter interface {
	Convert(shpFile, outDir string) (string, error)
}

// ShapefileConverter converts ESRI shapefile sets to CSV.
type ShapefileConverter struct {
	charset string
}

var _ Converter = (*ShapefileConverter)(nil)

// NewShapefileConverter creates a converter decoding DBF attributes with
// the given character set ("utf-8" or "latin1").
func NewShapefileConverter(charset string) *ShapefileConverter {
	if charset == "" {
		charset = "utf-8"
	}
	return &ShapefileConverter{charset: charset}
}

// Convert writes the attribute table of one shapefile set as CSV. A
// missing or unreadable .prj sidecar yields a ProjectionError, an
// undecodable attribute value an EncodingError; both identify the
// offending source file.
func (c *ShapefileConverter) Convert(shpFile, outDir string) (string, error) {
	prjFile := strings.TrimSuffix(shpFile, filepath.Ext(shpFile)) + ".prj"
	if info, err := os.Stat(prjFile); err != nil || info.Size() == 0 {
		return "", &ProjectionError{File: shpFile}
	}

	// the reader swallows a failed .dbf open and reports no fields, which
	// would silently produce an empty tabular file
	dbfFile := strings.TrimSuffix(shpFile, filepath.Ext(shpFile)) + ".dbf"
	if info, err := os.Stat(dbfFile); err != nil || info.Size() == 0 {
		return "", fmt.Errorf("missing attribute table for %s", shpFile)
	}

	reader, err := shp.Open(shpFile)
	if err != nil {
		return "", fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer reader.Close()

	fields := reader.Fields()
	if len(fields) == 0 {
		return "", fmt.Errorf("attribute table of %s has no fields", shpFile)
	}
	header := make([]string, 0, len(fields))
	for _, field := range fields {
		header = append(header, field.String())
	}

	base := strings.TrimSuffix(filepath.Base(shpFile), filepath.Ext(shpFile))
	csvFile := filepath.Join(outDir, base+".csv")
	out, err := os.Create(csvFile)
	if err != nil {
		return "", fmt.Errorf("failed to create csv file: %w", err)
	}
	defer out.Close()

	writer := csv.NewWriter(out)
	if err := writer.Write(header); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}

	for reader.Next() {
		row, _ := reader.Shape()
		record := make([]string, len(fields))
		for k := range fields {
			value, err := c.decode(reader.ReadAttribute(row, k))
			if err != nil {
				os.Remove(csvFile)
				return "", &EncodingError{File: shpFile, Err: err}
			}
			record[k] = value
		}
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	if err := reader.Err(); err != nil {
		return "", fmt.Errorf("failed to read shapefile records: %w", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv file: %w", err)
	}

	return csvFile, nil
}

func (c *ShapefileConverter) decode(raw string) (string, error) {
	// DBF values are fixed width, padded with spaces or NULs
	raw = strings.Trim(raw, "\x00 ")

	switch strings.ToLower(c.charset) {
	case "utf-8", "utf8":
		if !utf8.ValidString(raw) {
			return "", fmt.Errorf("invalid UTF-8 attribute value")
		}
		return raw, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder().String(raw)
	default:
		return "", fmt.Errorf("unsupported attribute charset %q", c.charset)
	}
}

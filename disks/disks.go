package disks

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/dargueta/labdisk/errors"
	"github.com/gocarina/gocsv"
)

////////////////////////////////////////////////////////////////////////////////
// Geometry

// Geometry describes the shape of a simulated disk. Every section is one block
// of the volume.
type Geometry struct {
	Name      string `csv:"name"`
	Slug      string `csv:"slug"`
	Cylinders uint   `csv:"cylinders"`
	Surfaces  uint   `csv:"surfaces"`
	Sections  uint   `csv:"sections"`
	// SectionLength gives the size of one section, in bytes.
	SectionLength uint   `csv:"section_length"`
	Notes         string `csv:"notes"`
}

// TotalBlocks gives the number of blocks on a volume with this geometry.
func (g *Geometry) TotalBlocks() uint {
	return g.Cylinders * g.Surfaces * g.Sections
}

// BlockSize gives the size of one block, in bytes.
func (g *Geometry) BlockSize() uint {
	return g.SectionLength
}

// TotalSizeBytes gives the size of an image file for this geometry.
func (g *Geometry) TotalSizeBytes() int64 {
	return int64(g.TotalBlocks()) * int64(g.SectionLength)
}

////////////////////////////////////////////////////////////////////////////////

//go:embed disk-geometries.csv
var diskGeometriesRawCSV string
var diskGeometries map[string]Geometry

// GetPredefinedGeometry returns the preset with the given slug.
func GetPredefinedGeometry(slug string) (Geometry, error) {
	geometry, ok := diskGeometries[slug]
	if ok {
		return geometry, nil
	}
	return Geometry{}, errors.ErrNotFound.WithMessage(
		fmt.Sprintf("no predefined disk geometry exists with slug %q", slug),
	)
}

// Geometries returns all presets sorted by slug.
func Geometries() []Geometry {
	result := make([]Geometry, 0, len(diskGeometries))
	for _, geometry := range diskGeometries {
		result = append(result, geometry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Slug < result[j].Slug })
	return result
}

func parseGeometries(rawCSV string) (map[string]Geometry, error) {
	csvReader := csv.NewReader(strings.NewReader(rawCSV))
	csvReader.Comma = '|'

	var rows []Geometry
	err := gocsv.UnmarshalCSV(csvReader, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to decode geometry table: %w", err)
	}

	geometries := make(map[string]Geometry, len(rows))
	for i, row := range rows {
		_, exists := geometries[row.Slug]
		if exists {
			return nil, fmt.Errorf(
				"duplicate definition for disk %q found on row %d", row.Slug, i+1,
			)
		}
		geometries[row.Slug] = row
	}
	return geometries, nil
}

func init() {
	var err error
	diskGeometries, err = parseGeometries(diskGeometriesRawCSV)
	if err != nil {
		panic(err)
	}
}

// Package sounding holds the metadata table describing atmospheric
// sounding indices (CAPE, CIN, storm-relative helicity, ...) and the
// unit conversions between the external SHARPpy-style computation and
// this project's SI conventions.
//
// The table is loaded once from CSV at process start and treated as
// immutable configuration: consumers receive a *Metadata at
// construction time instead of reaching for a package-global file.
package sounding

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Index describes one sounding index.
type Index struct {
	// Name in this project's snake_case convention, e.g.
	// "storm_relative_helicity_m02_s02".
	Name string
	// SharppyName is the attribute name used by the external SHARPpy
	// computation.
	SharppyName string
	// ConversionFactor multiplies SHARPpy-unit values to produce
	// project-unit values.
	ConversionFactor float64
	// IsVector marks 2-D (u, v) indices; scalars otherwise.
	IsVector bool
	// InParcelObject marks indices read from the most-unstable-parcel
	// sub-object rather than the profile itself.
	InParcelObject bool
}

// vectorSuffixes are the per-component column suffixes a vector index
// expands into when flattened for storage.
var vectorSuffixes = map[string]bool{
	"x": true, "y": true, "magnitude": true, "cos": true, "sin": true,
}

// Metadata is the immutable sounding-index table.
type Metadata struct {
	indices []Index
	byName  map[string]int
}

// expected CSV header, in order.
var metadataColumns = []string{
	"sounding_index_name",
	"sounding_index_name_sharppy",
	"conversion_factor",
	"is_vector",
	"in_parcel_object",
}

// LoadMetadata reads the sounding-index table from a CSV file.
func LoadMetadata(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sounding metadata: %w", err)
	}
	defer f.Close()

	m, err := ReadMetadata(f)
	if err != nil {
		return nil, fmt.Errorf("read sounding metadata %s: %w", path, err)
	}
	return m, nil
}

// ReadMetadata parses the sounding-index table from CSV content.
func ReadMetadata(r io.Reader) (*Metadata, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	m := &Metadata{byName: make(map[string]int)}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		idx, err := parseRow(row)
		if err != nil {
			return nil, err
		}
		if _, dup := m.byName[idx.Name]; dup {
			return nil, fmt.Errorf("duplicate sounding index %q", idx.Name)
		}
		m.byName[idx.Name] = len(m.indices)
		m.indices = append(m.indices, idx)
	}

	if len(m.indices) == 0 {
		return nil, fmt.Errorf("sounding metadata table is empty")
	}
	return m, nil
}

func checkHeader(header []string) error {
	if len(header) != len(metadataColumns) {
		return fmt.Errorf("expected %d columns, got %d", len(metadataColumns), len(header))
	}
	for i, want := range metadataColumns {
		if strings.TrimSpace(header[i]) != want {
			return fmt.Errorf("column %d is %q, want %q", i, header[i], want)
		}
	}
	return nil
}

func parseRow(row []string) (Index, error) {
	if len(row) != len(metadataColumns) {
		return Index{}, fmt.Errorf("row has %d fields, want %d", len(row), len(metadataColumns))
	}

	factor, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return Index{}, fmt.Errorf("bad conversion factor %q for %q: %w", row[2], row[0], err)
	}
	isVector, err := strconv.ParseBool(strings.TrimSpace(row[3]))
	if err != nil {
		return Index{}, fmt.Errorf("bad is_vector %q for %q: %w", row[3], row[0], err)
	}
	inParcel, err := strconv.ParseBool(strings.TrimSpace(row[4]))
	if err != nil {
		return Index{}, fmt.Errorf("bad in_parcel_object %q for %q: %w", row[4], row[0], err)
	}

	name := strings.TrimSpace(row[0])
	if name == "" {
		return Index{}, fmt.Errorf("sounding index with empty name")
	}

	return Index{
		Name:             name,
		SharppyName:      strings.TrimSpace(row[1]),
		ConversionFactor: factor,
		IsVector:         isVector,
		InParcelObject:   inParcel,
	}, nil
}

// Indices returns all indices in table order. The slice is a copy.
func (m *Metadata) Indices() []Index {
	out := make([]Index, len(m.indices))
	copy(out, m.indices)
	return out
}

// Lookup finds an index by project name.
func (m *Metadata) Lookup(name string) (Index, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Index{}, false
	}
	return m.indices[i], true
}

// IndexFromColumnName maps a flattened storage column back to its
// sounding index: either the bare index name or "<name>_<suffix>" for a
// vector component. Returns "" when the column is not a sounding index.
func (m *Metadata) IndexFromColumnName(column string) string {
	if _, ok := m.byName[column]; ok {
		return column
	}

	cut := strings.LastIndex(column, "_")
	if cut <= 0 {
		return ""
	}
	if !vectorSuffixes[column[cut+1:]] {
		return ""
	}

	name := column[:cut]
	if idx, ok := m.Lookup(name); ok && idx.IsVector {
		return name
	}
	return ""
}

// ConvertFromSharppy scales SHARPpy-unit values into project units
// in place and returns the slice.
func (idx Index) ConvertFromSharppy(values []float64) []float64 {
	floats.Scale(idx.ConversionFactor, values)
	return values
}

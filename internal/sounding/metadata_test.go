package sounding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = `sounding_index_name,sounding_index_name_sharppy,conversion_factor,is_vector,in_parcel_object
convective_available_potential_energy_j_kg01,bplus,1.0,false,true
storm_relative_helicity_m02_s02,srh1km,1.0,false,false
storm_velocity_m_s01,srwind,0.514444,true,false
`

func loadTestMetadata(t *testing.T) *Metadata {
	t.Helper()
	m, err := ReadMetadata(strings.NewReader(testCSV))
	require.NoError(t, err)
	return m
}

func TestReadMetadata(t *testing.T) {
	m := loadTestMetadata(t)
	require.Len(t, m.Indices(), 3)

	cape, ok := m.Lookup("convective_available_potential_energy_j_kg01")
	require.True(t, ok)
	assert.Equal(t, "bplus", cape.SharppyName)
	assert.True(t, cape.InParcelObject)
	assert.False(t, cape.IsVector)

	velocity, ok := m.Lookup("storm_velocity_m_s01")
	require.True(t, ok)
	assert.True(t, velocity.IsVector)
	assert.InDelta(t, 0.514444, velocity.ConversionFactor, 1e-9)
}

func TestReadMetadata_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"wrong header", "a,b,c,d,e\nx,y,1,false,false\n"},
		{"missing column", "sounding_index_name,sounding_index_name_sharppy,conversion_factor,is_vector\nx,y,1,false\n"},
		{"bad factor", testCSV + "bad_index,foo,not-a-number,false,false\n"},
		{"duplicate name", testCSV + "storm_velocity_m_s01,srwind,1.0,true,false\n"},
		{"empty table", "sounding_index_name,sounding_index_name_sharppy,conversion_factor,is_vector,in_parcel_object\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadMetadata(strings.NewReader(tc.csv))
			assert.Error(t, err)
		})
	}
}

func TestIndexFromColumnName(t *testing.T) {
	m := loadTestMetadata(t)

	tests := []struct {
		column string
		want   string
	}{
		{"storm_relative_helicity_m02_s02", "storm_relative_helicity_m02_s02"},
		{"storm_velocity_m_s01_x", "storm_velocity_m_s01"},
		{"storm_velocity_m_s01_magnitude", "storm_velocity_m_s01"},
		// Scalar indices have no vector components.
		{"convective_available_potential_energy_j_kg01_x", ""},
		{"unrelated_column", ""},
		{"x", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, m.IndexFromColumnName(tc.column), "column %q", tc.column)
	}
}

func TestConvertFromSharppy(t *testing.T) {
	m := loadTestMetadata(t)
	velocity, ok := m.Lookup("storm_velocity_m_s01")
	require.True(t, ok)

	// Knots to metres per second.
	got := velocity.ConvertFromSharppy([]float64{10, 20})
	assert.InDelta(t, 5.14444, got[0], 1e-5)
	assert.InDelta(t, 10.28888, got[1], 1e-5)
}

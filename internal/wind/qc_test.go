package wind

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goodObservation() Observation {
	return Observation{
		StationID:        "KOUN",
		StationName:      "Norman OK",
		LatitudeDeg:      35.2,
		LongitudeDeg:     -97.4,
		ElevationMASL:    357,
		ValidTimeUnixSec: 1516749825,
		SpeedMS:          12.5,
		DirectionDeg:     225,
		GustSpeedMS:      18.0,
		GustDirectionDeg: 230,
	}
}

func TestRemoveInvalid(t *testing.T) {
	t.Run("keeps valid observation and normalizes longitude", func(t *testing.T) {
		out := RemoveInvalid([]Observation{goodObservation()})
		require.Len(t, out, 1)
		assert.InDelta(t, 262.6, out[0].LongitudeDeg, 1e-9)
		assert.Equal(t, 12.5, out[0].SpeedMS)
	})

	t.Run("drops out-of-range positions", func(t *testing.T) {
		badLat := goodObservation()
		badLat.LatitudeDeg = 91

		badLon := goodObservation()
		badLon.LongitudeDeg = 361

		badElev := goodObservation()
		badElev.ElevationMASL = 12000

		out := RemoveInvalid([]Observation{badLat, badLon, badElev})
		assert.Empty(t, out)
	})

	t.Run("invalid sustained speed becomes NaN but row survives on gust", func(t *testing.T) {
		o := goodObservation()
		o.SpeedMS = -4

		out := RemoveInvalid([]Observation{o})
		require.Len(t, out, 1)
		assert.True(t, math.IsNaN(out[0].SpeedMS))
		assert.Equal(t, 18.0, out[0].GustSpeedMS)
	})

	t.Run("drops row when both speeds are invalid", func(t *testing.T) {
		o := goodObservation()
		o.SpeedMS = 250
		o.GustSpeedMS = -1

		out := RemoveInvalid([]Observation{o})
		assert.Empty(t, out)
	})

	t.Run("invalid directions replaced with due north", func(t *testing.T) {
		o := goodObservation()
		o.DirectionDeg = 400
		o.GustDirectionDeg = -10

		out := RemoveInvalid([]Observation{o})
		require.Len(t, out, 1)
		assert.Equal(t, DefaultWindDirectionDeg, out[0].DirectionDeg)
		assert.Equal(t, DefaultWindDirectionDeg, out[0].GustDirectionDeg)
	})

	t.Run("direction of exactly 360 is out of range", func(t *testing.T) {
		o := goodObservation()
		o.DirectionDeg = 360

		out := RemoveInvalid([]Observation{o})
		require.Len(t, out, 1)
		assert.Equal(t, DefaultWindDirectionDeg, out[0].DirectionDeg)
	})

	t.Run("input slice is not modified", func(t *testing.T) {
		in := []Observation{goodObservation()}
		RemoveInvalid(in)
		assert.Equal(t, -97.4, in[0].LongitudeDeg)
	})
}

func TestRemoveLowQuality(t *testing.T) {
	t.Run("clean flags pass through", func(t *testing.T) {
		o := goodObservation()
		o.SpeedFlag = "y"
		o.DirectionFlag = "y"

		out := RemoveLowQuality([]Observation{o})
		require.Len(t, out, 1)
		assert.Equal(t, 12.5, out[0].SpeedMS)
		assert.Empty(t, out[0].SpeedFlag)
	})

	t.Run("low-quality speed becomes NaN", func(t *testing.T) {
		o := goodObservation()
		o.SpeedFlag = "X"

		out := RemoveLowQuality([]Observation{o})
		require.Len(t, out, 1)
		assert.True(t, math.IsNaN(out[0].SpeedMS))
		assert.Equal(t, 18.0, out[0].GustSpeedMS)
	})

	t.Run("low-quality direction becomes due north", func(t *testing.T) {
		o := goodObservation()
		o.DirectionFlag = "Q"
		o.GustDirectionFlag = "B"

		out := RemoveLowQuality([]Observation{o})
		require.Len(t, out, 1)
		assert.Equal(t, DefaultWindDirectionDeg, out[0].DirectionDeg)
		assert.Equal(t, DefaultWindDirectionDeg, out[0].GustDirectionDeg)
	})

	t.Run("drops row when both speeds are flagged", func(t *testing.T) {
		o := goodObservation()
		o.SpeedFlag = "k"
		o.GustSpeedFlag = "B"

		out := RemoveLowQuality([]Observation{o})
		assert.Empty(t, out)
	})

	t.Run("drops row when flag kills the only remaining speed", func(t *testing.T) {
		o := goodObservation()
		o.GustSpeedMS = math.NaN()
		o.SpeedFlag = "X"

		out := RemoveLowQuality([]Observation{o})
		assert.Empty(t, out)
	})
}

func TestLowQualityFlag(t *testing.T) {
	for _, f := range []string{"X", "Q", "k", "B"} {
		assert.True(t, LowQualityFlag(f), f)
	}
	for _, f := range []string{"", "y", "x", "q", "K", "b", "OK"} {
		assert.False(t, LowQualityFlag(f), f)
	}
}

func TestQualityControl(t *testing.T) {
	bad := goodObservation()
	bad.LatitudeDeg = -95

	flagged := goodObservation()
	flagged.SpeedFlag = "X"
	flagged.GustSpeedFlag = "Q"

	good := goodObservation()

	out := QualityControl([]Observation{bad, flagged, good})
	require.Len(t, out, 1)
	assert.Equal(t, "KOUN", out[0].StationID)
	assert.InDelta(t, 262.6, out[0].LongitudeDeg, 1e-9)
}

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// spcDateOffset shifts a valid time back to the start of its convective
// day: an SPC date runs 1200 UTC to 1200 UTC.
const spcDateOffset = 12 * time.Hour

// looseFloat decodes a JSON number or a string-encoded number. Older
// tracker versions emit every numeric field as a string.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("numeric field %s: %w", data, err)
	}
	*f = looseFloat(v)
	return nil
}

// looseInt decodes like looseFloat but truncates to an integer, so
// "900" and 900.0 both land on 900.
type looseInt int64

func (i *looseInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*i = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("numeric field %s: %w", data, err)
	}
	*i = looseInt(v)
	return nil
}

// UnmarshalJSON decodes a tracking record with tolerant numerics.
func (r *RawTrackingRecord) UnmarshalJSON(data []byte) error {
	var wire struct {
		StormID      string     `json:"storm_id"`
		CentroidLat  looseFloat `json:"centroid_lat_deg"`
		CentroidLon  looseFloat `json:"centroid_lng_deg"`
		ValidTimeSec looseInt   `json:"valid_time_unix_sec"`
		TrackingKM2  looseFloat `json:"tracking_scale_km2"`
		Age          looseInt   `json:"age_sec"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = RawTrackingRecord{
		StormID:      wire.StormID,
		CentroidLat:  float64(wire.CentroidLat),
		CentroidLon:  float64(wire.CentroidLon),
		ValidTimeSec: int64(wire.ValidTimeSec),
		TrackingKM2:  float64(wire.TrackingKM2),
		Age:          int64(wire.Age),
	}
	return nil
}

// ParseRawEvent deserializes a RawEvent's value into a StormObject.
// It expects the flat JSON published by the tracker.
func ParseRawEvent(raw RawEvent) (StormObject, error) {
	var rec RawTrackingRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return StormObject{}, fmt.Errorf("parse raw event: %w", err)
	}

	if math.IsNaN(rec.CentroidLat) || math.IsNaN(rec.CentroidLon) {
		return StormObject{}, fmt.Errorf("storm %q has non-finite centroid", rec.StormID)
	}
	if rec.ValidTimeSec <= 0 {
		return StormObject{}, fmt.Errorf("storm %q has invalid valid time %d", rec.StormID, rec.ValidTimeSec)
	}

	validTime := time.Unix(rec.ValidTimeSec, 0).UTC()
	stormID := rec.StormID
	if stormID == "" {
		stormID = generateStormID(rec.CentroidLat, rec.CentroidLon, rec.ValidTimeSec)
	}

	return StormObject{
		StormID:          stormID,
		CentroidLatDeg:   rec.CentroidLat,
		CentroidLonDeg:   rec.CentroidLon,
		ValidTime:        validTime,
		SPCDate:          TimeToSPCDate(validTime),
		TrackingScaleKM2: rec.TrackingKM2,
		AgeSec:           rec.Age,
		RawPayload:       raw.Value,
		ProcessedAt:      clock.Now(),
	}, nil
}

// TimeToSPCDate returns the SPC (convective) date string, yyyymmdd, for a
// valid time. Times before 1200 UTC belong to the previous calendar day.
func TimeToSPCDate(t time.Time) string {
	return t.UTC().Add(-spcDateOffset).Format("20060102")
}

// generateStormID produces a deterministic fallback ID when the tracker
// omitted one. Reprocessing the same raw message yields the same ID, so
// replays stay idempotent downstream.
func generateStormID(lat, lon float64, validTimeSec int64) string {
	input := fmt.Sprintf("%.4f|%.4f|%d", lat, lon, validTimeSec)
	hash := sha256.Sum256([]byte(input))
	return "storm-" + hex.EncodeToString(hash[:8])
}

// NewImageManifest assembles the sink-topic message for one valid time.
func NewImageManifest(validTime time.Time, images []ImageRef) ImageManifest {
	return ImageManifest{
		ValidTime:   validTime,
		SPCDate:     TimeToSPCDate(validTime),
		Images:      images,
		ProcessedAt: clock.Now(),
	}
}

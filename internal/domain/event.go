package domain

import (
	"context"
	"time"
)

// RawTrackingRecord is the flat JSON structure published by the tracker.
// Numeric fields arrive as strings in older tracker versions, so every
// field is parsed tolerantly.
type RawTrackingRecord struct {
	StormID      string  `json:"storm_id"`
	CentroidLat  float64 `json:"centroid_lat_deg"`
	CentroidLon  float64 `json:"centroid_lng_deg"`
	ValidTimeSec int64   `json:"valid_time_unix_sec"`
	TrackingKM2  float64 `json:"tracking_scale_km2"`
	Age          int64   `json:"age_sec"`
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// StormObject is the domain-rich representation of one tracked storm at
// one valid time.
type StormObject struct {
	StormID          string    `json:"storm_id"`
	CentroidLatDeg   float64   `json:"centroid_lat_deg"`
	CentroidLonDeg   float64   `json:"centroid_lng_deg"`
	ValidTime        time.Time `json:"valid_time"`
	SPCDate          string    `json:"spc_date"`
	TrackingScaleKM2 float64   `json:"tracking_scale_km2"`
	AgeSec           int64     `json:"age_sec,omitempty"`

	RawPayload  []byte    `json:"-"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ImageRef locates one persisted storm image: the file it lives in and
// the storm object it belongs to.
type ImageRef struct {
	StormID      string `json:"storm_id"`
	FieldName    string `json:"field_name"`
	HeightMetres int    `json:"height_m_asl"`
	FilePath     string `json:"file_path"`
	NumImageRows int    `json:"num_image_rows"`
	NumImageCols int    `json:"num_image_cols"`
}

// ImageManifest is the message published to the sink topic after a batch
// of storm objects has been extracted and persisted: one entry per
// (storm object, radar field, height) image written.
type ImageManifest struct {
	ValidTime   time.Time  `json:"valid_time"`
	SPCDate     string     `json:"spc_date"`
	Images      []ImageRef `json:"images"`
	ProcessedAt time.Time  `json:"processed_at"`
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

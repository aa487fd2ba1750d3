// Package domain models the storm objects tracked by the upstream
// storm-tracking pipeline and the storm-image manifests this service
// derives from them.
//
// # Data Source
//
// Storm objects originate from an echo-tracking pipeline (segmotion-style)
// run over MYRORSS radar composites. The tracker publishes one JSON message
// per storm object per valid time to the Kafka source topic: a stable storm
// ID, the centroid latitude/longitude of the tracked echo, the valid time,
// and the tracking scale (minimum echo area in km2).
//
// # Conventions
//
//	Storm IDs:   "<primary>_<secondary>" strings assigned by the tracker,
//	             stable across a storm's lifetime so that images extracted
//	             at successive valid times can be linked.
//	Valid time:  Unix seconds, UTC.
//	SPC date:    convective outlook date. A convective day runs 1200 UTC
//	             to 1200 UTC, so the SPC date of a valid time is the
//	             calendar date of (valid time - 12 h), formatted yyyymmdd.
//	Longitude:   tracker messages may use either deg E in [-180, 180] or
//	             positive-in-west [0, 360); both are accepted and
//	             normalized at the grid boundary, not here.
//
// # Target classes
//
// Training labels are small integers. Non-negative values are hazard
// classes (0 = nulls, 1..n = increasingly severe); -2 marks a dead storm,
// one that dissipated before the end of the labeling lead-time window.
// Dead storms exist only for wind-type targets; tornado targets are
// strictly binary.
package domain

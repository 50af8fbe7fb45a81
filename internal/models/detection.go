package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
	"time"

	"github.com/desertthunder/dronewatch/internal/shared"
)

// Standard detection keys used by the table's column selectors.
const (
	KeyID             = "id"
	KeyObjectDetected = "object_detected"
	KeyConfidence     = "confidence"
	KeyLatitude       = "latitude"
	KeyLongitude      = "longitude"
	KeyCreatedAt      = "created_at"
	KeyDetectionData  = "detection_data"
)

// timestampLayouts are tried in order when reading created_at.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
}

// DetectionRecord is a normalized detection: one flat map of top-level fields.
//
// Numbers decoded from the backend are [json.Number] so identifiers and coordinates keep their exact text.
type DetectionRecord map[string]any

// Get returns the raw value stored under key.
func (r DetectionRecord) Get(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

// Has reports whether key is present with a non-null value.
func (r DetectionRecord) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Text renders the value under key as display text.
// Missing and null values report false.
func (r DetectionRecord) Text(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}

	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val), true
		}
		return string(data), true
	}
}

// Float reads a numeric value. Numeric strings are accepted.
func (r DetectionRecord) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}

	var (
		f   float64
		err error
	)
	switch val := v.(type) {
	case json.Number:
		f, err = val.Float64()
	case float64:
		f = val
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case string:
		f, err = strconv.ParseFloat(val, 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Time parses a timestamp value in any of the layouts the backend emits.
func (r DetectionRecord) Time(key string) (time.Time, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return time.Time{}, false
	}

	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Clone returns a shallow copy.
func (r DetectionRecord) Clone() DetectionRecord {
	return maps.Clone(r)
}

// Detection is the body posted to the detections backend's log endpoint.
type Detection struct {
	ObjectDetected string  `json:"object_detected"`
	Confidence     float64 `json:"confidence"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
}

// Validate checks ranges before a detection is sent.
func (d Detection) Validate() error {
	switch {
	case d.ObjectDetected == "":
		return fmt.Errorf("%w: object_detected is required", shared.ErrValidation)
	case d.Confidence < 0 || d.Confidence > 1 || math.IsNaN(d.Confidence):
		return fmt.Errorf("%w: confidence %v is outside [0,1]", shared.ErrValidation, d.Confidence)
	case d.Latitude < -90 || d.Latitude > 90:
		return fmt.Errorf("%w: latitude %v is outside [-90,90]", shared.ErrValidation, d.Latitude)
	case d.Longitude < -180 || d.Longitude > 180:
		return fmt.Errorf("%w: longitude %v is outside [-180,180]", shared.ErrValidation, d.Longitude)
	}
	return nil
}

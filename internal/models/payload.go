package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/desertthunder/dronewatch/internal/shared"
)

// PayloadKind tags the shape of an envelope's detection_data field.
type PayloadKind int

const (
	PayloadAbsent      PayloadKind = iota // field missing or null
	PayloadRaw                            // JSON text that still needs parsing
	PayloadParsed                         // already an object
	PayloadUnsupported                    // any other JSON value
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadAbsent:
		return "absent"
	case PayloadRaw:
		return "raw"
	case PayloadParsed:
		return "parsed"
	default:
		return "unsupported"
	}
}

// DetectionPayload is the tagged union over detection_data shapes.
type DetectionPayload struct {
	Kind   PayloadKind
	Raw    string
	Fields map[string]any
}

// PayloadOf classifies a decoded detection_data value.
func PayloadOf(v any) DetectionPayload {
	switch val := v.(type) {
	case nil:
		return DetectionPayload{Kind: PayloadAbsent}
	case string:
		return DetectionPayload{Kind: PayloadRaw, Raw: val}
	case map[string]any:
		return DetectionPayload{Kind: PayloadParsed, Fields: val}
	default:
		return DetectionPayload{Kind: PayloadUnsupported}
	}
}

// Resolve returns the inner fields to merge over the envelope.
//
// Raw text that is not valid JSON is a parse failure. Raw text holding a JSON value other than an object
// contributes nothing, as do the absent and unsupported kinds.
func (p DetectionPayload) Resolve() (map[string]any, error) {
	switch p.Kind {
	case PayloadParsed:
		return p.Fields, nil
	case PayloadRaw:
		v, err := decodeValue([]byte(p.Raw))
		if err != nil {
			return nil, fmt.Errorf("%w: detection_data: %v", shared.ErrParseFailure, err)
		}
		if obj, ok := v.(map[string]any); ok {
			return obj, nil
		}
		return nil, nil
	default:
		return nil, nil
	}
}

// Normalize flattens one envelope. Inner payload fields win on key collision and
// the detection_data key itself is not carried over.
func Normalize(envelope map[string]any) (DetectionRecord, error) {
	inner, err := PayloadOf(envelope[KeyDetectionData]).Resolve()
	if err != nil {
		return nil, err
	}

	record := make(DetectionRecord, len(envelope)+len(inner))
	for k, v := range envelope {
		if k == KeyDetectionData {
			continue
		}
		record[k] = v
	}
	for k, v := range inner {
		record[k] = v
	}
	return record, nil
}

// NormalizeAll flattens every envelope or fails on the first malformed one.
func NormalizeAll(envelopes []map[string]any) ([]DetectionRecord, error) {
	records := make([]DetectionRecord, 0, len(envelopes))
	for i, env := range envelopes {
		record, err := Normalize(env)
		if err != nil {
			return nil, fmt.Errorf("envelope %d: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// DecodeEnvelopes parses a detections response body, which must be a JSON array of objects.
func DecodeEnvelopes(body []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var envelopes []map[string]any
	if err := dec.Decode(&envelopes); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrParseFailure, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after detections array", shared.ErrParseFailure)
	}
	return envelopes, nil
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data")
	}
	return v, nil
}

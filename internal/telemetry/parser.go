package telemetry

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
)

// Parser validates and decodes telemetry records.
//
// Every record must carry the gateway's shared secret in its "k" field and
// a device identifier in "id". A Parser is immutable; changing the shared
// secret at runtime means building a new Parser for the gateway loop.
type Parser struct {
	secret string
}

// NewParser creates a Parser that accepts records carrying the given
// shared secret.
func NewParser(secret string) *Parser {
	return &Parser{secret: secret}
}

// wireRecord is the JSON shape sensors transmit. Short keys keep the
// payload inside a single radio frame.
type wireRecord struct {
	Key         string          `json:"k"`
	ID          string          `json:"id"`
	Temperature *float64        `json:"t"`
	Humidity    *float64        `json:"hu"`
	Battery     *float64        `json:"b"`
	Light       *float64        `json:"l"`
	Motion      json.RawMessage `json:"m"`
	Contact     json.RawMessage `json:"c"`
}

// Parse validates a decoded frame payload and returns the reading.
//
// Validation order matters and is observable through the error taxonomy:
//  1. JSON syntax/shape: ErrMalformedRecord
//  2. Shared secret: ErrSecretMismatch (constant-time comparison)
//  3. Device identifier present: ErrMissingIdentifier
//
// Parameters:
//   - payload: Plaintext record bytes (after frame decoding)
//
// Returns:
//   - *Reading: Parsed reading with only the reported capabilities set
//   - error: One of the sentinel errors above, wrapped with detail
func (p *Parser) Parse(payload []byte) (*Reading, error) {
	var rec wireRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	if !secretsEqual(rec.Key, p.secret) {
		return nil, ErrSecretMismatch
	}

	if rec.ID == "" {
		return nil, ErrMissingIdentifier
	}

	reading := &Reading{
		DeviceID:    rec.ID,
		Temperature: rec.Temperature,
		Humidity:    rec.Humidity,
		Battery:     rec.Battery,
		Light:       rec.Light,
	}

	motion, err := coerceBool(rec.Motion)
	if err != nil {
		return nil, fmt.Errorf("%w: field m: %w", ErrMalformedRecord, err)
	}
	reading.Motion = motion

	contact, err := coerceBool(rec.Contact)
	if err != nil {
		return nil, fmt.Errorf("%w: field c: %w", ErrMalformedRecord, err)
	}
	reading.Contact = contact

	return reading, nil
}

// secretsEqual compares secrets in constant time.
// Length differences short-circuit, which leaks length but not content.
func secretsEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// truthyStrings are the string spellings sensors use for a set boolean.
// Anything else parses as false.
var truthyStrings = map[string]bool{
	"on":   true,
	"1":    true,
	"true": true,
}

// coerceBool decodes a boolean field that sensors send either as a JSON
// bool or as a string. Absent fields return nil.
func coerceBool(raw json.RawMessage) (*bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return &b, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v := truthyStrings[strings.ToLower(s)]
		return &v, nil
	}

	return nil, fmt.Errorf("value %s is neither bool nor string", raw)
}

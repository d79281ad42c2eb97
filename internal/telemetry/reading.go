package telemetry

// Reading is one parsed telemetry record from a sensor.
//
// Capability fields are pointers: nil means the sensor did not report that
// capability in this record. The registry uses presence, not value, to
// decide which capabilities a device has.
type Reading struct {
	// DeviceID is the sensor's stable identifier from the "id" field.
	DeviceID string

	// Temperature in degrees Celsius.
	Temperature *float64

	// Humidity in percent relative humidity.
	Humidity *float64

	// Battery level in percent.
	Battery *float64

	// Light level in lux.
	Light *float64

	// Motion sensor state.
	Motion *bool

	// Contact sensor state (true = open/triggered).
	Contact *bool
}

// HasCapabilities reports whether the reading carries at least one
// capability field. A record with only an identifier is still accepted;
// this helper lets callers log it.
func (r *Reading) HasCapabilities() bool {
	return r.Temperature != nil || r.Humidity != nil || r.Battery != nil ||
		r.Light != nil || r.Motion != nil || r.Contact != nil
}

// Fields returns the reported capability values keyed by capability name,
// with booleans mapped to 0/1. Used by the history sink.
func (r *Reading) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if r.Temperature != nil {
		fields["temperature"] = *r.Temperature
	}
	if r.Humidity != nil {
		fields["humidity"] = *r.Humidity
	}
	if r.Battery != nil {
		fields["battery"] = *r.Battery
	}
	if r.Light != nil {
		fields["light"] = *r.Light
	}
	if r.Motion != nil {
		fields["motion"] = boolField(*r.Motion)
	}
	if r.Contact != nil {
		fields["contact"] = boolField(*r.Contact)
	}
	return fields
}

func boolField(b bool) int {
	if b {
		return 1
	}
	return 0
}

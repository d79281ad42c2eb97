package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{
		DiscoveryPrefix: "homeassistant",
		GatewayID:       "gw01",
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "discovery config",
			got:  topics.Discovery(ComponentSensor, "a1b2c3", "temperature"),
			want: "homeassistant/sensor/gw01_a1b2c3/temperature/config",
		},
		{
			name: "binary sensor discovery",
			got:  topics.Discovery(ComponentBinarySensor, "a1b2c3", "motion"),
			want: "homeassistant/binary_sensor/gw01_a1b2c3/motion/config",
		},
		{
			name: "state topic",
			got:  topics.State(ComponentSensor, "a1b2c3", "humidity"),
			want: "homeassistant/sensor/gw01_a1b2c3/humidity/state",
		},
		{
			name: "rssi state",
			got:  topics.RSSIState("a1b2c3"),
			want: "homeassistant/sensor/gw01_a1b2c3/rssi/state",
		},
		{
			name: "rssi discovery",
			got:  topics.RSSIDiscovery("a1b2c3"),
			want: "homeassistant/sensor/gw01_a1b2c3/rssi/config",
		},
		{
			name: "availability",
			got:  topics.Availability(),
			want: "lorabridge/gw01/status",
		},
		{
			name: "home assistant birth",
			got:  topics.Birth(),
			want: "homeassistant/status",
		},
		{
			name: "device wildcard",
			got:  topics.DeviceWildcard(ComponentSensor, "a1b2c3"),
			want: "homeassistant/sensor/gw01_a1b2c3/+/config",
		},
		{
			name: "unique id",
			got:  topics.UniqueID("a1b2c3", "battery"),
			want: "gw01_a1b2c3_battery",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Publish("", []byte("x"), 1, false); err != ErrInvalidTopic {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("some/topic", []byte("x"), 3, false); err != ErrInvalidQoS {
		t.Errorf("invalid qos error = %v, want ErrInvalidQoS", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); err != ErrInvalidTopic {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("some/topic", 3, handler); err != ErrInvalidQoS {
		t.Errorf("invalid qos error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("some/topic", 1, nil); err == nil {
		t.Error("nil handler accepted")
	}
	if err := c.Subscribe("some/topic", 1, handler); err != ErrNotConnected {
		t.Errorf("disconnected subscribe error = %v, want ErrNotConnected", err)
	}
	if len(c.subscriptions) != 0 {
		t.Errorf("failed subscribes left %d tracked subscriptions", len(c.subscriptions))
	}
}

package sensors

import (
	"time"

	"github.com/Uranury/snmphub/config"
)

// Reading is a point-in-time snapshot of one sensor.
type Reading struct {
	// EntityID is assigned by the hub and unique among its sensors.
	EntityID  string      `json:"entity_id"`
	Name      string      `json:"name"`
	Unit      string      `json:"unit,omitempty"`
	State     interface{} `json:"state"`
	Timestamp time.Time   `json:"timestamp"`
}

// Sensor interface that all sensors must implement
type Sensor interface {
	Name() string
	// Unit is empty when the sensor has no unit of measurement.
	Unit() string
	// State is nil until the sensor has fetched a value.
	State() interface{}
	Update()
}

// Snapshot captures the current state of s.
func Snapshot(s Sensor, at time.Time) Reading {
	return Reading{Name: s.Name(), Unit: s.Unit(), State: s.State(), Timestamp: at}
}

// AddDevicesFunc registers the sensors a platform created.
type AddDevicesFunc func(devices ...Sensor)

// Platform turns one configuration entry into sensors.
type Platform interface {
	Setup(entry config.Entry, add AddDevicesFunc) error
}

// throttle suppresses calls made less than interval after the last executed one.
type throttle struct {
	interval time.Duration
	now      func() time.Time
	last     time.Time
}

// ready reports whether a call may run now and, if so, records it as executed.
func (t *throttle) ready() bool {
	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// Package recorder stores sensor state changes in InfluxDB.
package recorder

import (
	"fmt"
	"sync"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/Uranury/snmphub/sensors"
)

// PointWriter is the part of the influx write API the recorder needs.
type PointWriter interface {
	WritePoint(point *write.Point)
}

// Recorder writes a point each time a sensor's state changes. Numeric states
// go to the "value" field and all others to the "state" field, so a sensor
// switching between the two never writes one field with two types.
type Recorder struct {
	writer PointWriter

	mu   sync.Mutex
	last map[string]interface{}
}

func New(writer PointWriter) *Recorder {
	return &Recorder{writer: writer, last: make(map[string]interface{})}
}

// Publish records the readings whose state differs from the last recorded one.
// Absent states are not recorded.
func (r *Recorder) Publish(readings []sensors.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reading := range readings {
		if reading.State == nil {
			continue
		}
		value := fieldValue(reading.State)
		if prev, ok := r.last[reading.EntityID]; ok && prev == value {
			continue
		}
		r.last[reading.EntityID] = value
		r.writer.WritePoint(point(reading, value))
	}
}

func point(reading sensors.Reading, value interface{}) *write.Point {
	key := "state"
	if _, numeric := value.(float64); numeric {
		key = "value"
	}
	p := influxdb2.NewPointWithMeasurement("state").
		AddTag("entity", reading.EntityID).
		AddField(key, value).
		SetTime(reading.Timestamp)
	if reading.Name != "" {
		p.AddTag("name", reading.Name)
	}
	if reading.Unit != "" {
		p.AddTag("unit", reading.Unit)
	}
	return p
}

// fieldValue maps a state to an influx field: numbers become floats, anything
// else its string form.
func fieldValue(state interface{}) interface{} {
	switch v := state.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

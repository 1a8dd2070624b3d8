package sensors

import (
	"errors"
	"fmt"
	"time"

	"github.com/Uranury/snmphub/config"
	"github.com/Uranury/snmphub/logging"
)

const (
	DefaultSNMPName      = "SNMP"
	DefaultSNMPPort      = 161
	DefaultSNMPCommunity = "public"
)

// MinTimeBetweenUpdates is the shortest gap between two executed SNMP queries.
// Refreshes requested sooner keep the cached value.
const MinTimeBetweenUpdates = 10 * time.Second

// ErrProbeFailed is returned by SNMPPlatform.Setup when the device could not be reached.
var ErrProbeFailed = errors.New("SNMP probe failed")

// SNMPConfig is the configuration of the snmp platform.
type SNMPConfig struct {
	Name      string `yaml:"name"`
	Host      string `yaml:"host" validate:"required"`
	Port      int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Community string `yaml:"community"`
	BaseOID   string `yaml:"baseoid" validate:"required"`
	Unit      string `yaml:"unit_of_measurement"`
}

// WithDefaults returns c with the optional fields filled in.
func (c SNMPConfig) WithDefaults() SNMPConfig {
	if c.Name == "" {
		c.Name = DefaultSNMPName
	}
	if c.Port == 0 {
		c.Port = DefaultSNMPPort
	}
	if c.Community == "" {
		c.Community = DefaultSNMPCommunity
	}
	return c
}

func (c SNMPConfig) Target() SNMPTarget {
	return SNMPTarget{Host: c.Host, Port: c.Port, Community: c.Community}
}

// SNMPData holds the latest value fetched from the remote host.
type SNMPData struct {
	client   SNMPClient
	target   SNMPTarget
	baseOID  string
	logger   logging.Logger
	throttle throttle
	value    interface{}
}

// NewSNMPData creates a fetcher for cfg. A nil now uses time.Now.
func NewSNMPData(client SNMPClient, cfg SNMPConfig, logger logging.Logger, now func() time.Time) *SNMPData {
	if now == nil {
		now = time.Now
	}
	return &SNMPData{
		client:   client,
		target:   cfg.Target(),
		baseOID:  cfg.BaseOID,
		logger:   logger,
		throttle: throttle{interval: MinTimeBetweenUpdates, now: now},
	}
}

// Update gets the latest value from the remote host unless the last query ran
// less than MinTimeBetweenUpdates ago. Failures are logged and leave the
// previous value in place.
func (d *SNMPData) Update() {
	if !d.throttle.ready() {
		return
	}

	res, err := d.client.Get(d.target, d.baseOID)
	if err != nil {
		d.logger.Error("SNMP error: %v", err)
		return
	}
	if res.ErrorStatus != 0 {
		d.logger.Error("SNMP error: %v at %s", res.ErrorStatus, errorContext(res))
		return
	}
	for _, row := range res.Rows {
		if len(row) > 0 {
			d.value = row[len(row)-1]
		}
	}
}

// Value returns the cached value, nil if nothing was fetched yet.
func (d *SNMPData) Value() interface{} {
	return d.value
}

// errorContext names the column of the final row that the error index points
// at, or "?" when the index is unset or out of range.
func errorContext(res *SNMPResult) string {
	if res.ErrorIndex <= 0 || len(res.Rows) == 0 {
		return "?"
	}
	last := res.Rows[len(res.Rows)-1]
	i := res.ErrorIndex - 1
	if i >= len(last) || last[i] == nil {
		return "?"
	}
	return fmt.Sprint(last[i])
}

// SNMPSensor is a sensor backed by a single SNMP object.
type SNMPSensor struct {
	data  *SNMPData
	name  string
	unit  string
	state interface{}
}

// NewSNMPSensor creates the sensor and runs a first update to seed its state.
func NewSNMPSensor(data *SNMPData, name, unit string) *SNMPSensor {
	s := &SNMPSensor{data: data, name: name, unit: unit}
	s.Update()
	return s
}

func (s *SNMPSensor) Name() string { return s.name }

func (s *SNMPSensor) Unit() string { return s.unit }

func (s *SNMPSensor) State() interface{} { return s.state }

func (s *SNMPSensor) Update() {
	s.data.Update()
	s.state = s.data.Value()
}

// SNMPPlatform sets up snmp sensors.
type SNMPPlatform struct {
	Client SNMPClient
	Logger logging.Logger
	// Now is the fetchers' clock; nil means time.Now.
	Now func() time.Time
}

// Setup validates the entry, probes the device once and registers one sensor.
// Only the probe's error indication is checked; a device answering with an
// error status still gets a sensor.
func (p *SNMPPlatform) Setup(entry config.Entry, add AddDevicesFunc) error {
	var cfg SNMPConfig
	if err := entry.Decode(&cfg); err != nil {
		return err
	}
	cfg = cfg.WithDefaults()

	if _, err := p.Client.Get(cfg.Target(), cfg.BaseOID); err != nil {
		p.Logger.Error("Please check the details in the configuration file")
		return fmt.Errorf("%w: %s:%d: %v", ErrProbeFailed, cfg.Host, cfg.Port, err)
	}

	data := NewSNMPData(p.Client, cfg, p.Logger, p.Now)
	add(NewSNMPSensor(data, cfg.Name, cfg.Unit))
	return nil
}

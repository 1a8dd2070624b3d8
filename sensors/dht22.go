package sensors

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/MichaelS11/go-dht"

	"github.com/Uranury/snmphub/config"
	"github.com/Uranury/snmphub/logging"
)

// MinTimeBetweenDHTReads is the shortest gap between two reads of the same DHT22.
const MinTimeBetweenDHTReads = 30 * time.Second

// DHTConfig is the configuration of the dht platform.
type DHTConfig struct {
	Name    string `yaml:"name"`
	Pin     string `yaml:"pin" validate:"required"`
	Retries int    `yaml:"retries" validate:"omitempty,min=1"`
}

// DHTReader reads humidity and temperature in Celsius from a DHT sensor.
type DHTReader interface {
	ReadRetry(maxRetries int) (humidity float64, temperature float64, err error)
}

var hostInit = sync.OnceValue(dht.HostInit)

// OpenDHT22 opens the DHT22 on the given GPIO pin.
func OpenDHT22(pin string) (DHTReader, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	d, err := dht.NewDHT(pin, dht.Celsius, "")
	if err != nil {
		return nil, err
	}
	return d, nil
}

// DHTData caches the last successful reading of one DHT22.
type DHTData struct {
	reader      DHTReader
	retries     int
	logger      logging.Logger
	throttle    throttle
	humidity    interface{}
	temperature interface{}
}

func (d *DHTData) Update() {
	if !d.throttle.ready() {
		return
	}
	humidity, temperature, err := d.reader.ReadRetry(d.retries)
	if err != nil {
		d.logger.Error("DHT22 read error: %v", err)
		return
	}
	d.humidity = round1(humidity)
	d.temperature = round1(temperature)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// DHTSensor exposes either the temperature or the humidity of a DHTData.
type DHTSensor struct {
	data        *DHTData
	name        string
	temperature bool
	state       interface{}
}

func (s *DHTSensor) Name() string { return s.name }

func (s *DHTSensor) Unit() string {
	if s.temperature {
		return "°C"
	}
	return "%"
}

func (s *DHTSensor) State() interface{} { return s.state }

func (s *DHTSensor) Update() {
	s.data.Update()
	if s.temperature {
		s.state = s.data.temperature
	} else {
		s.state = s.data.humidity
	}
}

// DHTPlatform sets up a temperature and a humidity sensor per DHT22.
type DHTPlatform struct {
	Logger logging.Logger
	// Open defaults to OpenDHT22.
	Open func(pin string) (DHTReader, error)
	Now  func() time.Time
}

func (p *DHTPlatform) Setup(entry config.Entry, add AddDevicesFunc) error {
	var cfg DHTConfig
	if err := entry.Decode(&cfg); err != nil {
		return err
	}
	if cfg.Name == "" {
		cfg.Name = "DHT22"
	}
	if cfg.Retries == 0 {
		cfg.Retries = 11
	}

	open := p.Open
	if open == nil {
		open = OpenDHT22
	}
	reader, err := open(cfg.Pin)
	if err != nil {
		return fmt.Errorf("open DHT22 on %s: %w", cfg.Pin, err)
	}

	now := p.Now
	if now == nil {
		now = time.Now
	}
	data := &DHTData{
		reader:   reader,
		retries:  cfg.Retries,
		logger:   p.Logger,
		throttle: throttle{interval: MinTimeBetweenDHTReads, now: now},
	}
	temperature := &DHTSensor{data: data, name: cfg.Name + " Temperature", temperature: true}
	humidity := &DHTSensor{data: data, name: cfg.Name + " Humidity"}
	temperature.Update()
	humidity.Update()
	add(temperature, humidity)
	return nil
}

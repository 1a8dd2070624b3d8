// Package hub is the host side of the sensors: it sets up platforms from the
// configuration, polls the registered sensors and hands their readings to
// listeners.
package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"time"

	"github.com/Uranury/snmphub/config"
	"github.com/Uranury/snmphub/logging"
	"github.com/Uranury/snmphub/sensors"
)

// ErrUnknownPlatform is returned for entries naming a platform nobody registered.
var ErrUnknownPlatform = errors.New("unknown platform")

// Listener receives every snapshot taken by Poll.
type Listener interface {
	Publish(readings []sensors.Reading)
}

// Hub owns the registered sensors. Sensors are only touched from the goroutine
// calling Setup, Poll or Run; readings can be read from anywhere.
type Hub struct {
	platforms map[string]sensors.Platform
	listeners []Listener
	logger    logging.Logger
	now       func() time.Time

	entities []entity
	ids      map[string]bool

	mu       sync.RWMutex
	readings []sensors.Reading
}

func New(logger logging.Logger) *Hub {
	return &Hub{
		platforms: make(map[string]sensors.Platform),
		ids:       make(map[string]bool),
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterPlatform makes a platform available to Setup under name.
func (h *Hub) RegisterPlatform(name string, p sensors.Platform) {
	h.platforms[name] = p
}

// AddListener subscribes l to the snapshots taken by Poll.
func (h *Hub) AddListener(l Listener) {
	h.listeners = append(h.listeners, l)
}

type entity struct {
	id     string
	sensor sensors.Sensor
}

// AddDevices registers sensors created by a platform. Each sensor gets an
// entity id derived from its name; sensors sharing a name get a numeric
// suffix in registration order (sensor.snmp, sensor.snmp_2, ...).
func (h *Hub) AddDevices(devices ...sensors.Sensor) {
	for _, s := range devices {
		id := h.entityID(s.Name())
		h.entities = append(h.entities, entity{id: id, sensor: s})
		h.logger.Info("Added sensor %s as %s", s.Name(), id)
	}
}

func (h *Hub) entityID(name string) string {
	base := "sensor." + slugify(name)
	id := base
	for n := 2; h.ids[id]; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	h.ids[id] = true
	return id
}

// slugify lowercases name and collapses every run of other characters into a
// single underscore.
func slugify(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}

// Setup runs the platform of every entry. A failing entry is logged and
// skipped; the number of failed entries is returned.
func (h *Hub) Setup(entries []config.Entry) int {
	failed := 0
	for _, entry := range entries {
		if err := h.setupEntry(entry); err != nil {
			h.logger.Error("Error setting up platform %s: %v", entry.Platform, err)
			failed++
		}
	}
	h.snapshot()
	return failed
}

func (h *Hub) setupEntry(entry config.Entry) error {
	p, ok := h.platforms[entry.Platform]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlatform, entry.Platform)
	}
	return p.Setup(entry, h.AddDevices)
}

// Sensors returns the number of registered sensors.
func (h *Hub) Sensors() int {
	return len(h.entities)
}

// Poll updates every sensor in turn and publishes the resulting readings.
func (h *Hub) Poll() {
	for _, e := range h.entities {
		e.sensor.Update()
	}
	readings := h.snapshot()
	for _, l := range h.listeners {
		l.Publish(readings)
	}
}

func (h *Hub) snapshot() []sensors.Reading {
	at := h.now()
	readings := make([]sensors.Reading, 0, len(h.entities))
	for _, e := range h.entities {
		r := sensors.Snapshot(e.sensor, at)
		r.EntityID = e.id
		readings = append(readings, r)
	}

	h.mu.Lock()
	h.readings = readings
	h.mu.Unlock()
	return readings
}

// Run polls every interval until ctx is done.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Poll()
		}
	}
}

// Readings returns the latest snapshot.
func (h *Hub) Readings() []sensors.Reading {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]sensors.Reading, len(h.readings))
	copy(out, h.readings)
	return out
}

// Reading returns the latest reading of the sensor with the given entity id.
func (h *Hub) Reading(entityID string) (sensors.Reading, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.readings {
		if r.EntityID == entityID {
			return r, true
		}
	}
	return sensors.Reading{}, false
}

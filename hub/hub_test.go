package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/Uranury/snmphub/config"
	"github.com/Uranury/snmphub/recorder"
	"github.com/Uranury/snmphub/sensors"
)

type mockLogger struct{}

func (m *mockLogger) Info(_ string, _ ...interface{})  {}
func (m *mockLogger) Error(_ string, _ ...interface{}) {}

type fakeSNMPClient struct {
	calls int
	value interface{}
	err   error
}

func (c *fakeSNMPClient) Get(_ sensors.SNMPTarget, oid string) (*sensors.SNMPResult, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &sensors.SNMPResult{Rows: []sensors.Row{{oid, c.value}}}, nil
}

type counterSensor struct {
	name    string
	updates int
}

func (s *counterSensor) Name() string       { return s.name }
func (s *counterSensor) Unit() string       { return "" }
func (s *counterSensor) State() interface{} { return s.updates }
func (s *counterSensor) Update()            { s.updates++ }

type recordingListener struct {
	mu        sync.Mutex
	snapshots [][]sensors.Reading
}

func (l *recordingListener) Publish(readings []sensors.Reading) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots = append(l.snapshots, readings)
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.snapshots)
}

func mustEntry(t *testing.T, platform string, fields map[string]interface{}) config.Entry {
	t.Helper()
	e, err := config.NewEntry(platform, fields)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestHub_SetupSNMP(t *testing.T) {
	client := &fakeSNMPClient{value: uint32(360000)}
	h := New(&mockLogger{})
	h.RegisterPlatform("snmp", &sensors.SNMPPlatform{Client: client, Logger: &mockLogger{}})

	failed := h.Setup([]config.Entry{mustEntry(t, "snmp", map[string]interface{}{
		"host":    "10.0.0.5",
		"baseoid": "1.3.6.1.2.1.1.3.0",
	})})

	if failed != 0 {
		t.Fatalf("expected no failures, got %d", failed)
	}
	if h.Sensors() != 1 {
		t.Fatalf("expected 1 sensor, got %d", h.Sensors())
	}
	r, ok := h.Reading("sensor.snmp")
	if !ok {
		t.Fatal("expected a reading for sensor.snmp")
	}
	if r.Name != "SNMP" {
		t.Errorf("expected name SNMP, got %q", r.Name)
	}
	if r.State != uint32(360000) {
		t.Errorf("expected probe value, got %v", r.State)
	}
}

func TestHub_SetupFailures(t *testing.T) {
	client := &fakeSNMPClient{err: errors.New("timeout")}
	h := New(&mockLogger{})
	h.RegisterPlatform("snmp", &sensors.SNMPPlatform{Client: client, Logger: &mockLogger{}})

	failed := h.Setup([]config.Entry{
		mustEntry(t, "snmp", map[string]interface{}{"host": "10.0.0.5", "baseoid": "1.3.6.1.2.1.1.3.0"}),
		mustEntry(t, "snmp", map[string]interface{}{"host": "10.0.0.5"}),
		mustEntry(t, "zigbee", nil),
	})

	if failed != 3 {
		t.Errorf("expected 3 failures, got %d", failed)
	}
	if h.Sensors() != 0 {
		t.Errorf("expected no sensors, got %d", h.Sensors())
	}
	if client.calls != 1 {
		t.Errorf("expected only the complete entry to be probed, got %d calls", client.calls)
	}
	if err := h.setupEntry(mustEntry(t, "zigbee", nil)); !errors.Is(err, ErrUnknownPlatform) {
		t.Errorf("expected ErrUnknownPlatform, got %v", err)
	}
}

type countingWriter struct {
	points []*write.Point
}

func (w *countingWriter) WritePoint(p *write.Point) {
	w.points = append(w.points, p)
}

func TestHub_DuplicateNames(t *testing.T) {
	h := New(&mockLogger{})
	h.RegisterPlatform("router", &sensors.SNMPPlatform{Client: &fakeSNMPClient{value: 1}, Logger: &mockLogger{}})
	h.RegisterPlatform("switch", &sensors.SNMPPlatform{Client: &fakeSNMPClient{value: 2}, Logger: &mockLogger{}})
	w := &countingWriter{}
	h.AddListener(recorder.New(w))

	fields := map[string]interface{}{"host": "10.0.0.5", "baseoid": "1.3.6.1.2.1.1.3.0"}
	if failed := h.Setup([]config.Entry{
		mustEntry(t, "router", fields),
		mustEntry(t, "switch", fields),
	}); failed != 0 {
		t.Fatalf("expected no failures, got %d", failed)
	}

	for i := 0; i < 5; i++ {
		h.Poll()
	}

	readings := h.Readings()
	if len(readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(readings))
	}
	if readings[0].EntityID != "sensor.snmp" || readings[1].EntityID != "sensor.snmp_2" {
		t.Errorf("unexpected entity ids %q, %q", readings[0].EntityID, readings[1].EntityID)
	}
	if r, ok := h.Reading("sensor.snmp_2"); !ok || r.State != 2 || r.Name != "SNMP" {
		t.Errorf("unexpected second reading %+v", r)
	}
	if len(w.points) != 2 {
		t.Errorf("expected one point per sensor for unchanged states, got %d", len(w.points))
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"SNMP":              "snmp",
		"Router uptime":     "router_uptime",
		"  Attic -- Temp! ": "attic_temp",
		"Température":       "température",
		"???":               "unnamed",
	}
	for in, want := range tests {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestHub_Poll(t *testing.T) {
	h := New(&mockLogger{})
	l := &recordingListener{}
	h.AddListener(l)
	a, b := &counterSensor{name: "a"}, &counterSensor{name: "b"}
	h.AddDevices(a, b)

	h.Poll()
	h.Poll()

	if a.updates != 2 || b.updates != 2 {
		t.Errorf("expected every sensor updated twice, got %d and %d", a.updates, b.updates)
	}
	if l.count() != 2 {
		t.Fatalf("expected 2 snapshots, got %d", l.count())
	}
	readings := h.Readings()
	if len(readings) != 2 || readings[0].State != 2 || readings[1].Name != "b" {
		t.Errorf("unexpected readings %+v", readings)
	}
	if _, ok := h.Reading("c"); ok {
		t.Error("expected no reading for unknown sensor")
	}
}

func TestHub_Run(t *testing.T) {
	h := New(&mockLogger{})
	l := &recordingListener{}
	h.AddListener(l)
	h.AddDevices(&counterSensor{name: "a"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		h.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context was cancelled")
	}
	if n := l.count(); n < 3 {
		t.Errorf("expected at least 3 polls, got %d", n)
	}
}

func ExampleHub_Setup() {
	h := New(&mockLogger{})
	h.RegisterPlatform("snmp", &sensors.SNMPPlatform{
		Client: &fakeSNMPClient{value: "Linux router 6.1"},
		Logger: &mockLogger{},
	})
	entry, _ := config.NewEntry("snmp", map[string]interface{}{
		"name":    "sysDescr",
		"host":    "192.168.1.1",
		"baseoid": "1.3.6.1.2.1.1.1.0",
	})
	h.Setup([]config.Entry{entry})

	r, _ := h.Reading("sensor.sysdescr")
	fmt.Println(r.State)
	// Output: Linux router 6.1
}

package influxdb_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
)

var _ submodel.ValueRecorder = (*influxdb.Client)(nil)

// testConfig returns a configuration pointing at GRAYTWIN_TEST_INFLUXDB_URL.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           os.Getenv("GRAYTWIN_TEST_INFLUXDB_URL"),
		Token:         os.Getenv("GRAYTWIN_TEST_INFLUXDB_TOKEN"),
		Org:           "graytwin",
		Bucket:        "history",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// connectOrSkip connects to the test server or skips when none is configured.
func connectOrSkip(t *testing.T) *influxdb.Client {
	t.Helper()
	cfg := testConfig()
	if cfg.URL == "" {
		t.Skip("GRAYTWIN_TEST_INFLUXDB_URL not set, skipping integration test")
	}
	client, err := influxdb.Connect(cfg, "test-repo")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// captureErrors collects async write errors.
func captureErrors(client *influxdb.Client) func() error {
	var (
		mu       sync.Mutex
		writeErr error
	)
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})
	return func() error {
		mu.Lock()
		defer mu.Unlock()
		return writeErr
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg, "test-repo")
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := influxdb.Connect(cfg, "test-repo")
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	// Writes on a disconnected client are dropped.
	client.RecordElementValue("sm", "A", 1)
	client.Flush()
}

func TestHealthCheck(t *testing.T) {
	client := connectOrSkip(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	if err := client.HealthCheck(cancelled); err == nil {
		t.Error("HealthCheck() should return error for cancelled context")
	}
}

func TestRecordElementValue(t *testing.T) {
	client := connectOrSkip(t)
	writeErr := captureErrors(client)

	client.RecordElementValue("urn:test:sm:1", "Sensors.Temp", 21.5)
	client.RecordElementValue("urn:test:sm:1", "Sensors.Temp", 22.0)
	client.Flush()

	time.Sleep(100 * time.Millisecond)
	if err := writeErr(); err != nil {
		t.Fatalf("write error = %v", err)
	}

	samples, err := client.History(context.Background(), "urn:test:sm:1", "Sensors.Temp", time.Minute)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(samples) < 2 {
		t.Fatalf("History() returned %d samples, want >= 2", len(samples))
	}
	last := samples[len(samples)-1]
	if last.Value != 22.0 {
		t.Errorf("last sample = %v, want 22", last.Value)
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Time.Before(samples[i-1].Time) {
			t.Fatalf("samples not sorted at %d", i)
		}
	}
}

func TestHistory_Disconnected(t *testing.T) {
	client := &influxdb.Client{}
	if _, err := client.History(context.Background(), "sm", "A", time.Minute); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("History() error = %v, want ErrNotConnected", err)
	}
}

func TestClose(t *testing.T) {
	cfg := testConfig()
	if cfg.URL == "" {
		t.Skip("GRAYTWIN_TEST_INFLUXDB_URL not set, skipping integration test")
	}
	client, err := influxdb.Connect(cfg, "test-repo")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	client.RecordElementValue("urn:test:sm:1", "Counter", 1)
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	// Flush and a second Close after Close are no-ops.
	client.Flush()
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

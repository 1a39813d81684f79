package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/config"
)

func TestElementPoint(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := elementPoint("repo-1", "urn:sm:1", "Sensors.Temp", 21.5, at)

	if p.Name() != measurement {
		t.Errorf("Name() = %q, want %q", p.Name(), measurement)
	}
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	want := map[string]string{tagRepository: "repo-1", tagSubmodel: "urn:sm:1", tagPath: "Sensors.Temp"}
	for k, v := range want {
		if tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, tags[k], v)
		}
	}
	fields := p.FieldList()
	if len(fields) != 1 || fields[0].Key != fieldValue || fields[0].Value != 21.5 {
		t.Errorf("fields = %+v", fields)
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}
}

func TestHistoryQuery(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		window  time.Duration
		contain []string
	}{
		{
			name:    "plain path",
			path:    "Sensors.Temp",
			window:  10 * time.Minute,
			contain: []string{`from(bucket: "history")`, "range(start: -600s)", `r.path == "Sensors.Temp"`},
		},
		{
			name:    "quotes escaped",
			path:    `A"B`,
			window:  time.Minute,
			contain: []string{`r.path == "A\"B"`},
		},
		{
			name:    "default window",
			path:    "A",
			window:  0,
			contain: []string{"range(start: -3600s)"},
		},
		{
			name:    "sub-second window rounds up",
			path:    "A",
			window:  time.Millisecond,
			contain: []string{"range(start: -1s)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := historyQuery("history", "repo-1", "urn:sm:1", tt.path, tt.window)
			for _, c := range tt.contain {
				if !strings.Contains(q, c) {
					t.Errorf("query missing %q:\n%s", c, q)
				}
			}
			if !strings.Contains(q, `r.repository == "repo-1"`) {
				t.Errorf("query not scoped to repository:\n%s", q)
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	opts := clientOptions(config.InfluxDBConfig{BatchSize: 50, FlushInterval: 2})
	if opts.BatchSize() != 50 {
		t.Errorf("BatchSize() = %d, want 50", opts.BatchSize())
	}
	if opts.FlushInterval() != 2000 {
		t.Errorf("FlushInterval() = %d, want 2000", opts.FlushInterval())
	}

	opts = clientOptions(config.InfluxDBConfig{})
	if opts.BatchSize() != defaultBatchSize {
		t.Errorf("default BatchSize() = %d", opts.BatchSize())
	}
	if opts.FlushInterval() != uint(defaultFlushInterval.Milliseconds()) {
		t.Errorf("default FlushInterval() = %d", opts.FlushInterval())
	}
}

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestSetupDisabledLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	tel, err := Setup(context.Background(), Options{
		ServiceName: "todo-api",
		Environment: "test",
		Output:      &buf,
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer tel.Shutdown(context.Background())

	tel.Logger.Info("hello", "port", "5000")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", buf.String())
	}
	if entry["msg"] != "hello" || entry["service"] != "todo-api" || entry["port"] != "5000" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if tel.Meter == nil {
		t.Fatalf("meter must not be nil")
	}
}

func TestJSONLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	NewJSONLogger(&buf, "todo-api", "production").Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("production logger emitted debug: %q", buf.String())
	}
	NewJSONLogger(&buf, "todo-api", "development").Debug("shown")
	if buf.Len() == 0 {
		t.Fatalf("development logger dropped debug")
	}
}

func TestNewMetricsWithNoopMeter(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"), nil)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordRequest(context.Background(), http.MethodGet, "/api/todos", http.StatusOK, time.Now())

	var nilMetrics *Metrics
	nilMetrics.RecordRequest(context.Background(), http.MethodGet, "/api/todos", http.StatusOK, time.Now())
}

func TestTasksGaugeObservesCount(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	count := int64(3)
	_, err := NewMetrics(mp.Meter("test"), func(context.Context) (int64, error) {
		return count, nil
	})
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	if got := collectGauge(t, reader); got != 3 {
		t.Fatalf("tasks_total=%d want=3", got)
	}
}

func TestTasksGaugeSkipsStoreErrors(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	_, err := NewMetrics(mp.Meter("test"), func(context.Context) (int64, error) {
		return 0, errors.New("store down")
	})
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect should not fail when the store is down: %v", err)
	}
	if got := collectGauge(t, reader); got != -1 {
		t.Fatalf("expected no observation, got %d", got)
	}
}

// collectGauge returns the tasks_total value, or -1 when nothing was observed.
func collectGauge(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "tasks_total" {
				continue
			}
			gauge, ok := m.Data.(metricdata.Gauge[int64])
			if !ok || len(gauge.DataPoints) == 0 {
				return -1
			}
			return gauge.DataPoints[0].Value
		}
	}
	return -1
}

package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if rec.Name() == "" {
		t.Fatalf("expected generated export name")
	}
	rec.Observe("perform", true, 3*time.Millisecond)
	rec.Observe("perform", true, 2*time.Millisecond)
	rec.Observe("perform", false, time.Millisecond)
	rec.Observe("", true, time.Second) // ignored

	snap := rec.Snapshot()
	if got := snap.Results["perform"]["success"]; got != 2 {
		t.Fatalf("success count %d, want 2", got)
	}
	if got := snap.Results["perform"]["error"]; got != 1 {
		t.Fatalf("error count %d, want 1", got)
	}
	if snap.DurationsMS["perform"] < 5 {
		t.Fatalf("duration total %v, want >= 5ms", snap.DurationsMS["perform"])
	}
	if len(snap.Results) != 1 {
		t.Fatalf("empty operation was recorded: %+v", snap.Results)
	}
}

func TestProjectObservesMetrics(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	p := newTestProject(t)
	p.metrics = rec
	if _, err := p.AppendTrack("Drums"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := p.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	snap := rec.Snapshot()
	if snap.Results["perform"]["success"] != 1 || snap.Results["undo"]["success"] != 1 {
		t.Fatalf("unexpected metrics: %+v", snap.Results)
	}
}

func TestJSONTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	tracer.Start("perform").End(nil)
	tracer.Start("undo").End(errors.New("boom"))

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries: %+v", entries)
	}
	if entries[0].Operation != "perform" || entries[0].Status != "success" {
		t.Fatalf("first entry: %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error != "boom" {
		t.Fatalf("second entry: %+v", entries[1])
	}

	dec := json.NewDecoder(&buf)
	var line JSONTraceEntry
	if err := dec.Decode(&line); err != nil {
		t.Fatalf("decode first line: %v", err)
	}
	if line.Operation != "perform" {
		t.Fatalf("line: %+v", line)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	rec.Observe("perform", true, 10*time.Millisecond)
	rec.Observe("perform", false, time.Millisecond)
	rec.Observe("", true, time.Second) // ignored

	if got := testutil.ToFloat64(rec.operations.WithLabelValues("perform", "success")); got != 1 {
		t.Fatalf("success counter %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("perform", "error")); got != 1 {
		t.Fatalf("error counter %v, want 1", got)
	}

	// double registration must surface the registry error
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestSlogLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	logger.Debug("debug msg", "k", "v")
	logger.Info("info msg")
	logger.Warn("warn msg")
	logger.Error("error msg")
	out := buf.String()
	for _, want := range []string{"debug msg", "info msg", "warn msg", "error msg", "k=v"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}

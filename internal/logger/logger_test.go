package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

// captureLogs points Logger at a buffer for the duration of the test
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger
	Logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: programLevel}))
	SetSampleRate(1)
	t.Cleanup(func() {
		Logger = prev
		SetSampleRate(100)
	})
	return &buf
}

// TestParseLevel verifies level names map to slog levels
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", LevelInfo, false},
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{" warn ", LevelWarning, false},
		{"WARNING", LevelWarning, false},
		{"error", LevelError, false},
		{"fatal", LevelFatal, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestSetLevel verifies records below the program level are dropped
func TestSetLevel(t *testing.T) {
	buf := captureLogs(t)
	prev := GetLevel()
	t.Cleanup(func() { SetLevel(prev) })

	SetLevel(LevelWarning)
	Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be dropped, got %s", buf.String())
	}

	Warn("shown")
	if !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Errorf("expected warning in output, got %s", buf.String())
	}
}

// TestStageFailure verifies the counter and the structured attributes
func TestStageFailure(t *testing.T) {
	buf := captureLogs(t)
	before := StageFailures.Load()
	errorsBefore := TotalErrors.Load()

	StageFailure("claim-1", "code", errors.New("boom"))

	if got := StageFailures.Load() - before; got != 1 {
		t.Errorf("StageFailures delta = %d, want 1", got)
	}
	if got := TotalErrors.Load() - errorsBefore; got != 1 {
		t.Errorf("TotalErrors delta = %d, want 1", got)
	}

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["claim_id"] != "claim-1" || record["stage"] != "code" || record["error"] != "boom" {
		t.Errorf("unexpected record %v", record)
	}
}

// TestRuleError verifies malformed rules are counted as warnings
func TestRuleError(t *testing.T) {
	captureLogs(t)
	before := RuleErrors.Load()
	warnings := TotalWarnings.Load()

	RuleError("r1", "regex", errors.New("bad pattern"))

	if RuleErrors.Load()-before != 1 || TotalWarnings.Load()-warnings != 1 {
		t.Error("expected rule error and warning counters to advance")
	}
}

// TestSamplingKeepsCounting verifies counters advance even when output is sampled away
func TestSamplingKeepsCounting(t *testing.T) {
	captureLogs(t)
	SetSampleRate(1_000_000)
	before := TotalErrors.Load()

	for i := 0; i < 10; i++ {
		Error("sampled")
	}

	if got := TotalErrors.Load() - before; got != 10 {
		t.Errorf("TotalErrors delta = %d, want 10", got)
	}
}

// TestHTTPCounters verifies the status helpers
func TestHTTPCounters(t *testing.T) {
	five, four := Total5xxErrors.Load(), Total4xxErrors.Load()

	ErrorHttp5xx()
	WarnHttp4xx()
	WarnHttp4xx()

	if Total5xxErrors.Load()-five != 1 || Total4xxErrors.Load()-four != 2 {
		t.Error("unexpected http counter deltas")
	}
}

// TestShutdownWithoutOTEL verifies Shutdown is a no-op in JSON mode
func TestShutdownWithoutOTEL(t *testing.T) {
	if shutdownFunc != nil {
		t.Skip("OTEL logging enabled")
	}
	if err := Shutdown(t.Context()); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
}

package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "default", config: *DefaultConfig()},
		{name: "debug", config: *DebugConfig()},
		{name: "bad level", config: Config{Level: "loud", Format: TextFormat, Output: StderrOutput}, wantErr: true},
		{name: "bad format", config: Config{Level: InfoLevel, Format: "xml", Output: StderrOutput}, wantErr: true},
		{name: "file without path", config: Config{Level: InfoLevel, Format: JSONFormat, Output: FileOutput}, wantErr: true},
		{name: "file with path", config: Config{Level: InfoLevel, Format: JSONFormat, Output: FileOutput, File: "x.log"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDerivedLoggerKeepsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, DebugLevel).
		WithComponent("parser").
		WithField("bank", "bcp")

	log.WithFields(Fields{"row": 4}).Debug("row skipped")

	out := buf.String()
	for _, want := range []string{"component=parser", "bank=bcp", "row=4", "row skipped"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log output %q", want, out)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, WarnLevel)

	log.Info("hidden")
	log.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message should be written")
	}
}

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tracker := NewProgressTracker(ProgressConfig{
		Operation: "match",
		Total:     4,
		Interval:  time.Second,
		Logger:    NewWithWriter(&buf, InfoLevel),
	})
	tracker.startTime = clock
	tracker.lastLogTime = clock
	tracker.now = func() time.Time { return clock }

	tracker.Increment()
	if strings.Contains(buf.String(), "Progress update") {
		t.Error("no update expected before the interval elapses")
	}

	clock = clock.Add(2 * time.Second)
	tracker.Increment()
	if !strings.Contains(buf.String(), "Progress update") {
		t.Error("expected a progress update after the interval")
	}

	stats := tracker.Stats()
	if stats.Current != 2 || stats.Percentage != 50 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if got := stats.String(); !strings.Contains(got, "match: 2/4") {
		t.Errorf("unexpected stats string %q", got)
	}
}

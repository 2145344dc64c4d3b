package logger

import (
	"fmt"
	"time"
)

// ProgressTracker logs the progress of a loop over a known number of
// items, such as the transactions of an import being matched. It logs at
// most once per interval and always on completion.
type ProgressTracker struct {
	logger      Logger
	operation   string
	total       int
	current     int
	startTime   time.Time
	lastLogTime time.Time
	interval    time.Duration
	now         func() time.Time
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation string
	Total     int
	Interval  time.Duration
	Logger    Logger
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	if config.Logger == nil {
		config.Logger = GetGlobalLogger()
	}
	if config.Interval == 0 {
		config.Interval = 2 * time.Second
	}

	start := time.Now()
	tracker := &ProgressTracker{
		logger:      config.Logger.WithComponent("progress"),
		operation:   config.Operation,
		total:       config.Total,
		startTime:   start,
		lastLogTime: start,
		interval:    config.Interval,
		now:         time.Now,
	}

	tracker.logger.WithFields(Fields{
		"operation": config.Operation,
		"total":     config.Total,
	}).Debug("Starting operation")

	return tracker
}

// Increment advances the counter by one item.
func (p *ProgressTracker) Increment() {
	p.current++
	now := p.now()
	if now.Sub(p.lastLogTime) >= p.interval {
		p.logger.WithFields(p.fields(now)).Info("Progress update")
		p.lastLogTime = now
	}
}

// Complete logs the final statistics of the operation.
func (p *ProgressTracker) Complete() {
	p.logger.WithFields(p.fields(p.now())).Debug("Operation completed")
}

// Stats returns current progress statistics.
func (p *ProgressTracker) Stats() ProgressStats {
	now := p.now()
	stats := ProgressStats{
		Operation: p.operation,
		Total:     p.total,
		Current:   p.current,
		Duration:  now.Sub(p.startTime),
	}
	if p.total > 0 {
		stats.Percentage = float64(p.current) / float64(p.total) * 100
	}
	return stats
}

func (p *ProgressTracker) fields(now time.Time) Fields {
	stats := p.Stats()
	fields := Fields{
		"operation": p.operation,
		"processed": p.current,
		"elapsed":   now.Sub(p.startTime).String(),
	}
	if p.total > 0 {
		fields["total"] = p.total
		fields["percentage"] = fmt.Sprintf("%.1f%%", stats.Percentage)
	}
	return fields
}

// ProgressStats contains progress statistics
type ProgressStats struct {
	Operation  string        `json:"operation"`
	Total      int           `json:"total"`
	Current    int           `json:"current"`
	Percentage float64       `json:"percentage"`
	Duration   time.Duration `json:"duration"`
}

// String returns a human-readable representation of the progress
func (ps ProgressStats) String() string {
	if ps.Total > 0 {
		return fmt.Sprintf("%s: %d/%d (%.1f%%) in %v", ps.Operation, ps.Current, ps.Total, ps.Percentage, ps.Duration)
	}
	return fmt.Sprintf("%s: %d processed in %v", ps.Operation, ps.Current, ps.Duration)
}

// OperationLogger logs the start and outcome of a batch operation
// (process, match) together with its timing.
type OperationLogger struct {
	logger    Logger
	operation string
	startTime time.Time
}

// NewOperationLogger creates a new operation logger
func NewOperationLogger(operation string, logger Logger, fields Fields) *OperationLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	ol := &OperationLogger{
		logger:    logger.WithFields(fields).WithField("operation", operation),
		operation: operation,
		startTime: time.Now(),
	}
	ol.logger.Debug("Starting operation")
	return ol
}

// Success completes the operation successfully
func (ol *OperationLogger) Success(message string, fields Fields) {
	ol.logger.WithFields(fields).
		WithField("duration", time.Since(ol.startTime).String()).
		Info(message)
}

// Failure completes the operation with an error
func (ol *OperationLogger) Failure(err error) {
	ol.logger.WithError(err).
		WithField("duration", time.Since(ol.startTime).String()).
		Error("Operation failed")
}

package errors

import (
	"context"
	"sync"
	"time"
)

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
}

// Report is one entry handed to the diagnostics collector.
type Report struct {
	Err       error
	Code      string
	Metadata  map[string]string
	Timestamp time.Time
}

// Reporter receives unexpected failures for upstream diagnostics.
type Reporter interface {
	Report(ctx context.Context, err error, metadata map[string]string)
}

// Collector is the in-process diagnostics collector. It keeps every reported
// failure and mirrors it to the logger. Expected conditions (a cancelled
// sign-in, an empty gist) must never be handed to it.
type Collector struct {
	logger  Logger
	reports []Report
	mutex   sync.RWMutex
	now     func() time.Time
}

// NewCollector creates a new diagnostics collector. logger may be nil.
func NewCollector(logger Logger) *Collector {
	return &Collector{
		logger:  logger,
		reports: make([]Report, 0),
		now:     time.Now,
	}
}

// Report records err with optional metadata.
func (c *Collector) Report(ctx context.Context, err error, metadata map[string]string) {
	if err == nil {
		return
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	report := Report{
		Err:       err,
		Code:      Code(err),
		Metadata:  meta,
		Timestamp: c.now(),
	}

	c.mutex.Lock()
	c.reports = append(c.reports, report)
	c.mutex.Unlock()

	if c.logger != nil {
		fields := make([]interface{}, 0, 2+len(meta)*2)
		fields = append(fields, "code", report.Code)
		for k, v := range meta {
			fields = append(fields, k, v)
		}
		c.logger.Error(ctx, err, "Diagnostics report", fields...)
	}
}

// Reports returns a copy of everything reported so far.
func (c *Collector) Reports() []Report {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]Report, len(c.reports))
	copy(result, c.reports)
	return result
}

// HasReports returns true if anything was reported.
func (c *Collector) HasReports() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.reports) > 0
}

// Clear drops all reports.
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.reports = c.reports[:0]
}

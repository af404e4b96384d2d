package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging across the job.
const (
	FieldService = "service"
	FieldRunID   = "run_id"
	FieldDay     = "day"
	FieldSource  = "source"
	FieldCount   = "count"
	FieldError   = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// RunID returns a slog attribute for the run identifier.
func RunID(id string) slog.Attr {
	return slog.String(FieldRunID, id)
}

// Day returns a slog attribute for the report day.
func Day(d time.Time) slog.Attr {
	return slog.String(FieldDay, d.Format("2006-01-02"))
}

// Source returns a slog attribute for a record source name.
func Source(name string) slog.Attr {
	return slog.String(FieldSource, name)
}

// Count returns a slog attribute for a record count.
func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

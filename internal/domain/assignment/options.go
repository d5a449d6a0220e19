package assignment

import (
	"time"

	"github.com/rpggio/annotask/internal/metrics"
)

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLockTimeout overrides DefaultLockTimeout.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Collector) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRecordLookup enables comparing corrections against original content.
func WithRecordLookup(records RecordLookup) Option {
	return func(s *Service) {
		s.records = records
	}
}

// WithActivityLog records audit events after each committed change.
func WithActivityLog(log ActivityLogger) Option {
	return func(s *Service) {
		s.activities = log
	}
}

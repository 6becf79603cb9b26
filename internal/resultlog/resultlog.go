// Package resultlog persists IntegrationLog entries produced by the orchestrator.
package resultlog

import (
	"context"
	"errors"

	"db-relay/internal/model"

	"github.com/sirupsen/logrus"
)

// Sink accepts finished run logs.
type Sink interface {
	Record(ctx context.Context, entry model.IntegrationLog) error
}

// LogSink writes each entry as a structured log line.
type LogSink struct {
	Log logrus.FieldLogger
}

func (s LogSink) Record(_ context.Context, e model.IntegrationLog) error {
	entry := s.Log.WithFields(logrus.Fields{
		"integration":    e.IntegrationName,
		"integration_id": e.IntegrationID,
		"group":          e.GroupName,
		"rows":           e.RowsAffected,
		"elapsed_ms":     e.DurationMs,
	})
	if e.Success {
		entry.Info("integration log recorded")
		return nil
	}
	entry.WithField("error", e.Error).Warn("integration log recorded")
	return nil
}

// Multi fans an entry out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Record(ctx context.Context, e model.IntegrationLog) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps entries in order. Useful for tests and dry runs.
type Memory struct {
	Entries []model.IntegrationLog
}

func (m *Memory) Record(_ context.Context, e model.IntegrationLog) error {
	m.Entries = append(m.Entries, e)
	return nil
}

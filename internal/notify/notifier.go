// Package notify delivers alerts for newly committed postings.
package notify

import (
	"context"
	"errors"
	"fmt"

	"jobmate/careerwatch-service/internal/logger"
	"jobmate/careerwatch-service/internal/model"
)

// Notifier delivers one alert per posting. Delivery is best-effort: a
// failure is reported to the caller and never retried by it.
type Notifier interface {
	Send(ctx context.Context, p model.Posting) error
}

// NotificationError wraps a failed delivery.
type NotificationError struct {
	Channel      string
	Organization string
	ExternalID   string
	StatusCode   int
	Cause        error
}

func (e *NotificationError) Error() string {
	msg := fmt.Sprintf("notify %s: %s/%s", e.Channel, e.Organization, e.ExternalID)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *NotificationError) Unwrap() error { return e.Cause }

// Multi fans a posting out to every notifier. All are attempted even when
// one fails; the failures are joined.
type Multi []Notifier

// Send implements Notifier.
func (m Multi) Send(ctx context.Context, p model.Posting) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes each posting to the logger. It is the only notifier in dry runs.
type Log struct {
	log logger.Logger
}

// NewLog returns a Log notifier.
func NewLog(log logger.Logger) *Log {
	if log == nil {
		log = logger.NewNop()
	}
	return &Log{log: log}
}

// Send implements Notifier.
func (l *Log) Send(_ context.Context, p model.Posting) error {
	l.log.Info("new posting",
		logger.String("organization", p.Organization),
		logger.String("external_id", p.ExternalID),
		logger.String("title", p.Title),
		logger.String("location", p.Location),
		logger.String("url", p.URL),
	)
	return nil
}

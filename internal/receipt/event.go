package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/minio/minio-go/v7/pkg/notification"
)

// DecodeObjectKey decodes a key as delivered in S3 event records, where
// spaces arrive as '+' and other characters are percent-encoded.
func DecodeObjectKey(raw string) (string, error) {
	key, err := url.QueryUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("decoding object key %q: %w", raw, err)
	}
	return key, nil
}

// EventsFromNotification extracts one ObjectEvent per record
func EventsFromNotification(info notification.Info) ([]ObjectEvent, error) {
	events := make([]ObjectEvent, 0, len(info.Records))
	for _, rec := range info.Records {
		key, err := DecodeObjectKey(rec.S3.Object.Key)
		if err != nil {
			return nil, err
		}
		events = append(events, ObjectEvent{
			Bucket: rec.S3.Bucket.Name,
			Key:    key,
		})
	}
	return events, nil
}

// Subscriber delivers bucket notifications until ctx is done
type Subscriber interface {
	Listen(ctx context.Context, prefix string) <-chan notification.Info
}

// Listener feeds bucket notifications into a Pipeline
type Listener struct {
	source   Subscriber
	pipeline *Pipeline
	prefix   string
}

// NewListener creates a Listener for objects created under prefix
func NewListener(source Subscriber, pipeline *Pipeline, prefix string) *Listener {
	return &Listener{
		source:   source,
		pipeline: pipeline,
		prefix:   prefix,
	}
}

// Run consumes notifications until the subscription ends. Failed
// invocations are logged and do not stop the loop. An invocation that has
// started is not interrupted by ctx.
func (l *Listener) Run(ctx context.Context) error {
	slog.Info("Listening for uploads", "prefix", l.prefix)
	for info := range l.source.Listen(ctx, l.prefix) {
		if info.Err != nil {
			slog.Error("Bucket notification error", "error", info.Err)
			continue
		}
		events, err := EventsFromNotification(info)
		if err != nil {
			slog.Error("Invalid bucket notification", "error", err)
			continue
		}
		if err := l.pipeline.Dispatch(context.WithoutCancel(ctx), events); err != nil {
			slog.Warn("Error processing receipt", "records", len(events), "failed", failedCount(err), "error", err)
		}
	}
	return ctx.Err()
}

// failedCount reports how many errors a Dispatch error joins
func failedCount(err error) int {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}

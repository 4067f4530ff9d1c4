// Package intake consumes notification events published by the core
// platform onto Kafka and republishes them through the dispatch pipeline.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
	"github.com/wagmicrew/TFX-APP-sub001/internal/observability/metrics"
	"github.com/wagmicrew/TFX-APP-sub001/internal/service/impl"
)

// Event is the wire shape the platform emits on the notifications topic.
type Event struct {
	Type           string          `json:"type"`
	TargetType     string          `json:"targetType"`
	TargetID       string          `json:"targetId,omitempty"`
	TargetPlatform string          `json:"platform,omitempty"`
	Title          string          `json:"title"`
	Body           string          `json:"body"`
	Data           json.RawMessage `json:"data,omitempty"`
}

type publisher interface {
	Publish(ctx context.Context, req dto.DispatchRequest) (dto.DispatchResult, error)
}

type messageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Worker struct {
	Source    messageSource
	Publisher publisher
	Log       *slog.Logger

	// RetryDelay throttles refetching after a transient publish failure.
	RetryDelay time.Duration
}

func NewWorker(brokers []string, topic, groupID string, pub publisher, log *slog.Logger) *Worker {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	return &Worker{Source: r, Publisher: pub, Log: log, RetryDelay: time.Second}
}

// Run fetches and handles messages until ctx is cancelled or the source
// fails. Malformed events are committed and skipped so they cannot wedge
// the partition; transient publish failures are retried without commit.
func (w *Worker) Run(ctx context.Context) error {
	for {
		m, err := w.Source.FetchMessage(ctx)
		if err != nil {
			return err
		}

		err = w.handle(ctx, m)
		switch {
		case err == nil:
			metrics.IntakeEventsTotal.WithLabelValues("published").Inc()
		case isPoison(err):
			metrics.IntakeEventsTotal.WithLabelValues("invalid").Inc()
			w.Log.Warn("skipping invalid intake event",
				"topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
		default:
			metrics.IntakeEventsTotal.WithLabelValues("error").Inc()
			w.Log.Error("intake publish failed",
				"topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.RetryDelay):
			}
			continue
		}

		if err := w.Source.CommitMessages(ctx, m); err != nil {
			w.Log.Error("intake commit failed", "topic", m.Topic, "offset", m.Offset, "error", err)
		}
	}
}

func (w *Worker) handle(ctx context.Context, m kafka.Message) error {
	var ev Event
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return errBadEvent{err}
	}

	result, err := w.Publisher.Publish(ctx, dto.DispatchRequest{
		Title:            ev.Title,
		Body:             ev.Body,
		TargetType:       ev.TargetType,
		TargetID:         ev.TargetID,
		TargetPlatform:   ev.TargetPlatform,
		NotificationType: ev.Type,
		Data:             ev.Data,
	})
	if err != nil {
		return err
	}

	w.Log.Info("intake event published",
		"type", ev.Type, "target", ev.TargetType, "sent", result.Sent, "failed", result.Failed)
	return nil
}

func (w *Worker) Close() error { return w.Source.Close() }

type errBadEvent struct{ err error }

func (e errBadEvent) Error() string { return "bad event payload: " + e.err.Error() }
func (e errBadEvent) Unwrap() error { return e.err }

// isPoison reports whether retrying the same message can never succeed.
func isPoison(err error) bool {
	var bad errBadEvent
	if errors.As(err, &bad) {
		return true
	}
	return errors.Is(err, impl.ErrEmptyContent) ||
		errors.Is(err, impl.ErrEmptyTargetID) ||
		errors.Is(err, domain.ErrInvalidTarget) ||
		errors.Is(err, domain.ErrInvalidPlatform) ||
		errors.Is(err, domain.ErrValidation)
}

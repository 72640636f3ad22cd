package ingest

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"

	"github.com/atlasdocs/atlas-engine/pkg/natsutil"
)

const (
	// Subject carries documents submitted for indexing.
	Subject = "engine.ingest"
	// DLQSubject receives documents that exhausted their retries.
	DLQSubject = "engine.ingest.dlq"
	// MaxRetries before a failing document moves to the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Doc     Document `json:"doc"`
	Error   string   `json:"error"`
	Retries int      `json:"retries"`
}

// StartConsumer subscribes the service to the ingest subject. Failing
// documents are re-published with an incremented retry count and land on
// the DLQ once MaxRetries is reached.
func StartConsumer(nc *nats.Conn, svc *Service, logger *slog.Logger) (*nats.Subscription, error) {
	if logger == nil {
		logger = slog.Default()
	}

	return natsutil.Subscribe(nc, Subject, func(ctx context.Context, doc Document, msg *nats.Msg) {
		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				retries, _ = strconv.Atoi(v)
			}
		}

		_, err := svc.Ingest(ctx, doc)
		if err == nil {
			if msg.Reply != "" {
				_ = msg.Ack()
			}
			return
		}

		retries++
		logger.Error("ingest: pipeline failed", "doc_id", doc.ID, "retry", retries, "err", err)

		if retries >= MaxRetries {
			dlq := dlqMessage{Doc: doc, Error: err.Error(), Retries: retries}
			if pubErr := natsutil.Publish(ctx, nc, DLQSubject, dlq); pubErr != nil {
				logger.Error("ingest: DLQ publish failed", "doc_id", doc.ID, "err", pubErr)
			}
		} else {
			if pubErr := natsutil.Publish(ctx, nc, Subject, doc, retryHeader, strconv.Itoa(retries)); pubErr != nil {
				logger.Error("ingest: retry publish failed", "doc_id", doc.ID, "err", pubErr)
			}
		}

		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}

// PublishDocument submits a document for asynchronous indexing.
func PublishDocument(ctx context.Context, nc *nats.Conn, doc Document) error {
	return natsutil.Publish(ctx, nc, Subject, doc)
}

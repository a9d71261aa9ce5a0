// Package outbox ships persisted audit events to Kafka. The audit_logs table
// is the outbox: rows are inserted atomically by the request path and this
// worker publishes them downstream, so an event is never visible in Kafka
// without its durable row existing first.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"aegis/pkg/platform/audit"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 100
)

// Source is the outbox side of the audit store: events pending publication
// plus the ability to stamp them as shipped.
type Source interface {
	Unpublished(ctx context.Context, limit int) ([]uuid.UUID, []audit.Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, publishedAt time.Time) error
}

// Publisher polls the outbox and produces events to a Kafka topic.
type Publisher struct {
	source       Source
	client       *kgo.Client
	topic        string
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
}

// New connects to Kafka, ensures the topic exists, and returns a Publisher.
func New(source Source, brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	return &Publisher{
		source:       source,
		client:       client,
		topic:        topic,
		logger:       logger,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
	}, nil
}

// ensureTopic creates the audit topic when it does not exist yet.
func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create audit topic: %w", resp.Err)
	}
	return nil
}

// Run polls until the context is cancelled. Publish failures are retried on
// the next tick because rows are only marked published after Kafka acks.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.client.Close()
			return ctx.Err()
		case <-ticker.C:
			if err := p.publishBatch(ctx); err != nil {
				p.logger.ErrorContext(ctx, "audit outbox publish failed", "error", err)
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context) error {
	ids, events, err := p.source.Unpublished(ctx, p.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	records := make([]*kgo.Record, len(events))
	for i, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal audit event: %w", err)
		}
		records[i] = &kgo.Record{
			Topic: p.topic,
			Key:   []byte(event.SubjectID.String()),
			Value: payload,
		}
	}

	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit events: %w", err)
	}
	return p.source.MarkPublished(ctx, ids, time.Now())
}

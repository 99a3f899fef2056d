// Package publish sends pool reports to Kafka.
package publish

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kgo"

	"liquidity-watch/internal/domain"
)

// KafkaClient is the subset of *kgo.Client used by Publisher.
type KafkaClient interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// Publisher produces one JSON record per report, keyed by transaction
// signature so redeliveries land on the same partition.
type Publisher struct {
	kcl   KafkaClient
	topic string
}

// NewPublisher creates a publisher. An empty topic uses the client's default.
func NewPublisher(client KafkaClient, topic string) *Publisher {
	return &Publisher{kcl: client, topic: topic}
}

// Name identifies the publisher in logs and metrics.
func (p *Publisher) Name() string {
	return "kafka"
}

// Record produces report and waits for the broker acknowledgement.
func (p *Publisher) Record(ctx context.Context, report *domain.PoolReport) error {
	record, err := createRecord(report, p.topic)
	if err != nil {
		return errors.Wrap(err, "creating pool report record")
	}

	done := make(chan error, 1)
	p.kcl.Produce(ctx, record, func(_ *kgo.Record, err error) {
		done <- err
	})

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrapf(err, "producing pool report %s", report.ID)
		}
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for produce acknowledgement")
	}
}

func createRecord(report *domain.PoolReport, topic string) (*kgo.Record, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling to json")
	}

	status := string(report.Status)
	if report.AnyLocked() {
		status += ",locked"
	}

	return &kgo.Record{
		Topic: topic,
		Key:   []byte(report.Signature),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "report-id", Value: []byte(report.ID)},
			{Key: "status", Value: []byte(status)},
		},
	}, nil
}

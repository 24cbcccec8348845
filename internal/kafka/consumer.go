// Package kafka consumes device samples from a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"safezone-alert-service/internal/logging"
	"safezone-alert-service/internal/metrics"
	"safezone-alert-service/internal/models"
	"safezone-alert-service/internal/services"
)

const source = "kafka"

// Processor handles one decoded sample.
type Processor interface {
	Process(ctx context.Context, userID uuid.UUID, in models.SampleInput, source string) (*services.ProcessResult, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SampleMessage is the JSON value of a device_samples record.
type SampleMessage struct {
	UserID string `json:"user_id"`
	models.SampleInput
}

type Consumer struct {
	reader    messageReader
	processor Processor
	logger    *logging.Logger
}

func NewConsumer(brokers []string, topic, groupID string, p Processor, logger *logging.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	})
	return &Consumer{reader: r, processor: p, logger: logger}
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started")
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					c.logger.Infof("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Fetch message failed: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			c.handle(ctx, msg)
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Errorf("Commit offset %d failed: %v", msg.Offset, err)
			}
		}
	}()
}

// handle processes one record. Undecodable or invalid records are logged
// and skipped so they never block the partition.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	userID, in, err := DecodeSample(msg.Value)
	if err != nil {
		metrics.SamplesRejected.WithLabelValues("undecodable").Inc()
		c.logger.Errorf("Skipping record at offset %d: %v", msg.Offset, err)
		return
	}

	res, err := c.processor.Process(ctx, userID, in, source)
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.logger.Warnf("Skipping invalid sample for user %s: %v", userID, err)
	case err != nil:
		c.logger.Errorf("Sample for user %s processed with errors: %v", userID, err)
	default:
		c.logger.Debugf("Processed sample for user %s: %d zone events, %d alerts", userID, len(res.ZoneEvents), len(res.Alerts))
	}
}

// DecodeSample parses a record value into the user id and sample body.
func DecodeSample(value []byte) (uuid.UUID, models.SampleInput, error) {
	var m SampleMessage
	if err := json.Unmarshal(value, &m); err != nil {
		return uuid.Nil, models.SampleInput{}, fmt.Errorf("invalid JSON: %w", err)
	}
	userID, err := uuid.Parse(m.UserID)
	if err != nil {
		return uuid.Nil, models.SampleInput{}, fmt.Errorf("invalid user_id %q: %w", m.UserID, err)
	}
	return userID, m.SampleInput, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

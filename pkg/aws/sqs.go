package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

const (
	maxPollBackoff = 30 * time.Second
	sqsBatchSize   = 10
	sqsWaitSeconds = 20
)

// SQSConsumer long-polls the partner events queue.
type SQSConsumer struct {
	api      sqsAPI
	queueURL string
	log      *zap.Logger
}

func NewSQSConsumer(cfg aws.Config, queueURL string, log *zap.Logger) *SQSConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQSConsumer{api: sqs.NewFromConfig(cfg), queueURL: queueURL, log: log}
}

// MessageHandler processes one message body. A returned error leaves the
// message on the queue for redelivery.
type MessageHandler func(ctx context.Context, body string) error

// StartPolling runs until ctx is cancelled. Receive failures back off
// exponentially up to maxPollBackoff.
func (c *SQSConsumer) StartPolling(ctx context.Context, handler MessageHandler) error {
	c.log.Info("Polling SQS", zap.String("queue", c.queueURL))

	backoff := time.Second
	for ctx.Err() == nil {
		handled, err := c.pollOnce(ctx, handler)
		if err == nil {
			backoff = time.Second
			if handled > 0 {
				c.log.Debug("SQS batch handled", zap.Int("messages", handled))
			}
			continue
		}
		if ctx.Err() != nil {
			break
		}
		c.log.Error("SQS receive failed", zap.Duration("retry_in", backoff), zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxPollBackoff)
	}

	c.log.Info("SQS polling stopped", zap.String("queue", c.queueURL))
	return ctx.Err()
}

// pollOnce receives one batch and returns how many messages were acked.
func (c *SQSConsumer) pollOnce(ctx context.Context, handler MessageHandler) (int, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: sqsBatchSize,
		WaitTimeSeconds:     sqsWaitSeconds,
	})
	if err != nil {
		return 0, fmt.Errorf("receive from %s: %w", c.queueURL, err)
	}

	acked := 0
	for _, msg := range out.Messages {
		id := aws.ToString(msg.MessageId)
		if err := handler(ctx, aws.ToString(msg.Body)); err != nil {
			c.log.Warn("Partner event left for redelivery", zap.String("message_id", id), zap.Error(err))
			continue
		}
		if _, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(c.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			c.log.Warn("SQS delete failed", zap.String("message_id", id), zap.Error(err))
			continue
		}
		acked++
	}
	return acked, nil
}

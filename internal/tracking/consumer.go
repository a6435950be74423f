package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
	"github.com/goyoulink/affiliate-tracker/internal/service/affiliate"
)

// SQSReceiver is the part of the SQS client the consumer uses.
type SQSReceiver interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Consumer drains click events from SQS into the affiliate service.
// A message whose click cannot be stored stays on the queue and is
// redelivered after its visibility timeout.
type Consumer struct {
	client     SQSReceiver
	queueURL   string
	recorder   ClickRecorder
	errBackoff time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewConsumer(client SQSReceiver, queueURL string, recorder ClickRecorder) *Consumer {
	return &Consumer{
		client:     client,
		queueURL:   queueURL,
		recorder:   recorder,
		errBackoff: 5 * time.Second,
	}
}

// Start begins polling in the background until ctx ends or Stop is called.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	logger.Info("SQS click consumer started", "queue", c.queueURL)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poll(ctx)
	}()
}

// Stop ends polling and waits for the current batch to finish.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Consumer) poll(ctx context.Context) {
	for ctx.Err() == nil {
		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("SQS receive error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.errBackoff):
			}
			continue
		}

		for _, msg := range out.Messages {
			if c.handle(ctx, msg) {
				c.deleteMessage(ctx, msg.ReceiptHandle)
			}
		}
	}
}

// handle processes one message and reports whether it is done with.
func (c *Consumer) handle(ctx context.Context, msg types.Message) bool {
	var evt ClickEvent
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &evt); err != nil || evt.AffiliateID == "" {
		logger.Warn("SQS bad click message", "message_id", aws.ToString(msg.MessageId), "error", err)
		return true
	}

	err := c.recorder.RecordClick(ctx, evt.AffiliateID, evt.Click())
	switch {
	case err == nil:
		return true
	case errors.Is(err, affiliate.ErrNotFound):
		logger.Warn("click for unknown affiliate dropped", "affiliate_id", evt.AffiliateID)
		return true
	default:
		logger.Error("SQS click process error", "affiliate_id", evt.AffiliateID, "error", err)
		return false
	}
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
	if err != nil && ctx.Err() == nil {
		logger.Warn("SQS delete error", "error", err)
	}
}

package tracking

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
)

// SQSSender is the part of the SQS client the publisher uses.
type SQSSender interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher queues click events on SQS without holding up the redirect.
type Publisher struct {
	client   SQSSender
	queueURL string
	wg       sync.WaitGroup
}

func NewPublisher(client SQSSender, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

func (p *Publisher) Publish(ctx context.Context, evt ClickEvent) {
	body, err := json.Marshal(evt)
	if err != nil {
		logger.Error("marshal click event", "error", err)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
		})
		if err != nil {
			logger.Error("publishing click to SQS", "affiliate_id", evt.AffiliateID, "error", err)
		}
	}()
}

// Flush waits for in-flight sends, for shutdown.
func (p *Publisher) Flush() { p.wg.Wait() }

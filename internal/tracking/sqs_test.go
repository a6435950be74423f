package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/goyoulink/affiliate-tracker/internal/service/affiliate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSQS is an in-memory queue. ReceiveMessage hands out queued batches,
// then blocks like a long poll until ctx ends.
type fakeSQS struct {
	mu       sync.Mutex
	sent     []string
	batches  [][]types.Message
	deleted  []string
	sendErr  error
	recvErrs int
	drained  chan struct{}
}

func newFakeSQS(batches ...[]types.Message) *fakeSQS {
	return &fakeSQS{batches: batches, drained: make(chan struct{})}
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	if f.recvErrs > 0 {
		f.recvErrs--
		f.mu.Unlock()
		return nil, errors.New("throttled")
	}
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return &sqs.ReceiveMessageOutput{Messages: batch}, nil
	}
	f.mu.Unlock()

	select {
	case <-f.drained:
	default:
		close(f.drained)
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func message(t *testing.T, handle string, evt interface{}) types.Message {
	t.Helper()
	var body string
	switch v := evt.(type) {
	case string:
		body = v
	default:
		b, err := json.Marshal(v)
		require.NoError(t, err)
		body = string(b)
	}
	return types.Message{Body: aws.String(body), ReceiptHandle: aws.String(handle), MessageId: aws.String(handle)}
}

func TestPublisher_SendsJSON(t *testing.T) {
	q := newFakeSQS()
	pub := NewPublisher(q, "https://sqs.ap-northeast-1.amazonaws.com/123/clicks")

	pub.Publish(context.Background(), ClickEvent{AffiliateID: "aff-1", ShortCode: "tk01ab", IPAddress: "203.0.113.1"})
	pub.Flush()

	require.Len(t, q.sent, 1)
	var got ClickEvent
	require.NoError(t, json.Unmarshal([]byte(q.sent[0]), &got))
	assert.Equal(t, "aff-1", got.AffiliateID)
	assert.Equal(t, "tk01ab", got.ShortCode)
}

func TestPublisher_SendFailureIsSwallowed(t *testing.T) {
	q := newFakeSQS()
	q.sendErr = errors.New("access denied")
	pub := NewPublisher(q, "queue")

	assert.NotPanics(t, func() {
		pub.Publish(context.Background(), ClickEvent{AffiliateID: "aff-1"})
		pub.Flush()
	})
	assert.Empty(t, q.sent)
}

func TestConsumer_DrainsIntoRecorder(t *testing.T) {
	ts := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	q := newFakeSQS([]types.Message{
		message(t, "h-ok", ClickEvent{ID: "clk-7", AffiliateID: "aff-1", IPAddress: "203.0.113.1", Timestamp: ts}),
		message(t, "h-garbage", "{not json"),
		message(t, "h-noaff", ClickEvent{ShortCode: "tk01ab"}),
		message(t, "h-gone", ClickEvent{AffiliateID: "aff-gone"}),
		message(t, "h-retry", ClickEvent{AffiliateID: "aff-flaky"}),
	})
	rec := &recordingRecorder{failFor: map[string]error{
		"aff-gone":  affiliate.ErrNotFound,
		"aff-flaky": errors.New("connection reset"),
	}}
	c := NewConsumer(q, "queue", rec)

	c.Start(context.Background())
	select {
	case <-q.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	c.Stop()

	require.Equal(t, 1, rec.count())
	assert.Equal(t, ts, rec.clicks[0].CreatedAt)
	assert.Equal(t, "clk-7", rec.clicks[0].ID)
	// Everything but the transient failure is removed from the queue.
	assert.ElementsMatch(t, []string{"h-ok", "h-garbage", "h-noaff", "h-gone"}, q.deleted)
}

func TestConsumer_BacksOffOnReceiveErrors(t *testing.T) {
	q := newFakeSQS([]types.Message{message(t, "h-1", ClickEvent{AffiliateID: "aff-1"})})
	q.recvErrs = 2
	rec := &recordingRecorder{}
	c := NewConsumer(q, "queue", rec)
	c.errBackoff = time.Millisecond

	c.Start(context.Background())
	select {
	case <-q.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not recover from receive errors")
	}
	c.Stop()

	assert.Equal(t, 1, rec.count())
}

func TestConsumer_StopWhileIdle(t *testing.T) {
	q := newFakeSQS()
	c := NewConsumer(q, "queue", &recordingRecorder{})
	c.Start(context.Background())
	<-q.drained

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

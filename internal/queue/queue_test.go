package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeoff-bot/internal/logger"
)

func TestEnvelope_EncodeDecode(t *testing.T) {
	env := NewEnvelope(KindEvent, []byte(`{"type":"event_callback"}`))
	body, err := Encode(env)
	require.NoError(t, err)

	got, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, env.ID, got.ID)
	assert.Equal(t, KindEvent, got.Kind)
	assert.JSONEq(t, `{"type":"event_callback"}`, string(got.Body))
}

func TestDecode_RejectsUnknownKind(t *testing.T) {
	_, err := Decode(`{"id":"1","kind":"shortcut","body":{}}`)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Decode(`not json`)
	assert.Error(t, err)
}

func TestMemoryQueue_SendReceive(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	require.NoError(t, q.Send(ctx, "a"))
	require.NoError(t, q.Send(ctx, "b"))

	msgs, err := q.Receive(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Body)
	assert.Equal(t, "b", msgs[1].Body)
	assert.NotEmpty(t, msgs[0].ReceiptHandle)
}

func TestMemoryQueue_ReceiveTimesOut(t *testing.T) {
	msgs, err := NewMemoryQueue(1).Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemoryQueue_ReceiveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryQueue(1).Receive(ctx, 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

type mockSQS struct {
	sent     []*sqs.SendMessageInput
	deleted  []*sqs.DeleteMessageInput
	received *sqs.ReceiveMessageInput
	messages []types.Message
	sendErr  error
}

func (m *mockSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m1")}, nil
}

func (m *mockSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	m.received = in
	return &sqs.ReceiveMessageOutput{Messages: m.messages}, nil
}

func (m *mockSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	m.deleted = append(m.deleted, in)
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueue(t *testing.T) {
	mock := &mockSQS{messages: []types.Message{
		{MessageId: aws.String("m1"), Body: aws.String("hello"), ReceiptHandle: aws.String("r1")},
	}}
	q := NewSQSQueue(mock, "https://sqs.eu-west-2.amazonaws.com/1/events")
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "hello"))
	require.Len(t, mock.sent, 1)
	assert.Equal(t, "hello", aws.ToString(mock.sent[0].MessageBody))

	msgs, err := q.Receive(ctx, 5, 20)
	require.NoError(t, err)
	assert.Equal(t, []Message{{ID: "m1", Body: "hello", ReceiptHandle: "r1"}}, msgs)
	assert.Equal(t, int32(5), mock.received.MaxNumberOfMessages)
	assert.Equal(t, int32(20), mock.received.WaitTimeSeconds)

	require.NoError(t, q.Delete(ctx, "r1"))
	require.NoError(t, q.Delete(ctx, ""))
	require.Len(t, mock.deleted, 1)
}

func TestSQSQueue_SendError(t *testing.T) {
	q := NewSQSQueue(&mockSQS{sendErr: errors.New("throttled")}, "url")
	assert.ErrorContains(t, q.Send(context.Background(), "x"), "throttled")
}

// recordingQueue counts deletes around a MemoryQueue.
type recordingQueue struct {
	*MemoryQueue
	mu      sync.Mutex
	deletes []string
}

func (q *recordingQueue) Delete(_ context.Context, handle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deletes = append(q.deletes, handle)
	return nil
}

func TestWorker_HandleMessage(t *testing.T) {
	q := &recordingQueue{MemoryQueue: NewMemoryQueue(1)}
	env := NewEnvelope(KindInteraction, []byte(`{}`))
	body, err := Encode(env)
	require.NoError(t, err)

	var traceID string
	redeliver := NewWorker(q, func(ctx context.Context, got Envelope) error {
		traceID = logger.GetTraceID(ctx)
		return nil
	}, nil).HandleMessage(context.Background(), Message{ID: "1", Body: body, ReceiptHandle: "r1"})
	assert.False(t, redeliver)
	assert.Equal(t, env.ID, traceID)
	assert.Equal(t, []string{"r1"}, q.deletes)

	failing := NewWorker(q, func(context.Context, Envelope) error { return errors.New("boom") }, nil)
	assert.True(t, failing.HandleMessage(context.Background(), Message{ID: "2", Body: body, ReceiptHandle: "r2"}))
	assert.Equal(t, []string{"r1"}, q.deletes, "failed messages stay on the queue")

	assert.False(t, failing.HandleMessage(context.Background(), Message{ID: "3", Body: "garbage", ReceiptHandle: "r3"}))
	assert.Equal(t, []string{"r1", "r3"}, q.deletes, "undecodable messages are dropped")
}

func TestWorker_HandleMessageWithoutQueue(t *testing.T) {
	body, err := Encode(NewEnvelope(KindEvent, []byte(`{}`)))
	require.NoError(t, err)

	w := NewWorker(nil, func(context.Context, Envelope) error { return nil }, nil)
	assert.False(t, w.HandleMessage(context.Background(), Message{ID: "1", Body: body}))
}

func TestWorker_StartConsumesUntilCancelled(t *testing.T) {
	q := NewMemoryQueue(8)
	pub := NewPublisher(q)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen []string
	)
	done := make(chan struct{}, 3)
	w := NewWorker(q, func(_ context.Context, env Envelope) error {
		mu.Lock()
		seen = append(seen, env.ID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, nil, WithWorkerCount(2), WithReceiveWaitSeconds(1))
	w.Start(ctx)

	for i := 0; i < 3; i++ {
		require.NoError(t, pub.Publish(ctx, NewEnvelope(KindEvent, []byte(`{}`))))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not process envelopes")
		}
	}

	cancel()
	w.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
}

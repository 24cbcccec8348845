package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safezone-alert-service/internal/logging"
	"safezone-alert-service/internal/models"
	"safezone-alert-service/internal/services"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type fakeProcessor struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (p *fakeProcessor) Process(ctx context.Context, userID uuid.UUID, in models.SampleInput, source string) (*services.ProcessResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, userID)
	if p.err != nil {
		return nil, p.err
	}
	return &services.ProcessResult{}, nil
}

func TestDecodeSample(t *testing.T) {
	id := uuid.New()
	userID, in, err := DecodeSample([]byte(`{"user_id":"` + id.String() + `","latitude":10.5,"longitude":106.7,"heart_rate":88,"timestamp":"2024-06-01T09:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, id, userID)
	require.NotNil(t, in.Latitude)
	assert.Equal(t, 10.5, *in.Latitude)
	require.NotNil(t, in.HeartRate)
	assert.Equal(t, 88, *in.HeartRate)
	require.NotNil(t, in.Timestamp)
	assert.Equal(t, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), in.Timestamp.UTC())
}

func TestDecodeSample_Errors(t *testing.T) {
	_, _, err := DecodeSample([]byte(`{not json`))
	assert.Error(t, err)

	_, _, err = DecodeSample([]byte(`{"user_id":"42","latitude":1,"longitude":2}`))
	assert.Error(t, err)
}

func TestConsumer_ProcessesAndCommitsEveryRecord(t *testing.T) {
	good := uuid.New()
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"user_id":"` + good.String() + `","latitude":10,"longitude":106}`)},
		{Offset: 2, Value: []byte(`garbage`)},
		{Offset: 3, Value: []byte(`{"user_id":"` + good.String() + `","latitude":11,"longitude":106}`)},
	}}
	proc := &fakeProcessor{err: &models.ValidationError{Field: "latitude", Message: "bad"}}
	c := &Consumer{reader: reader, processor: proc, logger: logging.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	c.Start(ctx, &wg)

	require.Eventually(t, func() bool { return reader.commits() == 3 }, time.Second, 10*time.Millisecond)
	cancel()
	wg.Wait()

	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
	assert.Len(t, proc.calls, 2)
}

func TestConsumer_ProcessorFailureStillCommits(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 7, Value: []byte(`{"user_id":"` + uuid.New().String() + `","latitude":10,"longitude":106}`)},
	}}
	proc := &fakeProcessor{err: errors.New("db down")}
	c := &Consumer{reader: reader, processor: proc, logger: logging.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	c.Start(ctx, &wg)
	require.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	wg.Wait()
}

package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"economy/events"
	"economy/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, publishedMessage{subject: subject, data: data})
	return nil
}

func (p *fakePublisher) snapshot() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, "economy.balance_change", SubjectFor(events.EventTypeBalanceChange))
	assert.Equal(t, "economy.session_settled", SubjectFor(events.EventTypeSessionSettled))
	assert.Len(t, AllSubjects(), len(events.AllEventTypes()))
}

func TestEventForwarder_Forward(t *testing.T) {
	publisher := &fakePublisher{}
	var published []string
	forwarder := NewEventForwarder(publisher, "economy-test", func(eventType string) {
		published = append(published, eventType)
	})

	event := events.BalanceChangeEvent{
		UserID:     "alice",
		OldBalance: 1000,
		NewBalance: 1200,
		Amount:     200,
		Kind:       models.TransactionKindAward,
		Reason:     "roulette win",
	}
	require.NoError(t, forwarder.Forward(context.Background(), event))

	messages := publisher.snapshot()
	require.Len(t, messages, 1)
	assert.Equal(t, "economy.balance_change", messages[0].subject)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(messages[0].data, &envelope))
	assert.Equal(t, "balance_change", envelope.EventType)
	assert.Equal(t, "economy-test", envelope.SourceService)
	assert.WithinDuration(t, time.Now(), envelope.Timestamp, 5*time.Second)
	_, err := uuid.Parse(envelope.EventID)
	assert.NoError(t, err)

	var payload events.BalanceChangeEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, event, payload)

	assert.Equal(t, []string{"balance_change"}, published)
}

func TestEventForwarder_PublishFailure(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("no responders")}
	called := false
	forwarder := NewEventForwarder(publisher, "economy-test", func(string) { called = true })

	err := forwarder.Forward(context.Background(), events.DailyBoostActivatedEvent{UserID: "bob"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no responders")
	assert.False(t, called)
}

func TestEventForwarder_Register(t *testing.T) {
	publisher := &fakePublisher{}
	forwarder := NewEventForwarder(publisher, "economy-test", nil)
	bus := events.NewBus()
	forwarder.Register(bus)

	ctx := context.Background()
	bus.Emit(ctx, events.SessionStartedEvent{SessionKey: "s1", GameType: models.GameTypeRoulette})
	bus.Emit(ctx, events.ExchangeCompletedEvent{Method: models.AcquisitionMethodGift, Cost: 330})

	require.Eventually(t, func() bool {
		return len(publisher.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	subjects := map[string]bool{}
	for _, m := range publisher.snapshot() {
		subjects[m.subject] = true
	}
	assert.True(t, subjects["economy.session_started"])
	assert.True(t, subjects["economy.exchange_completed"])
}

func TestNATSClient_NotConnected(t *testing.T) {
	client := NewNATSClient("nats://127.0.0.1:4222")
	assert.False(t, client.IsConnected())
	assert.Error(t, client.Publish(context.Background(), "economy.balance_change", []byte("{}")))
	assert.Error(t, client.EnsureStream(EventStreamName, AllSubjects()))
	assert.NoError(t, client.Close())
}

package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// memoryPubSub общий канал для нескольких хабов в одном процессе
type memoryPubSub struct {
	mu   sync.Mutex
	subs []chan []byte
}

func (p *memoryPubSub) Publish(channel string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		ch <- message
	}
	return nil
}

func (p *memoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 16)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-ch:
				out <- msg
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *memoryPubSub) Close() error { return nil }

func newRequest(status entity.BonusRequestStatus, progress int) *entity.BonusQuestionRequest {
	return &entity.BonusQuestionRequest{
		ID:                   uuid.New(),
		SourceQuestionIDs:    entity.UintArray{1, 2},
		GenerateVariations:   2,
		GeneratedQuestionIDs: entity.UintArray{10},
		Status:               status,
		Progress:             progress,
	}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw := <-c.send:
		var event struct {
			Type string          `json:"type"`
			Data ProgressPayload `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &event))
		return Event{Type: event.Type, Data: event.Data}
	case <-time.After(time.Second):
		t.Fatal("Событие не доставлено")
		return Event{}
	}
}

func TestHub_PublishToSubscribers(t *testing.T) {
	// Arrange
	hub := NewHub(nil)
	req := newRequest(entity.BonusRetwisting, 27)
	subscriber := NewClient(hub, nil, 7, req.ID)
	other := NewClient(hub, nil, 8, uuid.New())
	hub.Register(subscriber)
	hub.Register(other)

	// Act
	hub.PublishBonusProgress(context.Background(), req)

	// Assert
	event := receive(t, subscriber)
	assert.Equal(t, BONUS_PROGRESS, event.Type)
	payload := event.Data.(ProgressPayload)
	assert.Equal(t, req.ID, payload.RequestID)
	assert.Equal(t, 27, payload.Progress)
	assert.Equal(t, 1, payload.Generated)
	assert.Equal(t, 4, payload.Expected)
	assert.Empty(t, other.send, "Клиент другого запроса не получает событие")
}

func TestHub_EventTypes(t *testing.T) {
	assert.Equal(t, BONUS_AWAITING_APPROVAL, eventTypeFor(entity.BonusAwaitingApproval))
	assert.Equal(t, BONUS_FINISHED, eventTypeFor(entity.BonusCompleted))
	assert.Equal(t, BONUS_FINISHED, eventTypeFor(entity.BonusFailed))
	assert.Equal(t, BONUS_PROGRESS, eventTypeFor(entity.BonusAnalyzing))
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub(nil)
	c := NewClient(hub, nil, 7, uuid.New())
	hub.Register(c)
	require.Equal(t, 1, hub.ClientCount())

	hub.Unregister(c)
	hub.Unregister(c)

	assert.Equal(t, 0, hub.ClientCount())
	_, ok := <-c.send
	assert.False(t, ok, "Канал отправки закрыт")
	assert.False(t, c.enqueue([]byte("{}")))
}

func TestHub_SendSnapshot(t *testing.T) {
	hub := NewHub(nil)
	req := newRequest(entity.BonusFailed, 40)
	req.Error = "cancelled"
	c := NewClient(hub, nil, 7, req.ID)
	hub.Register(c)

	hub.SendSnapshot(c, req)

	event := receive(t, c)
	assert.Equal(t, BONUS_FINISHED, event.Type)
	assert.Equal(t, "cancelled", event.Data.(ProgressPayload).Error)
}

func TestHub_ClusterDelivery(t *testing.T) {
	// Arrange: два узла на общем канале
	bus := &memoryPubSub{}
	first := NewHub(bus)
	second := NewHub(bus)
	require.NoError(t, first.Start())
	require.NoError(t, second.Start())
	defer first.Stop()
	defer second.Stop()

	req := newRequest(entity.BonusAwaitingApproval, 100)
	local := NewClient(first, nil, 7, req.ID)
	remote := NewClient(second, nil, 7, req.ID)
	first.Register(local)
	second.Register(remote)

	// Act
	first.PublishBonusProgress(context.Background(), req)

	// Assert
	assert.Equal(t, BONUS_AWAITING_APPROVAL, receive(t, local).Type)
	assert.Equal(t, BONUS_AWAITING_APPROVAL, receive(t, remote).Type)
	select {
	case <-local.send:
		t.Fatal("Узел не должен получать собственное сообщение повторно")
	case <-time.After(50 * time.Millisecond):
	}
}

package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/metrics"
)

// ProgressChannel канал Pub/Sub, через который узлы кластера обмениваются прогрессом
const ProgressChannel = "bible_tournament:bonus_progress"

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ProgressPayload данные события прогресса бонусного запроса
type ProgressPayload struct {
	RequestID uuid.UUID                 `json:"request_id"`
	Status    entity.BonusRequestStatus `json:"status"`
	Progress  int                       `json:"progress"`
	Error     string                    `json:"error,omitempty"`
	Generated int                       `json:"generated"`
	Expected  int                       `json:"expected"`
}

// ClusterMessage сообщение, передаваемое между экземплярами Hub
type ClusterMessage struct {
	InstanceID string          `json:"instance_id"`
	RequestID  uuid.UUID       `json:"request_id"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Hub рассылает прогресс бонусных запросов подписанным клиентам.
// В кластере события других узлов приходят через PubSubProvider.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	instanceID string
	provider   PubSubProvider

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub создает хаб. provider может быть nil для одиночного режима.
func NewHub(provider PubSubProvider) *Hub {
	if provider == nil {
		provider = &NoOpPubSub{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		instanceID: uuid.New().String(),
		provider:   provider,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start подписывается на события других узлов кластера
func (h *Hub) Start() error {
	msgs, err := h.provider.Subscribe(h.ctx, ProgressChannel)
	if err != nil {
		return err
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for raw := range msgs {
			var msg ClusterMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Printf("[WebSocketHub] Некорректное сообщение кластера: %v", err)
				continue
			}
			if msg.InstanceID == h.instanceID {
				continue
			}
			h.deliverLocal(msg.RequestID, msg.Payload)
		}
	}()
	log.Printf("[WebSocketHub] Хаб %s запущен", h.instanceID)
	return nil
}

// Stop останавливает подписку и закрывает соединения клиентов
func (h *Hub) Stop() {
	h.cancel()
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for requestID, set := range h.clients {
		for c := range set {
			c.CloseSend()
		}
		delete(h.clients, requestID)
	}
	metrics.WebsocketConnections.Set(0)
	if err := h.provider.Close(); err != nil {
		log.Printf("[WebSocketHub] Ошибка закрытия Pub/Sub: %v", err)
	}
}

// Register подписывает клиента на прогресс его запроса
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.RequestID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.RequestID] = set
	}
	set[c] = struct{}{}
	metrics.WebsocketConnections.Inc()
}

// Unregister удаляет клиента и закрывает его канал отправки
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.RequestID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.RequestID)
	}
	c.CloseSend()
	metrics.WebsocketConnections.Dec()
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// PublishBonusProgress отправляет состояние запроса локальным подписчикам и узлам кластера
func (h *Hub) PublishBonusProgress(ctx context.Context, req *entity.BonusQuestionRequest) {
	payload, err := progressEvent(req)
	if err != nil {
		log.Printf("[WebSocketHub] Ошибка сериализации прогресса %s: %v", req.ID, err)
		return
	}

	h.deliverLocal(req.ID, payload)

	msg, err := json.Marshal(ClusterMessage{
		InstanceID: h.instanceID,
		RequestID:  req.ID,
		Payload:    payload,
		Timestamp:  time.Now(),
	})
	if err != nil {
		return
	}
	if err := h.provider.Publish(ProgressChannel, msg); err != nil {
		log.Printf("[WebSocketHub] Ошибка публикации прогресса %s в кластер: %v", req.ID, err)
	}
}

// SendSnapshot отправляет текущее состояние запроса одному клиенту (сразу после подключения)
func (h *Hub) SendSnapshot(c *Client, req *entity.BonusQuestionRequest) {
	payload, err := progressEvent(req)
	if err != nil {
		log.Printf("[WebSocketHub] Ошибка сериализации прогресса %s: %v", req.ID, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c.enqueue(payload)
}

func progressEvent(req *entity.BonusQuestionRequest) ([]byte, error) {
	return json.Marshal(Event{Type: eventTypeFor(req.Status), Data: ProgressPayload{
		RequestID: req.ID,
		Status:    req.Status,
		Progress:  req.Progress,
		Error:     req.Error,
		Generated: len(req.GeneratedQuestionIDs),
		Expected:  req.ExpectedCandidates(),
	}})
}

func (h *Hub) deliverLocal(requestID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[requestID] {
		if !c.enqueue(payload) {
			// Медленный клиент пропускает событие: следующее событие несет полный прогресс
			log.Printf("[WebSocketHub] Буфер клиента %s переполнен, событие пропущено", c.ConnectionID)
		}
	}
}

func eventTypeFor(status entity.BonusRequestStatus) string {
	switch {
	case status == entity.BonusAwaitingApproval:
		return BONUS_AWAITING_APPROVAL
	case status.IsTerminal():
		return BONUS_FINISHED
	default:
		return BONUS_PROGRESS
	}
}

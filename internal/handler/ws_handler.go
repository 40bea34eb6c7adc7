package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"

	"github.com/yourusername/bible-tournament-api/internal/service"
	"github.com/yourusername/bible-tournament-api/internal/websocket"
)

// WSHandler обрабатывает WebSocket соединения прогресса бонусных запросов
type WSHandler struct {
	hub          *websocket.Hub
	bonusService *service.BonusService
	upgrader     gorillaws.Upgrader
}

// NewWSHandler создает новый обработчик WebSocket.
// allowedOrigins синхронизирован с CORS конфигурацией сервера.
func NewWSHandler(hub *websocket.Hub, bonusService *service.BonusService, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WSHandler{
		hub:          hub,
		bonusService: bonusService,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Если Origin пустой - это не браузерный клиент (мобильное приложение, curl и т.д.)
				if origin == "" || allowed[origin] {
					return true
				}
				log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
				return false
			},
		},
	}
}

// HandleBonusProgress подписывает соединение на прогресс запроса.
// Доступ к запросу проверяется до апгрейда соединения.
func (h *WSHandler) HandleBonusProgress(c *gin.Context) {
	userID, tenantID := identity(c)
	requestID := c.MustGet("requestID").(uuid.UUID)

	req, err := h.bonusService.GetRequest(c.Request.Context(), tenantID, requestID)
	if err != nil {
		handleError(c, "WSHandler", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ клиенту
		log.Printf("[WSHandler] Error upgrading connection: %v", err)
		return
	}
	log.Printf("[WSHandler] Connection upgraded for UserID: %d, request %s", userID, requestID)

	client := websocket.NewClient(h.hub, conn, userID, requestID)
	client.Run()
	h.hub.SendSnapshot(client, req)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/domain/repository"
	"github.com/yourusername/bible-tournament-api/internal/middleware"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
	"github.com/yourusername/bible-tournament-api/internal/pkg/clock"
	"github.com/yourusername/bible-tournament-api/internal/repository/memory"
	"github.com/yourusername/bible-tournament-api/internal/service"
	"github.com/yourusername/bible-tournament-api/internal/service/bonuspipeline"
	"github.com/yourusername/bible-tournament-api/internal/service/quizengine"
	"github.com/yourusername/bible-tournament-api/internal/websocket"
	"github.com/yourusername/bible-tournament-api/pkg/auth"
)

const (
	testSecret = "0123456789abcdef0123"
	testTenant = uint(3)
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	router       *gin.Engine
	jwt          *auth.JWTService
	questionRepo *memory.QuestionRepo
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := memory.NewStore()
	clk := clock.NewManual(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	questionRepo := memory.NewQuestionRepo(store)
	logRepo := memory.NewLifecycleLogRepo(store)
	configRepo := memory.NewTournamentConfigRepo(store)

	lifecycle := service.NewLifecycleService(store, questionRepo, logRepo, clk, &service.LifecycleConfig{
		MinimumQuestionsPerCategory: 3,
		HealthWindowDays:            30,
	})
	questions := service.NewQuestionService(store, questionRepo, logRepo, lifecycle)
	allocator := service.NewAllocatorService(store, questionRepo, configRepo, lifecycle, clk, &service.AllocatorConfig{
		DefaultMinimumPerCategory: 3,
		DefaultReleaseMode:        entity.ReleaseImmediate,
	})
	bonus := service.NewBonusService(store, questionRepo, logRepo, memory.NewBonusRequestRepo(store),
		memory.NewPracticeStatsRepo(store), configRepo, nil, lifecycle, nil, clk, bonuspipeline.DefaultConfig())
	t.Cleanup(bonus.Shutdown)
	qualification := service.NewQualificationService(store, questionRepo,
		memory.NewApplicationRepo(store), memory.NewAttemptRepo(store), memory.NewQualificationConfigRepo(store),
		nil, clk, quizengine.DefaultConfig())

	jwtService, err := auth.NewJWTService(testSecret, "")
	require.NoError(t, err)

	router := gin.New()
	RegisterRoutes(router, Handlers{
		Questions:     NewQuestionHandler(questions, lifecycle),
		Tournaments:   NewTournamentHandler(allocator, qualification),
		Bonus:         NewBonusHandler(bonus),
		Qualification: NewQualificationHandler(qualification),
		WS:            NewWSHandler(websocket.NewHub(nil), bonus, nil),
	}, middleware.NewAuthMiddleware(jwtService), middleware.NewRateLimiter(nil))

	return &apiFixture{router: router, jwt: jwtService, questionRepo: questionRepo}
}

func (f *apiFixture) seed(t *testing.T, category string, n int) []uint {
	t.Helper()
	ids := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		q := &entity.Question{
			TenantID:       testTenant,
			Text:           fmt.Sprintf("Question %d about %s?", i+1, category),
			Options:        entity.StringArray{"Moses", "Noah", "Abraham", "David"},
			CorrectOption:  i % 4,
			Category:       category,
			Difficulty:     entity.DifficultyEasy,
			Source:         entity.SourceManual,
			Status:         entity.StatusQuestionPool,
			ApprovalStatus: entity.ApprovalApproved,
		}
		require.NoError(t, f.questionRepo.Create(context.Background(), q))
		ids = append(ids, q.ID)
	}
	return ids
}

func (f *apiFixture) do(t *testing.T, role auth.Role, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	token, err := f.jwt.GenerateToken(7, testTenant, role, time.Hour)
	require.NoError(t, err)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestQuestionFlow(t *testing.T) {
	f := newAPIFixture(t)

	// Arrange & Act: создание ручного вопроса
	w, created := f.do(t, auth.RoleEditor, http.MethodPost, "/api/questions", map[string]interface{}{
		"text":           "Who built the ark?",
		"options":        []string{"Moses", "Noah", "David"},
		"correct_option": 1,
		"category":       "Бытие",
		"difficulty":     "easy",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "draft", created["status"])
	id := uint(created["id"].(float64))

	// Act: отправка на модерацию переводит ручной вопрос сразу в пул
	w, submitted := f.do(t, auth.RoleEditor, http.MethodPost, fmt.Sprintf("/api/questions/%d/submit", id), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "question_pool", submitted["status"])
	assert.Equal(t, "approved", submitted["approval_status"])

	// Assert: история содержит оба перехода
	w, _ = f.do(t, auth.RoleReviewer, http.MethodGet, fmt.Sprintf("/api/questions/%d/history", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history, 2)

	// Недопустимый переход пул -> черновик
	w, _ = f.do(t, auth.RoleEditor, http.MethodPost, fmt.Sprintf("/api/questions/%d/transition", id), map[string]string{"to": "draft"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateQuestion_ValidationErrors(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"пустое тело", nil},
		{"один вариант", map[string]interface{}{"text": "Who?", "options": []string{"Noah"}, "correct_option": 0, "category": "Бытие", "difficulty": "easy"}},
		{"нет правильного ответа", map[string]interface{}{"text": "Who?", "options": []string{"Noah", "Moses"}, "category": "Бытие", "difficulty": "easy"}},
		{"неизвестная сложность", map[string]interface{}{"text": "Who?", "options": []string{"Noah", "Moses"}, "correct_option": 0, "category": "Бытие", "difficulty": "legendary"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := f.do(t, auth.RoleEditor, http.MethodPost, "/api/questions", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Invalid request data", resp["error"])
		})
	}
}

func TestPermissions(t *testing.T) {
	f := newAPIFixture(t)

	w, _ := f.do(t, auth.RoleParticipant, http.MethodPost, "/api/questions", map[string]interface{}{})
	assert.Equal(t, http.StatusForbidden, w.Code, "Участник не создает вопросы")

	w, _ = f.do(t, auth.RoleEditor, http.MethodPut, "/api/tournaments/5/questions", map[string]interface{}{"question_ids": []uint{1}})
	assert.Equal(t, http.StatusForbidden, w.Code, "Редактор не управляет турнирами")

	w, _ = f.do(t, auth.RoleParticipant, http.MethodGet, "/api/questions/stats/status-distribution", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTournamentSaveConfig(t *testing.T) {
	f := newAPIFixture(t)
	genesis := f.seed(t, "Бытие", 3)
	exodus := f.seed(t, "Исход", 2)

	// Недостаточно вопросов в категории "Исход": сохраняется как невалидный
	w, resp := f.do(t, auth.RoleAdmin, http.MethodPut, "/api/tournaments/5/questions", map[string]interface{}{
		"question_ids": append(append([]uint{}, genesis...), exodus...),
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	validation, ok := resp["validation"].(map[string]interface{})
	require.True(t, ok, "Ответ 422 содержит результат валидации: %s", w.Body.String())
	assert.Equal(t, false, validation["valid"])
	assert.NotEmpty(t, validation["errors"], "Указана категория с недобором")
	cfg, ok := resp["config"].(map[string]interface{})
	require.True(t, ok, "Ответ 422 содержит сохраненную конфигурацию")
	assert.Equal(t, "invalid", cfg["validation_status"])
	assert.Empty(t, resp["reserved_question_ids"], "Невалидный набор ничего не резервирует")

	// Без "Исхода" набор валиден и резервирует вопросы
	w, resp = f.do(t, auth.RoleAdmin, http.MethodPut, "/api/tournaments/5/questions", map[string]interface{}{
		"question_ids": genesis,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, resp["reserved_question_ids"], 3)

	w, _ = f.do(t, auth.RoleAdmin, http.MethodPost, "/api/tournaments/5/activate", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = f.do(t, auth.RoleAdmin, http.MethodPost, "/api/tournaments/5/end", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Немедленный возврат уже выполнен при завершении
	w, _ = f.do(t, auth.RoleAdmin, http.MethodPost, "/api/tournaments/5/release-practice", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSelectQuestions_AutoFill(t *testing.T) {
	f := newAPIFixture(t)
	ids := f.seed(t, "Бытие", 5)

	w, resp := f.do(t, auth.RoleAdmin, http.MethodPost, "/api/tournaments/5/questions/select", map[string]interface{}{
		"question_ids": ids[:1],
		"auto_fill":    []string{"Бытие"},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, resp["question_ids"], 3, "Категория добрана до минимума")
	assert.Equal(t, true, resp["validation"].(map[string]interface{})["valid"])
}

func TestSelectQuestions_AutoFillExhausted(t *testing.T) {
	// Arrange: в категории "Руфь" только два вопроса при минимуме три
	f := newAPIFixture(t)
	genesis := f.seed(t, "Бытие", 3)
	ruth := f.seed(t, "Руфь", 2)

	// Act
	w, resp := f.do(t, auth.RoleAdmin, http.MethodPost, "/api/tournaments/5/questions/select", map[string]interface{}{
		"question_ids": genesis,
		"auto_fill":    []string{"Руфь"},
	})

	// Assert: частично добранный набор возвращается вместе с предупреждением
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, resp["question_ids"], len(genesis)+len(ruth), "Доступные вопросы добавлены")
	warnings := resp["warnings"].([]interface{})
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Руфь")
	assert.Equal(t, false, resp["validation"].(map[string]interface{})["valid"])
}

func TestQualificationFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.seed(t, "Бытие", 12)

	// Act: старт первой попытки
	w, attempt := f.do(t, auth.RoleParticipant, http.MethodPost, "/api/tournaments/9/attempts", map[string]int{"attempt_number": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	questions := attempt["questions"].([]interface{})
	assert.Len(t, questions, 10)
	first := questions[0].(map[string]interface{})
	assert.NotContains(t, first, "correct_option", "Правильный ответ не раскрывается")
	assert.Len(t, first["options"], 4)

	// Вторая попытка при незавершенной первой
	w, _ = f.do(t, auth.RoleParticipant, http.MethodPost, "/api/tournaments/9/attempts", map[string]int{"attempt_number": 2})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Итоговый балл еще не готов
	w, _ = f.do(t, auth.RoleParticipant, http.MethodGet, "/api/tournaments/9/application/final-score", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Act: отправка без ответов
	attemptID := uint(attempt["attempt_id"].(float64))
	w, result := f.do(t, auth.RoleParticipant, http.MethodPost,
		fmt.Sprintf("/api/tournaments/9/attempts/%d/submit", attemptID), map[string]interface{}{"answers": map[string]int{}})

	// Assert
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(0), result["score"])
	assert.Equal(t, false, result["passed"])
	assert.Equal(t, "awaiting_retry", result["application_status"])
	assert.Equal(t, float64(2), result["remaining_attempts"])

	w, app := f.do(t, auth.RoleParticipant, http.MethodGet, "/api/tournaments/9/application", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, app["quiz_attempts"], 1)
}

func TestSubmitAttempt_BadAnswerKeys(t *testing.T) {
	f := newAPIFixture(t)

	w, _ := f.do(t, auth.RoleParticipant, http.MethodPost, "/api/tournaments/9/attempts/1/submit",
		map[string]interface{}{"answers": map[string]int{"abc": 1}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBonusEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	w, resp := f.do(t, auth.RoleParticipant, http.MethodGet, "/api/bonus/eligibility", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, resp["eligible"], "Без практики бонусы недоступны")

	w, _ = f.do(t, auth.RoleParticipant, http.MethodGet, "/api/bonus/requests/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, auth.RoleParticipant, http.MethodPost, "/api/bonus/requests/6f1c7f0e-6a7b-4f63-9d4e-2f6f0d1b7a11/approve",
		map[string]interface{}{"question_ids": []uint{1}, "destination": "pool"})
	assert.Equal(t, http.StatusForbidden, w.Code, "Участник не одобряет вопросы")

	w, _ = f.do(t, auth.RoleReviewer, http.MethodGet, "/api/bonus/requests/6f1c7f0e-6a7b-4f63-9d4e-2f6f0d1b7a11", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebSocketRequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/bonus-requests/6f1c7f0e-6a7b-4f63-9d4e-2f6f0d1b7a11", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"не найдено", fmt.Errorf("question 5: %w", apperrors.ErrNotFound), http.StatusNotFound},
		{"конфликт", service.ErrInvalidTransition, http.StatusConflict},
		{"активная попытка", repository.ErrActiveAttemptExists, http.StatusConflict},
		{"повторная заявка", repository.ErrDuplicateApplication, http.StatusConflict},
		{"валидация", service.ErrEmptySelection, http.StatusUnprocessableEntity},
		{"покрытие категории", &service.CategoryCoverageError{Category: "Исход", Selected: 1, Minimum: 3, Needed: 2}, http.StatusUnprocessableEntity},
		{"лимит уровня", service.ErrTierLimitExceeded, http.StatusUnprocessableEntity},
		{"чужой запрос", service.ErrNotRequestOwner, http.StatusForbidden},
		{"внутренняя", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			handleError(c, "Test", tt.err)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

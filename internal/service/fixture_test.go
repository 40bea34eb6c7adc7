package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/pkg/clock"
	"github.com/yourusername/bible-tournament-api/internal/repository/memory"
	"github.com/yourusername/bible-tournament-api/internal/service/bonuspipeline"
	"github.com/yourusername/bible-tournament-api/internal/service/quizengine"
)

var testStart = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// fixture собирает все сервисы над одним хранилищем в памяти
type fixture struct {
	ctx          context.Context
	store        *memory.Store
	clock        *clock.Manual
	questionRepo *memory.QuestionRepo
	logRepo      *memory.LifecycleLogRepo
	configRepo   *memory.TournamentConfigRepo
	requestRepo  *memory.BonusRequestRepo

	lifecycle     *LifecycleService
	questions     *QuestionService
	allocator     *AllocatorService
	bonus         *BonusService
	qualification *QualificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	clk := clock.NewManual(testStart)
	f := &fixture{
		ctx:          context.Background(),
		store:        store,
		clock:        clk,
		questionRepo: memory.NewQuestionRepo(store),
		logRepo:      memory.NewLifecycleLogRepo(store),
		configRepo:   memory.NewTournamentConfigRepo(store),
		requestRepo:  memory.NewBonusRequestRepo(store),
	}

	f.lifecycle = NewLifecycleService(store, f.questionRepo, f.logRepo, clk, &LifecycleConfig{
		MinimumQuestionsPerCategory: 3,
		HealthWindowDays:            30,
	})
	f.questions = NewQuestionService(store, f.questionRepo, f.logRepo, f.lifecycle)
	f.allocator = NewAllocatorService(store, f.questionRepo, f.configRepo, f.lifecycle, clk, &AllocatorConfig{
		DefaultMinimumPerCategory: 3,
		DefaultReleaseMode:        entity.ReleaseImmediate,
	})
	f.bonus = NewBonusService(store, f.questionRepo, f.logRepo, f.requestRepo,
		memory.NewPracticeStatsRepo(store), f.configRepo, nil, f.lifecycle, nil, clk, bonuspipeline.DefaultConfig())
	f.qualification = NewQualificationService(store, f.questionRepo,
		memory.NewApplicationRepo(store), memory.NewAttemptRepo(store), memory.NewQualificationConfigRepo(store),
		nil, clk, quizengine.DefaultConfig())

	t.Cleanup(f.bonus.Shutdown)
	return f
}

// seed создает n одобренных ручных вопросов в заданном статусе в обход движка жизненного цикла
func (f *fixture) seed(t *testing.T, tenantID uint, category string, status entity.QuestionStatus, n int) []entity.Question {
	t.Helper()
	out := make([]entity.Question, 0, n)
	for i := 0; i < n; i++ {
		q := &entity.Question{
			TenantID:       tenantID,
			Text:           fmt.Sprintf("Who is mentioned in %s, question %d?", category, i+1),
			Options:        entity.StringArray{"Moses", "Noah", "Abraham", "David"},
			CorrectOption:  i % 4,
			Category:       category,
			Difficulty:     entity.DifficultyMedium,
			Source:         entity.SourceManual,
			Status:         status,
			ApprovalStatus: entity.ApprovalApproved,
		}
		require.NoError(t, f.questionRepo.Create(f.ctx, q))
		out = append(out, *q)
	}
	return out
}

func (f *fixture) question(t *testing.T, id uint) *entity.Question {
	t.Helper()
	q, err := f.questionRepo.GetByID(f.ctx, id)
	require.NoError(t, err)
	return q
}

func idsOf(questions []entity.Question) []uint {
	ids := make([]uint, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	return ids
}

func intPtr(v int) *int { return &v }

func uintPtr(v uint) *uint { return &v }

// MockCacheRepository реализует repository.CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepository) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, expiration)
	return args.Bool(0), args.Error(1)
}

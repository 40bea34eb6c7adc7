package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

// TournamentConfigRepo реализует repository.TournamentConfigRepository в памяти
type TournamentConfigRepo struct {
	s *Store
}

// NewTournamentConfigRepo создает репозиторий конфигураций турниров
func NewTournamentConfigRepo(s *Store) *TournamentConfigRepo {
	return &TournamentConfigRepo{s: s}
}

// Get возвращает конфигурацию турнира
func (r *TournamentConfigRepo) Get(ctx context.Context, tournamentID uint) (*entity.TournamentQuestionConfig, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.configs[tournamentID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return c.Clone(), nil
}

// GetForUpdate совпадает с Get: транзакция держит блокировку хранилища
func (r *TournamentConfigRepo) GetForUpdate(ctx context.Context, tournamentID uint) (*entity.TournamentQuestionConfig, error) {
	return r.Get(ctx, tournamentID)
}

// Save создает или обновляет конфигурацию
func (r *TournamentConfigRepo) Save(ctx context.Context, config *entity.TournamentQuestionConfig) error {
	defer r.s.lock(ctx)()
	now := time.Now()
	if config.CreatedAt.IsZero() {
		config.CreatedAt = now
	}
	config.UpdatedAt = now
	r.s.configs[config.TournamentID] = config.Clone()
	return nil
}

// ListAwaitingRelease возвращает завершенные турниры без возврата вопросов в практику
func (r *TournamentConfigRepo) ListAwaitingRelease(ctx context.Context) ([]entity.TournamentQuestionConfig, error) {
	defer r.s.lock(ctx)()
	out := make([]entity.TournamentQuestionConfig, 0)
	for _, c := range r.s.configs {
		if c.EndedAt != nil && c.PracticeReleasedAt == nil {
			out = append(out, *c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TournamentID < out[j].TournamentID })
	return out, nil
}

// QualificationConfigRepo реализует repository.QualificationConfigRepository в памяти
type QualificationConfigRepo struct {
	s *Store
}

// NewQualificationConfigRepo создает репозиторий настроек квалификации
func NewQualificationConfigRepo(s *Store) *QualificationConfigRepo {
	return &QualificationConfigRepo{s: s}
}

// GetByTournament возвращает настройки теста турнира
func (r *QualificationConfigRepo) GetByTournament(ctx context.Context, tournamentID uint) (*entity.TournamentQualificationConfig, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.qualifications[tournamentID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	v := *c
	return &v, nil
}

// Save создает или обновляет настройки теста
func (r *QualificationConfigRepo) Save(ctx context.Context, config *entity.TournamentQualificationConfig) error {
	defer r.s.lock(ctx)()
	v := *config
	r.s.qualifications[config.TournamentID] = &v
	return nil
}

// BonusRequestRepo реализует repository.BonusRequestRepository в памяти
type BonusRequestRepo struct {
	s *Store
}

// NewBonusRequestRepo создает репозиторий бонусных запросов
func NewBonusRequestRepo(s *Store) *BonusRequestRepo {
	return &BonusRequestRepo{s: s}
}

// Create сохраняет новый запрос
func (r *BonusRequestRepo) Create(ctx context.Context, request *entity.BonusQuestionRequest) error {
	defer r.s.lock(ctx)()
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	now := time.Now()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	r.s.bonusRequests[request.ID] = request.Clone()
	return nil
}

// GetByID возвращает запрос по ID
func (r *BonusRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.BonusQuestionRequest, error) {
	defer r.s.lock(ctx)()
	req, ok := r.s.bonusRequests[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return req.Clone(), nil
}

// GetForUpdate совпадает с GetByID: транзакция держит блокировку хранилища
func (r *BonusRequestRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.BonusQuestionRequest, error) {
	return r.GetByID(ctx, id)
}

// Update сохраняет запрос
func (r *BonusRequestRepo) Update(ctx context.Context, request *entity.BonusQuestionRequest) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.bonusRequests[request.ID]; !ok {
		return apperrors.ErrNotFound
	}
	request.UpdatedAt = time.Now()
	r.s.bonusRequests[request.ID] = request.Clone()
	return nil
}

// ListByUserSince возвращает запросы пользователя, созданные не раньше since
func (r *BonusRequestRepo) ListByUserSince(ctx context.Context, tenantID, userID uint, since time.Time) ([]entity.BonusQuestionRequest, error) {
	defer r.s.lock(ctx)()
	out := make([]entity.BonusQuestionRequest, 0)
	for _, req := range r.s.bonusRequests {
		if req.TenantID == tenantID && req.RequestedBy == userID && !req.CreatedAt.Before(since) {
			out = append(out, *req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListResumable возвращает незавершенные запросы с переформулированием
func (r *BonusRequestRepo) ListResumable(ctx context.Context) ([]entity.BonusQuestionRequest, error) {
	defer r.s.lock(ctx)()
	out := make([]entity.BonusQuestionRequest, 0)
	for _, req := range r.s.bonusRequests {
		if req.UseDirectly || req.Status.IsTerminal() || req.Status == entity.BonusAwaitingApproval {
			continue
		}
		out = append(out, *req.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// PracticeStatsRepo реализует repository.PracticeStatsRepository в памяти
type PracticeStatsRepo struct {
	s *Store
}

// NewPracticeStatsRepo создает репозиторий статистики практики
func NewPracticeStatsRepo(s *Store) *PracticeStatsRepo {
	return &PracticeStatsRepo{s: s}
}

// Get возвращает статистику пользователя
func (r *PracticeStatsRepo) Get(ctx context.Context, tenantID, userID uint) (*entity.PracticeStats, error) {
	defer r.s.lock(ctx)()
	stats, ok := r.s.practiceStats[[2]uint{tenantID, userID}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &stats, nil
}

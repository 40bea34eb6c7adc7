package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/domain/repository"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

// ApplicationRepo реализует repository.ApplicationRepository в памяти
type ApplicationRepo struct {
	s *Store
}

// NewApplicationRepo создает репозиторий заявок
func NewApplicationRepo(s *Store) *ApplicationRepo {
	return &ApplicationRepo{s: s}
}

// Create сохраняет новую заявку
func (r *ApplicationRepo) Create(ctx context.Context, application *entity.TournamentApplication) error {
	defer r.s.lock(ctx)()
	for _, a := range r.s.applications {
		if a.TournamentID == application.TournamentID && a.UserID == application.UserID {
			return repository.ErrDuplicateApplication
		}
	}
	r.s.nextApplicationID++
	application.ID = r.s.nextApplicationID
	now := time.Now()
	application.CreatedAt = now
	application.UpdatedAt = now
	stored := application.Clone()
	stored.QuizAttempts = nil
	r.s.applications[application.ID] = stored
	return nil
}

// GetByID возвращает заявку с попытками
func (r *ApplicationRepo) GetByID(ctx context.Context, id uint) (*entity.TournamentApplication, error) {
	defer r.s.lock(ctx)()
	return r.s.loadApplication(id)
}

// GetByTournamentAndUser возвращает заявку пользователя на турнир
func (r *ApplicationRepo) GetByTournamentAndUser(ctx context.Context, tournamentID, userID uint) (*entity.TournamentApplication, error) {
	defer r.s.lock(ctx)()
	for id, a := range r.s.applications {
		if a.TournamentID == tournamentID && a.UserID == userID {
			return r.s.loadApplication(id)
		}
	}
	return nil, apperrors.ErrNotFound
}

// GetForUpdate совпадает с GetByID: транзакция держит блокировку хранилища
func (r *ApplicationRepo) GetForUpdate(ctx context.Context, id uint) (*entity.TournamentApplication, error) {
	return r.GetByID(ctx, id)
}

// Update сохраняет поля заявки без попыток
func (r *ApplicationRepo) Update(ctx context.Context, application *entity.TournamentApplication) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.applications[application.ID]; !ok {
		return apperrors.ErrNotFound
	}
	application.UpdatedAt = time.Now()
	stored := application.Clone()
	stored.QuizAttempts = nil
	r.s.applications[application.ID] = stored
	return nil
}

func (s *Store) loadApplication(id uint) (*entity.TournamentApplication, error) {
	a, ok := s.applications[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := a.Clone()
	out.QuizAttempts = make([]entity.QuizAttempt, 0)
	for _, attempt := range s.attempts {
		if attempt.ApplicationID == id {
			out.QuizAttempts = append(out.QuizAttempts, *attempt.Clone())
		}
	}
	sort.Slice(out.QuizAttempts, func(i, j int) bool {
		return out.QuizAttempts[i].AttemptNumber < out.QuizAttempts[j].AttemptNumber
	})
	return out, nil
}

// AttemptRepo реализует repository.AttemptRepository в памяти
type AttemptRepo struct {
	s *Store
}

// NewAttemptRepo создает репозиторий попыток
func NewAttemptRepo(s *Store) *AttemptRepo {
	return &AttemptRepo{s: s}
}

// Create сохраняет новую попытку. Как и частичный уникальный индекс в PostgreSQL,
// запрещает вторую попытку in_progress и повтор номера попытки.
func (r *AttemptRepo) Create(ctx context.Context, attempt *entity.QuizAttempt) error {
	defer r.s.lock(ctx)()
	for _, a := range r.s.attempts {
		if a.ApplicationID != attempt.ApplicationID {
			continue
		}
		if a.Status == entity.AttemptInProgress && attempt.Status == entity.AttemptInProgress {
			return repository.ErrActiveAttemptExists
		}
		if a.AttemptNumber == attempt.AttemptNumber {
			return apperrors.ErrConflict
		}
	}
	r.s.nextAttemptID++
	attempt.ID = r.s.nextAttemptID
	r.s.attempts[attempt.ID] = attempt.Clone()
	return nil
}

// GetByID возвращает попытку
func (r *AttemptRepo) GetByID(ctx context.Context, id uint) (*entity.QuizAttempt, error) {
	defer r.s.lock(ctx)()
	a, ok := r.s.attempts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a.Clone(), nil
}

// Update сохраняет попытку
func (r *AttemptRepo) Update(ctx context.Context, attempt *entity.QuizAttempt) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.attempts[attempt.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.s.attempts[attempt.ID] = attempt.Clone()
	return nil
}

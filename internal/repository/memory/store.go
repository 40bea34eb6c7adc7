// Package memory содержит реализацию репозиториев в памяти процесса.
// Используется в тестах сервисов и при локальном запуске без PostgreSQL.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

type txKey struct{}

// Store хранит все коллекции в памяти.
// Транзакции сериализуются; при ошибке состояние восстанавливается из снимка.
type Store struct {
	mu sync.Mutex

	questions      map[uint]*entity.Question
	logs           []entity.QuestionLifecycleLog
	configs        map[uint]*entity.TournamentQuestionConfig
	qualifications map[uint]*entity.TournamentQualificationConfig
	bonusRequests  map[uuid.UUID]*entity.BonusQuestionRequest
	applications   map[uint]*entity.TournamentApplication
	attempts       map[uint]*entity.QuizAttempt
	practiceStats  map[[2]uint]entity.PracticeStats

	nextQuestionID    uint
	nextLogID         uint
	nextApplicationID uint
	nextAttemptID     uint
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		questions:      make(map[uint]*entity.Question),
		configs:        make(map[uint]*entity.TournamentQuestionConfig),
		qualifications: make(map[uint]*entity.TournamentQualificationConfig),
		bonusRequests:  make(map[uuid.UUID]*entity.BonusQuestionRequest),
		applications:   make(map[uint]*entity.TournamentApplication),
		attempts:       make(map[uint]*entity.QuizAttempt),
		practiceStats:  make(map[[2]uint]entity.PracticeStats),
	}
}

// WithinTx реализует repository.Transactor
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// lock берет блокировку хранилища вне транзакции.
// Внутри транзакции блокировка уже удерживается WithinTx.
func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// SetPracticeStats записывает статистику практики пользователя
func (s *Store) SetPracticeStats(stats entity.PracticeStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.practiceStats[[2]uint{stats.TenantID, stats.UserID}] = stats
}

type snapshot struct {
	questions      map[uint]*entity.Question
	logsLen        int
	configs        map[uint]*entity.TournamentQuestionConfig
	qualifications map[uint]*entity.TournamentQualificationConfig
	bonusRequests  map[uuid.UUID]*entity.BonusQuestionRequest
	applications   map[uint]*entity.TournamentApplication
	attempts       map[uint]*entity.QuizAttempt
	counters       [4]uint
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		questions:      make(map[uint]*entity.Question, len(s.questions)),
		logsLen:        len(s.logs),
		configs:        make(map[uint]*entity.TournamentQuestionConfig, len(s.configs)),
		qualifications: make(map[uint]*entity.TournamentQualificationConfig, len(s.qualifications)),
		bonusRequests:  make(map[uuid.UUID]*entity.BonusQuestionRequest, len(s.bonusRequests)),
		applications:   make(map[uint]*entity.TournamentApplication, len(s.applications)),
		attempts:       make(map[uint]*entity.QuizAttempt, len(s.attempts)),
		counters:       [4]uint{s.nextQuestionID, s.nextLogID, s.nextApplicationID, s.nextAttemptID},
	}
	for id, q := range s.questions {
		snap.questions[id] = q.Clone()
	}
	for id, c := range s.configs {
		snap.configs[id] = c.Clone()
	}
	for id, c := range s.qualifications {
		v := *c
		snap.qualifications[id] = &v
	}
	for id, r := range s.bonusRequests {
		snap.bonusRequests[id] = r.Clone()
	}
	for id, a := range s.applications {
		snap.applications[id] = a.Clone()
	}
	for id, a := range s.attempts {
		snap.attempts[id] = a.Clone()
	}
	return snap
}

// restore откатывает хранилище к снимку. Журнал только дополняется, поэтому достаточно обрезать хвост.
func (s *Store) restore(snap snapshot) {
	s.questions = snap.questions
	s.logs = s.logs[:snap.logsLen]
	s.configs = snap.configs
	s.qualifications = snap.qualifications
	s.bonusRequests = snap.bonusRequests
	s.applications = snap.applications
	s.attempts = snap.attempts
	s.nextQuestionID, s.nextLogID, s.nextApplicationID, s.nextAttemptID =
		snap.counters[0], snap.counters[1], snap.counters[2], snap.counters[3]
}

// Package scheduler запускает периодические задачи API процесса.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// PracticeReleaser возвращает в практику вопросы турниров, у которых истекла задержка
type PracticeReleaser interface {
	ReleaseDuePractice(ctx context.Context, now time.Time) (int, error)
}

// PracticeReleaseScheduler периодически выполняет отложенный возврат вопросов в практику
type PracticeReleaseScheduler struct {
	cron     *cron.Cron
	releaser PracticeReleaser
	timeout  time.Duration
	now      func() time.Time
}

// NewPracticeReleaseScheduler регистрирует задачу по расписанию (формат cron или "@every 5m")
func NewPracticeReleaseScheduler(releaser PracticeReleaser, spec string) (*PracticeReleaseScheduler, error) {
	s := &PracticeReleaseScheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		releaser: releaser,
		timeout:  4 * time.Minute,
		now:      time.Now,
	}
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("invalid practice release schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce выполняет один проход и возвращает количество турниров, вопросы которых вернулись в практику
func (s *PracticeReleaseScheduler) RunOnce(ctx context.Context) int {
	released, err := s.releaser.ReleaseDuePractice(ctx, s.now())
	if err != nil {
		log.Printf("[Scheduler] Ошибка отложенного возврата в практику: %v", err)
	}
	if released > 0 {
		log.Printf("[Scheduler] Вопросы %d турнир(ов) возвращены в практику", released)
	}
	return released
}

// Start запускает расписание в фоне
func (s *PracticeReleaseScheduler) Start() {
	s.cron.Start()
	log.Printf("[Scheduler] Планировщик возврата в практику запущен")
}

// Stop останавливает расписание и ждет завершения текущего прохода
func (s *PracticeReleaseScheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		log.Printf("[Scheduler] Проход возврата в практику не завершился до остановки")
	}
}

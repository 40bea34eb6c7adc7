package bonuspipeline

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
)

// ErrJobCancelled причина отмены, записываемая в запрос
var ErrJobCancelled = errors.New("cancelled")

// JobRunner запускает задачи переформулирования в фоне и хранит токены отмены
type JobRunner struct {
	cancels sync.Map // map[uuid.UUID]context.CancelCauseFunc
	wg      sync.WaitGroup
}

// NewJobRunner создает пустой планировщик задач
func NewJobRunner() *JobRunner {
	return &JobRunner{}
}

// Start запускает fn в отдельной горутине. Повторный запуск той же задачи запрещен.
func (r *JobRunner) Start(parent context.Context, id uuid.UUID, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancelCause(parent)
	if _, loaded := r.cancels.LoadOrStore(id, cancel); loaded {
		cancel(nil)
		return ErrJobAlreadyRunning
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.cancels.Delete(id)
			cancel(nil)
		}()

		if err := fn(ctx); err != nil {
			log.Printf("[BonusJobs] Задача %s завершилась с ошибкой: %v", id, err)
		}
	}()
	return nil
}

// Cancel отменяет задачу. Возвращает false, если задача не выполняется в этом процессе.
func (r *JobRunner) Cancel(id uuid.UUID) bool {
	v, ok := r.cancels.Load(id)
	if !ok {
		return false
	}
	v.(context.CancelCauseFunc)(ErrJobCancelled)
	return true
}

// IsRunning сообщает, выполняется ли задача
func (r *JobRunner) IsRunning(id uuid.UUID) bool {
	_, ok := r.cancels.Load(id)
	return ok
}

// Wait блокируется до завершения всех задач
func (r *JobRunner) Wait() {
	r.wg.Wait()
}

// Shutdown отменяет все задачи и ждет их завершения
func (r *JobRunner) Shutdown() {
	r.cancels.Range(func(key, value interface{}) bool {
		value.(context.CancelCauseFunc)(context.Canceled)
		return true
	})
	r.wg.Wait()
}

package quizengine

import (
	"math/rand"
	"sort"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// AttemptPlan набор вопросов попытки и порядок их вариантов
type AttemptPlan struct {
	QuestionIDs  []uint
	OptionOrders entity.OptionOrders
}

// BuildAttemptPlan детерминированно выбирает count вопросов из candidates и перемешивает варианты.
// Порядок кандидатов на входе не влияет на результат: они сортируются по ID.
// Если кандидатов меньше count, в попытку попадают все.
func BuildAttemptPlan(candidates []entity.Question, count int, seed int64, shuffleOptions bool) (*AttemptPlan, error) {
	if len(candidates) == 0 || count <= 0 {
		return nil, ErrNoQuestionsAvailable
	}

	pool := make([]entity.Question, len(candidates))
	copy(pool, candidates)
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	if count > len(pool) {
		count = len(pool)
	}
	selected := pool[:count]

	plan := &AttemptPlan{
		QuestionIDs:  make([]uint, 0, count),
		OptionOrders: make(entity.OptionOrders, count),
	}
	for _, q := range selected {
		plan.QuestionIDs = append(plan.QuestionIDs, q.ID)
		order := identityOrder(q.OptionsCount())
		if shuffleOptions {
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		plan.OptionOrders[q.ID] = order
	}
	return plan, nil
}

func identityOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// DisplayedOptions возвращает варианты вопроса в порядке, показанном участнику
func DisplayedOptions(q entity.Question, order []int) []string {
	if len(order) != len(q.Options) {
		return append([]string(nil), q.Options...)
	}
	out := make([]string, len(order))
	for pos, original := range order {
		out[pos] = q.Options[original]
	}
	return out
}

package quizengine

import (
	"math"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// ScoreResult результат подсчета баллов попытки
type ScoreResult struct {
	Correct int
	Total   int
	Percent float64
	Passed  bool
}

// ScoreAttempt считает процент правильных ответов попытки.
// Ответы хранятся в показанном порядке и переводятся в исходный индекс через OptionOrders.
// Попытка без вопросов не оценивается.
func ScoreAttempt(attempt *entity.QuizAttempt, questions map[uint]entity.Question, passPercentage float64) (ScoreResult, error) {
	total := len(attempt.QuestionsShown)
	if total == 0 {
		return ScoreResult{}, ErrNoQuestionsAvailable
	}

	correct := 0
	for _, id := range attempt.QuestionsShown {
		q, ok := questions[id]
		if !ok {
			continue
		}
		displayed, answered := attempt.Answers[id]
		if !answered {
			continue
		}
		original, ok := originalIndex(attempt.OptionOrders[id], displayed)
		if !ok || !q.IsValidOption(original) {
			continue
		}
		if q.IsCorrect(original) {
			correct++
		}
	}

	// Порог сравнивается с точным значением, округляется только сохраняемый балл
	return ScoreResult{
		Correct: correct,
		Total:   total,
		Percent: roundScore(float64(correct) * 100 / float64(total)),
		Passed:  float64(correct)*100 >= passPercentage*float64(total),
	}, nil
}

func originalIndex(order []int, displayed int) (int, bool) {
	if len(order) == 0 {
		return displayed, true
	}
	if displayed < 0 || displayed >= len(order) {
		return 0, false
	}
	return order[displayed], true
}

// FinalScore агрегирует баллы попыток. scores упорядочены по номеру попытки.
func FinalScore(scores []float64, method entity.ScoringMethod) (float64, error) {
	if len(scores) == 0 {
		return 0, ErrFinalScoreNotReady
	}

	switch method {
	case entity.ScoringAverage:
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		return roundScore(sum / float64(len(scores))), nil
	case entity.ScoringBest:
		best := scores[0]
		for _, s := range scores[1:] {
			if s > best {
				best = s
			}
		}
		return best, nil
	case entity.ScoringLatest:
		return scores[len(scores)-1], nil
	}
	return 0, ErrUnknownScoringMethod
}

// roundScore округляет до сотых
func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}

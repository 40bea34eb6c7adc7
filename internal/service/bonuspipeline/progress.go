package bonuspipeline

import "github.com/yourusername/bible-tournament-api/internal/domain/entity"

// Прогресс: analyzing занимает первые пять процентов, генерация кандидатов - до 95,
// переход в awaiting_approval выставляет 100.
const (
	progressAnalyzed  = 5
	progressGenerated = 95
)

// AnalyzedProgress прогресс после завершения анализа
func AnalyzedProgress() int {
	return progressAnalyzed
}

// CandidateProgress прогресс после производства produced из total кандидатов
func CandidateProgress(produced, total int) int {
	if total <= 0 {
		return progressGenerated
	}
	if produced > total {
		produced = total
	}
	return progressAnalyzed + (progressGenerated-progressAnalyzed)*produced/total
}

// PhaseFor возвращает статус запроса для кандидата с порядковым номером index.
// Первая вариация каждого исходного вопроса - переформулирование,
// последующие - генерация вариаций.
func PhaseFor(index, sourceCount int) entity.BonusRequestStatus {
	if index < sourceCount {
		return entity.BonusRetwisting
	}
	return entity.BonusGeneratingVariations
}

// CandidateSource возвращает позицию исходного вопроса и номер вариации для кандидата index
func CandidateSource(index, sourceCount int) (sourcePos, variant int) {
	return index % sourceCount, index / sourceCount
}

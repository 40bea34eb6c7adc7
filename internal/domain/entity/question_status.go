package entity

// QuestionStatus состояние вопроса в пайплайне жизненного цикла
type QuestionStatus string

const (
	StatusDraft              QuestionStatus = "draft"
	StatusAIPendingReview    QuestionStatus = "ai_pending_review"
	StatusQuestionPool       QuestionStatus = "question_pool"
	StatusTournamentReserved QuestionStatus = "tournament_reserved"
	StatusTournamentActive   QuestionStatus = "tournament_active"
	StatusRecentTournament   QuestionStatus = "recent_tournament"
	StatusArchived           QuestionStatus = "archived"
)

// AllQuestionStatuses возвращает все состояния в порядке пайплайна
func AllQuestionStatuses() []QuestionStatus {
	return []QuestionStatus{
		StatusDraft,
		StatusAIPendingReview,
		StatusQuestionPool,
		StatusTournamentReserved,
		StatusTournamentActive,
		StatusRecentTournament,
		StatusArchived,
	}
}

// IsValid проверяет, что значение входит в закрытый набор
func (s QuestionStatus) IsValid() bool {
	_, ok := lifecycleEdges[s]
	return ok
}

// lifecycleEdges - закрытая таблица допустимых переходов.
// RecentTournament -> QuestionPool используется для возврата вопросов в практику.
var lifecycleEdges = map[QuestionStatus][]QuestionStatus{
	StatusDraft:              {StatusAIPendingReview, StatusQuestionPool},
	StatusAIPendingReview:    {StatusQuestionPool},
	StatusQuestionPool:       {StatusTournamentReserved, StatusArchived},
	StatusTournamentReserved: {StatusTournamentActive},
	StatusTournamentActive:   {StatusRecentTournament},
	StatusRecentTournament:   {StatusQuestionPool, StatusArchived},
	StatusArchived:           {},
}

// CanTransition проверяет ребро графа жизненного цикла.
// Draft -> QuestionPool разрешен только вопросам, не требующим AI-ревью.
func CanTransition(from, to QuestionStatus, source QuestionSource) bool {
	for _, next := range lifecycleEdges[from] {
		if next != to {
			continue
		}
		if from == StatusDraft && to == StatusQuestionPool {
			return source.SkipsReview()
		}
		return true
	}
	return false
}

// NextStatuses возвращает состояния, достижимые из s одним переходом
func (s QuestionStatus) NextStatuses() []QuestionStatus {
	out := make([]QuestionStatus, len(lifecycleEdges[s]))
	copy(out, lifecycleEdges[s])
	return out
}

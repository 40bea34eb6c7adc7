package websocket

// Типы сообщений бонусного пайплайна
const (
	// BONUS_PROGRESS сообщает о новом сгенерированном кандидате или смене фазы
	BONUS_PROGRESS = "BONUS_PROGRESS"

	// BONUS_AWAITING_APPROVAL сообщает, что все кандидаты готовы к проверке
	BONUS_AWAITING_APPROVAL = "BONUS_AWAITING_APPROVAL"

	// BONUS_FINISHED сообщает о завершении запроса (completed или failed)
	BONUS_FINISHED = "BONUS_FINISHED"
)

// SERVER_ERROR сообщение об ошибке, отправляемое клиенту
const SERVER_ERROR = "server:error"

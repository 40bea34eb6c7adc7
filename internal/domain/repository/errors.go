package repository

import "errors"

var (
	// ErrActiveAttemptExists означает, что у заявки уже есть попытка в статусе in_progress.
	ErrActiveAttemptExists = errors.New("application already has an attempt in progress")
	// ErrDuplicateApplication означает, что пользователь уже подал заявку на этот турнир.
	ErrDuplicateApplication = errors.New("application already exists")
)

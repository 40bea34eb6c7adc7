package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestion_IsCorrect(t *testing.T) {
	// Arrange
	question := &Question{
		ID:            1,
		Text:          "Кто построил ковчег?",
		Options:       StringArray{"Моисей", "Ной", "Авраам", "Давид"},
		CorrectOption: 1,
	}

	// Act & Assert
	assert.True(t, question.IsCorrect(1), "IsCorrect должен вернуть true для правильного ответа")
	assert.False(t, question.IsCorrect(0), "IsCorrect должен вернуть false для неправильного ответа")
	assert.False(t, question.IsCorrect(3), "IsCorrect должен вернуть false для неправильного ответа")
}

func TestQuestion_IsValidOption(t *testing.T) {
	// Arrange
	question := &Question{
		Options: StringArray{"A", "B", "C", "D"},
	}

	// Act & Assert: валидные опции
	for i := 0; i < 4; i++ {
		assert.True(t, question.IsValidOption(i), "Индекс %d должен быть валидным", i)
	}

	// Assert: невалидные опции
	assert.False(t, question.IsValidOption(-1), "Отрицательный индекс должен быть невалидным")
	assert.False(t, question.IsValidOption(4), "Индекс вне диапазона должен быть невалидным")
}

func TestQuestion_OptionsCount(t *testing.T) {
	testCases := []struct {
		name     string
		options  StringArray
		expected int
	}{
		{"4 варианта", StringArray{"A", "B", "C", "D"}, 4},
		{"2 варианта", StringArray{"Да", "Нет"}, 2},
		{"nil варианты", nil, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			question := &Question{Options: tc.options}
			assert.Equal(t, tc.expected, question.OptionsCount())
		})
	}
}

func TestQuestion_CanChangeApprovalTo(t *testing.T) {
	testCases := []struct {
		name     string
		from     ApprovalStatus
		to       ApprovalStatus
		expected bool
	}{
		{"pending -> approved", ApprovalPending, ApprovalApproved, true},
		{"pending -> rejected", ApprovalPending, ApprovalRejected, true},
		{"needs_revision -> approved", ApprovalNeedsRevision, ApprovalApproved, true},
		{"needs_revision -> rejected", ApprovalNeedsRevision, ApprovalRejected, true},
		{"pending -> needs_revision", ApprovalPending, ApprovalNeedsRevision, true},
		{"approved -> rejected", ApprovalApproved, ApprovalRejected, false},
		{"rejected -> approved", ApprovalRejected, ApprovalApproved, false},
		{"approved -> approved", ApprovalApproved, ApprovalApproved, false},
		{"pending -> unknown", ApprovalPending, ApprovalStatus("unknown"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := &Question{ApprovalStatus: tc.from}
			assert.Equal(t, tc.expected, q.CanChangeApprovalTo(tc.to))
		})
	}
}

func TestQuestion_Clone_IsIndependent(t *testing.T) {
	// Arrange
	srcID := uint(7)
	original := &Question{ID: 1, Options: StringArray{"A", "B"}, SourceQuestionID: &srcID}

	// Act
	clone := original.Clone()
	clone.Options[0] = "Z"
	*clone.SourceQuestionID = 99

	// Assert
	assert.Equal(t, "A", original.Options[0], "Изменение копии не должно влиять на оригинал")
	assert.Equal(t, uint(7), *original.SourceQuestionID)
}

func TestQuestion_TableName(t *testing.T) {
	question := Question{}
	assert.Equal(t, "questions", question.TableName(), "TableName должен возвращать 'questions'")
}

// Тесты для JSONB типов

func TestStringArray_Scan_ValidJSON(t *testing.T) {
	// Arrange
	jsonBytes := []byte(`["Option 1", "Option 2", "Option 3"]`)
	var arr StringArray

	// Act
	err := arr.Scan(jsonBytes)

	// Assert
	require.NoError(t, err, "Scan не должен возвращать ошибку для валидного JSON")
	assert.Equal(t, StringArray{"Option 1", "Option 2", "Option 3"}, arr)
}

func TestStringArray_Scan_NullAndEmpty(t *testing.T) {
	var arr StringArray
	require.NoError(t, arr.Scan(nil), "Scan не должен возвращать ошибку для nil")
	assert.Len(t, arr, 0, "Для nil должен вернуться пустой массив")

	require.NoError(t, arr.Scan([]byte{}), "Scan не должен возвращать ошибку для пустого массива байт")
	assert.Len(t, arr, 0, "Для пустых байт должен вернуться пустой массив")
}

func TestStringArray_Scan_InvalidType(t *testing.T) {
	var arr StringArray
	assert.Error(t, arr.Scan(42), "Scan должен возвращать ошибку для неподдерживаемого типа")
}

func TestStringArray_Value_Empty(t *testing.T) {
	// Arrange
	var arr StringArray = nil

	// Act
	val, err := arr.Value()

	// Assert
	require.NoError(t, err, "Value не должен возвращать ошибку для nil")
	bytes, ok := val.([]byte)
	require.True(t, ok, "Value должен возвращать []byte")
	assert.Equal(t, "[]", string(bytes), "nil должен сериализоваться в []")
}

func TestUintArray_ScanValue(t *testing.T) {
	// Arrange
	var ids UintArray

	// Act
	err := ids.Scan([]byte(`[3,1,2]`))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, UintArray{3, 1, 2}, ids)
	assert.True(t, ids.Contains(2))
	assert.False(t, ids.Contains(5))

	val, err := ids.Value()
	require.NoError(t, err)
	assert.Equal(t, `[3,1,2]`, string(val.([]byte)))
}

func TestAnswerMap_Scan_IntegerKeys(t *testing.T) {
	var answers AnswerMap
	require.NoError(t, answers.Scan([]byte(`{"10":2,"11":0}`)))
	assert.Equal(t, AnswerMap{10: 2, 11: 0}, answers)
}

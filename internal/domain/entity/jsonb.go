package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// scanJSONB разбирает JSONB значение из базы в dest.
// NULL и пустые значения оставляют dest нетронутым.
func scanJSONB(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		return nil
	}

	return json.Unmarshal(bytes, dest)
}

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
func (o *StringArray) Scan(value interface{}) error {
	*o = StringArray{}
	return scanJSONB(value, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // Пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// UintArray хранит список идентификаторов в JSONB колонке
type UintArray []uint

// Scan реализует интерфейс sql.Scanner для UintArray
func (a *UintArray) Scan(value interface{}) error {
	*a = UintArray{}
	return scanJSONB(value, a)
}

// Value реализует интерфейс driver.Valuer для UintArray
func (a UintArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Contains проверяет наличие id в списке
func (a UintArray) Contains(id uint) bool {
	for _, v := range a {
		if v == id {
			return true
		}
	}
	return false
}

// Clone возвращает независимую копию списка
func (a UintArray) Clone() UintArray {
	if a == nil {
		return nil
	}
	out := make(UintArray, len(a))
	copy(out, a)
	return out
}

// AnswerMap хранит ответы попытки: ID вопроса -> выбранный индекс (в показанном порядке)
type AnswerMap map[uint]int

// Scan реализует интерфейс sql.Scanner для AnswerMap
func (m *AnswerMap) Scan(value interface{}) error {
	*m = AnswerMap{}
	return scanJSONB(value, m)
}

// Value реализует интерфейс driver.Valuer для AnswerMap
func (m AnswerMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// OptionOrders хранит перестановку вариантов ответа для каждого показанного вопроса.
// order[i] = исходный индекс варианта, показанного на позиции i.
type OptionOrders map[uint][]int

// Scan реализует интерфейс sql.Scanner для OptionOrders
func (o *OptionOrders) Scan(value interface{}) error {
	*o = OptionOrders{}
	return scanJSONB(value, o)
}

// Value реализует интерфейс driver.Valuer для OptionOrders
func (o OptionOrders) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(o)
}

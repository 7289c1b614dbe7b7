package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const maxBodyInError = 512

// ConflictError панель ответила 409: аккаунт с таким именем уже существует.
type ConflictError struct {
	Detail string
}

func (e *ConflictError) Error() string {
	if e.Detail == "" {
		return "User already exists"
	}
	return "User already exists: " + e.Detail
}

// ValidationError панель ответила 422 на некорректный запрос.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return "API Validation Error"
	}
	return "API Validation Error: " + e.Detail
}

// TransportError сетевая ошибка, таймаут, неожиданный статус или нечитаемый ответ.
// StatusCode равен 0, если ответ не был получен.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: API request failed: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newStatusError(op string, status int, body []byte) *TransportError {
	return &TransportError{Op: op, StatusCode: status, Body: truncate(body)}
}

func truncate(body []byte) string {
	if len(body) > maxBodyInError {
		return string(body[:maxBodyInError]) + "..."
	}
	return string(body)
}

// parseDetail достаёт поле detail из тела ошибки. detail бывает строкой
// или массивом объектов (ошибки валидации), во втором случае возвращается компактный JSON.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Detail) == 0 || string(payload.Detail) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload.Detail); err == nil {
		return buf.String()
	}
	return string(payload.Detail)
}

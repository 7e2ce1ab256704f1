// Пакет errors — JSON-ответы chai-api с ошибками.
// Тело всегда {"error": {"code": "...", "message": "..."}}; code берётся из
// OpenAPI контракта, message клиент показывает как есть.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок из OpenAPI контракта.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Тексты 500-ответов. Причина сбоя пишется только в лог.
const (
	MsgLookupFailed = "lookup failed"
	MsgQueryFailed  = "an error occurred while querying the database"
	MsgPanic        = "internal server error"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError пишет конверт ошибки с заданным статусом.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message}})
}

// ValidationError — 400: неверный UUID, пустой или слишком длинный список id, limit вне диапазона.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404: нет проекта, имени или таблицы.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 от JWT middleware.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// TooManyRequests — 429 от rate limiter.
func TooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, message)
}

// InternalError — 500 с произвольным текстом.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// LookupFailed — 500 при сбое поиска проекта или сборки leaderboard.
func LookupFailed(w http.ResponseWriter) {
	InternalError(w, MsgLookupFailed)
}

// QueryFailed — 500 при сбое чтения сырой таблицы.
func QueryFailed(w http.ResponseWriter) {
	InternalError(w, MsgQueryFailed)
}

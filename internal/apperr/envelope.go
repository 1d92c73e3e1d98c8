package apperr

import (
	"encoding/json"
	"net/http"
	"time"
)

const DatetimeLayout = "2006-01-02 15:04:05"

// Envelope: единый JSON-ответ API, как для успеха, так и для ошибки.
type Envelope struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
	Datetime  string `json:"datetime"`
	Success   bool   `json:"success"`
	ErrorID   string `json:"errorId,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
	Details   string `json:"details,omitempty"`
	Path      string `json:"path,omitempty"`
}

func NewEnvelope(code int, message string, data any, now time.Time) *Envelope {
	return &Envelope{
		Code:      code,
		Message:   message,
		Data:      data,
		Timestamp: now.UnixMilli(),
		Datetime:  now.Format(DatetimeLayout),
		Success:   code >= 200 && code < 300,
	}
}

// WriteJSON отдаёт конверт с указанным статусом.
func WriteJSON(w http.ResponseWriter, status int, env *Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// OK пишет успешный ответ 200.
func OK(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, NewEnvelope(http.StatusOK, message, data, time.Now()))
}

// Created пишет успешный ответ 201.
func Created(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusCreated, NewEnvelope(http.StatusCreated, message, data, time.Now()))
}

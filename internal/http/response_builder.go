// Package http exposes the budgeting services as a JSON API.
//
// This file implements the builder used by every handler. Responses carry
// a JSON body and, after mutations, an HX-Trigger header that tells the
// browser client to refresh its data and show a toast.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"orcamento/internal/core"
	"orcamento/internal/importer"
	"orcamento/internal/log"
	"orcamento/internal/services"
	"orcamento/internal/storage"
)

// Trigger names understood by the browser client.
const (
	TriggerDataChanged  = "data:changed"
	TriggerNotification = "show-notification"
)

// ResponseBuilder provides a fluent API for building API responses.
type ResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *ResponseBuilder) Trigger(name string, data any) *ResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerDataChanged tells the client which table changed so it can refetch.
func (b *ResponseBuilder) TriggerDataChanged(table string) *ResponseBuilder {
	return b.Trigger(TriggerDataChanged, map[string]string{"table": table})
}

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// TriggerNotification adds a show-notification trigger with the specified parameters.
func (b *ResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *ResponseBuilder {
	return b.Trigger(TriggerNotification, map[string]any{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *ResponseBuilder) TriggerSuccessNotification(message string) *ResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *ResponseBuilder) TriggerErrorNotification(message string) *ResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets a value to be encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		triggerJSON, err := json.Marshal(b.triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a JSON error response that also pops an error toast.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		TriggerErrorNotification(message).
		JSON(errorBody{Error: message})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func ConflictError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

var validationErrors = []error{
	core.ErrInvalidDay,
	core.ErrInvalidMonth,
	core.ErrInvalidYear,
	core.ErrInvalidAmount,
	core.ErrEmptyDescription,
	core.ErrDescriptionTooLong,
	core.ErrEmptyName,
	core.ErrInvalidDueDay,
	core.ErrInvalidCategoryKind,
	core.ErrPayerRequired,
	services.ErrUnknownPayer,
	services.ErrNotVisible,
	storage.ErrInvalidReference,
	importer.ErrNoRows,
	importer.ErrMissingColumn,
}

var conflictErrors = []error{
	services.ErrAlreadyPaid,
	services.ErrNotPaid,
	services.ErrImportInProgress,
	storage.ErrConflict,
}

// StatusFor maps a service error to the HTTP status it is reported with.
func StatusFor(err error) int {
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrBadRequest) {
		return http.StatusBadRequest
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// writeError reports err to the client. Client errors echo the error text;
// backend failures are logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := StatusFor(err)
	logger := log.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op,
			log.FieldError, err)
		InternalServerError("Erro ao processar a solicitação").Write(w)
		return
	}
	logger.LogAttrs(r.Context(), slog.LevelDebug, "Request rejected",
		slog.String(log.FieldOperation, op),
		slog.String(log.FieldError, err.Error()),
		slog.Int(log.FieldStatusCode, status))
	ErrorResponse(status, err.Error()).Write(w)
}

// Package httpapi holds the JSON envelope every endpoint speaks.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
)

type success struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

type failure struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Code    string              `json:"code,omitempty"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
	Detail  string              `json:"detail,omitempty"`
}

type ctxKey string

const debugKey ctxKey = "debug_errors"

// Debug marks requests whose internal error detail may be returned to the
// client. Mount it only outside production.
func Debug(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if enabled {
				r = r.WithContext(context.WithValue(r.Context(), debugKey, true))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func debugEnabled(ctx context.Context) bool {
	v, _ := ctx.Value(debugKey).(bool)
	return v
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, success{Success: true, Data: data})
}

func OKMessage(w http.ResponseWriter, status int, data any, msg string) {
	JSON(w, status, success{Success: true, Data: data, Message: msg})
}

// Error writes the failure envelope for err. 5xx errors are logged here, at
// the outermost boundary.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.From(err)

	body := failure{Success: false, Message: ae.Message, Code: ae.Code, Errors: ae.Fields}
	if ae.Status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ae.Status,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"error", err,
		)
		if debugEnabled(r.Context()) && ae.Err != nil {
			body.Detail = ae.Err.Error()
		}
	}

	JSON(w, ae.Status, body)
}

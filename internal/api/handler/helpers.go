package handler

import (
	"encoding/json"
	"net/http"

	"library_lending/internal/app/service"
	"library_lending/internal/common"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return service.ValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}

// idParam reads a UUID path parameter and returns it in canonical form.
func idParam(r *http.Request, name string) (string, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return "", service.ValidationError(name, "must be a UUID")
	}
	return id.String(), nil
}

// respondError logs server-side failures and writes the client response.
func respondError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	if common.HTTPStatusFromError(err) >= http.StatusInternalServerError {
		log.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	common.RespondWithDomainError(w, err)
}

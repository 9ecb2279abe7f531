package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/accessroute/accessroute/internal/api/middleware"
	"github.com/accessroute/accessroute/internal/api/models"
	"github.com/accessroute/accessroute/internal/api/response"
)

// operator returns the authenticated subject, for audit logging.
func operator(r *http.Request) string {
	return middleware.GetSubject(r.Context())
}

// decodeJSON decodes and validates the request body into dst. On failure it
// writes a 400 Problem and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			response.BadRequest(w, r, "request body is empty", nil)
		case errors.As(err, &maxErr):
			response.BadRequest(w, r, "request body is too large", nil)
		case errors.As(err, &typeErr):
			response.BadRequest(w, r, "invalid JSON body", []models.FieldError{{
				Field:   typeErr.Field,
				Message: "must be a " + typeErr.Type.String(),
				Code:    "INVALID_TYPE",
			}})
		default:
			response.BadRequest(w, r, "invalid JSON body", nil)
		}
		return false
	}

	if errs := models.Validate(dst); len(errs) > 0 {
		response.BadRequest(w, r, "request validation failed", errs)
		return false
	}
	return true
}

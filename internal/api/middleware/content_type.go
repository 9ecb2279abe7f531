package middleware

import (
	"mime"
	"net/http"

	"github.com/accessroute/accessroute/internal/api/models"
)

// DefaultMaxBodyBytes caps request bodies. A 10 000 point coordinate list
// fits comfortably.
const DefaultMaxBodyBytes int64 = 1 << 20

// RequireJSON rejects POST, PUT and PATCH requests whose Content-Type is set
// to something other than application/json, and caps the body at maxBytes.
func RequireJSON(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				next.ServeHTTP(w, r)
				return
			}

			if ct := r.Header.Get("Content-Type"); ct != "" {
				mediaType, _, err := mime.ParseMediaType(ct)
				if err != nil || mediaType != "application/json" {
					problem := models.NewProblem(
						models.ProblemTypeUnsupportedMedia,
						"Unsupported media type",
						http.StatusUnsupportedMediaType,
						GetRequestID(r.Context()),
					).WithDetail("Content-Type must be application/json").WithInstance(r.URL.Path)
					problem.Write(w)
					return
				}
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

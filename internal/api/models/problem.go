package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"` // request path
	TraceID  string       `json:"traceId"`            // request id, echoed in X-Request-Id
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ProblemType constants for standard error types.
const (
	ProblemTypeValidation       = "https://accessroute.example/problems/validation-error"
	ProblemTypeUnauthorized     = "https://accessroute.example/problems/unauthorized"
	ProblemTypeForbidden        = "https://accessroute.example/problems/forbidden"
	ProblemTypeNotFound         = "https://accessroute.example/problems/not-found"
	ProblemTypeUnprocessable    = "https://accessroute.example/problems/unprocessable"
	ProblemTypeTooManyRequests  = "https://accessroute.example/problems/too-many-requests"
	ProblemTypeInternal         = "https://accessroute.example/problems/internal-error"
	ProblemTypeUnavailable      = "https://accessroute.example/problems/service-unavailable"
	ProblemTypeBadGateway       = "https://accessroute.example/problems/bad-gateway"
	ProblemTypeUnsupportedMedia = "https://accessroute.example/problems/unsupported-media-type"
	ProblemTypeTLSRequired      = "https://accessroute.example/problems/tls-required"
)

// NewProblem creates a new Problem with the given parameters.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// WithDetail adds a detail message to the Problem.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance adds the request instance URI to the Problem.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors adds field errors to the Problem.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write writes the Problem as JSON to the ResponseWriter.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// problemKinds holds the type URI and title used for each status code.
var problemKinds = map[int]struct{ typ, title string }{
	http.StatusBadRequest:          {ProblemTypeValidation, "Validation error"},
	http.StatusUnauthorized:        {ProblemTypeUnauthorized, "Unauthorized"},
	http.StatusForbidden:           {ProblemTypeForbidden, "Forbidden"},
	http.StatusNotFound:            {ProblemTypeNotFound, "Not found"},
	http.StatusUnprocessableEntity: {ProblemTypeUnprocessable, "Unprocessable entity"},
	http.StatusTooManyRequests:     {ProblemTypeTooManyRequests, "Too many requests"},
	http.StatusInternalServerError: {ProblemTypeInternal, "Internal server error"},
	http.StatusBadGateway:          {ProblemTypeBadGateway, "Bad gateway"},
	http.StatusServiceUnavailable:  {ProblemTypeUnavailable, "Service unavailable"},
}

// NewStatusProblem creates a problem for status using its registered type and title.
func NewStatusProblem(status int, traceID, detail string) *Problem {
	kind, ok := problemKinds[status]
	if !ok {
		kind = problemKinds[http.StatusInternalServerError]
	}
	return NewProblem(kind.typ, kind.title, status, traceID).WithDetail(detail)
}

// NewBadRequest creates a 400 problem carrying field errors.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	return NewStatusProblem(http.StatusBadRequest, traceID, detail).WithErrors(errors)
}

// NewUnauthorized creates a 401 problem.
func NewUnauthorized(traceID, detail string) *Problem {
	return NewStatusProblem(http.StatusUnauthorized, traceID, detail)
}

// NewNotFound creates a 404 problem.
func NewNotFound(traceID, detail string) *Problem {
	return NewStatusProblem(http.StatusNotFound, traceID, detail)
}

// NewForbidden creates a 403 problem.
func NewForbidden(traceID, detail string) *Problem {
	return NewStatusProblem(http.StatusForbidden, traceID, detail)
}

// NewUnprocessable creates a 422 problem.
func NewUnprocessable(traceID, detail string) *Problem {
	return NewStatusProblem(http.StatusUnprocessableEntity, traceID, detail)
}

// NewTooManyRequests creates a 429 problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return NewStatusProblem(http.StatusTooManyRequests, traceID, detail)
}

// NewInternalError creates a 500 problem.
func NewInternalError(traceID, detail string) *Problem {
	return NewStatusProblem(http.StatusInternalServerError, traceID, detail)
}

// NewBadGateway creates a 502 problem for upstream routing failures.
func NewBadGateway(traceID, detail string) *Problem {
	return NewStatusProblem(http.StatusBadGateway, traceID, detail)
}

// NewServiceUnavailable creates a 503 problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return NewStatusProblem(http.StatusServiceUnavailable, traceID, detail)
}

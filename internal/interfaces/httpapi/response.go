package httpapi

import (
	"context"
	"errors"
	"net/http"

	sonic "github.com/bytedance/sonic"

	"github.com/dugouthq/lineup-api/internal/domain/lineup"
	"github.com/dugouthq/lineup-api/internal/usecase"
)

const (
	googleAPIVersion = "2.0"
	errorDomain      = "lineup-api"
)

type googleResponseEnvelope struct {
	APIVersion string           `json:"apiVersion"`
	Data       any              `json:"data,omitempty"`
	Error      *googleErrorBody `json:"error,omitempty"`
}

type googleErrorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Status  string            `json:"status"`
	Errors  []googleErrorItem `json:"errors,omitempty"`
}

type googleErrorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type mappedError struct {
	HTTPStatus int
	Reason     string
	Status     string
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	ctx, span := startSpan(ctx, "httpapi.writeJSON")
	defer span.End()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, status int, data any) {
	ctx, span := startSpan(ctx, "httpapi.writeSuccess")
	defer span.End()

	writeJSON(ctx, w, status, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Data:       data,
	})
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	ctx, span := startSpan(ctx, "httpapi.writeError")
	defer span.End()

	mapped := mapError(err)
	writeJSON(ctx, w, mapped.HTTPStatus, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    mapped.HTTPStatus,
			Message: err.Error(),
			Status:  mapped.Status,
			Errors: []googleErrorItem{
				{
					Domain:  errorDomain,
					Reason:  mapped.Reason,
					Message: err.Error(),
				},
			},
		},
	})
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	ctx, span := startSpan(ctx, "httpapi.writeInternalError")
	defer span.End()

	const msg = "internal server error"

	writeJSON(ctx, w, http.StatusInternalServerError, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    http.StatusInternalServerError,
			Message: msg,
			Status:  "INTERNAL",
			Errors: []googleErrorItem{
				{
					Domain:  errorDomain,
					Reason:  "internalError",
					Message: msg,
				},
			},
		},
	})
}

func mapError(err error) mappedError {
	var promoErr *usecase.PromoInvalidError
	if errors.As(err, &promoErr) {
		return mappedError{
			HTTPStatus: http.StatusUnprocessableEntity,
			Reason:     string(promoErr.Reason),
			Status:     "FAILED_PRECONDITION",
		}
	}

	var deniedErr *usecase.AccessDeniedError
	if errors.As(err, &deniedErr) {
		return mappedError{
			HTTPStatus: http.StatusForbidden,
			Reason:     string(deniedErr.Reason),
			Status:     "PERMISSION_DENIED",
		}
	}

	var dupErr *lineup.DuplicateAssignmentError
	if errors.As(err, &dupErr) {
		return mappedError{
			HTTPStatus: http.StatusConflict,
			Reason:     "duplicateAssignment",
			Status:     "FAILED_PRECONDITION",
		}
	}

	switch {
	case errors.Is(err, usecase.ErrAlreadyHasAccess):
		return mappedError{
			HTTPStatus: http.StatusConflict,
			Reason:     "alreadyHasAccess",
			Status:     "ALREADY_EXISTS",
		}
	case errors.Is(err, usecase.ErrOptimizerUnreachable):
		return mappedError{
			HTTPStatus: http.StatusBadGateway,
			Reason:     "optimizerUnreachable",
			Status:     "UNAVAILABLE",
		}
	case errors.Is(err, usecase.ErrOptimizerRejected):
		return mappedError{
			HTTPStatus: http.StatusBadGateway,
			Reason:     "optimizerRejected",
			Status:     "FAILED_PRECONDITION",
		}
	case errors.Is(err, usecase.ErrOptimizerMalformedResponse):
		return mappedError{
			HTTPStatus: http.StatusBadGateway,
			Reason:     "optimizerMalformedResponse",
			Status:     "INTERNAL",
		}
	case errors.Is(err, usecase.ErrInvalidInput):
		return mappedError{
			HTTPStatus: http.StatusBadRequest,
			Reason:     "invalidInput",
			Status:     "INVALID_ARGUMENT",
		}
	case errors.Is(err, usecase.ErrNotFound):
		return mappedError{
			HTTPStatus: http.StatusNotFound,
			Reason:     "notFound",
			Status:     "NOT_FOUND",
		}
	case errors.Is(err, usecase.ErrUnauthorized):
		return mappedError{
			HTTPStatus: http.StatusUnauthorized,
			Reason:     "unauthorized",
			Status:     "UNAUTHENTICATED",
		}
	case errors.Is(err, usecase.ErrDependencyUnavailable):
		return mappedError{
			HTTPStatus: http.StatusServiceUnavailable,
			Reason:     "dependencyUnavailable",
			Status:     "UNAVAILABLE",
		}
	default:
		return mappedError{
			HTTPStatus: http.StatusInternalServerError,
			Reason:     "internalError",
			Status:     "INTERNAL",
		}
	}
}

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/turnout/internal/adapters/i18n"
	"github.com/okian/turnout/internal/domain"
	"github.com/okian/turnout/pkg/logger"
	"github.com/okian/turnout/pkg/metrics"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = fmt.Errorf("bad request: %w", domain.ErrValidation)
	ErrNoSession  = fmt.Errorf("missing %s header: %w", SessionHeader, domain.ErrUnauthorized)
)

// WrapKind tags err with op and a sentinel kind.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// NewKind returns kind tagged with op.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidSubmission):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrEventNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrDuplicateEvent):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEventLocked):
		return http.StatusLocked
	case errors.Is(err, domain.ErrBackpressure):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorWriter renders {code, message} bodies in the caller's language.
type errorWriter struct {
	translator *i18n.Translator
	log        logger.Logger
}

func (e *errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := domain.Code(err)
	if code == "" {
		code = i18n.MsgInternalError
	}
	if status >= http.StatusInternalServerError {
		e.log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", requestIDFrom(r.Context())),
			logger.Error(err),
		)
	}
	metrics.RecordErrorByComponent("http", code)

	locale := e.translator.Match(r.Header.Get("Accept-Language"))
	writeJSON(w, status, errorResponse{Code: code, Message: e.translator.T(locale.String(), code, nil)})
}

package httpapi

import (
	"errors"
	"net/http"

	"call-screener/internal/apperrors"
	"call-screener/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Retry   bool              `json:"retryable,omitempty"`
}

// statusFor is the only place an error kind becomes an HTTP status.
func statusFor(err error) (int, string) {
	switch apperrors.KindOf(err) {
	case apperrors.ErrValidation:
		return http.StatusBadRequest, "validation_failed"
	case apperrors.ErrInvalidAction:
		return http.StatusBadRequest, "invalid_action"
	case apperrors.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case apperrors.ErrInvalidTransition:
		return http.StatusConflict, "invalid_transition"
	case apperrors.ErrOverloaded:
		return http.StatusTooManyRequests, "overloaded"
	case apperrors.ErrTranscription:
		return http.StatusBadGateway, "transcription_failed"
	case apperrors.ErrClassification:
		return http.StatusBadGateway, "classification_failed"
	case apperrors.ErrSynthesis:
		return http.StatusBadGateway, "synthesis_failed"
	case apperrors.ErrMalformedResult:
		return http.StatusBadGateway, "malformed_result"
	case apperrors.ErrTimeout:
		return http.StatusGatewayTimeout, "timeout"
	case apperrors.ErrUnavailable:
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func errorResponse(err error) (int, errorBody) {
	status, code := statusFor(err)
	body := errorBody{Error: code, Message: err.Error(), Retry: apperrors.Retryable(err)}
	// Upstream and storage failures can carry hostnames or provider payloads.
	if status >= 500 {
		body.Message = http.StatusText(status)
	}
	return status, body
}

// writeError aborts the request with the response chosen by the error kind.
func writeError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	log := logger.FromGin(c)
	if status >= 500 {
		log.Error("request failed", "status", status, "err", err)
	} else {
		log.Debug("request rejected", "status", status, "err", err)
	}
	c.AbortWithStatusJSON(status, body)
}

// writeBindError reports malformed JSON and validator failures as 400s.
func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "validation_failed", Message: "invalid request", Fields: fields})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "validation_failed", Message: "invalid request body: " + err.Error()})
}

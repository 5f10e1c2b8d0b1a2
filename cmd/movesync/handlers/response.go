package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shuttleops/movesync/common/clients"
	"github.com/shuttleops/movesync/common/errs"
	"github.com/shuttleops/movesync/common/logger"
)

// Validator adapts go-playground/validator to echo
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the request body validator
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate implements echo.Validator
func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// bind decodes and validates a request body. Failures come back as
// InvalidFormat with a per-field map.
func bind(c echo.Context, req interface{}) (map[string]string, error) {
	if err := c.Bind(req); err != nil {
		return nil, errs.New(errs.KindInvalidFormat, "Malformed request body", err)
	}
	if err := c.Validate(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make(map[string]string, len(ve))
			for _, fe := range ve {
				fields[fe.Field()] = fe.Tag()
			}
			return fields, errs.New(errs.KindInvalidFormat, "Invalid request body", err)
		}
		return nil, errs.New(errs.KindInvalidFormat, "Invalid request body", err)
	}
	return nil, nil
}

// requestContext carries the echo request id to outbound calls
func requestContext(c echo.Context) context.Context {
	ctx := c.Request().Context()
	id := c.Response().Header().Get(echo.HeaderXRequestID)
	if id == "" {
		id = c.Request().Header.Get(echo.HeaderXRequestID)
	}
	if id != "" {
		ctx = clients.WithRequestID(ctx, id)
		ctx = context.WithValue(ctx, logger.RequestIDKey, id)
	}
	return ctx
}

// respondError writes a categorized error. Uncategorized errors are logged
// and shown with the generic reason.
func respondError(c echo.Context, log *logger.Logger, err error) error {
	status := errs.HTTPStatus(err)
	body := map[string]interface{}{
		"error": errs.Reason(err),
	}
	if kind, ok := errs.KindOf(err); ok {
		body["kind"] = kind
	}

	if status >= http.StatusInternalServerError {
		log.WithContext(requestContext(c)).Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"status", status,
			"error", err)
	} else {
		log.WithContext(requestContext(c)).Warn("request rejected",
			"path", c.Path(),
			"status", status,
			"error", err)
	}

	return c.JSON(status, body)
}

func respondInvalid(c echo.Context, fields map[string]string, err error) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"error":  errs.Reason(err),
		"kind":   errs.KindInvalidFormat,
		"fields": fields,
	})
}

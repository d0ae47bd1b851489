// Package handlers implements the HTTP API over the report service.
package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/soltixdb/statseries/internal/logging"
	"github.com/soltixdb/statseries/internal/models"
	"github.com/soltixdb/statseries/internal/services"
	"github.com/soltixdb/statseries/internal/utils"
)

// Version is reported by the health endpoint
var Version = "1.0.0"

// Handler contains all HTTP handlers
type Handler struct {
	logger  *logging.Logger
	reports *services.ReportService
}

// New creates a new handler instance
func New(logger *logging.Logger, reports *services.ReportService) *Handler {
	return &Handler{
		logger:  logger,
		reports: reports,
	}
}

// requestContext derives the context for service calls from the request
// context installed by the logging middleware
func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), utils.DefaultRequestTimeout)
}

// statusFor maps a service error code to an HTTP status
func statusFor(code string) int {
	switch code {
	case services.CodeReportNotFound:
		return fiber.StatusNotFound
	case services.CodeInvalidReport:
		return fiber.StatusBadRequest
	case services.CodeUpstreamError, services.CodeDecodeError:
		return fiber.StatusBadGateway
	case services.CodePipelineError, services.CodeUnknownSelector:
		return fiber.StatusUnprocessableEntity
	case services.CodeTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err as an ErrorResponse
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		svcErr = services.NewServiceError(services.CodeInternalError, err.Error())
	}

	return c.Status(statusFor(svcErr.Code)).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    svcErr.Code,
			Message: svcErr.Message,
			Path:    c.Path(),
			Details: svcErr.Details,
		},
	})
}

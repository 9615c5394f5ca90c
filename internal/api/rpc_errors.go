package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"

	"github.com/rowline-app/rowline/internal/database"
	"github.com/rowline-app/rowline/internal/records"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Path      string `json:"path,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func getRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return ""
}

// sendRPCError maps a service error onto an HTTP status and stable
// error code. Expression errors are the caller's fault; storage
// failures are ours and carry no internal detail to the client.
func sendRPCError(c *fiber.Ctx, err error) error {
	notFound := errors.Is(err, database.ErrTableNotFound)
	if errors.Is(err, database.ErrUnknownDatabase) || notFound {
		code := "UNKNOWN_DATABASE"
		if notFound {
			code = "TABLE_NOT_FOUND"
		}
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:     err.Error(),
			Code:      code,
			RequestID: getRequestID(c),
		})
	}

	var re *records.Error
	if errors.As(err, &re) {
		status := fiber.StatusBadRequest
		code := "INVALID_REQUEST"
		switch re.Kind {
		case records.KindMalformedExpression:
			code = "MALFORMED_EXPRESSION"
		case records.KindUnknownColumn:
			code = "UNKNOWN_COLUMN"
		case records.KindUnknownOperator:
			code = "UNKNOWN_OPERATOR"
		case records.KindArityMismatch:
			code = "ARITY_MISMATCH"
		case records.KindStorageFailure:
			status = fiber.StatusBadGateway
			code = "STORAGE_FAILURE"
			log.Error().Err(err).Str("request_id", getRequestID(c)).Msg("Storage failure")
		}
		return c.Status(status).JSON(ErrorResponse{
			Error:     re.Message,
			Code:      code,
			Path:      re.Path,
			RequestID: getRequestID(c),
		})
	}

	log.Error().Err(err).Str("request_id", getRequestID(c)).Msg("Unhandled error")
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:     "internal server error",
		Code:      "INTERNAL_ERROR",
		RequestID: getRequestID(c),
	})
}

func sendBadRequest(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: getRequestID(c),
	})
}

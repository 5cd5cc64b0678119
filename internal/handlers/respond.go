package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/services"
	"github.com/kenha/kenhavate/internal/workflow"
)

var (
	errInvalidBody = errors.New("invalid request body")
	errInvalidID   = errors.New("invalid id")
)

type validationError struct {
	fields map[string]string
}

func (e *validationError) Error() string { return "validation failed" }

// errorStatuses maps service errors to HTTP statuses. Anything not listed is
// a 500.
var errorStatuses = []struct {
	err    error
	status int
}{
	{errInvalidBody, fiber.StatusBadRequest},
	{errInvalidID, fiber.StatusBadRequest},

	{services.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{services.ErrInvalidToken, fiber.StatusUnauthorized},
	{services.ErrInvalidOTP, fiber.StatusUnauthorized},
	{services.ErrOTPExpired, fiber.StatusUnauthorized},
	{services.ErrOTPAttempts, fiber.StatusUnauthorized},

	{services.ErrNotIdeaAuthor, fiber.StatusForbidden},
	{services.ErrReviewerRoleMismatch, fiber.StatusForbidden},
	{services.ErrSelfReview, fiber.StatusForbidden},
	{services.ErrForbidden, fiber.StatusForbidden},
	{services.ErrAccountBanned, fiber.StatusForbidden},
	{services.ErrAccountSuspended, fiber.StatusForbidden},
	{services.ErrEmailNotVerified, fiber.StatusForbidden},
	{services.ErrSelfDemotion, fiber.StatusForbidden},

	{services.ErrIdeaNotFound, fiber.StatusNotFound},
	{services.ErrUserNotFound, fiber.StatusNotFound},
	{services.ErrChallengeNotFound, fiber.StatusNotFound},
	{services.ErrCategoryNotFound, fiber.StatusNotFound},
	{services.ErrAppealNotFound, fiber.StatusNotFound},
	{services.ErrAttachmentNotFound, fiber.StatusNotFound},
	{services.ErrRoleNotFound, fiber.StatusNotFound},

	{services.ErrIdeaNotEditable, fiber.StatusConflict},
	{workflow.ErrInvalidTransition, fiber.StatusConflict},
	{workflow.ErrTerminalStage, fiber.StatusConflict},
	{services.ErrNotUnderReview, fiber.StatusConflict},
	{services.ErrAlreadyReviewed, fiber.StatusConflict},
	{services.ErrStageChanged, fiber.StatusConflict},
	{services.ErrCollaborationClosed, fiber.StatusConflict},
	{services.ErrDuplicateAward, fiber.StatusConflict},
	{services.ErrSystemRole, fiber.StatusConflict},
	{services.ErrRoleInUse, fiber.StatusConflict},
	{services.ErrRoleExists, fiber.StatusConflict},
	{services.ErrPrimaryRole, fiber.StatusConflict},
	{services.ErrEmailTaken, fiber.StatusConflict},
	{services.ErrEmailVerified, fiber.StatusConflict},
	{services.ErrAppealDecided, fiber.StatusConflict},
	{services.ErrChallengeTransition, fiber.StatusConflict},
	{services.ErrChallengeClosed, fiber.StatusConflict},
	{services.ErrCategoryExists, fiber.StatusConflict},

	{services.ErrAttachmentTooLarge, fiber.StatusRequestEntityTooLarge},
	{services.ErrAttachmentType, fiber.StatusUnsupportedMediaType},

	{services.ErrInappropriateContent, fiber.StatusUnprocessableEntity},
	{services.ErrCategoryInactive, fiber.StatusUnprocessableEntity},
	{services.ErrDeadlinePassed, fiber.StatusUnprocessableEntity},
	{services.ErrAppealNotAllowed, fiber.StatusUnprocessableEntity},
	{services.ErrInvalidPeriod, fiber.StatusUnprocessableEntity},
	{workflow.ErrUnknownStage, fiber.StatusUnprocessableEntity},

	{services.ErrAppealCooldown, fiber.StatusTooManyRequests},
	{services.ErrOTPThrottled, fiber.StatusTooManyRequests},
}

func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return fiber.StatusInternalServerError
}

// writeError renders err in the standard error envelope. Internal errors are
// logged and hidden from the client.
func writeError(c *fiber.Ctx, err error) error {
	var verr *validationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Error: true, Message: "Validation failed", Fields: verr.fields,
		})
	}

	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", requestID(c),
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
		return c.Status(status).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	msg := err.Error()
	if errors.Is(err, services.ErrAccountBanned) || errors.Is(err, services.ErrAccountSuspended) {
		msg += ". You can appeal at POST /api/appeals."
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: msg})
}

// parseBody decodes the JSON body into req and validates it.
func parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return errInvalidBody
	}
	if fields := dto.Validate(req); fields != nil {
		return &validationError{fields: fields}
	}
	return nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, errInvalidID
	}
	return id, nil
}

func queryUUID(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, errInvalidID
	}
	return &id, nil
}

func pageParams(c *fiber.Ctx) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func pageResponse(items interface{}, total int64, limit, offset int) dto.PageResponse {
	return dto.PageResponse{Items: items, Total: total, Limit: limit, Offset: offset}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return ""
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"social-dashboard/actions"
	"social-dashboard/aggregate"
	"social-dashboard/dashboard"
	"social-dashboard/middleware"
	"social-dashboard/models"
	"social-dashboard/platforms"
)

// requestTimeout bounds a whole request, which may span several backend
// calls each with its own timeout
const requestTimeout = 60 * time.Second

var validate = validator.New()

func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), requestTimeout)
}

// parseRequest decodes the body into req and runs its validate tags. It
// returns the message to show when the request is unusable.
func parseRequest(c *fiber.Ctx, req any) string {
	if err := c.BodyParser(req); err != nil {
		return "Invalid request body"
	}
	if err := validate.Struct(req); err != nil {
		return validationMessage(err)
	}
	return ""
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// ref builds the item identity from the :platform and :id parameters
func ref(c *fiber.Ctx, param string) models.Ref {
	return models.Ref{Platform: middleware.GetPlatform(c), ID: c.Params(param)}
}

// outcomeStatus maps an action outcome to an HTTP status
func outcomeStatus(o actions.Outcome) int {
	switch o.Status {
	case actions.StatusSuccess, actions.StatusWarning:
		return fiber.StatusOK
	case actions.StatusInvalid:
		return fiber.StatusUnprocessableEntity
	}
	switch {
	case errors.Is(o.Err, actions.ErrInFlight):
		return fiber.StatusConflict
	case errors.Is(o.Err, actions.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(o.Err, platforms.ErrUnsupported):
		return fiber.StatusNotImplemented
	case errors.Is(o.Err, platforms.ErrMediaRequired):
		return fiber.StatusUnprocessableEntity
	case platforms.IsNetworkError(o.Err):
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusBadGateway
}

func outcomeJSON(c *fiber.Ctx, o actions.Outcome) error {
	return c.Status(outcomeStatus(o)).JSON(o)
}

// dashboardError answers errors returned by dashboard operations
func dashboardError(c *fiber.Ctx, err error) error {
	var invalid *dashboard.InvalidError
	switch {
	case errors.As(err, &invalid):
		return errorJSON(c, fiber.StatusUnprocessableEntity, invalid.Message)
	case errors.Is(err, actions.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Item not found")
	case errors.Is(err, platforms.ErrNotConfigured):
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, aggregate.ErrMissingCredentials):
		return errorJSON(c, fiber.StatusUnprocessableEntity, err.Error())
	case platforms.IsNetworkError(err):
		return errorJSON(c, fiber.StatusGatewayTimeout, "The backend did not answer in time")
	}
	return errorJSON(c, fiber.StatusBadGateway, platforms.ErrorMessage(err, "Request failed"))
}

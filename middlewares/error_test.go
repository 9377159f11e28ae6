package middlewares

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"newsletter-backend/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type validatedInput struct {
	Title string `form:"title" validate:"required"`
	Body  string `validate:"required"`
}

func TestErrorHandlerMapsKinds(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zaptest.NewLogger(t))})
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusNotFound, "nope") })
	app.Get("/struct", func(c *fiber.Ctx) error { return ValidateStruct(&validatedInput{}) })
	app.Get("/validation", func(c *fiber.Ctx) error {
		return apperror.Validation("idempotency_key", "", errors.New("empty"))
	})
	app.Get("/storage", func(c *fiber.Ctx) error { return apperror.Storage("commit", errors.New("db gone")) })
	app.Get("/other", func(c *fiber.Ctx) error { return errors.New("boom") })

	cases := []struct {
		path   string
		status int
		msg    string
	}{
		{"/fiber", http.StatusNotFound, "nope"},
		{"/struct", http.StatusUnprocessableEntity, "validation failed"},
		{"/validation", http.StatusBadRequest, "invalid idempotency_key: empty"},
		{"/storage", http.StatusInternalServerError, "internal server error"},
		{"/other", http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tc.path, nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tc.msg, body["message"])
		})
	}
}

func TestValidationErrorsUseFormNames(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zaptest.NewLogger(t))})
	app.Get("/", func(c *fiber.Ctx) error { return ValidateStruct(&validatedInput{}) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"title": "required", "Body": "required"}, body.Errors)
}

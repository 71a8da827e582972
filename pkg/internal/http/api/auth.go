package api

import (
	"strings"

	"github.com/auroracast/stagecast/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func authMiddleware(c *fiber.Ctx) error {
	tk := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if len(tk) == 0 {
		tk = c.Query("tk")
	}
	if len(tk) == 0 {
		return fiber.NewError(fiber.StatusUnauthorized, "session token is required")
	}

	claims, err := services.ParseSessionToken(tk)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}

	user, err := services.GetAccountWithUsername(claims.Username)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "account no longer exists")
	}

	c.Locals("user", user)
	return c.Next()
}

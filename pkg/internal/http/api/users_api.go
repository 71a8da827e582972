package api

import (
	"github.com/auroracast/stagecast/pkg/internal/http/exts"
	"github.com/auroracast/stagecast/pkg/internal/models"
	"github.com/auroracast/stagecast/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func createAccount(c *fiber.Ctx) error {
	var data struct {
		Username   string `json:"username" validate:"required,alphanum,min=3,max=32"`
		ChannelArn string `json:"channel_arn" validate:"required"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	if _, err := services.GetAccountWithUsername(data.Username); err == nil {
		return fiber.NewError(fiber.StatusConflict, "username is already taken")
	}

	account, err := services.NewAccount(data.Username, data.ChannelArn)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	tk, err := services.CreateSessionToken(account)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"account": account,
		"token":   tk,
	})
}

func getUserinfo(c *fiber.Ctx) error {
	user := c.Locals("user").(models.Account)

	data, err := services.GetAccount(user.ID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(data)
}

func getOthersInfo(c *fiber.Ctx) error {
	username := c.Params("username")

	data, err := services.GetAccountWithUsername(username)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	return c.JSON(data)
}

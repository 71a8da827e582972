package api

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func MapAPIs(app *fiber.App, baseURL string) {
	api := app.Group(baseURL).Name("API")
	{
		api.Post("/users", createAccount)
		api.Get("/users/me", authMiddleware, getUserinfo)
		api.Get("/users/:username", getOthersInfo)

		stages := api.Group("/stages").Name("Stages API")
		{
			stages.Post("/", authMiddleware, createStage)
			stages.Get("/:stageId", getStage)
			stages.Post("/:stageId/participants", authMiddleware, createParticipantToken)
			stages.Delete("/:stageId", authMiddleware, deleteStage)
		}

		api.Get("/gateway", authMiddleware, websocket.New(eventGateway))
	}
}

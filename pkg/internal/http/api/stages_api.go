package api

import (
	"errors"
	"sync"

	"github.com/auroracast/stagecast/pkg/internal/http/exts"
	"github.com/auroracast/stagecast/pkg/internal/models"
	"github.com/auroracast/stagecast/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

var stageLocks sync.Map

func createStage(c *fiber.Ctx) error {
	user := c.Locals("user").(models.Account)

	if _, ok := stageLocks.Load(user.ID); ok {
		return fiber.NewError(fiber.StatusLocked, "there is already a stage in creation progress for this channel")
	} else {
		stageLocks.Store(user.ID, true)
	}
	defer stageLocks.Delete(user.ID)

	stage, token, err := services.NewStage(c.Context(), user)
	if err != nil {
		if errors.Is(err, models.ErrStageOccupied) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"stage": stage,
		"token": token,
	})
}

func getStage(c *fiber.Ctx) error {
	stage, err := services.GetStage(c.Params("stageId"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	active, _ := services.IsStageActive(c.Context(), stage.StageID)
	hostPresent := false
	if active {
		hostPresent, _ = services.IsHostPresent(c.Context(), stage)
	}

	return c.JSON(fiber.Map{
		"stage":           stage,
		"is_active":       active,
		"is_host_present": hostPresent,
	})
}

func createParticipantToken(c *fiber.Ctx) error {
	user := c.Locals("user").(models.Account)

	var data struct {
		ParticipantType models.ParticipantType `json:"participant_type" validate:"required"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}
	if !data.ParticipantType.Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "unknown participant type")
	}

	stage, err := services.GetStage(c.Params("stageId"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if data.ParticipantType == models.ParticipantTypeHost && stage.AccountID != user.ID {
		return fiber.NewError(fiber.StatusForbidden, "only the channel owner can join as host")
	}

	if err := services.CanJoin(c.Context(), stage, data.ParticipantType); err != nil {
		if errors.Is(err, models.ErrStageFull) || errors.Is(err, models.ErrHostPresent) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	var account *models.Account
	if data.ParticipantType != models.ParticipantTypeSpectator {
		account = &user
	}

	// Admission only looks at published participants; a connected host that
	// never published still has to keep the host identity reserved.
	isHostPresent := false
	if data.ParticipantType == models.ParticipantTypeHost {
		if present, err := services.IsHostPresent(c.Context(), stage); err == nil {
			isHostPresent = present
		}
	}

	params := services.BuildStageParams(account, data.ParticipantType, isHostPresent)
	token, err := services.IssueParticipantToken(c.Context(), stage.StageID, params)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(token)
}

func deleteStage(c *fiber.Ctx) error {
	user := c.Locals("user").(models.Account)

	stage, err := services.GetStage(c.Params("stageId"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if stage.AccountID != user.ID {
		return fiber.NewError(fiber.StatusForbidden, "only the channel owner can delete this stage")
	}

	if err := services.DeleteStage(c.Context(), stage); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusOK)
}

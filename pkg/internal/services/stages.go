package services

import (
	"context"
	"errors"

	"github.com/auroracast/stagecast/pkg/internal/database"
	"github.com/auroracast/stagecast/pkg/internal/models"
	"github.com/auroracast/stagecast/pkg/internal/realtime"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func GetStage(stageID string) (models.Stage, error) {
	var stage models.Stage
	if err := database.C.
		Where(models.Stage{StageID: stageID}).
		Preload("Account").
		First(&stage).Error; err != nil {
		return stage, err
	}
	return stage, nil
}

func GetStageOfAccount(account models.Account) (models.Stage, error) {
	var stage models.Stage
	if err := database.C.
		Where(models.Stage{AccountID: account.ID}).
		Preload("Account").
		Order("created_at DESC").
		First(&stage).Error; err != nil {
		return stage, err
	}
	return stage, nil
}

// NewStage provisions a stage for the account's channel and mints the host's
// creation token in the same backend call. A channel can only ever carry one
// stage; a leftover record from an earlier session is torn down first, but a
// still-live one blocks creation.
func NewStage(ctx context.Context, account models.Account) (models.Stage, models.ParticipantToken, error) {
	var token models.ParticipantToken

	if existing, err := GetStageOfAccount(account); err == nil {
		active, err := IsStageActive(ctx, existing.StageID)
		if err == nil && active {
			return existing, token, models.ErrStageOccupied
		}
		if err := DeleteStage(ctx, existing); err != nil {
			log.Warn().Err(err).Str("stage", existing.StageID).Msg("Unable to clean up the previous stage...")
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Stage{}, token, err
	}

	params := BuildStageParams(&account, models.ParticipantTypeHost, false)

	// No creation date attribute here; its absence marks the stage creator.
	result, err := Rt.CreateStage(ctx, account.Username, realtime.TokenParams{
		UserID:       params.UserID,
		Capabilities: params.Capabilities,
		Duration:     params.Duration,
		Attributes:   params.Attributes,
	})
	if err != nil {
		log.Warn().Err(err).Str("channel", account.Username).Msg("Unable to create stage at realtime side...")
		return models.Stage{}, token, models.ErrTokenCreation
	}

	stage := models.Stage{
		StageID:   realtime.ExtractStageID(result.Stage.Arn),
		AccountID: account.ID,
		Account:   account,
	}
	if err := database.C.Save(&stage).Error; err != nil {
		return stage, token, err
	}

	token = models.ParticipantToken{
		Token:        result.Token,
		UserID:       params.UserID,
		Type:         params.Type,
		Capabilities: params.Capabilities,
	}
	return stage, token, nil
}

func DeleteStage(ctx context.Context, stage models.Stage) error {
	if err := Rt.DeleteStage(ctx, StageArn(stage.StageID)); err != nil {
		log.Error().Err(err).Str("stage", stage.StageID).Msg("Unable to delete stage at realtime side")
	}
	return database.C.Delete(&stage).Error
}

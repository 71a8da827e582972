package services

import (
	"context"
	"time"

	"github.com/auroracast/stagecast/pkg/internal/database"
	"github.com/auroracast/stagecast/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func DoAutoDatabaseCleanup() {
	deadline := time.Now().Add(-60 * time.Minute)
	log.Debug().Time("deadline", deadline).Msg("Now cleaning up entire database...")

	// Deal soft-deletion
	var count int64
	for _, model := range database.AutoMaintainRange {
		tx := database.C.Unscoped().Delete(model, "deleted_at <= ?", deadline)
		if tx.Error != nil {
			log.Error().Err(tx.Error).Msg("An error occurred when running database cleanup...")
		}
		count += tx.RowsAffected
	}

	log.Debug().Int64("affected", count).Msg("Clean up entire database accomplished.")
}

// DoIdleStageCleanup tears down stages whose session has ended and that have
// sat idle past the configured TTL. The backend never pushes a "stage ended"
// signal for every path, so the transition is observed here by polling.
func DoIdleStageCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	idleTTL := time.Duration(viper.GetInt("stages.idle_ttl")) * time.Minute
	if idleTTL <= 0 {
		idleTTL = 24 * time.Hour
	}
	deadline := time.Now().Add(-idleTTL)

	var stages []models.Stage
	if err := database.C.
		Where("updated_at <= ?", deadline).
		Preload("Account").
		Find(&stages).Error; err != nil {
		log.Error().Err(err).Msg("An error occurred when listing idle stage candidates...")
		return
	}

	var count int
	for _, stage := range stages {
		active, err := IsStageActive(ctx, stage.StageID)
		if err != nil || active {
			continue
		}
		if err := DeleteStage(ctx, stage); err != nil {
			log.Error().Err(err).Str("stage", stage.StageID).Msg("An error occurred when cleaning up an idle stage...")
			continue
		}
		count++
	}

	log.Debug().Int("affected", count).Msg("Clean up idle stages accomplished.")
}

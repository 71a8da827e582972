package services

import (
	"context"

	"github.com/auroracast/stagecast/pkg/internal/realtime"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/viper"
)

var Rt realtime.Client

func SetupRealtime() error {
	cfg, err := config.LoadDefaultConfig(
		context.Background(),
		config.WithRegion(viper.GetString("realtime.region")),
	)
	if err != nil {
		return err
	}

	Rt = realtime.NewIVSClient(cfg)
	return nil
}

// StageArn rebuilds a stage ARN from the configured region and account; the
// raw ARN is never persisted.
func StageArn(stageID string) string {
	return realtime.BuildStageArn(
		viper.GetString("realtime.region"),
		viper.GetString("realtime.account_id"),
		stageID,
	)
}

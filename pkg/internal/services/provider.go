package services

import (
	"context"
	"fmt"
	"time"

	"github.com/auroracast/stagecast/pkg/internal/models"
	"github.com/auroracast/stagecast/pkg/internal/stage"
	"github.com/spf13/viper"
)

// StageProvider exposes stage provisioning to a session orchestrator on
// behalf of one account. It satisfies the orchestrator's backend and
// admission contracts without the stage package having to know about the
// database or the realtime client.
type StageProvider struct {
	Account models.Account
}

func (p StageProvider) CreateStage(ctx context.Context) (string, models.ParticipantToken, error) {
	stage, token, err := NewStage(ctx, p.Account)
	if err != nil {
		return "", token, err
	}
	return stage.StageID, token, nil
}

func (p StageProvider) DeleteStage(ctx context.Context, stageID string) error {
	stage, err := GetStage(stageID)
	if err != nil {
		return err
	}
	if stage.AccountID != p.Account.ID {
		return fmt.Errorf("stage does not belong to this account")
	}
	return DeleteStage(ctx, stage)
}

func (p StageProvider) IssueToken(ctx context.Context, stageID string, participantType models.ParticipantType, username string) (models.ParticipantToken, error) {
	stage, err := GetStage(stageID)
	if err != nil {
		return models.ParticipantToken{}, err
	}
	if err := CanJoin(ctx, stage, participantType); err != nil {
		return models.ParticipantToken{}, err
	}

	var account *models.Account
	if participantType != models.ParticipantTypeSpectator {
		if found, err := GetAccountWithUsername(username); err == nil {
			account = &found
		}
	}

	hostPresent := false
	if participantType == models.ParticipantTypeHost {
		if present, err := IsHostPresent(ctx, stage); err == nil {
			hostPresent = present
		}
	}
	if participantType == models.ParticipantTypeHost && account == nil {
		owner := stage.Account
		account = &owner
	}

	params := BuildStageParams(account, participantType, hostPresent)
	return IssueParticipantToken(ctx, stageID, params)
}

func (p StageProvider) CanJoin(ctx context.Context, stageID string, participantType models.ParticipantType) error {
	stage, err := GetStage(stageID)
	if err != nil {
		return err
	}
	return CanJoin(ctx, stage, participantType)
}

func (p StageProvider) IsStageActive(ctx context.Context, stageID string) (bool, error) {
	return IsStageActive(ctx, stageID)
}

// BrokerPublisher adapts the in-process broker to the orchestrator's
// publisher contract.
type BrokerPublisher struct{}

func (BrokerPublisher) Publish(channel string, event models.ChannelEvent) error {
	PublishEvent(channel, event)
	return nil
}

// NewSessionOrchestrator assembles a session orchestrator for an account,
// wired to the in-process broker and this service's stage provisioning. The
// media connector and notifier are the embedder's concern.
func NewSessionOrchestrator(account models.Account, connector stage.Connector, notifier stage.Notifier) (*stage.Machine, *stage.Orchestrator) {
	machine := stage.NewMachine()
	orchestrator := stage.NewOrchestrator(stage.Deps{
		Machine:   machine,
		Backend:   StageProvider{Account: account},
		Admission: StageProvider{Account: account},
		Bus:       BrokerPublisher{},
		Connector: connector,
		Notifier:  notifier,
		Self: stage.Identity{
			Username:     account.Username,
			ProfileColor: account.ProfileColor,
			Avatar:       account.Avatar,
		},
		InviteBaseURL: viper.GetString("frontend"),
		JoinTimeout:   time.Duration(viper.GetInt("stages.join_timeout")) * time.Second,
	})
	return machine, orchestrator
}

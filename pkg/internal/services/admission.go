package services

import (
	"context"

	"github.com/auroracast/stagecast/pkg/internal/models"
	"github.com/auroracast/stagecast/pkg/internal/realtime"
	"github.com/samber/lo"
)

// The backend caps a stage at 12 publishers; one slot is always reserved for
// the host, leaving 11 for everyone else.
const maxNonHostParticipants = 11

func IsStageActive(ctx context.Context, stageID string) (bool, error) {
	stage, err := Rt.GetStage(ctx, StageArn(stageID))
	if err != nil {
		return false, err
	}
	return stage.ActiveSessionID != "", nil
}

// IsHostPresent reports whether the stage owner is currently connected, found
// by filtering the participant listing on the deterministic host identity.
func IsHostPresent(ctx context.Context, stage models.Stage) (bool, error) {
	arn := StageArn(stage.StageID)
	remote, err := Rt.GetStage(ctx, arn)
	if err != nil {
		return false, err
	}
	if remote.ActiveSessionID == "" {
		return false, nil
	}

	participants, err := Rt.ListParticipants(ctx, arn, realtime.ListFilter{
		SessionID: remote.ActiveSessionID,
		UserID:    realtime.HostUserID(stage.Account.ChannelArn),
	})
	if err != nil {
		return false, err
	}

	return lo.SomeBy(participants, func(item realtime.ParticipantSummary) bool {
		return item.State == realtime.ParticipantStateConnected
	}), nil
}

// CanJoin decides whether a prospective participant may join the stage right
// now. A stage without an active session is empty and always joinable. The
// decision works on an eventually-consistent snapshot of the published
// participant listing, deduplicated by participant id so a reconnecting
// participant is not counted twice.
func CanJoin(ctx context.Context, stage models.Stage, participantType models.ParticipantType) error {
	arn := StageArn(stage.StageID)
	remote, err := Rt.GetStage(ctx, arn)
	if err != nil {
		return err
	}
	if remote.ActiveSessionID == "" {
		return nil
	}

	participants, err := Rt.ListParticipants(ctx, arn, realtime.ListFilter{
		SessionID:     remote.ActiveSessionID,
		PublishedOnly: true,
	})
	if err != nil {
		return err
	}
	participants = lo.UniqBy(participants, func(item realtime.ParticipantSummary) string {
		return item.ParticipantID
	})

	hostConnected := lo.SomeBy(participants, func(item realtime.ParticipantSummary) bool {
		return realtime.IsHostUserID(item.UserID) && item.State == realtime.ParticipantStateConnected
	})

	if participantType == models.ParticipantTypeHost {
		if hostConnected {
			return models.ErrHostPresent
		}
		return nil
	}

	others := lo.CountBy(participants, func(item realtime.ParticipantSummary) bool {
		return !realtime.IsHostUserID(item.UserID)
	})
	if others >= maxNonHostParticipants {
		return models.ErrStageFull
	}

	return nil
}

package services

import (
	"context"
	"strconv"
	"time"

	"github.com/auroracast/stagecast/pkg/internal/models"
	"github.com/auroracast/stagecast/pkg/internal/realtime"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Attribute keys carried inside participant tokens. The creation date is the
// anchor for join-notification ordering; stage creation tokens never get one.
const (
	AttrUsername          = "username"
	AttrProfileColor      = "profileColor"
	AttrAvatar            = "avatar"
	AttrParticipantType   = "type"
	AttrTokenCreationDate = "participantTokenCreationDate"
)

type StageParams struct {
	UserID       string
	Type         models.ParticipantType
	Capabilities []models.Capability
	Duration     int32
	Attributes   map[string]string
}

// BuildStageParams resolves the identity, capability set and token attributes
// for a prospective participant. The host identity is deterministic; everyone
// else gets a random one. Profile data is only folded in for identity-linked
// participant types.
func BuildStageParams(account *models.Account, participantType models.ParticipantType, isHostPresent bool) StageParams {
	isHostRole := participantType == models.ParticipantTypeHost && !isHostPresent

	resolvedType := models.ParticipantTypeInvited
	if isHostRole {
		resolvedType = models.ParticipantTypeHost
	} else if participantType == models.ParticipantTypeSpectator {
		resolvedType = models.ParticipantTypeSpectator
	}

	capabilities := []models.Capability{models.CapabilityPublish, models.CapabilitySubscribe}
	if participantType == models.ParticipantTypeSpectator {
		capabilities = []models.Capability{models.CapabilitySubscribe}
	}

	userID := uuid.NewString()
	if isHostRole && account != nil {
		userID = realtime.HostUserID(account.ChannelArn)
	}

	attributes := map[string]string{
		AttrParticipantType: string(resolvedType),
	}
	shouldFetchProfile := resolvedType == models.ParticipantTypeHost || resolvedType == models.ParticipantTypeInvited
	if account != nil && shouldFetchProfile {
		attributes[AttrUsername] = account.Username
		attributes[AttrProfileColor] = account.ProfileColor
		attributes[AttrAvatar] = account.Avatar
	}

	return StageParams{
		UserID:       userID,
		Type:         resolvedType,
		Capabilities: capabilities,
		Duration:     int32(viper.GetInt("realtime.token_duration")),
		Attributes:   attributes,
	}
}

// IssueParticipantToken mints a join token for an existing stage. Backend
// failures are deliberately collapsed into an opaque error so callers cannot
// depend on a specific cause.
func IssueParticipantToken(ctx context.Context, stageID string, params StageParams) (models.ParticipantToken, error) {
	now := time.Now()
	attributes := make(map[string]string, len(params.Attributes)+1)
	for key, value := range params.Attributes {
		attributes[key] = value
	}
	attributes[AttrTokenCreationDate] = strconv.FormatInt(now.UnixMilli(), 10)

	token, err := Rt.CreateParticipantToken(ctx, realtime.TokenParams{
		StageArn:     StageArn(stageID),
		UserID:       params.UserID,
		Capabilities: params.Capabilities,
		Duration:     params.Duration,
		Attributes:   attributes,
	})
	if err != nil {
		log.Warn().Err(err).Str("stage", stageID).Msg("Unable to create participant token at realtime side...")
		return models.ParticipantToken{}, models.ErrTokenCreation
	}

	return models.ParticipantToken{
		Token:        token,
		UserID:       params.UserID,
		Type:         params.Type,
		Capabilities: params.Capabilities,
		CreatedAt:    lo.ToPtr(now),
	}, nil
}

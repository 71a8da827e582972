package realtime

import (
	"context"

	"github.com/auroracast/stagecast/pkg/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ivsrealtime"
	"github.com/aws/aws-sdk-go-v2/service/ivsrealtime/types"
	"github.com/samber/lo"
)

type ivsClient struct {
	api *ivsrealtime.Client
}

func NewIVSClient(cfg aws.Config) Client {
	return &ivsClient{api: ivsrealtime.NewFromConfig(cfg)}
}

func encodeCapabilities(capabilities []models.Capability) []types.ParticipantTokenCapability {
	return lo.Map(capabilities, func(item models.Capability, idx int) types.ParticipantTokenCapability {
		return types.ParticipantTokenCapability(item)
	})
}

func (v *ivsClient) CreateStage(ctx context.Context, name string, hostToken TokenParams) (CreateStageResult, error) {
	var result CreateStageResult

	resp, err := v.api.CreateStage(ctx, &ivsrealtime.CreateStageInput{
		Name: aws.String(name),
		ParticipantTokenConfigurations: []types.ParticipantTokenConfiguration{{
			UserId:       aws.String(hostToken.UserID),
			Capabilities: encodeCapabilities(hostToken.Capabilities),
			Duration:     aws.Int32(hostToken.Duration),
			Attributes:   hostToken.Attributes,
		}},
	})
	if err != nil {
		return result, err
	}

	result.Stage = Stage{Arn: aws.ToString(resp.Stage.Arn)}
	if len(resp.ParticipantTokens) > 0 {
		result.Token = aws.ToString(resp.ParticipantTokens[0].Token)
		result.ParticipantID = aws.ToString(resp.ParticipantTokens[0].ParticipantId)
	}
	return result, nil
}

func (v *ivsClient) DeleteStage(ctx context.Context, stageArn string) error {
	_, err := v.api.DeleteStage(ctx, &ivsrealtime.DeleteStageInput{
		Arn: aws.String(stageArn),
	})
	return err
}

func (v *ivsClient) GetStage(ctx context.Context, stageArn string) (Stage, error) {
	resp, err := v.api.GetStage(ctx, &ivsrealtime.GetStageInput{
		Arn: aws.String(stageArn),
	})
	if err != nil {
		return Stage{}, err
	}
	return Stage{
		Arn:             aws.ToString(resp.Stage.Arn),
		ActiveSessionID: aws.ToString(resp.Stage.ActiveSessionId),
	}, nil
}

func (v *ivsClient) CreateParticipantToken(ctx context.Context, params TokenParams) (string, error) {
	resp, err := v.api.CreateParticipantToken(ctx, &ivsrealtime.CreateParticipantTokenInput{
		StageArn:     aws.String(params.StageArn),
		UserId:       aws.String(params.UserID),
		Capabilities: encodeCapabilities(params.Capabilities),
		Duration:     aws.Int32(params.Duration),
		Attributes:   params.Attributes,
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(resp.ParticipantToken.Token), nil
}

func (v *ivsClient) ListParticipants(ctx context.Context, stageArn string, filter ListFilter) ([]ParticipantSummary, error) {
	input := &ivsrealtime.ListParticipantsInput{
		StageArn:  aws.String(stageArn),
		SessionId: aws.String(filter.SessionID),
	}
	if filter.UserID != "" {
		input.FilterByUserId = aws.String(filter.UserID)
	}
	if filter.PublishedOnly {
		input.FilterByPublished = true
	}

	resp, err := v.api.ListParticipants(ctx, input)
	if err != nil {
		return nil, err
	}

	return lo.Map(resp.Participants, func(item types.ParticipantSummary, idx int) ParticipantSummary {
		return ParticipantSummary{
			ParticipantID: aws.ToString(item.ParticipantId),
			UserID:        aws.ToString(item.UserId),
			State:         ParticipantState(item.State),
			Published:     item.Published,
		}
	}), nil
}

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/auroracast/stagecast/pkg/internal/models"
	"github.com/auroracast/stagecast/pkg/internal/realtime"
	"github.com/spf13/viper"
)

func testAccount() *models.Account {
	return &models.Account{
		Username:     "alice",
		ProfileColor: "blue",
		Avatar:       "bear",
		ChannelArn:   "arn:aws:ivs:us-west-2:123456789012:channel/chan-1",
	}
}

func TestBuildStageParamsHost(t *testing.T) {
	viper.Set("realtime.token_duration", 720)

	params := BuildStageParams(testAccount(), models.ParticipantTypeHost, false)

	if params.Type != models.ParticipantTypeHost {
		t.Fatalf("expected the host type, got %v", params.Type)
	}
	if params.UserID != "host:chan-1" {
		t.Errorf("expected the deterministic host identity, got %q", params.UserID)
	}
	if len(params.Capabilities) != 2 {
		t.Errorf("expected publish and subscribe, got %v", params.Capabilities)
	}
	if params.Attributes[AttrUsername] != "alice" || params.Attributes[AttrProfileColor] != "blue" {
		t.Errorf("expected profile attributes, got %v", params.Attributes)
	}
	if params.Duration != 720 {
		t.Errorf("expected the configured duration, got %d", params.Duration)
	}
}

func TestBuildStageParamsHostDemotedWhenHostPresent(t *testing.T) {
	params := BuildStageParams(testAccount(), models.ParticipantTypeHost, true)

	if params.Type != models.ParticipantTypeInvited {
		t.Fatalf("expected a demotion to invited, got %v", params.Type)
	}
	if params.UserID == "host:chan-1" {
		t.Error("expected a random identity instead of the host one")
	}
	if params.Attributes[AttrUsername] != "alice" {
		t.Error("expected profile attributes for an invited participant")
	}
}

func TestBuildStageParamsSpectator(t *testing.T) {
	params := BuildStageParams(nil, models.ParticipantTypeSpectator, false)

	if params.Type != models.ParticipantTypeSpectator {
		t.Fatalf("expected the spectator type, got %v", params.Type)
	}
	if len(params.Capabilities) != 1 || params.Capabilities[0] != models.CapabilitySubscribe {
		t.Errorf("expected subscribe only, got %v", params.Capabilities)
	}
	if _, ok := params.Attributes[AttrUsername]; ok {
		t.Error("expected no profile attributes for a spectator")
	}
	if params.Attributes[AttrParticipantType] != string(models.ParticipantTypeSpectator) {
		t.Errorf("expected the type attribute, got %v", params.Attributes)
	}
}

func TestBuildStageParamsRequestedIssuesAsInvited(t *testing.T) {
	params := BuildStageParams(testAccount(), models.ParticipantTypeRequested, false)

	if params.Type != models.ParticipantTypeInvited {
		t.Fatalf("expected requested to issue as invited, got %v", params.Type)
	}
	if len(params.Capabilities) != 2 {
		t.Errorf("expected publish and subscribe, got %v", params.Capabilities)
	}
}

func TestIssueParticipantTokenStampsCreationDate(t *testing.T) {
	fake := &fakeRealtime{}
	useFakeRealtime(t, fake)

	params := BuildStageParams(testAccount(), models.ParticipantTypeInvited, false)
	token, err := IssueParticipantToken(context.Background(), "stage-1", params)
	if err != nil {
		t.Fatal(err)
	}

	if token.Token != "minted-token" {
		t.Errorf("unexpected token %q", token.Token)
	}
	if token.CreatedAt == nil {
		t.Fatal("expected the token to carry a creation time")
	}
	if _, ok := fake.lastParams.Attributes[AttrTokenCreationDate]; !ok {
		t.Error("expected the creation date attribute on the wire")
	}
	if fake.lastParams.StageArn != realtime.BuildStageArn("us-west-2", "123456789012", "stage-1") {
		t.Errorf("unexpected stage arn %q", fake.lastParams.StageArn)
	}
}

func TestIssueParticipantTokenCollapsesBackendErrors(t *testing.T) {
	fake := &fakeRealtime{tokenErr: errors.New("throttled")}
	useFakeRealtime(t, fake)

	params := BuildStageParams(nil, models.ParticipantTypeSpectator, false)
	_, err := IssueParticipantToken(context.Background(), "stage-1", params)
	if !errors.Is(err, models.ErrTokenCreation) {
		t.Fatalf("expected the opaque token error, got %v", err)
	}
	if err.Error() != "failed to create token" {
		t.Errorf("expected the opaque message, got %q", err.Error())
	}
}

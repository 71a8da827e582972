package realtime

import (
	"context"

	"github.com/auroracast/stagecast/pkg/internal/models"
)

type ParticipantState string

const (
	ParticipantStateConnected    = ParticipantState("CONNECTED")
	ParticipantStateDisconnected = ParticipantState("DISCONNECTED")
)

type Stage struct {
	Arn             string `json:"arn"`
	ActiveSessionID string `json:"active_session_id"`
}

type ParticipantSummary struct {
	ParticipantID string           `json:"participant_id"`
	UserID        string           `json:"user_id"`
	State         ParticipantState `json:"state"`
	Published     bool             `json:"published"`
}

// TokenParams describes a participant token to mint. Duration is in minutes,
// matching the backend's unit.
type TokenParams struct {
	StageArn     string
	UserID       string
	Capabilities []models.Capability
	Duration     int32
	Attributes   map[string]string
}

type CreateStageResult struct {
	Stage         Stage
	Token         string
	ParticipantID string
}

type ListFilter struct {
	SessionID     string
	UserID        string
	PublishedOnly bool
}

// Client is the managed real-time video backend contract the services depend
// on. The production implementation talks to IVS real-time; tests substitute
// an in-memory fake.
type Client interface {
	CreateStage(ctx context.Context, name string, hostToken TokenParams) (CreateStageResult, error)
	DeleteStage(ctx context.Context, stageArn string) error
	GetStage(ctx context.Context, stageArn string) (Stage, error)
	CreateParticipantToken(ctx context.Context, params TokenParams) (string, error)
	ListParticipants(ctx context.Context, stageArn string, filter ListFilter) ([]ParticipantSummary, error)
}

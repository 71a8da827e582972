package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

// Channel event types carried over the username-keyed pub/sub channel.
const (
	EventStageRequestToJoin     = "STAGE_REQUEST_TO_JOIN"
	EventStageParticipantKicked = "STAGE_PARTICIPANT_KICKED"
	EventStageSessionHasEnded   = "STAGE_SESSION_HAS_ENDED"
	EventStageHostAcceptRequest = "STAGE_HOST_ACCEPT_REQUEST_TO_JOIN"
	EventStageHostDeleteRequest = "STAGE_HOST_DELETE_REQUEST_TO_JOIN"
	EventStageRevokeRequest     = "STAGE_REVOKE_REQUEST_TO_JOIN"
)

var validate = validator.New()

// ChannelEvent is the wire envelope for pub/sub notifications. The payload
// shape is discriminated by Type and only decoded at the reconciler boundary.
type ChannelEvent struct {
	Type    string              `json:"type"`
	Payload jsoniter.RawMessage `json:"payload,omitempty"`
}

func NewChannelEvent(eventType string, payload any) ChannelEvent {
	ev := ChannelEvent{Type: eventType}
	if payload != nil {
		raw, _ := jsoniter.Marshal(payload)
		ev.Payload = raw
	}
	return ev
}

func (ev ChannelEvent) Marshal() []byte {
	raw, _ := jsoniter.Marshal(ev)
	return raw
}

// DecodePayload unmarshals and validates the typed payload for the event.
func (ev ChannelEvent) DecodePayload(out any) error {
	if len(ev.Payload) == 0 {
		return fmt.Errorf("event %s carries no payload", ev.Type)
	}
	if err := jsoniter.Unmarshal(ev.Payload, out); err != nil {
		return fmt.Errorf("unable to decode %s payload: %v", ev.Type, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid %s payload: %v", ev.Type, err)
	}
	return nil
}

type StageRequestPayload struct {
	StageID      string          `json:"stage_id" validate:"required"`
	UserID       string          `json:"user_id" validate:"required"`
	Username     string          `json:"username" validate:"required"`
	ProfileColor string          `json:"profile_color"`
	Avatar       string          `json:"avatar"`
	Type         ParticipantType `json:"type" validate:"required"`
	Sent         int64           `json:"sent" validate:"required"`
}

type StageKickPayload struct {
	UserID string `json:"user_id" validate:"required"`
}

type StageAcceptPayload struct {
	StageID       string           `json:"stage_id" validate:"required"`
	Token         ParticipantToken `json:"token" validate:"required"`
	RequestUserID string           `json:"request_user_id" validate:"required"`
}

type StageRejectPayload struct {
	RequestUserID string `json:"request_user_id" validate:"required"`
}

type StageRevokePayload struct {
	RequestUserID string `json:"request_user_id" validate:"required"`
}

// GatewayCommand is the client-to-server frame on the websocket gateway.
type GatewayCommand struct {
	Action  string              `json:"action"`
	Channel string              `json:"channel,omitempty"`
	Payload jsoniter.RawMessage `json:"payload,omitempty"`
}

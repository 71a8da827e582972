package models

import "time"

type ParticipantType string

const (
	ParticipantTypeHost      = ParticipantType("host")
	ParticipantTypeSpectator = ParticipantType("spectator")
	ParticipantTypeInvited   = ParticipantType("invited")
	ParticipantTypeRequested = ParticipantType("requested")
)

func (t ParticipantType) Valid() bool {
	switch t {
	case ParticipantTypeHost, ParticipantTypeSpectator, ParticipantTypeInvited, ParticipantTypeRequested:
		return true
	default:
		return false
	}
}

type Capability string

const (
	CapabilityPublish   = Capability("PUBLISH")
	CapabilitySubscribe = Capability("SUBSCRIBE")
)

// Stage is the durable record binding a real-time stage to the owning
// account's channel. Live session data (active session, participants) is
// never stored; it is queried from the realtime backend on demand.
type Stage struct {
	BaseModel

	StageID   string  `json:"stage_id" gorm:"uniqueIndex"`
	AccountID uint    `json:"account_id"`
	Account   Account `json:"account"`
}

// ParticipantToken is a short-lived stage credential. It only ever lives in
// memory and on the wire; CreatedAt is nil for the token minted together with
// the stage itself, which marks its holder as the stage creator.
type ParticipantToken struct {
	Token        string          `json:"token"`
	UserID       string          `json:"user_id"`
	Type         ParticipantType `json:"type"`
	Capabilities []Capability    `json:"capabilities"`
	CreatedAt    *time.Time      `json:"created_at,omitempty"`
}

type JoinRequestStatus string

const (
	JoinRequestPending  = JoinRequestStatus("pending")
	JoinRequestAccepted = JoinRequestStatus("accepted")
	JoinRequestRejected = JoinRequestStatus("rejected")
	JoinRequestRevoked  = JoinRequestStatus("revoked")
)

// JoinRequest lives only inside the host's session state and on the pub/sub
// transport; it is never persisted.
type JoinRequest struct {
	UserID       string            `json:"user_id"`
	Username     string            `json:"username"`
	ProfileColor string            `json:"profile_color"`
	Avatar       string            `json:"avatar"`
	Type         ParticipantType   `json:"type"`
	Status       JoinRequestStatus `json:"status"`
	Sent         time.Time         `json:"sent"`
}

package stage

import (
	"time"

	"github.com/auroracast/stagecast/pkg/internal/models"
)

type ConnectionState uint8

const (
	Disconnected = ConnectionState(iota)
	Connecting
	Connected
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

type Role uint8

const (
	RoleNone = Role(iota)
	RoleHost
	RoleInvited
	RoleSpectator
	RoleRequestPending
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleInvited:
		return "invited"
	case RoleSpectator:
		return "spectator"
	case RoleRequestPending:
		return "request_pending"
	default:
		return "none"
	}
}

type StreamType string

const (
	StreamAudio = StreamType("audio")
	StreamVideo = StreamType("video")
)

// Participant is the client-side view of one connected identity. A nil
// TokenCreatedAt marks the stage creator, who was present before anyone else.
type Participant struct {
	UserID         string                 `json:"user_id"`
	Username       string                 `json:"username"`
	ProfileColor   string                 `json:"profile_color"`
	Avatar         string                 `json:"avatar"`
	Type           models.ParticipantType `json:"type"`
	Capabilities   []models.Capability    `json:"capabilities"`
	TokenCreatedAt *time.Time             `json:"token_created_at,omitempty"`
	IsLocal        bool                   `json:"is_local"`
	AudioMuted     bool                   `json:"audio_muted"`
	VideoStopped   bool                   `json:"video_stopped"`
	Publishing     bool                   `json:"publishing"`
	Streams        []string               `json:"streams,omitempty"`
}

// State is an immutable snapshot of the local stage session. Transitions
// produce a fresh value; the roster map is never shared between snapshots.
// Epoch increments on every disconnect so in-flight work can detect that the
// session it started in no longer exists.
type State struct {
	Connection ConnectionState
	Role       Role
	StageID    string
	Epoch      uint64
	Local      Participant
	Requests   []models.JoinRequest

	order  []string
	roster map[string]Participant
}

func newState() State {
	return State{roster: make(map[string]Participant)}
}

func (s State) clone() State {
	next := s
	next.order = append([]string(nil), s.order...)
	next.roster = make(map[string]Participant, len(s.roster))
	for id, participant := range s.roster {
		next.roster[id] = participant
	}
	next.Requests = append([]models.JoinRequest(nil), s.Requests...)
	return next
}

// Participants returns the roster in insertion order, which keeps UI listings
// deterministic across clients.
func (s State) Participants() []Participant {
	out := make([]Participant, 0, len(s.order))
	for _, id := range s.order {
		if participant, ok := s.roster[id]; ok {
			out = append(out, participant)
		}
	}
	return out
}

func (s State) Participant(userID string) (Participant, bool) {
	participant, ok := s.roster[userID]
	return participant, ok
}

func (s State) Request(userID string) (models.JoinRequest, bool) {
	for _, req := range s.Requests {
		if req.UserID == userID {
			return req, true
		}
	}
	return models.JoinRequest{}, false
}

func (s *State) putParticipant(p Participant) {
	if _, ok := s.roster[p.UserID]; !ok {
		s.order = append(s.order, p.UserID)
	}
	s.roster[p.UserID] = p
}

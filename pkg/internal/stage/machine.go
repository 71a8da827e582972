package stage

import (
	"sync"

	"github.com/auroracast/stagecast/pkg/internal/models"
)

// Transition maps a state snapshot to its successor. It reports false when the
// event is invalid or stale for the given snapshot, in which case the state is
// left untouched.
type Transition func(State) (State, bool)

// Machine serializes transitions over the session state. Readers always get a
// detached snapshot.
type Machine struct {
	mu    sync.Mutex
	state State
}

func NewMachine() *Machine {
	return &Machine{state: newState()}
}

func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *Machine) Apply(t Transition) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, ok := t(m.state)
	if ok {
		m.state = next
	}
	return m.state.clone(), ok
}

// BeginJoin moves an idle session into the connecting phase and seeds the
// roster with the local participant.
func BeginJoin(stageID string, role Role, local Participant) Transition {
	return func(s State) (State, bool) {
		if s.Connection != Disconnected {
			return s, false
		}
		next := s.clone()
		next.Connection = Connecting
		next.Role = role
		next.StageID = stageID
		local.IsLocal = true
		next.Local = local
		next.Requests = nil
		next.putParticipant(local)
		return next, true
	}
}

func CompleteJoin() Transition {
	return func(s State) (State, bool) {
		if s.Connection != Connecting && s.Connection != Reconnecting {
			return s, false
		}
		next := s.clone()
		next.Connection = Connected
		return next, true
	}
}

func BeginReconnect() Transition {
	return func(s State) (State, bool) {
		if s.Connection != Connected {
			return s, false
		}
		next := s.clone()
		next.Connection = Reconnecting
		return next, true
	}
}

// Disconnect resets the session to idle and bumps the epoch so any in-flight
// join started against the old session gets discarded.
func Disconnect() Transition {
	return func(s State) (State, bool) {
		if s.Connection == Disconnected && s.Role == RoleNone {
			return s, false
		}
		next := newState()
		next.Epoch = s.Epoch + 1
		return next, true
	}
}

// SubmitRequest parks the session in the request-pending role while the host
// decides. The local identity carries the ephemeral request user id so accept
// and reject events can be matched against it.
func SubmitRequest(stageID string, local Participant) Transition {
	return func(s State) (State, bool) {
		if s.Connection != Disconnected || s.Role != RoleNone {
			return s, false
		}
		next := s.clone()
		next.Role = RoleRequestPending
		next.StageID = stageID
		local.IsLocal = true
		next.Local = local
		return next, true
	}
}

func ResolveRequest() Transition {
	return func(s State) (State, bool) {
		if s.Role != RoleRequestPending {
			return s, false
		}
		next := newState()
		next.Epoch = s.Epoch
		return next, true
	}
}

func AddParticipant(p Participant) Transition {
	return func(s State) (State, bool) {
		if s.Connection == Disconnected {
			return s, false
		}
		next := s.clone()
		next.putParticipant(p)
		return next, true
	}
}

// RemoveParticipant discards unknown user ids so that a kick followed by the
// matching leave event converges instead of erroring.
func RemoveParticipant(userID string) Transition {
	return func(s State) (State, bool) {
		if _, ok := s.roster[userID]; !ok {
			return s, false
		}
		next := s.clone()
		delete(next.roster, userID)
		for i, id := range next.order {
			if id == userID {
				next.order = append(next.order[:i], next.order[i+1:]...)
				break
			}
		}
		return next, true
	}
}

func SetStreamMuted(userID string, stream StreamType, muted bool) Transition {
	return func(s State) (State, bool) {
		participant, ok := s.roster[userID]
		if !ok {
			return s, false
		}
		switch stream {
		case StreamAudio:
			participant.AudioMuted = muted
		case StreamVideo:
			participant.VideoStopped = muted
		default:
			return s, false
		}
		next := s.clone()
		next.putParticipant(participant)
		if userID == next.Local.UserID {
			next.Local = participant
		}
		return next, true
	}
}

func SetStreams(userID string, streams []string) Transition {
	return func(s State) (State, bool) {
		participant, ok := s.roster[userID]
		if !ok {
			return s, false
		}
		participant.Streams = append([]string(nil), streams...)
		next := s.clone()
		next.putParticipant(participant)
		if userID == next.Local.UserID {
			next.Local = participant
		}
		return next, true
	}
}

func SetPublishing(userID string, publishing bool) Transition {
	return func(s State) (State, bool) {
		participant, ok := s.roster[userID]
		if !ok {
			return s, false
		}
		participant.Publishing = publishing
		next := s.clone()
		next.putParticipant(participant)
		if userID == next.Local.UserID {
			next.Local = participant
		}
		return next, true
	}
}

// DemoteToSpectator narrows the local participant down to subscribe-only after
// the backend refused its publish attempt.
func DemoteToSpectator() Transition {
	return func(s State) (State, bool) {
		if s.Connection == Disconnected || s.Role == RoleSpectator {
			return s, false
		}
		next := s.clone()
		next.Role = RoleSpectator
		local := next.Local
		local.Type = models.ParticipantTypeSpectator
		local.Capabilities = []models.Capability{models.CapabilitySubscribe}
		local.Publishing = false
		next.Local = local
		next.putParticipant(local)
		return next, true
	}
}

// AddRequest upserts a pending join request by user id, so a re-sent request
// refreshes the existing entry instead of duplicating it.
func AddRequest(req models.JoinRequest) Transition {
	return func(s State) (State, bool) {
		next := s.clone()
		for i, existing := range next.Requests {
			if existing.UserID == req.UserID {
				next.Requests[i] = req
				return next, true
			}
		}
		next.Requests = append(next.Requests, req)
		return next, true
	}
}

func RemoveRequest(userID string) Transition {
	return func(s State) (State, bool) {
		for i, req := range s.Requests {
			if req.UserID == userID {
				next := s.clone()
				next.Requests = append(next.Requests[:i], next.Requests[i+1:]...)
				return next, true
			}
		}
		return s, false
	}
}

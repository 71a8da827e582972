package stage

import (
	"fmt"
	"time"

	"github.com/auroracast/stagecast/pkg/internal/models"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

// Notifier surfaces session changes to the user.
type Notifier interface {
	Success(message string)
	Neutral(message string)
	Error(message string)
}

// StrategyRefresher re-evaluates the media subscribe strategy, which nudges a
// failed subscription into a retry.
type StrategyRefresher interface {
	RefreshStrategy()
}

// SessionControl is the narrow slice of the orchestrator the reconciler needs
// to act on decisions that end or start a media connection.
type SessionControl interface {
	JoinWithToken(stageID string, token models.ParticipantToken)
	ForceLeave()
}

const (
	MessageRemovedFromSession = "You've been removed from the session"
	MessageSessionEnded       = "The session has ended"
	MessageSessionFull        = "The session is full"
	MessageJoinFailed         = "Unable to join the session"
	MessageRequestDeclined    = "Your request to join was declined"
)

func UserJoinedMessage(username string) string {
	return fmt.Sprintf("%s joined the session", username)
}

// Reconciler folds media callbacks and channel events into the state machine.
// Both sources are unordered and may replay, so every handler has to tolerate
// events for sessions, participants, and requests that no longer exist.
type Reconciler struct {
	machine   *Machine
	notifier  Notifier
	refresher StrategyRefresher
	control   SessionControl
}

func NewReconciler(machine *Machine, notifier Notifier, refresher StrategyRefresher, control SessionControl) *Reconciler {
	return &Reconciler{
		machine:   machine,
		notifier:  notifier,
		refresher: refresher,
		control:   control,
	}
}

func (r *Reconciler) HandleSDKEvent(event SDKEvent) {
	switch ev := event.(type) {
	case ParticipantJoined:
		r.handleParticipantJoined(ev.Participant)
	case ParticipantLeft:
		r.machine.Apply(RemoveParticipant(ev.UserID))
	case StreamsAdded:
		r.machine.Apply(SetStreams(ev.UserID, ev.Streams))
	case StreamMuteChanged:
		r.machine.Apply(SetStreamMuted(ev.UserID, ev.Stream, ev.Muted))
	case PublishStateChanged:
		r.handlePublishStateChanged(ev)
	case SubscribeStateChanged:
		if ev.State == SubscribeErrored {
			r.refresher.RefreshStrategy()
		}
	case ConnectionLost:
		r.machine.Apply(BeginReconnect())
	case ConnectionRestored:
		r.machine.Apply(CompleteJoin())
	}
}

func (r *Reconciler) handleParticipantJoined(p Participant) {
	current := r.machine.Current()
	if p.IsLocal || p.UserID == current.Local.UserID {
		r.machine.Apply(CompleteJoin())
		return
	}
	if _, ok := r.machine.Apply(AddParticipant(p)); !ok {
		return
	}

	// Only announce arrivals that happened after we did. The stage creator
	// carries no token creation date and is never announced.
	if p.TokenCreatedAt == nil {
		return
	}
	if current.Local.TokenCreatedAt != nil && !p.TokenCreatedAt.After(*current.Local.TokenCreatedAt) {
		return
	}
	r.notifier.Success(UserJoinedMessage(p.Username))
}

// handlePublishStateChanged demotes the local participant to spectator when
// publishing failed and no stream ever went out. A publish error while already
// on air is transient and handled by the media layer itself.
func (r *Reconciler) handlePublishStateChanged(ev PublishStateChanged) {
	current := r.machine.Current()
	if ev.UserID == current.Local.UserID || ev.UserID == "" {
		if ev.State == PublishErrored && !ev.Publishing && current.Role != RoleSpectator {
			r.machine.Apply(DemoteToSpectator())
			return
		}
		r.machine.Apply(SetPublishing(current.Local.UserID, ev.State == PublishPublished))
		return
	}
	r.machine.Apply(SetPublishing(ev.UserID, ev.State == PublishPublished))
}

// HandleChannelEvent decodes a raw frame off the event channel. Malformed
// frames are dropped at this boundary so the handlers below only ever see
// validated payloads.
func (r *Reconciler) HandleChannelEvent(raw []byte) {
	var event models.ChannelEvent
	if err := jsoniter.Unmarshal(raw, &event); err != nil {
		log.Debug().Err(err).Msg("Dropped an undecodable channel event...")
		return
	}
	r.ApplyChannelEvent(event)
}

func (r *Reconciler) ApplyChannelEvent(event models.ChannelEvent) {
	current := r.machine.Current()

	switch event.Type {
	case models.EventStageRequestToJoin:
		if current.Role != RoleHost {
			return
		}
		var payload models.StageRequestPayload
		if err := event.DecodePayload(&payload); err != nil {
			log.Debug().Err(err).Str("type", event.Type).Msg("Dropped a channel event with an invalid payload...")
			return
		}
		r.machine.Apply(AddRequest(models.JoinRequest{
			UserID:       payload.UserID,
			Username:     payload.Username,
			ProfileColor: payload.ProfileColor,
			Avatar:       payload.Avatar,
			Type:         payload.Type,
			Status:       models.JoinRequestPending,
			Sent:         time.UnixMilli(payload.Sent),
		}))

	case models.EventStageParticipantKicked:
		if current.Role == RoleHost || current.Connection == Disconnected {
			return
		}
		var payload models.StageKickPayload
		if err := event.DecodePayload(&payload); err != nil {
			log.Debug().Err(err).Str("type", event.Type).Msg("Dropped a channel event with an invalid payload...")
			return
		}
		if payload.UserID != current.Local.UserID {
			return
		}
		r.notifier.Neutral(MessageRemovedFromSession)
		r.control.ForceLeave()

	case models.EventStageSessionHasEnded:
		if current.Role == RoleRequestPending {
			r.machine.Apply(ResolveRequest())
			r.notifier.Neutral(MessageSessionEnded)
			return
		}
		if current.Connection == Disconnected || current.Role == RoleHost {
			return
		}
		r.notifier.Neutral(MessageSessionEnded)
		r.control.ForceLeave()

	case models.EventStageHostAcceptRequest:
		if current.Role != RoleRequestPending {
			return
		}
		var payload models.StageAcceptPayload
		if err := event.DecodePayload(&payload); err != nil {
			log.Debug().Err(err).Str("type", event.Type).Msg("Dropped a channel event with an invalid payload...")
			return
		}
		if payload.RequestUserID != current.Local.UserID {
			return
		}
		r.machine.Apply(ResolveRequest())
		r.control.JoinWithToken(payload.StageID, payload.Token)

	case models.EventStageHostDeleteRequest:
		if current.Role != RoleRequestPending {
			return
		}
		var payload models.StageRejectPayload
		if err := event.DecodePayload(&payload); err != nil {
			log.Debug().Err(err).Str("type", event.Type).Msg("Dropped a channel event with an invalid payload...")
			return
		}
		if payload.RequestUserID != current.Local.UserID {
			return
		}
		r.machine.Apply(ResolveRequest())
		r.notifier.Neutral(MessageRequestDeclined)

	case models.EventStageRevokeRequest:
		if current.Role != RoleHost {
			return
		}
		var payload models.StageRevokePayload
		if err := event.DecodePayload(&payload); err != nil {
			log.Debug().Err(err).Str("type", event.Type).Msg("Dropped a channel event with an invalid payload...")
			return
		}
		r.machine.Apply(RemoveRequest(payload.RequestUserID))

	default:
		log.Debug().Str("type", event.Type).Msg("Ignored an unrecognized channel event...")
	}
}

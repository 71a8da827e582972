package stage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/auroracast/stagecast/pkg/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Backend provisions stages and credentials on behalf of the local user.
type Backend interface {
	CreateStage(ctx context.Context) (string, models.ParticipantToken, error)
	DeleteStage(ctx context.Context, stageID string) error
	IssueToken(ctx context.Context, stageID string, participantType models.ParticipantType, username string) (models.ParticipantToken, error)
}

// AdmissionGuard answers whether a stage can take another participant.
type AdmissionGuard interface {
	CanJoin(ctx context.Context, stageID string, participantType models.ParticipantType) error
	IsStageActive(ctx context.Context, stageID string) (bool, error)
}

// Publisher delivers a channel event to every subscriber of a channel.
type Publisher interface {
	Publish(channel string, event models.ChannelEvent) error
}

// Connector drives the media-plane connection itself.
type Connector interface {
	Join(ctx context.Context, token models.ParticipantToken) error
	Leave()
}

// Identity is the local user as seen by other participants.
type Identity struct {
	Username     string
	ProfileColor string
	Avatar       string
}

type Deps struct {
	Machine       *Machine
	Backend       Backend
	Admission     AdmissionGuard
	Bus           Publisher
	Connector     Connector
	Notifier      Notifier
	Self          Identity
	InviteBaseURL string
	JoinTimeout   time.Duration
}

// Orchestrator owns every user-initiated session operation. All methods are
// safe for concurrent use; overlapping join attempts for the same stage
// collapse into one.
type Orchestrator struct {
	machine   *Machine
	backend   Backend
	admission AdmissionGuard
	bus       Publisher
	connector Connector
	notifier  Notifier
	self      Identity

	inviteBaseURL string
	joinTimeout   time.Duration

	mu          sync.Mutex
	hostChannel string

	joinLocks sync.Map
}

const defaultJoinTimeout = 15 * time.Second

func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.JoinTimeout <= 0 {
		deps.JoinTimeout = defaultJoinTimeout
	}
	return &Orchestrator{
		machine:       deps.Machine,
		backend:       deps.Backend,
		admission:     deps.Admission,
		bus:           deps.Bus,
		connector:     deps.Connector,
		notifier:      deps.Notifier,
		self:          deps.Self,
		inviteBaseURL: deps.InviteBaseURL,
		joinTimeout:   deps.JoinTimeout,
	}
}

// CreateStage provisions a stage for the local user and joins it as host.
func (o *Orchestrator) CreateStage(ctx context.Context) error {
	const createKey = "create"
	if _, busy := o.joinLocks.LoadOrStore(createKey, struct{}{}); busy {
		return nil
	}
	defer o.joinLocks.Delete(createKey)

	if o.machine.Current().Connection != Disconnected {
		return fmt.Errorf("already in a session")
	}

	stageID, token, err := o.backend.CreateStage(ctx)
	if err != nil {
		o.notifier.Error(MessageJoinFailed)
		return err
	}
	return o.join(ctx, stageID, token, RoleHost)
}

// JoinAsSpectator fetches a subscribe-only token and connects.
func (o *Orchestrator) JoinAsSpectator(ctx context.Context, stageID string) error {
	if err := o.admission.CanJoin(ctx, stageID, models.ParticipantTypeSpectator); err != nil {
		o.notifyJoinError(err)
		return err
	}
	token, err := o.backend.IssueToken(ctx, stageID, models.ParticipantTypeSpectator, o.self.Username)
	if err != nil {
		o.notifyJoinError(err)
		return err
	}
	return o.join(ctx, stageID, token, RoleSpectator)
}

// RequestToJoin submits a join request to the host's channel and parks the
// session until the host answers or the request gets revoked.
func (o *Orchestrator) RequestToJoin(ctx context.Context, stageID, hostChannel string) error {
	if err := o.admission.CanJoin(ctx, stageID, models.ParticipantTypeRequested); err != nil {
		o.notifyJoinError(err)
		return err
	}

	requestID := uuid.NewString()
	_, ok := o.machine.Apply(SubmitRequest(stageID, Participant{
		UserID:       requestID,
		Username:     o.self.Username,
		ProfileColor: o.self.ProfileColor,
		Avatar:       o.self.Avatar,
		Type:         models.ParticipantTypeRequested,
	}))
	if !ok {
		return nil
	}

	o.mu.Lock()
	o.hostChannel = hostChannel
	o.mu.Unlock()

	event := models.NewChannelEvent(models.EventStageRequestToJoin, models.StageRequestPayload{
		StageID:      stageID,
		UserID:       requestID,
		Username:     o.self.Username,
		ProfileColor: o.self.ProfileColor,
		Avatar:       o.self.Avatar,
		Type:         models.ParticipantTypeRequested,
		Sent:         time.Now().UnixMilli(),
	})
	if err := o.bus.Publish(hostChannel, event); err != nil {
		o.machine.Apply(ResolveRequest())
		o.notifier.Error(MessageJoinFailed)
		return err
	}
	return nil
}

// RevokeRequest withdraws a pending join request.
func (o *Orchestrator) RevokeRequest() error {
	current := o.machine.Current()
	if current.Role != RoleRequestPending {
		return nil
	}

	o.mu.Lock()
	hostChannel := o.hostChannel
	o.mu.Unlock()

	event := models.NewChannelEvent(models.EventStageRevokeRequest, models.StageRevokePayload{
		RequestUserID: current.Local.UserID,
	})
	err := o.bus.Publish(hostChannel, event)
	o.machine.Apply(ResolveRequest())
	return err
}

// AcceptRequest admits a requester. The token travels to the requester over
// its own channel; the host never connects on the requester's behalf.
func (o *Orchestrator) AcceptRequest(ctx context.Context, userID string) error {
	current := o.machine.Current()
	if current.Role != RoleHost {
		return fmt.Errorf("only the host can accept join requests")
	}
	req, ok := current.Request(userID)
	if !ok {
		return nil
	}

	if err := o.admission.CanJoin(ctx, current.StageID, req.Type); err != nil {
		if errors.Is(err, models.ErrStageFull) {
			o.notifier.Error(MessageSessionFull)
		}
		return err
	}
	token, err := o.backend.IssueToken(ctx, current.StageID, req.Type, req.Username)
	if err != nil {
		o.notifier.Error(MessageJoinFailed)
		return err
	}

	event := models.NewChannelEvent(models.EventStageHostAcceptRequest, models.StageAcceptPayload{
		StageID:       current.StageID,
		Token:         token,
		RequestUserID: req.UserID,
	})
	if err := o.bus.Publish(req.Username, event); err != nil {
		return err
	}
	o.machine.Apply(RemoveRequest(userID))
	return nil
}

// RejectRequest declines a requester and tells them so.
func (o *Orchestrator) RejectRequest(userID string) error {
	current := o.machine.Current()
	if current.Role != RoleHost {
		return fmt.Errorf("only the host can reject join requests")
	}
	req, ok := current.Request(userID)
	if !ok {
		return nil
	}

	event := models.NewChannelEvent(models.EventStageHostDeleteRequest, models.StageRejectPayload{
		RequestUserID: req.UserID,
	})
	err := o.bus.Publish(req.Username, event)
	o.machine.Apply(RemoveRequest(userID))
	return err
}

// KickParticipant removes a remote participant. The removal is applied
// locally right away; the kicked client leaves on its own once the event
// arrives, and the duplicate leave notification converges in the reconciler.
func (o *Orchestrator) KickParticipant(userID string) error {
	current := o.machine.Current()
	if current.Role != RoleHost {
		return fmt.Errorf("only the host can remove participants")
	}
	participant, ok := current.Participant(userID)
	if !ok || participant.IsLocal {
		return nil
	}

	event := models.NewChannelEvent(models.EventStageParticipantKicked, models.StageKickPayload{
		UserID: userID,
	})
	err := o.bus.Publish(participant.Username, event)
	o.machine.Apply(RemoveParticipant(userID))
	return err
}

// LeaveStage disconnects without tearing the stage down.
func (o *Orchestrator) LeaveStage() {
	current := o.machine.Current()
	if current.Connection == Disconnected && current.Role != RoleRequestPending {
		return
	}
	if current.Role == RoleRequestPending {
		if err := o.RevokeRequest(); err != nil {
			log.Warn().Err(err).Msg("An error occurred when revoking a join request on leave...")
		}
		return
	}
	o.connector.Leave()
	o.machine.Apply(Disconnect())
}

// EndSession ends the session for everyone and deletes the stage. Teardown of
// the remote stage is best effort; the local session always ends.
func (o *Orchestrator) EndSession(ctx context.Context) error {
	current := o.machine.Current()
	if current.Role != RoleHost {
		return fmt.Errorf("only the host can end the session")
	}

	event := models.NewChannelEvent(models.EventStageSessionHasEnded, nil)
	if err := o.bus.Publish(o.self.Username, event); err != nil {
		log.Warn().Err(err).Msg("An error occurred when broadcasting the session end...")
	}

	o.connector.Leave()
	o.machine.Apply(Disconnect())

	if err := o.backend.DeleteStage(ctx, current.StageID); err != nil {
		log.Warn().Err(err).Str("stage", current.StageID).Msg("An error occurred when deleting the stage...")
	}
	return nil
}

// RejoinOnStartup reconnects the host to a still-active stage left over from
// an earlier run. Joining someone else's stage always wins over rejoining.
func (o *Orchestrator) RejoinOnStartup(ctx context.Context, persistedStageID string, joiningElsewhere bool) error {
	if persistedStageID == "" || joiningElsewhere {
		return nil
	}
	if o.machine.Current().Connection != Disconnected {
		return nil
	}

	active, err := o.admission.IsStageActive(ctx, persistedStageID)
	if err != nil || !active {
		return err
	}
	token, err := o.backend.IssueToken(ctx, persistedStageID, models.ParticipantTypeHost, o.self.Username)
	if err != nil {
		log.Debug().Err(err).Str("stage", persistedStageID).Msg("Skipped rejoining a previous stage...")
		return err
	}
	return o.join(ctx, persistedStageID, token, RoleHost)
}

// JoinWithToken connects with a token handed over by the host accepting a
// join request. Implements SessionControl.
func (o *Orchestrator) JoinWithToken(stageID string, token models.ParticipantToken) {
	ctx, cancel := context.WithTimeout(context.Background(), o.joinTimeout)
	defer cancel()
	if err := o.join(ctx, stageID, token, roleForType(token.Type)); err != nil {
		log.Warn().Err(err).Str("stage", stageID).Msg("An error occurred when joining with a granted token...")
	}
}

// ForceLeave tears the local session down without ceremony. Implements
// SessionControl.
func (o *Orchestrator) ForceLeave() {
	o.connector.Leave()
	o.machine.Apply(Disconnect())
}

// InviteURL renders the shareable link for the current session. Only the host
// has one.
func (o *Orchestrator) InviteURL() string {
	current := o.machine.Current()
	if current.Role != RoleHost || current.StageID == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s?stageId=%s",
		strings.TrimSuffix(o.inviteBaseURL, "/"), o.self.Username, current.StageID)
}

func (o *Orchestrator) State() State {
	return o.machine.Current()
}

// join is the single path onto the media plane. The epoch captured before the
// connection attempt detects a session that was ended or kicked while the
// attempt was still in flight; the late connection is then abandoned.
func (o *Orchestrator) join(ctx context.Context, stageID string, token models.ParticipantToken, role Role) error {
	if _, busy := o.joinLocks.LoadOrStore(stageID, struct{}{}); busy {
		return nil
	}
	defer o.joinLocks.Delete(stageID)

	local := Participant{
		UserID:         token.UserID,
		Username:       o.self.Username,
		ProfileColor:   o.self.ProfileColor,
		Avatar:         o.self.Avatar,
		Type:           token.Type,
		Capabilities:   token.Capabilities,
		TokenCreatedAt: token.CreatedAt,
	}
	began, ok := o.machine.Apply(BeginJoin(stageID, role, local))
	if !ok {
		return nil
	}
	epoch := began.Epoch

	joinCtx, cancel := context.WithTimeout(ctx, o.joinTimeout)
	defer cancel()
	err := o.connector.Join(joinCtx, token)

	if o.machine.Current().Epoch != epoch {
		o.connector.Leave()
		return nil
	}
	if err != nil {
		o.machine.Apply(Disconnect())
		o.notifyJoinError(err)
		return err
	}
	o.machine.Apply(CompleteJoin())
	return nil
}

func (o *Orchestrator) notifyJoinError(err error) {
	if errors.Is(err, models.ErrStageFull) {
		o.notifier.Error(MessageSessionFull)
		return
	}
	o.notifier.Error(MessageJoinFailed)
}

func roleForType(t models.ParticipantType) Role {
	switch t {
	case models.ParticipantTypeHost:
		return RoleHost
	case models.ParticipantTypeSpectator:
		return RoleSpectator
	default:
		return RoleInvited
	}
}

package stage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/auroracast/stagecast/pkg/internal/models"
)

type fakeBackend struct {
	stageID   string
	created   int
	createErr error
	deleted   []string
	issueErr  error
	tokenSeq  int
}

func (b *fakeBackend) CreateStage(ctx context.Context) (string, models.ParticipantToken, error) {
	if b.createErr != nil {
		return "", models.ParticipantToken{}, b.createErr
	}
	b.created++
	return b.stageID, models.ParticipantToken{
		Token:        "creation-token",
		UserID:       "host:chan",
		Type:         models.ParticipantTypeHost,
		Capabilities: []models.Capability{models.CapabilityPublish, models.CapabilitySubscribe},
	}, nil
}

func (b *fakeBackend) DeleteStage(ctx context.Context, stageID string) error {
	b.deleted = append(b.deleted, stageID)
	return nil
}

func (b *fakeBackend) IssueToken(ctx context.Context, stageID string, participantType models.ParticipantType, username string) (models.ParticipantToken, error) {
	if b.issueErr != nil {
		return models.ParticipantToken{}, b.issueErr
	}
	b.tokenSeq++
	resolved := participantType
	if resolved == models.ParticipantTypeRequested {
		resolved = models.ParticipantTypeInvited
	}
	capabilities := []models.Capability{models.CapabilityPublish, models.CapabilitySubscribe}
	if resolved == models.ParticipantTypeSpectator {
		capabilities = []models.Capability{models.CapabilitySubscribe}
	}
	created := time.Now()
	return models.ParticipantToken{
		Token:        fmt.Sprintf("token-%d", b.tokenSeq),
		UserID:       fmt.Sprintf("user-%d", b.tokenSeq),
		Type:         resolved,
		Capabilities: capabilities,
		CreatedAt:    &created,
	}, nil
}

type fakeAdmission struct {
	canJoinErr error
	active     bool
	activeErr  error
	checked    []models.ParticipantType
}

func (a *fakeAdmission) CanJoin(ctx context.Context, stageID string, participantType models.ParticipantType) error {
	a.checked = append(a.checked, participantType)
	return a.canJoinErr
}

func (a *fakeAdmission) IsStageActive(ctx context.Context, stageID string) (bool, error) {
	return a.active, a.activeErr
}

type recordingBus struct {
	events map[string][]models.ChannelEvent
	err    error
}

func newRecordingBus() *recordingBus {
	return &recordingBus{events: make(map[string][]models.ChannelEvent)}
}

func (b *recordingBus) Publish(channel string, event models.ChannelEvent) error {
	if b.err != nil {
		return b.err
	}
	b.events[channel] = append(b.events[channel], event)
	return nil
}

type fakeConnector struct {
	joinErr error
	joined  int
	left    int
	gate    chan struct{}
	started chan struct{}
}

func (c *fakeConnector) Join(ctx context.Context, token models.ParticipantToken) error {
	c.joined++
	if c.started != nil {
		close(c.started)
		c.started = nil
	}
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.joinErr
}

func (c *fakeConnector) Leave() { c.left++ }

type orchestratorFixture struct {
	orchestrator *Orchestrator
	machine      *Machine
	backend      *fakeBackend
	admission    *fakeAdmission
	bus          *recordingBus
	connector    *fakeConnector
	notifier     *fakeNotifier
}

func newOrchestratorFixture(username string) *orchestratorFixture {
	f := &orchestratorFixture{
		machine:   NewMachine(),
		backend:   &fakeBackend{stageID: "stage-1"},
		admission: &fakeAdmission{active: true},
		bus:       newRecordingBus(),
		connector: &fakeConnector{},
		notifier:  &fakeNotifier{},
	}
	f.orchestrator = NewOrchestrator(Deps{
		Machine:       f.machine,
		Backend:       f.backend,
		Admission:     f.admission,
		Bus:           f.bus,
		Connector:     f.connector,
		Notifier:      f.notifier,
		Self:          Identity{Username: username, ProfileColor: "blue", Avatar: "bear"},
		InviteBaseURL: "https://stagecast.example",
	})
	return f
}

func TestCreateStageJoinsAsHost(t *testing.T) {
	f := newOrchestratorFixture("alice")

	if err := f.orchestrator.CreateStage(context.Background()); err != nil {
		t.Fatal(err)
	}

	state := f.orchestrator.State()
	if state.Connection != Connected || state.Role != RoleHost || state.StageID != "stage-1" {
		t.Fatalf("unexpected state: %v %v %q", state.Connection, state.Role, state.StageID)
	}
	if f.connector.joined != 1 {
		t.Errorf("expected one media join, got %d", f.connector.joined)
	}
	if url := f.orchestrator.InviteURL(); url != "https://stagecast.example/alice?stageId=stage-1" {
		t.Errorf("unexpected invite url %q", url)
	}
}

func TestCreateStageFailureNotifies(t *testing.T) {
	f := newOrchestratorFixture("alice")
	f.backend.createErr = errors.New("backend down")

	if err := f.orchestrator.CreateStage(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if state := f.orchestrator.State(); state.Connection != Disconnected {
		t.Fatalf("expected an idle session, got %v", state.Connection)
	}
	if len(f.notifier.errors) != 1 || f.notifier.errors[0] != MessageJoinFailed {
		t.Fatalf("expected the join-failed message, got %v", f.notifier.errors)
	}
}

func TestJoinAsSpectatorWhenFull(t *testing.T) {
	f := newOrchestratorFixture("dave")
	f.admission.canJoinErr = models.ErrStageFull

	if err := f.orchestrator.JoinAsSpectator(context.Background(), "stage-1"); !errors.Is(err, models.ErrStageFull) {
		t.Fatalf("expected the full-stage error, got %v", err)
	}
	if f.connector.joined != 0 {
		t.Error("expected no media join")
	}
	if len(f.notifier.errors) != 1 || f.notifier.errors[0] != MessageSessionFull {
		t.Fatalf("expected the session-full message, got %v", f.notifier.errors)
	}
}

func TestMediaJoinFailureRollsBack(t *testing.T) {
	f := newOrchestratorFixture("dave")
	f.connector.joinErr = errors.New("ice failure")

	if err := f.orchestrator.JoinAsSpectator(context.Background(), "stage-1"); err == nil {
		t.Fatal("expected an error")
	}
	if state := f.orchestrator.State(); state.Connection != Disconnected || state.Role != RoleNone {
		t.Fatalf("expected a rollback to idle, got %v %v", state.Connection, state.Role)
	}
	if len(f.notifier.errors) != 1 || f.notifier.errors[0] != MessageJoinFailed {
		t.Fatalf("expected the join-failed message, got %v", f.notifier.errors)
	}
}

func TestOverlappingCreateCollapses(t *testing.T) {
	f := newOrchestratorFixture("alice")
	f.connector.gate = make(chan struct{})
	f.connector.started = make(chan struct{})
	started := f.connector.started

	done := make(chan error, 1)
	go func() {
		done <- f.orchestrator.CreateStage(context.Background())
	}()
	<-started

	if err := f.orchestrator.CreateStage(context.Background()); err != nil {
		t.Fatalf("expected the overlapping attempt to be a silent no-op, got %v", err)
	}

	close(f.connector.gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if f.backend.created != 1 {
		t.Fatalf("expected one stage creation, got %d", f.backend.created)
	}
}

func TestStaleJoinDiscardedAfterForceLeave(t *testing.T) {
	f := newOrchestratorFixture("dave")
	f.connector.gate = make(chan struct{})
	f.connector.started = make(chan struct{})
	started := f.connector.started

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.orchestrator.JoinWithToken("stage-1", models.ParticipantToken{
			Token:  "token-1",
			UserID: "user-1",
			Type:   models.ParticipantTypeInvited,
		})
	}()
	<-started

	// The session ends while the media join is still in flight.
	f.orchestrator.ForceLeave()
	close(f.connector.gate)
	<-done

	if state := f.orchestrator.State(); state.Connection != Disconnected {
		t.Fatalf("expected the late join to be abandoned, got %v", state.Connection)
	}
	if f.connector.left < 2 {
		t.Errorf("expected the stale connection to be torn down, got %d leaves", f.connector.left)
	}
}

func TestRequestToJoinPublishesToHostChannel(t *testing.T) {
	f := newOrchestratorFixture("dave")

	if err := f.orchestrator.RequestToJoin(context.Background(), "stage-1", "alice"); err != nil {
		t.Fatal(err)
	}

	state := f.orchestrator.State()
	if state.Role != RoleRequestPending {
		t.Fatalf("expected a pending request, got %v", state.Role)
	}

	events := f.bus.events["alice"]
	if len(events) != 1 || events[0].Type != models.EventStageRequestToJoin {
		t.Fatalf("expected one request event on the host channel, got %v", events)
	}
	var payload models.StageRequestPayload
	if err := events[0].DecodePayload(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Username != "dave" || payload.UserID != state.Local.UserID {
		t.Errorf("unexpected payload %+v", payload)
	}

	if err := f.orchestrator.RevokeRequest(); err != nil {
		t.Fatal(err)
	}
	if state := f.orchestrator.State(); state.Role != RoleNone {
		t.Fatalf("expected the request to resolve, got %v", state.Role)
	}
	if events := f.bus.events["alice"]; len(events) != 2 || events[1].Type != models.EventStageRevokeRequest {
		t.Fatalf("expected a revoke event on the host channel, got %v", events)
	}
}

func TestAcceptRequestIssuesTokenForRequester(t *testing.T) {
	f := newOrchestratorFixture("alice")
	if err := f.orchestrator.CreateStage(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.machine.Apply(AddRequest(models.JoinRequest{
		UserID:   "req-1",
		Username: "dave",
		Type:     models.ParticipantTypeRequested,
		Status:   models.JoinRequestPending,
	}))

	if err := f.orchestrator.AcceptRequest(context.Background(), "req-1"); err != nil {
		t.Fatal(err)
	}

	events := f.bus.events["dave"]
	if len(events) != 1 || events[0].Type != models.EventStageHostAcceptRequest {
		t.Fatalf("expected one accept event on the requester channel, got %v", events)
	}
	var payload models.StageAcceptPayload
	if err := events[0].DecodePayload(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.RequestUserID != "req-1" || payload.Token.Type != models.ParticipantTypeInvited {
		t.Errorf("unexpected payload %+v", payload)
	}
	if len(f.orchestrator.State().Requests) != 0 {
		t.Error("expected the accepted request to be removed")
	}
}

func TestAcceptRequestWhenFullKeepsRequest(t *testing.T) {
	f := newOrchestratorFixture("alice")
	if err := f.orchestrator.CreateStage(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.machine.Apply(AddRequest(models.JoinRequest{UserID: "req-1", Username: "dave", Type: models.ParticipantTypeRequested}))
	f.admission.canJoinErr = models.ErrStageFull

	if err := f.orchestrator.AcceptRequest(context.Background(), "req-1"); !errors.Is(err, models.ErrStageFull) {
		t.Fatalf("expected the full-stage error, got %v", err)
	}
	if len(f.notifier.errors) != 1 || f.notifier.errors[0] != MessageSessionFull {
		t.Fatalf("expected the session-full message, got %v", f.notifier.errors)
	}
	if len(f.orchestrator.State().Requests) != 1 {
		t.Error("expected the request to survive the failed admission")
	}
	if len(f.bus.events["dave"]) != 0 {
		t.Error("expected no event for the requester")
	}
}

func TestAcceptRequestRequiresHost(t *testing.T) {
	f := newOrchestratorFixture("dave")
	if err := f.orchestrator.AcceptRequest(context.Background(), "req-1"); err == nil {
		t.Fatal("expected an error for a non-host")
	}
}

func TestAcceptUnknownRequestIsNoOp(t *testing.T) {
	f := newOrchestratorFixture("alice")
	if err := f.orchestrator.CreateStage(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.orchestrator.AcceptRequest(context.Background(), "ghost"); err != nil {
		t.Fatalf("expected a stale accept to converge silently, got %v", err)
	}
	if f.backend.tokenSeq != 0 {
		t.Error("expected no token to be minted")
	}
}

func TestRejectRequestNotifiesRequester(t *testing.T) {
	f := newOrchestratorFixture("alice")
	if err := f.orchestrator.CreateStage(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.machine.Apply(AddRequest(models.JoinRequest{UserID: "req-1", Username: "dave", Type: models.ParticipantTypeRequested}))

	if err := f.orchestrator.RejectRequest("req-1"); err != nil {
		t.Fatal(err)
	}
	events := f.bus.events["dave"]
	if len(events) != 1 || events[0].Type != models.EventStageHostDeleteRequest {
		t.Fatalf("expected one reject event, got %v", events)
	}
	if len(f.orchestrator.State().Requests) != 0 {
		t.Error("expected the rejected request to be removed")
	}
}

func TestKickParticipant(t *testing.T) {
	f := newOrchestratorFixture("alice")
	if err := f.orchestrator.CreateStage(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.machine.Apply(AddParticipant(Participant{UserID: "user-2", Username: "dave"}))

	if err := f.orchestrator.KickParticipant("user-2"); err != nil {
		t.Fatal(err)
	}
	events := f.bus.events["dave"]
	if len(events) != 1 || events[0].Type != models.EventStageParticipantKicked {
		t.Fatalf("expected one kick event, got %v", events)
	}
	if _, ok := f.orchestrator.State().Participant("user-2"); ok {
		t.Error("expected the participant to be removed locally")
	}

	// Kicking again converges without another event.
	if err := f.orchestrator.KickParticipant("user-2"); err != nil {
		t.Fatal(err)
	}
	if len(f.bus.events["dave"]) != 1 {
		t.Error("expected no duplicate kick event")
	}
}

func TestEndSession(t *testing.T) {
	f := newOrchestratorFixture("alice")
	if err := f.orchestrator.CreateStage(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := f.orchestrator.EndSession(context.Background()); err != nil {
		t.Fatal(err)
	}
	if state := f.orchestrator.State(); state.Connection != Disconnected {
		t.Fatalf("expected an idle session, got %v", state.Connection)
	}
	events := f.bus.events["alice"]
	if len(events) != 1 || events[0].Type != models.EventStageSessionHasEnded {
		t.Fatalf("expected the session-ended broadcast, got %v", events)
	}
	if len(f.backend.deleted) != 1 || f.backend.deleted[0] != "stage-1" {
		t.Fatalf("expected the stage to be deleted, got %v", f.backend.deleted)
	}
}

func TestEndSessionRequiresHost(t *testing.T) {
	f := newOrchestratorFixture("dave")
	if err := f.orchestrator.JoinAsSpectator(context.Background(), "stage-1"); err != nil {
		t.Fatal(err)
	}
	if err := f.orchestrator.EndSession(context.Background()); err == nil {
		t.Fatal("expected an error for a non-host")
	}
}

func TestRejoinOnStartup(t *testing.T) {
	f := newOrchestratorFixture("alice")
	f.admission.active = true

	if err := f.orchestrator.RejoinOnStartup(context.Background(), "stage-1", false); err != nil {
		t.Fatal(err)
	}
	if state := f.orchestrator.State(); state.Connection != Connected || state.Role != RoleHost {
		t.Fatalf("expected a reconnected host, got %v %v", state.Connection, state.Role)
	}
}

func TestRejoinSkippedWhenJoiningElsewhere(t *testing.T) {
	f := newOrchestratorFixture("alice")
	f.admission.active = true

	if err := f.orchestrator.RejoinOnStartup(context.Background(), "stage-1", true); err != nil {
		t.Fatal(err)
	}
	if f.connector.joined != 0 {
		t.Error("expected no media join")
	}
}

func TestRejoinSkippedWhenInactive(t *testing.T) {
	f := newOrchestratorFixture("alice")
	f.admission.active = false

	if err := f.orchestrator.RejoinOnStartup(context.Background(), "stage-1", false); err != nil {
		t.Fatal(err)
	}
	if f.backend.tokenSeq != 0 || f.connector.joined != 0 {
		t.Error("expected no token and no media join for an inactive stage")
	}
}

// routerBus wires two clients together the way the gateway does in
// production: each username channel is delivered to its owner's reconciler.
type routerBus struct {
	routes map[string]*Reconciler
}

func (b *routerBus) Publish(channel string, event models.ChannelEvent) error {
	if r, ok := b.routes[channel]; ok {
		r.ApplyChannelEvent(event)
	}
	return nil
}

func TestHostViewerSessionFlow(t *testing.T) {
	bus := &routerBus{routes: make(map[string]*Reconciler)}
	backend := &fakeBackend{stageID: "stage-1"}
	admission := &fakeAdmission{active: true}

	hostMachine := NewMachine()
	hostNotifier := &fakeNotifier{}
	hostConnector := &fakeConnector{}
	host := NewOrchestrator(Deps{
		Machine:   hostMachine,
		Backend:   backend,
		Admission: admission,
		Bus:       bus,
		Connector: hostConnector,
		Notifier:  hostNotifier,
		Self:      Identity{Username: "alice"},
	})
	bus.routes["alice"] = NewReconciler(hostMachine, hostNotifier, &fakeRefresher{}, host)

	viewerMachine := NewMachine()
	viewerNotifier := &fakeNotifier{}
	viewerConnector := &fakeConnector{}
	viewer := NewOrchestrator(Deps{
		Machine:   viewerMachine,
		Backend:   backend,
		Admission: admission,
		Bus:       bus,
		Connector: viewerConnector,
		Notifier:  viewerNotifier,
		Self:      Identity{Username: "dave"},
	})
	viewerReconciler := NewReconciler(viewerMachine, viewerNotifier, &fakeRefresher{}, viewer)
	bus.routes["dave"] = viewerReconciler

	// The host goes live.
	if err := host.CreateStage(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The viewer asks to join; the request lands in the host's queue.
	if err := viewer.RequestToJoin(context.Background(), "stage-1", "alice"); err != nil {
		t.Fatal(err)
	}
	hostState := host.State()
	if len(hostState.Requests) != 1 || hostState.Requests[0].Username != "dave" {
		t.Fatalf("expected the request in the host queue, got %v", hostState.Requests)
	}

	// The host accepts; the token travels to the viewer, which connects.
	if err := host.AcceptRequest(context.Background(), hostState.Requests[0].UserID); err != nil {
		t.Fatal(err)
	}
	viewerState := viewer.State()
	if viewerState.Connection != Connected || viewerState.Role != RoleInvited {
		t.Fatalf("expected a connected invited viewer, got %v %v", viewerState.Connection, viewerState.Role)
	}
	if len(host.State().Requests) != 0 {
		t.Error("expected the request queue to drain")
	}

	// The media plane reports the arrival to the host, who gets notified.
	bus.routes["alice"].HandleSDKEvent(ParticipantJoined{Participant: Participant{
		UserID:         viewerState.Local.UserID,
		Username:       "dave",
		Type:           models.ParticipantTypeInvited,
		TokenCreatedAt: viewerState.Local.TokenCreatedAt,
	}})
	if len(hostNotifier.successes) != 1 || hostNotifier.successes[0] != UserJoinedMessage("dave") {
		t.Fatalf("expected the host to see the arrival, got %v", hostNotifier.successes)
	}

	// The host removes the viewer.
	if err := host.KickParticipant(viewerState.Local.UserID); err != nil {
		t.Fatal(err)
	}
	if state := viewer.State(); state.Connection != Disconnected {
		t.Fatalf("expected the viewer to be disconnected, got %v", state.Connection)
	}
	if len(viewerNotifier.neutrals) != 1 || viewerNotifier.neutrals[0] != MessageRemovedFromSession {
		t.Fatalf("expected the removal message, got %v", viewerNotifier.neutrals)
	}

	// The host wraps up.
	if err := host.EndSession(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(backend.deleted) != 1 {
		t.Fatalf("expected the stage to be deleted, got %v", backend.deleted)
	}
}

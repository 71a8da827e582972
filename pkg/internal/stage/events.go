package stage

// Media session callbacks, normalized away from any particular SDK surface.

type PublishState string

const (
	PublishNotPublished = PublishState("NOT_PUBLISHED")
	PublishAttempting   = PublishState("ATTEMPTING_PUBLISH")
	PublishPublished    = PublishState("PUBLISHED")
	PublishErrored      = PublishState("ERRORED")
)

type SubscribeState string

const (
	SubscribeNotSubscribed = SubscribeState("NOT_SUBSCRIBED")
	SubscribeAttempting    = SubscribeState("ATTEMPTING_SUBSCRIBE")
	SubscribeSubscribed    = SubscribeState("SUBSCRIBED")
	SubscribeErrored       = SubscribeState("ERRORED")
)

type SDKEvent interface {
	sdkEvent()
}

type ParticipantJoined struct {
	Participant Participant
}

type ParticipantLeft struct {
	UserID string
}

type StreamsAdded struct {
	UserID  string
	Streams []string
}

type StreamMuteChanged struct {
	UserID string
	Stream StreamType
	Muted  bool
}

type PublishStateChanged struct {
	UserID     string
	State      PublishState
	Publishing bool
}

type SubscribeStateChanged struct {
	UserID string
	State  SubscribeState
}

type ConnectionLost struct{}

type ConnectionRestored struct{}

func (ParticipantJoined) sdkEvent()     {}
func (ParticipantLeft) sdkEvent()       {}
func (StreamsAdded) sdkEvent()          {}
func (StreamMuteChanged) sdkEvent()     {}
func (PublishStateChanged) sdkEvent()   {}
func (SubscribeStateChanged) sdkEvent() {}
func (ConnectionLost) sdkEvent()        {}
func (ConnectionRestored) sdkEvent()    {}

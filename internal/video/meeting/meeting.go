/*
Package meeting drives a single external video conferencing session through
its lifecycle and exposes a minimal event surface to the hosting page.

The external widget (script loading, session construction, event delivery) is
reached only through injected interfaces, so the state machine can be tested
against a fake session that emits synthetic lifecycle events.
*/
package meeting

import (
	"context"

	"telemed/internal/video/token"
)

// State is the adapter lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateScriptLoading
	StateTokenFetching
	StateSessionCreating
	StateConnecting
	StateConnected
	StateEnded
	StateErrored
)

// String returns the stable name for the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateScriptLoading:
		return "script_loading"
	case StateTokenFetching:
		return "token_fetching"
	case StateSessionCreating:
		return "session_creating"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Vendor lifecycle event names, as delivered by the conferencing session object.
const (
	EventConferenceJoined  = "videoConferenceJoined"
	EventConferenceLeft    = "videoConferenceLeft"
	EventParticipantJoined = "participantJoined"
	EventParticipantLeft   = "participantLeft"
	EventReadyToClose      = "readyToClose"
	EventErrorOccurred     = "errorOccurred"
	EventHangup            = "hangup"
)

// Session is the live handle to an external conferencing widget instance.
type Session interface {
	// AddListener registers a callback for the named lifecycle event.
	AddListener(event string, handler func(data map[string]any))

	// ExecuteCommand invokes a widget command such as "hangup".
	ExecuteCommand(command string, args ...any) error

	// Dispose tears the widget instance down. Must be called exactly once.
	Dispose()
}

// SessionOptions carries everything the external session constructor needs.
type SessionOptions struct {
	// RoomName is the fully-qualified room identifier from the issued token.
	RoomName string

	// JWT is the signed credential admitting the participant.
	JWT string

	// DisplayName is shown to the other participant.
	DisplayName string

	// StartWithAudioMuted is set for patients only; doctors join unmuted.
	StartWithAudioMuted bool

	// RecordingEnabled and TranscriptionEnabled are always false for medical
	// sessions; carried explicitly so the constructor config states it.
	RecordingEnabled     bool
	TranscriptionEnabled bool
}

// SessionFactory constructs external conferencing sessions. The production
// implementation wraps the vendor's globally-registered constructor; tests
// substitute a fake.
type SessionFactory interface {
	Create(domain string, opts SessionOptions) (Session, error)
}

// ScriptLoader loads the vendor script that registers the session
// constructor. Load is invoked at most once per application identifier per
// process; the adapter handles the once-guard.
type ScriptLoader interface {
	Load(ctx context.Context, appID string) error
}

// TokenSource supplies issued tokens. Implemented by tokenclient.Client.
type TokenSource interface {
	GetToken(ctx context.Context, req token.Request, useCache bool) (*token.IssuedToken, error)
}

// Callbacks is the event surface exposed to the hosting page. Nil callbacks
// are ignored. Error messages are sanitized; internal diagnostics stay in the
// server logs.
type Callbacks struct {
	// OnStarted fires when the conference is joined (or the join fallback
	// timeout elapses).
	OnStarted func()

	// OnEnded fires on hangup, explicit leave, or the session's close signal.
	OnEnded func()

	// OnError fires with a user-safe message when the adapter enters the
	// errored state.
	OnError func(message string)

	// OnParticipantCount fires whenever the participant count changes.
	OnParticipantCount func(count int)
}

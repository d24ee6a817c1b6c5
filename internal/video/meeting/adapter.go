package meeting

import (
	"context"
	"errors"
	"sync"
	"time"

	"telemed/internal/pkg/logx"
	"telemed/internal/video/token"
)

const (
	// DefaultJoinTimeout bounds the Connecting state: if the vendor's
	// conference-joined signal never arrives, the adapter reports the session
	// started anyway rather than hanging indefinitely. The vendor's event
	// delivery is not fully reliable, so this is a named policy, not a bug
	// workaround buried in a magic number.
	DefaultJoinTimeout = 8 * time.Second

	// DefaultSettleDelay is the pause after the vendor script's load signal
	// before the constructor is assumed callable.
	DefaultSettleDelay = 200 * time.Millisecond
)

// Sanitized user-facing failure messages. Raw diagnostics are logged
// server-side only.
const (
	msgScriptLoadFailed = "Failed to load the video calling service."
	msgTokenFailed      = "Failed to start the video consultation. Please try again."
	msgSessionFailed    = "Failed to initialize the video meeting. Please try again."
	msgMeetingFailed    = "Meeting connection failed. Please try again."
)

// ErrAlreadyStarted is returned when Start is called while a session attempt
// is in flight or connected.
var ErrAlreadyStarted = errors.New("meeting: session already started")

// loadedScripts tracks which application identifiers already have the vendor
// script loaded, process-wide, so remounts never load it twice. Each entry
// carries its own lock so concurrent adapters for the same application
// identifier serialize on the load instead of racing it; a failed load leaves
// the entry unmarked for the next attempt.
type scriptState struct {
	mu     sync.Mutex
	loaded bool
}

var (
	loadedScriptsMu sync.Mutex
	loadedScripts   = make(map[string]*scriptState)
)

// Config parameterizes one adapter instance.
type Config struct {
	// AppID is the tenant application identifier, used for script loading.
	AppID string

	// Request identifies the participant and room for token issuance.
	Request token.Request

	// DisplayName overrides Request.UserName in the widget when non-empty.
	DisplayName string

	// JoinTimeout overrides DefaultJoinTimeout when positive.
	JoinTimeout time.Duration

	// SettleDelay overrides DefaultSettleDelay when positive.
	SettleDelay time.Duration

	// Callbacks is the host page's event surface.
	Callbacks Callbacks
}

// Adapter owns at most one external conferencing session at a time and walks
// it through the lifecycle state machine. All methods are safe for
// concurrent use.
type Adapter struct {
	cfg     Config
	loader  ScriptLoader
	tokens  TokenSource
	factory SessionFactory

	mu           sync.Mutex
	state        State
	session      Session
	participants int
	joinTimer    *time.Timer

	// generation invalidates callbacks from torn-down attempts: every event
	// handler captures the generation it was registered under and is ignored
	// once the adapter has moved on.
	generation int
}

// NewAdapter constructs an Adapter in the uninitialized state.
func NewAdapter(cfg Config, loader ScriptLoader, tokens TokenSource, factory SessionFactory) *Adapter {
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.Request.UserName
	}

	return &Adapter{
		cfg:     cfg,
		loader:  loader,
		tokens:  tokens,
		factory: factory,
		state:   StateUninitialized,
	}
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// ParticipantCount returns the current participant count. Never negative.
func (a *Adapter) ParticipantCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.participants
}

// Start walks the state machine from script loading through session creation
// and returns once the session is connecting. The conference-joined signal
// (or the join fallback timeout) later moves the adapter to connected via
// OnStarted. Calling Start while an attempt is in flight or connected
// returns ErrAlreadyStarted.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateUninitialized {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.state = StateScriptLoading
	gen := a.generation
	a.mu.Unlock()

	if err := a.ensureScript(ctx); err != nil {
		if ctx.Err() != nil {
			a.abort(gen)
			return err
		}
		logx.Error(err, "Vendor script load failed", "app_id", a.cfg.AppID)
		a.fail(gen, msgScriptLoadFailed)
		return err
	}

	// The script's load signal fires before its constructor is reliably
	// callable; give it a moment to settle.
	select {
	case <-ctx.Done():
		a.abort(gen)
		return ctx.Err()
	case <-time.After(a.cfg.SettleDelay):
	}

	if !a.advance(gen, StateTokenFetching) {
		return nil
	}

	issued, err := a.tokens.GetToken(ctx, a.cfg.Request, true)
	if err != nil {
		if ctx.Err() != nil {
			a.abort(gen)
			return err
		}
		logx.Error(err, "Token fetch failed", "room_id", a.cfg.Request.RoomID)
		a.fail(gen, msgTokenFailed)
		return err
	}

	if !a.advance(gen, StateSessionCreating) {
		return nil
	}

	opts := SessionOptions{
		RoomName:            issued.RoomName,
		JWT:                 issued.Token,
		DisplayName:         a.cfg.DisplayName,
		StartWithAudioMuted: a.cfg.Request.UserRole == token.RolePatient,
	}

	session, err := a.factory.Create(issued.Domain, opts)
	if err != nil {
		logx.Error(err, "Session construction failed", "room_name", issued.RoomName)
		a.fail(gen, msgSessionFailed)
		return err
	}

	a.mu.Lock()
	if gen != a.generation {
		// Torn down while creating; the session must not outlive the adapter
		// attempt that created it.
		a.mu.Unlock()
		session.Dispose()
		return nil
	}
	a.session = session
	a.state = StateConnecting
	a.registerListeners(session, gen)
	a.joinTimer = time.AfterFunc(a.cfg.JoinTimeout, func() {
		a.handleJoined(gen)
	})
	a.mu.Unlock()

	return nil
}

// Close tears down the current session attempt: the external session is
// disposed exactly once if it was created, the pending join timer is
// cleared, and late event callbacks are suppressed.
func (a *Adapter) Close() {
	a.mu.Lock()
	a.generation++
	session := a.teardownLocked()
	if a.state != StateErrored {
		a.state = StateEnded
	}
	a.mu.Unlock()

	if session != nil {
		session.Dispose()
	}
}

// Retry fully disposes the current session attempt and restarts from the
// uninitialized state. It implements the user-facing retry affordance shown
// when the adapter errors.
func (a *Adapter) Retry(ctx context.Context) error {
	a.mu.Lock()
	a.generation++
	session := a.teardownLocked()
	a.state = StateUninitialized
	a.participants = 0
	a.mu.Unlock()

	if session != nil {
		session.Dispose()
	}

	return a.Start(ctx)
}

// Hangup asks the external session to hang up. The resulting hangup event
// moves the adapter to ended.
func (a *Adapter) Hangup() {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()

	if session == nil {
		return
	}

	if err := session.ExecuteCommand("hangup"); err != nil {
		logx.Warn("Hangup command failed", "error", err)
	}
}

// teardownLocked clears the join timer and detaches the session, returning
// it for disposal outside the lock. Caller must hold a.mu.
func (a *Adapter) teardownLocked() Session {
	if a.joinTimer != nil {
		a.joinTimer.Stop()
		a.joinTimer = nil
	}

	session := a.session
	a.session = nil
	return session
}

// ensureScript loads the vendor script once per application identifier.
func (a *Adapter) ensureScript(ctx context.Context) error {
	loadedScriptsMu.Lock()
	state, ok := loadedScripts[a.cfg.AppID]
	if !ok {
		state = &scriptState{}
		loadedScripts[a.cfg.AppID] = state
	}
	loadedScriptsMu.Unlock()

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.loaded {
		return nil
	}
	if err := a.loader.Load(ctx, a.cfg.AppID); err != nil {
		return err
	}
	state.loaded = true
	return nil
}

// advance moves the state machine forward if the attempt is still current.
func (a *Adapter) advance(gen int, next State) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.generation {
		return false
	}

	a.state = next
	return true
}

// abort tears a cancelled attempt down without surfacing an error message.
// Cancellation comes from the host itself, so the error callback stays quiet
// and the adapter ends up in the same state Close leaves it in.
func (a *Adapter) abort(gen int) {
	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		return
	}
	a.generation++
	session := a.teardownLocked()
	a.state = StateEnded
	a.mu.Unlock()

	if session != nil {
		session.Dispose()
	}
}

// fail moves the adapter to errored, tears the attempt down, and surfaces a
// sanitized message to the host page. Stale attempts are ignored.
func (a *Adapter) fail(gen int, message string) {
	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		return
	}
	a.generation++
	session := a.teardownLocked()
	a.state = StateErrored
	a.mu.Unlock()

	if session != nil {
		session.Dispose()
	}

	if a.cfg.Callbacks.OnError != nil {
		a.cfg.Callbacks.OnError(message)
	}
}

// registerListeners wires the vendor session's lifecycle events to the state
// machine. Caller must hold a.mu.
func (a *Adapter) registerListeners(session Session, gen int) {
	session.AddListener(EventConferenceJoined, func(map[string]any) {
		a.handleJoined(gen)
	})
	session.AddListener(EventConferenceLeft, func(map[string]any) {
		a.handleEnded(gen)
	})
	session.AddListener(EventReadyToClose, func(map[string]any) {
		a.handleEnded(gen)
	})
	session.AddListener(EventHangup, func(map[string]any) {
		a.handleEnded(gen)
	})
	session.AddListener(EventParticipantJoined, func(map[string]any) {
		a.handleParticipantDelta(gen, 1)
	})
	session.AddListener(EventParticipantLeft, func(map[string]any) {
		a.handleParticipantDelta(gen, -1)
	})
	session.AddListener(EventErrorOccurred, func(data map[string]any) {
		logx.Warn("Conferencing session reported an error", "detail", data)
		a.fail(gen, msgMeetingFailed)
	})
}

// handleJoined fires on the vendor's conference-joined signal and on the
// join fallback timeout, whichever comes first.
func (a *Adapter) handleJoined(gen int) {
	a.mu.Lock()
	if gen != a.generation || a.state != StateConnecting {
		a.mu.Unlock()
		return
	}
	if a.joinTimer != nil {
		a.joinTimer.Stop()
		a.joinTimer = nil
	}
	a.state = StateConnected
	a.mu.Unlock()

	if a.cfg.Callbacks.OnStarted != nil {
		a.cfg.Callbacks.OnStarted()
	}
}

func (a *Adapter) handleEnded(gen int) {
	a.mu.Lock()
	if gen != a.generation || (a.state != StateConnecting && a.state != StateConnected) {
		a.mu.Unlock()
		return
	}
	if a.joinTimer != nil {
		a.joinTimer.Stop()
		a.joinTimer = nil
	}
	a.state = StateEnded
	a.mu.Unlock()

	if a.cfg.Callbacks.OnEnded != nil {
		a.cfg.Callbacks.OnEnded()
	}
}

func (a *Adapter) handleParticipantDelta(gen int, delta int) {
	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		return
	}
	a.participants += delta
	if a.participants < 0 {
		a.participants = 0
	}
	count := a.participants
	a.mu.Unlock()

	if a.cfg.Callbacks.OnParticipantCount != nil {
		a.cfg.Callbacks.OnParticipantCount(count)
	}
}

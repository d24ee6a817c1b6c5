package meeting_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"telemed/internal/video/meeting"
	"telemed/internal/video/token"
)

type fakeLoader struct {
	calls int32
	err   error
}

func (l *fakeLoader) Load(ctx context.Context, appID string) error {
	atomic.AddInt32(&l.calls, 1)
	return l.err
}

type fakeTokens struct {
	calls  int32
	err    error
	issued token.IssuedToken
}

func (t *fakeTokens) GetToken(ctx context.Context, req token.Request, useCache bool) (*token.IssuedToken, error) {
	atomic.AddInt32(&t.calls, 1)
	if t.err != nil {
		return nil, t.err
	}
	out := t.issued
	return &out, nil
}

type fakeSession struct {
	mu       sync.Mutex
	handlers map[string][]func(map[string]any)
	commands []string
	disposed int32
}

func (s *fakeSession) AddListener(event string, handler func(data map[string]any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[string][]func(map[string]any))
	}
	s.handlers[event] = append(s.handlers[event], handler)
}

func (s *fakeSession) ExecuteCommand(command string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, command)
	return nil
}

func (s *fakeSession) Dispose() {
	atomic.AddInt32(&s.disposed, 1)
}

func (s *fakeSession) fire(event string, data map[string]any) {
	s.mu.Lock()
	handlers := append([]func(map[string]any){}, s.handlers[event]...)
	s.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
}

type fakeFactory struct {
	mu       sync.Mutex
	err      error
	sessions []*fakeSession
	domains  []string
	opts     []meeting.SessionOptions
}

func (f *fakeFactory) Create(domain string, opts meeting.SessionOptions) (meeting.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeSession{}
	f.sessions = append(f.sessions, s)
	f.domains = append(f.domains, domain)
	f.opts = append(f.opts, opts)
	return s, nil
}

func (f *fakeFactory) last() *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

var appIDCounter int32

// uniqueAppID isolates the process-wide script-loaded registry between tests.
func uniqueAppID() string {
	return fmt.Sprintf("app-%d", atomic.AddInt32(&appIDCounter, 1))
}

func testRequest(role string) token.Request {
	return token.Request{
		RoomID:   "consultation-ab12cd34",
		UserID:   "user-1",
		UserName: "Dr. Chen",
		UserRole: role,
	}
}

func testTokens() *fakeTokens {
	return &fakeTokens{issued: token.IssuedToken{
		Token:     "signed.jwt.value",
		ExpiresAt: time.Now().Add(time.Hour),
		RoomName:  "consultation-ab12cd34",
		UserRole:  token.RoleDoctor,
		Moderator: true,
		Domain:    "8x8.vc",
	}}
}

func newTestAdapter(t *testing.T, cfg meeting.Config) (*meeting.Adapter, *fakeLoader, *fakeTokens, *fakeFactory) {
	t.Helper()
	if cfg.AppID == "" {
		cfg.AppID = uniqueAppID()
	}
	if cfg.Request.UserRole == "" {
		cfg.Request = testRequest(token.RoleDoctor)
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = time.Millisecond
	}
	loader := &fakeLoader{}
	tokens := testTokens()
	factory := &fakeFactory{}
	return meeting.NewAdapter(cfg, loader, tokens, factory), loader, tokens, factory
}

func TestAdapterHappyPath(t *testing.T) {
	var started, ended int32
	cfg := meeting.Config{
		Callbacks: meeting.Callbacks{
			OnStarted: func() { atomic.AddInt32(&started, 1) },
			OnEnded:   func() { atomic.AddInt32(&ended, 1) },
		},
	}
	a, loader, tokens, factory := newTestAdapter(t, cfg)

	if got := a.State(); got != meeting.StateUninitialized {
		t.Fatalf("initial state = %v, want %v", got, meeting.StateUninitialized)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := atomic.LoadInt32(&loader.calls); got != 1 {
		t.Errorf("loader calls = %d, want 1", got)
	}
	if got := atomic.LoadInt32(&tokens.calls); got != 1 {
		t.Errorf("token calls = %d, want 1", got)
	}
	if got := a.State(); got != meeting.StateConnecting {
		t.Fatalf("state after Start = %v, want %v", got, meeting.StateConnecting)
	}

	session := factory.last()
	if session == nil {
		t.Fatal("no session created")
	}
	if factory.domains[0] != "8x8.vc" {
		t.Errorf("session domain = %q, want %q", factory.domains[0], "8x8.vc")
	}
	if factory.opts[0].JWT != "signed.jwt.value" {
		t.Errorf("session JWT = %q", factory.opts[0].JWT)
	}
	if factory.opts[0].RoomName != "consultation-ab12cd34" {
		t.Errorf("session room = %q", factory.opts[0].RoomName)
	}

	session.fire(meeting.EventConferenceJoined, nil)
	if got := a.State(); got != meeting.StateConnected {
		t.Fatalf("state after join = %v, want %v", got, meeting.StateConnected)
	}
	if got := atomic.LoadInt32(&started); got != 1 {
		t.Errorf("OnStarted calls = %d, want 1", got)
	}

	// A second joined signal must not re-fire the callback.
	session.fire(meeting.EventConferenceJoined, nil)
	if got := atomic.LoadInt32(&started); got != 1 {
		t.Errorf("OnStarted calls after duplicate join = %d, want 1", got)
	}

	session.fire(meeting.EventHangup, nil)
	if got := a.State(); got != meeting.StateEnded {
		t.Fatalf("state after hangup = %v, want %v", got, meeting.StateEnded)
	}
	if got := atomic.LoadInt32(&ended); got != 1 {
		t.Errorf("OnEnded calls = %d, want 1", got)
	}
}

func TestAdapterRejectsDuplicateStart(t *testing.T) {
	a, _, _, _ := newTestAdapter(t, meeting.Config{})
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := a.Start(context.Background()); !errors.Is(err, meeting.ErrAlreadyStarted) {
		t.Fatalf("second Start error = %v, want ErrAlreadyStarted", err)
	}
}

func TestAdapterLoadsScriptOncePerAppID(t *testing.T) {
	appID := uniqueAppID()
	loader := &fakeLoader{}
	cfg := meeting.Config{
		AppID:       appID,
		Request:     testRequest(token.RoleDoctor),
		SettleDelay: time.Millisecond,
	}

	first := meeting.NewAdapter(cfg, loader, testTokens(), &fakeFactory{})
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	first.Close()

	second := meeting.NewAdapter(cfg, loader, testTokens(), &fakeFactory{})
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	second.Close()

	if got := atomic.LoadInt32(&loader.calls); got != 1 {
		t.Fatalf("loader calls = %d, want 1", got)
	}
}

func TestAdapterJoinFallbackTimeout(t *testing.T) {
	startedCh := make(chan struct{}, 1)
	cfg := meeting.Config{
		JoinTimeout: 20 * time.Millisecond,
		Callbacks: meeting.Callbacks{
			OnStarted: func() { startedCh <- struct{}{} },
		},
	}
	a, _, _, _ := newTestAdapter(t, cfg)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-startedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("OnStarted not called after join timeout")
	}
	if got := a.State(); got != meeting.StateConnected {
		t.Fatalf("state = %v, want %v", got, meeting.StateConnected)
	}
}

func TestAdapterCloseDisposesExactlyOnce(t *testing.T) {
	var started int32
	cfg := meeting.Config{
		Callbacks: meeting.Callbacks{
			OnStarted: func() { atomic.AddInt32(&started, 1) },
		},
	}
	a, _, _, factory := newTestAdapter(t, cfg)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	session := factory.last()

	a.Close()
	a.Close()

	if got := atomic.LoadInt32(&session.disposed); got != 1 {
		t.Fatalf("Dispose calls = %d, want 1", got)
	}
	if got := a.State(); got != meeting.StateEnded {
		t.Fatalf("state after Close = %v, want %v", got, meeting.StateEnded)
	}

	// Late vendor events after teardown are suppressed.
	session.fire(meeting.EventConferenceJoined, nil)
	if got := atomic.LoadInt32(&started); got != 0 {
		t.Fatalf("OnStarted calls after Close = %d, want 0", got)
	}
	if got := a.State(); got != meeting.StateEnded {
		t.Fatalf("state after late event = %v, want %v", got, meeting.StateEnded)
	}
}

func TestAdapterParticipantCountNeverNegative(t *testing.T) {
	var counts []int
	var mu sync.Mutex
	cfg := meeting.Config{
		Callbacks: meeting.Callbacks{
			OnParticipantCount: func(count int) {
				mu.Lock()
				counts = append(counts, count)
				mu.Unlock()
			},
		},
	}
	a, _, _, factory := newTestAdapter(t, cfg)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	session := factory.last()
	session.fire(meeting.EventConferenceJoined, nil)

	session.fire(meeting.EventParticipantLeft, nil)
	session.fire(meeting.EventParticipantLeft, nil)
	session.fire(meeting.EventParticipantJoined, nil)

	if got := a.ParticipantCount(); got != 1 {
		t.Fatalf("ParticipantCount = %d, want 1", got)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, c := range counts {
		if c < 0 {
			t.Fatalf("OnParticipantCount observed negative count %d", c)
		}
	}
}

func TestAdapterSessionErrorSanitized(t *testing.T) {
	errCh := make(chan string, 1)
	cfg := meeting.Config{
		Callbacks: meeting.Callbacks{
			OnError: func(message string) { errCh <- message },
		},
	}
	a, _, _, factory := newTestAdapter(t, cfg)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	session := factory.last()
	session.fire(meeting.EventErrorOccurred, map[string]any{
		"error": "membersOnly: conference for patient 0412-998-deadbeef rejected",
	})

	select {
	case msg := <-errCh:
		if msg != "Meeting connection failed. Please try again." {
			t.Fatalf("OnError message = %q, want sanitized message", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("OnError not called")
	}
	if got := a.State(); got != meeting.StateErrored {
		t.Fatalf("state = %v, want %v", got, meeting.StateErrored)
	}
	if got := atomic.LoadInt32(&session.disposed); got != 1 {
		t.Fatalf("Dispose calls = %d, want 1", got)
	}
}

func TestAdapterTokenFailure(t *testing.T) {
	errCh := make(chan string, 1)
	cfg := meeting.Config{
		AppID:       uniqueAppID(),
		Request:     testRequest(token.RoleDoctor),
		SettleDelay: time.Millisecond,
		Callbacks: meeting.Callbacks{
			OnError: func(message string) { errCh <- message },
		},
	}
	tokens := &fakeTokens{err: errors.New("dial tcp: connection refused")}
	factory := &fakeFactory{}
	a := meeting.NewAdapter(cfg, &fakeLoader{}, tokens, factory)

	if err := a.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded, want token error")
	}
	if got := a.State(); got != meeting.StateErrored {
		t.Fatalf("state = %v, want %v", got, meeting.StateErrored)
	}
	select {
	case msg := <-errCh:
		if msg != "Failed to start the video consultation. Please try again." {
			t.Fatalf("OnError message = %q, want sanitized token message", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("OnError not called")
	}
	if factory.last() != nil {
		t.Fatal("session created despite token failure")
	}
}

func TestAdapterScriptLoadFailure(t *testing.T) {
	errCh := make(chan string, 1)
	cfg := meeting.Config{
		AppID:       uniqueAppID(),
		Request:     testRequest(token.RoleDoctor),
		SettleDelay: time.Millisecond,
		Callbacks: meeting.Callbacks{
			OnError: func(message string) { errCh <- message },
		},
	}
	loader := &fakeLoader{err: errors.New("script tag onerror")}
	a := meeting.NewAdapter(cfg, loader, testTokens(), &fakeFactory{})

	if err := a.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded, want load error")
	}
	select {
	case msg := <-errCh:
		if msg != "Failed to load the video calling service." {
			t.Fatalf("OnError message = %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("OnError not called")
	}

	// A failed load must not mark the script as present.
	loader.err = nil
	if err := a.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if got := atomic.LoadInt32(&loader.calls); got != 2 {
		t.Fatalf("loader calls = %d, want 2", got)
	}
}

func TestAdapterRetryRebuildsSession(t *testing.T) {
	a, _, tokens, factory := newTestAdapter(t, meeting.Config{})

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := factory.last()
	first.fire(meeting.EventConferenceJoined, nil)

	if err := a.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if got := atomic.LoadInt32(&first.disposed); got != 1 {
		t.Fatalf("first session Dispose calls = %d, want 1", got)
	}
	second := factory.last()
	if second == nil || second == first {
		t.Fatal("Retry did not create a fresh session")
	}
	if got := a.State(); got != meeting.StateConnecting {
		t.Fatalf("state after Retry = %v, want %v", got, meeting.StateConnecting)
	}
	if got := atomic.LoadInt32(&tokens.calls); got != 2 {
		t.Fatalf("token calls = %d, want 2", got)
	}
	if got := a.ParticipantCount(); got != 0 {
		t.Fatalf("ParticipantCount after Retry = %d, want 0", got)
	}
}

func TestAdapterAudioMutedByRole(t *testing.T) {
	cases := []struct {
		role  string
		muted bool
	}{
		{token.RoleDoctor, false},
		{token.RolePatient, true},
	}
	for _, tc := range cases {
		cfg := meeting.Config{
			AppID:       uniqueAppID(),
			Request:     testRequest(tc.role),
			SettleDelay: time.Millisecond,
		}
		factory := &fakeFactory{}
		a := meeting.NewAdapter(cfg, &fakeLoader{}, testTokens(), factory)
		if err := a.Start(context.Background()); err != nil {
			t.Fatalf("%s: Start: %v", tc.role, err)
		}
		if got := factory.opts[0].StartWithAudioMuted; got != tc.muted {
			t.Errorf("%s: StartWithAudioMuted = %v, want %v", tc.role, got, tc.muted)
		}
		a.Close()
	}
}

func TestAdapterHangupCommand(t *testing.T) {
	a, _, _, factory := newTestAdapter(t, meeting.Config{})
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	session := factory.last()
	session.fire(meeting.EventConferenceJoined, nil)

	a.Hangup()
	session.mu.Lock()
	commands := append([]string{}, session.commands...)
	session.mu.Unlock()
	if len(commands) != 1 || commands[0] != "hangup" {
		t.Fatalf("commands = %v, want [hangup]", commands)
	}
}

// blockingLoader holds the first Load call open so a test can line up a
// concurrent one.
type blockingLoader struct {
	calls   int32
	started chan struct{}
	release chan struct{}
}

func (l *blockingLoader) Load(ctx context.Context, appID string) error {
	if atomic.AddInt32(&l.calls, 1) == 1 {
		close(l.started)
	}
	<-l.release
	return nil
}

func TestAdapterConcurrentStartsLoadScriptOnce(t *testing.T) {
	appID := uniqueAppID()
	loader := &blockingLoader{started: make(chan struct{}), release: make(chan struct{})}
	cfg := meeting.Config{
		AppID:       appID,
		Request:     testRequest(token.RoleDoctor),
		SettleDelay: time.Millisecond,
	}

	first := meeting.NewAdapter(cfg, loader, testTokens(), &fakeFactory{})
	second := meeting.NewAdapter(cfg, loader, testTokens(), &fakeFactory{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = first.Start(context.Background())
	}()
	<-loader.started
	go func() {
		defer wg.Done()
		_ = second.Start(context.Background())
	}()

	// Give the second adapter time to reach the load gate while the first
	// load is still in flight.
	time.Sleep(10 * time.Millisecond)
	close(loader.release)
	wg.Wait()

	if got := atomic.LoadInt32(&loader.calls); got != 1 {
		t.Fatalf("loader calls = %d, want 1", got)
	}
	first.Close()
	second.Close()
}

func TestAdapterCancelledStartStaysQuiet(t *testing.T) {
	errCh := make(chan string, 1)
	cfg := meeting.Config{
		AppID:       uniqueAppID(),
		Request:     testRequest(token.RoleDoctor),
		SettleDelay: 50 * time.Millisecond,
		Callbacks: meeting.Callbacks{
			OnError: func(message string) { errCh <- message },
		},
	}
	factory := &fakeFactory{}
	a := meeting.NewAdapter(cfg, &fakeLoader{}, testTokens(), factory)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := a.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Start error = %v, want context.Canceled", err)
	}
	select {
	case msg := <-errCh:
		t.Fatalf("OnError called with %q for a cancelled start", msg)
	case <-time.After(50 * time.Millisecond):
	}
	if got := a.State(); got != meeting.StateEnded {
		t.Fatalf("state = %v, want %v", got, meeting.StateEnded)
	}
	if factory.last() != nil {
		t.Fatal("session created despite cancellation")
	}
}

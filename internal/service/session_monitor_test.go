package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"sitter-link/internal/domain"
)

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) ObserveSession(event string) {
	o.events = append(o.events, event)
}

func newTestMonitor(now time.Time) (*SessionMonitor, SessionStore, *recordingObserver) {
	store := NewMemorySessionStore(0)
	obs := &recordingObserver{}
	m := NewSessionMonitor(zap.NewNop(), store, DefaultSessionTimeout, obs)
	m.now = func() time.Time { return now }
	return m, store, obs
}

func TestSessionMonitorCheck_ExpiredLogsOutWithoutRefresh(t *testing.T) {
	now := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	m, store, obs := newTestMonitor(now)
	last := now.Add(-3600001 * time.Millisecond)
	if err := store.Save(context.Background(), domain.Session{ID: "s1", UserID: "u1", IssuedAt: last, LastActivity: last}); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, err := m.Check(context.Background(), "s1")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, err := store.Get(context.Background(), "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session to be ended, got %v", err)
	}
	if len(obs.events) != 1 || obs.events[0] != "expired" {
		t.Fatalf("expected expired event, got %v", obs.events)
	}
}

func TestSessionMonitorCheck_ExactlyAtTimeoutIsLive(t *testing.T) {
	now := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	m, store, _ := newTestMonitor(now)
	last := now.Add(-DefaultSessionTimeout)
	_ = store.Save(context.Background(), domain.Session{ID: "s1", UserID: "u1", IssuedAt: last, LastActivity: last})

	if _, err := m.Check(context.Background(), "s1"); err != nil {
		t.Fatalf("expected live session at exactly the timeout, got %v", err)
	}
}

func TestSessionMonitorCheck_RecentActivityRefreshes(t *testing.T) {
	now := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	m, store, obs := newTestMonitor(now)
	last := now.Add(-time.Second)
	_ = store.Save(context.Background(), domain.Session{ID: "s1", UserID: "u1", IssuedAt: last, LastActivity: last})

	session, err := m.Check(context.Background(), "s1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !session.LastActivity.Equal(now) {
		t.Fatalf("expected returned session refreshed to now, got %v", session.LastActivity)
	}
	stored, err := store.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.LastActivity.Equal(now) {
		t.Fatalf("expected stored timestamp refreshed, got %v", stored.LastActivity)
	}
	if len(obs.events) != 0 {
		t.Fatalf("expected no lifecycle events, got %v", obs.events)
	}
}

func TestSessionMonitorCheck_UnknownSession(t *testing.T) {
	m, _, _ := newTestMonitor(time.Now().UTC())
	if _, err := m.Check(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionMonitorBeginAndEnd(t *testing.T) {
	now := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	m, store, obs := newTestMonitor(now)

	if _, err := m.Begin(context.Background(), ""); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid for empty user, got %v", err)
	}

	session, err := m.Begin(context.Background(), "u1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if session.ID == "" || !session.IssuedAt.Equal(now) || !session.LastActivity.Equal(now) {
		t.Fatalf("unexpected session: %+v", session)
	}
	if err := m.End(context.Background(), session.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := store.Get(context.Background(), session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session removed, got %v", err)
	}
	if len(obs.events) != 2 || obs.events[0] != "started" || obs.events[1] != "ended" {
		t.Fatalf("unexpected events: %v", obs.events)
	}
}

func TestSessionMonitorLookup_DoesNotRefresh(t *testing.T) {
	now := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	m, store, _ := newTestMonitor(now)
	last := now.Add(-time.Minute)
	_ = store.Save(context.Background(), domain.Session{ID: "s1", UserID: "u1", IssuedAt: last, LastActivity: last})

	if _, err := m.Lookup(context.Background(), "s1"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	stored, _ := store.Get(context.Background(), "s1")
	if !stored.LastActivity.Equal(last) {
		t.Fatalf("expected lookup to leave timestamp untouched")
	}
}

func TestSessionMonitorPulses(t *testing.T) {
	now := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	m, store, _ := newTestMonitor(now)
	liveAt := now.Add(-10 * time.Minute)
	staleAt := now.Add(-2 * time.Hour)
	_ = store.Save(context.Background(), domain.Session{ID: "live", UserID: "u1", IssuedAt: liveAt, LastActivity: liveAt})
	_ = store.Save(context.Background(), domain.Session{ID: "stale", UserID: "u2", IssuedAt: staleAt, LastActivity: staleAt})

	if m.Pulse("") {
		t.Fatalf("expected empty session id to be ignored")
	}
	if !m.Pulse("live") || !m.Pulse("stale") || !m.Pulse("missing") {
		t.Fatalf("expected pulses to be queued")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		live, _ := store.Get(context.Background(), "live")
		if live.LastActivity.Equal(now) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected live session to be touched")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// Los pulsos se procesan en orden; esperar a que el canal se vacíe.
	for len(m.pulses) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	stale, err := store.Get(context.Background(), "stale")
	if err != nil {
		t.Fatalf("get stale: %v", err)
	}
	if !stale.LastActivity.Equal(staleAt) {
		t.Fatalf("expected pulse not to revive expired session")
	}
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected pulse not to create sessions")
	}
}

func TestSessionMonitorPulse_DropsWhenFull(t *testing.T) {
	m := NewSessionMonitor(zap.NewNop(), nil, 0, nil)
	for i := 0; i < cap(m.pulses); i++ {
		if !m.Pulse("s1") {
			t.Fatalf("expected pulse %d to be queued", i)
		}
	}
	if m.Pulse("s1") {
		t.Fatalf("expected pulse to be dropped when channel is full")
	}
}

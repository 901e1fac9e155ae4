package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sitter-link/internal/domain"
)

// DefaultSessionTimeout es la ventana de inactividad permitida (1 hora).
const DefaultSessionTimeout = time.Hour

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionInvalid  = errors.New("session invalid")
)

// SessionObserver recibe eventos del ciclo de vida de sesiones.
type SessionObserver interface {
	ObserveSession(event string)
}

// SessionMonitor aplica el timeout de inactividad y mantiene fresca la marca
// de última actividad. Las interfaces (HTTP, CLI) publican pulsos de actividad
// con Pulse; Run los consume.
type SessionMonitor struct {
	logger   *zap.Logger
	store    SessionStore
	timeout  time.Duration
	now      func() time.Time
	pulses   chan string
	observer SessionObserver
}

func NewSessionMonitor(logger *zap.Logger, store SessionStore, timeout time.Duration, observer SessionObserver) *SessionMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if store == nil {
		store = NewMemorySessionStore(24 * timeout)
	}
	return &SessionMonitor{
		logger:   logger,
		store:    store,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
		pulses:   make(chan string, 256),
		observer: observer,
	}
}

// Timeout devuelve la ventana de inactividad configurada.
func (m *SessionMonitor) Timeout() time.Duration {
	return m.timeout
}

// Begin abre una sesión nueva para userID (login).
func (m *SessionMonitor) Begin(ctx context.Context, userID string) (domain.Session, error) {
	if userID == "" {
		return domain.Session{}, ErrSessionInvalid
	}
	now := m.now()
	session := domain.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		IssuedAt:     now,
		LastActivity: now,
	}
	if err := m.store.Save(ctx, session); err != nil {
		return domain.Session{}, err
	}
	m.observe("started")
	return session, nil
}

// Check evalúa la sesión al montar una vista protegida. Si expiró, la cierra
// y devuelve ErrSessionExpired sin refrescar la marca; si no, la refresca.
func (m *SessionMonitor) Check(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	now := m.now()
	if session.Expired(now, m.timeout) {
		m.logger.Warn("session expired",
			zap.String("session_id", session.ID),
			zap.String("user_id", session.UserID),
			zap.Duration("idle", now.Sub(session.LastActivity)),
		)
		if err := m.store.Delete(ctx, session.ID); err != nil {
			m.logger.Error("end expired session failed", zap.Error(err), zap.String("session_id", session.ID))
		}
		m.observe("expired")
		return session, ErrSessionExpired
	}

	if err := m.store.Touch(ctx, session.ID, now); err != nil {
		return domain.Session{}, err
	}
	session.LastActivity = now
	return session, nil
}

// Lookup devuelve la sesión sin refrescarla ni cerrarla.
func (m *SessionMonitor) Lookup(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if session.Expired(m.now(), m.timeout) {
		return session, ErrSessionExpired
	}
	return session, nil
}

// End cierra la sesión (logout).
func (m *SessionMonitor) End(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	m.observe("ended")
	return nil
}

// Pulse publica actividad para sessionID. No bloquea: si el canal está lleno
// el pulso se descarta y devuelve false.
func (m *SessionMonitor) Pulse(sessionID string) bool {
	if sessionID == "" {
		return false
	}
	select {
	case m.pulses <- sessionID:
		return true
	default:
		return false
	}
}

// Run consume pulsos hasta que ctx se cancela.
func (m *SessionMonitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-m.pulses:
			m.touchLive(ctx, id)
		}
	}
}

// touchLive refresca solo sesiones vivas: un pulso nunca revive una sesión expirada.
func (m *SessionMonitor) touchLive(ctx context.Context, sessionID string) {
	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			m.logger.Warn("activity pulse lookup failed", zap.Error(err), zap.String("session_id", sessionID))
		}
		return
	}
	now := m.now()
	if session.Expired(now, m.timeout) {
		return
	}
	if err := m.store.Touch(ctx, sessionID, now); err != nil && !errors.Is(err, ErrSessionNotFound) {
		m.logger.Warn("activity pulse touch failed", zap.Error(err), zap.String("session_id", sessionID))
	}
}

func (m *SessionMonitor) observe(event string) {
	if m.observer != nil {
		m.observer.ObserveSession(event)
	}
}

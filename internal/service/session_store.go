package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"sitter-link/internal/domain"
	"sitter-link/internal/repository"
)

// SessionStore guarda sesiones con su marca de última actividad.
type SessionStore interface {
	Save(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, id string) (domain.Session, error)
	// Touch adelanta LastActivity (nunca la retrocede); devuelve
	// ErrSessionNotFound si la sesión ya no existe.
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type memorySessionStore struct {
	mu        sync.Mutex
	retention time.Duration
	items     map[string]domain.Session
}

// NewMemorySessionStore crea un store en memoria. Las sesiones sin actividad
// durante retention se descartan al guardar nuevas.
func NewMemorySessionStore(retention time.Duration) SessionStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &memorySessionStore{
		retention: retention,
		items:     make(map[string]domain.Session),
	}
}

func (s *memorySessionStore) Save(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(session.ID) == "" {
		return ErrSessionInvalid
	}
	cutoff := time.Now().UTC().Add(-s.retention)
	for id, existing := range s.items {
		if existing.LastActivity.Before(cutoff) {
			delete(s.items, id)
		}
	}
	s.items[session.ID] = session
	return nil
}

func (s *memorySessionStore) Get(_ context.Context, id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.items[id]
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *memorySessionStore) Touch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.items[id]
	if !ok {
		return ErrSessionNotFound
	}
	if at.After(session.LastActivity) {
		session.LastActivity = at
		s.items[id] = session
	}
	return nil
}

func (s *memorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

type sqlSessionStore struct {
	repo      repository.SessionRepository
	retention time.Duration
}

// NewSQLSessionStore guarda sesiones en Postgres. Al abrir una sesión se
// borran las abandonadas hace más de retention.
func NewSQLSessionStore(repo repository.SessionRepository, retention time.Duration) SessionStore {
	if repo == nil {
		return nil
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &sqlSessionStore{repo: repo, retention: retention}
}

func (s *sqlSessionStore) Save(ctx context.Context, session domain.Session) error {
	if strings.TrimSpace(session.ID) == "" {
		return ErrSessionInvalid
	}
	if err := s.repo.Upsert(ctx, session); err != nil {
		return err
	}
	// La limpieza es oportunista; un fallo no invalida la sesión recién guardada.
	_, _ = s.repo.DeleteIdleBefore(ctx, time.Now().UTC().Add(-s.retention))
	return nil
}

func (s *sqlSessionStore) Get(ctx context.Context, id string) (domain.Session, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Session{}, ErrSessionNotFound
	}
	session, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, ErrSessionNotFound
	}
	return session, err
}

func (s *sqlSessionStore) Touch(ctx context.Context, id string, at time.Time) error {
	err := s.repo.TouchActivity(ctx, id, at)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSessionNotFound
	}
	return err
}

func (s *sqlSessionStore) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	return s.repo.Delete(ctx, id)
}

// redisSessionTouchScript no recrea claves borradas y, como GREATEST en SQL,
// nunca retrocede last_activity.
const redisSessionTouchScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  local current = tonumber(redis.call("HGET", KEYS[1], "last_activity")) or 0
  if tonumber(ARGV[1]) > current then
    redis.call("HSET", KEYS[1], "last_activity", ARGV[1])
  end
  redis.call("EXPIRE", KEYS[1], ARGV[2])
  return 1
end
return 0
`

type redisSessionClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisSessionStore struct {
	client    redisSessionClient
	prefix    string
	retention time.Duration
	timeout   time.Duration
}

// NewRedisSessionStore guarda cada sesión como un hash con timestamps en epoch ms.
// El TTL de la clave solo sirve para recolectar sesiones abandonadas.
func NewRedisSessionStore(client *redis.Client, retention time.Duration) SessionStore {
	if client == nil {
		return nil
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &redisSessionStore{
		client:    client,
		prefix:    "auth:session:",
		retention: retention,
		timeout:   500 * time.Millisecond,
	}
}

func (s *redisSessionStore) Save(ctx context.Context, session domain.Session) error {
	if strings.TrimSpace(session.ID) == "" {
		return ErrSessionInvalid
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := s.prefix + session.ID
	if err := s.client.HSet(ctx, key,
		"user_id", session.UserID,
		"issued_at", formatMillis(session.IssuedAt),
		"last_activity", formatMillis(session.LastActivity),
	).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, s.retention).Err()
}

func (s *redisSessionStore) Get(ctx context.Context, id string) (domain.Session, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Session{}, ErrSessionNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, s.prefix+id).Result()
	if err != nil {
		return domain.Session{}, err
	}
	if len(fields) == 0 {
		return domain.Session{}, ErrSessionNotFound
	}
	issuedAt, err := parseMillis(fields["issued_at"])
	if err != nil {
		return domain.Session{}, err
	}
	lastActivity, err := parseMillis(fields["last_activity"])
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{
		ID:           id,
		UserID:       fields["user_id"],
		IssuedAt:     issuedAt,
		LastActivity: lastActivity,
	}, nil
}

func (s *redisSessionStore) Touch(ctx context.Context, id string, at time.Time) error {
	if strings.TrimSpace(id) == "" {
		return ErrSessionNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	seconds := int(s.retention.Seconds())
	n, err := s.client.Eval(ctx, redisSessionTouchScript, []string{s.prefix + id}, formatMillis(at), seconds).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *redisSessionStore) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Del(ctx, s.prefix+id).Err()
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

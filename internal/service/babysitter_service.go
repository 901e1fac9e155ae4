package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"sitter-link/internal/domain"
	"sitter-link/internal/phone"
)

// BabysitterStore es la tabla externa de niñeras.
type BabysitterStore interface {
	ListBabysitters(ctx context.Context, parentID string) ([]domain.Babysitter, error)
	CreateBabysitter(ctx context.Context, b domain.Babysitter) (domain.Babysitter, error)
}

type CacheObserver interface {
	ObserveCache(hit bool)
}

var (
	ErrPlanLimit          = errors.New("free plan babysitter limit reached")
	ErrBabysitterName     = errors.New("babysitter first name is required")
	ErrBabysitterExists   = errors.New("babysitter with that mobile already exists")
	ErrUnknownBabysitter  = errors.New("unknown babysitter")
	ErrServiceUnavailable = errors.New("service not configured")
)

const DefaultBabysitterCacheTTL = 5 * time.Minute

type cachedBabysitters struct {
	items     []domain.Babysitter
	fetchedAt time.Time
}

// BabysitterService gestiona la lista de niñeras de cada familia con una
// caché de lectura por familia.
type BabysitterService struct {
	logger    *zap.Logger
	store     BabysitterStore
	freeLimit int
	ttl       time.Duration
	now       func() time.Time
	observer  CacheObserver

	mu    sync.Mutex
	cache map[string]cachedBabysitters
}

func NewBabysitterService(logger *zap.Logger, store BabysitterStore, freeLimit int, ttl time.Duration, observer CacheObserver) *BabysitterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if freeLimit <= 0 {
		freeLimit = 3
	}
	if ttl <= 0 {
		ttl = DefaultBabysitterCacheTTL
	}
	return &BabysitterService{
		logger:    logger,
		store:     store,
		freeLimit: freeLimit,
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
		observer:  observer,
		cache:     make(map[string]cachedBabysitters),
	}
}

func (s *BabysitterService) List(ctx context.Context, parentID string) ([]domain.Babysitter, error) {
	if s.store == nil {
		return nil, ErrServiceUnavailable
	}
	if items, ok := s.cached(parentID); ok {
		return items, nil
	}
	items, err := s.store.ListBabysitters(ctx, parentID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[parentID] = cachedBabysitters{items: items, fetchedAt: s.now()}
	s.mu.Unlock()
	return cloneBabysitters(items), nil
}

type AddBabysitterInput struct {
	FirstName string
	LastName  string
	Mobile    string
}

// Add registra una niñera con el móvil canónico. El plan free admite freeLimit niñeras.
func (s *BabysitterService) Add(ctx context.Context, parent domain.User, input AddBabysitterInput) (domain.Babysitter, error) {
	if s.store == nil {
		return domain.Babysitter{}, ErrServiceUnavailable
	}
	firstName := strings.TrimSpace(input.FirstName)
	if firstName == "" {
		return domain.Babysitter{}, ErrBabysitterName
	}
	mobile := phone.Normalize(input.Mobile)
	if !phone.Valid(mobile) {
		return domain.Babysitter{}, ErrMobileInvalid
	}

	existing, err := s.List(ctx, parent.ID)
	if err != nil {
		return domain.Babysitter{}, err
	}
	for _, b := range existing {
		if phone.Normalize(b.Mobile) == mobile {
			return domain.Babysitter{}, ErrBabysitterExists
		}
	}
	if parent.Plan != domain.PlanPremium && len(existing) >= s.freeLimit {
		return domain.Babysitter{}, ErrPlanLimit
	}

	created, err := s.store.CreateBabysitter(ctx, domain.Babysitter{
		ParentID:  parent.ID,
		FirstName: firstName,
		LastName:  strings.TrimSpace(input.LastName),
		Mobile:    mobile,
	})
	if err != nil {
		return domain.Babysitter{}, err
	}
	s.Invalidate(parent.ID)
	s.logger.Info("babysitter added", zap.String("parent_id", parent.ID), zap.String("babysitter_id", created.ID))
	return created, nil
}

func (s *BabysitterService) Invalidate(parentID string) {
	s.mu.Lock()
	delete(s.cache, parentID)
	s.mu.Unlock()
}

func (s *BabysitterService) cached(parentID string) ([]domain.Babysitter, bool) {
	s.mu.Lock()
	entry, ok := s.cache[parentID]
	if ok && s.now().Sub(entry.fetchedAt) >= s.ttl {
		delete(s.cache, parentID)
		ok = false
	}
	s.mu.Unlock()
	if s.observer != nil {
		s.observer.ObserveCache(ok)
	}
	if !ok {
		return nil, false
	}
	return cloneBabysitters(entry.items), true
}

func cloneBabysitters(items []domain.Babysitter) []domain.Babysitter {
	out := make([]domain.Babysitter, len(items))
	copy(out, items)
	return out
}

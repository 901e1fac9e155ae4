package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"sitter-link/internal/domain"
)

type fakeSitterStore struct {
	sitters   []domain.Babysitter
	requests  []domain.BabysitterRequest
	listCalls int
	createErr error
	batches   [][]domain.BabysitterRequest
}

func (f *fakeSitterStore) ListBabysitters(_ context.Context, parentID string) ([]domain.Babysitter, error) {
	f.listCalls++
	var out []domain.Babysitter
	for _, b := range f.sitters {
		if b.ParentID == parentID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeSitterStore) CreateBabysitter(_ context.Context, b domain.Babysitter) (domain.Babysitter, error) {
	b.ID = fmt.Sprintf("recS%d", len(f.sitters)+1)
	f.sitters = append(f.sitters, b)
	return b, nil
}

func (f *fakeSitterStore) CreateRequests(_ context.Context, rows []domain.BabysitterRequest) ([]domain.BabysitterRequest, error) {
	f.batches = append(f.batches, rows)
	if f.createErr != nil {
		return nil, f.createErr
	}
	out := make([]domain.BabysitterRequest, 0, len(rows))
	for _, r := range rows {
		r.ID = fmt.Sprintf("recR%d", len(f.requests)+1)
		f.requests = append(f.requests, r)
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeSitterStore) ListRequests(_ context.Context, parentID string) ([]domain.BabysitterRequest, error) {
	var out []domain.BabysitterRequest
	for _, r := range f.requests {
		if r.ParentID == parentID {
			out = append(out, r)
		}
	}
	return out, nil
}

type cacheCounter struct{ hits, misses int }

func (c *cacheCounter) ObserveCache(hit bool) {
	if hit {
		c.hits++
		return
	}
	c.misses++
}

func TestBabysitterServiceList_CachesForTTL(t *testing.T) {
	store := &fakeSitterStore{sitters: []domain.Babysitter{{ID: "recS1", ParentID: "u1", FirstName: "Jane"}}}
	obs := &cacheCounter{}
	svc := NewBabysitterService(zap.NewNop(), store, 3, 5*time.Minute, obs)
	now := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := svc.List(context.Background(), "u1"); err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	if store.listCalls != 1 {
		t.Fatalf("expected a single remote list, got %d", store.listCalls)
	}
	if obs.hits != 2 || obs.misses != 1 {
		t.Fatalf("unexpected cache observations: %+v", obs)
	}

	now = now.Add(5 * time.Minute)
	_, _ = svc.List(context.Background(), "u1")
	if store.listCalls != 2 {
		t.Fatalf("expected stale cache to refetch, got %d calls", store.listCalls)
	}
}

func TestBabysitterServiceAdd_NormalizesAndInvalidates(t *testing.T) {
	store := &fakeSitterStore{}
	svc := NewBabysitterService(zap.NewNop(), store, 3, 0, nil)
	parent := domain.User{ID: "u1", Plan: domain.PlanFree}

	if _, err := svc.List(context.Background(), "u1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	b, err := svc.Add(context.Background(), parent, AddBabysitterInput{FirstName: " Jane ", Mobile: "555.123.4567"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if b.Mobile != "+15551234567" || b.FirstName != "Jane" {
		t.Fatalf("unexpected babysitter: %+v", b)
	}
	list, _ := svc.List(context.Background(), "u1")
	if len(list) != 1 {
		t.Fatalf("expected cache invalidated after add, got %d", len(list))
	}

	if _, err := svc.Add(context.Background(), parent, AddBabysitterInput{FirstName: "Jo", Mobile: "+1 (555) 123-4567"}); !errors.Is(err, ErrBabysitterExists) {
		t.Fatalf("expected ErrBabysitterExists, got %v", err)
	}
	if _, err := svc.Add(context.Background(), parent, AddBabysitterInput{FirstName: "Jo", Mobile: "123"}); !errors.Is(err, ErrMobileInvalid) {
		t.Fatalf("expected ErrMobileInvalid, got %v", err)
	}
	if _, err := svc.Add(context.Background(), parent, AddBabysitterInput{Mobile: "5551112222"}); !errors.Is(err, ErrBabysitterName) {
		t.Fatalf("expected ErrBabysitterName, got %v", err)
	}
}

func TestBabysitterServiceAdd_FreePlanLimit(t *testing.T) {
	store := &fakeSitterStore{}
	svc := NewBabysitterService(zap.NewNop(), store, 3, 0, nil)
	free := domain.User{ID: "u1", Plan: domain.PlanFree}

	for i := 0; i < 3; i++ {
		if _, err := svc.Add(context.Background(), free, AddBabysitterInput{FirstName: "S", Mobile: fmt.Sprintf("555000000%d", i)}); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if _, err := svc.Add(context.Background(), free, AddBabysitterInput{FirstName: "S", Mobile: "5550000009"}); !errors.Is(err, ErrPlanLimit) {
		t.Fatalf("expected ErrPlanLimit, got %v", err)
	}

	premium := domain.User{ID: "u1", Plan: domain.PlanPremium}
	if _, err := svc.Add(context.Background(), premium, AddBabysitterInput{FirstName: "S", Mobile: "5550000009"}); err != nil {
		t.Fatalf("expected premium to bypass limit, got %v", err)
	}
}

package responder

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"sitter-link/internal/domain"
)

type fakeStore struct {
	request   *domain.BabysitterRequest
	verifyErr error
	updateErr error

	verifyGate chan struct{}
	updateGate chan struct{}

	updates []domain.ResponseUpdate
}

func (s *fakeStore) VerifyBabysitterRequest(_ context.Context, _ string, _ string) (*domain.BabysitterRequest, error) {
	if s.verifyGate != nil {
		<-s.verifyGate
	}
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return copyRequest(s.request), nil
}

func (s *fakeStore) UpdateBabysitterResponse(_ context.Context, _ string, update domain.ResponseUpdate) error {
	if s.updateGate != nil {
		<-s.updateGate
	}
	s.updates = append(s.updates, update)
	return s.updateErr
}

type countingObserver struct {
	verifications []string
	responses     []string
}

func (o *countingObserver) ObserveVerification(outcome string) {
	o.verifications = append(o.verifications, outcome)
}

func (o *countingObserver) ObserveResponse(status string) {
	o.responses = append(o.responses, status)
}

func sampleRequest() *domain.BabysitterRequest {
	return &domain.BabysitterRequest{
		ID:                  "recABC",
		BabysitterFirstName: "Jane",
		BabysitterMobile:    "+15551234567",
		Date:                "2024-05-03",
		TimeRange:           "6:00 PM - 10:00 PM",
		Notes:               "Two kids",
		Parent:              &domain.Parent{FirstName: "Dana", LastName: "Scully"},
		Status:              domain.StatusPending,
	}
}

func TestComposeUpdate(t *testing.T) {
	cases := []struct {
		response, comments string
		want               domain.ResponseUpdate
	}{
		{"yes", "bring snacks", domain.ResponseUpdate{Status: domain.StatusAvailable, Response: "Yes, I can babysit then. bring snacks"}},
		{"no", "", domain.ResponseUpdate{Status: domain.StatusDeclined, Response: "No, I am not available then"}},
		{"yes", "", domain.ResponseUpdate{Status: domain.StatusAvailable, Response: "Yes, I can babysit then"}},
		{"maybe", "call me", domain.ResponseUpdate{Status: domain.StatusDeclined, Response: "No, I am not available then. call me"}},
		{"YES", "", domain.ResponseUpdate{Status: domain.StatusDeclined, Response: "No, I am not available then"}},
		{"Yes", "", domain.ResponseUpdate{Status: domain.StatusDeclined, Response: "No, I am not available then"}},
		{" yes ", "", domain.ResponseUpdate{Status: domain.StatusDeclined, Response: "No, I am not available then"}},
	}
	for _, tc := range cases {
		if got := ComposeUpdate(tc.response, tc.comments); got != tc.want {
			t.Fatalf("ComposeUpdate(%q, %q) = %+v, want %+v", tc.response, tc.comments, got, tc.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate("2024-05-03"); got != "Friday, May 3, 2024" {
		t.Fatalf("unexpected date: %q", got)
	}
	if got := FormatDate("next week"); got != "next week" {
		t.Fatalf("expected raw value for unparseable date, got %q", got)
	}
}

func TestFlowVerify_NotFound(t *testing.T) {
	obs := &countingObserver{}
	f := NewFlow(zap.NewNop(), &fakeStore{}, "recABC", obs)

	err := f.Verify(context.Background(), "555-000-0000")
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
	if err.Error() != "Could not find that babysitting request" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if f.State() != StateUnverified {
		t.Fatalf("expected unverified, got %s", f.State())
	}
	if f.View().Screen != ScreenVerification {
		t.Fatalf("expected verification screen")
	}
	if len(obs.verifications) != 1 || obs.verifications[0] != "not_found" {
		t.Fatalf("unexpected observations: %v", obs.verifications)
	}
}

func TestFlowVerify_ErrorMapsToInvalidMobile(t *testing.T) {
	f := NewFlow(zap.NewNop(), &fakeStore{verifyErr: errors.New("malformed")}, "recABC", nil)
	err := f.Verify(context.Background(), "12")
	if !errors.Is(err, ErrInvalidMobile) || NoticeFor(err).Title != "Invalid mobile number format" {
		t.Fatalf("expected invalid mobile, got %v", err)
	}
	if f.State() != StateUnverified {
		t.Fatalf("expected unverified, got %s", f.State())
	}
}

func TestFlowSubmit_RequiresVerification(t *testing.T) {
	store := &fakeStore{}
	f := NewFlow(zap.NewNop(), store, "recABC", nil)
	if err := f.Submit(context.Background(), "yes", ""); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatalf("expected no update call")
	}
}

func TestFlowSubmit_FailureStaysVerified(t *testing.T) {
	store := &fakeStore{request: sampleRequest(), updateErr: errors.New("502")}
	f := NewFlow(zap.NewNop(), store, "recABC", nil)
	if err := f.Verify(context.Background(), "5551234567"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	err := f.Submit(context.Background(), "no", "")
	if !errors.Is(err, ErrSubmitFailed) || NoticeFor(err).Title != MsgSubmitFailed {
		t.Fatalf("expected ErrSubmitFailed, got %v", err)
	}
	if f.State() != StateVerified {
		t.Fatalf("expected to stay verified, got %s", f.State())
	}

	store.updateErr = nil
	if err := f.Submit(context.Background(), "no", ""); err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if len(store.updates) != 2 || store.updates[1] != (domain.ResponseUpdate{Status: domain.StatusDeclined, Response: "No, I am not available then"}) {
		t.Fatalf("unexpected updates: %+v", store.updates)
	}
}

func TestFlowSubmit_RejectsAnsweredRequest(t *testing.T) {
	req := sampleRequest()
	req.Status = domain.StatusDeclined
	store := &fakeStore{request: req}
	f := NewFlow(zap.NewNop(), store, "recABC", nil)
	if err := f.Verify(context.Background(), "5551234567"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := f.Submit(context.Background(), "yes", ""); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatalf("expected no writes, got %+v", store.updates)
	}
	if f.State() != StateVerified {
		t.Fatalf("expected to stay verified, got %s", f.State())
	}
}

func TestFlowEndToEnd(t *testing.T) {
	store := &fakeStore{request: sampleRequest()}
	obs := &countingObserver{}
	f := NewFlow(zap.NewNop(), store, "recABC", obs)

	if err := f.Verify(context.Background(), "(555) 123-4567"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	v := f.View()
	if v.Screen != ScreenDetails {
		t.Fatalf("expected details screen, got %s", v.Screen)
	}
	if v.Date != "Friday, May 3, 2024" || v.TimeRange != "6:00 PM - 10:00 PM" {
		t.Fatalf("unexpected details: %+v", v)
	}
	if v.Welcome != "Welcome Jane!" || v.Sender != "Dana Scully sent you a Babysitting Request" {
		t.Fatalf("unexpected headings: %+v", v)
	}

	if err := f.Submit(context.Background(), "yes", "bring snacks"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if f.State() != StateSubmitted {
		t.Fatalf("expected submitted, got %s", f.State())
	}
	if store.updates[0] != (domain.ResponseUpdate{Status: domain.StatusAvailable, Response: "Yes, I can babysit then. bring snacks"}) {
		t.Fatalf("unexpected payload: %+v", store.updates[0])
	}
	v = f.View()
	if v.Screen != ScreenSuccess || v.Parent == nil || v.Parent.FirstName != "Dana" || v.Parent.LastName != "Scully" {
		t.Fatalf("unexpected success view: %+v", v)
	}
	if len(obs.responses) != 1 || obs.responses[0] != "Available" {
		t.Fatalf("unexpected response observations: %v", obs.responses)
	}
	if err := f.Submit(context.Background(), "yes", ""); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestFlowSubmittedWithoutParentShowsDetails(t *testing.T) {
	req := sampleRequest()
	req.Parent = nil
	f := NewFlow(zap.NewNop(), &fakeStore{request: req}, "recABC", nil)
	_ = f.Verify(context.Background(), "5551234567")
	if err := f.Submit(context.Background(), "yes", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if f.View().Screen != ScreenDetails {
		t.Fatalf("expected details screen without parent")
	}
}

func TestFlowVerifyingShowsLoadingOnly(t *testing.T) {
	store := &fakeStore{request: sampleRequest(), verifyGate: make(chan struct{})}
	f := NewFlow(zap.NewNop(), store, "recABC", nil)

	done := make(chan error, 1)
	go func() { done <- f.Verify(context.Background(), "5551234567") }()

	waitForState(t, f, StateVerifying)
	if v := f.View(); v.Screen != ScreenLoading || v.Welcome != "" {
		t.Fatalf("expected loading only, got %+v", v)
	}
	if err := f.Verify(context.Background(), "5551234567"); !errors.Is(err, ErrVerifyInFlight) {
		t.Fatalf("expected ErrVerifyInFlight, got %v", err)
	}
	close(store.verifyGate)
	if err := <-done; err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestFlowSubmitInFlightRejectsSecondSubmit(t *testing.T) {
	store := &fakeStore{request: sampleRequest()}
	f := NewFlow(zap.NewNop(), store, "recABC", nil)
	if err := f.Verify(context.Background(), "5551234567"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	store.updateGate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.Submit(context.Background(), "yes", "") }()
	waitFor(t, func() bool { return f.View().Submitting })

	if err := f.Submit(context.Background(), "no", ""); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("expected ErrSubmitInFlight, got %v", err)
	}
	close(store.updateGate)
	if err := <-done; err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestFlowCloseDiscardsLateCompletion(t *testing.T) {
	store := &fakeStore{request: sampleRequest(), verifyGate: make(chan struct{})}
	f := NewFlow(zap.NewNop(), store, "recABC", nil)

	done := make(chan error, 1)
	go func() { done <- f.Verify(context.Background(), "5551234567") }()
	waitForState(t, f, StateVerifying)

	f.Close()
	close(store.verifyGate)
	if err := <-done; !errors.Is(err, ErrFlowClosed) {
		t.Fatalf("expected ErrFlowClosed, got %v", err)
	}
	if f.Request() != nil {
		t.Fatalf("expected late result to be discarded")
	}
	if err := f.Verify(context.Background(), "5551234567"); !errors.Is(err, ErrFlowClosed) {
		t.Fatalf("expected closed flow to reject verify, got %v", err)
	}
}

func waitForState(t *testing.T, f *Flow, want State) {
	t.Helper()
	waitFor(t, func() bool { return f.State() == want })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met")
}

// Package responder implementa el flujo con el que una niñera verifica su
// móvil y responde a una solicitud recibida por enlace.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"sitter-link/internal/domain"
)

// Store es el almacén externo de solicitudes.
type Store interface {
	// VerifyBabysitterRequest devuelve nil sin error cuando no hay coincidencia.
	VerifyBabysitterRequest(ctx context.Context, requestID, mobile string) (*domain.BabysitterRequest, error)
	UpdateBabysitterResponse(ctx context.Context, requestID string, update domain.ResponseUpdate) error
}

// Observer recibe los resultados de verificación y de respuesta.
type Observer interface {
	ObserveVerification(outcome string)
	ObserveResponse(status string)
}

type State int

const (
	StateUnverified State = iota
	StateVerifying
	StateVerified
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateUnverified:
		return "unverified"
	case StateVerifying:
		return "verifying"
	case StateVerified:
		return "verified"
	case StateSubmitted:
		return "submitted"
	}
	return "unknown"
}

// Mensajes visibles para la niñera.
const (
	MsgRequestNotFound = "Could not find that babysitting request"
	MsgInvalidMobile   = "Invalid mobile number format"
	MsgSubmitted       = "Response submitted successfully!"
	MsgSubmitFailed    = "Failed to submit response. Please try again."

	yesResponse = "Yes, I can babysit then"
	noResponse  = "No, I am not available then"
)

var (
	ErrRequestNotFound  = errors.New(MsgRequestNotFound)
	ErrInvalidMobile    = errors.New(MsgInvalidMobile)
	ErrSubmitFailed     = errors.New(MsgSubmitFailed)
	ErrNotVerified      = errors.New("invalid data")
	ErrVerifyInFlight   = errors.New("verification already in progress")
	ErrAlreadyVerified  = errors.New("request already verified")
	ErrSubmitInFlight   = errors.New("submission already in progress")
	ErrAlreadySubmitted = errors.New("response already submitted")
	ErrFlowClosed       = errors.New("responder flow closed")
)

// Flow es la máquina de estados de una respuesta. Es segura para uso
// concurrente; cada enlace abierto tiene su propio Flow.
type Flow struct {
	mu         sync.Mutex
	logger     *zap.Logger
	store      Store
	observer   Observer
	requestID  string
	state      State
	request    *domain.BabysitterRequest
	submitting bool
	// gen invalida operaciones en vuelo cuando el flujo se cierra.
	gen    uint64
	closed bool
}

func NewFlow(logger *zap.Logger, store Store, requestID string, observer Observer) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		logger:    logger,
		store:     store,
		observer:  observer,
		requestID: requestID,
		state:     StateUnverified,
	}
}

// Verify busca la solicitud con el móvil indicado. Solo es válido desde
// StateUnverified; al terminar vuelve a Unverified o pasa a Verified.
func (f *Flow) Verify(ctx context.Context, mobile string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	switch f.state {
	case StateVerifying:
		f.mu.Unlock()
		return ErrVerifyInFlight
	case StateVerified, StateSubmitted:
		f.mu.Unlock()
		return ErrAlreadyVerified
	}
	f.state = StateVerifying
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	req, err := f.store.VerifyBabysitterRequest(ctx, f.requestID, strings.TrimSpace(mobile))

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || gen != f.gen {
		return ErrFlowClosed
	}
	switch {
	case err != nil:
		f.state = StateUnverified
		f.logger.Info("responder verification failed", zap.String("request_id", f.requestID), zap.Error(err))
		f.observe("invalid")
		return ErrInvalidMobile
	case req == nil:
		f.state = StateUnverified
		f.observe("not_found")
		return ErrRequestNotFound
	}
	f.request = req
	f.state = StateVerified
	f.observe("verified")
	return nil
}

// Submit registra la respuesta. Si falla, el flujo sigue en StateVerified y
// puede reintentarse. Devuelve ErrAlreadySubmitted si la solicitud ya no está
// en Pending.
func (f *Flow) Submit(ctx context.Context, response, comments string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.state == StateSubmitted {
		f.mu.Unlock()
		return ErrAlreadySubmitted
	}
	if f.state != StateVerified || f.request == nil || f.request.ID == "" {
		f.mu.Unlock()
		return ErrNotVerified
	}
	// Una solicitud ya respondida no admite otra respuesta, aunque llegue por
	// un flujo nuevo.
	if st := f.request.Status; st != "" && st != domain.StatusPending {
		f.mu.Unlock()
		return ErrAlreadySubmitted
	}
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	f.submitting = true
	gen := f.gen
	id := f.request.ID
	f.mu.Unlock()

	update := ComposeUpdate(response, comments)
	err := f.store.UpdateBabysitterResponse(ctx, id, update)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if f.closed || gen != f.gen {
		return ErrFlowClosed
	}
	if err != nil {
		f.logger.Warn("responder submit failed", zap.String("request_id", id), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	f.request.Status = update.Status
	f.request.Response = update.Response
	f.state = StateSubmitted
	if f.observer != nil {
		f.observer.ObserveResponse(string(update.Status))
	}
	return nil
}

// Close descarta cualquier operación en vuelo. Es idempotente.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.gen++
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) RequestID() string {
	return f.requestID
}

// Request devuelve una copia de la solicitud verificada, o nil.
func (f *Flow) Request() *domain.BabysitterRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyRequest(f.request)
}

func (f *Flow) observe(outcome string) {
	if f.observer != nil {
		f.observer.ObserveVerification(outcome)
	}
}

// ComposeUpdate arma el payload de respuesta: solo "yes" exacto marca
// Available; cualquier otro valor, incluso "YES" o " yes ", es Declined. Los
// comentarios no vacíos se agregan como ". {comments}".
func ComposeUpdate(response, comments string) domain.ResponseUpdate {
	update := domain.ResponseUpdate{Status: domain.StatusDeclined, Response: noResponse}
	if response == "yes" {
		update = domain.ResponseUpdate{Status: domain.StatusAvailable, Response: yesResponse}
	}
	if comments != "" {
		update.Response += ". " + comments
	}
	return update
}

func copyRequest(r *domain.BabysitterRequest) *domain.BabysitterRequest {
	if r == nil {
		return nil
	}
	out := *r
	if r.Parent != nil {
		p := *r.Parent
		out.Parent = &p
	}
	return &out
}

package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"sitter-link/internal/domain"
	"sitter-link/internal/email"
	"sitter-link/internal/responder"
)

// RequestStore es la tabla externa de solicitudes.
type RequestStore interface {
	CreateRequests(ctx context.Context, requests []domain.BabysitterRequest) ([]domain.BabysitterRequest, error)
	ListRequests(ctx context.Context, parentID string) ([]domain.BabysitterRequest, error)
}

var (
	ErrInvalidDate   = errors.New("date must be YYYY-MM-DD")
	ErrTimeRange     = errors.New("time range is required")
	ErrNoBabysitters = errors.New("select at least one babysitter")
)

type CreateRequestInput struct {
	Date          string
	TimeRange     string
	Notes         string
	BabysitterIDs []string
}

// SentRequest es una solicitud creada con su enlace para compartir.
type SentRequest struct {
	Request domain.BabysitterRequest `json:"request"`
	Link    string                   `json:"link"`
}

type RequestGroup struct {
	Date        string                     `json:"date"`
	DisplayDate string                     `json:"display_date"`
	Requests    []domain.BabysitterRequest `json:"requests"`
}

type Summary struct {
	Plan            domain.Plan `json:"plan"`
	BabysitterCount int         `json:"babysitter_count"`
	OpenRequests    int         `json:"open_requests"`
}

type RequestService struct {
	logger        *zap.Logger
	store         RequestStore
	babysitters   *BabysitterService
	emailSender   email.Sender
	publicBaseURL string
}

func NewRequestService(logger *zap.Logger, store RequestStore, babysitters *BabysitterService, emailSender email.Sender, publicBaseURL string) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		logger:        logger,
		store:         store,
		babysitters:   babysitters,
		emailSender:   emailSender,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Create crea una fila Pending por niñera elegida y devuelve los enlaces /r/{id}.
func (s *RequestService) Create(ctx context.Context, parent domain.User, input CreateRequestInput) ([]SentRequest, error) {
	if s.store == nil || s.babysitters == nil {
		return nil, ErrServiceUnavailable
	}
	date := strings.TrimSpace(input.Date)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, ErrInvalidDate
	}
	timeRange := strings.TrimSpace(input.TimeRange)
	if timeRange == "" {
		return nil, ErrTimeRange
	}

	known, err := s.babysitters.List(ctx, parent.ID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Babysitter, len(known))
	for _, b := range known {
		byID[b.ID] = b
	}

	seen := make(map[string]bool)
	var rows []domain.BabysitterRequest
	for _, id := range input.BabysitterIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		b, ok := byID[id]
		if !ok {
			return nil, ErrUnknownBabysitter
		}
		rows = append(rows, domain.BabysitterRequest{
			ParentID:            parent.ID,
			BabysitterID:        b.ID,
			BabysitterFirstName: b.FirstName,
			BabysitterMobile:    b.Mobile,
			Date:                date,
			TimeRange:           timeRange,
			Notes:               strings.TrimSpace(input.Notes),
			Parent: &domain.Parent{
				FirstName: parent.FirstName,
				LastName:  parent.LastName,
				Email:     parent.Email,
			},
			Status: domain.StatusPending,
		})
	}
	if len(rows) == 0 {
		return nil, ErrNoBabysitters
	}

	created, err := s.store.CreateRequests(ctx, rows)
	out := make([]SentRequest, 0, len(created))
	for _, r := range created {
		out = append(out, SentRequest{Request: r, Link: s.publicBaseURL + "/r/" + r.ID})
	}
	if err != nil {
		s.logger.Error("create requests partially failed",
			zap.Error(err),
			zap.String("parent_id", parent.ID),
			zap.Int("created", len(created)),
			zap.Int("requested", len(rows)),
		)
		return out, err
	}
	return out, nil
}

// Dashboard agrupa las solicitudes del padre por fecha ascendente.
func (s *RequestService) Dashboard(ctx context.Context, parentID string) ([]RequestGroup, error) {
	if s.store == nil {
		return nil, ErrServiceUnavailable
	}
	requests, err := s.store.ListRequests(ctx, parentID)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int)
	var groups []RequestGroup
	for _, r := range requests {
		i, ok := index[r.Date]
		if !ok {
			i = len(groups)
			index[r.Date] = i
			groups = append(groups, RequestGroup{Date: r.Date, DisplayDate: responder.FormatDate(r.Date)})
		}
		groups[i].Requests = append(groups[i].Requests, r)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Date < groups[b].Date })
	return groups, nil
}

func (s *RequestService) Summary(ctx context.Context, parent domain.User) (Summary, error) {
	if s.store == nil || s.babysitters == nil {
		return Summary{}, ErrServiceUnavailable
	}
	sitters, err := s.babysitters.List(ctx, parent.ID)
	if err != nil {
		return Summary{}, err
	}
	requests, err := s.store.ListRequests(ctx, parent.ID)
	if err != nil {
		return Summary{}, err
	}
	open := 0
	for _, r := range requests {
		if r.Status == domain.StatusPending {
			open++
		}
	}
	return Summary{Plan: parent.Plan, BabysitterCount: len(sitters), OpenRequests: open}, nil
}

// NotifyResponse avisa al padre por correo. Best effort: los fallos solo se registran.
func (s *RequestService) NotifyResponse(ctx context.Context, req domain.BabysitterRequest) {
	if s.emailSender == nil || req.Parent == nil || req.Parent.Email == "" {
		return
	}
	notice := email.ResponseNotice{
		ParentFirstName:     req.Parent.FirstName,
		BabysitterFirstName: req.BabysitterFirstName,
		Date:                responder.FormatDate(req.Date),
		TimeRange:           req.TimeRange,
		Available:           req.Status == domain.StatusAvailable,
		Response:            req.Response,
	}
	if err := s.emailSender.SendResponseNotice(ctx, req.Parent.Email, notice); err != nil {
		s.logger.Warn("send response notice failed", zap.Error(err), zap.String("request_id", req.ID))
	}
}

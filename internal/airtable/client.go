// Package airtable adapta las tablas de niñeras y solicitudes al dominio,
// sobre el SDK github.com/mehanizm/airtable.
package airtable

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	atapi "github.com/mehanizm/airtable"
	"go.uber.org/zap"

	"sitter-link/internal/domain"
	"sitter-link/internal/phone"
)

const (
	// Airtable acepta como máximo 10 registros por creación.
	createBatchSize = 10
	// Airtable permite 5 req/s por base.
	defaultRateLimit = 4
)

// Nombres de campos en las tablas.
const (
	fieldParentID            = "Parent ID"
	fieldParentFirstName     = "Parent First Name"
	fieldParentLastName      = "Parent Last Name"
	fieldParentEmail         = "Parent Email"
	fieldBabysitter          = "Babysitter"
	fieldBabysitterFirstName = "Babysitter First Name"
	fieldBabysitterMobile    = "Babysitter Mobile"
	fieldDate                = "Date"
	fieldTimeRange           = "Time Range"
	fieldNotes               = "Notes"
	fieldStatus              = "Status"
	fieldResponse            = "Response"
	fieldFirstName           = "First Name"
	fieldLastName            = "Last Name"
	fieldMobile              = "Mobile"
)

var ErrMalformedMobile = errors.New("malformed mobile number")

func statusCode(err error) int {
	var he *atapi.HTTPClientError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

type Options struct {
	BaseURL          string
	BaseID           string
	APIKey           string
	RequestsTable    string
	BabysittersTable string
	// ReadRetries es el número de reintentos para lecturas; las escrituras nunca se reintentan.
	ReadRetries int
	Timeout     time.Duration
	// RateLimit en requests por segundo; 0 usa el default.
	RateLimit int
}

type Client struct {
	api         *atapi.Client
	requests    *atapi.Table
	babysitters *atapi.Table
	readRetries int
	backoff     time.Duration
	logger      *zap.Logger
}

func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("airtable api key is required")
	}
	if strings.TrimSpace(opts.BaseID) == "" {
		return nil, fmt.Errorf("airtable base id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestsTable == "" {
		opts.RequestsTable = "Babysitter Requests"
	}
	if opts.BabysittersTable == "" {
		opts.BabysittersTable = "Babysitters"
	}
	if opts.ReadRetries < 0 {
		opts.ReadRetries = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}

	api := atapi.NewClient(opts.APIKey)
	api.SetCustomClient(&http.Client{Timeout: opts.Timeout})
	api.SetRateLimit(opts.RateLimit)
	if opts.BaseURL != "" {
		if err := api.SetBaseURL(strings.TrimRight(opts.BaseURL, "/")); err != nil {
			return nil, fmt.Errorf("airtable base url: %w", err)
		}
	}

	// El SDK arma la URL por concatenación: los nombres van escapados.
	baseID := url.PathEscape(opts.BaseID)
	return &Client{
		api:         api,
		requests:    api.GetTable(baseID, url.PathEscape(opts.RequestsTable)),
		babysitters: api.GetTable(baseID, url.PathEscape(opts.BabysittersTable)),
		readRetries: opts.ReadRetries,
		backoff:     250 * time.Millisecond,
		logger:      logger,
	}, nil
}

// VerifyBabysitterRequest devuelve la solicitud si mobile coincide con el móvil
// de la niñera invitada. Devuelve (nil, nil) si no existe o no coincide.
func (c *Client) VerifyBabysitterRequest(ctx context.Context, requestID, mobile string) (*domain.BabysitterRequest, error) {
	normalized := phone.Normalize(mobile)
	if !phone.Valid(normalized) {
		return nil, ErrMalformedMobile
	}
	if strings.TrimSpace(requestID) == "" {
		return nil, nil
	}

	var rec *atapi.Record
	err := c.read(ctx, "get request", func() error {
		var err error
		rec, err = c.requests.GetRecordContext(ctx, url.PathEscape(requestID))
		return err
	})
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	req := toRequest(rec)
	if phone.Normalize(req.BabysitterMobile) != normalized {
		c.logger.Info("request mobile mismatch", zap.String("request_id", requestID))
		return nil, nil
	}
	return &req, nil
}

// UpdateBabysitterResponse registra la respuesta de la niñera. No se reintenta.
func (c *Client) UpdateBabysitterResponse(ctx context.Context, requestID string, update domain.ResponseUpdate) error {
	_, err := c.requests.UpdateRecordsPartialContext(ctx, &atapi.Records{Records: []*atapi.Record{{
		ID: requestID,
		Fields: map[string]any{
			fieldStatus:   string(update.Status),
			fieldResponse: update.Response,
		},
	}}})
	return c.logWriteError("update response", err)
}

func (c *Client) ListBabysitters(ctx context.Context, parentID string) ([]domain.Babysitter, error) {
	records, err := c.list(ctx, c.babysitters, equalsFormula(fieldParentID, parentID), fieldFirstName)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Babysitter, 0, len(records))
	for _, rec := range records {
		out = append(out, toBabysitter(rec))
	}
	return out, nil
}

func (c *Client) CreateBabysitter(ctx context.Context, b domain.Babysitter) (domain.Babysitter, error) {
	resp, err := c.babysitters.AddRecordsContext(ctx, &atapi.Records{Records: []*atapi.Record{{Fields: map[string]any{
		fieldParentID:  b.ParentID,
		fieldFirstName: b.FirstName,
		fieldLastName:  b.LastName,
		fieldMobile:    b.Mobile,
	}}}})
	if err != nil {
		return domain.Babysitter{}, c.logWriteError("create babysitter", err)
	}
	if len(resp.Records) == 0 {
		return domain.Babysitter{}, fmt.Errorf("airtable create babysitter: empty response")
	}
	return toBabysitter(resp.Records[0]), nil
}

// CreateRequests crea una fila por niñera, en lotes de 10. Si un lote falla
// devuelve lo creado hasta entonces junto con el error.
func (c *Client) CreateRequests(ctx context.Context, requests []domain.BabysitterRequest) ([]domain.BabysitterRequest, error) {
	created := make([]domain.BabysitterRequest, 0, len(requests))
	for start := 0; start < len(requests); start += createBatchSize {
		end := min(start+createBatchSize, len(requests))
		batch := &atapi.Records{Records: make([]*atapi.Record, 0, end-start)}
		for _, r := range requests[start:end] {
			batch.Records = append(batch.Records, &atapi.Record{Fields: requestFields(r)})
		}
		resp, err := c.requests.AddRecordsContext(ctx, batch)
		if err != nil {
			return created, c.logWriteError("create requests", err)
		}
		for _, rec := range resp.Records {
			created = append(created, toRequest(rec))
		}
	}
	return created, nil
}

func (c *Client) ListRequests(ctx context.Context, parentID string) ([]domain.BabysitterRequest, error) {
	records, err := c.list(ctx, c.requests, equalsFormula(fieldParentID, parentID), fieldDate)
	if err != nil {
		return nil, err
	}
	out := make([]domain.BabysitterRequest, 0, len(records))
	for _, rec := range records {
		out = append(out, toRequest(rec))
	}
	return out, nil
}

// list sigue la paginación por offset hasta agotar registros.
func (c *Client) list(ctx context.Context, table *atapi.Table, formula, sortField string) ([]*atapi.Record, error) {
	var out []*atapi.Record
	offset := ""
	for {
		var page *atapi.Records
		err := c.read(ctx, "list records", func() error {
			q := table.GetRecords().
				WithFilterFormula(formula).
				WithSort(struct {
					FieldName string
					Direction string
				}{FieldName: sortField, Direction: "asc"})
			if offset != "" {
				q = q.WithOffset(offset)
			}
			var err error
			page, err = q.DoContext(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if page.Offset == "" {
			return out, nil
		}
		offset = page.Offset
	}
}

// read ejecuta fn con hasta readRetries reintentos ante fallos de red, 429 o 5xx.
func (c *Client) read(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.readRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("airtable read retry", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
		lastErr = fn()
		if lastErr == nil || !retryable(lastErr) {
			break
		}
	}
	if lastErr != nil && statusCode(lastErr) != http.StatusNotFound {
		c.logger.Warn("airtable read failed", zap.String("op", op), zap.Int("status", statusCode(lastErr)), zap.Error(lastErr))
	}
	return lastErr
}

func (c *Client) logWriteError(op string, err error) error {
	if err != nil {
		c.logger.Warn("airtable write failed", zap.String("op", op), zap.Int("status", statusCode(err)), zap.Error(err))
	}
	return err
}

func retryable(err error) bool {
	if code := statusCode(err); code != 0 {
		return code == http.StatusTooManyRequests || code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// equalsFormula arma {field} = 'value' escapando comillas y barras.
func equalsFormula(field, value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return fmt.Sprintf("{%s} = '%s'", field, escaped)
}

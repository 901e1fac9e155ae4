package responder

import (
	"errors"
	"time"

	"sitter-link/internal/domain"
)

// Screen es la pantalla que corresponde mostrar según el estado del flujo.
type Screen string

const (
	ScreenLoading      Screen = "loading"
	ScreenVerification Screen = "verification"
	ScreenDetails      Screen = "details"
	ScreenSuccess      Screen = "success"
)

type View struct {
	Screen     Screen         `json:"screen"`
	RequestID  string         `json:"request_id"`
	Welcome    string         `json:"welcome,omitempty"`
	Sender     string         `json:"sender,omitempty"`
	Date       string         `json:"date,omitempty"`
	TimeRange  string         `json:"time_range,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	Parent     *domain.Parent `json:"parent,omitempty"`
	Submitting bool           `json:"submitting,omitempty"`
}

// View decide la pantalla. Mientras se verifica solo se muestra la carga.
func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := View{RequestID: f.requestID}
	switch {
	case f.state == StateVerifying:
		v.Screen = ScreenLoading
		return v
	case f.state == StateSubmitted && f.request != nil && f.request.Parent != nil:
		v.Screen = ScreenSuccess
		p := *f.request.Parent
		v.Parent = &p
		return v
	case f.request == nil:
		v.Screen = ScreenVerification
		return v
	}

	r := f.request
	v.Screen = ScreenDetails
	v.Welcome = "Welcome " + r.BabysitterFirstName + "!"
	if r.Parent != nil {
		p := *r.Parent
		v.Parent = &p
		v.Sender = p.FirstName + " " + p.LastName + " sent you a Babysitting Request"
	}
	v.Date = FormatDate(r.Date)
	v.TimeRange = r.TimeRange
	v.Notes = r.Notes
	v.Submitting = f.submitting
	return v
}

// FormatDate convierte una fecha ISO en "Monday, January 2, 2006". Si no se
// puede interpretar devuelve el texto original.
func FormatDate(iso string) string {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05.000Z07:00"} {
		if t, err := time.Parse(layout, iso); err == nil {
			return t.Format("Monday, January 2, 2006")
		}
	}
	return iso
}

// NoticeFor traduce un error del flujo en la notificación a mostrar.
func NoticeFor(err error) domain.Notice {
	switch {
	case err == nil:
		return domain.Notice{Title: MsgSubmitted, Variant: domain.NoticeSuccess}
	case errors.Is(err, ErrRequestNotFound):
		return domain.Notice{Title: MsgRequestNotFound, Variant: domain.NoticeError}
	case errors.Is(err, ErrInvalidMobile):
		return domain.Notice{Title: MsgInvalidMobile, Variant: domain.NoticeError}
	case errors.Is(err, ErrSubmitFailed):
		return domain.Notice{Title: MsgSubmitFailed, Variant: domain.NoticeError}
	}
	return domain.Notice{Title: err.Error(), Variant: domain.NoticeError}
}
